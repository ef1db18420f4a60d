package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed stock_sets.yaml
var defaultStockSets []byte

// StockSet is a named, curated list of symbols.
type StockSet struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Stocks      []string `yaml:"stocks" json:"stocks"`
}

type stockSetFile struct {
	Sets []StockSet `yaml:"sets"`
}

// LoadStockSets returns the predefined stock sets. An empty path returns the
// built-in sets.
func LoadStockSets(path string) ([]StockSet, error) {
	data := defaultStockSets
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read stock sets: %w", err)
		}
		data = b
	}
	return ParseStockSets(data)
}

// ParseStockSets decodes and validates a stock set YAML document.
func ParseStockSets(data []byte) ([]StockSet, error) {
	var f stockSetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse stock sets: %w", err)
	}

	seen := make(map[string]bool, len(f.Sets))
	for i, s := range f.Sets {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("stock set %d has no name", i)
		}
		if len(s.Stocks) == 0 {
			return nil, fmt.Errorf("stock set %q has no stocks", name)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("duplicate stock set %q", name)
		}
		seen[key] = true
		for j, sym := range s.Stocks {
			f.Sets[i].Stocks[j] = strings.ToUpper(strings.TrimSpace(sym))
		}
		f.Sets[i].Name = name
	}
	return f.Sets, nil
}

// FindStockSet looks a set up by case-insensitive name.
func FindStockSet(sets []StockSet, name string) (StockSet, bool) {
	for _, s := range sets {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s, true
		}
	}
	return StockSet{}, false
}
