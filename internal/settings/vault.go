// Package settings keeps provider credentials in an encrypted local vault.
// Values from the environment always win; the vault only fills gaps.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"multibagger/config"
	"multibagger/observability"
)

// Service names a provider whose credentials the vault can hold.
type Service string

const (
	ServiceGroq      Service = "groq"
	ServiceAnthropic Service = "anthropic"
	ServiceBedrock   Service = "bedrock"
	ServiceOpenAI    Service = "openai"
	ServiceGemini    Service = "gemini"
	ServiceFMP       Service = "fmp"
	ServiceNewsAPI   Service = "newsapi"
)

// KnownServices lists services in display order.
var KnownServices = []Service{
	ServiceGroq,
	ServiceAnthropic,
	ServiceBedrock,
	ServiceOpenAI,
	ServiceGemini,
	ServiceFMP,
	ServiceNewsAPI,
}

var (
	ErrUnknownService = errors.New("unknown service")
	ErrMissingKey     = errors.New("api key is required")
)

const vaultFile = "credentials.enc"

// Credential is one provider's stored configuration. Bedrock uses Region and
// ModelID instead of an API key.
type Credential struct {
	Service Service `json:"service"`
	APIKey  string  `json:"api_key,omitempty"`
	BaseURL string  `json:"base_url,omitempty"`
	Region  string  `json:"region,omitempty"`
	ModelID string  `json:"model_id,omitempty"`
}

// Configured reports whether the credential is usable on its own.
func (c Credential) Configured() bool {
	if c.Service == ServiceBedrock {
		return c.Region != "" && c.ModelID != ""
	}
	return c.APIKey != ""
}

// Masked is a Credential safe to print.
type Masked struct {
	Service    Service `json:"service"`
	Name       string  `json:"name"`
	APIKey     string  `json:"api_key,omitempty"`
	BaseURL    string  `json:"base_url,omitempty"`
	Region     string  `json:"region,omitempty"`
	ModelID    string  `json:"model_id,omitempty"`
	Configured bool    `json:"configured"`
}

type vaultContents struct {
	Credentials map[Service]Credential `json:"credentials"`
}

// Vault is a file-backed credential store.
type Vault struct {
	mu     sync.RWMutex
	path   string
	sealer *Sealer
	creds  map[Service]Credential
}

// DefaultDir is ~/.multibagger.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".multibagger"), nil
}

// Open loads the vault in dir, creating the directory if needed. A vault
// that cannot be decrypted is logged and treated as empty.
func Open(dir, passphrase string) (*Vault, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	v := &Vault{
		path:   filepath.Join(dir, vaultFile),
		sealer: NewSealer(passphrase),
		creds:  make(map[Service]Credential),
	}

	if err := v.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		observability.Warn("failed to load credential vault", "path", v.path, "error", err)
	}

	return v, nil
}

// Path is the vault file location.
func (v *Vault) Path() string {
	return v.path
}

func (v *Vault) load() error {
	data, err := os.ReadFile(v.path)
	if err != nil {
		return err
	}

	plain, err := v.sealer.Open(data)
	if err != nil {
		return err
	}

	var contents vaultContents
	if err := json.Unmarshal(plain, &contents); err != nil {
		return fmt.Errorf("failed to unmarshal vault: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for svc, c := range contents.Credentials {
		c.Service = svc
		v.creds[svc] = c
	}
	return nil
}

// save writes the vault. Callers hold v.mu.
func (v *Vault) save() error {
	data, err := json.Marshal(vaultContents{Credentials: v.creds})
	if err != nil {
		return fmt.Errorf("failed to marshal vault: %w", err)
	}

	sealed, err := v.sealer.Seal(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt vault: %w", err)
	}

	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("failed to write vault: %w", err)
	}
	return os.Rename(tmp, v.path)
}

// Get returns a copy of the stored credential.
func (v *Vault) Get(svc Service) (Credential, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	c, ok := v.creds[svc]
	return c, ok
}

// Set stores a credential and persists the vault.
func (v *Vault) Set(c Credential) error {
	if !IsKnown(c.Service) {
		return fmt.Errorf("%w: %q", ErrUnknownService, c.Service)
	}
	if c.Service != ServiceBedrock && c.APIKey == "" {
		return ErrMissingKey
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.creds[c.Service] = c
	return v.save()
}

// Delete removes a credential. Deleting an absent entry is not an error.
func (v *Vault) Delete(svc Service) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.creds[svc]; !ok {
		return nil
	}
	delete(v.creds, svc)
	return v.save()
}

// List returns every known service with secrets masked.
func (v *Vault) List() []Masked {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]Masked, 0, len(KnownServices))
	for _, svc := range KnownServices {
		m := Masked{Service: svc, Name: DisplayName(svc)}
		if c, ok := v.creds[svc]; ok {
			m.APIKey = mask(c.APIKey)
			m.BaseURL = c.BaseURL
			m.Region = c.Region
			m.ModelID = c.ModelID
			m.Configured = c.Configured()
		}
		out = append(out, m)
	}
	return out
}

// ApplyTo copies stored credentials into cfg wherever the environment left a
// field empty, and returns the services that contributed anything.
func (v *Vault) ApplyTo(cfg *config.Config) []Service {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var applied []Service
	for _, svc := range KnownServices {
		c, ok := v.creds[svc]
		if !ok {
			continue
		}
		if applyCredential(cfg, c) {
			applied = append(applied, svc)
		}
	}
	return applied
}

func applyCredential(cfg *config.Config, c Credential) bool {
	changed := false
	fill := func(dst *string, val string) {
		if *dst == "" && val != "" {
			*dst = val
			changed = true
		}
	}

	switch c.Service {
	case ServiceGroq:
		fill(&cfg.Groq.APIKey, c.APIKey)
	case ServiceAnthropic:
		fill(&cfg.Anthropic.APIKey, c.APIKey)
	case ServiceBedrock:
		fill(&cfg.AWS.Region, c.Region)
		fill(&cfg.AWS.BedrockModelID, c.ModelID)
	case ServiceOpenAI:
		fill(&cfg.OpenAI.APIKey, c.APIKey)
	case ServiceGemini:
		fill(&cfg.Gemini.APIKey, c.APIKey)
	case ServiceFMP:
		fill(&cfg.FMP.APIKey, c.APIKey)
	case ServiceNewsAPI:
		fill(&cfg.NewsAPI.APIKey, c.APIKey)
	}
	return changed
}

// IsKnown reports whether svc is a service the vault accepts.
func IsKnown(svc Service) bool {
	for _, k := range KnownServices {
		if k == svc {
			return true
		}
	}
	return false
}

func DisplayName(svc Service) string {
	switch svc {
	case ServiceGroq:
		return "Groq"
	case ServiceAnthropic:
		return "Anthropic"
	case ServiceBedrock:
		return "AWS Bedrock"
	case ServiceOpenAI:
		return "OpenAI"
	case ServiceGemini:
		return "Google Gemini"
	case ServiceFMP:
		return "Financial Modeling Prep"
	case ServiceNewsAPI:
		return "NewsAPI"
	default:
		return string(svc)
	}
}

// mask keeps the last four characters.
func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
