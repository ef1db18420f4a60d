package agents

import (
	"context"
	"errors"
	"math"
	"time"

	"multibagger/models"
)

// ErrMalformedInput reports snapshot data that cannot be scored, such as
// non-finite statement values. Missing data is never malformed.
var ErrMalformedInput = errors.New("malformed input")

// Agent scores one stock snapshot along a single dimension. Implementations
// hold no per-call state and are safe for concurrent use.
type Agent interface {
	Name() string
	Type() models.AgentType
	Analyze(ctx context.Context, snapshot *models.StockSnapshot) (models.AgentResult, error)
}

const (
	maxScore    = 10.0
	maxEvidence = 5
	maxRisks    = 3
)

// NormalizeScore clamps an agent score to [0, 10].
func NormalizeScore(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(maxScore, score))
}

func newResult(agentType models.AgentType, symbol string) models.AgentResult {
	return models.AgentResult{
		AgentType: agentType,
		Symbol:    symbol,
		Evidence:  []string{},
		Risks:     []string{},
		Timestamp: time.Now(),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// capList returns at most n items; nil becomes an empty slice.
func capList(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	out := make([]string, len(items))
	copy(out, items)
	return out
}
