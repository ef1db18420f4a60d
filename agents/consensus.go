package agents

// ConsensusStrategy turns a multibagger probability into a conviction label.
type ConsensusStrategy interface {
	Consensus(probability float64) string
	// Name returns the strategy name for logging/display
	Name() string
}

// ConsensusLevel is the minimum probability for a label.
type ConsensusLevel struct {
	MinProbability float64
	Label          string
}

const avoidConsensus = "AVOID (Low Conviction)"

// LadderConsensus assigns the first level whose minimum the probability
// meets. Levels must be ordered from highest to lowest.
type LadderConsensus struct {
	Levels       []ConsensusLevel
	StrategyName string
}

// NewDefaultConsensus uses the standard 0.85/0.75/0.65/0.55 ladder.
func NewDefaultConsensus() *LadderConsensus {
	return &LadderConsensus{
		Levels: []ConsensusLevel{
			{0.85, "STRONG BUY (High Conviction)"},
			{0.75, "BUY (High Conviction)"},
			{0.65, "BUY (Medium Conviction)"},
			{0.55, "HOLD (Low Conviction)"},
		},
		StrategyName: "default",
	}
}

// NewConservativeConsensus raises every rung by five points.
func NewConservativeConsensus() *LadderConsensus {
	c := NewDefaultConsensus()
	for i := range c.Levels {
		c.Levels[i].MinProbability += 0.05
	}
	c.StrategyName = "conservative"
	return c
}

func (c *LadderConsensus) Consensus(probability float64) string {
	for _, level := range c.Levels {
		if probability >= level.MinProbability {
			return level.Label
		}
	}
	return avoidConsensus
}

func (c *LadderConsensus) Name() string {
	return c.StrategyName
}

// ConsensusFromName returns a strategy by name
func ConsensusFromName(name string) ConsensusStrategy {
	switch name {
	case "conservative":
		return NewConservativeConsensus()
	default:
		return NewDefaultConsensus()
	}
}
