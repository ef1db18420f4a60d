package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"multibagger/config"
	"multibagger/models"
	"multibagger/observability"

	"github.com/google/uuid"
)

const (
	SystemName     = "Multi-Agent AI Research System"
	SystemVersion  = "1.0"
	supervisorName = "Multibagger Synthesis Supervisor"
)

// Pipeline runs every registered agent over a snapshot and hands the results
// to the supervisor.
type Pipeline struct {
	agents     []Agent
	recorder   AgentRunRecorder
	supervisor *Supervisor
	timeout    time.Duration
}

// NewPipeline creates an empty Pipeline. recorder may be nil, in which case
// agent runs are not persisted.
func NewPipeline(recorder AgentRunRecorder, supervisor *Supervisor, agentTimeout time.Duration) *Pipeline {
	return &Pipeline{
		agents:     make([]Agent, 0, len(models.AllAgentTypes())),
		recorder:   recorder,
		supervisor: supervisor,
		timeout:    agentTimeout,
	}
}

// NewDefaultPipeline registers the five standard agents.
func NewDefaultPipeline(cfg *config.Config, recorder AgentRunRecorder, enricher Enricher) *Pipeline {
	classifier := NewKeywordClassifier()
	p := NewPipeline(recorder, NewSupervisorFromConfig(cfg.Scoring), time.Duration(cfg.Agent.TimeoutSeconds)*time.Second)
	p.RegisterAgent(NewFundamentalAgent(enricher))
	p.RegisterAgent(NewManagementAgent(classifier))
	p.RegisterAgent(NewTechnicalAgent())
	p.RegisterAgent(NewSmartMoneyAgent(classifier))
	p.RegisterAgent(NewPolicyAgent(classifier))
	return p
}

// RegisterAgent adds an agent to the pipeline
func (p *Pipeline) RegisterAgent(agent Agent) {
	p.agents = append(p.agents, agent)
}

func (p *Pipeline) Agents() []Agent {
	return p.agents
}

func (p *Pipeline) Supervisor() *Supervisor {
	return p.supervisor
}

// agentOutcome holds the result of one agent attempt
type agentOutcome struct {
	agent  Agent
	result models.AgentResult
	err    error
}

// AnalyzeSnapshot runs all agents concurrently. Any agent failure fails the
// whole stock so the supervisor never sees a partial bundle.
func (p *Pipeline) AnalyzeSnapshot(ctx context.Context, snapshot *models.StockSnapshot) (*models.StockAnalysis, error) {
	return p.analyze(ctx, snapshot, nil)
}

// AnalyzeForDiscovery is AnalyzeSnapshot with agent runs linked to a discovery run.
func (p *Pipeline) AnalyzeForDiscovery(ctx context.Context, discoveryID uuid.UUID, snapshot *models.StockSnapshot) (*models.StockAnalysis, error) {
	return p.analyze(ctx, snapshot, &discoveryID)
}

func (p *Pipeline) analyze(ctx context.Context, snapshot *models.StockSnapshot, discoveryID *uuid.UUID) (*models.StockAnalysis, error) {
	if snapshot == nil {
		return nil, errors.New("nil snapshot")
	}
	symbol := snapshot.Symbol
	metrics := observability.GetMetrics()
	analysisTimer := metrics.NewTimer()

	if len(p.agents) == 0 {
		analysisTimer.ObserveAnalysis(symbol, "error")
		return nil, fmt.Errorf("no agents registered to analyze %s", symbol)
	}

	var wg sync.WaitGroup
	outcomes := make([]agentOutcome, len(p.agents))

	for i, agent := range p.agents {
		wg.Add(1)
		go func(idx int, ag Agent) {
			defer wg.Done()

			agentCtx := ctx
			if p.timeout > 0 {
				var cancel context.CancelFunc
				agentCtx, cancel = context.WithTimeout(ctx, p.timeout)
				defer cancel()
			}

			run := models.NewAgentRun(ag.Type(), symbol)
			run.DiscoveryID = discoveryID
			p.recordRun(agentCtx, run, true)

			agentTimer := metrics.NewTimer()
			result, err := runAgent(agentCtx, ag, snapshot)
			agentTimer.ObserveAgent(string(ag.Type()))

			outcomes[idx] = agentOutcome{agent: ag, result: result, err: err}

			if err != nil {
				run.Fail(err)
				metrics.RecordAgentError(string(ag.Type()), categorizeError(err))
			} else {
				run.Complete(result)
				metrics.RecordAgentScore(string(ag.Type()), result.Score)
			}
			// the agent context may have expired; persisting the outcome should not
			p.recordRun(context.WithoutCancel(ctx), run, false)
		}(i, agent)
	}

	wg.Wait()

	analysis := &models.StockAnalysis{
		Symbol:  symbol,
		Info:    snapshot.Info,
		Results: make(map[models.AgentType]models.AgentResult, len(outcomes)),
	}
	var errs []error
	for _, o := range outcomes {
		if o.err != nil {
			observability.Warn("agent analysis failed",
				"agent", o.agent.Name(),
				"symbol", symbol,
				"error", o.err)
			errs = append(errs, fmt.Errorf("%s: %w", o.agent.Name(), o.err))
			continue
		}
		analysis.Results[o.agent.Type()] = o.result
	}

	if len(errs) > 0 {
		analysisTimer.ObserveAnalysis(symbol, "error")
		return nil, fmt.Errorf("analyzing %s: %w", symbol, errors.Join(errs...))
	}

	analysisTimer.ObserveAnalysis(symbol, "success")
	return analysis, nil
}

// runAgent converts an agent panic into an error.
func runAgent(ctx context.Context, ag Agent, snapshot *models.StockSnapshot) (result models.AgentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panic: %v", r)
		}
	}()
	return ag.Analyze(ctx, snapshot)
}

func (p *Pipeline) recordRun(ctx context.Context, run *models.AgentRun, create bool) {
	if p.recorder == nil {
		return
	}
	var err error
	if create {
		err = p.recorder.CreateAgentRun(ctx, run)
	} else {
		err = p.recorder.UpdateAgentRun(ctx, run)
	}
	if err != nil {
		observability.Warn("failed to record agent run",
			"agent", run.AgentType,
			"symbol", run.Symbol,
			"error", err)
	}
}

// Synthesize delegates to the supervisor.
func (p *Pipeline) Synthesize(ctx context.Context, analyses []models.StockAnalysis) models.DiscoveryReport {
	return p.supervisor.Synthesize(ctx, analyses)
}

// Status describes the configured agents and scoring parameters.
type Status struct {
	SystemName string            `json:"system_name"`
	Version    string            `json:"version"`
	Status     string            `json:"status"`
	Agents     map[string]string `json:"agents"`
	Weights    Weights           `json:"agent_weights"`
	Thresholds Thresholds        `json:"thresholds"`
	Consensus  string            `json:"consensus_strategy"`
	Timestamp  time.Time         `json:"timestamp"`
}

func (p *Pipeline) Status() Status {
	agents := make(map[string]string, len(p.agents)+1)
	for _, a := range p.agents {
		agents[string(a.Type())+"_agent"] = a.Name()
	}
	agents["supervisor_agent"] = supervisorName
	return Status{
		SystemName: SystemName,
		Version:    SystemVersion,
		Status:     "operational",
		Agents:     agents,
		Weights:    p.supervisor.Weights(),
		Thresholds: p.supervisor.Thresholds(),
		Consensus:  p.supervisor.Consensus().Name(),
		Timestamp:  time.Now(),
	}
}

// categorizeError categorizes an error for metrics labeling
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, ErrMalformedInput) {
		return "malformed_input"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "context deadline"):
		return "timeout"
	case strings.Contains(errStr, "circuit breaker"):
		return "circuit_breaker"
	case strings.Contains(errStr, "panic"):
		return "panic"
	case strings.Contains(errStr, "connection"), strings.Contains(errStr, "network"):
		return "network"
	default:
		return "other"
	}
}
