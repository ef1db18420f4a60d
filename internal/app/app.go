package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"multibagger/agents"
	"multibagger/config"
	"multibagger/models"
	"multibagger/screener"

	"github.com/google/uuid"
)

var (
	// ErrNotInitialized is returned by analysis calls made before Initialize.
	ErrNotInitialized = errors.New("system not initialized, please initialize first")
	// ErrQueueFull is returned when the analysis concurrency limit is reached.
	ErrQueueFull = errors.New("analysis queue full, too many concurrent requests - try again later")
	// ErrUnknownStockSet is returned for a stock set name that does not exist.
	ErrUnknownStockSet = errors.New("unknown stock set")
)

// RepositoryInterface defines the repository operations needed by App
type RepositoryInterface interface {
	Close()
	Health(ctx context.Context) error
	GetAgentRuns(ctx context.Context, agentType models.AgentType, limit int) ([]models.AgentRun, error)
	GetVerdictHistory(ctx context.Context, symbol string, limit int) ([]models.VerdictRecord, error)
}

// DiscoveryService runs discovery batches and single-stock analyses
type DiscoveryService interface {
	RunDiscovery(ctx context.Context, symbols []string, source string) (*models.DiscoveryRun, error)
	RunIndexDiscovery(ctx context.Context, index string) (*models.DiscoveryRun, error)
	AnalyzeSingle(ctx context.Context, symbol string) (*models.StockVerdict, error)
	GetRun(ctx context.Context, id uuid.UUID) (*models.DiscoveryRun, error)
	GetRunHistory(ctx context.Context, limit int) ([]models.DiscoveryRun, error)
}

// StatusProvider reports the configured agents and scoring parameters
type StatusProvider interface {
	Status() agents.Status
}

// SystemStatus is returned by the status endpoint.
type SystemStatus struct {
	Initialized bool           `json:"initialized"`
	Message     string         `json:"message,omitempty"`
	System      *agents.Status `json:"system,omitempty"`
}

// App holds application dependencies using interfaces for testability
type App struct {
	ctx         context.Context
	cfg         *config.Config
	repo        RepositoryInterface
	discovery   DiscoveryService
	status      StatusProvider
	stockSets   []config.StockSet
	analysisSem chan struct{}
	initialized atomic.Bool
}

// New creates a new App
func New(cfg *config.Config, repo RepositoryInterface, discovery DiscoveryService, status StatusProvider, stockSets []config.StockSet) *App {
	return &App{
		ctx:         context.Background(),
		cfg:         cfg,
		repo:        repo,
		discovery:   discovery,
		status:      status,
		stockSets:   stockSets,
		analysisSem: make(chan struct{}, cfg.Agent.ConcurrencyLimit),
	}
}

// Startup is called when the app starts
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
}

// Shutdown is called when the app is closing
func (a *App) Shutdown(ctx context.Context) {
	if a.repo != nil {
		a.repo.Close()
	}
}

// Repo returns the repository interface for API handlers
func (a *App) Repo() RepositoryInterface {
	return a.repo
}

// Initialize marks the analysis system ready and returns its status.
// Calling it again is harmless.
func (a *App) Initialize() (*agents.Status, error) {
	if a.discovery == nil || a.status == nil {
		return nil, fmt.Errorf("analysis system not available")
	}
	a.initialized.Store(true)
	status := a.status.Status()
	return &status, nil
}

// Initialized reports whether Initialize has been called.
func (a *App) Initialized() bool {
	return a.initialized.Load()
}

// SystemStatus returns the agent configuration, or a not-initialized notice.
func (a *App) SystemStatus() SystemStatus {
	if !a.Initialized() {
		return SystemStatus{Message: "System not initialized"}
	}
	status := a.status.Status()
	return SystemStatus{Initialized: true, System: &status}
}

// acquire takes an analysis slot without blocking.
func (a *App) acquire() (func(), error) {
	if !a.Initialized() {
		return nil, ErrNotInitialized
	}
	select {
	case a.analysisSem <- struct{}{}:
		return func() { <-a.analysisSem }, nil
	default:
		return nil, ErrQueueFull
	}
}

// Analyze runs a discovery batch over the given symbols
func (a *App) Analyze(symbols []string) (*models.DiscoveryRun, error) {
	release, err := a.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return a.discovery.RunDiscovery(a.ctx, symbols, screener.SourceRequest)
}

// AnalyzeStockSet runs a discovery batch over a predefined stock set
func (a *App) AnalyzeStockSet(name string) (*models.DiscoveryRun, error) {
	set, ok := config.FindStockSet(a.stockSets, name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStockSet, name)
	}

	release, err := a.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return a.discovery.RunDiscovery(a.ctx, set.Stocks, set.Name)
}

// AnalyzeIndex runs a discovery batch over an index's constituents
func (a *App) AnalyzeIndex(index string) (*models.DiscoveryRun, error) {
	release, err := a.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return a.discovery.RunIndexDiscovery(a.ctx, index)
}

// AnalyzeSingle analyzes one stock in detail
func (a *App) AnalyzeSingle(symbol string) (*models.StockVerdict, error) {
	release, err := a.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	return a.discovery.AnalyzeSingle(a.ctx, symbol)
}

// StockSets returns the predefined stock sets
func (a *App) StockSets() []config.StockSet {
	if a.stockSets == nil {
		return []config.StockSet{}
	}
	return a.stockSets
}

// GetRuns returns recent discovery runs
func (a *App) GetRuns(limit int) ([]models.DiscoveryRun, error) {
	if a.discovery == nil {
		return nil, fmt.Errorf("analysis system not available")
	}
	return a.discovery.GetRunHistory(a.ctx, limit)
}

// GetRunByID returns a single discovery run by ID
func (a *App) GetRunByID(id string) (*models.DiscoveryRun, error) {
	if a.discovery == nil {
		return nil, fmt.Errorf("analysis system not available")
	}

	runID, err := ParseUUID(id)
	if err != nil {
		return nil, err
	}

	return a.discovery.GetRun(a.ctx, runID)
}

// GetAgentRuns returns recent agent runs, optionally for one agent type
func (a *App) GetAgentRuns(agentType string, limit int) ([]models.AgentRun, error) {
	if a.repo == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return a.repo.GetAgentRuns(a.ctx, models.AgentType(agentType), limit)
}

// GetVerdictHistory returns recent verdicts for a symbol
func (a *App) GetVerdictHistory(symbol string, limit int) ([]models.VerdictRecord, error) {
	if a.repo == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return a.repo.GetVerdictHistory(a.ctx, symbol, limit)
}

// ParseUUID parses a string UUID
func ParseUUID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid UUID: %w", err)
	}
	return parsed, nil
}

// AnalysisSemCapacity returns the capacity of the analysis semaphore (for testing)
func (a *App) AnalysisSemCapacity() int {
	return cap(a.analysisSem)
}
