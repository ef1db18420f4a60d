package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"multibagger/config"
	"multibagger/internal/app"
	"multibagger/models"
	"multibagger/observability"
	"multibagger/screener"
	"multibagger/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const notInitializedMessage = "System not initialized. Please initialize first."

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// Handler handles HTTP API requests
type Handler struct {
	app      *app.App
	cfg      *config.Config
	validate *validator.Validate
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg, validate: newValidator()}
}

// AnalyzeResponse is a discovery report with the run that produced it.
type AnalyzeResponse struct {
	RunID      uuid.UUID `json:"run_id"`
	ReportPath string    `json:"report_path,omitempty"`
	Filtered   []string  `json:"filtered_out,omitempty"`
	*models.DiscoveryReport
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":             "healthy",
		"system_available":   true,
		"system_initialized": h.app.Initialized(),
		"timestamp":          time.Now().Format(time.RFC3339),
	}

	database := "not_configured"
	if repo := h.app.Repo(); repo != nil {
		if err := repo.Health(r.Context()); err == nil {
			database = "connected"
		} else {
			database = "disconnected"
			status["status"] = "degraded"
		}
	}
	status["services"] = map[string]string{"database": database}

	cbStatus := services.GetGlobalRegistry().Status()
	status["circuit_breakers"] = cbStatus
	for _, cb := range cbStatus {
		if cb.State == "open" {
			status["status"] = "degraded"
			break
		}
	}

	h.jsonResponse(w, status)
}

// HandleInitialize readies the analysis system and returns its status
func (h *Handler) HandleInitialize(w http.ResponseWriter, r *http.Request) {
	status, err := h.app.Initialize()
	if err != nil {
		observability.Error("initialization failed", "error", err)
		h.jsonStatus(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Initialization failed: " + err.Error(),
		})
		return
	}

	h.jsonResponse(w, map[string]any{
		"success": true,
		"status":  status,
		"message": "System initialized successfully",
	})
}

// HandleAnalyze runs a discovery batch
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !h.app.Initialized() {
		h.jsonError(w, notInitializedMessage, http.StatusBadRequest)
		return
	}

	var req AnalyzeRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Normalize()
	if req.Empty() {
		h.jsonError(w, "No stocks provided for analysis", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.jsonError(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	observability.Info("starting analysis", "stocks", req.Stocks, "set", req.Set, "index", req.Index)

	var run *models.DiscoveryRun
	var err error
	switch {
	case req.Index != "":
		run, err = h.app.AnalyzeIndex(req.Index)
	case req.Set != "":
		run, err = h.app.AnalyzeStockSet(req.Set)
	default:
		run, err = h.app.Analyze(req.Stocks)
	}
	if err != nil {
		h.analysisError(w, err, "Analysis failed: ")
		return
	}

	h.jsonResponse(w, AnalyzeResponse{
		RunID:           run.ID,
		ReportPath:      run.ReportPath,
		Filtered:        run.Filtered,
		DiscoveryReport: run.Report,
	})
}

// HandleAnalyzeSingle analyzes one stock in detail
func (h *Handler) HandleAnalyzeSingle(w http.ResponseWriter, r *http.Request) {
	if !h.app.Initialized() {
		h.jsonError(w, notInitializedMessage, http.StatusBadRequest)
		return
	}

	var req AnalyzeSingleRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Normalize()
	if req.Symbol == "" {
		h.jsonError(w, "No stock symbol provided", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.jsonError(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	verdict, err := h.app.AnalyzeSingle(req.Symbol)
	if err != nil {
		h.analysisError(w, err, "Single stock analysis failed: ")
		return
	}

	h.jsonResponse(w, verdict)
}

// HandleSystemStatus returns the agent configuration
func (h *Handler) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.SystemStatus())
}

// HandlePredefinedSets returns the curated stock sets
func (h *Handler) HandlePredefinedSets(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{"sets": h.app.StockSets()})
}

// HandleGetRuns returns recent discovery runs
func (h *Handler) HandleGetRuns(w http.ResponseWriter, r *http.Request) {
	limit := h.ParseLimitParam(r, 10)

	runs, err := h.app.GetRuns(limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, runs)
}

// HandleGetRun returns a specific discovery run
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.jsonError(w, "Missing run ID", http.StatusBadRequest)
		return
	}

	run, err := h.app.GetRunByID(id)
	if err != nil {
		status := http.StatusInternalServerError
		if strings.HasPrefix(err.Error(), "invalid UUID") {
			status = http.StatusBadRequest
		}
		h.jsonError(w, err.Error(), status)
		return
	}
	if run == nil {
		h.jsonError(w, "Run not found", http.StatusNotFound)
		return
	}

	h.jsonResponse(w, run)
}

// HandleGetAgentRuns returns recent agent runs, optionally filtered by agent_type
func (h *Handler) HandleGetAgentRuns(w http.ResponseWriter, r *http.Request) {
	limit := h.ParseLimitParam(r, 50)

	agentType := r.URL.Query().Get("agent_type")
	if agentType != "" && !isAgentType(agentType) {
		h.jsonError(w, "unknown agent_type "+strconv.Quote(agentType), http.StatusBadRequest)
		return
	}

	runs, err := h.app.GetAgentRuns(agentType, limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, runs)
}

// HandleGetVerdictHistory returns past verdicts for one symbol
func (h *Handler) HandleGetVerdictHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if !symbolPattern.MatchString(symbol) {
		h.jsonError(w, "invalid symbol", http.StatusBadRequest)
		return
	}

	history, err := h.app.GetVerdictHistory(symbol, h.ParseLimitParam(r, 20))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, history)
}

// Helper functions

func isAgentType(s string) bool {
	for _, t := range models.AllAgentTypes() {
		if string(t) == s {
			return true
		}
	}
	return false
}

// decode reads a JSON body into dst, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// analysisError maps app errors to status codes.
func (h *Handler) analysisError(w http.ResponseWriter, err error, prefix string) {
	switch {
	case errors.Is(err, app.ErrNotInitialized):
		h.jsonError(w, notInitializedMessage, http.StatusBadRequest)
	case errors.Is(err, app.ErrQueueFull):
		h.jsonError(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, app.ErrUnknownStockSet):
		h.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, screener.ErrSymbolNotAnalyzed):
		h.jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		observability.Error("analysis request failed", "error", err)
		h.jsonError(w, prefix+err.Error(), http.StatusInternalServerError)
	}
}

// ParseLimitParam parses the limit query parameter
func (h *Handler) ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return min(l, 500)
		}
	}
	return defaultLimit
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data any) {
	h.jsonStatus(w, http.StatusOK, data)
}

func (h *Handler) jsonStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	h.jsonStatus(w, status, map[string]string{"error": message})
}
