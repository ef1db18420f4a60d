package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger is the process-wide structured logger.
var Logger *slog.Logger

var loggerMu sync.Mutex

// LogOptions controls how the global logger is built.
type LogOptions struct {
	JSON   bool
	Level  slog.Level
	Output io.Writer
}

// InitLogger builds the global logger. JSON output is used for production
// deployments, human readable text otherwise.
func InitLogger(production bool) {
	Configure(LogOptions{JSON: production, Level: slog.LevelInfo})
}

// InitLoggerWithLevel builds the global logger at the given level.
func InitLoggerWithLevel(production bool, level slog.Level) {
	Configure(LogOptions{JSON: production, Level: level})
}

// Configure installs a logger built from opts as the global and slog default.
func Configure(opts LogOptions) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	loggerMu.Lock()
	Logger = slog.New(handler)
	loggerMu.Unlock()
	slog.SetDefault(Logger)
}

// ParseLevel maps a LOG_LEVEL string onto a slog level. Unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logger() *slog.Logger {
	loggerMu.Lock()
	l := Logger
	loggerMu.Unlock()
	if l == nil {
		InitLogger(false)
		return Logger
	}
	return l
}

func Info(msg string, args ...any) {
	logger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	logger().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	logger().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	logger().Debug(msg, args...)
}

// Fatal logs at error level and exits the process.
func Fatal(msg string, args ...any) {
	logger().Error(msg, args...)
	os.Exit(1)
}

// WithSymbol returns a logger tagged with a stock symbol.
func WithSymbol(symbol string) *slog.Logger {
	return logger().With("symbol", symbol)
}

// WithAgent returns a logger tagged with an agent type.
func WithAgent(agentType string) *slog.Logger {
	return logger().With("agent_type", agentType)
}

// WithProvider returns a logger tagged with an enrichment provider name.
func WithProvider(provider string) *slog.Logger {
	return logger().With("provider", provider)
}

// WithError returns a logger carrying err.
func WithError(err error) *slog.Logger {
	return logger().With("error", err)
}
