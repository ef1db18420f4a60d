package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestInitLogger(t *testing.T) {
	for _, production := range []bool{false, true} {
		InitLogger(production)
		if Logger == nil {
			t.Fatalf("InitLogger(%v) left Logger nil", production)
		}
	}
}

func TestConfigure_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Configure(LogOptions{JSON: true, Level: slog.LevelInfo, Output: &buf})

	Info("discovery started", "symbols", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "discovery started" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["symbols"] != float64(3) {
		t.Errorf("symbols = %v", entry["symbols"])
	}
}

func TestConfigure_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Configure(LogOptions{Level: slog.LevelWarn, Output: &buf})

	Info("hidden")
	Debug("hidden too")
	Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info/debug should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn should be logged: %q", out)
	}
}

func TestLoggingHelpers(t *testing.T) {
	var buf bytes.Buffer
	Configure(LogOptions{Level: slog.LevelDebug, Output: &buf})

	tests := []struct {
		name  string
		log   func()
		wants []string
	}{
		{"info", func() { Info("info message", "key", "value") }, []string{"INFO", "info message", "key=value"}},
		{"warn", func() { Warn("warn message") }, []string{"WARN", "warn message"}},
		{"error", func() { Error("error message") }, []string{"ERROR", "error message"}},
		{"debug", func() { Debug("debug message") }, []string{"DEBUG", "debug message"}},
		{"symbol", func() { WithSymbol("DIXON.NS").Info("scored") }, []string{"symbol=DIXON.NS"}},
		{"agent", func() { WithAgent("technical").Info("scored") }, []string{"agent_type=technical"}},
		{"provider", func() { WithProvider("groq").Info("enriched") }, []string{"provider=groq"}},
		{"error field", func() { WithError(errors.New("boom")).Info("failed") }, []string{"error=boom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log()
			for _, want := range tt.wants {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output %q missing %q", buf.String(), want)
				}
			}
		})
	}
}

func TestLazyInit(t *testing.T) {
	loggerMu.Lock()
	Logger = nil
	loggerMu.Unlock()

	Info("lazy")
	if Logger == nil {
		t.Error("logging through a nil Logger should initialize it")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
