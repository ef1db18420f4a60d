package screener

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"multibagger/models"
)

const reportTimestampLayout = "20060102_150405"

// ReportWriter saves discovery reports as indented JSON files.
type ReportWriter struct {
	dir string
	now func() time.Time
}

func NewReportWriter(dir string) *ReportWriter {
	return &ReportWriter{dir: dir, now: time.Now}
}

// Write stores report as <dir>/multibagger_analysis_<timestamp>.json and
// returns the path.
func (w *ReportWriter) Write(report models.DiscoveryReport) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	name := fmt.Sprintf("multibagger_analysis_%s.json", w.now().Format(reportTimestampLayout))
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
