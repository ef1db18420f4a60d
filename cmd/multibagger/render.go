package main

import (
	"fmt"
	"strings"

	"multibagger/config"
	"multibagger/models"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	highStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	watchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	rejectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Italic(true)

	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))
)

func bucketStyle(b models.Bucket) lipgloss.Style {
	switch b {
	case models.BucketHighProbability:
		return highStyle
	case models.BucketWatchlist:
		return watchStyle
	default:
		return rejectStyle
	}
}

func renderRun(run *models.DiscoveryRun) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Discovery %s", run.ID)))
	b.WriteString("\n")

	if run.IsFailed() {
		b.WriteString(errorStyle.Render("failed: " + run.Error))
		b.WriteString("\n")
		return b.String()
	}
	if run.Report == nil {
		b.WriteString(mutedStyle.Render("no report") + "\n")
		return b.String()
	}

	report := run.Report
	b.WriteString(renderSection("High probability multibaggers", models.BucketHighProbability, report.HighProbability))
	b.WriteString(renderSection("Early watchlist", models.BucketWatchlist, report.EarlyWatchlist))
	b.WriteString(renderSection("Rejected", models.BucketRejected, report.RejectedStocks))

	s := report.Summary
	fmt.Fprintf(&b, "analyzed %d  high %d  watchlist %d  rejected %d  hard-rejected %d  skipped %d  (%s, %dms)\n",
		s.TotalStocksAnalyzed, s.HighConvictionCount, s.WatchlistCount, s.RejectedCount,
		s.HardRejectedCount, s.SkippedCount, s.AnalysisDate, run.DurationMs)
	if len(run.Filtered) > 0 {
		b.WriteString(mutedStyle.Render("filtered by market cap: "+strings.Join(run.Filtered, ", ")) + "\n")
	}
	if s.Error != "" {
		b.WriteString(errorStyle.Render(s.Error) + "\n")
	}
	if run.ReportPath != "" {
		b.WriteString(mutedStyle.Render("report: "+run.ReportPath) + "\n")
	}
	b.WriteString("\n" + mutedStyle.Render(report.Disclaimer) + "\n")
	return b.String()
}

func renderSection(title string, bucket models.Bucket, verdicts []models.StockVerdict) string {
	header := bucketStyle(bucket).Render(fmt.Sprintf("%s (%d)", title, len(verdicts)))
	if len(verdicts) == 0 {
		return header + "\n\n"
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("SYMBOL", "PROB", "MCAP", "STAGE", "CONSENSUS", "TIMEFRAME")
	for _, v := range verdicts {
		t.Row(
			v.Symbol,
			fmt.Sprintf("%.2f", v.Probability),
			v.MarketCap,
			v.DetailedScores.TechnicalStage,
			v.AgentConsensus,
			v.ExpectedTimeframe,
		)
	}
	return header + "\n" + t.Render() + "\n\n"
}

func renderVerdict(v models.StockVerdict) string {
	var b strings.Builder
	style := bucketStyle(v.Bucket)

	b.WriteString(titleStyle.Render(v.Symbol))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s  probability %.2f  %s\n", style.Render(string(v.Bucket)), v.Probability, v.AgentConsensus)
	fmt.Fprintf(&b, "sector %s  market cap %s  timeframe %s\n", v.Sector, v.MarketCap, v.ExpectedTimeframe)

	d := v.DetailedScores
	fmt.Fprintf(&b, "fundamentals %.1f  management %.1f  smart money %.1f  stage %s  policy %s\n",
		d.FundamentalScore, d.ManagementScore, d.SmartMoneyScore, d.TechnicalStage, d.PolicyStrength)

	writeList(&b, "Triggers", v.KeyTriggers)
	writeList(&b, "Risks", v.MajorRisks)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title + ":\n")
	for _, item := range items {
		b.WriteString("  - " + item + "\n")
	}
}

func renderSets(sets []config.StockSet) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("SET", "STOCKS", "DESCRIPTION")
	for _, s := range sets {
		t.Row(s.Name, fmt.Sprintf("%d", len(s.Stocks)), s.Description)
	}
	return t.Render() + "\n"
}
