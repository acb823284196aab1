package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/picogrid/squad-sim/pkg/logger"
)

// Report formats
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// ReportConfig configures report generation
type ReportConfig struct {
	OutputDir        string
	Format           string                 // "json" or "markdown"
	IncludeEvents    bool                   // Attach the full event log
	SimulationConfig map[string]interface{} // Configuration used for the run
}

// Validate checks the configuration
func (c ReportConfig) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("report output directory is required")
	}
	switch c.Format {
	case FormatJSON, FormatMarkdown:
		return nil
	default:
		return fmt.Errorf("unsupported report format: %s", c.Format)
	}
}

// ReportGenerator turns a SimulationLogger into a run report.
type ReportGenerator struct {
	logger *SimulationLogger
	config ReportConfig
}

// Report is the end-of-run summary written to disk.
type Report struct {
	Metadata    ReportMetadata         `json:"metadata"`
	Outcome     string                 `json:"outcome"`
	Statistics  Statistics             `json:"statistics"`
	Entities    []EntityStats          `json:"entities"`
	Failures    []SimulationEvent      `json:"failures,omitempty"`
	Metrics     map[string]Metric      `json:"metrics"`
	Config      map[string]interface{} `json:"config,omitempty"`
	EventLog    []SimulationEvent      `json:"event_log,omitempty"`
	EventCounts map[string]int         `json:"event_counts"`
}

// ReportMetadata contains report metadata
type ReportMetadata struct {
	SimulationID    string    `json:"simulation_id"`
	GeneratedAt     time.Time `json:"generated_at"`
	SimulationStart time.Time `json:"simulation_start"`
	SimulationEnd   time.Time `json:"simulation_end"`
	Duration        string    `json:"duration"`
}

// Statistics aggregates the per-entity counters
type Statistics struct {
	Ticks              uint64  `json:"ticks"`
	Overruns           uint64  `json:"overruns"`
	OverrunRate        float64 `json:"overrun_rate"`
	EntitiesTotal      int     `json:"entities_total"`
	EntitiesDegraded   int     `json:"entities_degraded"`
	FramesPublished    int     `json:"frames_published"`
	FramesSkipped      int     `json:"frames_skipped"`
	TelemetryPublished int     `json:"telemetry_published"`
	Failures           int     `json:"failures"`
}

// NewReportGenerator creates a new report generator
func NewReportGenerator(logger *SimulationLogger, config ReportConfig) *ReportGenerator {
	return &ReportGenerator{
		logger: logger,
		config: config,
	}
}

// Generate builds a report from everything logged so far.
func (g *ReportGenerator) Generate() *Report {
	summary := g.logger.GetSummary()
	events := g.logger.GetEvents()

	report := &Report{
		Metadata: ReportMetadata{
			SimulationID:    summary.SimulationID,
			GeneratedAt:     time.Now(),
			SimulationStart: summary.StartTime,
			SimulationEnd:   summary.StartTime.Add(summary.Duration),
			Duration:        formatDuration(summary.Duration),
		},
		Entities:    summary.Entities,
		Metrics:     summary.Metrics,
		Config:      g.config.SimulationConfig,
		EventCounts: summary.EventCounts,
	}

	stats := Statistics{
		Ticks:            summary.Ticks,
		Overruns:         summary.Overruns,
		EntitiesTotal:    len(summary.Entities),
		EntitiesDegraded: summary.EventCounts[EventTypeDegraded],
	}
	if summary.Ticks > 0 {
		stats.OverrunRate = float64(summary.Overruns) / float64(summary.Ticks)
	}
	for _, e := range summary.Entities {
		stats.FramesPublished += e.FramesPublished
		stats.FramesSkipped += e.FramesSkipped
		stats.TelemetryPublished += e.TelemetryPublished
		stats.Failures += e.Failures
	}
	report.Statistics = stats

	for _, ev := range events {
		if ev.Severity == SeverityError || ev.Type == EventTypeDegraded {
			report.Failures = append(report.Failures, ev)
		}
	}
	if g.config.IncludeEvents {
		report.EventLog = events
	}

	report.Outcome = assessOutcome(stats)
	return report
}

func assessOutcome(s Statistics) string {
	switch {
	case s.EntitiesTotal == 0 || s.EntitiesDegraded == s.EntitiesTotal:
		return "No entity joined the room"
	case s.Failures == 0 && s.EntitiesDegraded == 0:
		return "All entities published without failures"
	default:
		return fmt.Sprintf("Completed with %d degraded entities and %d publish failures",
			s.EntitiesDegraded, s.Failures)
	}
}

// Save writes the report and returns its path.
func (g *ReportGenerator) Save(report *Report) (string, error) {
	if err := g.config.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(g.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := report.Metadata.GeneratedAt.Format("20060102_150405")
	filename := fmt.Sprintf("report_%s_%s", shortID(report.Metadata.SimulationID), timestamp)

	var (
		data []byte
		ext  string
		err  error
	)
	switch g.config.Format {
	case FormatJSON:
		ext = ".json"
		data, err = json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal report: %w", err)
		}
	case FormatMarkdown:
		ext = ".md"
		data = []byte(renderMarkdown(report))
	}

	path := filepath.Join(g.config.OutputDir, filename+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	logger.Successf("Report saved to: %s", path)
	return path, nil
}

func renderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Squad Simulation Report\n\n")
	sb.WriteString(fmt.Sprintf("**Simulation ID:** %s\n", r.Metadata.SimulationID))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n", r.Metadata.GeneratedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Duration:** %s\n\n", r.Metadata.Duration))

	sb.WriteString("## Outcome\n\n")
	sb.WriteString(r.Outcome + "\n\n")

	s := r.Statistics
	sb.WriteString("## Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- **Ticks:** %d (%d overruns, %.1f%%)\n", s.Ticks, s.Overruns, s.OverrunRate*100))
	sb.WriteString(fmt.Sprintf("- **Entities:** %d (%d degraded)\n", s.EntitiesTotal, s.EntitiesDegraded))
	sb.WriteString(fmt.Sprintf("- **Frames:** %d published, %d skipped\n", s.FramesPublished, s.FramesSkipped))
	sb.WriteString(fmt.Sprintf("- **GPS reports:** %d\n", s.TelemetryPublished))
	sb.WriteString(fmt.Sprintf("- **Failures:** %d\n\n", s.Failures))

	if len(r.Entities) > 0 {
		sb.WriteString("## Entities\n\n")
		sb.WriteString("| ID | Frames | Skipped | GPS | Failures |\n")
		sb.WriteString("|----|-------:|--------:|----:|---------:|\n")
		for _, e := range r.Entities {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d |\n",
				e.ID, e.FramesPublished, e.FramesSkipped, e.TelemetryPublished, e.Failures))
		}
		sb.WriteString("\n")
	}

	if len(r.Failures) > 0 {
		sb.WriteString("## Failures\n\n")
		for _, ev := range r.Failures {
			sb.WriteString(fmt.Sprintf("- `%s` %s\n", ev.Timestamp.Format("15:04:05.000"), ev.Message))
		}
		sb.WriteString("\n")
	}

	if len(r.Metrics) > 0 {
		sb.WriteString("## Metrics\n\n")
		names := make([]string, 0, len(r.Metrics))
		for n := range r.Metrics {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			m := r.Metrics[n]
			sb.WriteString(fmt.Sprintf("- **%s:** %.2f %s\n", n, m.Value, m.Unit))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
