package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/picogrid/squad-sim/pkg/engine"
	"github.com/picogrid/squad-sim/pkg/entity"
)

// SimulationLogger records squad events as they happen and prints a
// coloured running commentary. It is an engine.Observer.
type SimulationLogger struct {
	simulationID string
	startTime    time.Time
	heartbeat    uint64
	out          io.Writer
	events       []SimulationEvent
	metrics      map[string]Metric
	entities     map[string]*EntityStats
	ticks        uint64
	overruns     uint64
	totalTick    time.Duration
	mu           sync.RWMutex
}

// SimulationEvent represents a logged simulation event
type SimulationEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Severity  string                 `json:"severity"`
	EntityID  string                 `json:"entity,omitempty"`
	Tick      uint64                 `json:"tick,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Metric represents a tracked metric
type Metric struct {
	Name        string    `json:"name"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit"`
	LastUpdated time.Time `json:"last_updated"`
}

// EntityStats are per-entity publish counters.
type EntityStats struct {
	ID                 string `json:"id"`
	Connected          bool   `json:"connected"`
	FramesPublished    int    `json:"frames_published"`
	FramesSkipped      int    `json:"frames_skipped"`
	TelemetryPublished int    `json:"telemetry_published"`
	Failures           int    `json:"failures"`
}

// EventType constants
const (
	EventTypeConnect    = "connect"
	EventTypeDegraded   = "degraded"
	EventTypeFailure    = "publish_failure"
	EventTypeDisconnect = "disconnect"
	EventTypeStatus     = "status"
	EventTypeOverrun    = "overrun"
	EventTypeSystem     = "system"
)

// Severity constants
const (
	SeverityDebug   = "debug"
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

const maxEvents = 10000

var (
	colorDebug   = color.New(color.FgHiBlack)
	colorInfo    = color.New(color.FgCyan)
	colorWarning = color.New(color.FgYellow)
	colorError   = color.New(color.FgRed)
	colorSuccess = color.New(color.FgGreen)
)

// NewSimulationLogger creates a logger that prints a status line every
// heartbeat ticks. A heartbeat of zero disables the status line.
func NewSimulationLogger(simulationID string, heartbeat uint64) *SimulationLogger {
	return NewSimulationLoggerTo(os.Stdout, simulationID, heartbeat)
}

// NewSimulationLoggerTo is NewSimulationLogger with an explicit destination.
func NewSimulationLoggerTo(out io.Writer, simulationID string, heartbeat uint64) *SimulationLogger {
	sl := &SimulationLogger{
		simulationID: simulationID,
		startTime:    time.Now(),
		heartbeat:    heartbeat,
		out:          out,
		metrics:      make(map[string]Metric),
		entities:     make(map[string]*EntityStats),
	}

	sl.printf(SeverityInfo, "Simulation Started",
		"ID: %s | Time: %s", simulationID, sl.startTime.Format("15:04:05"))

	return sl
}

// SimulationID returns the run identifier.
func (sl *SimulationLogger) SimulationID() string { return sl.simulationID }

func (sl *SimulationLogger) EntityConnected(id string, err error) {
	sl.mu.Lock()
	stats := sl.statsLocked(id)
	if err == nil {
		stats.Connected = true
	}
	sl.mu.Unlock()

	if err != nil {
		sl.logEvent(SimulationEvent{
			Timestamp: time.Now(),
			Type:      EventTypeDegraded,
			Severity:  SeverityWarning,
			EntityID:  id,
			Message:   fmt.Sprintf("%s failed to join, excluded from ticks", id),
			Details:   map[string]interface{}{"error": err.Error()},
		})
		sl.printf(SeverityWarning, "Degraded", "%s | %v", id, err)
		return
	}

	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		Type:      EventTypeConnect,
		Severity:  SeverityInfo,
		EntityID:  id,
		Message:   fmt.Sprintf("%s joined", id),
	})
	sl.printf(SeverityDebug, "Connected", "%s", id)
}

func (sl *SimulationLogger) TickCompleted(report engine.TickReport) {
	sl.mu.Lock()
	sl.ticks++
	sl.totalTick += report.Elapsed
	overrun := report.Overrun()
	if overrun {
		sl.overruns++
	}

	var failures []entity.StepResult
	for _, res := range report.Results {
		stats := sl.statsLocked(res.ID)
		switch {
		case res.Status == entity.StatusFailed:
			stats.Failures++
			failures = append(failures, res)
		case res.Phase == entity.PhaseVideo && res.Status == entity.StatusPublished:
			stats.FramesPublished++
		case res.Phase == entity.PhaseVideo && res.Status == entity.StatusNoFrame:
			stats.FramesSkipped++
		case res.Phase == entity.PhaseTelemetry && res.Status == entity.StatusPublished:
			stats.TelemetryPublished++
		}
	}

	ticks, overruns := sl.ticks, sl.overruns
	avg := sl.totalTick / time.Duration(sl.ticks)
	sl.mu.Unlock()

	for _, res := range failures {
		msg := fmt.Sprintf("%s %s failed", res.ID, res.Phase)
		details := map[string]interface{}{"phase": string(res.Phase)}
		if res.Err != nil {
			details["error"] = res.Err.Error()
			msg = fmt.Sprintf("%s: %v", msg, res.Err)
		}
		sl.logEvent(SimulationEvent{
			Timestamp: time.Now(),
			Type:      EventTypeFailure,
			Severity:  SeverityError,
			EntityID:  res.ID,
			Tick:      report.Tick,
			Message:   msg,
			Details:   details,
		})
	}

	if overrun {
		sl.logEvent(SimulationEvent{
			Timestamp: time.Now(),
			Type:      EventTypeOverrun,
			Severity:  SeverityWarning,
			Tick:      report.Tick,
			Message:   fmt.Sprintf("tick %d took %v (budget %v)", report.Tick, report.Elapsed, report.Budget),
		})
	}

	sl.UpdateMetric("ticks", float64(ticks), "count")
	sl.UpdateMetric("overruns", float64(overruns), "count")
	sl.UpdateMetric("avg_tick", float64(avg.Microseconds())/1000, "ms")

	if sl.heartbeat > 0 && report.Tick%sl.heartbeat == 0 {
		frames := report.Count(entity.PhaseVideo, entity.StatusPublished)
		gps := report.Count(entity.PhaseTelemetry, entity.StatusPublished)
		sl.logEvent(SimulationEvent{
			Timestamp: time.Now(),
			Type:      EventTypeStatus,
			Severity:  SeverityInfo,
			Tick:      report.Tick,
			Message:   fmt.Sprintf("tick %d: %d frames, %d reports", report.Tick, frames, gps),
			Details: map[string]interface{}{
				"frames":    frames,
				"telemetry": gps,
				"failures":  len(failures),
			},
		})
		sl.printf(SeverityInfo, "Status",
			"Tick: %d | Frames: %d | GPS: %d | Failures: %d | Avg: %v",
			report.Tick, frames, gps, len(failures), avg.Round(time.Microsecond))
	}
}

func (sl *SimulationLogger) EntityDisconnected(id string, err error) {
	sl.mu.Lock()
	stats := sl.statsLocked(id)
	wasConnected := stats.Connected
	stats.Connected = false
	sl.mu.Unlock()

	if !wasConnected {
		return
	}

	ev := SimulationEvent{
		Timestamp: time.Now(),
		Type:      EventTypeDisconnect,
		Severity:  SeverityInfo,
		EntityID:  id,
		Message:   fmt.Sprintf("%s left", id),
	}
	if err != nil {
		ev.Severity = SeverityWarning
		ev.Details = map[string]interface{}{"error": err.Error()}
		sl.printf(SeverityWarning, "Disconnect", "%s | %v", id, err)
	}
	sl.logEvent(ev)
}

// LogError logs an error event
func (sl *SimulationLogger) LogError(message string, err error) {
	sl.logEvent(SimulationEvent{
		Timestamp: time.Now(),
		Type:      EventTypeSystem,
		Severity:  SeverityError,
		Message:   message,
		Details:   map[string]interface{}{"error": err.Error()},
	})
	sl.printf(SeverityError, "Error", "%s: %v", message, err)
}

// UpdateMetric updates a metric value
func (sl *SimulationLogger) UpdateMetric(name string, value float64, unit string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.metrics[name] = Metric{
		Name:        name,
		Value:       value,
		Unit:        unit,
		LastUpdated: time.Now(),
	}
}

// GetEvents returns all logged events
func (sl *SimulationLogger) GetEvents() []SimulationEvent {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	events := make([]SimulationEvent, len(sl.events))
	copy(events, sl.events)
	return events
}

// GetSummary returns a simulation summary
func (sl *SimulationLogger) GetSummary() SimulationSummary {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	eventCounts := make(map[string]int)
	for _, event := range sl.events {
		eventCounts[event.Type]++
	}

	metrics := make(map[string]Metric, len(sl.metrics))
	for k, v := range sl.metrics {
		metrics[k] = v
	}

	entities := make([]EntityStats, 0, len(sl.entities))
	for _, s := range sl.entities {
		entities = append(entities, *s)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	return SimulationSummary{
		SimulationID: sl.simulationID,
		StartTime:    sl.startTime,
		Duration:     time.Since(sl.startTime),
		Ticks:        sl.ticks,
		Overruns:     sl.overruns,
		TotalEvents:  len(sl.events),
		EventCounts:  eventCounts,
		Entities:     entities,
		Metrics:      metrics,
	}
}

// SimulationSummary represents a summary of the simulation
type SimulationSummary struct {
	SimulationID string
	StartTime    time.Time
	Duration     time.Duration
	Ticks        uint64
	Overruns     uint64
	TotalEvents  int
	EventCounts  map[string]int
	Entities     []EntityStats
	Metrics      map[string]Metric
}

// PrintSummary prints a formatted summary
func (sl *SimulationLogger) PrintSummary() {
	summary := sl.GetSummary()
	w := sl.out

	colorSuccess.Fprintln(w, "\n============================================================")
	colorSuccess.Fprintf(w, "  SIMULATION SUMMARY - %s\n", shortID(summary.SimulationID))
	colorSuccess.Fprintln(w, "============================================================")

	fmt.Fprintf(w, "\nDuration: %v | Ticks: %d | Overruns: %d | Events: %d\n",
		summary.Duration.Round(time.Millisecond), summary.Ticks, summary.Overruns, summary.TotalEvents)

	if len(summary.EventCounts) > 0 {
		fmt.Fprintln(w, "\nEvent Distribution:")
		types := make([]string, 0, len(summary.EventCounts))
		for t := range summary.EventCounts {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(w, "   %-20s: %d\n", t, summary.EventCounts[t])
		}
	}

	if len(summary.Entities) > 0 {
		fmt.Fprintln(w, "\nEntities:")
		fmt.Fprintf(w, "   %-14s %8s %8s %8s %8s\n", "ID", "FRAMES", "SKIPPED", "GPS", "FAILED")
		for _, e := range summary.Entities {
			fmt.Fprintf(w, "   %-14s %8d %8d %8d %8d\n",
				e.ID, e.FramesPublished, e.FramesSkipped, e.TelemetryPublished, e.Failures)
		}
	}

	if len(summary.Metrics) > 0 {
		fmt.Fprintln(w, "\nPerformance Metrics:")
		names := make([]string, 0, len(summary.Metrics))
		for n := range summary.Metrics {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			m := summary.Metrics[n]
			fmt.Fprintf(w, "   %-20s: %.2f %s\n", n, m.Value, m.Unit)
		}
	}

	colorSuccess.Fprintln(w, "\n============================================================")
}

func (sl *SimulationLogger) statsLocked(id string) *EntityStats {
	s, ok := sl.entities[id]
	if !ok {
		s = &EntityStats{ID: id}
		sl.entities[id] = s
	}
	return s
}

func (sl *SimulationLogger) logEvent(event SimulationEvent) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.events = append(sl.events, event)
	if len(sl.events) > maxEvents {
		sl.events = sl.events[len(sl.events)-maxEvents:]
	}
}

func (sl *SimulationLogger) printf(severity, eventType, format string, args ...interface{}) {
	var severityColor *color.Color
	switch severity {
	case SeverityDebug:
		severityColor = colorDebug
	case SeverityWarning:
		severityColor = colorWarning
	case SeverityError:
		severityColor = colorError
	default:
		severityColor = colorInfo
	}

	fmt.Fprintf(sl.out, "[%s] %s %s | %s\n",
		time.Now().Format("15:04:05.000"),
		severityColor.Sprintf("%-8s", severity),
		eventType,
		fmt.Sprintf(format, args...))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
