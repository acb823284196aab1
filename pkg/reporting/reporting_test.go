package reporting

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/squad-sim/pkg/engine"
	"github.com/picogrid/squad-sim/pkg/entity"
)

func tick(n uint64, elapsed time.Duration, results ...entity.StepResult) engine.TickReport {
	return engine.TickReport{
		Tick:    n,
		Elapsed: elapsed,
		Budget:  66 * time.Millisecond,
		Results: results,
	}
}

func playRun(sl *SimulationLogger) {
	sl.EntityConnected("Tank-42", nil)
	sl.EntityConnected("Uav-17", nil)
	sl.EntityConnected("Truck-11", errors.New("connection refused"))

	for i := uint64(1); i <= 3; i++ {
		sl.TickCompleted(tick(i, 10*time.Millisecond,
			entity.StepResult{ID: "Tank-42", Phase: entity.PhaseVideo, Status: entity.StatusPublished},
			entity.StepResult{ID: "Uav-17", Phase: entity.PhaseVideo, Status: entity.StatusNoFrame},
			entity.StepResult{ID: "Tank-42", Phase: entity.PhaseTelemetry, Status: entity.StatusPublished},
			entity.StepResult{ID: "Uav-17", Phase: entity.PhaseTelemetry, Status: entity.StatusPublished},
		))
	}
	sl.TickCompleted(tick(4, 100*time.Millisecond,
		entity.StepResult{ID: "Uav-17", Phase: entity.PhaseTelemetry, Status: entity.StatusFailed, Err: errors.New("closed")},
	))

	sl.EntityDisconnected("Tank-42", nil)
	sl.EntityDisconnected("Uav-17", nil)
	sl.EntityDisconnected("Truck-11", nil)
}

func TestSimulationLoggerSummary(t *testing.T) {
	var out bytes.Buffer
	sl := NewSimulationLoggerTo(&out, "run-1234567890", 2)
	playRun(sl)

	summary := sl.GetSummary()
	assert.Equal(t, uint64(4), summary.Ticks)
	assert.Equal(t, uint64(1), summary.Overruns)
	assert.Equal(t, 2, summary.EventCounts[EventTypeConnect])
	assert.Equal(t, 1, summary.EventCounts[EventTypeDegraded])
	assert.Equal(t, 1, summary.EventCounts[EventTypeFailure])
	assert.Equal(t, 1, summary.EventCounts[EventTypeOverrun])
	assert.Equal(t, 2, summary.EventCounts[EventTypeStatus], "heartbeat every 2 ticks")
	assert.Equal(t, 2, summary.EventCounts[EventTypeDisconnect], "only joined entities leave")

	require.Len(t, summary.Entities, 3)
	byID := map[string]EntityStats{}
	for _, e := range summary.Entities {
		byID[e.ID] = e
	}
	assert.Equal(t, 3, byID["Tank-42"].FramesPublished)
	assert.Equal(t, 3, byID["Uav-17"].FramesSkipped)
	assert.Equal(t, 3, byID["Uav-17"].TelemetryPublished)
	assert.Equal(t, 1, byID["Uav-17"].Failures)
	assert.False(t, byID["Tank-42"].Connected)

	assert.Equal(t, 4.0, summary.Metrics["ticks"].Value)
	assert.InDelta(t, 32.5, summary.Metrics["avg_tick"].Value, 0.001)

	assert.Contains(t, out.String(), "Simulation Started")
	assert.Contains(t, out.String(), "Degraded")

	out.Reset()
	sl.PrintSummary()
	assert.Contains(t, out.String(), "SIMULATION SUMMARY - run-1234")
	assert.Contains(t, out.String(), "Tank-42")
}

func TestHeartbeatDisabled(t *testing.T) {
	sl := NewSimulationLoggerTo(&bytes.Buffer{}, "run", 0)
	sl.TickCompleted(tick(1, time.Millisecond))
	assert.Zero(t, sl.GetSummary().EventCounts[EventTypeStatus])
}

func TestReportGenerate(t *testing.T) {
	sl := NewSimulationLoggerTo(&bytes.Buffer{}, "run-1234567890", 0)
	playRun(sl)

	report := NewReportGenerator(sl, ReportConfig{Format: FormatJSON}).Generate()
	assert.Equal(t, "run-1234567890", report.Metadata.SimulationID)
	assert.Equal(t, 3, report.Statistics.EntitiesTotal)
	assert.Equal(t, 1, report.Statistics.EntitiesDegraded)
	assert.Equal(t, 3, report.Statistics.FramesPublished)
	assert.Equal(t, 3, report.Statistics.FramesSkipped)
	assert.Equal(t, 6, report.Statistics.TelemetryPublished)
	assert.Equal(t, 1, report.Statistics.Failures)
	assert.InDelta(t, 0.25, report.Statistics.OverrunRate, 1e-9)
	assert.Len(t, report.Failures, 2)
	assert.Nil(t, report.EventLog)
	assert.Contains(t, report.Outcome, "1 degraded")
}

func TestReportOutcomeNoEntities(t *testing.T) {
	sl := NewSimulationLoggerTo(&bytes.Buffer{}, "run", 0)
	sl.EntityConnected("Tank-42", errors.New("refused"))

	report := NewReportGenerator(sl, ReportConfig{}).Generate()
	assert.Equal(t, "No entity joined the room", report.Outcome)
}

func TestReportSave(t *testing.T) {
	sl := NewSimulationLoggerTo(&bytes.Buffer{}, "run-1234567890", 0)
	playRun(sl)

	tests := []struct {
		format string
		ext    string
		check  func(t *testing.T, data []byte)
	}{
		{
			format: FormatJSON,
			ext:    ".json",
			check: func(t *testing.T, data []byte) {
				var decoded Report
				require.NoError(t, json.Unmarshal(data, &decoded))
				assert.Equal(t, "run-1234567890", decoded.Metadata.SimulationID)
				assert.NotEmpty(t, decoded.EventLog)
			},
		},
		{
			format: FormatMarkdown,
			ext:    ".md",
			check: func(t *testing.T, data []byte) {
				assert.True(t, strings.HasPrefix(string(data), "# Squad Simulation Report"))
				assert.Contains(t, string(data), "| Tank-42 | 3 | 0 | 3 | 0 |")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "reports")
			gen := NewReportGenerator(sl, ReportConfig{OutputDir: dir, Format: tt.format, IncludeEvents: true})

			path, err := gen.Save(gen.Generate())
			require.NoError(t, err)
			assert.Equal(t, tt.ext, filepath.Ext(path))
			assert.True(t, strings.HasPrefix(filepath.Base(path), "report_run-1234_"))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			tt.check(t, data)
		})
	}
}

func TestReportConfigValidate(t *testing.T) {
	assert.Error(t, ReportConfig{Format: FormatJSON}.Validate())
	assert.Error(t, ReportConfig{OutputDir: "x", Format: "html"}.Validate())
	assert.NoError(t, ReportConfig{OutputDir: "x", Format: FormatMarkdown}.Validate())
}
