package metrics

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/picogrid/squad-sim/pkg/engine"
	"github.com/picogrid/squad-sim/pkg/entity"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestRecorderCounts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	p := NewWithReader("squad-sim-test", reader)
	defer p.Shutdown(context.Background())

	r, err := NewRecorder(p)
	require.NoError(t, err)

	r.EntityConnected("Tank-42", nil)
	r.EntityConnected("Uav-17", nil)
	r.EntityConnected("Truck-11", errors.New("refused"))

	r.TickCompleted(engine.TickReport{
		Tick:    1,
		Elapsed: 5 * time.Millisecond,
		Budget:  66 * time.Millisecond,
		Results: []entity.StepResult{
			{ID: "Tank-42", Phase: entity.PhaseVideo, Status: entity.StatusPublished},
			{ID: "Uav-17", Phase: entity.PhaseVideo, Status: entity.StatusNoFrame},
			{ID: "Tank-42", Phase: entity.PhaseTelemetry, Status: entity.StatusPublished},
			{ID: "Uav-17", Phase: entity.PhaseTelemetry, Status: entity.StatusFailed},
		},
	})

	sums := collect(t, reader)
	assert.Equal(t, int64(1), sums["squad.frames.published"])
	assert.Equal(t, int64(1), sums["squad.frames.skipped"])
	assert.Equal(t, int64(1), sums["squad.telemetry.published"])
	assert.Equal(t, int64(2), sums["squad.publish.failures"])
	assert.Equal(t, int64(2), sums["squad.entities.connected"])
	assert.Equal(t, int64(1), sums["squad.ticks"])

	r.EntityDisconnected("Tank-42", nil)
	r.EntityDisconnected("Uav-17", nil)
	r.EntityDisconnected("Truck-11", nil)

	sums = collect(t, reader)
	assert.Equal(t, int64(0), sums["squad.entities.connected"])
}

func TestDisabledProvider(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)

	r, err := NewRecorder(p)
	require.NoError(t, err)
	r.EntityConnected("Tank-42", nil)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestEnabledProviderRequiresWriter(t *testing.T) {
	_, err := New(Config{Enabled: true})
	assert.Error(t, err)

	var buf bytes.Buffer
	p, err := New(Config{Enabled: true, ServiceName: "squad-sim", Writer: &buf, Interval: time.Hour})
	require.NoError(t, err)

	r, err := NewRecorder(p)
	require.NoError(t, err)
	r.EntityConnected("Tank-42", nil)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "squad.entities.connected")
}
