package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/picogrid/squad-sim/pkg/engine"
	"github.com/picogrid/squad-sim/pkg/entity"
)

const instrumentationName = "github.com/picogrid/squad-sim/pkg/metrics"

// Recorder turns engine events into counters and a tick duration histogram.
type Recorder struct {
	ctx    context.Context
	joined map[string]bool

	framesPublished    metric.Int64Counter
	framesSkipped      metric.Int64Counter
	telemetryPublished metric.Int64Counter
	publishFailures    metric.Int64Counter
	connected          metric.Int64UpDownCounter
	tickDuration       metric.Float64Histogram
	ticks              metric.Int64Counter
}

// NewRecorder creates the instruments on a meter from p.
func NewRecorder(p *Provider) (*Recorder, error) {
	m := p.Meter(instrumentationName)
	r := &Recorder{ctx: context.Background(), joined: make(map[string]bool)}

	var err error
	if r.framesPublished, err = m.Int64Counter("squad.frames.published",
		metric.WithDescription("Video frames pushed to a published track")); err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}
	if r.framesSkipped, err = m.Int64Counter("squad.frames.skipped",
		metric.WithDescription("Video steps with no frame to publish")); err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}
	if r.telemetryPublished, err = m.Int64Counter("squad.telemetry.published",
		metric.WithDescription("GPS reports published")); err != nil {
		return nil, fmt.Errorf("creating telemetry counter: %w", err)
	}
	if r.publishFailures, err = m.Int64Counter("squad.publish.failures",
		metric.WithDescription("Failed video or telemetry publishes")); err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}
	if r.connected, err = m.Int64UpDownCounter("squad.entities.connected",
		metric.WithDescription("Entities currently in the room")); err != nil {
		return nil, fmt.Errorf("creating connected gauge: %w", err)
	}
	if r.tickDuration, err = m.Float64Histogram("squad.tick.duration",
		metric.WithDescription("Time spent in the publish phases of a tick"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating tick histogram: %w", err)
	}
	if r.ticks, err = m.Int64Counter("squad.ticks",
		metric.WithDescription("Completed ticks")); err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	return r, nil
}

func (r *Recorder) EntityConnected(id string, err error) {
	if err != nil {
		r.publishFailures.Add(r.ctx, 1, metric.WithAttributes(
			attribute.String("entity", id),
			attribute.String("phase", string(entity.PhaseConnect)),
		))
		return
	}
	r.joined[id] = true
	r.connected.Add(r.ctx, 1)
}

func (r *Recorder) TickCompleted(report engine.TickReport) {
	r.ticks.Add(r.ctx, 1, metric.WithAttributes(attribute.Bool("overrun", report.Overrun())))
	r.tickDuration.Record(r.ctx, float64(report.Elapsed.Microseconds())/1000)

	for _, res := range report.Results {
		switch {
		case res.Status == entity.StatusFailed:
			r.publishFailures.Add(r.ctx, 1, metric.WithAttributes(
				attribute.String("entity", res.ID),
				attribute.String("phase", string(res.Phase)),
			))
		case res.Phase == entity.PhaseVideo && res.Status == entity.StatusPublished:
			r.framesPublished.Add(r.ctx, 1)
		case res.Phase == entity.PhaseVideo && res.Status == entity.StatusNoFrame:
			r.framesSkipped.Add(r.ctx, 1)
		case res.Phase == entity.PhaseTelemetry && res.Status == entity.StatusPublished:
			r.telemetryPublished.Add(r.ctx, 1)
		}
	}
}

func (r *Recorder) EntityDisconnected(id string, err error) {
	// Disconnect also runs for entities that never joined.
	if !r.joined[id] {
		return
	}
	delete(r.joined, id)
	r.connected.Add(r.ctx, -1)
	if err != nil {
		r.publishFailures.Add(r.ctx, 1, metric.WithAttributes(
			attribute.String("entity", id),
			attribute.String("phase", string(entity.PhaseDisconnect)),
		))
	}
}
