package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/squad-sim/pkg/entity"
	"github.com/picogrid/squad-sim/pkg/geo"
	"github.com/picogrid/squad-sim/pkg/logger"
	"github.com/picogrid/squad-sim/pkg/roster"
	"github.com/picogrid/squad-sim/pkg/session/loopback"
	"github.com/picogrid/squad-sim/pkg/video"
)

type identityTokens struct{}

func (identityTokens) Token(_ context.Context, identity, _ string) (string, error) {
	return identity, nil
}

type solidDecoder struct{ pos int }

func (d *solidDecoder) Read() (video.Frame, error) {
	if d.pos >= 3 {
		return video.Frame{}, io.EOF
	}
	d.pos++
	return video.Frame{Width: 320, Height: 240, Format: video.RGBA, Data: make([]byte, 320*240*4)}, nil
}
func (d *solidDecoder) Rewind() error { d.pos = 0; return nil }
func (d *solidDecoder) Close() error  { return nil }

func openSolid(string) (video.Decoder, error) { return &solidDecoder{}, nil }

func squad(t *testing.T, hub *loopback.Hub, n int) []Entity {
	t.Helper()

	deps := entity.Deps{
		Connector: hub,
		Tokens:    identityTokens{},
		Model:     geo.DefaultModel(),
		Open:      openSolid,
		Logger:    logger.Discard(),
	}
	out := make([]Entity, n)
	for i := 0; i < n; i++ {
		cfg := roster.EntityConfig{
			ID:        fmt.Sprintf("Tank-%d", 10+i),
			Kind:      roster.KindTank,
			Start:     geo.Position{Lat: geo.DefaultBaseLat, Long: geo.DefaultBaseLong},
			Heading:   geo.Heading{DLat: 1, DLong: -1},
			VideoPath: "clip.mp4",
		}
		out[i] = entity.New(cfg, entity.DefaultOptions("war-room"), deps)
	}
	return out
}

// recorder keeps every report and can stop the run after a number of ticks.
type recorder struct {
	mu           sync.Mutex
	connected    map[string]error
	disconnected map[string]int
	reports      []TickReport
	stopAfter    uint64
	cancel       context.CancelFunc
}

func newRecorder(stopAfter uint64, cancel context.CancelFunc) *recorder {
	return &recorder{
		connected:    map[string]error{},
		disconnected: map[string]int{},
		stopAfter:    stopAfter,
		cancel:       cancel,
	}
}

func (r *recorder) EntityConnected(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected[id] = err
}

func (r *recorder) TickCompleted(report TickReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	if r.stopAfter > 0 && report.Tick >= r.stopAfter && r.cancel != nil {
		r.cancel()
	}
}

func (r *recorder) EntityDisconnected(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected[id]++
}

func TestRunPhasesAreBarriers(t *testing.T) {
	hub := loopback.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := newRecorder(5, cancel)

	eng, err := New(squad(t, hub, 4), Config{Rate: 1000}, WithObserver(rec), WithLogger(logger.Discard()))
	require.NoError(t, err)
	require.NoError(t, eng.Run(ctx))

	var kinds []loopback.EventKind
	for _, ev := range hub.Events() {
		if ev.Kind == loopback.EventFrame || ev.Kind == loopback.EventData {
			kinds = append(kinds, ev.Kind)
		}
	}
	require.Len(t, kinds, 5*8)
	for tick := 0; tick < 5; tick++ {
		block := kinds[tick*8 : tick*8+8]
		for i, k := range block {
			want := loopback.EventFrame
			if i >= 4 {
				want = loopback.EventData
			}
			assert.Equal(t, want, k, "tick %d position %d", tick+1, i)
		}
	}

	assert.Len(t, rec.reports, 5)
	for _, rep := range rec.reports {
		assert.Equal(t, 4, rep.Count(entity.PhaseVideo, entity.StatusPublished))
		assert.Equal(t, 4, rep.Count(entity.PhaseTelemetry, entity.StatusPublished))
	}
	for id, n := range rec.disconnected {
		assert.Equal(t, 1, n, id)
	}
	assert.Len(t, rec.disconnected, 4)
	assert.Empty(t, hub.Participants("war-room"))

	snap := eng.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, uint64(5), snap.Tick)
	for _, s := range snap.Entities {
		assert.Equal(t, entity.StateDisconnected, s.State)
		assert.Equal(t, uint64(5), s.TelemetryPublished)
	}
}

func TestRunPacingWithFakeClock(t *testing.T) {
	hub := loopback.NewHub()
	fc := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	rec := newRecorder(0, nil)

	cfg := Config{Rate: 15}
	eng, err := New(squad(t, hub, 2), cfg, WithClock(fc), WithObserver(rec), WithLogger(logger.Discard()))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	// Ten simulated seconds: the first tick at t=0, then one per budget.
	budget := cfg.Budget()
	for i := 0; i < 149; i++ {
		fc.BlockUntil(1)
		fc.Advance(budget)
	}
	fc.BlockUntil(1)
	require.Less(t, 149*budget, 10*time.Second)
	cancel()
	require.NoError(t, <-done)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	ticks := len(rec.reports)
	assert.LessOrEqual(t, ticks, 150)
	assert.GreaterOrEqual(t, ticks, 1)
	assert.Equal(t, 150, ticks)
	for _, rep := range rec.reports {
		assert.False(t, rep.Overrun())
	}
}

// slowEntity counts calls and can block or cancel inside a phase.
type slowEntity struct {
	id          string
	videoDelay  time.Duration
	onVideo     func()
	connectErr  error
	video       atomic.Int32
	telemetry   atomic.Int32
	disconnects atomic.Int32
}

func (s *slowEntity) ID() string { return s.id }
func (s *slowEntity) Connect(context.Context) error {
	return s.connectErr
}
func (s *slowEntity) StepVideo(ctx context.Context) entity.StepResult {
	s.video.Add(1)
	if s.onVideo != nil {
		s.onVideo()
	}
	time.Sleep(s.videoDelay)
	if ctx.Err() != nil {
		return entity.StepResult{ID: s.id, Phase: entity.PhaseVideo, Status: entity.StatusFailed, Err: ctx.Err()}
	}
	return entity.StepResult{ID: s.id, Phase: entity.PhaseVideo, Status: entity.StatusPublished}
}
func (s *slowEntity) StepTelemetry(context.Context) entity.StepResult {
	s.telemetry.Add(1)
	return entity.StepResult{ID: s.id, Phase: entity.PhaseTelemetry, Status: entity.StatusPublished}
}
func (s *slowEntity) Disconnect(context.Context) error {
	s.disconnects.Add(1)
	return nil
}
func (s *slowEntity) Snapshot() entity.Snapshot { return entity.Snapshot{ID: s.id} }

func TestRunOverrunStartsNextTickImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := newRecorder(3, cancel)
	slow := &slowEntity{id: "Truck-20", videoDelay: 30 * time.Millisecond}

	eng, err := New([]Entity{slow}, Config{Rate: 100}, WithObserver(rec), WithLogger(logger.Discard()))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, eng.Run(ctx))

	assert.Len(t, rec.reports, 3)
	for _, rep := range rec.reports {
		assert.True(t, rep.Overrun())
	}
	// Three overrunning ticks with no catch-up sleeps.
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestStopMidPhaseFinishesInFlightWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := newRecorder(0, nil)

	a := &slowEntity{id: "Soldier-11", videoDelay: 20 * time.Millisecond, onVideo: cancel}
	b := &slowEntity{id: "Soldier-12", videoDelay: 20 * time.Millisecond}

	eng, err := New([]Entity{a, b}, Config{Rate: 15}, WithObserver(rec), WithLogger(logger.Discard()))
	require.NoError(t, err)
	require.NoError(t, eng.Run(ctx))

	require.Len(t, rec.reports, 1)
	rep := rec.reports[0]
	assert.Equal(t, 2, rep.Count(entity.PhaseVideo, entity.StatusPublished), "in-flight video not cancelled")
	assert.Equal(t, 2, rep.Count(entity.PhaseTelemetry, entity.StatusSkipped))
	assert.Equal(t, int32(0), a.telemetry.Load())
	assert.Equal(t, int32(1), a.disconnects.Load())
	assert.Equal(t, int32(1), b.disconnects.Load())
}

func TestDegradedEntitiesAreExcluded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := newRecorder(4, cancel)

	good := &slowEntity{id: "Tank-30"}
	bad := &slowEntity{id: "Tank-31", connectErr: errors.New("join refused")}

	eng, err := New([]Entity{good, bad}, Config{Rate: 1000}, WithObserver(rec), WithLogger(logger.Discard()))
	require.NoError(t, err)
	require.NoError(t, eng.Run(ctx))

	assert.Equal(t, int32(4), good.video.Load())
	assert.Equal(t, int32(0), bad.video.Load())
	assert.Equal(t, int32(0), bad.telemetry.Load())
	assert.Equal(t, int32(1), bad.disconnects.Load(), "disconnect attempted regardless of degraded status")
	assert.Error(t, rec.connected["Tank-31"])
	assert.NoError(t, rec.connected["Tank-30"])
}

func TestAllConnectFailures(t *testing.T) {
	hub := loopback.NewHub()
	entities := squad(t, hub, 3)
	for _, e := range entities {
		hub.FailJoin(e.ID(), errors.New("server full"))
	}
	rec := newRecorder(0, nil)

	eng, err := New(entities, Config{}, WithObserver(rec), WithLogger(logger.Discard()))
	require.NoError(t, err)

	err = eng.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoEntitiesConnected)
	assert.Empty(t, rec.reports)
	assert.Len(t, rec.disconnected, 3)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)

	_, err = New([]Entity{&slowEntity{id: "x"}}, Config{Rate: -1})
	assert.Error(t, err)

	eng, err := New([]Entity{&slowEntity{id: "x"}}, Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultRate, eng.cfg.Rate)
	assert.Equal(t, time.Second/15, eng.cfg.Budget())
}

func TestRunTwiceConcurrently(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	var once sync.Once
	ent := &slowEntity{id: "Uav-50", onVideo: func() { once.Do(func() { close(started) }) }}

	eng, err := New([]Entity{ent}, Config{Rate: 50}, WithLogger(logger.Discard()))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	<-started

	assert.ErrorIs(t, eng.Run(context.Background()), ErrAlreadyRunning)
	cancel()
	assert.NoError(t, <-done)
}
