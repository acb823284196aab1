// Package engine drives a squad of entities through connect, a paced tick
// loop and disconnect as one unit.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/picogrid/squad-sim/pkg/entity"
	"github.com/picogrid/squad-sim/pkg/logger"
)

// Defaults for Config.
const (
	DefaultRate              = 15.0
	DefaultDisconnectTimeout = 10 * time.Second
)

var (
	// ErrNoEntitiesConnected is returned when every entity failed to connect.
	ErrNoEntitiesConnected = errors.New("engine: no entity connected")
	// ErrAlreadyRunning is returned by a second concurrent Run.
	ErrAlreadyRunning = errors.New("engine: already running")
)

// Entity is what the engine needs from a simulated unit.
type Entity interface {
	ID() string
	Connect(ctx context.Context) error
	StepVideo(ctx context.Context) entity.StepResult
	StepTelemetry(ctx context.Context) entity.StepResult
	Disconnect(ctx context.Context) error
	Snapshot() entity.Snapshot
}

// Config controls pacing and shutdown.
type Config struct {
	// Rate is the target number of ticks per second.
	Rate float64
	// DisconnectTimeout bounds the disconnect phase.
	DisconnectTimeout time.Duration
}

// Budget returns the wall-clock budget of one tick.
func (c Config) Budget() time.Duration {
	return time.Duration(float64(time.Second) / c.Rate)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("tick rate must be positive, got %v", c.Rate)
	}
	if c.DisconnectTimeout < 0 {
		return fmt.Errorf("disconnect timeout must not be negative, got %v", c.DisconnectTimeout)
	}
	return nil
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithObserver registers an observer. Repeated use adds more observers.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Snapshot is a consistent view of the squad between phases.
type Snapshot struct {
	Running   bool              `json:"running"`
	Tick      uint64            `json:"tick"`
	StartedAt time.Time         `json:"started_at"`
	Entities  []entity.Snapshot `json:"entities"`
}

// Engine owns the roster for the duration of Run.
type Engine struct {
	cfg       Config
	entities  []Entity
	clock     clockwork.Clock
	observers Observers
	log       logger.Logger

	running sync.Mutex

	mu   sync.RWMutex
	snap Snapshot
}

// New creates an engine over a fixed roster.
func New(entities []Entity, cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Rate == 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.DisconnectTimeout == 0 {
		cfg.DisconnectTimeout = DefaultDisconnectTimeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, errors.New("engine: roster is empty")
	}

	e := &Engine{
		cfg:      cfg,
		entities: entities,
		clock:    clockwork.NewRealClock(),
		log:      logger.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if len(e.observers) == 0 {
		e.observers = Observers{nopObserver{}}
	}
	e.publish(false, 0)
	return e, nil
}

// Snapshot returns the latest squad view. Safe for concurrent use.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := e.snap
	s.Entities = append([]entity.Snapshot(nil), e.snap.Entities...)
	return s
}

func (e *Engine) publish(running bool, tick uint64) {
	entities := make([]entity.Snapshot, len(e.entities))
	for i, ent := range e.entities {
		entities[i] = ent.Snapshot()
	}

	e.mu.Lock()
	e.snap.Running = running
	e.snap.Tick = tick
	e.snap.Entities = entities
	e.mu.Unlock()
}

// Run connects every entity, ticks until ctx is done, then disconnects every
// entity exactly once. Per-entity failures never abort the run. A stop
// request is honoured at phase boundaries; work already in flight finishes.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.TryLock() {
		return ErrAlreadyRunning
	}
	defer e.running.Unlock()

	// Entity work must not be cut short by the stop signal.
	work := context.WithoutCancel(ctx)

	e.mu.Lock()
	e.snap.StartedAt = e.clock.Now()
	e.mu.Unlock()

	active := e.connectAll(work)
	e.publish(true, 0)

	var runErr error
	if len(active) == 0 {
		runErr = ErrNoEntitiesConnected
	} else {
		e.log.Infof("Squad online: %d/%d entities connected", len(active), len(e.entities))
		e.loop(ctx, work, active)
	}

	e.disconnectAll(work)
	e.mu.RLock()
	tick := e.snap.Tick
	e.mu.RUnlock()
	e.publish(false, tick)

	return runErr
}

func (e *Engine) connectAll(ctx context.Context) []Entity {
	errs := make([]error, len(e.entities))

	var g errgroup.Group
	for i, ent := range e.entities {
		g.Go(func() error {
			errs[i] = ent.Connect(ctx)
			return nil
		})
	}
	_ = g.Wait()

	active := make([]Entity, 0, len(e.entities))
	for i, ent := range e.entities {
		e.observers.EntityConnected(ent.ID(), errs[i])
		if errs[i] == nil {
			active = append(active, ent)
		}
	}
	return active
}

func (e *Engine) loop(stop, work context.Context, active []Entity) {
	budget := e.cfg.Budget()
	results := make([]entity.StepResult, 2*len(active))

	var tick uint64
	for stop.Err() == nil {
		tick++
		started := e.clock.Now()

		e.phase(active, func(i int, ent Entity) {
			results[i] = ent.StepVideo(work)
		})

		if stop.Err() == nil {
			e.phase(active, func(i int, ent Entity) {
				results[len(active)+i] = ent.StepTelemetry(work)
			})
		} else {
			for i, ent := range active {
				results[len(active)+i] = entity.StepResult{ID: ent.ID(), Phase: entity.PhaseTelemetry, Status: entity.StatusSkipped}
			}
		}

		elapsed := e.clock.Since(started)
		e.publish(true, tick)
		e.observers.TickCompleted(TickReport{
			Tick:    tick,
			Started: started,
			Elapsed: elapsed,
			Budget:  budget,
			Results: append([]entity.StepResult(nil), results...),
		})

		// Overruns start the next tick at once; missed ticks are not replayed.
		wait := budget - elapsed
		if wait <= 0 {
			continue
		}
		select {
		case <-stop.Done():
		case <-e.clock.After(wait):
		}
	}
}

// phase runs fn for every entity concurrently and waits for all of them.
func (e *Engine) phase(active []Entity, fn func(i int, ent Entity)) {
	var g errgroup.Group
	for i, ent := range active {
		g.Go(func() error {
			fn(i, ent)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) disconnectAll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.DisconnectTimeout)
	defer cancel()

	errs := make([]error, len(e.entities))
	var g errgroup.Group
	for i, ent := range e.entities {
		g.Go(func() error {
			errs[i] = ent.Disconnect(ctx)
			return nil
		})
	}
	_ = g.Wait()

	for i, ent := range e.entities {
		if errs[i] != nil {
			e.log.WithPrefix(ent.ID()).Warnf("Disconnect error: %v", errs[i])
		}
		e.observers.EntityDisconnected(ent.ID(), errs[i])
	}
}
