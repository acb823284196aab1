package squad

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/picogrid/squad-sim/pkg/engine"
	"github.com/picogrid/squad-sim/pkg/entity"
	"github.com/picogrid/squad-sim/pkg/logger"
	"github.com/picogrid/squad-sim/pkg/metrics"
	"github.com/picogrid/squad-sim/pkg/reporting"
	"github.com/picogrid/squad-sim/pkg/roster"
	"github.com/picogrid/squad-sim/pkg/simulation"
	"github.com/picogrid/squad-sim/pkg/status"
	"github.com/picogrid/squad-sim/pkg/video"
)

// Name is the registry name of the squad simulation.
const Name = "Squad"

// SquadSimulation deploys a generated squad into a room and runs it until
// the duration elapses or it is stopped.
type SquadSimulation struct {
	config *Config

	mu         sync.Mutex
	cancel     context.CancelFunc
	stopped    bool
	identities []string
}

// NewSquadSimulation creates a new instance of the squad simulation
func NewSquadSimulation() simulation.Simulation {
	return &SquadSimulation{}
}

// Name returns the simulation name
func (s *SquadSimulation) Name() string {
	return Name
}

// Description returns the simulation description
func (s *SquadSimulation) Description() string {
	return "Squad of soldiers, tanks, trucks and UAVs streaming video and GPS into a shared room"
}

// Configure sets up the simulation with provided parameters
func (s *SquadSimulation) Configure(params map[string]interface{}) error {
	config, err := ValidateAndParse(params)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	s.config = config
	return nil
}

// Config returns the parsed configuration, nil before Configure.
func (s *SquadSimulation) Config() *Config {
	return s.config
}

// Identities returns the participant identities of the last run.
func (s *SquadSimulation) Identities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.identities...)
}

// BuildRoster generates the squad described by config. The seed actually
// used is returned so a run can be reproduced.
func BuildRoster(config *Config) ([]roster.EntityConfig, int64, error) {
	kinds, err := config.ParsedKinds()
	if err != nil {
		return nil, 0, err
	}

	assets, err := video.ListAssets(config.Squad.VideoDir)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list video assets: %w", err)
	}
	if len(assets) == 0 {
		logger.Warnf("No video assets in %q, entities will publish GPS only", config.Squad.VideoDir)
	}

	seed := config.Squad.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	gen := &roster.Generator{
		Count:   config.Squad.Count,
		Base:    config.Motion.Base,
		Scatter: config.Squad.Scatter,
		Kinds:   kinds,
		Rand:    rand.New(rand.NewSource(seed)),
	}
	squad, err := gen.Generate(assets)
	if err != nil {
		return nil, 0, err
	}
	return squad, seed, nil
}

// Run executes the simulation
func (s *SquadSimulation) Run(ctx context.Context, rt *simulation.Runtime) error {
	if s.config == nil {
		return errors.New("simulation is not configured")
	}
	if rt == nil || rt.Connector == nil || rt.Tokens == nil {
		return errors.New("runtime needs a connector and a token source")
	}
	cfg := s.config

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.cancel = cancel
	s.mu.Unlock()

	runID := uuid.NewString()
	opts := cfg.EntityOptions(rt.Room())

	squad, seed, err := BuildRoster(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate squad: %w", err)
	}

	logger.LogSubSection("Squad")
	logger.LogKeyValue("Run ID", runID)
	logger.LogKeyValue("Room", opts.Room)
	logger.LogKeyValue("Transport", rt.Environment.TransportOrDefault())
	logger.LogKeyValue("Entities", len(squad))
	logger.LogKeyValue("Seed", seed)
	logger.LogKeyValue("Rate", fmt.Sprintf("%g/s", cfg.Publish.Rate))

	model := cfg.Model()
	entities := make([]engine.Entity, len(squad))
	identities := make([]string, len(squad))
	for i, ec := range squad {
		entities[i] = entity.New(ec, opts, entity.Deps{
			Connector: rt.Connector,
			Tokens:    rt.Tokens,
			Model:     model,
			Open:      video.Open,
			Logger:    logger.WithPrefix(ec.ID),
		})
		identities[i] = ec.ID
	}

	s.mu.Lock()
	s.identities = identities
	s.mu.Unlock()

	// Heartbeat once per second of ticks
	heartbeat := uint64(math.Max(1, math.Round(cfg.Publish.Rate)))
	simLogger := reporting.NewSimulationLogger(runID, heartbeat)

	provider, err := metrics.New(metrics.Config{
		Enabled:     cfg.Observability.Metrics,
		ServiceName: "squad-sim",
		Interval:    cfg.Observability.MetricsInterval,
		Writer:      os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Metrics shutdown: %v", err)
		}
	}()

	recorder, err := metrics.NewRecorder(provider)
	if err != nil {
		return err
	}

	eng, err := engine.New(entities, engine.Config{
		Rate:              cfg.Publish.Rate,
		DisconnectTimeout: cfg.Run.DisconnectTimeout,
	},
		engine.WithObserver(simLogger),
		engine.WithObserver(recorder),
		engine.WithLogger(logger.WithPrefix("engine")),
	)
	if err != nil {
		return err
	}

	if cfg.Observability.StatusAddr != "" {
		srv := status.NewServer(eng, logger.Default())
		if _, err := srv.Start(cfg.Observability.StatusAddr); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	runCtx := ctx
	if cfg.Run.Duration > 0 {
		var cancelRun context.CancelFunc
		runCtx, cancelRun = context.WithTimeout(ctx, cfg.Run.Duration)
		defer cancelRun()
		logger.Infof("Running for %s", cfg.Run.Duration)
	} else {
		logger.Info("Running until interrupted")
	}

	runErr := eng.Run(runCtx)
	if runErr != nil {
		simLogger.LogError("Simulation ended with error", runErr)
	}

	simLogger.PrintSummary()

	if cfg.Observability.Report {
		gen := reporting.NewReportGenerator(simLogger, reporting.ReportConfig{
			OutputDir:        cfg.Observability.ReportDir,
			Format:           cfg.Observability.ReportFormat,
			IncludeEvents:    true,
			SimulationConfig: cfg.AsMap(),
		})
		if _, err := gen.Save(gen.Generate()); err != nil {
			logger.Errorf("Failed to save report: %v", err)
		}
	}

	return runErr
}

// Stop gracefully shuts down the simulation. Entities finish the phase in
// flight and leave the room before Run returns.
func (s *SquadSimulation) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// init registers the simulation
func init() {
	if err := simulation.DefaultRegistry.Register(Name, NewSquadSimulation); err != nil {
		logger.Errorf("Failed to register simulation: %v", err)
	}
}
