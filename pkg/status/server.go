// Package status serves a read-only HTTP view of a running squad.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/picogrid/squad-sim/pkg/engine"
	"github.com/picogrid/squad-sim/pkg/entity"
	"github.com/picogrid/squad-sim/pkg/logger"
)

// SnapshotSource is satisfied by *engine.Engine.
type SnapshotSource interface {
	Snapshot() engine.Snapshot
}

// Health is the /healthz response body.
type Health struct {
	Healthy   bool   `json:"healthy"`
	Tick      uint64 `json:"tick"`
	Entities  int    `json:"entities"`
	Connected int    `json:"connected"`
}

// Server exposes /healthz, /status and /roster.geojson.
type Server struct {
	source SnapshotSource
	log    logger.Logger
	srv    *http.Server
}

// NewServer creates a server reading from source.
func NewServer(source SnapshotSource, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{source: source, log: log.WithPrefix("status")}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/roster.geojson", s.handleRoster)
	return r
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr uses port 0.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("status server listen on %s: %w", addr, err)
	}

	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("Status server error: %v", err)
		}
	}()

	s.log.Infof("Status API listening on http://%s", ln.Addr())
	return ln.Addr().String(), nil
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()
	health := Health{
		Healthy:  snap.Running,
		Tick:     snap.Tick,
		Entities: len(snap.Entities),
	}
	for _, e := range snap.Entities {
		if !e.Degraded && e.State == entity.StateConnected {
			health.Connected++
		}
	}

	code := http.StatusOK
	if !health.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, "application/json", health)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "application/json", s.source.Snapshot())
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()

	fc := make(geom.GeoJSONFeatureCollection, 0, len(snap.Entities))
	for _, e := range snap.Entities {
		point, err := geom.NewPoint(geom.Coordinates{
			XY: geom.XY{X: e.Position.Long, Y: e.Position.Lat},
		})
		if err != nil {
			s.log.Warnf("Skipping %s in roster: %v", e.ID, err)
			continue
		}
		fc = append(fc, geom.GeoJSONFeature{
			Geometry: point.AsGeometry(),
			ID:       e.ID,
			Properties: map[string]interface{}{
				"id":       e.ID,
				"kind":     string(e.Kind),
				"state":    e.State.String(),
				"degraded": e.Degraded,
				"video":    e.VideoActive,
			},
		})
	}

	writeJSON(w, http.StatusOK, "application/geo+json", fc)
}

func writeJSON(w http.ResponseWriter, code int, contentType string, v interface{}) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
