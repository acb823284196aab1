package status

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/squad-sim/pkg/engine"
	"github.com/picogrid/squad-sim/pkg/entity"
	"github.com/picogrid/squad-sim/pkg/geo"
	"github.com/picogrid/squad-sim/pkg/logger"
	"github.com/picogrid/squad-sim/pkg/roster"
)

type fixedSource struct{ snap engine.Snapshot }

func (f fixedSource) Snapshot() engine.Snapshot { return f.snap }

func squadSnapshot(running bool) engine.Snapshot {
	return engine.Snapshot{
		Running:   running,
		Tick:      42,
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Entities: []entity.Snapshot{
			{
				ID:          "Tank-42",
				Kind:        roster.KindTank,
				State:       entity.StateConnected,
				VideoActive: true,
				Position:    geo.Position{Lat: 17.42, Long: 78.47},
			},
			{
				ID:       "Uav-17",
				Kind:     roster.KindAerial,
				State:    entity.StateUnconnected,
				Degraded: true,
				Position: geo.Position{Lat: 17.43, Long: 78.46},
			},
		},
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		running bool
		code    int
	}{
		{"running", true, http.StatusOK},
		{"stopped", false, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewServer(fixedSource{squadSnapshot(tt.running)}, logger.Discard()).Handler()
			rec := get(t, h, "/healthz")
			assert.Equal(t, tt.code, rec.Code)

			var health Health
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
			assert.Equal(t, tt.running, health.Healthy)
			assert.Equal(t, uint64(42), health.Tick)
			assert.Equal(t, 2, health.Entities)
			assert.Equal(t, 1, health.Connected)
		})
	}
}

func TestStatus(t *testing.T) {
	h := NewServer(fixedSource{squadSnapshot(true)}, logger.Discard()).Handler()
	rec := get(t, h, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["running"])
	entities := body["entities"].([]interface{})
	require.Len(t, entities, 2)
	first := entities[0].(map[string]interface{})
	assert.Equal(t, "Tank-42", first["id"])
	assert.Equal(t, "tank", first["type"])
	assert.Equal(t, "connected", first["state"])
}

func TestRosterGeoJSON(t *testing.T) {
	h := NewServer(fixedSource{squadSnapshot(true)}, logger.Discard()).Handler()
	rec := get(t, h, "/roster.geojson")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 2)

	tank := fc.Features[0]
	assert.Equal(t, "Point", tank.Geometry.Type)
	assert.InDeltaSlice(t, []float64{78.47, 17.42}, tank.Geometry.Coordinates, 1e-9, "GeoJSON is long,lat")
	assert.Equal(t, "Tank-42", tank.Properties["id"])
	assert.Equal(t, "tank", tank.Properties["kind"])
	assert.Equal(t, true, tank.Properties["video"])
	assert.Equal(t, true, fc.Features[1].Properties["degraded"])
}

func TestRosterSkipsInvalidPositions(t *testing.T) {
	snap := squadSnapshot(true)
	snap.Entities[1].Position = geo.Position{Lat: math.NaN(), Long: 78.46}
	h := NewServer(fixedSource{snap}, logger.Discard()).Handler()

	rec := get(t, h, "/roster.geojson")
	require.Equal(t, http.StatusOK, rec.Code)

	var fc struct {
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Tank-42", fc.Features[0].Properties["id"])
}

func TestUnknownRoute(t *testing.T) {
	h := NewServer(fixedSource{squadSnapshot(true)}, logger.Discard()).Handler()
	assert.Equal(t, http.StatusNotFound, get(t, h, "/nope").Code)
}

func TestStartAndShutdown(t *testing.T) {
	s := NewServer(fixedSource{squadSnapshot(true)}, logger.Discard())
	addr, err := s.Start("127.0.0.1:0")
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
