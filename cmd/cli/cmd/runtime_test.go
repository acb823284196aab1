package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/squad-sim/pkg/auth"
	"github.com/picogrid/squad-sim/pkg/config"
	"github.com/picogrid/squad-sim/pkg/session/loopback"
	"github.com/picogrid/squad-sim/pkg/session/relay"
	"github.com/picogrid/squad-sim/pkg/simulation"
)

func noCredentials(string, string) (auth.Credentials, error) {
	return auth.Credentials{}, errors.New("credentials should not be resolved")
}

func staticCredentials(string, string) (auth.Credentials, error) {
	return auth.Credentials{APIKey: "key", APISecret: "a-long-enough-test-secret"}, nil
}

func TestBuildRuntimeLoopback(t *testing.T) {
	env := config.Environment{Name: "dry", Transport: config.TransportLoopback}

	rt, err := buildRuntime(context.Background(), env, noCredentials)
	require.NoError(t, err)

	assert.Equal(t, DefaultRoom, rt.Room())
	assert.Nil(t, rt.Rooms)
	hub, ok := rt.Connector.(*loopback.Hub)
	require.True(t, ok)

	token, err := rt.Tokens.Token(context.Background(), "Tank-1", "Tank-1")
	require.NoError(t, err)

	_, err = hub.Join(context.Background(), rt.Room(), token)
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Count("Tank-1", loopback.EventJoin))
}

func TestBuildRuntimeRelay(t *testing.T) {
	env := config.Environment{
		Name:      "relay",
		URL:       "ws://localhost:9000",
		Transport: config.TransportRelay,
		Room:      "ops",
	}

	rt, err := buildRuntime(context.Background(), env, staticCredentials)
	require.NoError(t, err)

	assert.Equal(t, "ops", rt.Room())
	assert.IsType(t, &relay.Connector{}, rt.Connector)
	assert.Nil(t, rt.Rooms)
}

func TestBuildRuntimeErrors(t *testing.T) {
	t.Run("invalid environment", func(t *testing.T) {
		_, err := buildRuntime(context.Background(), config.Environment{Name: "x", Transport: "carrier-pigeon"}, staticCredentials)
		assert.Error(t, err)
	})

	t.Run("missing credentials", func(t *testing.T) {
		env := config.Environment{Name: "relay", URL: "ws://localhost:9000", Transport: config.TransportRelay}
		_, err := buildRuntime(context.Background(), env, noCredentials)
		assert.ErrorContains(t, err, "failed to resolve credentials")
	})
}

type stubSimulation struct {
	simulation.Simulation
	ids []string
}

func (s *stubSimulation) Identities() []string { return s.ids }

func TestCleanupRoomWithoutAdminClient(t *testing.T) {
	rt := &simulation.Runtime{Environment: config.Environment{Room: "ops"}}
	// No admin client means nothing to call
	assert.NotPanics(t, func() {
		cleanupRoom(context.Background(), rt, &stubSimulation{ids: []string{"Tank-1"}})
	})
}
