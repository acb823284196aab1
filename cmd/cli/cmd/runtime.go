package cmd

import (
	"context"
	"fmt"

	"github.com/picogrid/squad-sim/pkg/auth"
	"github.com/picogrid/squad-sim/pkg/client"
	"github.com/picogrid/squad-sim/pkg/config"
	"github.com/picogrid/squad-sim/pkg/logger"
	"github.com/picogrid/squad-sim/pkg/session/livekit"
	"github.com/picogrid/squad-sim/pkg/session/loopback"
	"github.com/picogrid/squad-sim/pkg/session/relay"
	"github.com/picogrid/squad-sim/pkg/simulation"
)

// DefaultRoom is joined when neither the environment nor --room names one.
const DefaultRoom = "war-room"

// Dry runs still sign real tokens so the loopback hub resolves identities
// the same way a server would.
const (
	loopbackKey    = "loopback"
	loopbackSecret = "loopback-secret"
)

// credentialsFunc resolves the API key/secret for an environment.
type credentialsFunc func(keyEnv, secretEnv string) (auth.Credentials, error)

// buildRuntime wires the connector, token source and admin client for env.
func buildRuntime(ctx context.Context, env config.Environment, resolve credentialsFunc) (*simulation.Runtime, error) {
	if env.Room == "" {
		env.Room = DefaultRoom
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}

	rt := &simulation.Runtime{Environment: env}

	if !env.NeedsCredentials() {
		minter, err := auth.NewMinter(loopbackKey, loopbackSecret, 0)
		if err != nil {
			return nil, err
		}
		hub := loopback.NewHub()
		hub.Resolve = minter.Identity
		hub.Retain = 10000

		rt.Connector = hub
		rt.Tokens = &auth.ParticipantTokens{Minter: minter, Room: env.Room}
		logger.Info("Dry run: entities join an in-process room")
		return rt, nil
	}

	creds, err := resolve(env.APIKeyEnv, env.APISecretEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credentials: %w", err)
	}
	minter, err := auth.NewMinter(creds.APIKey, creds.APISecret, auth.DefaultTTL)
	if err != nil {
		return nil, err
	}
	rt.Tokens = &auth.ParticipantTokens{Minter: minter, Room: env.Room}

	switch env.TransportOrDefault() {
	case config.TransportRelay:
		rt.Connector = relay.NewConnector(env.URL)

	case config.TransportLiveKit:
		rooms, err := auth.CreateRoomServiceClient(env.URL, minter, env.Room)
		if err != nil {
			return nil, fmt.Errorf("failed to create room service client: %w", err)
		}
		if err := prepareRoom(ctx, rooms, env.Room); err != nil {
			return nil, err
		}
		rt.Rooms = rooms
		rt.Connector = livekit.NewConnector(env.URL)
	}

	return rt, nil
}

// prepareRoom checks the admin API answers and the room exists.
func prepareRoom(ctx context.Context, rooms *client.RoomService, room string) error {
	if err := logger.WithSpinner("Validating connection", func() error {
		return rooms.ValidateConnection(ctx)
	}); err != nil {
		return fmt.Errorf("failed to connect to room server: %w", err)
	}

	created, err := rooms.EnsureRoom(ctx, room)
	if err != nil {
		return fmt.Errorf("failed to ensure room %s: %w", room, err)
	}
	if created {
		logger.Successf("Created room %s", room)
	} else {
		logger.Infof("Using existing room %s", room)
	}
	return nil
}

// identityLister is implemented by simulations that know which participants
// they put in the room.
type identityLister interface {
	Identities() []string
}

// cleanupRoom removes any participant the simulation left behind.
func cleanupRoom(ctx context.Context, rt *simulation.Runtime, sim simulation.Simulation) {
	if rt.Rooms == nil {
		return
	}
	lister, ok := sim.(identityLister)
	if !ok {
		return
	}
	ids := lister.Identities()
	if len(ids) == 0 {
		return
	}

	removed, err := rt.Rooms.RemoveParticipants(ctx, rt.Room(), ids)
	if err != nil {
		logger.Warnf("Room cleanup: %v", err)
	}
	if len(removed) > 0 {
		logger.Warnf("Removed %d stray participants from %s", len(removed), rt.Room())
	}
}
