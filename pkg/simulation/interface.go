package simulation

import (
	"context"

	"github.com/picogrid/squad-sim/pkg/client"
	"github.com/picogrid/squad-sim/pkg/config"
	"github.com/picogrid/squad-sim/pkg/session"
)

// Runtime carries the collaborators a simulation needs to reach a room.
type Runtime struct {
	// Environment the run was started against
	Environment config.Environment

	// Connector joins participants to the room
	Connector session.Connector

	// Tokens issues per-participant join tokens
	Tokens session.TokenSource

	// Rooms is the admin API. Nil for transports without one.
	Rooms *client.RoomService
}

// Room returns the room participants join.
func (r *Runtime) Room() string {
	return r.Environment.Room
}

// Simulation defines the interface that all simulations must implement
type Simulation interface {
	// Name returns the name of the simulation
	Name() string

	// Description returns a brief description of what the simulation does
	Description() string

	// Configure sets up the simulation with the provided parameters
	Configure(params map[string]interface{}) error

	// Run executes the simulation until ctx is done or it finishes
	Run(ctx context.Context, rt *Runtime) error

	// Stop gracefully shuts down the simulation
	Stop() error
}
