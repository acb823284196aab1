// Package entity runs the lifecycle of one simulated unit: join a room,
// publish a looping camera feed and GPS reports, then leave.
package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/picogrid/squad-sim/pkg/geo"
	"github.com/picogrid/squad-sim/pkg/logger"
	"github.com/picogrid/squad-sim/pkg/roster"
	"github.com/picogrid/squad-sim/pkg/session"
	"github.com/picogrid/squad-sim/pkg/telemetry"
	"github.com/picogrid/squad-sim/pkg/video"
)

// State of an entity. Transitions only move forward.
type State int

const (
	StateUnconnected State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

var (
	// ErrNotConnected is reported by steps on an entity that is not connected.
	ErrNotConnected = errors.New("entity: not connected")
	// ErrAlreadyConnected is returned by Connect outside the unconnected state.
	ErrAlreadyConnected = errors.New("entity: connect called twice")
)

// Phase names a step of the simulation.
type Phase string

const (
	PhaseConnect    Phase = "connect"
	PhaseVideo      Phase = "video"
	PhaseTelemetry  Phase = "telemetry"
	PhaseDisconnect Phase = "disconnect"
)

// Status is the outcome of one step.
type Status string

const (
	StatusPublished Status = "published"
	StatusNoFrame   Status = "no_frame"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// StepResult reports what one entity did in one phase of a tick.
type StepResult struct {
	ID     string
	Phase  Phase
	Status Status
	Err    error
}

// Options are the publishing settings shared by the squad.
type Options struct {
	Room      string
	TrackName string
	Width     int
	Height    int
	Codec     string
	FrameRate float64
	Topic     string
	Reliable  bool
}

// DefaultOptions returns 320x240 h264 at 15 fps, reliable GPS on "gps".
func DefaultOptions(room string) Options {
	return Options{
		Room:      room,
		TrackName: session.DefaultTrackName,
		Width:     video.DefaultWidth,
		Height:    video.DefaultHeight,
		Codec:     session.CodecH264,
		FrameRate: 15,
		Topic:     telemetry.Topic,
		Reliable:  true,
	}
}

// Deps are the collaborators an entity works through.
type Deps struct {
	Connector session.Connector
	Tokens    session.TokenSource
	Model     *geo.Model
	Open      video.OpenFunc
	Logger    logger.Logger
}

// Snapshot is a copy of an entity's observable state.
type Snapshot struct {
	ID                 string       `json:"id"`
	Kind               roster.Kind  `json:"type"`
	State              State        `json:"state"`
	Degraded           bool         `json:"degraded"`
	Video              string       `json:"video,omitempty"`
	VideoActive        bool         `json:"video_active"`
	Position           geo.Position `json:"position"`
	Heading            geo.Heading  `json:"heading"`
	FramesPublished    uint64       `json:"frames_published"`
	TelemetryPublished uint64       `json:"telemetry_published"`
	Failures           uint64       `json:"failures"`
}

// Entity owns its session, video source and position. Its methods must not be
// called concurrently with each other.
type Entity struct {
	cfg  roster.EntityConfig
	opts Options
	deps Deps
	log  logger.Logger

	state    State
	degraded bool
	position geo.Position
	heading  geo.Heading

	session session.Session
	channel session.VideoChannel
	source  *video.Source

	framesPublished    uint64
	telemetryPublished uint64
	failures           uint64
}

// New creates an unconnected entity.
func New(cfg roster.EntityConfig, opts Options, deps Deps) *Entity {
	if deps.Model == nil {
		deps.Model = geo.DefaultModel()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	return &Entity{
		cfg:      cfg,
		opts:     opts,
		deps:     deps,
		log:      deps.Logger.WithPrefix(cfg.ID),
		position: cfg.Start,
		heading:  geo.ClampHeading(cfg.Heading),
	}
}

// ID returns the entity identity.
func (e *Entity) ID() string { return e.cfg.ID }

// Kind returns the entity kind.
func (e *Entity) Kind() roster.Kind { return e.cfg.Kind }

// State returns the lifecycle state.
func (e *Entity) State() State { return e.state }

// Degraded reports whether connecting failed.
func (e *Entity) Degraded() bool { return e.degraded }

// Position returns the current position and heading.
func (e *Entity) Position() (geo.Position, geo.Heading) { return e.position, e.heading }

// Connect joins the room, publishes the camera track and opens the video
// asset. Join or publish failures leave the entity degraded. A video asset
// that cannot be decoded is logged and the entity continues without video.
func (e *Entity) Connect(ctx context.Context) error {
	if e.state != StateUnconnected {
		return ErrAlreadyConnected
	}

	token, err := e.deps.Tokens.Token(ctx, e.cfg.ID, e.cfg.ID)
	if err != nil {
		return e.connectFailed(fmt.Errorf("failed to mint token: %w", err))
	}

	sess, err := e.deps.Connector.Join(ctx, e.opts.Room, token)
	if err != nil {
		return e.connectFailed(fmt.Errorf("failed to join %s: %w", e.opts.Room, err))
	}
	e.session = sess

	ch, err := sess.PublishVideoTrack(ctx, session.TrackOptions{
		Name:      e.opts.TrackName,
		Width:     e.opts.Width,
		Height:    e.opts.Height,
		Codec:     e.opts.Codec,
		FrameRate: e.opts.FrameRate,
	})
	if err != nil {
		if leaveErr := sess.Leave(ctx); leaveErr != nil {
			e.log.Debugf("leave after failed publish: %v", leaveErr)
		}
		e.session = nil
		return e.connectFailed(fmt.Errorf("failed to publish video track: %w", err))
	}
	e.channel = ch

	e.source = video.NewSource(e.cfg.VideoPath, e.deps.Open)
	switch {
	case e.cfg.VideoPath == "":
		e.log.Warn("No video assigned, publishing telemetry only")
	case e.source.Err() != nil:
		e.log.Warnf("Video disabled: %v", e.source.Err())
	}

	e.state = StateConnected
	e.log.Infof("Connected as %s (%s, video: %s)", e.cfg.ID, e.cfg.Kind, e.cfg.AssetName())
	return nil
}

func (e *Entity) connectFailed(err error) error {
	e.degraded = true
	e.failures++
	e.log.Errorf("Connect failed: %v", err)
	return err
}

// StepVideo publishes the next frame of the looping asset.
func (e *Entity) StepVideo(ctx context.Context) StepResult {
	res := StepResult{ID: e.cfg.ID, Phase: PhaseVideo}
	if e.state != StateConnected {
		res.Status, res.Err = StatusSkipped, ErrNotConnected
		return res
	}

	frame, ok, err := e.source.Next()
	if err != nil {
		e.log.Warnf("Video disabled: %v", err)
		return e.failed(res, err)
	}
	if !ok {
		res.Status = StatusNoFrame
		return res
	}

	frame, err = video.Fit(frame, e.opts.Width, e.opts.Height)
	if err != nil {
		e.log.Warnf("Frame conversion failed: %v", err)
		return e.failed(res, err)
	}

	if err := e.channel.Push(frame); err != nil {
		e.log.Warnf("Frame publish failed: %v", err)
		return e.failed(res, err)
	}

	e.framesPublished++
	res.Status = StatusPublished
	return res
}

// StepTelemetry advances the position by one tick and publishes it. The
// position advances even when publishing fails.
func (e *Entity) StepTelemetry(ctx context.Context) StepResult {
	res := StepResult{ID: e.cfg.ID, Phase: PhaseTelemetry}
	if e.state != StateConnected {
		res.Status, res.Err = StatusSkipped, ErrNotConnected
		return res
	}

	e.position, e.heading = e.deps.Model.Advance(e.position, e.heading, string(e.cfg.Kind))

	payload, err := telemetry.Encode(telemetry.Message{
		ID:   e.cfg.ID,
		Type: string(e.cfg.Kind),
		Lat:  e.position.Lat,
		Long: e.position.Long,
	})
	if err != nil {
		return e.failed(res, err)
	}

	err = e.session.PublishData(ctx, payload, session.DataOptions{Reliable: e.opts.Reliable, Topic: e.opts.Topic})
	if err != nil {
		e.log.Warnf("Telemetry publish failed: %v", err)
		return e.failed(res, err)
	}

	e.telemetryPublished++
	res.Status = StatusPublished
	return res
}

func (e *Entity) failed(res StepResult, err error) StepResult {
	e.failures++
	res.Status, res.Err = StatusFailed, err
	return res
}

// Disconnect releases the video source and leaves the room. It is valid in
// any state and a no-op once disconnected.
func (e *Entity) Disconnect(ctx context.Context) error {
	if e.state == StateDisconnected {
		return nil
	}
	e.state = StateDisconnected

	var errs []error
	if e.source != nil {
		if err := e.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release video: %w", err))
		}
	}
	if e.session != nil {
		if err := e.session.Leave(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to leave room: %w", err))
		}
		e.log.Info("Disconnected")
	}

	return errors.Join(errs...)
}

// Snapshot copies the entity's observable state.
func (e *Entity) Snapshot() Snapshot {
	s := Snapshot{
		ID:                 e.cfg.ID,
		Kind:               e.cfg.Kind,
		State:              e.state,
		Degraded:           e.degraded,
		Video:              e.cfg.VideoPath,
		Position:           e.position,
		Heading:            e.heading,
		FramesPublished:    e.framesPublished,
		TelemetryPublished: e.telemetryPublished,
		Failures:           e.failures,
	}
	if e.source != nil {
		s.VideoActive = e.source.Active()
	}
	return s
}
