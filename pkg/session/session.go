// Package session is the boundary between simulated entities and the
// real-time room they publish into.
package session

//go:generate go tool mockgen -destination=./mocks/session_mock.go -package=mocks . Connector,Session,VideoChannel,TokenSource

import (
	"context"
	"errors"

	"github.com/picogrid/squad-sim/pkg/video"
)

// Codec names accepted in TrackOptions.
const (
	CodecH264 = "h264"
	CodecVP8  = "vp8"
)

// DefaultTrackName is the name entities publish their camera under.
const DefaultTrackName = "camera"

// ErrClosed is returned by operations on a session that already left.
var ErrClosed = errors.New("session: closed")

// TrackOptions describe a published video track.
type TrackOptions struct {
	Name      string
	Width     int
	Height    int
	Codec     string
	FrameRate float64
}

// DataOptions control delivery of a data-channel message.
type DataOptions struct {
	Reliable bool
	Topic    string
}

// TokenSource mints the access token an identity joins with.
type TokenSource interface {
	Token(ctx context.Context, identity, name string) (string, error)
}

// Connector joins a room on behalf of one identity.
type Connector interface {
	Join(ctx context.Context, room, token string) (Session, error)
}

// Session is one participant's membership in a room.
type Session interface {
	PublishVideoTrack(ctx context.Context, opts TrackOptions) (VideoChannel, error)
	PublishData(ctx context.Context, payload []byte, opts DataOptions) error
	Leave(ctx context.Context) error
}

// VideoChannel accepts raw RGBA frames for a published track.
type VideoChannel interface {
	Push(frame video.Frame) error
}
