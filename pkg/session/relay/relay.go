// Package relay publishes entity media to a websocket relay. Control and data
// messages travel as JSON text frames, video as binary frames.
package relay

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/coder/websocket"

	"github.com/picogrid/squad-sim/pkg/session"
	"github.com/picogrid/squad-sim/pkg/video"
)

// Envelope types.
const (
	TypeTrack = "track"
	TypeData  = "data"
	TypeLeave = "leave"
)

// frameHeaderSize is width and height as big-endian uint16s.
const frameHeaderSize = 4

// Envelope is the JSON text message exchanged with the relay.
type Envelope struct {
	Type     string `json:"type"`
	Topic    string `json:"topic,omitempty"`
	Reliable bool   `json:"reliable,omitempty"`
	Payload  []byte `json:"payload,omitempty"`
	Name     string `json:"name,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Codec    string `json:"codec,omitempty"`
}

// ErrBadFrameMessage is returned by DecodeFrame for truncated messages.
var ErrBadFrameMessage = errors.New("relay: malformed frame message")

// EncodeFrame prefixes the RGBA pixels with the frame geometry.
func EncodeFrame(f video.Frame) ([]byte, error) {
	if f.Format != video.RGBA {
		return nil, fmt.Errorf("relay: frames must be RGBA, got %s", f.Format)
	}
	if f.Width > 0xffff || f.Height > 0xffff {
		return nil, fmt.Errorf("relay: frame %dx%d too large", f.Width, f.Height)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	msg := make([]byte, frameHeaderSize+len(f.Data))
	binary.BigEndian.PutUint16(msg[0:2], uint16(f.Width))
	binary.BigEndian.PutUint16(msg[2:4], uint16(f.Height))
	copy(msg[frameHeaderSize:], f.Data)
	return msg, nil
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(msg []byte) (video.Frame, error) {
	if len(msg) < frameHeaderSize {
		return video.Frame{}, ErrBadFrameMessage
	}
	f := video.Frame{
		Width:  int(binary.BigEndian.Uint16(msg[0:2])),
		Height: int(binary.BigEndian.Uint16(msg[2:4])),
		Format: video.RGBA,
		Data:   msg[frameHeaderSize:],
	}
	if err := f.Validate(); err != nil {
		return video.Frame{}, fmt.Errorf("%w: %v", ErrBadFrameMessage, err)
	}
	return f, nil
}

// Connector dials the relay once per participant.
type Connector struct {
	URL        string
	HTTPClient *http.Client
}

// NewConnector creates a relay connector for the given ws:// or wss:// URL.
func NewConnector(rawURL string) *Connector {
	return &Connector{URL: rawURL}
}

func (c *Connector) Join(ctx context.Context, room, token string) (session.Session, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url: %w", err)
	}
	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPClient: c.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}
	s := &Session{conn: conn}
	// Nothing is expected back; keep control frames flowing.
	s.readCtx = conn.CloseRead(context.Background())
	return s, nil
}

// Session is one participant connection to the relay.
type Session struct {
	conn    *websocket.Conn
	readCtx context.Context

	mu     sync.Mutex
	closed bool
}

func (s *Session) writeJSON(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", env.Type, err)
	}
	return s.write(ctx, websocket.MessageText, data)
}

func (s *Session) write(ctx context.Context, typ websocket.MessageType, data []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return session.ErrClosed
	}
	if err := s.readCtx.Err(); err != nil {
		return fmt.Errorf("relay connection lost: %w", err)
	}
	return s.conn.Write(ctx, typ, data)
}

func (s *Session) PublishVideoTrack(ctx context.Context, opts session.TrackOptions) (session.VideoChannel, error) {
	err := s.writeJSON(ctx, Envelope{
		Type:   TypeTrack,
		Name:   opts.Name,
		Width:  opts.Width,
		Height: opts.Height,
		Codec:  opts.Codec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to announce track: %w", err)
	}
	return &channel{session: s, width: opts.Width, height: opts.Height}, nil
}

func (s *Session) PublishData(ctx context.Context, payload []byte, opts session.DataOptions) error {
	return s.writeJSON(ctx, Envelope{
		Type:     TypeData,
		Topic:    opts.Topic,
		Reliable: opts.Reliable,
		Payload:  payload,
	})
}

func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	// Best effort; the close handshake below is what the relay acts on.
	_ = s.writeJSON(ctx, Envelope{Type: TypeLeave})

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close(websocket.StatusNormalClosure, "leave")
}

type channel struct {
	session *Session
	width   int
	height  int
}

func (c *channel) Push(frame video.Frame) error {
	if frame.Width != c.width || frame.Height != c.height {
		return fmt.Errorf("frame %dx%d does not match track %dx%d", frame.Width, frame.Height, c.width, c.height)
	}
	msg, err := EncodeFrame(frame)
	if err != nil {
		return err
	}
	// Push has no caller context; the connection read context bounds it.
	return c.session.write(c.session.readCtx, websocket.MessageBinary, msg)
}
