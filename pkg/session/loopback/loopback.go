// Package loopback is an in-memory room used for dry runs and tests. It
// records every join, frame, data message and leave in publish order.
package loopback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/picogrid/squad-sim/pkg/session"
	"github.com/picogrid/squad-sim/pkg/video"
)

// EventKind tags a recorded event.
type EventKind string

const (
	EventJoin  EventKind = "join"
	EventTrack EventKind = "track"
	EventFrame EventKind = "frame"
	EventData  EventKind = "data"
	EventLeave EventKind = "leave"
)

// Event is one recorded interaction with the hub.
type Event struct {
	Seq      uint64
	At       time.Time
	Kind     EventKind
	Room     string
	Identity string
	Topic    string
	Reliable bool
	Payload  []byte
	Width    int
	Height   int
}

// Hub implements session.Connector over in-process rooms.
type Hub struct {
	// Resolve maps a token to a participant identity. The token itself is
	// used when nil.
	Resolve func(token string) (string, error)
	// Retain caps the number of events kept; zero keeps everything.
	Retain int

	mu       sync.Mutex
	seq      uint64
	events   []Event
	rooms    map[string]map[string]*Session
	failJoin map[string]error
	failData map[string]error
	failPush map[string]error
	failLeft map[string]error
	counts   map[string]map[EventKind]int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[string]*Session),
		failJoin: make(map[string]error),
		failData: make(map[string]error),
		failPush: make(map[string]error),
		failLeft: make(map[string]error),
		counts:   make(map[string]map[EventKind]int),
	}
}

// FailJoin makes every join by identity fail with err.
func (h *Hub) FailJoin(identity string, err error) { h.setFault(h.failJoin, identity, err) }

// FailData makes data publishes by identity fail with err.
func (h *Hub) FailData(identity string, err error) { h.setFault(h.failData, identity, err) }

// FailPush makes frame pushes by identity fail with err.
func (h *Hub) FailPush(identity string, err error) { h.setFault(h.failPush, identity, err) }

// FailLeave makes leaving fail for identity. The participant is still removed.
func (h *Hub) FailLeave(identity string, err error) { h.setFault(h.failLeft, identity, err) }

func (h *Hub) setFault(m map[string]error, identity string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(m, identity)
		return
	}
	m[identity] = err
}

// Join adds the token's identity to room.
func (h *Hub) Join(ctx context.Context, room, token string) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	identity := token
	if h.Resolve != nil {
		id, err := h.Resolve(token)
		if err != nil {
			return nil, fmt.Errorf("invalid token: %w", err)
		}
		identity = id
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.failJoin[identity]; err != nil {
		return nil, err
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]*Session)
	}
	if _, taken := h.rooms[room][identity]; taken {
		return nil, fmt.Errorf("identity %s already in room %s", identity, room)
	}

	s := &Session{hub: h, room: room, identity: identity}
	h.rooms[room][identity] = s
	h.recordLocked(Event{Kind: EventJoin, Room: room, Identity: identity})
	return s, nil
}

func (h *Hub) recordLocked(e Event) {
	h.seq++
	e.Seq = h.seq
	e.At = time.Now()
	h.events = append(h.events, e)
	if h.Retain > 0 && len(h.events) > h.Retain {
		h.events = append(h.events[:0:0], h.events[len(h.events)-h.Retain:]...)
	}

	c, ok := h.counts[e.Identity]
	if !ok {
		c = make(map[EventKind]int)
		h.counts[e.Identity] = c
	}
	c[e.Kind]++
}

// Events returns a copy of the recorded events in order.
func (h *Hub) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.events...)
}

// Count returns how many events of kind identity produced, including any
// trimmed by Retain.
func (h *Hub) Count(identity string, kind EventKind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[identity][kind]
}

// Participants lists identities currently in room.
func (h *Hub) Participants(room string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		ids = append(ids, id)
	}
	return ids
}

// Session is a participant in a hub room.
type Session struct {
	hub      *Hub
	room     string
	identity string
	left     bool
}

// Identity returns the participant identity.
func (s *Session) Identity() string { return s.identity }

func (s *Session) PublishVideoTrack(ctx context.Context, opts session.TrackOptions) (session.VideoChannel, error) {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.left {
		return nil, session.ErrClosed
	}
	h.recordLocked(Event{Kind: EventTrack, Room: s.room, Identity: s.identity, Topic: opts.Name, Width: opts.Width, Height: opts.Height})
	return &channel{session: s, width: opts.Width, height: opts.Height}, nil
}

func (s *Session) PublishData(ctx context.Context, payload []byte, opts session.DataOptions) error {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.left {
		return session.ErrClosed
	}
	if err := h.failData[s.identity]; err != nil {
		return err
	}
	h.recordLocked(Event{
		Kind:     EventData,
		Room:     s.room,
		Identity: s.identity,
		Topic:    opts.Topic,
		Reliable: opts.Reliable,
		Payload:  append([]byte(nil), payload...),
	})
	return nil
}

func (s *Session) Leave(ctx context.Context) error {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.left {
		return nil
	}
	s.left = true
	delete(h.rooms[s.room], s.identity)
	h.recordLocked(Event{Kind: EventLeave, Room: s.room, Identity: s.identity})
	return h.failLeft[s.identity]
}

type channel struct {
	session *Session
	width   int
	height  int
}

func (c *channel) Push(frame video.Frame) error {
	s := c.session
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.left {
		return session.ErrClosed
	}
	if err := h.failPush[s.identity]; err != nil {
		return err
	}
	if frame.Width != c.width || frame.Height != c.height || frame.Format != video.RGBA {
		return fmt.Errorf("frame %dx%d %s does not match track %dx%d RGBA", frame.Width, frame.Height, frame.Format, c.width, c.height)
	}
	h.recordLocked(Event{Kind: EventFrame, Room: s.room, Identity: s.identity, Width: frame.Width, Height: frame.Height})
	return nil
}
