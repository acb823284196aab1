// Package livekit joins entities to a LiveKit room over WebRTC.
package livekit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/picogrid/squad-sim/pkg/session"
)

// Connector joins LiveKit rooms at URL.
type Connector struct {
	URL string
}

// NewConnector creates a connector for a LiveKit server (ws:// or wss://).
func NewConnector(url string) *Connector {
	return &Connector{URL: url}
}

func (c *Connector) Join(ctx context.Context, room, token string) (session.Session, error) {
	type result struct {
		room *lksdk.Room
		err  error
	}

	// The SDK connect is not context aware; honour ctx by abandoning the wait.
	done := make(chan result, 1)
	go func() {
		r, err := lksdk.ConnectToRoomWithToken(c.URL, token, &lksdk.RoomCallback{}, lksdk.WithAutoSubscribe(false))
		done <- result{room: r, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("failed to join room %s: %w", room, res.err)
		}
		return &Session{room: res.room}, nil
	case <-ctx.Done():
		go func() {
			if res := <-done; res.room != nil {
				res.room.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

// Session is one LiveKit participant.
type Session struct {
	room *lksdk.Room

	mu       sync.Mutex
	encoders []*encoder
	left     bool
}

func mimeType(codec string) (string, error) {
	switch codec {
	case session.CodecH264, "":
		return webrtc.MimeTypeH264, nil
	case session.CodecVP8:
		return webrtc.MimeTypeVP8, nil
	}
	return "", fmt.Errorf("unsupported codec %q", codec)
}

func (s *Session) PublishVideoTrack(ctx context.Context, opts session.TrackOptions) (session.VideoChannel, error) {
	mime, err := mimeType(opts.Codec)
	if err != nil {
		return nil, err
	}

	track, err := lksdk.NewLocalSampleTrack(webrtc.RTPCodecCapability{MimeType: mime, ClockRate: 90000})
	if err != nil {
		return nil, fmt.Errorf("failed to create track: %w", err)
	}

	name := opts.Name
	if name == "" {
		name = session.DefaultTrackName
	}
	if _, err := s.room.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:        name,
		Source:      livekit.TrackSource_CAMERA,
		VideoWidth:  opts.Width,
		VideoHeight: opts.Height,
	}); err != nil {
		return nil, fmt.Errorf("failed to publish track: %w", err)
	}

	enc, err := newEncoder(opts, func(data []byte, d time.Duration) error {
		return track.WriteSample(media.Sample{Data: data, Duration: d}, nil)
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.encoders = append(s.encoders, enc)
	s.mu.Unlock()
	return enc, nil
}

func (s *Session) PublishData(ctx context.Context, payload []byte, opts session.DataOptions) error {
	s.mu.Lock()
	left := s.left
	s.mu.Unlock()
	if left {
		return session.ErrClosed
	}

	return s.room.LocalParticipant.PublishDataPacket(
		lksdk.UserData(payload),
		lksdk.WithDataPublishReliable(opts.Reliable),
		lksdk.WithDataPublishTopic(opts.Topic),
	)
}

func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.left {
		s.mu.Unlock()
		return nil
	}
	s.left = true
	encoders := s.encoders
	s.encoders = nil
	s.mu.Unlock()

	var errs []error
	for _, enc := range encoders {
		if err := enc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.room.Disconnect()
	return errors.Join(errs...)
}
