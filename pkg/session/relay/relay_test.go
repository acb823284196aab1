package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/squad-sim/pkg/session"
	"github.com/picogrid/squad-sim/pkg/video"
)

type received struct {
	mu       sync.Mutex
	auth     string
	room     string
	envs     []Envelope
	frames   []video.Frame
	finished chan struct{}
}

func newRelayServer(t *testing.T) (*httptest.Server, *received) {
	t.Helper()

	rec := &received{finished: make(chan struct{})}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer close(rec.finished)
		conn.SetReadLimit(1 << 22)

		rec.mu.Lock()
		rec.auth = r.Header.Get("Authorization")
		rec.room = r.URL.Query().Get("room")
		rec.mu.Unlock()

		for {
			typ, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			rec.mu.Lock()
			switch typ {
			case websocket.MessageText:
				var env Envelope
				if json.Unmarshal(data, &env) == nil {
					rec.envs = append(rec.envs, env)
				}
			case websocket.MessageBinary:
				if f, err := DecodeFrame(data); err == nil {
					rec.frames = append(rec.frames, f)
				}
			}
			rec.mu.Unlock()
		}
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestRelaySession(t *testing.T) {
	srv, rec := newRelayServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := NewConnector("ws" + strings.TrimPrefix(srv.URL, "http"))
	s, err := c.Join(ctx, "war-room", "token-abc")
	require.NoError(t, err)

	ch, err := s.PublishVideoTrack(ctx, session.TrackOptions{Name: "camera", Width: 4, Height: 2, Codec: session.CodecH264})
	require.NoError(t, err)

	frame := video.Frame{Width: 4, Height: 2, Format: video.RGBA, Data: make([]byte, 32)}
	frame.Data[0] = 7
	require.NoError(t, ch.Push(frame))
	assert.Error(t, ch.Push(video.Frame{Width: 2, Height: 2, Format: video.RGBA, Data: make([]byte, 16)}))

	payload := []byte(`{"id":"Tank-42","type":"tank","lat":17.4202,"long":78.4702}`)
	require.NoError(t, s.PublishData(ctx, payload, session.DataOptions{Reliable: true, Topic: "gps"}))

	require.NoError(t, s.Leave(ctx))
	require.NoError(t, s.Leave(ctx))
	assert.ErrorIs(t, s.PublishData(ctx, payload, session.DataOptions{}), session.ErrClosed)

	select {
	case <-rec.finished:
	case <-ctx.Done():
		t.Fatal("relay never saw the connection close")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	assert.Equal(t, "Bearer token-abc", rec.auth)
	assert.Equal(t, "war-room", rec.room)
	require.Len(t, rec.envs, 3)
	assert.Equal(t, Envelope{Type: TypeTrack, Name: "camera", Width: 4, Height: 2, Codec: "h264"}, rec.envs[0])
	assert.Equal(t, TypeData, rec.envs[1].Type)
	assert.Equal(t, "gps", rec.envs[1].Topic)
	assert.True(t, rec.envs[1].Reliable)
	assert.Equal(t, payload, rec.envs[1].Payload)
	assert.Equal(t, TypeLeave, rec.envs[2].Type)
	require.Len(t, rec.frames, 1)
	assert.Equal(t, byte(7), rec.frames[0].Data[0])
}

func TestRelayDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewConnector("ws" + strings.TrimPrefix(srv.URL, "http"))
	_, err := c.Join(context.Background(), "war-room", "token")
	assert.Error(t, err)
}

func TestFrameCodec(t *testing.T) {
	f := video.Frame{Width: 3, Height: 1, Format: video.RGBA, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}}

	msg, err := EncodeFrame(f)
	require.NoError(t, err)
	out, err := DecodeFrame(msg)
	require.NoError(t, err)
	assert.Equal(t, f, out)

	_, err = DecodeFrame([]byte{0, 1})
	assert.ErrorIs(t, err, ErrBadFrameMessage)
	_, err = DecodeFrame([]byte{0, 2, 0, 2, 1})
	assert.ErrorIs(t, err, ErrBadFrameMessage)
	_, err = EncodeFrame(video.Frame{Width: 1, Height: 1, Format: video.BGR, Data: []byte{1, 2, 3}})
	assert.Error(t, err)
}
