package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/squad-sim/pkg/models"
)

type staticToken string

func (s staticToken) GetAccessToken(ctx context.Context) (string, error) { return string(s), nil }

type call struct {
	method string
	auth   string
	body   map[string]interface{}
}

type fakeRoomServer struct {
	mu           sync.Mutex
	calls        []call
	rooms        []models.Room
	participants []models.ParticipantInfo
}

func (f *fakeRoomServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasPrefix(r.URL.Path, twirpPrefix))
		method := strings.TrimPrefix(r.URL.Path, twirpPrefix)

		data, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(data, &body)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, call{method: method, auth: r.Header.Get("Authorization"), body: body})

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "ListRooms":
			_ = json.NewEncoder(w).Encode(models.ListRoomsResponse{Rooms: f.rooms})
		case "CreateRoom":
			room := models.Room{SID: "RM_1", Name: body["name"].(string)}
			f.rooms = append(f.rooms, room)
			_ = json.NewEncoder(w).Encode(room)
		case "ListParticipants":
			_ = json.NewEncoder(w).Encode(models.ListParticipantsResponse{Participants: f.participants})
		case "RemoveParticipant":
			if body["identity"] == "Ghost-10" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"code":"not_found","msg":"participant not found"}`))
				return
			}
			_, _ = w.Write([]byte(`{}`))
		case "SendData", "DeleteRoom":
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"unauthenticated","msg":"nope"}`))
		}
	})
}

func newTestClient(t *testing.T, f *fakeRoomServer) *RoomService {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: "ws" + strings.TrimPrefix(srv.URL, "http"), TokenManager: staticToken("admin-token")})
	require.NoError(t, err)
	return c
}

func TestNewClientSchemes(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"wss://rooms.example.com", "https://rooms.example.com", false},
		{"ws://localhost:7880/", "http://localhost:7880", false},
		{"https://rooms.example.com", "https://rooms.example.com", false},
		{"ftp://rooms.example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := NewClient(Config{BaseURL: tt.in})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.baseURL)
		})
	}
}

func TestEnsureRoom(t *testing.T) {
	f := &fakeRoomServer{}
	c := newTestClient(t, f)
	ctx := context.Background()

	created, err := c.EnsureRoom(ctx, "war-room")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = c.EnsureRoom(ctx, "war-room")
	require.NoError(t, err)
	assert.False(t, created)

	f.mu.Lock()
	defer f.mu.Unlock()
	methods := make([]string, len(f.calls))
	for i, c := range f.calls {
		methods[i] = c.method
		assert.Equal(t, "Bearer admin-token", c.auth)
	}
	assert.Equal(t, []string{"ListRooms", "CreateRoom", "ListRooms"}, methods)
}

func TestRemoveParticipants(t *testing.T) {
	f := &fakeRoomServer{participants: []models.ParticipantInfo{
		{SID: "PA_1", Identity: "Tank-42"},
		{SID: "PA_2", Identity: "Observer"},
		{SID: "PA_3", Identity: "Ghost-10"},
	}}
	c := newTestClient(t, f)

	removed, err := c.RemoveParticipants(context.Background(), "war-room", []string{"Tank-42", "Ghost-10", "Uav-17"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Tank-42", "Ghost-10"}, removed)
}

func TestSendDataAndErrors(t *testing.T) {
	f := &fakeRoomServer{}
	c := newTestClient(t, f)
	ctx := context.Background()

	require.NoError(t, c.SendData(ctx, "war-room", []byte("hi"), "gps", true))

	f.mu.Lock()
	last := f.calls[len(f.calls)-1]
	f.mu.Unlock()
	assert.Equal(t, "RELIABLE", last.body["kind"])
	assert.Equal(t, "aGk=", last.body["data"])
	assert.Equal(t, "gps", last.body["topic"])

	err := c.doRequest(ctx, "UpdateRoomMetadata", struct{}{}, nil)
	var twirpErr *Error
	require.ErrorAs(t, err, &twirpErr)
	assert.Equal(t, http.StatusUnauthorized, twirpErr.Status)
	assert.Equal(t, "unauthenticated", twirpErr.Code)
	assert.False(t, IsNotFound(err))
}
