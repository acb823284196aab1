package client

import (
	"context"
	"errors"
	"net/http"
)

// ValidateConnection tests the connection and credentials by listing rooms
func (c *RoomService) ValidateConnection(ctx context.Context) error {
	_, err := c.ListRooms(ctx, nil)
	return err
}

// EnsureRoom creates room unless it already exists
func (c *RoomService) EnsureRoom(ctx context.Context, room string) (bool, error) {
	rooms, err := c.ListRooms(ctx, []string{room})
	if err != nil {
		return false, err
	}
	for _, r := range rooms {
		if r.Name == room {
			return false, nil
		}
	}

	if _, err := c.CreateRoom(ctx, &CreateRoomParams{Name: room}); err != nil {
		return false, err
	}
	return true, nil
}

// IsNotFound reports whether err is a not-found reply from the server
func IsNotFound(err error) bool {
	var twirpErr *Error
	if errors.As(err, &twirpErr) {
		return twirpErr.Code == "not_found" || twirpErr.Status == http.StatusNotFound
	}
	return false
}
