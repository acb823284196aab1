package client

import (
	"context"
	"fmt"

	"github.com/picogrid/squad-sim/pkg/models"
)

// CreateRoomParams are the options for CreateRoom
type CreateRoomParams = models.CreateRoomRequest

// ListRooms lists active rooms, optionally filtered by name
func (c *RoomService) ListRooms(ctx context.Context, names []string) ([]models.Room, error) {
	var resp models.ListRoomsResponse
	if err := c.doRequest(ctx, "ListRooms", &models.ListRoomsRequest{Names: names}, &resp); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// CreateRoom creates a room
func (c *RoomService) CreateRoom(ctx context.Context, req *CreateRoomParams) (*models.Room, error) {
	var room models.Room
	if err := c.doRequest(ctx, "CreateRoom", req, &room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return &room, nil
}

// DeleteRoom closes a room and disconnects its participants
func (c *RoomService) DeleteRoom(ctx context.Context, room string) error {
	if err := c.doRequest(ctx, "DeleteRoom", &models.DeleteRoomRequest{Room: room}, nil); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}
