package client

import (
	"context"
	"fmt"

	"github.com/picogrid/squad-sim/pkg/models"
)

// ListParticipants lists the participants of a room
func (c *RoomService) ListParticipants(ctx context.Context, room string) ([]models.ParticipantInfo, error) {
	var resp models.ListParticipantsResponse
	if err := c.doRequest(ctx, "ListParticipants", &models.RoomParticipantIdentity{Room: room}, &resp); err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return resp.Participants, nil
}

// RemoveParticipant disconnects identity from room
func (c *RoomService) RemoveParticipant(ctx context.Context, room, identity string) error {
	req := &models.RoomParticipantIdentity{Room: room, Identity: identity}
	if err := c.doRequest(ctx, "RemoveParticipant", req, nil); err != nil {
		return fmt.Errorf("failed to remove participant %s: %w", identity, err)
	}
	return nil
}

// RemoveParticipants removes every listed identity still present in room and
// returns the identities that were removed
func (c *RoomService) RemoveParticipants(ctx context.Context, room string, identities []string) ([]string, error) {
	present, err := c.ListParticipants(ctx, room)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(identities))
	for _, id := range identities {
		wanted[id] = true
	}

	var removed []string
	for _, p := range present {
		if !wanted[p.Identity] {
			continue
		}
		if err := c.RemoveParticipant(ctx, room, p.Identity); err != nil && !IsNotFound(err) {
			return removed, err
		}
		removed = append(removed, p.Identity)
	}
	return removed, nil
}
