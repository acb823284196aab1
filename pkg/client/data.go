package client

import (
	"context"
	"fmt"

	"github.com/picogrid/squad-sim/pkg/models"
)

// SendData broadcasts payload to a room from the server side
func (c *RoomService) SendData(ctx context.Context, room string, payload []byte, topic string, reliable bool) error {
	kind := models.DataPacketLossy
	if reliable {
		kind = models.DataPacketReliable
	}

	req := &models.SendDataRequest{
		Room:  room,
		Data:  payload,
		Kind:  kind,
		Topic: topic,
	}
	if err := c.doRequest(ctx, "SendData", req, nil); err != nil {
		return fmt.Errorf("failed to send data: %w", err)
	}
	return nil
}
