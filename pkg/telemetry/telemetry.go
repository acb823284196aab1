// Package telemetry encodes the per-tick position report an entity publishes
// on the data channel.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Topic is the data-channel topic GPS reports are published under.
const Topic = "gps"

// ErrMissingID is returned when decoding a report without an entity id.
var ErrMissingID = errors.New("telemetry: message has no id")

// Message is the wire form of a GPS report.
type Message struct {
	ID   string  `json:"id"`
	Type string  `json:"type"`
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Encode serialises m as a JSON object.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode telemetry for %s: %w", m.ID, err)
	}
	return data, nil
}

// Decode parses a JSON report produced by Encode.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("failed to decode telemetry: %w", err)
	}
	if m.ID == "" {
		return Message{}, ErrMissingID
	}
	return m, nil
}
