package models

// DataPacketKind selects data channel delivery
type DataPacketKind string

const (
	DataPacketReliable DataPacketKind = "RELIABLE"
	DataPacketLossy    DataPacketKind = "LOSSY"
)

// SendDataRequest broadcasts a data packet into a room. Data is base64
// encoded on the wire.
type SendDataRequest struct {
	Room                  string         `json:"room"`
	Data                  []byte         `json:"data"`
	Kind                  DataPacketKind `json:"kind"`
	DestinationIdentities []string       `json:"destination_identities,omitempty"`
	Topic                 string         `json:"topic,omitempty"`
}
