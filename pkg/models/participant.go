package models

// ParticipantInfo describes a participant in a room
type ParticipantInfo struct {
	SID      string `json:"sid"`
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	State    string `json:"state,omitempty"`
	JoinedAt int64  `json:"joined_at,string,omitempty"`
	Metadata string `json:"metadata,omitempty"`
}

// RoomParticipantIdentity addresses a room, or a participant within it
type RoomParticipantIdentity struct {
	Room     string `json:"room"`
	Identity string `json:"identity,omitempty"`
}

// ListParticipantsResponse is the reply to ListParticipants
type ListParticipantsResponse struct {
	Participants []ParticipantInfo `json:"participants"`
}
