package models

// Room is an active room on the server
type Room struct {
	SID             string `json:"sid,omitempty"`
	Name            string `json:"name"`
	EmptyTimeout    uint32 `json:"empty_timeout,omitempty"`
	MaxParticipants uint32 `json:"max_participants,omitempty"`
	CreationTime    int64  `json:"creation_time,string,omitempty"`
	Metadata        string `json:"metadata,omitempty"`
	NumParticipants uint32 `json:"num_participants,omitempty"`
	NumPublishers   uint32 `json:"num_publishers,omitempty"`
}

// ListRoomsRequest filters ListRooms by name
type ListRoomsRequest struct {
	Names []string `json:"names,omitempty"`
}

// ListRoomsResponse is the reply to ListRooms
type ListRoomsResponse struct {
	Rooms []Room `json:"rooms"`
}

// CreateRoomRequest creates a room
type CreateRoomRequest struct {
	Name            string `json:"name"`
	EmptyTimeout    uint32 `json:"empty_timeout,omitempty"`
	MaxParticipants uint32 `json:"max_participants,omitempty"`
	Metadata        string `json:"metadata,omitempty"`
}

// DeleteRoomRequest deletes a room
type DeleteRoomRequest struct {
	Room string `json:"room"`
}
