package callengine

import "context"

// JoinInfo contains information needed to join a call's media room.
type JoinInfo struct {
	URL      string `json:"url"`       // WebSocket URL (e.g., ws://localhost:7880)
	Token    string `json:"token"`     // JWT token for LiveKit
	RoomName string `json:"room_name"` // LiveKit room name
	Identity string `json:"identity"`  // User identity in the room
}

// Call identifies a connected two-party call.
type Call struct {
	ID       string
	Modality string // "voice" or "video"
	Caller   string
	Target   string
}

// Engine abstracts the media backend used once peers connect.
type Engine interface {
	// CreateCall prepares a media room for the call and returns its name.
	CreateCall(ctx context.Context, call Call) (roomName string, err error)

	// EndCall releases the media room.
	EndCall(ctx context.Context, call Call) error

	// GenerateJoinInfo creates join credentials for one party.
	GenerateJoinInfo(ctx context.Context, call Call, userID string) (*JoinInfo, error)
}
