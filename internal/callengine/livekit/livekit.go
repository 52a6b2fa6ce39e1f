package livekit

import (
	"context"
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/vovakirdan/wirechat-realtime/internal/callengine"
)

// LiveKitEngine implements callengine.Engine using LiveKit as the media backend.
type LiveKitEngine struct {
	apiKey    string
	apiSecret string
	wsURL     string
	tokenTTL  time.Duration
}

// New creates a new LiveKitEngine. A non-positive ttl defaults to one hour.
func New(apiKey, apiSecret, wsURL string, ttl time.Duration) *LiveKitEngine {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LiveKitEngine{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		wsURL:     wsURL,
		tokenTTL:  ttl,
	}
}

// RoomName is the LiveKit room a call is bridged into.
func RoomName(call callengine.Call) string {
	// Room name format: wirechat-{modality}-{callID}
	return fmt.Sprintf("wirechat-%s-%s", call.Modality, call.ID)
}

// CreateCall returns the LiveKit room for the call.
// LiveKit creates rooms on-demand when the first participant joins.
func (e *LiveKitEngine) CreateCall(_ context.Context, call callengine.Call) (string, error) {
	if call.ID == "" {
		return "", fmt.Errorf("call has no id")
	}
	return RoomName(call), nil
}

// EndCall is a no-op: empty LiveKit rooms expire on their own.
func (e *LiveKitEngine) EndCall(_ context.Context, _ callengine.Call) error {
	return nil
}

// GenerateJoinInfo creates join credentials restricted to the call's room.
func (e *LiveKitEngine) GenerateJoinInfo(_ context.Context, call callengine.Call, userID string) (*callengine.JoinInfo, error) {
	if userID != call.Caller && userID != call.Target {
		return nil, fmt.Errorf("user %s is not a party of call %s", userID, call.ID)
	}

	roomName := RoomName(call)
	identity := "user-" + userID

	at := auth.NewAccessToken(e.apiKey, e.apiSecret)
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetName(userID).
		SetValidFor(e.tokenTTL)

	token, err := at.ToJWT()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &callengine.JoinInfo{
		URL:      e.wsURL,
		Token:    token,
		RoomName: roomName,
		Identity: identity,
	}, nil
}

// Ensure LiveKitEngine implements callengine.Engine
var _ callengine.Engine = (*LiveKitEngine)(nil)
