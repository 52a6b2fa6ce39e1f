package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

const (
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	// Protocol-level error codes.
	ErrCodeInvalidMessage = "invalid_message"
)

// Inbound event types.
const (
	TypeTyping          = "typing"
	TypePresenceRequest = "presence_request"
	TypeMarkSeen        = "mark_seen"
	TypeSendMessage     = "send_message"

	TypeJoinGroup        = "join_group"
	TypeLeaveGroup       = "leave_group"
	TypeSendGroupMessage = "send_group_message"
	TypeGroupTyping      = "group_typing"
	TypeGroupMarkSeen    = "group_mark_seen"

	TypeCallUser     = "call_user"
	TypeAnswerCall   = "answer_call"
	TypeDeclineCall  = "decline_call"
	TypeEndCall      = "end_call"
	TypeIceCandidate = "ice_candidate"

	TypeVideoCallUser     = "video_call_user"
	TypeAnswerVideoCall   = "answer_video_call"
	TypeDeclineVideoCall  = "decline_video_call"
	TypeEndVideoCall      = "end_video_call"
	TypeVideoIceCandidate = "video_ice_candidate"
	TypeToggleVideoMute   = "toggle_video_mute"
	TypeToggleVideoCamera = "toggle_video_camera"
)

// Outbound event names.
const (
	EventPresenceUpdate = "presence_update"
	EventTyping         = "typing"
	EventMessagesSeen   = "messages_seen"
	EventReceiveMessage = "receive_message"
	EventErrorMessage   = "error_message"

	EventGroupJoined         = "group_joined"
	EventGroupLeft           = "group_left"
	EventReceiveGroupMessage = "receive_group_message"
	EventErrorGroupMessage   = "error_group_message"
	EventGroupTyping         = "group_typing"
	EventGroupMessagesSeen   = "group_messages_seen"
	EventGroupError          = "group_error"

	EventIncomingCall  = "incoming_call"
	EventCallAnswered  = "call_answered"
	EventCallDeclined  = "call_declined"
	EventCallEnded     = "call_ended"
	EventIceCandidate  = "ice_candidate"
	EventCallMedia     = "call_media"
	EventCallError     = "call_error"
	EventIncomingVideo = "incoming_video_call"
	EventVideoAnswered = "video_call_answered"
	EventVideoDeclined = "video_call_declined"
	EventVideoEnded    = "video_call_ended"
	EventVideoIce      = "video_ice_candidate"
	EventVideoMedia    = "video_call_media"
	EventVideoError    = "video_call_error"
	EventMuteToggled   = "video_mute_toggled"
	EventCameraToggled = "video_camera_toggled"
)

// Inbound payloads.

// TypingData signals that the sender is typing to one user.
type TypingData struct {
	To       string `json:"to"`
	IsTyping bool   `json:"is_typing"`
}

// PresenceRequestData asks for one user's online state.
type PresenceRequestData struct {
	UserID string `json:"user_id"`
}

// MarkSeenData reports read messages to the other participant.
type MarkSeenData struct {
	OtherID string   `json:"other_id"`
	IDs     []string `json:"ids"`
}

// SendMessageData is a direct message from the client.
type SendMessageData struct {
	To             string `json:"to"`
	ConversationID string `json:"conversation_id,omitempty"`
	Text           string `json:"text"`
	ClientID       string `json:"client_id,omitempty"`
}

// GroupData addresses a group (join_group, leave_group).
type GroupData struct {
	GroupID string `json:"group_id"`
}

// SendGroupMessageData is a group message from the client.
type SendGroupMessageData struct {
	GroupID  string `json:"group_id"`
	Text     string `json:"text"`
	ClientID string `json:"client_id,omitempty"`
}

// GroupTypingData signals typing within a group.
type GroupTypingData struct {
	GroupID  string `json:"group_id"`
	IsTyping bool   `json:"is_typing"`
}

// GroupMarkSeenData reports read group messages.
type GroupMarkSeenData struct {
	GroupID string   `json:"group_id"`
	IDs     []string `json:"ids"`
}

// CallUserData starts a call with an SDP offer.
type CallUserData struct {
	To    string          `json:"to"`
	Offer json.RawMessage `json:"offer"`
}

// AnswerCallData answers a call with an SDP answer.
type AnswerCallData struct {
	To     string          `json:"to"`
	Answer json.RawMessage `json:"answer"`
}

// CallPeerData addresses the other call party (decline, end).
type CallPeerData struct {
	To string `json:"to"`
}

// IceCandidateData relays one ICE candidate.
type IceCandidateData struct {
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

// ToggleMuteData relays the microphone state.
type ToggleMuteData struct {
	To      string `json:"to"`
	IsMuted bool   `json:"is_muted"`
}

// ToggleCameraData relays the camera state.
type ToggleCameraData struct {
	To          string `json:"to"`
	IsCameraOff bool   `json:"is_camera_off"`
}

// Outbound payloads.

// PresenceUpdate reports a user's online state.
type PresenceUpdate struct {
	UserID string `json:"user_id"`
	Status string `json:"status"` // "online" or "offline"
}

// TypingEvent relays a direct typing indicator.
type TypingEvent struct {
	From     string `json:"from"`
	IsTyping bool   `json:"is_typing"`
}

// MessagesSeenEvent relays direct read receipts.
type MessagesSeenEvent struct {
	By  string   `json:"by"`
	IDs []string `json:"ids"`
}

// MessageEvent is a persisted direct message.
type MessageEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Recipient      string    `json:"recipient"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
	ClientID       *string   `json:"client_id"`
	Echo           bool      `json:"echo,omitempty"`
}

// ErrorEvent reports a failed action to its originator.
type ErrorEvent struct {
	Code     string  `json:"code"`
	Message  string  `json:"message"`
	ClientID *string `json:"client_id,omitempty"`
}

// GroupEvent confirms a group room subscription change.
type GroupEvent struct {
	GroupID string `json:"group_id"`
}

// GroupMessageEvent is a persisted group message.
type GroupMessageEvent struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	ClientID  *string   `json:"client_id"`
}

// GroupTypingEvent relays typing within a group.
type GroupTypingEvent struct {
	GroupID  string `json:"group_id"`
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

// GroupSeenEvent relays read receipts within a group.
type GroupSeenEvent struct {
	GroupID string   `json:"group_id"`
	By      string   `json:"by"`
	IDs     []string `json:"ids"`
}

// MediaInfo carries media relay credentials.
type MediaInfo struct {
	URL      string `json:"url"`
	Token    string `json:"token"`
	RoomName string `json:"room_name"`
	Identity string `json:"identity"`
}

// IncomingCallEvent rings the target.
type IncomingCallEvent struct {
	From   string          `json:"from"`
	CallID string          `json:"call_id"`
	Offer  json.RawMessage `json:"offer"`
}

// CallAnsweredEvent tells the caller the target answered.
type CallAnsweredEvent struct {
	From   string          `json:"from"`
	CallID string          `json:"call_id"`
	Answer json.RawMessage `json:"answer"`
	Media  *MediaInfo      `json:"media,omitempty"`
}

// CallSignalEvent covers declined and ended calls.
type CallSignalEvent struct {
	From   string `json:"from"`
	CallID string `json:"call_id"`
	Reason string `json:"reason,omitempty"`
}

// IceCandidateEvent relays one ICE candidate.
type IceCandidateEvent struct {
	From      string          `json:"from"`
	CallID    string          `json:"call_id"`
	Candidate json.RawMessage `json:"candidate"`
}

// CallMediaEvent delivers media relay credentials to the callee.
type CallMediaEvent struct {
	From   string     `json:"from"`
	CallID string     `json:"call_id"`
	Media  *MediaInfo `json:"media"`
}

// MuteToggledEvent relays the other party's microphone state.
type MuteToggledEvent struct {
	From    string `json:"from"`
	IsMuted bool   `json:"is_muted"`
}

// CameraToggledEvent relays the other party's camera state.
type CameraToggledEvent struct {
	From        string `json:"from"`
	IsCameraOff bool   `json:"is_camera_off"`
}
