package core

import (
	"encoding/json"

	"github.com/vovakirdan/wirechat-realtime/internal/callengine"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventPresenceUpdate reports a user going online or offline.
	EventPresenceUpdate EventKind = iota
	// EventTyping relays a direct typing indicator.
	EventTyping
	// EventMessagesSeen relays direct read receipts.
	EventMessagesSeen
	// EventReceiveMessage delivers a persisted direct message.
	EventReceiveMessage
	// EventMessageError reports a failed send_message to its sender.
	EventMessageError

	// EventGroupJoined confirms a group room subscription.
	EventGroupJoined
	// EventGroupLeft confirms a group room unsubscription.
	EventGroupLeft
	// EventReceiveGroupMessage delivers a persisted group message.
	EventReceiveGroupMessage
	// EventGroupMessageError reports a failed send_group_message to its sender.
	EventGroupMessageError
	// EventGroupTyping relays a typing indicator within a group.
	EventGroupTyping
	// EventGroupMessagesSeen relays read receipts within a group.
	EventGroupMessagesSeen
	// EventGroupError reports a failed join, typing or seen action.
	EventGroupError

	// Call events
	// EventIncomingCall notifies the target of a new call.
	EventIncomingCall
	// EventCallAnswered notifies the caller that the target answered.
	EventCallAnswered
	// EventCallDeclined notifies the caller that the target declined.
	EventCallDeclined
	// EventCallEnded notifies the other party that the call is over.
	EventCallEnded
	// EventIceCandidate relays an ICE candidate.
	EventIceCandidate
	// EventCallMedia delivers media relay credentials to the callee.
	EventCallMedia
	// EventMuteToggled relays the other party's microphone state.
	EventMuteToggled
	// EventCameraToggled relays the other party's camera state.
	EventCameraToggled
	// EventCallError reports a rejected call action to its originator.
	EventCallError
)

var eventNames = [...]string{
	EventPresenceUpdate:      "presence_update",
	EventTyping:              "typing",
	EventMessagesSeen:        "messages_seen",
	EventReceiveMessage:      "receive_message",
	EventMessageError:        "error_message",
	EventGroupJoined:         "group_joined",
	EventGroupLeft:           "group_left",
	EventReceiveGroupMessage: "receive_group_message",
	EventGroupMessageError:   "error_group_message",
	EventGroupTyping:         "group_typing",
	EventGroupMessagesSeen:   "group_messages_seen",
	EventGroupError:          "group_error",
	EventIncomingCall:        "incoming_call",
	EventCallAnswered:        "call_answered",
	EventCallDeclined:        "call_declined",
	EventCallEnded:           "call_ended",
	EventIceCandidate:        "ice_candidate",
	EventCallMedia:           "call_media",
	EventMuteToggled:         "mute_toggled",
	EventCameraToggled:       "camera_toggled",
	EventCallError:           "call_error",
}

func (k EventKind) String() string {
	if k >= 0 && int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event is sent to clients to describe what happened in the system.
// An emitted event is shared between recipients and must not be modified.
type Event struct {
	Kind    EventKind
	From    UserID
	GroupID string

	Message  *Message
	Presence *Presence
	Call     *CallEvent // non-nil for call events
	Error    *CoreError

	// Flag carries is_typing, is_muted or is_camera_off.
	Flag bool
	IDs  []string

	// ClientID echoes the sender's correlation id.
	ClientID string
	// Echo marks the sender's own copy of a direct message.
	Echo bool
}

// Presence is the online state of one user.
type Presence struct {
	User   UserID
	Online bool
}

// CallEvent holds data specific to call events.
type CallEvent struct {
	CallID   string
	Modality Modality
	// Payload is the SDP or ICE candidate relayed verbatim.
	Payload json.RawMessage
	// Reason is set on call_ended when teardown was caused by a disconnect.
	Reason string
	// Media is set when a media relay is configured and the call connected.
	Media *callengine.JoinInfo
}

// ReasonDisconnect is the call_ended reason for teardown after the last connection closed.
const ReasonDisconnect = "disconnect"
