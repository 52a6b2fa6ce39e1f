package core

import "encoding/json"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandTyping relays a typing indicator to one recipient.
	CommandTyping CommandKind = iota
	// CommandPresenceRequest asks whether a user is online.
	CommandPresenceRequest
	// CommandMarkSeen tells the other participant which messages were read.
	CommandMarkSeen
	// CommandSendMessage delivers a direct message through its conversation.
	CommandSendMessage

	// CommandJoinGroup subscribes the connection to a group room.
	CommandJoinGroup
	// CommandLeaveGroup unsubscribes the connection from a group room.
	CommandLeaveGroup
	// CommandSendGroupMessage delivers a message to a group room.
	CommandSendGroupMessage
	// CommandGroupTyping relays a typing indicator to a group room.
	CommandGroupTyping
	// CommandGroupMarkSeen relays read receipts to a group room.
	CommandGroupMarkSeen

	// CommandCallUser starts a call with an offer.
	CommandCallUser
	// CommandAnswerCall accepts an incoming call with an answer.
	CommandAnswerCall
	// CommandDeclineCall rejects an incoming call.
	CommandDeclineCall
	// CommandEndCall hangs up a ringing or connected call.
	CommandEndCall
	// CommandIceCandidate relays an ICE candidate to the other party.
	CommandIceCandidate
	// CommandToggleMute relays the microphone state (video calls).
	CommandToggleMute
	// CommandToggleCamera relays the camera state (video calls).
	CommandToggleCamera
)

var commandNames = [...]string{
	CommandTyping:           "typing",
	CommandPresenceRequest:  "presence_request",
	CommandMarkSeen:         "mark_seen",
	CommandSendMessage:      "send_message",
	CommandJoinGroup:        "join_group",
	CommandLeaveGroup:       "leave_group",
	CommandSendGroupMessage: "send_group_message",
	CommandGroupTyping:      "group_typing",
	CommandGroupMarkSeen:    "group_mark_seen",
	CommandCallUser:         "call_user",
	CommandAnswerCall:       "answer_call",
	CommandDeclineCall:      "decline_call",
	CommandEndCall:          "end_call",
	CommandIceCandidate:     "ice_candidate",
	CommandToggleMute:       "toggle_mute",
	CommandToggleCamera:     "toggle_camera",
}

func (k CommandKind) String() string {
	if k >= 0 && int(k) < len(commandNames) {
		return commandNames[k]
	}
	return "unknown"
}

// Command represents an action requested by a client.
// Only the fields relevant to Kind are set.
type Command struct {
	Kind CommandKind

	// To is the addressed user: recipient, callee, or the other call party.
	To             UserID
	ConversationID string
	GroupID        string
	Text           string
	ClientID       string
	IDs            []string

	// Flag carries is_typing, is_muted or is_camera_off.
	Flag bool

	Modality Modality
	// Payload is the SDP offer/answer or ICE candidate, relayed verbatim.
	Payload json.RawMessage
}
