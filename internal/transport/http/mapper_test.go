package http

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/vovakirdan/wirechat-realtime/internal/callengine"
	"github.com/vovakirdan/wirechat-realtime/internal/core"
	"github.com/vovakirdan/wirechat-realtime/internal/proto"
)

func inbound(t *testing.T, typ string, data any) proto.Inbound {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return proto.Inbound{Type: typ, Data: raw}
}

func TestInboundToCommandModality(t *testing.T) {
	tests := []struct {
		typ      string
		data     any
		kind     core.CommandKind
		modality core.Modality
	}{
		{proto.TypeCallUser, proto.CallUserData{To: "bob", Offer: sessionDescription("offer")}, core.CommandCallUser, core.ModalityVoice},
		{proto.TypeVideoCallUser, proto.CallUserData{To: "bob", Offer: sessionDescription("offer")}, core.CommandCallUser, core.ModalityVideo},
		{proto.TypeAnswerCall, proto.AnswerCallData{To: "bob", Answer: sessionDescription("answer")}, core.CommandAnswerCall, core.ModalityVoice},
		{proto.TypeAnswerVideoCall, proto.AnswerCallData{To: "bob", Answer: sessionDescription("answer")}, core.CommandAnswerCall, core.ModalityVideo},
		{proto.TypeDeclineCall, proto.CallPeerData{To: "bob"}, core.CommandDeclineCall, core.ModalityVoice},
		{proto.TypeDeclineVideoCall, proto.CallPeerData{To: "bob"}, core.CommandDeclineCall, core.ModalityVideo},
		{proto.TypeEndCall, proto.CallPeerData{To: "bob"}, core.CommandEndCall, core.ModalityVoice},
		{proto.TypeEndVideoCall, proto.CallPeerData{To: "bob"}, core.CommandEndCall, core.ModalityVideo},
		{proto.TypeIceCandidate, proto.IceCandidateData{To: "bob", Candidate: json.RawMessage(`{"candidate":""}`)}, core.CommandIceCandidate, core.ModalityVoice},
		{proto.TypeToggleVideoMute, proto.ToggleMuteData{To: "bob", IsMuted: true}, core.CommandToggleMute, core.ModalityVideo},
		{proto.TypeToggleVideoCamera, proto.ToggleCameraData{To: "bob", IsCameraOff: true}, core.CommandToggleCamera, core.ModalityVideo},
	}
	for _, tc := range tests {
		t.Run(tc.typ, func(t *testing.T) {
			cmd, reply, err := inboundToCommand(inbound(t, tc.typ, tc.data))
			if err != nil || reply != nil {
				t.Fatalf("unexpected failure: err=%v reply=%+v", err, reply)
			}
			if cmd.Kind != tc.kind || cmd.Modality != tc.modality {
				t.Fatalf("got %s/%s, want %s/%s", cmd.Kind, cmd.Modality, tc.kind, tc.modality)
			}
			if cmd.To != "bob" {
				t.Fatalf("expected To bob, got %q", cmd.To)
			}
		})
	}
}

func TestInboundToCommandMessages(t *testing.T) {
	cmd, reply, err := inboundToCommand(inbound(t, proto.TypeSendMessage, proto.SendMessageData{
		To: "bob", ConversationID: "c1", Text: "hi", ClientID: "tmp",
	}))
	if err != nil || reply != nil {
		t.Fatalf("unexpected failure: err=%v reply=%+v", err, reply)
	}
	if cmd.Kind != core.CommandSendMessage || cmd.ConversationID != "c1" || cmd.ClientID != "tmp" {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	cmd, _, _ = inboundToCommand(inbound(t, proto.TypeLeaveGroup, proto.GroupData{GroupID: "g1"}))
	if cmd.Kind != core.CommandLeaveGroup || cmd.GroupID != "g1" {
		t.Fatalf("unexpected command: %+v", cmd)
	}

	cmd, _, _ = inboundToCommand(inbound(t, proto.TypeGroupMarkSeen, proto.GroupMarkSeenData{GroupID: "g1", IDs: []string{"m1", "m2"}}))
	if cmd.Kind != core.CommandGroupMarkSeen || len(cmd.IDs) != 2 {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestInboundToCommandRejects(t *testing.T) {
	tests := []struct {
		name  string
		in    proto.Inbound
		event string
		code  string
	}{
		{
			name:  "offer with answer type",
			in:    inbound(t, proto.TypeCallUser, proto.CallUserData{To: "bob", Offer: sessionDescription("answer")}),
			event: proto.EventCallError,
			code:  core.ErrCodeBadRequest,
		},
		{
			name:  "missing video offer",
			in:    inbound(t, proto.TypeVideoCallUser, proto.CallUserData{To: "bob"}),
			event: proto.EventVideoError,
			code:  core.ErrCodeBadRequest,
		},
		{
			name: "unparseable sdp",
			in: inbound(t, proto.TypeAnswerVideoCall, proto.AnswerCallData{
				To:     "bob",
				Answer: json.RawMessage(`{"type":"answer","sdp":"garbage"}`),
			}),
			event: proto.EventVideoError,
			code:  core.ErrCodeBadRequest,
		},
		{
			name: "malformed candidate",
			in: inbound(t, proto.TypeVideoIceCandidate, proto.IceCandidateData{
				To:        "bob",
				Candidate: json.RawMessage(`{"candidate":"hello"}`),
			}),
			event: proto.EventVideoError,
			code:  core.ErrCodeBadRequest,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd, reply, err := inboundToCommand(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cmd != nil || reply == nil {
				t.Fatalf("expected reply only, got cmd=%+v reply=%+v", cmd, reply)
			}
			if reply.Event != tc.event {
				t.Fatalf("expected %s, got %s", tc.event, reply.Event)
			}
			if e, ok := reply.Data.(proto.ErrorEvent); !ok || e.Code != tc.code {
				t.Fatalf("expected %s error data, got %+v", tc.code, reply.Data)
			}
		})
	}

	if _, _, err := inboundToCommand(proto.Inbound{Type: proto.TypeTyping}); err == nil {
		t.Fatal("expected missing data to fail decoding")
	}
	if _, _, err := inboundToCommand(proto.Inbound{Type: proto.TypeTyping, Data: json.RawMessage(`[1]`)}); err == nil {
		t.Fatal("expected wrong shape to fail decoding")
	}
	if _, reply, _ := inboundToCommand(inbound(t, proto.TypePresenceRequest, proto.PresenceRequestData{})); reply == nil || reply.Error == nil {
		t.Fatal("expected protocol error for empty user_id")
	}
}

func TestValidateSDP(t *testing.T) {
	if err := validateSDP(sessionDescription("offer"), webrtc.SDPTypeOffer); err != nil {
		t.Fatalf("valid offer rejected: %v", err)
	}
	if err := validateSDP(json.RawMessage(`null`), webrtc.SDPTypeOffer); err == nil {
		t.Fatal("expected null to be rejected")
	}
	if err := validateSDP(json.RawMessage(`"v=0"`), webrtc.SDPTypeOffer); err == nil {
		t.Fatal("expected bare string to be rejected")
	}
}

func TestOutboundEventNames(t *testing.T) {
	tests := []struct {
		kind     core.EventKind
		modality core.Modality
		want     string
	}{
		{core.EventIncomingCall, core.ModalityVoice, proto.EventIncomingCall},
		{core.EventIncomingCall, core.ModalityVideo, proto.EventIncomingVideo},
		{core.EventCallAnswered, core.ModalityVideo, proto.EventVideoAnswered},
		{core.EventCallDeclined, core.ModalityVoice, proto.EventCallDeclined},
		{core.EventCallDeclined, core.ModalityVideo, proto.EventVideoDeclined},
		{core.EventCallEnded, core.ModalityVoice, proto.EventCallEnded},
		{core.EventCallEnded, core.ModalityVideo, proto.EventVideoEnded},
		{core.EventIceCandidate, core.ModalityVideo, proto.EventVideoIce},
		{core.EventCallMedia, core.ModalityVoice, proto.EventCallMedia},
		{core.EventCallMedia, core.ModalityVideo, proto.EventVideoMedia},
		{core.EventMuteToggled, core.ModalityVideo, proto.EventMuteToggled},
		{core.EventCameraToggled, core.ModalityVideo, proto.EventCameraToggled},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			out := outboundFromEvent(&core.Event{
				Kind: tc.kind,
				From: "alice",
				Call: &core.CallEvent{CallID: "call-1", Modality: tc.modality},
			})
			if out.Type != proto.OutboundTypeEvent || out.Event != tc.want {
				t.Fatalf("got %s/%s, want event/%s", out.Type, out.Event, tc.want)
			}
		})
	}
}

func TestOutboundCallError(t *testing.T) {
	out := outboundFromEvent(&core.Event{
		Kind:  core.EventCallError,
		Error: &core.CoreError{Code: core.ErrCodeUserBusy, Message: "User is busy"},
		Call:  &core.CallEvent{Modality: core.ModalityVideo},
	})
	if out.Event != proto.EventVideoError {
		t.Fatalf("expected %s, got %s", proto.EventVideoError, out.Event)
	}
	e, ok := out.Data.(proto.ErrorEvent)
	if !ok || e.Code != core.ErrCodeUserBusy || e.ClientID != nil {
		t.Fatalf("unexpected data: %+v", out.Data)
	}

	out = outboundFromEvent(&core.Event{
		Kind:  core.EventCallError,
		Error: &core.CoreError{Code: core.ErrCodeUserOffline, Message: "User is offline"},
	})
	if out.Event != proto.EventCallError {
		t.Fatalf("expected %s, got %s", proto.EventCallError, out.Event)
	}
}

func TestOutboundPayloads(t *testing.T) {
	now := time.Now()

	out := outboundFromEvent(&core.Event{Kind: core.EventPresenceUpdate, Presence: &core.Presence{User: "bob"}})
	if p := out.Data.(proto.PresenceUpdate); p.UserID != "bob" || p.Status != "offline" {
		t.Fatalf("unexpected presence: %+v", p)
	}

	out = outboundFromEvent(&core.Event{Kind: core.EventMessagesSeen, From: "bob"})
	if s := out.Data.(proto.MessagesSeenEvent); s.IDs == nil || s.By != "bob" {
		t.Fatalf("expected empty ids slice, got %+v", s)
	}

	msg := &core.Message{ID: "m1", ConversationID: "c1", From: "alice", To: "bob", Text: "hi", CreatedAt: now}
	out = outboundFromEvent(&core.Event{Kind: core.EventReceiveMessage, From: "alice", Message: msg, ClientID: "tmp", Echo: true})
	m := out.Data.(proto.MessageEvent)
	if m.ID != "m1" || m.Recipient != "bob" || !m.Echo || m.ClientID == nil || *m.ClientID != "tmp" {
		t.Fatalf("unexpected message: %+v", m)
	}

	out = outboundFromEvent(&core.Event{
		Kind: core.EventCallAnswered,
		From: "bob",
		Call: &core.CallEvent{
			CallID:  "call-1",
			Payload: sessionDescription("answer"),
			Media:   &callengine.JoinInfo{URL: "wss://media", Token: "tok", RoomName: "room", Identity: "user-alice"},
		},
	})
	a := out.Data.(proto.CallAnsweredEvent)
	if a.Media == nil || a.Media.Token != "tok" || a.CallID != "call-1" {
		t.Fatalf("unexpected answered payload: %+v", a)
	}

	out = outboundFromEvent(&core.Event{
		Kind: core.EventCallEnded,
		From: "bob",
		Call: &core.CallEvent{CallID: "call-1", Reason: core.ReasonDisconnect},
	})
	if e := out.Data.(proto.CallSignalEvent); e.Reason != core.ReasonDisconnect {
		t.Fatalf("unexpected ended payload: %+v", e)
	}
}
