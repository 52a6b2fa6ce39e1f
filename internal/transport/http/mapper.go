package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/vovakirdan/wirechat-realtime/internal/core"
	"github.com/vovakirdan/wirechat-realtime/internal/proto"
)

var errMissingData = errors.New("missing data")

// inboundToCommand converts a client envelope into a core command. A non-nil
// reply is written back to the client instead of dispatching anything. A
// non-nil error means the payload could not be decoded.
func inboundToCommand(in proto.Inbound) (*core.Command, *proto.Outbound, error) {
	switch in.Type {
	case proto.TypeTyping:
		var d proto.TypingData
		if err := decode(in.Data, &d); err != nil {
			return nil, nil, err
		}
		return &core.Command{Kind: core.CommandTyping, To: core.UserID(d.To), Flag: d.IsTyping}, nil, nil

	case proto.TypePresenceRequest:
		var d proto.PresenceRequestData
		if err := decode(in.Data, &d); err != nil {
			return nil, nil, err
		}
		if d.UserID == "" {
			return nil, protocolError(core.ErrCodeBadRequest, "user_id is required"), nil
		}
		return &core.Command{Kind: core.CommandPresenceRequest, To: core.UserID(d.UserID)}, nil, nil

	case proto.TypeMarkSeen:
		var d proto.MarkSeenData
		if err := decode(in.Data, &d); err != nil {
			return nil, nil, err
		}
		return &core.Command{Kind: core.CommandMarkSeen, To: core.UserID(d.OtherID), IDs: d.IDs}, nil, nil

	case proto.TypeSendMessage:
		var d proto.SendMessageData
		if err := decode(in.Data, &d); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:           core.CommandSendMessage,
			To:             core.UserID(d.To),
			ConversationID: d.ConversationID,
			Text:           d.Text,
			ClientID:       d.ClientID,
		}, nil, nil

	case proto.TypeJoinGroup, proto.TypeLeaveGroup:
		var d proto.GroupData
		if err := decode(in.Data, &d); err != nil {
			return nil, nil, err
		}
		kind := core.CommandJoinGroup
		if in.Type == proto.TypeLeaveGroup {
			kind = core.CommandLeaveGroup
		}
		return &core.Command{Kind: kind, GroupID: d.GroupID}, nil, nil

	case proto.TypeSendGroupMessage:
		var d proto.SendGroupMessageData
		if err := decode(in.Data, &d); err != nil {
			return nil, nil, err
		}
		return &core.Command{
			Kind:     core.CommandSendGroupMessage,
			GroupID:  d.GroupID,
			Text:     d.Text,
			ClientID: d.ClientID,
		}, nil, nil

	case proto.TypeGroupTyping:
		var d proto.GroupTypingData
		if err := decode(in.Data, &d); err != nil {
			return nil, nil, err
		}
		return &core.Command{Kind: core.CommandGroupTyping, GroupID: d.GroupID, Flag: d.IsTyping}, nil, nil

	case proto.TypeGroupMarkSeen:
		var d proto.GroupMarkSeenData
		if err := decode(in.Data, &d); err != nil {
			return nil, nil, err
		}
		return &core.Command{Kind: core.CommandGroupMarkSeen, GroupID: d.GroupID, IDs: d.IDs}, nil, nil

	case proto.TypeCallUser, proto.TypeVideoCallUser:
		mod := modalityOf(in.Type)
		var d proto.CallUserData
		if err := decode(in.Data, &d); err != nil {
			return nil, nil, err
		}
		if err := validateSDP(d.Offer, webrtc.SDPTypeOffer); err != nil {
			return nil, callError(mod, "Invalid offer: "+err.Error()), nil
		}
		return &core.Command{Kind: core.CommandCallUser, To: core.UserID(d.To), Modality: mod, Payload: d.Offer}, nil, nil

	case proto.TypeAnswerCall, proto.TypeAnswerVideoCall:
		mod := modalityOf(in.Type)
		var d proto.AnswerCallData
		if err := decode(in.Data, &d); err != nil {
			return nil, nil, err
		}
		if err := validateSDP(d.Answer, webrtc.SDPTypeAnswer); err != nil {
			return nil, callError(mod, "Invalid answer: "+err.Error()), nil
		}
		return &core.Command{Kind: core.CommandAnswerCall, To: core.UserID(d.To), Modality: mod, Payload: d.Answer}, nil, nil

	case proto.TypeDeclineCall, proto.TypeDeclineVideoCall, proto.TypeEndCall, proto.TypeEndVideoCall:
		var d proto.CallPeerData
		if err := decode(in.Data, &d); err != nil {
			return nil, nil, err
		}
		kind := core.CommandEndCall
		if in.Type == proto.TypeDeclineCall || in.Type == proto.TypeDeclineVideoCall {
			kind = core.CommandDeclineCall
		}
		return &core.Command{Kind: kind, To: core.UserID(d.To), Modality: modalityOf(in.Type)}, nil, nil

	case proto.TypeIceCandidate, proto.TypeVideoIceCandidate:
		mod := modalityOf(in.Type)
		var d proto.IceCandidateData
		if err := decode(in.Data, &d); err != nil {
			return nil, nil, err
		}
		if err := validateCandidate(d.Candidate); err != nil {
			return nil, callError(mod, "Invalid candidate: "+err.Error()), nil
		}
		return &core.Command{Kind: core.CommandIceCandidate, To: core.UserID(d.To), Modality: mod, Payload: d.Candidate}, nil, nil

	case proto.TypeToggleVideoMute:
		var d proto.ToggleMuteData
		if err := decode(in.Data, &d); err != nil {
			return nil, nil, err
		}
		return &core.Command{Kind: core.CommandToggleMute, To: core.UserID(d.To), Modality: core.ModalityVideo, Flag: d.IsMuted}, nil, nil

	case proto.TypeToggleVideoCamera:
		var d proto.ToggleCameraData
		if err := decode(in.Data, &d); err != nil {
			return nil, nil, err
		}
		return &core.Command{Kind: core.CommandToggleCamera, To: core.UserID(d.To), Modality: core.ModalityVideo, Flag: d.IsCameraOff}, nil, nil

	default:
		return nil, protocolError(proto.ErrCodeInvalidMessage, "unknown message type"), nil
	}
}

func decode(data json.RawMessage, v any) error {
	if isEmpty(data) {
		return errMissingData
	}
	return json.Unmarshal(data, v)
}

func isEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func modalityOf(inboundType string) core.Modality {
	if strings.Contains(inboundType, "video") {
		return core.ModalityVideo
	}
	return core.ModalityVoice
}

// validateSDP checks that raw is a session description of the wanted type
// carrying parseable SDP.
func validateSDP(raw json.RawMessage, want webrtc.SDPType) error {
	if isEmpty(raw) {
		return errMissingData
	}
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return err
	}
	if desc.Type != want {
		return fmt.Errorf("expected %s, got %s", want, desc.Type)
	}
	if _, err := desc.Unmarshal(); err != nil {
		return err
	}
	return nil
}

// validateCandidate checks that raw decodes as an ICE candidate init. An empty
// candidate string marks end of candidates and is accepted.
func validateCandidate(raw json.RawMessage) error {
	if isEmpty(raw) {
		return errMissingData
	}
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &cand); err != nil {
		return err
	}
	if cand.Candidate != "" && !strings.HasPrefix(strings.TrimPrefix(cand.Candidate, "a="), "candidate:") {
		return errors.New("malformed candidate line")
	}
	return nil
}

func protocolError(code, msg string) *proto.Outbound {
	return &proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: code, Msg: msg}}
}

func callError(mod core.Modality, msg string) *proto.Outbound {
	return &proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: callEventName(core.EventCallError, mod),
		Data:  proto.ErrorEvent{Code: core.ErrCodeBadRequest, Message: msg},
	}
}

var videoEventNames = map[core.EventKind]string{
	core.EventIncomingCall:  proto.EventIncomingVideo,
	core.EventCallAnswered:  proto.EventVideoAnswered,
	core.EventCallDeclined:  proto.EventVideoDeclined,
	core.EventCallEnded:     proto.EventVideoEnded,
	core.EventIceCandidate:  proto.EventVideoIce,
	core.EventCallMedia:     proto.EventVideoMedia,
	core.EventCallError:     proto.EventVideoError,
	core.EventMuteToggled:   proto.EventMuteToggled,
	core.EventCameraToggled: proto.EventCameraToggled,
}

func callEventName(kind core.EventKind, mod core.Modality) string {
	if mod == core.ModalityVideo {
		if name, ok := videoEventNames[kind]; ok {
			return name
		}
	}
	return kind.String()
}

func outboundFromEvent(ev *core.Event) proto.Outbound {
	out := proto.Outbound{Type: proto.OutboundTypeEvent, Event: ev.Kind.String()}

	switch ev.Kind {
	case core.EventPresenceUpdate:
		status := "offline"
		if ev.Presence.Online {
			status = "online"
		}
		out.Data = proto.PresenceUpdate{UserID: string(ev.Presence.User), Status: status}
	case core.EventTyping:
		out.Data = proto.TypingEvent{From: string(ev.From), IsTyping: ev.Flag}
	case core.EventMessagesSeen:
		out.Data = proto.MessagesSeenEvent{By: string(ev.From), IDs: ids(ev.IDs)}
	case core.EventReceiveMessage:
		m := ev.Message
		out.Data = proto.MessageEvent{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			Sender:         string(m.From),
			Recipient:      string(m.To),
			Text:           m.Text,
			CreatedAt:      m.CreatedAt,
			ClientID:       optional(ev.ClientID),
			Echo:           ev.Echo,
		}
	case core.EventGroupJoined, core.EventGroupLeft:
		out.Data = proto.GroupEvent{GroupID: ev.GroupID}
	case core.EventReceiveGroupMessage:
		m := ev.Message
		out.Data = proto.GroupMessageEvent{
			ID:        m.ID,
			GroupID:   m.GroupID,
			Sender:    string(m.From),
			Text:      m.Text,
			CreatedAt: m.CreatedAt,
			ClientID:  optional(ev.ClientID),
		}
	case core.EventGroupTyping:
		out.Data = proto.GroupTypingEvent{GroupID: ev.GroupID, UserID: string(ev.From), IsTyping: ev.Flag}
	case core.EventGroupMessagesSeen:
		out.Data = proto.GroupSeenEvent{GroupID: ev.GroupID, By: string(ev.From), IDs: ids(ev.IDs)}
	case core.EventMessageError, core.EventGroupMessageError, core.EventGroupError, core.EventCallError:
		if ev.Error == nil {
			return *protocolError("internal_error", "unknown error")
		}
		if ev.Call != nil {
			out.Event = callEventName(ev.Kind, ev.Call.Modality)
		}
		out.Data = proto.ErrorEvent{Code: ev.Error.Code, Message: ev.Error.Message, ClientID: optional(ev.ClientID)}
	case core.EventIncomingCall, core.EventCallAnswered, core.EventCallDeclined, core.EventCallEnded,
		core.EventIceCandidate, core.EventCallMedia, core.EventMuteToggled, core.EventCameraToggled:
		return callOutbound(ev)
	default:
		return *protocolError("internal_error", "unsupported event")
	}
	return out
}

func callOutbound(ev *core.Event) proto.Outbound {
	call := ev.Call
	if call == nil {
		call = &core.CallEvent{}
	}
	from := string(ev.From)
	out := proto.Outbound{Type: proto.OutboundTypeEvent, Event: callEventName(ev.Kind, call.Modality)}

	switch ev.Kind {
	case core.EventIncomingCall:
		out.Data = proto.IncomingCallEvent{From: from, CallID: call.CallID, Offer: call.Payload}
	case core.EventCallAnswered:
		out.Data = proto.CallAnsweredEvent{From: from, CallID: call.CallID, Answer: call.Payload, Media: mediaInfo(call)}
	case core.EventCallDeclined, core.EventCallEnded:
		out.Data = proto.CallSignalEvent{From: from, CallID: call.CallID, Reason: call.Reason}
	case core.EventIceCandidate:
		out.Data = proto.IceCandidateEvent{From: from, CallID: call.CallID, Candidate: call.Payload}
	case core.EventCallMedia:
		out.Data = proto.CallMediaEvent{From: from, CallID: call.CallID, Media: mediaInfo(call)}
	case core.EventMuteToggled:
		out.Data = proto.MuteToggledEvent{From: from, IsMuted: ev.Flag}
	case core.EventCameraToggled:
		out.Data = proto.CameraToggledEvent{From: from, IsCameraOff: ev.Flag}
	}
	return out
}

func mediaInfo(call *core.CallEvent) *proto.MediaInfo {
	if call.Media == nil {
		return nil
	}
	return &proto.MediaInfo{
		URL:      call.Media.URL,
		Token:    call.Media.Token,
		RoomName: call.Media.RoomName,
		Identity: call.Media.Identity,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ids(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
