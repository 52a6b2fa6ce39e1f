package core

import (
	"context"

	"github.com/vovakirdan/wirechat-realtime/internal/callengine"
)

// callUser creates a record and rings the target. The liveness, online and busy
// checks and the insert run as one step under the registry read lock, so no
// disconnect can interleave with them.
func (h *Hub) callUser(c *Client, cmd *Command) {
	if cmd.To == "" || len(cmd.Payload) == 0 {
		h.sendError(c, EventCallError, coreError(ErrCodeBadRequest, "Missing call target or offer"), "", &CallEvent{Modality: cmd.Modality})
		return
	}

	h.registry.mu.RLock()
	if !h.registry.liveLocked(c) {
		h.registry.mu.RUnlock()
		return
	}

	var (
		rec  *CallRecord
		cerr *CoreError
	)
	switch {
	case cmd.To == c.User:
		cerr = errSelfCall
	case h.calls.Busy(c.User):
		cerr = errAlreadyInCall
	case !h.registry.onlineLocked(cmd.To):
		cerr = errUserOffline
	default:
		rec, cerr = h.calls.initiate(c.User, cmd.To, cmd.Modality)
	}

	if cerr != nil {
		h.registry.emitToClientLocked(c, &Event{
			Kind:  EventCallError,
			Error: cerr,
			Call:  &CallEvent{Modality: cmd.Modality},
		})
		h.registry.mu.RUnlock()
		h.noteError(c, EventCallError, cerr)
		return
	}

	h.registry.emitToRoomLocked(PersonalRoom(cmd.To), &Event{
		Kind: EventIncomingCall,
		From: c.User,
		Call: &CallEvent{
			CallID:   rec.ID,
			Modality: rec.Modality,
			Payload:  cmd.Payload,
		},
	}, "")
	h.registry.mu.RUnlock()

	h.log.Info().
		Str("call_id", rec.ID).
		Str("user_id", string(c.User)).
		Str("target", string(cmd.To)).
		Str("modality", rec.Modality.String()).
		Msg("call initiated")
}

// answerCall connects the record cmd.To -> c.User and relays the answer.
// When a media relay is configured both parties also receive join credentials.
func (h *Hub) answerCall(ctx context.Context, c *Client, cmd *Command) {
	rec, ok := h.calls.Answer(c.User, cmd.To, cmd.Modality)
	if !ok {
		h.ignoredCall(c, cmd)
		return
	}

	callerMedia, calleeMedia := h.prepareMedia(ctx, &rec)

	// Media setup runs unlocked. The record may have ended meanwhile; the check and
	// the emits share the registry lock that disconnect teardown takes exclusively.
	h.registry.mu.RLock()
	if cur, ok := h.calls.Linked(rec.Caller, rec.Target, rec.Modality); !ok || cur.ID != rec.ID {
		h.registry.mu.RUnlock()
		if callerMedia != nil {
			h.releaseMedia(ctx, &rec)
		}
		h.log.Info().Str("call_id", rec.ID).Str("user_id", string(c.User)).Msg("call ended before answer was relayed")
		return
	}
	h.registry.emitToRoomLocked(PersonalRoom(rec.Caller), &Event{
		Kind: EventCallAnswered,
		From: c.User,
		Call: &CallEvent{
			CallID:   rec.ID,
			Modality: rec.Modality,
			Payload:  cmd.Payload,
			Media:    callerMedia,
		},
	}, "")
	if calleeMedia != nil {
		h.registry.emitToRoomLocked(PersonalRoom(rec.Target), &Event{
			Kind: EventCallMedia,
			From: rec.Caller,
			Call: &CallEvent{
				CallID:   rec.ID,
				Modality: rec.Modality,
				Media:    calleeMedia,
			},
		}, "")
	}
	h.registry.mu.RUnlock()

	h.log.Info().Str("call_id", rec.ID).Str("user_id", string(c.User)).Msg("call answered")
}

func (h *Hub) declineCall(c *Client, cmd *Command) {
	rec, ok := h.calls.Decline(c.User, cmd.To, cmd.Modality)
	if !ok {
		h.ignoredCall(c, cmd)
		return
	}

	h.registry.EmitToRoom(PersonalRoom(rec.Caller), &Event{
		Kind: EventCallDeclined,
		From: c.User,
		Call: &CallEvent{CallID: rec.ID, Modality: rec.Modality},
	})
	h.log.Info().Str("call_id", rec.ID).Str("user_id", string(c.User)).Msg("call declined")
}

func (h *Hub) endCall(ctx context.Context, c *Client, cmd *Command) {
	rec, ok := h.calls.End(c.User, cmd.To, cmd.Modality)
	if !ok {
		h.ignoredCall(c, cmd)
		return
	}

	h.registry.EmitToRoom(PersonalRoom(rec.Other(c.User)), &Event{
		Kind: EventCallEnded,
		From: c.User,
		Call: &CallEvent{CallID: rec.ID, Modality: rec.Modality},
	})
	h.releaseMedia(ctx, &rec)
	h.log.Info().Str("call_id", rec.ID).Str("user_id", string(c.User)).Msg("call ended")
}

func (h *Hub) relayCandidate(c *Client, cmd *Command) {
	rec, ok := h.calls.Linked(c.User, cmd.To, cmd.Modality)
	if !ok {
		h.ignoredCall(c, cmd)
		return
	}

	h.registry.EmitToRoom(PersonalRoom(cmd.To), &Event{
		Kind: EventIceCandidate,
		From: c.User,
		Call: &CallEvent{CallID: rec.ID, Modality: rec.Modality, Payload: cmd.Payload},
	})
}

// relayToggle forwards mute and camera state. Toggles only exist for video calls.
func (h *Hub) relayToggle(c *Client, cmd *Command) {
	if cmd.Modality != ModalityVideo {
		h.ignoredCall(c, cmd)
		return
	}
	rec, ok := h.calls.Linked(c.User, cmd.To, cmd.Modality)
	if !ok {
		h.ignoredCall(c, cmd)
		return
	}

	kind := EventMuteToggled
	if cmd.Kind == CommandToggleCamera {
		kind = EventCameraToggled
	}
	h.registry.EmitToRoom(PersonalRoom(cmd.To), &Event{
		Kind: kind,
		From: c.User,
		Flag: cmd.Flag,
		Call: &CallEvent{CallID: rec.ID, Modality: rec.Modality},
	})
}

// ignoredCall logs a call command that matched no record. No event is emitted.
func (h *Hub) ignoredCall(c *Client, cmd *Command) {
	h.log.Debug().
		Str("user_id", string(c.User)).
		Str("client_id", c.ID).
		Str("event", cmd.Kind.String()).
		Str("target", string(cmd.To)).
		Str("modality", cmd.Modality.String()).
		Msg("no matching call record")
}

func (h *Hub) prepareMedia(ctx context.Context, rec *CallRecord) (caller, callee *callengine.JoinInfo) {
	if h.media == nil {
		return nil, nil
	}
	call := mediaCall(rec)
	if _, err := h.media.CreateCall(ctx, call); err != nil {
		h.log.Error().Err(err).Str("call_id", rec.ID).Msg("create media room")
		return nil, nil
	}
	caller, err := h.media.GenerateJoinInfo(ctx, call, string(rec.Caller))
	if err != nil {
		h.log.Error().Err(err).Str("call_id", rec.ID).Msg("caller join info")
		return nil, nil
	}
	callee, err = h.media.GenerateJoinInfo(ctx, call, string(rec.Target))
	if err != nil {
		h.log.Error().Err(err).Str("call_id", rec.ID).Msg("callee join info")
		return nil, nil
	}
	return caller, callee
}

func (h *Hub) releaseMedia(ctx context.Context, rec *CallRecord) {
	if h.media == nil || rec.Status != CallConnected {
		return
	}
	if err := h.media.EndCall(ctx, mediaCall(rec)); err != nil {
		h.log.Warn().Err(err).Str("call_id", rec.ID).Msg("release media room")
	}
}

func mediaCall(rec *CallRecord) callengine.Call {
	return callengine.Call{
		ID:       rec.ID,
		Modality: rec.Modality.String(),
		Caller:   string(rec.Caller),
		Target:   string(rec.Target),
	}
}
