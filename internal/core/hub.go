package core

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirechat-realtime/internal/callengine"
	"github.com/vovakirdan/wirechat-realtime/internal/metrics"
	"github.com/vovakirdan/wirechat-realtime/internal/store"
)

// Store is the durable surface the gateways depend on.
type Store interface {
	store.ConversationStore
	store.MessageStore
	store.GroupStore
	store.GroupMessageStore
}

// Options configures a Hub.
type Options struct {
	Store  Store
	Media  callengine.Engine // optional
	Logger *zerolog.Logger
}

// Hub coordinates connections, presence, call signaling and message fan-out.
// Handle may be called concurrently for different clients.
type Hub struct {
	registry *Registry
	calls    *CallBook
	store    Store
	media    callengine.Engine
	log      *zerolog.Logger
}

// NewHub creates a new chat hub instance.
func NewHub(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		registry: NewRegistry(logger),
		calls:    NewCallBook(),
		store:    opts.Store,
		media:    opts.Media,
		log:      logger,
	}
}

// Registry exposes the session registry for presence queries.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Calls exposes the call book for inspection.
func (h *Hub) Calls() *CallBook {
	return h.calls
}

// Connect admits an authenticated client.
func (h *Hub) Connect(c *Client) error {
	return h.registry.Connect(c)
}

// Disconnect tears down c exactly once. If c was the identity's last connection,
// its call records are dropped and each counterpart is notified before the
// offline transition, all under the registry write lock.
func (h *Hub) Disconnect(c *Client) {
	var dropped []CallRecord
	h.registry.disconnect(c, func(u UserID) {
		dropped = h.calls.Drop(u)
		for i := range dropped {
			rec := &dropped[i]
			h.registry.emitToRoomLocked(PersonalRoom(rec.Other(u)), &Event{
				Kind: EventCallEnded,
				From: u,
				Call: &CallEvent{
					CallID:   rec.ID,
					Modality: rec.Modality,
					Reason:   ReasonDisconnect,
				},
			}, "")
			h.log.Info().
				Str("call_id", rec.ID).
				Str("user_id", string(u)).
				Str("modality", rec.Modality.String()).
				Msg("call dropped on disconnect")
		}
	})

	// Media teardown is a durable side effect; failures never block the in-memory cleanup.
	for i := range dropped {
		h.releaseMedia(context.Background(), &dropped[i])
	}
}

// Run blocks until ctx is done, then disconnects every remaining client.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()

	clients := h.registry.close()
	for _, c := range clients {
		h.Disconnect(c)
	}
	h.log.Info().Int("clients", len(clients)).Msg("hub stopped")
	return nil
}

// Handle processes one inbound command from c. Commands from a client that is
// no longer live are ignored.
func (h *Hub) Handle(ctx context.Context, c *Client, cmd *Command) {
	if cmd == nil || !h.registry.Live(c) {
		return
	}
	metrics.InboundEvents.WithLabelValues(cmd.Kind.String()).Inc()

	switch cmd.Kind {
	case CommandTyping:
		h.relayTyping(c, cmd)
	case CommandPresenceRequest:
		h.answerPresence(c, cmd)
	case CommandMarkSeen:
		h.relaySeen(c, cmd)
	case CommandSendMessage:
		h.sendMessage(ctx, c, cmd)
	case CommandJoinGroup:
		h.joinGroup(ctx, c, cmd)
	case CommandLeaveGroup:
		h.leaveGroup(c, cmd)
	case CommandSendGroupMessage:
		h.sendGroupMessage(ctx, c, cmd)
	case CommandGroupTyping:
		h.groupTyping(ctx, c, cmd)
	case CommandGroupMarkSeen:
		h.groupSeen(ctx, c, cmd)
	case CommandCallUser:
		h.callUser(c, cmd)
	case CommandAnswerCall:
		h.answerCall(ctx, c, cmd)
	case CommandDeclineCall:
		h.declineCall(c, cmd)
	case CommandEndCall:
		h.endCall(ctx, c, cmd)
	case CommandIceCandidate:
		h.relayCandidate(c, cmd)
	case CommandToggleMute, CommandToggleCamera:
		h.relayToggle(c, cmd)
	default:
		h.log.Warn().Int("kind", int(cmd.Kind)).Str("client_id", c.ID).Msg("unhandled command")
	}
}

// sendError answers the originating connection only.
func (h *Hub) sendError(c *Client, kind EventKind, err *CoreError, clientID string, call *CallEvent) {
	h.registry.EmitToClient(c, &Event{
		Kind:     kind,
		Error:    err,
		ClientID: clientID,
		Call:     call,
	})
	h.noteError(c, kind, err)
}

func (h *Hub) noteError(c *Client, kind EventKind, err *CoreError) {
	metrics.ErrorEvents.WithLabelValues(err.Code).Inc()
	h.log.Debug().
		Str("user_id", string(c.User)).
		Str("client_id", c.ID).
		Str("event", kind.String()).
		Str("code", err.Code).
		Msg(err.Message)
}
