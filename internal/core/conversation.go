package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vovakirdan/wirechat-realtime/internal/metrics"
	"github.com/vovakirdan/wirechat-realtime/internal/store"
)

// sendMessage relays a direct message through an accepted conversation.
// No lock is held across store calls; the conversation is re-read on every send,
// so its status is always checked against the durable record.
func (h *Hub) sendMessage(ctx context.Context, c *Client, cmd *Command) {
	if strings.TrimSpace(cmd.Text) == "" || (cmd.To == "" && cmd.ConversationID == "") {
		h.sendError(c, EventMessageError, coreError(ErrCodeBadRequest, "Missing recipient or text"), cmd.ClientID, nil)
		return
	}
	if h.store == nil {
		h.sendError(c, EventMessageError, errMessageNotSent, cmd.ClientID, nil)
		return
	}

	conv, cerr := h.resolveConversation(ctx, c.User, cmd)
	if cerr != nil {
		h.sendError(c, EventMessageError, cerr, cmd.ClientID, nil)
		return
	}
	if conv.Status != store.ConversationStatusAccepted {
		h.sendError(c, EventMessageError, errConversationNotAccepted, cmd.ClientID, nil)
		return
	}
	recipient := UserID(conv.Other(string(c.User)))

	done := observeStore("create_message")
	msg, err := h.store.CreateMessage(ctx, conv.ID, string(c.User), string(recipient), cmd.Text)
	done()
	if err != nil {
		h.log.Error().Err(err).
			Str("user_id", string(c.User)).
			Str("conversation_id", conv.ID).
			Msg("persist message")
		h.sendError(c, EventMessageError, errMessageNotSent, cmd.ClientID, nil)
		return
	}

	done = observeStore("update_conversation_last_message")
	err = h.store.UpdateConversationLastMessage(ctx, conv.ID, &store.LastMessage{Text: msg.Text, SenderID: msg.SenderID, At: msg.CreatedAt})
	done()
	if err != nil {
		// The message is persisted; a stale summary does not undo delivery.
		h.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("update conversation last message")
	}

	delivered := &Message{
		ID:             msg.ID,
		ConversationID: conv.ID,
		From:           c.User,
		To:             recipient,
		Text:           msg.Text,
		CreatedAt:      msg.CreatedAt,
	}
	h.registry.EmitToRoom(PersonalRoom(c.User), &Event{
		Kind:     EventReceiveMessage,
		From:     c.User,
		Message:  delivered,
		ClientID: cmd.ClientID,
		Echo:     true,
	})
	h.registry.EmitToRoom(PersonalRoom(recipient), &Event{
		Kind:     EventReceiveMessage,
		From:     c.User,
		Message:  delivered,
		ClientID: cmd.ClientID,
	})
	metrics.MessagesRelayed.WithLabelValues("direct").Inc()
}

// resolveConversation finds the conversation by id, else by participant pair.
// The sender must take part in it and cmd.To, when given, must be the other participant.
func (h *Hub) resolveConversation(ctx context.Context, sender UserID, cmd *Command) (*store.Conversation, *CoreError) {
	var (
		conv *store.Conversation
		err  error
	)
	done := observeStore("find_conversation")
	if cmd.ConversationID != "" {
		conv, err = h.store.FindConversationByID(ctx, cmd.ConversationID)
	} else {
		conv, err = h.store.FindConversationByParticipants(ctx, string(sender), string(cmd.To))
	}
	done()

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errConversationNotFound
		}
		h.log.Error().Err(err).Str("user_id", string(sender)).Msg("find conversation")
		return nil, errMessageNotSent
	}
	if !conv.HasParticipant(string(sender)) {
		return nil, errConversationNotFound
	}
	if cmd.To != "" && conv.Other(string(sender)) != string(cmd.To) {
		return nil, errConversationNotFound
	}
	return conv, nil
}

// observeStore records the latency of one durable store call.
func observeStore(op string) func() {
	start := time.Now()
	return func() {
		metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
