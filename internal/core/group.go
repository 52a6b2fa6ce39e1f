package core

import (
	"context"
	"errors"
	"strings"

	"github.com/vovakirdan/wirechat-realtime/internal/metrics"
	"github.com/vovakirdan/wirechat-realtime/internal/store"
)

// memberGroup re-reads the group and checks that u is listed as a member.
// Membership is never cached: it may have changed since the last join.
func (h *Hub) memberGroup(ctx context.Context, groupID string, u UserID) (*store.Group, *CoreError) {
	if groupID == "" {
		return nil, coreError(ErrCodeBadRequest, "Missing group id")
	}
	if h.store == nil {
		return nil, errGroupUnavailable
	}

	done := observeStore("find_group")
	g, err := h.store.FindGroupByID(ctx, groupID)
	done()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errGroupNotFound
		}
		h.log.Error().Err(err).Str("group_id", groupID).Msg("find group")
		return nil, errGroupUnavailable
	}
	if !g.IsMember(string(u)) {
		return nil, errNotAMember
	}
	return g, nil
}

func (h *Hub) joinGroup(ctx context.Context, c *Client, cmd *Command) {
	if _, cerr := h.memberGroup(ctx, cmd.GroupID, c.User); cerr != nil {
		h.sendError(c, EventGroupError, cerr, "", nil)
		return
	}
	if !h.registry.Join(c, GroupRoom(cmd.GroupID)) {
		return
	}
	h.registry.EmitToClient(c, &Event{Kind: EventGroupJoined, From: c.User, GroupID: cmd.GroupID})
	h.log.Debug().Str("user_id", string(c.User)).Str("room", string(GroupRoom(cmd.GroupID))).Msg("joined group room")
}

func (h *Hub) leaveGroup(c *Client, cmd *Command) {
	if cmd.GroupID == "" {
		return
	}
	if !h.registry.Leave(c, GroupRoom(cmd.GroupID)) {
		return
	}
	h.registry.EmitToClient(c, &Event{Kind: EventGroupLeft, From: c.User, GroupID: cmd.GroupID})
}

// sendGroupMessage persists the message, updates the group summary and fans out
// to the group room. Nothing is emitted unless persistence succeeded.
func (h *Hub) sendGroupMessage(ctx context.Context, c *Client, cmd *Command) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		h.sendError(c, EventGroupMessageError, coreError(ErrCodeBadRequest, "Missing text"), cmd.ClientID, nil)
		return
	}

	g, cerr := h.memberGroup(ctx, cmd.GroupID, c.User)
	if cerr != nil {
		h.sendError(c, EventGroupMessageError, cerr, cmd.ClientID, nil)
		return
	}

	done := observeStore("create_group_message")
	msg, err := h.store.CreateGroupMessage(ctx, g.ID, string(c.User), text)
	done()
	if err != nil {
		h.log.Error().Err(err).Str("user_id", string(c.User)).Str("group_id", g.ID).Msg("persist group message")
		h.sendError(c, EventGroupMessageError, errGroupMessageNotSent, cmd.ClientID, nil)
		return
	}

	// Only the summary columns are written; membership may have changed since the read.
	done = observeStore("update_group_last_message")
	err = h.store.UpdateGroupLastMessage(ctx, g.ID, &store.LastMessage{Text: msg.Text, SenderID: msg.SenderID, At: msg.CreatedAt})
	done()
	if err != nil {
		h.log.Warn().Err(err).Str("group_id", g.ID).Msg("update group last message")
	}

	h.registry.EmitToRoom(GroupRoom(g.ID), &Event{
		Kind:    EventReceiveGroupMessage,
		From:    c.User,
		GroupID: g.ID,
		Message: &Message{
			ID:        msg.ID,
			GroupID:   g.ID,
			From:      c.User,
			Text:      msg.Text,
			CreatedAt: msg.CreatedAt,
		},
		ClientID: cmd.ClientID,
	})
	metrics.MessagesRelayed.WithLabelValues("group").Inc()
}

// groupTyping relays to every room member except the sender's own connections.
func (h *Hub) groupTyping(ctx context.Context, c *Client, cmd *Command) {
	if _, cerr := h.memberGroup(ctx, cmd.GroupID, c.User); cerr != nil {
		h.sendError(c, EventGroupError, cerr, "", nil)
		return
	}
	h.registry.EmitToRoomExcept(GroupRoom(cmd.GroupID), c.User, &Event{
		Kind:    EventGroupTyping,
		From:    c.User,
		GroupID: cmd.GroupID,
		Flag:    cmd.Flag,
	})
}

// groupSeen relays read receipts to the whole room, sender included.
func (h *Hub) groupSeen(ctx context.Context, c *Client, cmd *Command) {
	if _, cerr := h.memberGroup(ctx, cmd.GroupID, c.User); cerr != nil {
		h.sendError(c, EventGroupError, cerr, "", nil)
		return
	}
	ids := cmd.IDs
	if ids == nil {
		ids = []string{}
	}
	h.registry.EmitToRoom(GroupRoom(cmd.GroupID), &Event{
		Kind:    EventGroupMessagesSeen,
		From:    c.User,
		GroupID: cmd.GroupID,
		IDs:     ids,
	})
}
