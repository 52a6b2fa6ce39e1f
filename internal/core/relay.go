package core

// relayTyping forwards a direct typing indicator. A missing target is dropped.
func (h *Hub) relayTyping(c *Client, cmd *Command) {
	if cmd.To == "" {
		return
	}
	h.registry.EmitToRoom(PersonalRoom(cmd.To), &Event{
		Kind: EventTyping,
		From: c.User,
		Flag: cmd.Flag,
	})
}

// relaySeen forwards read receipts to the other participant.
func (h *Hub) relaySeen(c *Client, cmd *Command) {
	if cmd.To == "" {
		return
	}
	ids := cmd.IDs
	if ids == nil {
		ids = []string{}
	}
	h.registry.EmitToRoom(PersonalRoom(cmd.To), &Event{
		Kind: EventMessagesSeen,
		From: c.User,
		IDs:  ids,
	})
}

// answerPresence tells the requesting connection whether cmd.To is online.
func (h *Hub) answerPresence(c *Client, cmd *Command) {
	if cmd.To == "" {
		return
	}
	h.registry.mu.RLock()
	defer h.registry.mu.RUnlock()
	h.registry.emitToClientLocked(c, presenceEvent(cmd.To, h.registry.onlineLocked(cmd.To)))
}
