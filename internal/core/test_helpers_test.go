package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vovakirdan/wirechat-realtime/internal/callengine"
	"github.com/vovakirdan/wirechat-realtime/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// noEvent drains whatever is queued on ch and fails if kind is among it.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	time.Sleep(20 * time.Millisecond)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev)
			}
		default:
			return
		}
	}
}

// drain discards everything queued on ch.
func drain(ch <-chan *Event) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// pending returns everything queued on ch.
func pending(ch <-chan *Event) []*Event {
	var out []*Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			if ev != nil {
				out = append(out, ev)
			}
		default:
			return out
		}
	}
}

// collect returns the queued events of kind, consuming the whole queue.
func collect(ch <-chan *Event, kind EventKind) []*Event {
	var out []*Event
	for _, ev := range pending(ch) {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func newTestHub(t *testing.T, st Store) *Hub {
	t.Helper()
	return NewHub(Options{Store: st})
}

func connect(t *testing.T, h *Hub, user UserID) *Client {
	t.Helper()

	c := NewClient(64)
	require.True(t, c.Authenticate(user, ""))
	require.NoError(t, h.Connect(c))
	return c
}

func handle(h *Hub, c *Client, cmd *Command) {
	h.Handle(context.Background(), c, cmd)
}

var errInjected = errors.New("injected failure")

// fakeStore is an in-memory Store with failure injection.
type fakeStore struct {
	mu            sync.Mutex
	seq           int
	conversations map[string]*store.Conversation
	messages      []store.Message
	groups        map[string]*store.Group
	groupMessages []store.GroupMessage

	failFind               bool
	failCreateMessage      bool
	failUpdateSummary      bool
	failCreateGroupMessage bool

	// afterCreateGroupMessage runs without the lock once a group message is stored.
	afterCreateGroupMessage func(groupID string)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[string]*store.Conversation),
		groups:        make(map[string]*store.Group),
	}
}

func (s *fakeStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *fakeStore) addConversation(a, b UserID, status store.ConversationStatus) *store.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &store.Conversation{
		ID:           s.nextID("conv"),
		Participants: [2]string{string(a), string(b)},
		Status:       status,
		RequestedBy:  string(a),
		CreatedAt:    time.Now(),
	}
	s.conversations[conv.ID] = conv
	cp := *conv
	return &cp
}

func (s *fakeStore) addGroup(members ...UserID) *store.Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := &store.Group{ID: s.nextID("group"), Name: "team", OwnerID: string(members[0])}
	for _, m := range members {
		g.Members = append(g.Members, store.GroupMember{UserID: string(m), Role: store.GroupRoleMember})
	}
	s.groups[g.ID] = g
	cp := *g
	return &cp
}

func (s *fakeStore) removeMember(groupID string, u UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.groups[groupID]
	kept := g.Members[:0]
	for _, m := range g.Members {
		if m.UserID != string(u) {
			kept = append(kept, m)
		}
	}
	g.Members = kept
}

func (s *fakeStore) addMember(groupID string, u UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.groups[groupID]
	g.Members = append(g.Members, store.GroupMember{UserID: string(u), Role: store.GroupRoleMember})
}

func (s *fakeStore) setLastMessage(conversationID string, lm store.LastMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversationID].LastMessage = &lm
}

func (s *fakeStore) conversation(id string) store.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.conversations[id]
}

func (s *fakeStore) group(id string) store.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.groups[id]
}

func (s *fakeStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *fakeStore) groupMessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.groupMessages)
}

func (s *fakeStore) FindConversationByParticipants(_ context.Context, a, b string) (*store.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind {
		return nil, errInjected
	}
	for _, c := range s.conversations {
		if c.HasParticipant(a) && c.HasParticipant(b) && c.Other(a) == b {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("conversation: %w", store.ErrNotFound)
}

func (s *fakeStore) FindConversationByID(_ context.Context, id string) (*store.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind {
		return nil, errInjected
	}
	c, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation: %w", store.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) SaveConversation(_ context.Context, c *store.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = s.nextID("conv")
	}
	cp := *c
	s.conversations[c.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateConversationLastMessage(_ context.Context, conversationID string, lm *store.LastMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdateSummary {
		return errInjected
	}
	c, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	if c.LastMessage == nil || !lm.At.Before(c.LastMessage.At) {
		cp := *lm
		c.LastMessage = &cp
	}
	return nil
}

func (s *fakeStore) CreateMessage(_ context.Context, conversationID, senderID, recipientID, text string) (*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateMessage {
		return nil, errInjected
	}
	msg := store.Message{
		ID:             s.nextID("msg"),
		ConversationID: conversationID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Text:           text,
		CreatedAt:      time.Now(),
	}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *fakeStore) FindGroupByID(_ context.Context, id string) (*store.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind {
		return nil, errInjected
	}
	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("group: %w", store.ErrNotFound)
	}
	cp := *g
	cp.Members = append([]store.GroupMember(nil), g.Members...)
	return &cp, nil
}

func (s *fakeStore) SaveGroup(_ context.Context, g *store.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = s.nextID("group")
	}
	cp := *g
	cp.Members = append([]store.GroupMember(nil), g.Members...)
	s.groups[g.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateGroupLastMessage(_ context.Context, groupID string, lm *store.LastMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdateSummary {
		return errInjected
	}
	g, ok := s.groups[groupID]
	if !ok {
		return nil
	}
	if g.LastMessage == nil || !lm.At.Before(g.LastMessage.At) {
		cp := *lm
		g.LastMessage = &cp
	}
	return nil
}

func (s *fakeStore) CreateGroupMessage(_ context.Context, groupID, senderID, text string) (*store.GroupMessage, error) {
	s.mu.Lock()
	if s.failCreateGroupMessage {
		s.mu.Unlock()
		return nil, errInjected
	}
	msg := store.GroupMessage{
		ID:        s.nextID("gmsg"),
		GroupID:   groupID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	s.groupMessages = append(s.groupMessages, msg)
	hook := s.afterCreateGroupMessage
	s.mu.Unlock()

	if hook != nil {
		hook(groupID)
	}
	return &msg, nil
}

// fakeMedia hands out deterministic join info and records released rooms.
type fakeMedia struct {
	mu    sync.Mutex
	ended []string

	// beforeJoinInfo runs once, ahead of the first join info request.
	beforeJoinInfo func()
}

func (m *fakeMedia) CreateCall(_ context.Context, call callengine.Call) (string, error) {
	return "room-" + call.ID, nil
}

func (m *fakeMedia) EndCall(_ context.Context, call callengine.Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = append(m.ended, call.ID)
	return nil
}

func (m *fakeMedia) GenerateJoinInfo(_ context.Context, call callengine.Call, userID string) (*callengine.JoinInfo, error) {
	m.mu.Lock()
	hook := m.beforeJoinInfo
	m.beforeJoinInfo = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	return &callengine.JoinInfo{
		URL:      "ws://media",
		Token:    "token-" + userID,
		RoomName: "room-" + call.ID,
		Identity: "user-" + userID,
	}, nil
}

func (m *fakeMedia) endedCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ended...)
}
