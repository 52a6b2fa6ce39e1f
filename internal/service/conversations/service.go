package conversations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/wirechat-realtime/internal/store"
)

// Common errors for connection request operations.
var (
	ErrCannotRequestSelf = errors.New("cannot send connection request to yourself")
	ErrUserNotFound      = errors.New("user not found")
	ErrRequestNotFound   = errors.New("connection request not found")
	ErrAlreadyAccepted   = errors.New("connection request already accepted")
)

// Store is the persistence the service needs.
type Store interface {
	store.UserStore
	store.ConversationStore
}

// Service manages the request/accept lifecycle that gates direct messaging.
type Service struct {
	store Store
	now   func() time.Time
}

// New creates a new conversation service.
func New(st Store) *Service {
	return &Service{store: st, now: time.Now}
}

// Request opens a pending conversation from one user to another. When the pair
// already has a conversation it is returned unchanged.
func (s *Service) Request(ctx context.Context, fromUserID, toUserID string) (*store.Conversation, error) {
	if fromUserID == toUserID {
		return nil, ErrCannotRequestSelf
	}

	if _, err := s.store.GetUserByID(ctx, toUserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	existing, err := s.store.FindConversationByParticipants(ctx, fromUserID, toUserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}

	conv := &store.Conversation{
		Participants: [2]string{fromUserID, toUserID},
		Status:       store.ConversationStatusPending,
		RequestedBy:  fromUserID,
	}
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// Accept marks a pending conversation accepted. Only the participant who did
// not send the request may accept it.
func (s *Service) Accept(ctx context.Context, userID, conversationID string) (*store.Conversation, error) {
	conv, err := s.store.FindConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}

	if !conv.HasParticipant(userID) || conv.RequestedBy == userID {
		return nil, ErrRequestNotFound
	}
	if conv.Status == store.ConversationStatusAccepted {
		return nil, ErrAlreadyAccepted
	}

	now := s.now().UTC()
	conv.Status = store.ConversationStatusAccepted
	conv.AcceptedAt = &now
	if err := s.store.SaveConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("accept conversation: %w", err)
	}
	return conv, nil
}
