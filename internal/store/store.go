package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned (wrapped) by lookups that match no record.
var ErrNotFound = errors.New("not found")

// User represents a registered user.
type User struct {
	ID           string
	Name         string
	CountryCode  string
	PhoneNumber  string
	PasswordHash string
	CreatedAt    time.Time
}

// ConversationStatus defines the connection request lifecycle of a conversation.
type ConversationStatus string

const (
	ConversationStatusPending  ConversationStatus = "pending"
	ConversationStatusAccepted ConversationStatus = "accepted"
)

// LastMessage is the denormalized summary shown in conversation and group lists.
type LastMessage struct {
	Text     string
	SenderID string
	At       time.Time
}

// Conversation is a 1:1 thread between two users.
type Conversation struct {
	ID           string
	Participants [2]string
	Status       ConversationStatus
	RequestedBy  string
	AcceptedAt   *time.Time
	LastMessage  *LastMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// Message represents a persisted direct message.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	RecipientID    string
	Text           string
	CreatedAt      time.Time
}

// GroupRole defines a member's permissions within a group.
type GroupRole string

const (
	GroupRoleOwner  GroupRole = "owner"
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
)

// GroupMember represents group membership.
type GroupMember struct {
	UserID   string
	Role     GroupRole
	JoinedAt time.Time
}

// Group is an N-member chat.
type Group struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	Members     []GroupMember
	LastMessage *LastMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsMember checks if userID is listed among the group members.
func (g *Group) IsMember(userID string) bool {
	for _, m := range g.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// GroupMessage represents a persisted group message.
type GroupMessage struct {
	ID        string
	GroupID   string
	SenderID  string
	Text      string
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, name, countryCode, phoneNumber, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByPhone retrieves a user by phone number.
	GetUserByPhone(ctx context.Context, phoneNumber string) (*User, error)
}

// ConversationStore handles conversation persistence.
type ConversationStore interface {
	// FindConversationByParticipants returns the conversation between a and b in either order.
	FindConversationByParticipants(ctx context.Context, a, b string) (*Conversation, error)

	// FindConversationByID retrieves a conversation by ID.
	FindConversationByID(ctx context.Context, id string) (*Conversation, error)

	// SaveConversation inserts the conversation, or updates it when the ID already exists.
	// An empty ID is assigned before insert.
	SaveConversation(ctx context.Context, c *Conversation) error

	// UpdateConversationLastMessage sets only the last message summary.
	// A summary older than the stored one is ignored.
	UpdateConversationLastMessage(ctx context.Context, conversationID string, lm *LastMessage) error
}

// MessageStore handles direct message persistence.
type MessageStore interface {
	// CreateMessage persists a direct message and returns it with ID and timestamp set.
	CreateMessage(ctx context.Context, conversationID, senderID, recipientID, text string) (*Message, error)
}

// GroupStore handles group persistence.
type GroupStore interface {
	// FindGroupByID retrieves a group with its member list.
	FindGroupByID(ctx context.Context, id string) (*Group, error)

	// SaveGroup inserts the group, or updates it (members included) when the ID already exists.
	SaveGroup(ctx context.Context, g *Group) error

	// UpdateGroupLastMessage sets only the last message summary; members are left untouched.
	// A summary older than the stored one is ignored.
	UpdateGroupLastMessage(ctx context.Context, groupID string, lm *LastMessage) error
}

// GroupMessageStore handles group message persistence.
type GroupMessageStore interface {
	// CreateGroupMessage persists a group message and returns it with ID and timestamp set.
	CreateGroupMessage(ctx context.Context, groupID, senderID, text string) (*GroupMessage, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ConversationStore
	MessageStore
	GroupStore
	GroupMessageStore

	// Close closes the underlying database connection.
	Close() error
}
