package core

import "time"

// Message is the domain model for a delivered chat message, direct or group.
type Message struct {
	ID             string
	ConversationID string
	GroupID        string
	From           UserID
	To             UserID
	Text           string
	CreatedAt      time.Time
}
