package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeRateLimited  = "rate_limited"

	// Conversation and group error codes
	ErrCodeConversationNotFound    = "conversation_not_found"
	ErrCodeConversationNotAccepted = "conversation_not_accepted"
	ErrCodeGroupNotFound           = "group_not_found"
	ErrCodeNotAMember              = "not_a_member"
	ErrCodePersistenceFailure      = "persistence_failure"

	// Call-related error codes
	ErrCodeAlreadyInCall = "already_in_call"
	ErrCodeUserBusy      = "user_busy"
	ErrCodeUserOffline   = "user_offline"
)

var (
	// ErrHubClosed is returned by Connect once the hub has stopped.
	ErrHubClosed = errors.New("hub closed")
	// ErrNotAuthenticated is returned when a client without a bound identity connects.
	ErrNotAuthenticated = errors.New("client not authenticated")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

var (
	errConversationNotFound    = coreError(ErrCodeConversationNotFound, "Conversation not found")
	errConversationNotAccepted = coreError(ErrCodeConversationNotAccepted, "Connection request not accepted yet")
	errMessageNotSent          = coreError(ErrCodePersistenceFailure, "Failed to send message")
	errGroupNotFound           = coreError(ErrCodeGroupNotFound, "Group not found")
	errNotAMember              = coreError(ErrCodeNotAMember, "You are not a member of this group")
	errGroupMessageNotSent     = coreError(ErrCodePersistenceFailure, "Failed to send")
	errGroupUnavailable        = coreError(ErrCodePersistenceFailure, "Group unavailable")
	errAlreadyInCall           = coreError(ErrCodeAlreadyInCall, "You are already in a call")
	errUserBusy                = coreError(ErrCodeUserBusy, "User is busy")
	errUserOffline             = coreError(ErrCodeUserOffline, "User is offline")
	errSelfCall                = coreError(ErrCodeBadRequest, "Cannot call yourself")
)
