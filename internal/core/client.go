package core

import (
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/vovakirdan/wirechat-realtime/internal/metrics"
)

// UserID is the opaque identity a connection acts on behalf of.
type UserID string

// ClientState is the lifecycle stage of a connection.
type ClientState int32

const (
	// StateConnecting is a connection whose identity is not bound yet.
	StateConnecting ClientState = iota
	// StateAuthenticated is a connection bound to an identity but not registered.
	StateAuthenticated
	// StateActive is a registered connection that receives events.
	StateActive
	// StateClosed is a connection torn down by the registry.
	StateClosed
)

func (s ClientState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultSendQueueSize is used when NewClient is given a non-positive queue size.
const DefaultSendQueueSize = 64

// Client is one live connection as seen by the core layer.
// Events is closed by the registry when the connection is torn down.
type Client struct {
	ID     string
	User   UserID
	Name   string
	Events chan *Event

	state   atomic.Int32
	dropped atomic.Int64
}

// NewClient constructs a connecting client with a bounded outbound queue.
func NewClient(queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultSendQueueSize
	}
	return &Client{
		ID:     uuid.NewString(),
		Events: make(chan *Event, queueSize),
	}
}

// Authenticate binds the identity. It succeeds once, from StateConnecting only.
func (c *Client) Authenticate(user UserID, name string) bool {
	if user == "" {
		return false
	}
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateAuthenticated)) {
		return false
	}
	if name == "" {
		name = string(user)
	}
	c.User = user
	c.Name = name
	return true
}

// State reports the current lifecycle stage.
func (c *Client) State() ClientState {
	return ClientState(c.state.Load())
}

// Dropped reports how many events were discarded because the queue was full.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

func (c *Client) setState(s ClientState) {
	c.state.Store(int32(s))
}

// trySend enqueues without blocking. Callers hold the registry lock.
func (c *Client) trySend(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		c.dropped.Add(1)
		metrics.DroppedEvents.Inc()
		return false
	}
}
