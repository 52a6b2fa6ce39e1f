package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vovakirdan/wirechat-realtime/internal/metrics"
)

// Modality distinguishes voice from video calls.
type Modality int

const (
	// ModalityVoice is an audio-only call.
	ModalityVoice Modality = iota
	// ModalityVideo is an audio and video call.
	ModalityVideo
)

func (m Modality) String() string {
	if m == ModalityVideo {
		return "video"
	}
	return "voice"
}

// CallStatus is the state of a call record.
type CallStatus int

const (
	// CallCalling means the target has not answered yet.
	CallCalling CallStatus = iota
	// CallConnected means the target answered.
	CallConnected
)

func (s CallStatus) String() string {
	if s == CallConnected {
		return "connected"
	}
	return "calling"
}

// CallRecord is one in-memory call between a caller and a target.
type CallRecord struct {
	ID        string
	Caller    UserID
	Target    UserID
	Status    CallStatus
	Modality  Modality
	StartedAt time.Time
}

// Other returns the party that is not u.
func (r *CallRecord) Other(u UserID) UserID {
	if r.Caller == u {
		return r.Target
	}
	return r.Caller
}

func (r *CallRecord) links(a, b UserID) bool {
	return (r.Caller == a && r.Target == b) || (r.Caller == b && r.Target == a)
}

// CallBook holds call records keyed by caller, with a reverse index by target.
// Voice and video share one exclusivity pool: a user is party to at most one record.
type CallBook struct {
	mu       sync.Mutex
	byCaller map[UserID]*CallRecord
	byTarget map[UserID]*CallRecord
	now      func() time.Time
}

// NewCallBook creates an empty call book.
func NewCallBook() *CallBook {
	return &CallBook{
		byCaller: make(map[UserID]*CallRecord),
		byTarget: make(map[UserID]*CallRecord),
		now:      time.Now,
	}
}

// initiate creates a calling record after the busy checks.
// Callers must hold the registry lock and have checked that target is online.
func (b *CallBook) initiate(caller, target UserID, modality Modality) (*CallRecord, *CoreError) {
	if caller == target {
		return nil, errSelfCall
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.busyLocked(caller) {
		return nil, errAlreadyInCall
	}
	if b.busyLocked(target) {
		return nil, errUserBusy
	}

	rec := &CallRecord{
		ID:        uuid.NewString(),
		Caller:    caller,
		Target:    target,
		Status:    CallCalling,
		Modality:  modality,
		StartedAt: b.now(),
	}
	b.byCaller[caller] = rec
	b.byTarget[target] = rec
	b.updateGauge()
	metrics.CallTransitions.WithLabelValues(modality.String(), "initiate").Inc()

	return rec, nil
}

// Answer marks the ringing record from caller to callee connected.
// Returns a snapshot of the record, or false if none matches.
func (b *CallBook) Answer(callee, caller UserID, modality Modality) (CallRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.byCaller[caller]
	if !ok || rec.Target != callee || rec.Modality != modality || rec.Status != CallCalling {
		return CallRecord{}, false
	}
	rec.Status = CallConnected
	metrics.CallTransitions.WithLabelValues(modality.String(), "answer").Inc()
	return *rec, true
}

// Decline removes the record from caller to callee.
func (b *CallBook) Decline(callee, caller UserID, modality Modality) (CallRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.byCaller[caller]
	if !ok || rec.Target != callee || rec.Modality != modality {
		return CallRecord{}, false
	}
	b.removeLocked(rec)
	metrics.CallTransitions.WithLabelValues(modality.String(), "decline").Inc()
	return *rec, true
}

// End removes the record linking by and other in either role.
func (b *CallBook) End(by, other UserID, modality Modality) (CallRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.recordLocked(by)
	if rec == nil || !rec.links(by, other) || rec.Modality != modality {
		return CallRecord{}, false
	}
	b.removeLocked(rec)
	metrics.CallTransitions.WithLabelValues(modality.String(), "end").Inc()
	return *rec, true
}

// Linked returns the record linking a and b with the given modality.
func (b *CallBook) Linked(a, other UserID, modality Modality) (CallRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := b.recordLocked(a)
	if rec == nil || !rec.links(a, other) || rec.Modality != modality {
		return CallRecord{}, false
	}
	return *rec, true
}

// Drop removes every record u takes part in and returns them.
func (b *CallBook) Drop(u UserID) []CallRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	var dropped []CallRecord
	for _, rec := range []*CallRecord{b.byCaller[u], b.byTarget[u]} {
		if rec == nil {
			continue
		}
		if b.byCaller[rec.Caller] != rec {
			continue
		}
		b.removeLocked(rec)
		metrics.CallTransitions.WithLabelValues(rec.Modality.String(), "disconnect").Inc()
		dropped = append(dropped, *rec)
	}
	return dropped
}

// Busy reports whether u is a caller or a target of any record.
func (b *CallBook) Busy(u UserID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busyLocked(u)
}

// Len returns the number of active records.
func (b *CallBook) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byCaller)
}

// Snapshot returns a copy of the record u takes part in.
func (b *CallBook) Snapshot(u UserID) (CallRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec := b.recordLocked(u)
	if rec == nil {
		return CallRecord{}, false
	}
	return *rec, true
}

func (b *CallBook) busyLocked(u UserID) bool {
	return b.recordLocked(u) != nil
}

func (b *CallBook) recordLocked(u UserID) *CallRecord {
	if rec, ok := b.byCaller[u]; ok {
		return rec
	}
	return b.byTarget[u]
}

func (b *CallBook) removeLocked(rec *CallRecord) {
	delete(b.byCaller, rec.Caller)
	if b.byTarget[rec.Target] == rec {
		delete(b.byTarget, rec.Target)
	}
	b.updateGauge()
}

func (b *CallBook) updateGauge() {
	metrics.ActiveCalls.Set(float64(len(b.byCaller)))
}
