// Package feed talks to the remote record feed: the external system whose
// unused records the simulation mirrors as hostile entities. Eliminating an
// entity quarantines or blocks its record here.
//
// All mutating calls are asynchronous. Results never reach callers inline;
// they are pushed onto a CompletionQueue that the tick loop drains once per
// tick, so simulation state is only ever touched from the tick goroutine.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log"

	"zombie-sweep/internal/game/spatial"
)

// Record is one unused record returned by the feed for a scope.
type Record struct {
	ExternalRef string `json:"ref"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"` // "hostile", "boss" or "exempt"
	Exempt      bool   `json:"exempt"`
}

// Action identifies a remote mutation kind.
type Action uint8

const (
	ActionUnknown Action = iota
	ActionQuarantine
	ActionBlock
	ActionProtect
	ActionBatchItem
)

// String returns a human-readable action name.
func (a Action) String() string {
	switch a {
	case ActionQuarantine:
		return "quarantine"
	case ActionBlock:
		return "block"
	case ActionProtect:
		return "protect"
	case ActionBatchItem:
		return "batch_item"
	default:
		return "unknown"
	}
}

// Completion is the result of one asynchronous remote action.
// Err is nil on success.
type Completion struct {
	Action Action
	Ref    string
	Scope  string
	Err    error
}

// Gateway is the remote action surface the simulation depends on.
// FetchRecords is synchronous (called during scope load, off the tick
// loop); every mutation is fire-and-forget with the result arriving on the
// completion queue.
type Gateway interface {
	FetchRecords(ctx context.Context, scope string) ([]Record, error)
	Quarantine(ref, scope string)
	Block(ref, scope string)
	Protect(ref, scope string)
	BatchQuarantine(refs []string, scope string)
}

// =============================================================================
// COMPLETION QUEUE
// =============================================================================

// DefaultCompletionCapacity bounds in-flight unconsumed completions.
const DefaultCompletionCapacity = 1024

// CompletionQueue is the single thread-safe channel between gateway
// goroutines (producers) and the tick loop (the only consumer).
type CompletionQueue struct {
	q *spatial.MPSCQueue[Completion]
}

// NewCompletionQueue creates a queue with the given capacity.
func NewCompletionQueue(capacity int) *CompletionQueue {
	if capacity <= 0 {
		capacity = DefaultCompletionCapacity
	}
	return &CompletionQueue{q: spatial.NewMPSCQueue[Completion](capacity)}
}

// Push enqueues a completion without blocking. A full queue drops the
// completion with a warning; the affected action is retried by gameplay
// (restore paths treat a missing confirmation as failure on next dispatch).
func (c *CompletionQueue) Push(done Completion) {
	if !c.q.TryPush(done) {
		log.Printf("⚠️ completion queue full, dropping %s result for %s", done.Action, done.Ref)
	}
}

// DrainTo reads available completions into buf, returning the count.
// Single consumer only (the tick loop).
func (c *CompletionQueue) DrainTo(buf []Completion) int {
	return c.q.DrainTo(buf)
}

// Len returns the approximate queued count.
func (c *CompletionQueue) Len() int {
	return c.q.Len()
}

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// RemoteError classifies a failed remote call.
// Transient failures (timeouts, 5xx, 429) are retried at the gateway
// boundary; a final transient failure is a normal "failed" outcome.
// Permanent failures (auth, bad config) suppress further calls of that
// action kind.
type RemoteError struct {
	Op        string
	Status    int // HTTP status, 0 for transport errors
	Transient bool
	Err       error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed: status %d", e.Op, e.Status)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ErrSuppressed reports that an action kind has been disabled after a
// permanent failure.
var ErrSuppressed = errors.New("remote action suppressed after permanent failure")

// IsTransient reports whether err is a retriable remote failure.
func IsTransient(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Transient
}

// IsPermanent reports whether err is a non-retriable remote failure.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrSuppressed) {
		return true
	}
	var re *RemoteError
	return errors.As(err, &re) && !re.Transient
}

// DataError marks a malformed feed record. Malformed records are skipped
// with a warning and never block loading the rest of the scope.
type DataError struct {
	Ref    string
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("malformed feed record %q: %s", e.Ref, e.Reason)
}
