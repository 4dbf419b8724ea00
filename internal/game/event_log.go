package game

import (
	"encoding/json"
	"log"
	"os"
	"sync"

	"golang.org/x/time/rate"
)

const (
	eventLogCapacity = 512
	// Damage events fire every hit; cap what reaches the log so a combo
	// spree cannot flood the persistence writer.
	damageEventsPerSec = 10
)

// EventLog keeps a bounded in-memory ring of recent events and optionally
// streams them to a JSONL file on a background writer. Recording never
// blocks the tick loop: a full writer channel drops the persistence copy,
// the ring always keeps the event.
type EventLog struct {
	mu     sync.Mutex
	ring   []Event
	next   int
	filled bool
	tick   uint64

	damageLimiter *rate.Limiter

	writeCh chan Event
	done    chan struct{}
	file    *os.File
}

// NewEventLog creates a log. path may be empty to disable persistence.
func NewEventLog(path string) *EventLog {
	el := &EventLog{
		ring:          make([]Event, eventLogCapacity),
		damageLimiter: rate.NewLimiter(rate.Limit(damageEventsPerSec), damageEventsPerSec),
	}

	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Printf("⚠️ event log file disabled: %v", err)
			return el
		}
		el.file = f
		el.writeCh = make(chan Event, 256)
		el.done = make(chan struct{})
		go el.writer()
	}

	return el
}

// SetTick updates the tick stamp applied to subsequent events.
func (el *EventLog) SetTick(tick uint64) {
	el.mu.Lock()
	el.tick = tick
	el.mu.Unlock()
}

// Record appends one event. High-frequency damage events are rate limited
// before they reach the ring.
func (el *EventLog) Record(t EventType, data map[string]any) {
	if t == EventDamage && !el.damageLimiter.Allow() {
		return
	}

	el.mu.Lock()
	ev := newEvent(t, el.tick, data)
	el.ring[el.next] = ev
	el.next = (el.next + 1) % len(el.ring)
	if el.next == 0 {
		el.filled = true
	}
	el.mu.Unlock()

	if el.writeCh != nil {
		select {
		case el.writeCh <- ev:
		default:
			// Writer behind; the in-memory ring still has the event.
		}
	}
}

// Recent returns up to n most recent events, newest last.
func (el *EventLog) Recent(n int) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	size := el.next
	if el.filled {
		size = len(el.ring)
	}
	if n > size {
		n = size
	}

	out := make([]Event, 0, n)
	for i := size - n; i < size; i++ {
		idx := i
		if el.filled {
			idx = (el.next + len(el.ring) - size + i) % len(el.ring)
		}
		out = append(out, el.ring[idx])
	}
	return out
}

// writer drains the channel into the JSONL file.
func (el *EventLog) writer() {
	defer close(el.done)
	enc := json.NewEncoder(el.file)
	for ev := range el.writeCh {
		if err := enc.Encode(ev); err != nil {
			log.Printf("⚠️ event log write failed: %v", err)
		}
	}
}

// Close flushes and closes the persistence writer.
func (el *EventLog) Close() {
	if el.writeCh == nil {
		return
	}
	close(el.writeCh)
	<-el.done
	if err := el.file.Close(); err != nil {
		log.Printf("⚠️ event log close failed: %v", err)
	}
}
