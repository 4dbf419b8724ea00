package game

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies a simulation event.
type EventType string

const (
	EventScopeLoad    EventType = "scope_load"
	EventSpawn        EventType = "spawn"
	EventDamage       EventType = "damage"
	EventElimination  EventType = "elimination"
	EventRemoteResult EventType = "remote_result"
	EventModeChange   EventType = "mode_change"
	EventQuest        EventType = "quest"
	EventArcade       EventType = "arcade"
)

// Event is one recorded simulation occurrence. Data is event-type
// specific and must stay JSON-serializable.
type Event struct {
	ID   string         `json:"id"`
	Type EventType      `json:"type"`
	Tick uint64         `json:"tick"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// newEvent stamps an event with identity and the current tick.
func newEvent(t EventType, tick uint64, data map[string]any) Event {
	return Event{
		ID:   uuid.NewString(),
		Type: t,
		Tick: tick,
		Time: time.Now().UTC(),
		Data: data,
	}
}
