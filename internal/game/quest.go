package game

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// QuestState is the lifecycle of one scripted side quest.
type QuestState uint8

const (
	QuestDormant QuestState = iota
	QuestOffered
	QuestActive
	QuestCompleted
	QuestFailed
)

// String returns the snapshot name of a quest state.
func (s QuestState) String() string {
	switch s {
	case QuestDormant:
		return "dormant"
	case QuestOffered:
		return "offered"
	case QuestActive:
		return "active"
	case QuestCompleted:
		return "completed"
	case QuestFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TriggerRegion is the AABB the player must stand in for the offer.
type TriggerRegion struct {
	X, Y, W, H float64
}

// contains reports whether the point is inside the region.
func (r TriggerRegion) contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// Quest is one scripted objective: reach the target record's marker before
// the timer runs out and before the adversarial chaser claims it.
type Quest struct {
	ID    string
	Name  string
	State QuestState

	Trigger      TriggerRegion
	ObjectiveRef string  // Feed record secured on success
	ObjectiveX   float64 // Marker position
	ObjectiveY   float64

	// Remaining counts down in float seconds once Active; dt is clamped
	// upstream so a stalled tick can never skip the terminal check.
	Remaining float64

	chaser Handle
	marker Handle

	// protectOutstanding guards against double-dispatching the remote
	// protect while a completion is in flight.
	protectOutstanding bool
}

// defaultQuests returns the scripted quests of a scope. Positions derive
// from world size so the layout survives config overrides.
func defaultQuests(worldW, worldH float64, refs []string) []*Quest {
	anchors := []struct {
		name   string
		tx, ty float64
		ox, oy float64
	}{
		{"northern cache", 0.12, 0.68, 0.85, 0.52},
		{"buried archive", 0.72, 0.66, 0.18, 0.5},
	}

	quests := make([]*Quest, 0, len(anchors))
	for i, a := range anchors {
		if i >= len(refs) {
			break
		}
		quests = append(quests, &Quest{
			ID:           uuid.NewString(),
			Name:         a.name,
			State:        QuestDormant,
			Trigger:      TriggerRegion{X: worldW * a.tx, Y: worldH * a.ty, W: 96, H: 96},
			ObjectiveRef: refs[i],
			ObjectiveX:   worldW * a.ox,
			ObjectiveY:   worldH * a.oy,
		})
	}
	return quests
}

// stepQuests runs offers, the active timer and win/lose checks.
func (e *Engine) stepQuests(dt float64) {
	player := e.store.Get(e.player)
	if player == nil {
		return
	}

	for _, q := range e.quests {
		switch q.State {
		case QuestDormant:
			if e.activeQuest() == nil && q.Trigger.contains(player.X, player.Y) {
				q.State = QuestOffered
				e.events.Record(EventQuest, map[string]any{"quest": q.Name, "state": q.State.String()})
			}

		case QuestOffered:
			// The offer stays latched until confirmed or a hub reset;
			// quest phases never move backward.

		case QuestActive:
			e.stepActiveQuest(q, player, dt)
		}
	}
}

// stepActiveQuest advances the timer and resolves the race between the
// player and the chaser.
func (e *Engine) stepActiveQuest(q *Quest, player *Entity, dt float64) {
	q.Remaining -= dt

	if chaser := e.store.Get(q.chaser); chaser != nil {
		cd := math.Hypot(chaser.X-q.ObjectiveX, chaser.Y-q.ObjectiveY)
		if cd <= e.cfg.Quest.ChaserReach {
			e.failQuest(q, "chaser reached the objective")
			return
		}
	}

	if q.Remaining <= 0 {
		q.Remaining = 0
		e.failQuest(q, "time expired")
		return
	}

	if q.protectOutstanding {
		return
	}
	pd := math.Hypot(player.X-q.ObjectiveX, player.Y-q.ObjectiveY)
	if pd <= e.cfg.Quest.ObjectiveRadius {
		q.protectOutstanding = true
		e.gateway.Protect(q.ObjectiveRef, e.scope)
	}
}

// ConfirmQuest accepts a pending offer, spawning the objective marker and
// the chaser. Only one quest can be active at a time.
func (e *Engine) ConfirmQuest(questID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var q *Quest
	for _, cand := range e.quests {
		if cand.ID == questID {
			q = cand
			break
		}
	}
	if q == nil {
		return fmt.Errorf("unknown quest %q", questID)
	}
	if q.State != QuestOffered {
		return fmt.Errorf("quest %q is %s, not offered", q.Name, q.State)
	}
	if active := e.activeQuest(); active != nil {
		return fmt.Errorf("quest %q already active", active.Name)
	}

	q.State = QuestActive
	q.Remaining = e.cfg.Quest.Duration.Seconds()

	q.marker = e.store.Spawn(Entity{
		Kind: KindObjective, Policy: PolicyNone,
		X: q.ObjectiveX, Y: q.ObjectiveY, HalfW: 12, HalfH: 12,
	})
	q.chaser = e.store.Spawn(Entity{
		Kind: KindChaser, Policy: PolicyNone,
		X: e.cfg.Sim.WorldWidth / 2, Y: 24, HalfW: 14, HalfH: 18,
	})

	e.flow.Generate(q.ObjectiveX, q.ObjectiveY)
	e.events.Record(EventQuest, map[string]any{"quest": q.Name, "state": q.State.String()})
	return nil
}

// resolveProtect consumes a protect completion. Success completes the
// quest; failure keeps it Active so reaching the objective again retries.
func (e *Engine) resolveProtect(ref string, err error) {
	for _, q := range e.quests {
		if q.ObjectiveRef != ref || q.State != QuestActive {
			continue
		}
		q.protectOutstanding = false
		if err != nil {
			e.events.Record(EventRemoteResult, map[string]any{"ref": ref, "ok": false, "action": "protect"})
			return
		}
		q.State = QuestCompleted
		e.clearQuestActors(q)
		e.events.Record(EventQuest, map[string]any{"quest": q.Name, "state": q.State.String()})
		return
	}
}

// failQuest terminates a quest on loss and removes its actors.
func (e *Engine) failQuest(q *Quest, reason string) {
	q.State = QuestFailed
	q.protectOutstanding = false
	e.clearQuestActors(q)
	e.events.Record(EventQuest, map[string]any{
		"quest": q.Name, "state": q.State.String(), "reason": reason,
	})
}

// clearQuestActors despawns the marker and chaser of a finished quest.
func (e *Engine) clearQuestActors(q *Quest) {
	e.despawn(q.marker)
	e.despawn(q.chaser)
	q.marker = Handle{}
	q.chaser = Handle{}
}

// resetQuests returns every quest to Dormant. Runs on lobby entry.
func (e *Engine) resetQuests() {
	for _, q := range e.quests {
		if q.State == QuestActive {
			e.clearQuestActors(q)
		}
		q.State = QuestDormant
		q.Remaining = 0
		q.protectOutstanding = false
	}
}

// activeQuest returns the single active quest, or nil.
func (e *Engine) activeQuest() *Quest {
	for _, q := range e.quests {
		if q.State == QuestActive {
			return q
		}
	}
	return nil
}
