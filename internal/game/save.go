package game

import (
	"encoding/json"
	"fmt"
	"os"
)

// savedEntity is one persisted slot. Index and Gen round-trip exactly so
// handles held elsewhere (and generation checks against late remote
// completions) stay valid across a restore.
type savedEntity struct {
	Index uint32 `json:"index"`
	Gen   uint32 `json:"gen"`

	Kind   Kind   `json:"kind"`
	Policy Policy `json:"policy"`

	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx,omitempty"`
	VY float64 `json:"vy,omitempty"`
	HW float64 `json:"hw"`
	HH float64 `json:"hh"`

	HP     int  `json:"hp"`
	MaxHP  int  `json:"max_hp"`
	Exempt bool `json:"exempt,omitempty"`

	Ref  string `json:"ref,omitempty"`
	Name string `json:"name,omitempty"`

	Hidden     bool `json:"hidden,omitempty"`
	Eliminated bool `json:"eliminated,omitempty"`

	Damage int     `json:"damage,omitempty"`
	Life   float64 `json:"life,omitempty"`
}

// savedQuest persists a quest's durable state. Transient actors (marker,
// chaser) respawn on restore for active quests.
type savedQuest struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	State     QuestState    `json:"state"`
	Ref       string        `json:"ref"`
	Remaining float64       `json:"remaining,omitempty"`
	OX        float64       `json:"ox"`
	OY        float64       `json:"oy"`
	Trigger   TriggerRegion `json:"trigger"`
}

// savedArcade persists the challenge session across a restore. In-flight
// commits do not survive: an uncommitted queue restores intact, a
// mid-commit session restores as uncommitted.
type savedArcade struct {
	Phase        ArcadePhase `json:"phase"`
	Countdown    float64     `json:"countdown,omitempty"`
	Remaining    float64     `json:"remaining,omitempty"`
	Combo        int         `json:"combo"`
	ComboTimer   float64     `json:"combo_timer,omitempty"`
	HighestCombo int         `json:"highest_combo"`
	Elims        int         `json:"elims"`
	Queue        []struct {
		Ref   string `json:"ref"`
		Index uint32 `json:"index"`
		Gen   uint32 `json:"gen"`
	} `json:"queue,omitempty"`
}

// SaveState is the complete persisted simulation.
type SaveState struct {
	Version int    `json:"version"`
	Tick    uint64 `json:"tick"`
	Mode    Mode   `json:"mode"`
	Resume  Mode   `json:"resume_target"`
	Scope   string `json:"scope"`

	Scopes   []string      `json:"scopes"`
	Player   savedEntity   `json:"player"`
	Entities []savedEntity `json:"entities"`
	Quests   []savedQuest  `json:"quests"`
	Arcade   savedArcade   `json:"arcade"`
}

const saveVersion = 1

// Save captures the current simulation state.
func (e *Engine) Save() (*SaveState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pending) > 0 {
		return nil, fmt.Errorf("%d eliminations awaiting confirmation, retry shortly", len(e.pending))
	}

	st := &SaveState{
		Version: saveVersion,
		Tick:    e.tickCount,
		Mode:    e.mode.Current(),
		Resume:  e.mode.ResumeTarget(),
		Scope:   e.scope,
		Scopes:  append([]string(nil), e.scopes...),
	}

	e.store.ForEach(func(ent *Entity) {
		se := encodeEntity(ent)
		if ent.Kind == KindPlayer {
			st.Player = se
			return
		}
		// Quest actors respawn from quest state; projectiles are not
		// worth persisting.
		switch ent.Kind {
		case KindProjectile, KindChaser, KindObjective:
			return
		}
		st.Entities = append(st.Entities, se)
	})

	for _, q := range e.quests {
		st.Quests = append(st.Quests, savedQuest{
			ID: q.ID, Name: q.Name, State: q.State, Ref: q.ObjectiveRef,
			Remaining: q.Remaining, OX: q.ObjectiveX, OY: q.ObjectiveY,
			Trigger: q.Trigger,
		})
	}

	a := e.arcade
	sa := savedArcade{
		Phase:        a.phase,
		Countdown:    a.countdown,
		Remaining:    a.remaining,
		Combo:        a.combo,
		ComboTimer:   a.comboTimer,
		HighestCombo: a.highestCombo,
		Elims:        a.elims,
	}
	for _, q := range a.queue {
		sa.Queue = append(sa.Queue, struct {
			Ref   string `json:"ref"`
			Index uint32 `json:"index"`
			Gen   uint32 `json:"gen"`
		}{Ref: q.ref, Index: q.handle.Index, Gen: q.handle.Gen})
	}
	st.Arcade = sa

	return st, nil
}

func encodeEntity(ent *Entity) savedEntity {
	return savedEntity{
		Index: ent.Handle.Index, Gen: ent.Handle.Gen,
		Kind: ent.Kind, Policy: ent.Policy,
		X: ent.X, Y: ent.Y, VX: ent.VX, VY: ent.VY,
		HW: ent.HalfW, HH: ent.HalfH,
		HP: ent.HP, MaxHP: ent.MaxHP, Exempt: ent.Exempt,
		Ref: ent.ExternalRef, Name: ent.DisplayName,
		Hidden: ent.Hidden, Eliminated: ent.Eliminated,
		Damage: ent.Damage, Life: ent.Life,
	}
}

func decodeEntity(se savedEntity) Entity {
	return Entity{
		Kind: se.Kind, Policy: se.Policy,
		X: se.X, Y: se.Y, VX: se.VX, VY: se.VY,
		HalfW: se.HW, HalfH: se.HH,
		HP: se.HP, MaxHP: se.MaxHP, Exempt: se.Exempt,
		ExternalRef: se.Ref, DisplayName: se.Name,
		Hidden: se.Hidden, Eliminated: se.Eliminated,
		Damage: se.Damage, Life: se.Life,
	}
}

// Restore replaces the whole simulation with a saved state. Generation
// counters restore exactly, so any completion raced from before the save
// is rejected by the usual handle checks.
func (e *Engine) Restore(st *SaveState) error {
	if st.Version != saveVersion {
		return fmt.Errorf("unsupported save version %d", st.Version)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.store = NewEntityStore(256)
	e.grid.Clear()
	e.pending = make(map[string]pendingElim)
	e.tickCount = st.Tick
	e.scope = st.Scope
	e.scopes = append([]string(nil), st.Scopes...)
	e.input = PlayerInput{}

	e.mode = NewModeMachine(e.cfg.Sim.DebugChecks)
	e.mode.current = st.Mode
	e.mode.resumeTarget = st.Resume

	e.player = e.store.restoreSlot(st.Player.Index, st.Player.Gen, decodeEntity(st.Player))
	for _, se := range st.Entities {
		e.store.restoreSlot(se.Index, se.Gen, decodeEntity(se))
	}
	e.store.rebuildFreeList()

	e.quests = e.quests[:0]
	for _, sq := range st.Quests {
		q := &Quest{
			ID: sq.ID, Name: sq.Name, State: sq.State,
			ObjectiveRef: sq.Ref, Remaining: sq.Remaining,
			ObjectiveX: sq.OX, ObjectiveY: sq.OY, Trigger: sq.Trigger,
		}
		if q.State == QuestActive {
			q.marker = e.store.Spawn(Entity{
				Kind: KindObjective, Policy: PolicyNone,
				X: q.ObjectiveX, Y: q.ObjectiveY, HalfW: 12, HalfH: 12,
			})
			q.chaser = e.store.Spawn(Entity{
				Kind: KindChaser, Policy: PolicyNone,
				X: e.cfg.Sim.WorldWidth / 2, Y: 24, HalfW: 14, HalfH: 18,
			})
			e.flow.Generate(q.ObjectiveX, q.ObjectiveY)
		}
		e.quests = append(e.quests, q)
	}

	a := NewArcadeSession(e.cfg.Arcade)
	a.phase = st.Arcade.Phase
	a.countdown = st.Arcade.Countdown
	a.remaining = st.Arcade.Remaining
	a.combo = st.Arcade.Combo
	a.comboTimer = st.Arcade.ComboTimer
	a.highestCombo = st.Arcade.HighestCombo
	a.elims = st.Arcade.Elims
	for _, sq := range st.Arcade.Queue {
		a.queue = append(a.queue, queuedElim{
			ref:    sq.Ref,
			handle: Handle{Index: sq.Index, Gen: sq.Gen},
		})
	}
	e.arcade = a

	e.rebuildGrid()
	e.events.Record(EventScopeLoad, map[string]any{"scope": e.scope, "restored": true})
	return nil
}

// SaveToFile writes the save as JSON.
func (e *Engine) SaveToFile(path string) error {
	st, err := e.Save()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode save: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	return nil
}

// RestoreFromFile loads a JSON save.
func (e *Engine) RestoreFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read save: %w", err)
	}
	var st SaveState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode save: %w", err)
	}
	return e.Restore(&st)
}
