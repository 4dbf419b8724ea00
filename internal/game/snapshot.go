package game

import "sync/atomic"

// EntitySnapshot is one rendered entity.
type EntitySnapshot struct {
	Kind       string  `json:"kind"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	HealthFrac float64 `json:"health_frac"`
	Exempt     bool    `json:"exempt,omitempty"`
	Flash      bool    `json:"flash,omitempty"`
	Name       string  `json:"name,omitempty"`
}

// QuestSnapshot is a quest's renderable state.
type QuestSnapshot struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	State     string  `json:"state"`
	Remaining float64 `json:"remaining,omitempty"`
}

// ArcadeSnapshot is the challenge overlay state.
type ArcadeSnapshot struct {
	Phase     string      `json:"phase"`
	Countdown float64     `json:"countdown,omitempty"`
	Remaining float64     `json:"remaining,omitempty"`
	Combo     int         `json:"combo"`
	Stats     ArcadeStats `json:"stats"`
	Report    BatchReport `json:"report"`
}

// RankedSnapshot is one leaderboard row.
type RankedSnapshot struct {
	Rank  int     `json:"rank"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// GameSnapshot is the full render state produced once per tick.
type GameSnapshot struct {
	Tick     uint64           `json:"tick"`
	Mode     string           `json:"mode"`
	Scope    string           `json:"scope"`
	Entities []EntitySnapshot `json:"entities"`
	Quests   []QuestSnapshot  `json:"quests"`
	Arcade   ArcadeSnapshot   `json:"arcade"`
	Board    []RankedSnapshot `json:"board"`
}

// SnapshotPool hands render state from the tick loop to readers without
// blocking either side. The single producer rotates through three buffers
// and publishes atomically; readers must treat a snapshot as read-only and
// not hold it across many ticks.
type SnapshotPool struct {
	bufs    [3]GameSnapshot
	write   int
	current atomic.Pointer[GameSnapshot]
}

// NewSnapshotPool returns a pool with an empty published snapshot.
func NewSnapshotPool() *SnapshotPool {
	p := &SnapshotPool{}
	p.current.Store(&p.bufs[2])
	return p
}

// Writable returns the next buffer to fill. Producer only.
func (p *SnapshotPool) Writable() *GameSnapshot {
	return &p.bufs[p.write]
}

// Publish makes the just-filled buffer the latest snapshot.
func (p *SnapshotPool) Publish() {
	p.current.Store(&p.bufs[p.write])
	p.write = (p.write + 1) % len(p.bufs)
}

// Latest returns the most recently published snapshot.
func (p *SnapshotPool) Latest() *GameSnapshot {
	return p.current.Load()
}

// produceSnapshot fills the next pool buffer from live state and
// publishes it. Runs last in the tick, under the engine lock.
func (e *Engine) produceSnapshot() {
	snap := e.snapshots.Writable()
	snap.Tick = e.tickCount
	snap.Mode = e.mode.Current().String()
	snap.Scope = e.scope
	snap.Entities = snap.Entities[:0]
	snap.Quests = snap.Quests[:0]
	snap.Board = snap.Board[:0]

	e.store.ForEach(func(ent *Entity) {
		if ent.Hidden {
			return
		}
		frac := 1.0
		if ent.MaxHP > 0 {
			frac = float64(ent.HP) / float64(ent.MaxHP)
		}
		snap.Entities = append(snap.Entities, EntitySnapshot{
			Kind:       ent.Kind.String(),
			X:          ent.X,
			Y:          ent.Y,
			W:          ent.HalfW * 2,
			H:          ent.HalfH * 2,
			HealthFrac: frac,
			Exempt:     ent.Exempt,
			Flash:      ent.FlashTimer > 0,
			Name:       ent.DisplayName,
		})
	})

	for _, q := range e.quests {
		qs := QuestSnapshot{ID: q.ID, Name: q.Name, State: q.State.String()}
		if q.State == QuestActive {
			qs.Remaining = q.Remaining
		}
		snap.Quests = append(snap.Quests, qs)
	}

	a := e.arcade
	snap.Arcade = ArcadeSnapshot{
		Phase:     a.Phase().String(),
		Countdown: a.countdown,
		Remaining: a.remaining,
		Combo:     a.combo,
		Stats:     a.Stats(),
		Report:    a.Report(),
	}

	for i, entry := range e.score.Top(10) {
		snap.Board = append(snap.Board, RankedSnapshot{
			Rank: i + 1, Name: entry.Key, Score: entry.Score,
		})
	}

	e.snapshots.Publish()
}
