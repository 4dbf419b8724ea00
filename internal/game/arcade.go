package game

import (
	"fmt"
	"log"
	"time"

	"zombie-sweep/internal/config"
	"zombie-sweep/internal/feed"
)

// ArcadePhase is the internal lifecycle of a timed challenge session.
// The session lives inside ModeArcadeActive until the timer expires,
// then ModeArcadeResults until the caller commits or discards.
type ArcadePhase uint8

const (
	ArcadeInactive ArcadePhase = iota
	ArcadeCountdown
	ArcadeActive
	ArcadeResults
)

// String returns the snapshot name of a phase.
func (p ArcadePhase) String() string {
	switch p {
	case ArcadeInactive:
		return "inactive"
	case ArcadeCountdown:
		return "countdown"
	case ArcadeActive:
		return "active"
	case ArcadeResults:
		return "results"
	default:
		return "unknown"
	}
}

// queuedElim is one deferred remote effect: the record ref of an entity
// eliminated during the session, held until commit or discard.
type queuedElim struct {
	ref    string
	handle Handle
}

// pendingRespawn fills back in after RespawnDelay.
type pendingRespawn struct {
	delay float64
}

// BatchReport is the accounting of one commit. Succeeded plus Failed
// always sums to the number of queued refs once Done.
type BatchReport struct {
	Total     int  `json:"total"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Done      bool `json:"done"`
}

// ArcadeStats summarize a finished session.
type ArcadeStats struct {
	Eliminations int     `json:"eliminations"`
	HighestCombo int     `json:"highest_combo"`
	PerMinute    float64 `json:"per_minute"`
}

// ArcadeSession is the timed challenge state. All mutation happens on the
// tick goroutine; the commit goroutine only talks to the gateway.
type ArcadeSession struct {
	cfg   config.ArcadeConfig
	phase ArcadePhase

	countdown float64 // Seconds until Active
	remaining float64 // Seconds of play left

	combo        int
	comboTimer   float64 // Seconds left in the sliding window
	highestCombo int
	elims        int

	queue    []queuedElim
	respawns []pendingRespawn

	committed bool
	report    BatchReport
}

// NewArcadeSession returns an idle session.
func NewArcadeSession(cfg config.ArcadeConfig) *ArcadeSession {
	return &ArcadeSession{cfg: cfg}
}

// Phase returns the current phase.
func (a *ArcadeSession) Phase() ArcadePhase { return a.phase }

// Running reports whether combat multipliers and deferred queueing apply.
func (a *ArcadeSession) Running() bool { return a.phase == ArcadeActive }

// Remaining returns the seconds of play left.
func (a *ArcadeSession) Remaining() float64 { return a.remaining }

// Combo returns the live combo count.
func (a *ArcadeSession) Combo() int { return a.combo }

// Report returns the commit accounting so far.
func (a *ArcadeSession) Report() BatchReport { return a.report }

// Stats returns the session summary.
func (a *ArcadeSession) Stats() ArcadeStats {
	mins := a.cfg.Duration.Minutes()
	rate := 0.0
	if mins > 0 {
		rate = float64(a.elims) / mins
	}
	return ArcadeStats{Eliminations: a.elims, HighestCombo: a.highestCombo, PerMinute: rate}
}

// Multiplier returns the damage multiplier the current combo unlocks.
// Tiers are checked highest threshold first.
func (a *ArcadeSession) Multiplier() float64 {
	mult := 1.0
	for _, tier := range a.cfg.ComboTiers {
		if a.combo >= tier.Threshold && tier.Multiplier > mult {
			mult = tier.Multiplier
		}
	}
	return mult
}

// begin arms the countdown.
func (a *ArcadeSession) begin() {
	a.phase = ArcadeCountdown
	a.countdown = a.cfg.Countdown.Seconds()
	a.remaining = a.cfg.Duration.Seconds()
	a.combo = 0
	a.comboTimer = 0
	a.highestCombo = 0
	a.elims = 0
	a.queue = a.queue[:0]
	a.respawns = a.respawns[:0]
	a.committed = false
	a.report = BatchReport{}
}

// OnElimination records a session elimination: combo extends, the sliding
// window restarts, and remotely backed refs are queued for commit instead
// of calling out immediately.
func (a *ArcadeSession) OnElimination(ent *Entity) {
	a.elims++
	a.combo++
	a.comboTimer = a.cfg.ComboWindow.Seconds()
	if a.combo > a.highestCombo {
		a.highestCombo = a.combo
	}
	if ent.ExternalRef != "" {
		a.queue = append(a.queue, queuedElim{ref: ent.ExternalRef, handle: ent.Handle})
	}
	a.respawns = append(a.respawns, pendingRespawn{delay: a.cfg.RespawnDelay.Seconds()})
}

// QueuedRefs returns the deferred refs in elimination order.
func (a *ArcadeSession) QueuedRefs() []string {
	refs := make([]string, len(a.queue))
	for i, q := range a.queue {
		refs[i] = q.ref
	}
	return refs
}

// stepArcade advances the session clock, the combo window and respawns.
func (e *Engine) stepArcade(dt float64) {
	a := e.arcade
	switch a.phase {
	case ArcadeCountdown:
		a.countdown -= dt
		if a.countdown <= 0 {
			a.countdown = 0
			a.phase = ArcadeActive
			e.events.Record(EventArcade, map[string]any{"phase": a.phase.String()})
		}

	case ArcadeActive:
		a.remaining -= dt
		if a.comboTimer > 0 {
			a.comboTimer -= dt
			if a.comboTimer <= 0 {
				a.comboTimer = 0
				a.combo = 0
			}
		}
		e.stepRespawns(dt)
		if a.remaining <= 0 {
			a.remaining = 0
			a.phase = ArcadeResults
			e.applyModeEvent(ModeEvent{Kind: EventArcadeTimeUp})
			e.events.Record(EventArcade, map[string]any{
				"phase": a.phase.String(),
				"stats": a.Stats(),
			})
		}
	}
}

// stepRespawns counts down queued respawns and tops the field back up to
// MinLive. Respawned minis carry no record ref, so eliminating one never
// duplicates a queued remote effect.
func (e *Engine) stepRespawns(dt float64) {
	a := e.arcade
	n := 0
	for i := range a.respawns {
		a.respawns[i].delay -= dt
		if a.respawns[i].delay > 0 {
			a.respawns[n] = a.respawns[i]
			n++
			continue
		}
		if e.liveHostiles() < a.cfg.MinLive {
			e.spawnArcadeMini()
		}
	}
	a.respawns = a.respawns[:n]
}

// spawnArcadeMini drops a refless one-hit hostile near the top of the map.
func (e *Engine) spawnArcadeMini() {
	x := e.cfg.Sim.WorldWidth * (0.15 + 0.7*e.rng.Float64())
	e.store.Spawn(Entity{
		Kind: KindMiniHostile, Policy: PolicyNone,
		X: x, Y: 40, HalfW: 12, HalfH: 14,
		HP: e.cfg.Sim.MiniHP, MaxHP: e.cfg.Sim.MiniHP,
	})
}

// liveHostiles counts live enemies of any hostile kind.
func (e *Engine) liveHostiles() int {
	n := 0
	e.store.ForEach(func(ent *Entity) {
		switch ent.Kind {
		case KindHostile, KindExemptHostile, KindBoss, KindMiniHostile:
			if ent.Live() {
				n++
			}
		}
	})
	return n
}

// StartArcade begins a challenge session from the lobby.
func (e *Engine) StartArcade() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.scope == "" {
		return fmt.Errorf("no scope loaded")
	}
	if _, ok := e.applyModeEvent(ModeEvent{Kind: EventArcadeStart}); !ok {
		return fmt.Errorf("cannot start arcade from %s", e.mode.Current())
	}
	e.arcade.begin()
	e.seedArcadeField()
	e.events.Record(EventArcade, map[string]any{"phase": e.arcade.phase.String()})
	return nil
}

// seedArcadeField populates the board for a fresh session. The lobby
// cleared every non-player entity, so the loaded scope's ordinary records
// are mirrored again as hostiles, then refless minis top the count up to
// MinLive. Eliminating a mirrored hostile queues its ref for the
// end-of-session batch.
func (e *Engine) seedArcadeField() {
	for _, r := range e.records {
		if r.Kind == "boss" || r.Kind == "exempt" || r.Exempt {
			continue
		}
		x := e.cfg.Sim.WorldWidth * (0.1 + 0.8*e.rng.Float64())
		e.store.Spawn(Entity{
			Kind: KindHostile, Policy: PolicyQuarantine,
			X: x, Y: 60, HalfW: 14, HalfH: 18,
			HP: e.cfg.Sim.HostileHP, MaxHP: e.cfg.Sim.HostileHP,
			ExternalRef: r.ExternalRef, DisplayName: r.DisplayName,
		})
	}
	for e.liveHostiles() < e.arcade.cfg.MinLive {
		e.spawnArcadeMini()
	}
}

// CommitArcade flushes the deferred eliminations in fixed-size batches.
// Chunking and pacing happen on a worker goroutine; each batch is one
// remote call and every queued ref gets exactly one completion.
func (e *Engine) CommitArcade() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.arcade
	if a.phase != ArcadeResults {
		return fmt.Errorf("arcade is %s, nothing to commit", a.phase)
	}
	if a.committed {
		return fmt.Errorf("session already committed")
	}
	a.committed = true

	refs := a.QueuedRefs()
	a.report = BatchReport{Total: len(refs)}
	if len(refs) == 0 {
		a.report.Done = true
		e.finishArcade()
		return nil
	}

	batchSize := a.cfg.BatchSize
	delay := a.cfg.BatchDelay
	scope := e.scope
	gw := e.gateway
	log.Printf("🕹️ committing %d arcade eliminations in batches of %d", len(refs), batchSize)

	go func() {
		for start := 0; start < len(refs); start += batchSize {
			if start > 0 {
				time.Sleep(delay)
			}
			end := start + batchSize
			if end > len(refs) {
				end = len(refs)
			}
			gw.BatchQuarantine(refs[start:end], scope)
		}
	}()
	return nil
}

// DiscardArcade drops the deferred queue without remote calls. The queued
// entities are freed locally; their records stay untouched remotely.
func (e *Engine) DiscardArcade() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.arcade
	if a.phase != ArcadeResults {
		return fmt.Errorf("arcade is %s, nothing to discard", a.phase)
	}
	if a.committed && !a.report.Done {
		return fmt.Errorf("commit in flight")
	}

	for _, q := range a.queue {
		e.despawn(q.handle)
	}
	a.queue = a.queue[:0]
	e.finishArcade()
	return nil
}

// resolveBatchItem consumes one per-ref commit completion. Entities are
// freed either way; a failed item just leaves its record live remotely.
func (e *Engine) resolveBatchItem(done feed.Completion) {
	a := e.arcade
	if !a.committed || a.report.Done {
		log.Printf("⚠️ stray batch completion for %s, discarding", done.Ref)
		return
	}

	if done.Err != nil {
		a.report.Failed++
		log.Printf("⚠️ batch quarantine failed for %s: %v", done.Ref, done.Err)
	} else {
		a.report.Succeeded++
	}

	for i, q := range a.queue {
		if q.ref == done.Ref {
			e.despawn(q.handle)
			a.queue = append(a.queue[:i], a.queue[i+1:]...)
			break
		}
	}

	if a.report.Succeeded+a.report.Failed >= a.report.Total {
		a.report.Done = true
		log.Printf("✅ arcade commit done: %d ok, %d failed", a.report.Succeeded, a.report.Failed)
		e.finishArcade()
	}
}

// finishArcade closes the results phase and returns to the lobby.
func (e *Engine) finishArcade() {
	e.arcade.phase = ArcadeInactive
	e.applyModeEvent(ModeEvent{Kind: EventArcadeResolved})
}
