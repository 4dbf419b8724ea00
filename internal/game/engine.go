package game

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"zombie-sweep/internal/config"
	"zombie-sweep/internal/feed"
	"zombie-sweep/internal/game/spatial"
)

// Engine runs the fixed-step simulation. A single tick goroutine owns all
// mutable state; HTTP handlers mutate through exported methods that take
// the engine lock, and gateway goroutines only ever reach the engine
// through the completion queue.
//
// Per-tick order is fixed: physics, spatial rebuild, combat, mode checks,
// quest and arcade advancement, completion drain, snapshot.
type Engine struct {
	mu  sync.Mutex
	cfg config.AppConfig

	store *EntityStore
	grid  *spatial.Grid
	flow  *spatial.FlowField
	level Level

	mode   *ModeMachine
	quests []*Quest
	arcade *ArcadeSession

	gateway     feed.Gateway
	completions *feed.CompletionQueue
	drainBuf    []feed.Completion
	pending     map[string]pendingElim

	events    *EventLog
	score     *Leaderboard
	snapshots *SnapshotPool

	player Handle
	input  PlayerInput

	scope   string
	scopes  []string      // Campaign order; the last scope's boss wins the game
	records []feed.Record // Last loaded scope's records, re-mirrored by arcade sessions

	tickCount uint64
	rng       *rand.Rand

	// Metric observers; all nil-safe.
	onTickDone   func(time.Duration)
	onTickStats  func(entities, queuedCompletions int)
	onRemoteDone func(action string, ok bool)

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// Option customizes engine construction.
type Option func(*Engine)

// WithTickObserver wires a per-tick duration callback.
func WithTickObserver(fn func(time.Duration)) Option {
	return func(e *Engine) { e.onTickDone = fn }
}

// WithStatsObserver wires a per-tick gauge callback.
func WithStatsObserver(fn func(entities, queuedCompletions int)) Option {
	return func(e *Engine) { e.onTickStats = fn }
}

// WithRemoteObserver wires a per-completion outcome callback.
func WithRemoteObserver(fn func(action string, ok bool)) Option {
	return func(e *Engine) { e.onRemoteDone = fn }
}

// WithEventLogPath enables JSONL event persistence.
func WithEventLogPath(path string) Option {
	return func(e *Engine) { e.events = NewEventLog(path) }
}

// WithScopes overrides the campaign scope order.
func WithScopes(scopes []string) Option {
	return func(e *Engine) { e.scopes = scopes }
}

// NewEngine builds an engine around the given gateway and completion
// queue. The queue must be the same one the gateway pushes to.
func NewEngine(cfg config.AppConfig, gw feed.Gateway, completions *feed.CompletionQueue, opts ...Option) *Engine {
	e := &Engine{
		cfg:         cfg,
		store:       NewEntityStore(256),
		grid:        spatial.NewGrid(cfg.Sim.WorldWidth, cfg.Sim.WorldHeight, cfg.Sim.CellSize),
		flow:        spatial.NewFlowField(cfg.Sim.WorldWidth, cfg.Sim.WorldHeight, cfg.Sim.CellSize),
		level:       defaultLevel(cfg.Sim.WorldWidth, cfg.Sim.WorldHeight),
		mode:        NewModeMachine(cfg.Sim.DebugChecks),
		arcade:      NewArcadeSession(cfg.Arcade),
		gateway:     gw,
		completions: completions,
		drainBuf:    make([]feed.Completion, feed.DefaultCompletionCapacity),
		pending:     make(map[string]pendingElim),
		events:      NewEventLog(""),
		score:       NewLeaderboard(),
		snapshots:   NewSnapshotPool(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.spawnPlayer()
	return e
}

// spawnPlayer places the player at the hub start position.
func (e *Engine) spawnPlayer() {
	e.player = e.store.Spawn(Entity{
		Kind: KindPlayer, Policy: PolicyNone,
		X:     e.cfg.Sim.WorldWidth / 2,
		Y:     e.cfg.Sim.WorldHeight - 80,
		HalfW: 14, HalfH: 20,
		HP: e.cfg.Sim.PlayerHP, MaxHP: e.cfg.Sim.PlayerHP,
	})
}

// Start launches the tick goroutine. Safe to call once.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	interval := time.Second / time.Duration(e.cfg.Sim.TickRate)
	log.Printf("🎮 engine started at %d Hz", e.cfg.Sim.TickRate)

	go func() {
		defer close(e.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-e.stopCh:
				return
			case <-ticker.C:
				start := time.Now()
				e.Step(interval.Seconds())
				if e.onTickDone != nil {
					e.onTickDone(time.Since(start))
				}
			}
		}
	}()
}

// Stop halts the tick goroutine and flushes the event log.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	<-e.doneCh
	e.events.Close()
	log.Println("🛑 engine stopped")
}

// Step advances the simulation by dt seconds. Exposed for tests; the tick
// goroutine calls it at the configured rate. dt is clamped so a stalled
// process cannot tunnel entities or skip timer expiries.
func (e *Engine) Step(dt float64) {
	if dt > 0.1 {
		dt = 0.1
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCount++
	e.events.SetTick(e.tickCount)

	paused := e.mode.Current() == ModePaused
	terminal := e.mode.Current() == ModeVictory || e.mode.Current() == ModeError

	if !paused && !terminal {
		e.stepPhysics(dt)
		e.rebuildGrid()
		e.stepCombat()
		e.stepQuests(dt)
		e.stepArcade(dt)
	}

	// Completions drain even while paused so remote results are never
	// stranded behind a pause.
	e.drainCompletions()
	e.produceSnapshot()

	if e.onTickStats != nil {
		e.onTickStats(e.store.Len(), e.completions.Len())
	}
}

// rebuildGrid reindexes every live entity. Entities move every tick, so a
// full rebuild beats per-entity relocation bookkeeping.
func (e *Engine) rebuildGrid() {
	e.grid.Clear()
	e.store.ForEach(func(ent *Entity) {
		if ent.Live() {
			e.grid.Insert(ent.Handle.Key(), ent.X, ent.Y)
		}
	})
}

// drainCompletions consumes every queued remote result, at most once per
// tick. This is the only place gateway outcomes touch simulation state.
func (e *Engine) drainCompletions() {
	n := e.completions.DrainTo(e.drainBuf)
	for i := 0; i < n; i++ {
		done := e.drainBuf[i]
		if done.Scope != e.scope && done.Action != feed.ActionBatchItem {
			log.Printf("⚠️ completion for stale scope %s, discarding", done.Scope)
			continue
		}
		e.events.Record(EventRemoteResult, map[string]any{
			"action": done.Action.String(),
			"ref":    done.Ref,
			"ok":     done.Err == nil,
		})
		if e.onRemoteDone != nil {
			e.onRemoteDone(done.Action.String(), done.Err == nil)
		}

		switch done.Action {
		case feed.ActionQuarantine, feed.ActionBlock:
			e.resolvePending(done.Ref, done.Err)
			e.checkHostilesCleared()
		case feed.ActionProtect:
			e.resolveProtect(done.Ref, done.Err)
		case feed.ActionBatchItem:
			e.resolveBatchItem(done)
		default:
			e.invariant(fmt.Sprintf("unknown completion action %d", done.Action))
		}
	}
}

// EnterLevel loads a scope's records and starts its level. The feed fetch
// runs on the caller's goroutine; only applying the result takes the
// engine lock, so the tick loop never waits on the network.
func (e *Engine) EnterLevel(ctx context.Context, scope string) error {
	e.mu.Lock()
	if e.mode.Current() != ModeLobby {
		cur := e.mode.Current()
		e.mu.Unlock()
		return fmt.Errorf("cannot enter a level from %s", cur)
	}
	e.mu.Unlock()

	records, err := e.gateway.FetchRecords(ctx, scope)
	if err != nil {
		e.mu.Lock()
		e.applyModeEvent(ModeEvent{Kind: EventFatal})
		e.mu.Unlock()
		return fmt.Errorf("load scope %q: %w", scope, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode.Current() != ModeLobby {
		return fmt.Errorf("mode changed during load, aborting")
	}

	e.scope = scope
	e.records = records
	if !e.knownScope(scope) {
		e.scopes = append(e.scopes, scope)
	}
	e.clearNonPlayerEntities()
	e.pending = make(map[string]pendingElim)

	questRefs := e.spawnScope(records)
	e.quests = defaultQuests(e.cfg.Sim.WorldWidth, e.cfg.Sim.WorldHeight, questRefs)

	e.applyModeEvent(ModeEvent{Kind: EventEnterLevel})
	e.events.Record(EventScopeLoad, map[string]any{
		"scope":   scope,
		"records": len(records),
	})
	log.Printf("📦 scope %s loaded: %d records", scope, len(records))
	return nil
}

// spawnScope mirrors feed records as entities. Every record becomes
// exactly one entity; boss records use the block policy, exempt records
// spawn invulnerable. Returns refs chosen as quest objectives.
func (e *Engine) spawnScope(records []feed.Record) []string {
	var questRefs []string

	for i, r := range records {
		x := e.cfg.Sim.WorldWidth * (0.1 + 0.8*e.rng.Float64())

		switch {
		case r.Kind == "boss":
			e.store.Spawn(Entity{
				Kind: KindBoss, Policy: PolicyBlock,
				X: x, Y: 60, HalfW: 28, HalfH: 36,
				HP: e.cfg.Sim.BossHP, MaxHP: e.cfg.Sim.BossHP,
				ExternalRef: r.ExternalRef, DisplayName: r.DisplayName,
			})
		case r.Exempt || r.Kind == "exempt":
			e.store.Spawn(Entity{
				Kind: KindExemptHostile, Policy: PolicyNone, Exempt: true,
				X: x, Y: 60, HalfW: 14, HalfH: 18,
				HP: e.cfg.Sim.HostileHP, MaxHP: e.cfg.Sim.HostileHP,
				ExternalRef: r.ExternalRef, DisplayName: r.DisplayName,
			})
		default:
			e.store.Spawn(Entity{
				Kind: KindHostile, Policy: PolicyQuarantine,
				X: x, Y: 60, HalfW: 14, HalfH: 18,
				HP: e.cfg.Sim.HostileHP, MaxHP: e.cfg.Sim.HostileHP,
				ExternalRef: r.ExternalRef, DisplayName: r.DisplayName,
			})
			// A couple of ordinary records double as quest objectives.
			// They still spawn as hostiles; every record mirrors exactly
			// one entity.
			if len(questRefs) < 2 && i%5 == 4 {
				questRefs = append(questRefs, r.ExternalRef)
			}
		}
	}

	return questRefs
}

// clearNonPlayerEntities removes everything except the player.
func (e *Engine) clearNonPlayerEntities() {
	var doomed []Handle
	e.store.ForEach(func(ent *Entity) {
		if ent.Kind != KindPlayer {
			doomed = append(doomed, ent.Handle)
		}
	})
	for _, h := range doomed {
		e.despawn(h)
	}
}

// SetPlayerInput replaces the control state applied from the next tick.
func (e *Engine) SetPlayerInput(in PlayerInput) {
	e.mu.Lock()
	if in.MoveX > 1 {
		in.MoveX = 1
	} else if in.MoveX < -1 {
		in.MoveX = -1
	}
	e.input = in
	e.mu.Unlock()
}

// Fire launches one projectile from the player toward dirX, dirY.
func (e *Engine) Fire(dirX, dirY float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.mode.Current() {
	case ModeLevel, ModeBossBattle, ModeArcadeActive:
	default:
		return fmt.Errorf("cannot fire in %s", e.mode.Current())
	}

	player := e.store.Get(e.player)
	if player == nil || !player.Live() {
		return fmt.Errorf("no live player")
	}

	mag := math.Hypot(dirX, dirY)
	if mag == 0 {
		dirX, dirY = 1, 0
	} else {
		dirX /= mag
		dirY /= mag
	}

	e.store.Spawn(Entity{
		Kind: KindProjectile, Policy: PolicyNone,
		X: player.X, Y: player.Y,
		VX: dirX * e.cfg.Sim.ProjectileSpeed, VY: dirY * e.cfg.Sim.ProjectileSpeed,
		HalfW: 4, HalfH: 4,
		Damage: e.cfg.Sim.BaseDamage,
		Life:   e.cfg.Sim.ProjectileLife,
	})
	return nil
}

// Pause suspends the simulation, remembering the interrupted mode as the
// explicit resume target.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.mode.Pausable() {
		return fmt.Errorf("cannot pause in %s", e.mode.Current())
	}
	e.applyModeEvent(ModeEvent{Kind: EventPause, ResumeTarget: e.mode.Current()})
	return nil
}

// Resume returns to the mode the pause interrupted.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.applyModeEvent(ModeEvent{Kind: EventResume}); !ok {
		return fmt.Errorf("not paused")
	}
	return nil
}

// ReturnToLobby abandons the current level, victory screen or error state.
func (e *Engine) ReturnToLobby() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.applyModeEvent(ModeEvent{Kind: EventReturnToLobby}); !ok {
		return fmt.Errorf("cannot leave %s", e.mode.Current())
	}
	return nil
}

// applyModeEvent routes an event through the machine and runs entry
// actions on accepted transitions. Callers hold the engine lock.
func (e *Engine) applyModeEvent(ev ModeEvent) (Mode, bool) {
	prev, ok := e.mode.Apply(ev)
	if !ok {
		return prev, false
	}

	cur := e.mode.Current()
	if cur != prev {
		e.events.Record(EventModeChange, map[string]any{
			"from":  prev.String(),
			"to":    cur.String(),
			"event": ev.Kind.String(),
		})
		log.Printf("🔀 mode %s -> %s (%s)", prev, cur, ev.Kind)
	}

	if cur == ModeLobby && prev != ModeLobby && prev != ModePaused {
		e.enterLobby()
	}
	return prev, true
}

// enterLobby resets transient state when any mode hands back to the hub.
func (e *Engine) enterLobby() {
	e.clearNonPlayerEntities()
	e.resetQuests()
	e.arcade.phase = ArcadeInactive
	e.input = PlayerInput{}

	if player := e.store.Get(e.player); player != nil {
		player.X = e.cfg.Sim.WorldWidth / 2
		player.Y = e.cfg.Sim.WorldHeight - 80
		player.VX, player.VY = 0, 0
		player.HP = player.MaxHP
		player.Eliminated = false
		player.Hidden = false
	}
}

// despawn removes an entity from the store and the grid. Stale handles
// are ignored.
func (e *Engine) despawn(h Handle) {
	if h.IsZero() {
		return
	}
	if e.store.Remove(h) {
		e.grid.Remove(h.Key())
	}
}

// onFinalScope reports whether the loaded scope is the campaign's last.
func (e *Engine) onFinalScope() bool {
	return len(e.scopes) > 0 && e.scope == e.scopes[len(e.scopes)-1]
}

func (e *Engine) knownScope(scope string) bool {
	for _, s := range e.scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// invariant reports an impossible internal state: panic under debug
// checks, log and continue otherwise.
func (e *Engine) invariant(msg string) {
	if e.cfg.Sim.DebugChecks {
		panic("invariant violated: " + msg)
	}
	log.Printf("⚠️ invariant violated: %s", msg)
}

// Snapshot returns the most recent published render state.
func (e *Engine) Snapshot() *GameSnapshot {
	return e.snapshots.Latest()
}

// Mode returns the current mode name.
func (e *Engine) Mode() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode.Current().String()
}

// RecentEvents exposes the in-memory event ring.
func (e *Engine) RecentEvents(n int) []Event {
	return e.events.Recent(n)
}

// Quests returns the quest list for inspection. Do not mutate.
func (e *Engine) Quests() []QuestSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]QuestSnapshot, 0, len(e.quests))
	for _, q := range e.quests {
		qs := QuestSnapshot{ID: q.ID, Name: q.Name, State: q.State.String()}
		if q.State == QuestActive {
			qs.Remaining = q.Remaining
		}
		out = append(out, qs)
	}
	return out
}
