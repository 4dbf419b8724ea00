package game

import (
	"context"
	"testing"
	"time"

	"zombie-sweep/internal/config"
	"zombie-sweep/internal/feed"
)

// newArcadeEngine builds an engine with fast batch settings.
func newArcadeEngine(t *testing.T, batchSize int) (*Engine, *feed.FakeGateway) {
	t.Helper()

	cfg := config.AppConfig{
		Sim:    config.DefaultSim(),
		Quest:  config.DefaultQuest(),
		Arcade: config.DefaultArcade(),
		Feed:   config.DefaultFeed(),
		Server: config.DefaultServer(),
	}
	cfg.Arcade.BatchSize = batchSize
	cfg.Arcade.BatchDelay = time.Millisecond

	completions := feed.NewCompletionQueue(64)
	gw := feed.NewFakeGateway(completions)
	return NewEngine(cfg, gw, completions), gw
}

// elimAt simulates one arcade elimination of a remotely backed hostile.
func elimAt(e *Engine, ref string) {
	e.arcade.OnElimination(&Entity{ExternalRef: ref, Kind: KindHostile})
}

// TestArcadeComboWindow verifies eliminations inside the sliding window
// chain and the combo drops to zero when the window closes
func TestArcadeComboWindow(t *testing.T) {
	e, _ := newArcadeEngine(t, 10)
	e.arcade.begin()
	e.arcade.phase = ArcadeActive

	// t=0, 1.0, 2.0, 2.9: each gap under the 3s window
	elimAt(e, "a")
	e.stepArcade(1.0)
	elimAt(e, "b")
	e.stepArcade(1.0)
	elimAt(e, "c")
	e.stepArcade(0.9)
	elimAt(e, "d")

	if got := e.arcade.Combo(); got != 4 {
		t.Fatalf("expected combo 4, got %d", got)
	}

	// Window closes with no further elimination
	e.stepArcade(3.0)
	if got := e.arcade.Combo(); got != 0 {
		t.Errorf("expected combo reset to 0, got %d", got)
	}
	if got := e.arcade.Stats().HighestCombo; got != 4 {
		t.Errorf("expected highest combo 4 preserved, got %d", got)
	}
}

// TestArcadeComboMultiplierTiers verifies tier thresholds unlock damage
// multipliers
func TestArcadeComboMultiplierTiers(t *testing.T) {
	e, _ := newArcadeEngine(t, 10)
	e.arcade.begin()
	e.arcade.phase = ArcadeActive

	if got := e.arcade.Multiplier(); got != 1.0 {
		t.Errorf("expected base multiplier 1.0, got %.1f", got)
	}

	for i := 0; i < 5; i++ {
		elimAt(e, "x")
	}
	if got := e.arcade.Multiplier(); got != 1.5 {
		t.Errorf("expected 1.5 at combo 5, got %.1f", got)
	}

	for i := 0; i < 5; i++ {
		elimAt(e, "x")
	}
	if got := e.arcade.Multiplier(); got != 2.0 {
		t.Errorf("expected 2.0 at combo 10, got %.1f", got)
	}
}

// TestArcadeStartSeedsField verifies a fresh session has targets from
// the first active tick: the scope's records come back as hostiles and
// minis fill the floor up to the minimum
func TestArcadeStartSeedsField(t *testing.T) {
	e, gw := newArcadeEngine(t, 10)
	gw.Records["sector-1"] = hostileRecords(3)
	if err := e.EnterLevel(context.Background(), "sector-1"); err != nil {
		t.Fatalf("EnterLevel failed: %v", err)
	}
	if err := e.ReturnToLobby(); err != nil {
		t.Fatalf("ReturnToLobby failed: %v", err)
	}
	if err := e.StartArcade(); err != nil {
		t.Fatalf("StartArcade failed: %v", err)
	}

	e.stepArcade(e.cfg.Arcade.Countdown.Seconds() + 0.1)
	if e.arcade.Phase() != ArcadeActive {
		t.Fatalf("expected active session, got %s", e.arcade.Phase())
	}

	if got := e.liveHostiles(); got < e.cfg.Arcade.MinLive {
		t.Errorf("expected at least %d live hostiles, got %d", e.cfg.Arcade.MinLive, got)
	}
	refs := map[string]int{}
	e.store.ForEach(func(ent *Entity) {
		if ent.Kind == KindHostile && ent.ExternalRef != "" {
			refs[ent.ExternalRef]++
		}
	})
	if len(refs) != 3 {
		t.Errorf("expected 3 record-backed hostiles, got %d", len(refs))
	}

	// Eliminating a mirrored hostile defers its remote effect
	var h Handle
	e.store.ForEach(func(ent *Entity) {
		if ent.ExternalRef == "rec-0" {
			h = ent.Handle
			ent.X, ent.Y = 400, 400
		}
	})
	placeProjectile(e, 400, 400, 10)
	resolveOnce(e)

	if ent := e.store.Get(h); ent == nil || !ent.Hidden {
		t.Fatal("eliminated hostile should be hidden pending commit")
	}
	if len(gw.QuarantineCalls) != 0 {
		t.Errorf("session elimination made an immediate remote call: %v", gw.QuarantineCalls)
	}
	found := false
	for _, q := range e.arcade.queue {
		if q.ref == "rec-0" {
			found = true
		}
	}
	if !found {
		t.Error("eliminated ref missing from the commit queue")
	}
}

// TestArcadeTimeUpMovesToResults verifies the session clock drives the
// results transition
func TestArcadeTimeUpMovesToResults(t *testing.T) {
	e, _ := newArcadeEngine(t, 10)
	e.scope = "sector-1"
	if err := e.StartArcade(); err != nil {
		t.Fatalf("StartArcade failed: %v", err)
	}

	// Countdown first
	if e.arcade.Phase() != ArcadeCountdown {
		t.Fatalf("expected countdown, got %s", e.arcade.Phase())
	}
	e.stepArcade(e.cfg.Arcade.Countdown.Seconds() + 0.1)
	if e.arcade.Phase() != ArcadeActive {
		t.Fatalf("expected active after countdown, got %s", e.arcade.Phase())
	}

	e.stepArcade(e.cfg.Arcade.Duration.Seconds() + 0.1)
	if e.arcade.Phase() != ArcadeResults {
		t.Fatalf("expected results after time up, got %s", e.arcade.Phase())
	}
	if got := e.mode.Current(); got != ModeArcadeResults {
		t.Errorf("expected arcade results mode, got %s", got)
	}
}

// TestArcadeCommitBatching verifies the queue flushes in ceil(N/B) batches
// and every ref is accounted for exactly once
func TestArcadeCommitBatching(t *testing.T) {
	e, gw := newArcadeEngine(t, 4)
	e.scope = "sector-1"
	e.mode.current = ModeArcadeResults
	e.arcade.phase = ArcadeResults

	for i := 0; i < 10; i++ {
		e.arcade.queue = append(e.arcade.queue, queuedElim{ref: refName(i)})
	}
	gw.FailRefs[refName(3)] = true
	gw.FailRefs[refName(7)] = true

	if err := e.CommitArcade(); err != nil {
		t.Fatalf("CommitArcade failed: %v", err)
	}

	// Drive the tick loop until the commit accounting closes
	deadline := time.Now().Add(2 * time.Second)
	for !e.arcade.Report().Done {
		if time.Now().After(deadline) {
			t.Fatal("commit did not finish in time")
		}
		e.Step(0.016)
		time.Sleep(2 * time.Millisecond)
	}

	report := e.arcade.Report()
	if report.Total != 10 {
		t.Errorf("expected total 10, got %d", report.Total)
	}
	if report.Succeeded+report.Failed != report.Total {
		t.Errorf("accounting leak: %d + %d != %d", report.Succeeded, report.Failed, report.Total)
	}
	if report.Failed != 2 {
		t.Errorf("expected 2 failed items, got %d", report.Failed)
	}

	// ceil(10/4) = 3 remote calls of sizes 4, 4, 2
	sizes := gw.BatchSizesSnapshot()
	if len(sizes) != 3 || sizes[0] != 4 || sizes[1] != 4 || sizes[2] != 2 {
		t.Errorf("expected batch sizes [4 4 2], got %v", sizes)
	}

	if got := e.mode.Current(); got != ModeLobby {
		t.Errorf("expected lobby after resolution, got %s", got)
	}
}

// TestArcadeCommitEmptyQueue verifies committing nothing resolves
// immediately
func TestArcadeCommitEmptyQueue(t *testing.T) {
	e, gw := newArcadeEngine(t, 4)
	e.scope = "sector-1"
	e.mode.current = ModeArcadeResults
	e.arcade.phase = ArcadeResults

	if err := e.CommitArcade(); err != nil {
		t.Fatalf("CommitArcade failed: %v", err)
	}
	if !e.arcade.Report().Done {
		t.Error("empty commit should resolve synchronously")
	}
	if len(gw.BatchSizes) != 0 {
		t.Error("empty commit should make no remote calls")
	}
	if got := e.mode.Current(); got != ModeLobby {
		t.Errorf("expected lobby, got %s", got)
	}
}

// TestArcadeDiscard verifies discard frees queued entities with no remote
// calls
func TestArcadeDiscard(t *testing.T) {
	e, gw := newArcadeEngine(t, 4)
	e.scope = "sector-1"
	e.mode.current = ModeArcadeResults
	e.arcade.phase = ArcadeResults

	h := placeHostile(e, "rec-1", 400, 400)
	ent := e.store.Get(h)
	ent.Hidden = true
	ent.Eliminated = true
	e.arcade.queue = append(e.arcade.queue, queuedElim{ref: "rec-1", handle: h})

	if err := e.DiscardArcade(); err != nil {
		t.Fatalf("DiscardArcade failed: %v", err)
	}

	if e.store.Get(h) != nil {
		t.Error("queued entity not freed on discard")
	}
	if len(gw.BatchSizes)+len(gw.QuarantineCalls) != 0 {
		t.Error("discard made remote calls")
	}
	if got := e.mode.Current(); got != ModeLobby {
		t.Errorf("expected lobby after discard, got %s", got)
	}
}

// TestArcadeRespawnsAreRefless verifies respawned minis carry no record
// ref so they can never duplicate a queued remote effect
func TestArcadeRespawnsAreRefless(t *testing.T) {
	e, _ := newArcadeEngine(t, 10)
	e.arcade.begin()
	e.arcade.phase = ArcadeActive

	elimAt(e, "rec-1")
	e.stepRespawns(e.cfg.Arcade.RespawnDelay.Seconds() + 0.1)

	var minis []*Entity
	e.store.ForEach(func(ent *Entity) {
		if ent.Kind == KindMiniHostile {
			minis = append(minis, ent)
		}
	})
	if len(minis) != 1 {
		t.Fatalf("expected one respawned mini, got %d", len(minis))
	}
	if minis[0].ExternalRef != "" || minis[0].Policy != PolicyNone {
		t.Error("respawned mini must be refless with no elimination policy")
	}
}

func refName(i int) string {
	return "rec-" + string(rune('a'+i))
}
