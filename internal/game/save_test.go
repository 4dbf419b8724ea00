package game

import (
	"context"
	"path/filepath"
	"testing"
)

// TestSaveRestoreRoundTrip verifies a save restores scope, mode, entities
// and their exact handles
func TestSaveRestoreRoundTrip(t *testing.T) {
	e, gw := newTestEngine(t)
	gw.Records["sector-1"] = hostileRecords(3)
	if err := e.EnterLevel(context.Background(), "sector-1"); err != nil {
		t.Fatalf("EnterLevel failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		e.Step(0.016)
	}

	st, err := e.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	e2, _ := newTestEngine(t)
	if err := e2.Restore(st); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if e2.scope != "sector-1" {
		t.Errorf("scope not restored: %q", e2.scope)
	}
	if e2.mode.Current() != ModeLevel {
		t.Errorf("mode not restored: %s", e2.mode.Current())
	}
	if e2.store.Len() != e.store.Len() {
		t.Errorf("entity count mismatch: %d vs %d", e2.store.Len(), e.store.Len())
	}
	if e2.player != e.player {
		t.Errorf("player handle changed across restore: %v vs %v", e2.player, e.player)
	}

	// Every mirrored record keeps its exact slot and generation
	e.store.ForEach(func(ent *Entity) {
		if ent.ExternalRef == "" {
			return
		}
		got := e2.store.Get(ent.Handle)
		if got == nil {
			t.Errorf("handle %v lost across restore", ent.Handle)
			return
		}
		if got.ExternalRef != ent.ExternalRef || got.HP != ent.HP {
			t.Errorf("entity %s state drifted across restore", ent.ExternalRef)
		}
	})
}

// TestSaveRefusedWithPendingEliminations verifies saving waits for remote
// confirmations
func TestSaveRefusedWithPendingEliminations(t *testing.T) {
	e, _ := newTestEngine(t)
	h := placeHostile(e, "rec-1", 400, 400)
	e.pending["rec-1"] = pendingElim{handle: h, prevHP: 3}

	if _, err := e.Save(); err == nil {
		t.Error("expected save refusal with in-flight eliminations")
	}
}

// TestSaveRestoreActiveQuest verifies an active quest restores with fresh
// actors and its remaining time
func TestSaveRestoreActiveQuest(t *testing.T) {
	e, _ := newTestEngine(t)
	e.scope = "sector-1"
	e.quests = defaultQuests(e.cfg.Sim.WorldWidth, e.cfg.Sim.WorldHeight, []string{"obj-1"})
	q := e.quests[0]
	q.State = QuestOffered
	if err := e.ConfirmQuest(q.ID); err != nil {
		t.Fatalf("ConfirmQuest failed: %v", err)
	}
	q.Remaining = 42.5

	st, err := e.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	e2, _ := newTestEngine(t)
	if err := e2.Restore(st); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if len(e2.quests) != 1 {
		t.Fatalf("expected 1 quest after restore, got %d", len(e2.quests))
	}
	q2 := e2.quests[0]
	if q2.State != QuestActive || q2.Remaining != 42.5 {
		t.Errorf("quest state drifted: %s %.1f", q2.State, q2.Remaining)
	}
	if e2.store.Get(q2.chaser) == nil || e2.store.Get(q2.marker) == nil {
		t.Error("quest actors not respawned on restore")
	}
}

// TestSaveRestoreArcadeQueue verifies deferred arcade eliminations survive
// a restore uncommitted
func TestSaveRestoreArcadeQueue(t *testing.T) {
	e, _ := newTestEngine(t)
	e.scope = "sector-1"
	e.mode.current = ModeArcadeResults
	e.arcade.phase = ArcadeResults
	e.arcade.elims = 7
	e.arcade.highestCombo = 4
	e.arcade.queue = append(e.arcade.queue,
		queuedElim{ref: "rec-1"}, queuedElim{ref: "rec-2"})

	st, err := e.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	e2, _ := newTestEngine(t)
	if err := e2.Restore(st); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if e2.arcade.Phase() != ArcadeResults {
		t.Errorf("arcade phase drifted: %s", e2.arcade.Phase())
	}
	if refs := e2.arcade.QueuedRefs(); len(refs) != 2 || refs[0] != "rec-1" {
		t.Errorf("queued refs drifted: %v", refs)
	}
	if e2.arcade.committed {
		t.Error("restored session must be uncommitted")
	}
	if got := e2.arcade.Stats().HighestCombo; got != 4 {
		t.Errorf("stats drifted: highest combo %d", got)
	}
}

// TestSaveRestoreFile verifies the JSON file round trip
func TestSaveRestoreFile(t *testing.T) {
	e, gw := newTestEngine(t)
	gw.Records["sector-1"] = hostileRecords(2)
	if err := e.EnterLevel(context.Background(), "sector-1"); err != nil {
		t.Fatalf("EnterLevel failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.save.json")
	if err := e.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	e2, _ := newTestEngine(t)
	if err := e2.RestoreFromFile(path); err != nil {
		t.Fatalf("RestoreFromFile failed: %v", err)
	}
	if e2.scope != "sector-1" || e2.store.Len() != e.store.Len() {
		t.Error("file round trip lost state")
	}
}

// TestRestoreRejectsUnknownVersion verifies forward compatibility guard
func TestRestoreRejectsUnknownVersion(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.Restore(&SaveState{Version: 99}); err == nil {
		t.Error("expected error for unknown save version")
	}
}
