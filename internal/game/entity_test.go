package game

import "testing"

// TestStoreSpawnGet verifies handles resolve to their entities
func TestStoreSpawnGet(t *testing.T) {
	s := NewEntityStore(8)

	h := s.Spawn(Entity{Kind: KindHostile, HP: 3})
	ent := s.Get(h)
	if ent == nil {
		t.Fatal("Get returned nil for live handle")
	}
	if ent.Kind != KindHostile || ent.HP != 3 {
		t.Error("spawned entity fields lost")
	}
	if ent.Handle != h {
		t.Error("stored entity does not know its own handle")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 entity, got %d", s.Len())
	}
}

// TestStoreRemoveInvalidatesHandle verifies stale handles resolve to nil
func TestStoreRemoveInvalidatesHandle(t *testing.T) {
	s := NewEntityStore(8)

	h := s.Spawn(Entity{Kind: KindHostile})
	if !s.Remove(h) {
		t.Fatal("remove of live handle failed")
	}
	if s.Get(h) != nil {
		t.Error("stale handle still resolves")
	}
	if s.Remove(h) {
		t.Error("double remove should fail")
	}
}

// TestStoreSlotReuseBumpsGeneration verifies a reused slot rejects the old
// handle
func TestStoreSlotReuseBumpsGeneration(t *testing.T) {
	s := NewEntityStore(8)

	old := s.Spawn(Entity{Kind: KindHostile})
	s.Remove(old)

	reused := s.Spawn(Entity{Kind: KindMiniHostile})
	if reused.Index != old.Index {
		t.Fatalf("expected slot reuse, got %d vs %d", reused.Index, old.Index)
	}
	if reused.Gen == old.Gen {
		t.Fatal("generation did not advance across reuse")
	}

	if s.Get(old) != nil {
		t.Error("old handle resolves to the slot's new occupant")
	}
	if s.Get(reused) == nil {
		t.Error("new handle does not resolve")
	}
}

// TestHandleKeyRoundTrip verifies grid key packing
func TestHandleKeyRoundTrip(t *testing.T) {
	h := Handle{Index: 123456, Gen: 789}
	if got := HandleFromKey(h.Key()); got != h {
		t.Errorf("round trip mismatch: %v vs %v", got, h)
	}
}

// TestHandleOrdering verifies index-then-generation ordering
func TestHandleOrdering(t *testing.T) {
	a := Handle{Index: 1, Gen: 5}
	b := Handle{Index: 2, Gen: 1}
	c := Handle{Index: 1, Gen: 7}

	if !a.Before(b) {
		t.Error("lower index should order first")
	}
	if !a.Before(c) {
		t.Error("same index should order by generation")
	}
	if b.Before(a) {
		t.Error("ordering is not antisymmetric")
	}
}

// TestZeroHandleNeverResolves verifies the zero handle is always invalid
func TestZeroHandleNeverResolves(t *testing.T) {
	s := NewEntityStore(8)
	s.Spawn(Entity{Kind: KindPlayer})

	var zero Handle
	if !zero.IsZero() {
		t.Error("zero handle not detected")
	}
	if s.Get(zero) != nil {
		t.Error("zero handle resolved to an entity")
	}
}

// TestStoreForEach verifies iteration visits exactly the live slots
func TestStoreForEach(t *testing.T) {
	s := NewEntityStore(8)

	s.Spawn(Entity{Kind: KindPlayer})
	h := s.Spawn(Entity{Kind: KindHostile})
	s.Spawn(Entity{Kind: KindBoss})
	s.Remove(h)

	count := 0
	s.ForEach(func(ent *Entity) {
		count++
		if ent.Kind == KindHostile {
			t.Error("removed entity visited")
		}
	})
	if count != 2 {
		t.Errorf("expected 2 visits, got %d", count)
	}
}
