package spatial

import "testing"

// TestGridInsertAndQuery verifies basic membership after insert
func TestGridInsertAndQuery(t *testing.T) {
	g := NewGrid(1280, 720, 80)

	g.Insert(1, 100, 100)
	g.Insert(2, 105, 105)

	got := g.QueryRegion(90, 90, 110, 110)
	if len(got) < 2 {
		t.Fatalf("expected both ids in query result, got %v", got)
	}
	if g.Len() != 2 {
		t.Errorf("expected 2 tracked ids, got %d", g.Len())
	}
}

// TestGridNeighborhood verifies the conservative broad phase: nearby ids
// are always candidates, ids many cells away never are
func TestGridNeighborhood(t *testing.T) {
	g := NewGrid(8000, 8000, 80)

	g.Insert(1, 5, 5)
	g.Insert(2, 50, 50)
	g.Insert(3, 5000, 5000)

	got := g.QueryRegion(0, 0, 10, 10)
	found := map[uint64]bool{}
	for _, id := range got {
		found[id] = true
	}

	if !found[1] || !found[2] {
		t.Errorf("expected ids 1 and 2 near the query region, got %v", got)
	}
	if found[3] {
		t.Error("id 3 is 60+ cells away and must not be a candidate")
	}
}

// TestGridRemove verifies removal and double-remove safety
func TestGridRemove(t *testing.T) {
	g := NewGrid(1280, 720, 80)

	g.Insert(7, 200, 200)
	g.Remove(7)

	if g.Len() != 0 {
		t.Errorf("expected empty grid after remove, got %d", g.Len())
	}
	for _, id := range g.QueryRegion(150, 150, 250, 250) {
		if id == 7 {
			t.Error("removed id still returned by query")
		}
	}

	// Removing an unknown id must not panic
	g.Remove(99)
}

// TestGridRelocate verifies an id moves cells instead of duplicating
func TestGridRelocate(t *testing.T) {
	g := NewGrid(1280, 720, 80)

	g.Insert(5, 40, 40)
	g.Relocate(5, 600, 600)

	if g.Len() != 1 {
		t.Fatalf("expected 1 tracked id after relocate, got %d", g.Len())
	}

	for _, id := range g.QueryRegion(0, 0, 10, 10) {
		if id == 5 {
			t.Error("id still indexed at old position")
		}
	}

	found := false
	for _, id := range g.QueryRegion(590, 590, 610, 610) {
		if id == 5 {
			found = true
		}
	}
	if !found {
		t.Error("id not indexed at new position")
	}
}

// TestGridOutOfBoundsClamped verifies positions outside the world land in
// edge cells instead of panicking
func TestGridOutOfBoundsClamped(t *testing.T) {
	g := NewGrid(1280, 720, 80)

	g.Insert(1, -500, -500)
	g.Insert(2, 99999, 99999)

	if g.Len() != 2 {
		t.Errorf("expected 2 tracked ids, got %d", g.Len())
	}
}

// TestGridClear verifies Clear drops all membership
func TestGridClear(t *testing.T) {
	g := NewGrid(1280, 720, 80)
	for i := uint64(0); i < 50; i++ {
		g.Insert(i, float64(i*20), float64(i*10))
	}

	g.Clear()

	if g.Len() != 0 {
		t.Errorf("expected empty grid after Clear, got %d", g.Len())
	}
	if got := g.QueryRegion(0, 0, 1280, 720); len(got) != 0 {
		t.Errorf("expected no candidates after Clear, got %d", len(got))
	}
}
