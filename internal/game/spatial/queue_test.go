package spatial

import (
	"sync"
	"testing"
)

// TestQueuePushPop verifies FIFO order through the ring
func TestQueuePushPop(t *testing.T) {
	q := NewMPSCQueue[int](8)

	for i := 0; i < 5; i++ {
		if !q.TryPush(i) {
			t.Fatalf("push %d failed on non-full queue", i)
		}
	}

	for i := 0; i < 5; i++ {
		v, ok := q.TryPop()
		if !ok {
			t.Fatalf("pop %d failed on non-empty queue", i)
		}
		if v != i {
			t.Errorf("expected %d, got %d", i, v)
		}
	}

	if _, ok := q.TryPop(); ok {
		t.Error("pop on empty queue should fail")
	}
}

// TestQueueFull verifies push fails instead of blocking when full
func TestQueueFull(t *testing.T) {
	q := NewMPSCQueue[int](4)

	for i := 0; i < q.Cap(); i++ {
		if !q.TryPush(i) {
			t.Fatalf("push %d failed before capacity", i)
		}
	}
	if q.TryPush(99) {
		t.Error("push on full queue should fail")
	}
}

// TestQueueDrainTo verifies batch draining
func TestQueueDrainTo(t *testing.T) {
	q := NewMPSCQueue[string](16)
	q.TryPush("a")
	q.TryPush("b")
	q.TryPush("c")

	buf := make([]string, 16)
	n := q.DrainTo(buf)
	if n != 3 {
		t.Fatalf("expected 3 drained, got %d", n)
	}
	if buf[0] != "a" || buf[1] != "b" || buf[2] != "c" {
		t.Errorf("drain order wrong: %v", buf[:n])
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue after drain, got %d", q.Len())
	}
}

// TestQueueConcurrentProducers verifies multi-producer pushes all arrive
// exactly once with a single consumer draining
func TestQueueConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 100

	q := NewMPSCQueue[int](1024)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !q.TryPush(p*perProducer + i) {
				}
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[int]bool)
	buf := make([]int, 1024)
	n := q.DrainTo(buf)
	for i := 0; i < n; i++ {
		if seen[buf[i]] {
			t.Fatalf("value %d drained twice", buf[i])
		}
		seen[buf[i]] = true
	}

	if len(seen) != producers*perProducer {
		t.Errorf("expected %d unique values, got %d", producers*perProducer, len(seen))
	}
}

// TestQueueCapacityRounding verifies capacity rounds up to a power of two
func TestQueueCapacityRounding(t *testing.T) {
	q := NewMPSCQueue[int](5)
	if q.Cap() != 8 {
		t.Errorf("expected capacity 8, got %d", q.Cap())
	}
}
