package game

// Kind classifies an entity for movement, combat and snapshot purposes.
type Kind uint8

const (
	KindPlayer Kind = iota
	KindHostile
	KindExemptHostile
	KindBoss
	KindMiniHostile
	KindProjectile
	KindChaser
	KindObjective
)

// String returns a stable kind name used in snapshots and events.
func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindHostile:
		return "hostile"
	case KindExemptHostile:
		return "exempt_hostile"
	case KindBoss:
		return "boss"
	case KindMiniHostile:
		return "mini_hostile"
	case KindProjectile:
		return "projectile"
	case KindChaser:
		return "chaser"
	case KindObjective:
		return "objective"
	default:
		return "unknown"
	}
}

// Policy selects the remote side effect an elimination triggers.
type Policy uint8

const (
	PolicyNone Policy = iota // No remote call (players, projectiles, respawned minis)
	PolicyQuarantine
	PolicyBlock
)

// Handle is a stable generation-checked reference to an entity slot.
// The zero Handle is never valid (live generations start at 1).
type Handle struct {
	Index uint32
	Gen   uint32
}

// Key packs a handle into the uint64 used by the spatial grid.
func (h Handle) Key() uint64 {
	return uint64(h.Index)<<32 | uint64(h.Gen)
}

// HandleFromKey unpacks a grid key back into a handle.
func HandleFromKey(key uint64) Handle {
	return Handle{Index: uint32(key >> 32), Gen: uint32(key)}
}

// IsZero reports whether h is the invalid zero handle.
func (h Handle) IsZero() bool {
	return h.Gen == 0
}

// Before orders handles by index, then generation. Used to pick a
// deterministic target when a projectile overlaps several entities in
// the same tick.
func (h Handle) Before(o Handle) bool {
	if h.Index != o.Index {
		return h.Index < o.Index
	}
	return h.Gen < o.Gen
}

// Entity is one simulated object. Fields cover every kind; unused fields
// stay at their zero value (projectiles have no HP, players no ExternalRef).
type Entity struct {
	Handle Handle
	Kind   Kind
	Policy Policy

	// Position is the center; HalfW/HalfH the half extents of the AABB.
	X, Y         float64
	VX, VY       float64
	HalfW, HalfH float64

	HP, MaxHP int
	Exempt    bool

	// Feed identity, empty for entities with no remote record.
	ExternalRef string
	DisplayName string

	// Hidden marks an entity awaiting remote confirmation (arcade queue or
	// an in-flight quarantine). Hidden entities are skipped by combat,
	// movement and snapshots but keep their slot.
	Hidden bool
	// Eliminated latches once per life; it is what makes elimination
	// exactly-once even if damage lands again before removal.
	Eliminated bool

	Grounded   bool
	FlashTimer float64 // Seconds of hit flash remaining

	// Projectile-only fields.
	Damage int
	Life   float64 // Seconds remaining

	// Chaser-only: handle of the objective being contested.
	Target Handle
}

// Live reports whether the entity participates in the simulation this tick.
func (e *Entity) Live() bool {
	return !e.Hidden && !e.Eliminated
}

// entitySlot is one dense store slot. Gen is even when free, odd when
// occupied, so a handle can never alias across a free/alloc cycle.
type entitySlot struct {
	entity Entity
	gen    uint32
	used   bool
}

// EntityStore owns every entity. Slots are reused through a free list; a
// slot's generation increments on each lifecycle change so stale handles
// (and stale remote completions) are detected instead of corrupting the
// slot's new occupant.
type EntityStore struct {
	slots []entitySlot
	free  []uint32
	count int
}

// NewEntityStore creates a store with capacity pre-allocated slots.
func NewEntityStore(capacity int) *EntityStore {
	return &EntityStore{
		slots: make([]entitySlot, 0, capacity),
	}
}

// Spawn allocates a slot, copies proto into it and returns the handle.
// The handle fields inside the stored entity are filled in.
func (s *EntityStore) Spawn(proto Entity) Handle {
	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		s.slots = append(s.slots, entitySlot{})
		idx = uint32(len(s.slots) - 1)
	}

	slot := &s.slots[idx]
	slot.gen++
	slot.used = true
	slot.entity = proto
	slot.entity.Handle = Handle{Index: idx, Gen: slot.gen}
	s.count++
	return slot.entity.Handle
}

// Get returns the entity for h, or nil if h is stale or free.
func (s *EntityStore) Get(h Handle) *Entity {
	if int(h.Index) >= len(s.slots) {
		return nil
	}
	slot := &s.slots[h.Index]
	if !slot.used || slot.gen != h.Gen {
		return nil
	}
	return &slot.entity
}

// Remove frees the slot for h. Removing a stale handle is a no-op and
// returns false.
func (s *EntityStore) Remove(h Handle) bool {
	if int(h.Index) >= len(s.slots) {
		return false
	}
	slot := &s.slots[h.Index]
	if !slot.used || slot.gen != h.Gen {
		return false
	}
	slot.used = false
	slot.gen++
	slot.entity = Entity{}
	s.free = append(s.free, h.Index)
	s.count--
	return true
}

// ForEach visits every live slot. The callback may mutate the entity but
// must not spawn or remove during iteration.
func (s *EntityStore) ForEach(fn func(*Entity)) {
	for i := range s.slots {
		if s.slots[i].used {
			fn(&s.slots[i].entity)
		}
	}
}

// Len returns the number of occupied slots.
func (s *EntityStore) Len() int {
	return s.count
}

// restoreSlot places an entity into a specific slot with a specific
// generation. Save restore only; panics if the slot is occupied.
func (s *EntityStore) restoreSlot(idx uint32, gen uint32, e Entity) Handle {
	for int(idx) >= len(s.slots) {
		s.slots = append(s.slots, entitySlot{})
	}
	slot := &s.slots[idx]
	if slot.used {
		panic("restore into occupied slot")
	}
	slot.used = true
	slot.gen = gen
	slot.entity = e
	slot.entity.Handle = Handle{Index: idx, Gen: gen}
	s.count++
	return slot.entity.Handle
}

// rebuildFreeList recomputes the free list after a restore.
func (s *EntityStore) rebuildFreeList() {
	s.free = s.free[:0]
	for i := range s.slots {
		if !s.slots[i].used {
			s.free = append(s.free, uint32(i))
		}
	}
}
