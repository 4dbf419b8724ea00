package game

import "zombie-sweep/internal/game/spatial"

// Elimination point values per kind. Bosses dominate the board; respawned
// minis still count so arcade sprees show up.
const (
	pointsHostile = 10
	pointsMini    = 5
	pointsBoss    = 100
	pointsChaser  = 25
)

// Leaderboard ranks eliminated targets by accumulated points for the
// session. Backed by a skip list so rank queries stay cheap while the
// board grows.
type Leaderboard struct {
	list *spatial.SkipList
}

// NewLeaderboard returns an empty board.
func NewLeaderboard() *Leaderboard {
	return &Leaderboard{list: spatial.NewSkipList()}
}

// Add credits one elimination. Entities without a display name are
// grouped under their kind name.
func (lb *Leaderboard) Add(ent *Entity) {
	var pts float64
	switch ent.Kind {
	case KindHostile, KindExemptHostile:
		pts = pointsHostile
	case KindMiniHostile:
		pts = pointsMini
	case KindBoss:
		pts = pointsBoss
	case KindChaser:
		pts = pointsChaser
	default:
		return
	}

	key := ent.DisplayName
	if key == "" {
		key = ent.Kind.String()
	}

	prev, _ := lb.list.GetScore(key)
	lb.list.Insert(key, prev+pts)
}

// Top returns the best n entries in rank order.
func (lb *Leaderboard) Top(n int) []spatial.RankedEntry {
	return lb.list.GetRange(1, n)
}

// Rank returns the 1-based rank for key, or 0 if absent.
func (lb *Leaderboard) Rank(key string) int {
	return lb.list.GetRank(key)
}

// Len returns the number of ranked keys.
func (lb *Leaderboard) Len() int {
	return lb.list.Length()
}

// Reset clears the board for a new session.
func (lb *Leaderboard) Reset() {
	lb.list.Clear()
}
