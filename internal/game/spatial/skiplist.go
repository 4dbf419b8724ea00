package spatial

import (
	"math/rand"
)

const (
	skipListMaxLevel = 16
	skipListP        = 0.25
)

// RankedEntry is one scored key in a SkipList.
type RankedEntry struct {
	Key   string
	Score float64
}

// skipNode levels carry a span: the number of nodes the forward pointer
// skips, which makes rank queries O(log n).
type skipLevel struct {
	forward *skipNode
	span    int
}

type skipNode struct {
	RankedEntry
	levels []skipLevel
}

// SkipList is a score-ordered index with O(log n) insert, remove and rank
// queries. Ordering is score descending, then key ascending for a stable
// tie-break. Used for session leaderboards.
//
// Not safe for concurrent use; callers synchronize.
type SkipList struct {
	head   *skipNode
	byKey  map[string]float64
	level  int
	length int
}

// NewSkipList creates an empty skip list.
func NewSkipList() *SkipList {
	return &SkipList{
		head:  &skipNode{levels: make([]skipLevel, skipListMaxLevel)},
		byKey: make(map[string]float64),
		level: 1,
	}
}

func (sl *SkipList) randomLevel() int {
	level := 1
	for level < skipListMaxLevel && rand.Float64() < skipListP {
		level++
	}
	return level
}

// before reports whether (score a, key a) sorts before (score b, key b).
func before(aScore float64, aKey string, bScore float64, bKey string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aKey < bKey
}

// Insert adds or updates a key's score.
func (sl *SkipList) Insert(key string, score float64) {
	if _, ok := sl.byKey[key]; ok {
		sl.Remove(key)
	}

	update := make([]*skipNode, skipListMaxLevel)
	rank := make([]int, skipListMaxLevel)

	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		if i == sl.level-1 {
			rank[i] = 0
		} else {
			rank[i] = rank[i+1]
		}
		for x.levels[i].forward != nil &&
			before(x.levels[i].forward.Score, x.levels[i].forward.Key, score, key) {
			rank[i] += x.levels[i].span
			x = x.levels[i].forward
		}
		update[i] = x
	}

	level := sl.randomLevel()
	if level > sl.level {
		for i := sl.level; i < level; i++ {
			rank[i] = 0
			update[i] = sl.head
			update[i].levels[i].span = sl.length
		}
		sl.level = level
	}

	node := &skipNode{
		RankedEntry: RankedEntry{Key: key, Score: score},
		levels:      make([]skipLevel, level),
	}
	for i := 0; i < level; i++ {
		node.levels[i].forward = update[i].levels[i].forward
		update[i].levels[i].forward = node
		node.levels[i].span = update[i].levels[i].span - (rank[0] - rank[i])
		update[i].levels[i].span = (rank[0] - rank[i]) + 1
	}
	for i := level; i < sl.level; i++ {
		update[i].levels[i].span++
	}

	sl.byKey[key] = score
	sl.length++
}

// Remove deletes a key. Returns false if absent.
func (sl *SkipList) Remove(key string) bool {
	score, ok := sl.byKey[key]
	if !ok {
		return false
	}

	update := make([]*skipNode, skipListMaxLevel)
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil &&
			before(x.levels[i].forward.Score, x.levels[i].forward.Key, score, key) {
			x = x.levels[i].forward
		}
		update[i] = x
	}

	target := update[0].levels[0].forward
	if target == nil || target.Key != key {
		return false
	}

	for i := 0; i < sl.level; i++ {
		if update[i].levels[i].forward == target {
			update[i].levels[i].span += target.levels[i].span - 1
			update[i].levels[i].forward = target.levels[i].forward
		} else {
			update[i].levels[i].span--
		}
	}
	for sl.level > 1 && sl.head.levels[sl.level-1].forward == nil {
		sl.level--
	}

	delete(sl.byKey, key)
	sl.length--
	return true
}

// GetRank returns a key's 1-indexed rank (1 = best score), 0 if absent.
func (sl *SkipList) GetRank(key string) int {
	score, ok := sl.byKey[key]
	if !ok {
		return 0
	}

	rank := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil &&
			!before(score, key, x.levels[i].forward.Score, x.levels[i].forward.Key) {
			rank += x.levels[i].span
			x = x.levels[i].forward
		}
		if x.Key == key {
			return rank
		}
	}
	return 0
}

// GetScore returns a key's score.
func (sl *SkipList) GetScore(key string) (float64, bool) {
	score, ok := sl.byKey[key]
	return score, ok
}

// GetByRank returns the entry at the given 1-indexed rank, nil if out of
// range.
func (sl *SkipList) GetByRank(rank int) *RankedEntry {
	if rank < 1 || rank > sl.length {
		return nil
	}

	traversed := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil && traversed+x.levels[i].span <= rank {
			traversed += x.levels[i].span
			x = x.levels[i].forward
		}
		if traversed == rank && x != sl.head {
			e := x.RankedEntry
			return &e
		}
	}
	return nil
}

// GetRange returns entries between ranks start and end inclusive
// (1-indexed).
func (sl *SkipList) GetRange(start, end int) []RankedEntry {
	if start < 1 {
		start = 1
	}
	if end > sl.length {
		end = sl.length
	}
	if start > end {
		return nil
	}

	first := sl.GetByRank(start)
	if first == nil {
		return nil
	}

	// Walk level 0 from the first node.
	result := make([]RankedEntry, 0, end-start+1)
	x := sl.head.levels[0].forward
	rank := 1
	for x != nil && rank < start {
		x = x.levels[0].forward
		rank++
	}
	for x != nil && rank <= end {
		result = append(result, x.RankedEntry)
		x = x.levels[0].forward
		rank++
	}
	return result
}

// ForEach iterates entries in rank order. Return false to stop.
func (sl *SkipList) ForEach(fn func(rank int, entry RankedEntry) bool) {
	rank := 1
	for x := sl.head.levels[0].forward; x != nil; x = x.levels[0].forward {
		if !fn(rank, x.RankedEntry) {
			return
		}
		rank++
	}
}

// Length returns the number of entries.
func (sl *SkipList) Length() int {
	return sl.length
}

// Clear removes all entries.
func (sl *SkipList) Clear() {
	sl.head = &skipNode{levels: make([]skipLevel, skipListMaxLevel)}
	sl.byKey = make(map[string]float64)
	sl.level = 1
	sl.length = 0
}
