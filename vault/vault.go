// Package vault stores the most recent snapshots received from the server in
// a fixed-capacity ring and keeps a timestamp-ordered index over it for
// bracket and nearest-neighbour lookups.
//
// A Vault is not safe for concurrent use; wrap it in Synchronized when the
// producer and the consumer live on different goroutines.
package vault

import (
	"errors"
	"sort"

	"github.com/jarvis394/snapshot-interpolation/snapshot"
)

// DefaultCapacity is used when New receives a non-positive capacity.
const DefaultCapacity = 100

// ErrInvalidCapacity is returned by Resize for non-positive capacities.
var ErrInvalidCapacity = errors.New("vault: capacity must be positive")

// Vault keeps the last N snapshots by insertion order. Query results are deep
// copies; only Snapshots hands out views that share entity storage.
type Vault struct {
	slots []snapshot.Snapshot
	head  int // slot holding the oldest-inserted snapshot
	count int
	// order lists slot positions sorted by timestamp, most recent first.
	order []int
}

// Bracket holds the snapshots either side of a query time. Either end is nil
// when the query falls outside the buffered range.
type Bracket struct {
	Older *snapshot.Snapshot
	Newer *snapshot.Snapshot
}

// Complete reports whether both ends of the bracket are present.
func (b Bracket) Complete() bool {
	return b.Older != nil && b.Newer != nil
}

// New constructs a vault holding at most capacity snapshots.
func New(capacity int) *Vault {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Vault{
		slots: make([]snapshot.Snapshot, capacity),
		order: make([]int, 0, capacity),
	}
}

// Add stores s, evicting the oldest-inserted snapshot when the vault is full,
// and re-sorts the timestamp index. The evicted snapshot is returned.
func (v *Vault) Add(s snapshot.Snapshot) (snapshot.Snapshot, bool) {
	evicted, ok := v.push(s)
	v.Sort()
	return evicted, ok
}

// AddUnsorted stores s and rebuilds the index from insertion order alone,
// newest first. It skips the sort and is only correct when snapshots arrive
// in timestamp order; call Sort afterwards otherwise.
func (v *Vault) AddUnsorted(s snapshot.Snapshot) (snapshot.Snapshot, bool) {
	evicted, ok := v.push(s)
	v.order = v.order[:0]
	for i := v.count - 1; i >= 0; i-- {
		v.order = append(v.order, v.slot(i))
	}
	return evicted, ok
}

func (v *Vault) push(s snapshot.Snapshot) (snapshot.Snapshot, bool) {
	capacity := len(v.slots)
	if v.count == capacity {
		evicted := v.slots[v.head]
		v.slots[v.head] = s
		v.head = (v.head + 1) % capacity
		return evicted, true
	}
	v.slots[v.slot(v.count)] = s
	v.count++
	return snapshot.Snapshot{}, false
}

// slot maps an insertion-order position to its ring slot.
func (v *Vault) slot(i int) int {
	return (v.head + i) % len(v.slots)
}

// Sort rebuilds the timestamp index. Snapshots sharing a timestamp keep their
// insertion order.
func (v *Vault) Sort() {
	v.order = v.order[:0]
	for i := 0; i < v.count; i++ {
		v.order = append(v.order, v.slot(i))
	}
	sort.SliceStable(v.order, func(a, b int) bool {
		return v.slots[v.order[a]].Timestamp > v.slots[v.order[b]].Timestamp
	})
}

// Resize changes the capacity. When shrinking below the current size the
// oldest-inserted snapshots are dropped.
func (v *Vault) Resize(capacity int) error {
	if capacity <= 0 {
		return ErrInvalidCapacity
	}
	keep := v.count
	if keep > capacity {
		keep = capacity
	}
	slots := make([]snapshot.Snapshot, capacity)
	for i := 0; i < keep; i++ {
		slots[i] = v.slots[v.slot(v.count-keep+i)]
	}
	v.slots = slots
	v.head = 0
	v.count = keep
	v.order = make([]int, 0, capacity)
	v.Sort()
	return nil
}

// Len returns the number of buffered snapshots.
func (v *Vault) Len() int { return v.count }

// Cap returns the maximum number of buffered snapshots.
func (v *Vault) Cap() int { return len(v.slots) }

// IsEmpty reports whether the vault holds no snapshots.
func (v *Vault) IsEmpty() bool { return v.count == 0 }

// IsFull reports whether the next Add will evict.
func (v *Vault) IsFull() bool { return v.count == len(v.slots) }

// at returns the i-th snapshot of the timestamp index.
func (v *Vault) at(i int) *snapshot.Snapshot {
	return &v.slots[v.order[i]]
}

func (v *Vault) copyAt(i int) *snapshot.Snapshot {
	s := v.at(i).Clone()
	return &s
}

// Around returns the snapshots bracketing t: Older is the most recent snapshot
// with Timestamp <= t and Newer the oldest with Timestamp > t.
func (v *Vault) Around(t snapshot.Timestamp) Bracket {
	n := len(v.order)
	if n == 0 {
		return Bracket{}
	}
	idx := search(n, func(i int) int {
		return compareInt64(v.at(i).Timestamp, t)
	}, true)

	var older, newer int
	if idx >= 0 && v.at(idx).Timestamp == t {
		for idx > 0 && v.at(idx-1).Timestamp == t {
			idx--
		}
		older, newer = idx, idx-1
	} else {
		older, newer = idx+1, idx
	}

	var bracket Bracket
	if older >= 0 && older < n {
		bracket.Older = v.copyAt(older)
	}
	if newer >= 0 && newer < n {
		bracket.Newer = v.copyAt(newer)
	}
	return bracket
}

// Closest returns whichever end of the bracket around t is nearer in time.
// Ties go to the older snapshot.
func (v *Vault) Closest(t snapshot.Timestamp) (snapshot.Snapshot, bool) {
	bracket := v.Around(t)
	switch {
	case bracket.Older == nil && bracket.Newer == nil:
		return snapshot.Snapshot{}, false
	case bracket.Newer == nil:
		return *bracket.Older, true
	case bracket.Older == nil:
		return *bracket.Newer, true
	}
	toOlder := absInt64(t - bracket.Older.Timestamp)
	toNewer := absInt64(t - bracket.Newer.Timestamp)
	if toNewer < toOlder {
		return *bracket.Newer, true
	}
	return *bracket.Older, true
}

// ByFrame looks up a snapshot by sequence number. Sequences must grow with
// timestamps for the search to be meaningful.
func (v *Vault) ByFrame(seq snapshot.Sequence) (snapshot.Snapshot, bool) {
	idx := search(len(v.order), func(i int) int {
		cur := v.at(i).Sequence
		switch {
		case cur > seq:
			return 1
		case cur < seq:
			return -1
		default:
			return 0
		}
	}, false)
	if idx < 0 {
		return snapshot.Snapshot{}, false
	}
	return v.at(idx).Clone(), true
}

// Last returns the snapshot with the most recent timestamp.
func (v *Vault) Last() (snapshot.Snapshot, bool) {
	if len(v.order) == 0 {
		return snapshot.Snapshot{}, false
	}
	return v.at(0).Clone(), true
}

// Remove deletes count snapshots starting at index in insertion order and
// returns them. A negative index counts back from the newest insertion.
func (v *Vault) Remove(index, count int) []snapshot.Snapshot {
	if index < 0 {
		index += v.count
	}
	if index < 0 || index >= v.count || count <= 0 {
		return nil
	}
	if index+count > v.count {
		count = v.count - index
	}

	removed := make([]snapshot.Snapshot, 0, count)
	kept := make([]snapshot.Snapshot, 0, v.count-count)
	for i := 0; i < v.count; i++ {
		s := v.slots[v.slot(i)]
		if i >= index && i < index+count {
			removed = append(removed, s)
			continue
		}
		kept = append(kept, s)
	}

	for i := range v.slots {
		v.slots[i] = snapshot.Snapshot{}
	}
	copy(v.slots, kept)
	v.head = 0
	v.count = len(kept)
	v.Sort()
	return removed
}

// RemoveFirst removes the oldest-inserted snapshot.
func (v *Vault) RemoveFirst() (snapshot.Snapshot, bool) {
	return first(v.Remove(0, 1))
}

// RemoveLast removes the newest-inserted snapshot.
func (v *Vault) RemoveLast() (snapshot.Snapshot, bool) {
	return first(v.Remove(-1, 1))
}

func first(snapshots []snapshot.Snapshot) (snapshot.Snapshot, bool) {
	if len(snapshots) == 0 {
		return snapshot.Snapshot{}, false
	}
	return snapshots[0], true
}

// Clear drops every snapshot.
func (v *Vault) Clear() {
	for i := range v.slots {
		v.slots[i] = snapshot.Snapshot{}
	}
	v.head = 0
	v.count = 0
	v.order = v.order[:0]
}

// Snapshots returns the buffered snapshots, most recent timestamp first. The
// slice is fresh but the snapshots share entity storage with the vault and
// must be treated as read-only.
func (v *Vault) Snapshots() []snapshot.Snapshot {
	if len(v.order) == 0 {
		return nil
	}
	out := make([]snapshot.Snapshot, len(v.order))
	for i := range v.order {
		out[i] = *v.at(i)
	}
	return out
}

func compareInt64(a, b int64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
