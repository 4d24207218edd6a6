package vault

import (
	"sync"

	"github.com/jarvis394/snapshot-interpolation/snapshot"
)

// Synchronized guards a Vault with a read/write mutex so snapshots can be
// recorded on one goroutine and queried from others.
type Synchronized struct {
	mu    sync.RWMutex
	vault *Vault
}

// NewSynchronized wraps a fresh vault of the given capacity.
func NewSynchronized(capacity int) *Synchronized {
	return &Synchronized{vault: New(capacity)}
}

// Add records s and returns the evicted snapshot, if any.
func (s *Synchronized) Add(snap snapshot.Snapshot) (snapshot.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vault.Add(snap)
}

// Around returns the bracket around t.
func (s *Synchronized) Around(t snapshot.Timestamp) Bracket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vault.Around(t)
}

// Last returns the most recent snapshot.
func (s *Synchronized) Last() (snapshot.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vault.Last()
}

// Recent returns up to n snapshots in ascending timestamp order, ending with
// the most recent one.
func (s *Synchronized) Recent(n int) []snapshot.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.vault.Snapshots()
	if n <= 0 || len(all) == 0 {
		return nil
	}
	if n > len(all) {
		n = len(all)
	}
	out := make([]snapshot.Snapshot, n)
	for i := 0; i < n; i++ {
		out[i] = all[n-1-i]
	}
	return out
}

// Len returns the number of buffered snapshots.
func (s *Synchronized) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vault.Len()
}

// Clear drops every snapshot.
func (s *Synchronized) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vault.Clear()
}
