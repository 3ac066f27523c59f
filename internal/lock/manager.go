// Package lock implements exclusive range reservations for a single document
// session.
package lock

import (
	"fmt"
	"sort"
)

// Range is a character span a user wants exclusive editing rights over.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Key returns the map key for this range. Locks are exclusive per distinct
// range key, not per overlapping span.
func (r Range) Key() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Lock is a granted reservation.
type Lock struct {
	OwnerID string `json:"ownerId"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// Manager tracks range locks for one session. It is owned by the session
// coordinator, which serializes all access, so it carries no locking of its
// own.
type Manager struct {
	locks map[string]Lock
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]Lock)}
}

// Acquire reserves the range for userID. It returns true when the range is
// unlocked or already owned by userID, false when another user holds it.
// There is no queueing; a denied caller must retry or pick another range.
func (m *Manager) Acquire(r Range, userID string) bool {
	key := r.Key()

	if existing, ok := m.locks[key]; ok {
		return existing.OwnerID == userID
	}

	m.locks[key] = Lock{OwnerID: userID, Start: r.Start, End: r.End}

	return true
}

// Release frees the range. It is a no-op unless the lock is owned by userID;
// the return value reports whether a lock was actually released.
func (m *Manager) Release(r Range, userID string) bool {
	key := r.Key()

	existing, ok := m.locks[key]
	if !ok || existing.OwnerID != userID {
		return false
	}

	delete(m.locks, key)

	return true
}

// ReleaseAll frees every lock owned by userID and returns the freed ranges.
// Called when the owner disconnects.
func (m *Manager) ReleaseAll(userID string) []Range {
	var released []Range

	for key, l := range m.locks {
		if l.OwnerID == userID {
			released = append(released, Range{Start: l.Start, End: l.End})
			delete(m.locks, key)
		}
	}

	sort.Slice(released, func(i, j int) bool {
		if released[i].Start != released[j].Start {
			return released[i].Start < released[j].Start
		}

		return released[i].End < released[j].End
	})

	return released
}

// Owner reports who holds the lock on the range, if anyone.
func (m *Manager) Owner(r Range) (string, bool) {
	l, ok := m.locks[r.Key()]

	return l.OwnerID, ok
}

// Locks returns all current locks ordered by range.
func (m *Manager) Locks() []Lock {
	out := make([]Lock, 0, len(m.locks))

	for _, l := range m.locks {
		out = append(out, l)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}

		return out[i].End < out[j].End
	})

	return out
}

// Len returns the number of held locks.
func (m *Manager) Len() int {
	return len(m.locks)
}
