package executor

import (
	"bytes"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// LockSet hands out exclusive per-account critical sections inside one process.
// Entries are reference counted and dropped once nobody holds or waits for them.
type LockSet struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

// NewLockSet creates an empty LockSet
func NewLockSet() *LockSet {
	return &LockSet{locks: make(map[uuid.UUID]*accountLock)}
}

// Acquire locks every given account in ascending ID order and returns the release func.
// Duplicates are locked once.
func (s *LockSet) Acquire(ids ...uuid.UUID) (release func()) {
	ordered := OrderedIDs(ids...)

	held := make([]*accountLock, 0, len(ordered))
	for _, id := range ordered {
		l := s.ref(id)
		l.mu.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			s.unref(ordered[i])
		}
	}
}

// Len returns the number of accounts currently held or waited for
func (s *LockSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

func (s *LockSet) ref(id uuid.UUID) *accountLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &accountLock{}
		s.locks[id] = l
	}
	l.refs++
	return l
}

func (s *LockSet) unref(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.locks[id]
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}

// OrderedIDs returns the distinct IDs in ascending byte order.
// This is the global acquisition order for account locks, in process and in the database.
func OrderedIDs(ids ...uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return slices.Compact(out)
}
