package executor

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOrderedIDs(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	c := uuid.MustParse("f0000000-0000-0000-0000-000000000000")

	assert.Equal(t, []uuid.UUID{a, b, c}, OrderedIDs(c, a, b))
	assert.Equal(t, []uuid.UUID{a, b}, OrderedIDs(b, a, b, a))
	assert.Empty(t, OrderedIDs())
}

func TestLockSet_SerializesSharedAccount(t *testing.T) {
	locks := NewLockSet()
	shared := uuid.New()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire(shared, uuid.New())
			defer release()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locks.Len())
}

func TestLockSet_OppositeRolesDoNotDeadlock(t *testing.T) {
	locks := NewLockSet()
	a, b := uuid.New(), uuid.New()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				locks.Acquire(a, b)()
			}()
			go func() {
				defer wg.Done()
				locks.Acquire(b, a)()
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lock acquisition deadlocked")
	}
	assert.Equal(t, 0, locks.Len())
}

func TestLockSet_DuplicateIDsLockOnce(t *testing.T) {
	locks := NewLockSet()
	id := uuid.New()

	release := locks.Acquire(id, id)
	assert.Equal(t, 1, locks.Len())
	release()
	assert.Equal(t, 0, locks.Len())
}
