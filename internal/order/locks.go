package order

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// lockTable serializes operations per order id inside one process. Entries
// are reference counted and removed once no caller holds or waits on them.
type lockTable struct {
	locks *xsync.MapOf[string, *idLock]
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: xsync.NewMapOf[string, *idLock]()}
}

// lock blocks until id is free and returns the matching unlock.
func (lt *lockTable) lock(id string) func() {
	l, _ := lt.locks.Compute(id, func(old *idLock, loaded bool) (*idLock, bool) {
		if !loaded {
			old = &idLock{}
		}
		old.refs++
		return old, false
	})
	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		lt.locks.Compute(id, func(old *idLock, loaded bool) (*idLock, bool) {
			old.refs--
			return old, old.refs == 0
		})
	}
}

func (lt *lockTable) size() int {
	return lt.locks.Size()
}
