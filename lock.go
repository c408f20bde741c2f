package vstream

import "sync"

// lockTable is a process-wide set of in-use stream ids, guarded by a mutex.
// Acquire returns a scoped token if the id is not present; otherwise it
// fails with ErrBusy. The set is purely advisory between goroutines of one
// process -- it carries no filesystem crash-safety guarantee.
type lockTable struct {
	mu   sync.Mutex
	held map[StreamId]struct{}
}

func newLockTable() *lockTable {
	return &lockTable{held: make(map[StreamId]struct{})}
}

// Acquire returns a Lock for id, or ErrBusy if another operation already
// holds it.
func (t *lockTable) Acquire(id StreamId) (*Lock, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, busy := t.held[id]; busy {
		return nil, ErrBusy
	}
	t.held[id] = struct{}{}
	return &Lock{table: t, id: id}, nil
}

// Lock is a scoped token asserting exclusive mutating access to one stream
// id. Release is idempotent: it is safe to call it explicitly and again via
// a deferred Close, exactly once taking effect.
type Lock struct {
	table *lockTable
	id    StreamId
	once  sync.Once
}

// Release removes the id from the lock table, allowing a subsequent
// Acquire to succeed. Calling Release more than once is a no-op.
func (l *Lock) Release() {
	l.once.Do(func() {
		l.table.mu.Lock()
		delete(l.table.held, l.id)
		l.table.mu.Unlock()
	})
}
