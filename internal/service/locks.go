package service

import (
	"slices"
	"sync"
)

// ProductLocks serializes stock check-and-write sequences per product id.
// Locks for several products are always taken in ascending id order so two
// sales touching the same products cannot deadlock.
type ProductLocks struct {
	mu    sync.Mutex
	locks map[int64]*productLock
}

type productLock struct {
	sync.Mutex
	refs int
}

// NewProductLocks creates an empty lock table.
func NewProductLocks() *ProductLocks {
	return &ProductLocks{locks: make(map[int64]*productLock)}
}

// Lock blocks until every given product is held by the caller and returns the release func.
// Duplicate ids are locked once.
func (l *ProductLocks) Lock(ids ...int64) (unlock func()) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*productLock, 0, len(sorted))
	for _, id := range sorted {
		l.mu.Lock()
		pl, ok := l.locks[id]
		if !ok {
			pl = &productLock{}
			l.locks[id] = pl
		}
		pl.refs++
		l.mu.Unlock()

		pl.Lock()
		held = append(held, pl)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
			l.release(sorted[i], held[i])
		}
	}
}

func (l *ProductLocks) release(id int64, pl *productLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, id)
	}
}
