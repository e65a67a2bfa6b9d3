package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrCursorNotFound is returned for unknown or expired cursors
var ErrCursorNotFound = errors.New("cursor not found")

// cursor is the position of a query walk over matched series
type cursor struct {
	queryID string
	ids     []uint64
	pos     int
	expires time.Time
}

// cursorRegistry keeps open cursors until they are consumed or expire
type cursorRegistry struct {
	mu      sync.Mutex
	ttl     time.Duration
	cursors map[string]*cursor
	now     func() time.Time
}

func newCursorRegistry(ttl time.Duration) *cursorRegistry {
	return &cursorRegistry{
		ttl:     ttl,
		cursors: make(map[string]*cursor),
		now:     time.Now,
	}
}

// open registers a new cursor over ids and returns its ID
func (r *cursorRegistry) open(queryID string, ids []uint64) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expireLocked()
	id := uuid.NewString()
	r.cursors[id] = &cursor{
		queryID: queryID,
		ids:     ids,
		expires: r.now().Add(r.ttl),
	}
	return id
}

// next advances the cursor by up to n series. It returns the series IDs of
// the page and whether the cursor is exhausted. Exhausted cursors are removed.
func (r *cursorRegistry) next(cursorID, queryID string, n int) ([]uint64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.expireLocked()
	c, ok := r.cursors[cursorID]
	if !ok || c.queryID != queryID {
		return nil, false, ErrCursorNotFound
	}

	end := min(c.pos+n, len(c.ids))
	page := c.ids[c.pos:end]
	c.pos = end
	c.expires = r.now().Add(r.ttl)

	done := c.pos >= len(c.ids)
	if done {
		delete(r.cursors, cursorID)
	}
	return page, done, nil
}

// size returns the number of open cursors
func (r *cursorRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cursors)
}

func (r *cursorRegistry) expireLocked() {
	now := r.now()
	for id, c := range r.cursors {
		if now.After(c.expires) {
			delete(r.cursors, id)
		}
	}
}
