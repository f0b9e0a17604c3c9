package domain

import "sync"

// Guard mediates access to the single shared collection. Ingestion and
// retrieval hold shared access; reset holds exclusive access, so no query
// observes a half-cleared collection and no upsert races the deletion window.
type Guard struct {
	mu sync.RWMutex
}

// NewGuard creates a collection guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Acquire takes shared access for reads and idempotent writes.
func (g *Guard) Acquire() {
	g.mu.RLock()
}

// Release drops shared access.
func (g *Guard) Release() {
	g.mu.RUnlock()
}

// AcquireExclusive blocks until all shared holders finish, then takes sole access.
func (g *Guard) AcquireExclusive() {
	g.mu.Lock()
}

// ReleaseExclusive drops sole access.
func (g *Guard) ReleaseExclusive() {
	g.mu.Unlock()
}
