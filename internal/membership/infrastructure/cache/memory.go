package cache

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/donora/internal/membership/domain"
	"github.com/google/uuid"
)

type memoryEntry struct {
	membership *domain.Membership
	expiresAt  time.Time
}

// MemoryCache is a process-local MembershipCache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[uuid.UUID]memoryEntry),
		now:     time.Now,
	}
}

// Get returns a copy of the cached record so callers cannot alter the entry.
func (c *MemoryCache) Get(_ context.Context, userID uuid.UUID) (*domain.Membership, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[userID]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, userID)
		return nil, false, nil
	}
	return e.membership.Clone(), true, nil
}

// Set stores m. A zero ttl keeps the entry until invalidated.
func (c *MemoryCache) Set(_ context.Context, userID uuid.UUID, m *domain.Membership, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := memoryEntry{membership: m.Clone()}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[userID] = e
	return nil
}

// Invalidate drops the entry for userID.
func (c *MemoryCache) Invalidate(_ context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
