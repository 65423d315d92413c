package session

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore keeps pending clarifications in process. Entries expire after
// the configured TTL; reads do not extend it.
type MemoryStore struct {
	cache *ttlcache.Cache[string, Pending]
}

// NewMemoryStore starts the expiry loop. A zero ttl keeps entries until cleared.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, Pending](ttl),
		ttlcache.WithDisableTouchOnHit[string, Pending](),
	)
	go cache.Start()
	return &MemoryStore{cache: cache}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (Pending, bool, error) {
	item := s.cache.Get(sessionID)
	if item == nil {
		return Pending{}, false, nil
	}
	return item.Value(), true, nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID string, p Pending) error {
	s.cache.Set(sessionID, p, ttlcache.DefaultTTL)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.cache.Delete(sessionID)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of live entries.
func (s *MemoryStore) Len() int { return s.cache.Len() }

func (s *MemoryStore) Close() error {
	s.cache.Stop()
	return nil
}
