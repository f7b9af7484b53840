package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/simaogato/gstk-backend/internal/domain"
)

// CacheStorage keeps named cache stores in process memory
type CacheStorage struct {
	mu     sync.RWMutex
	stores map[string]map[string]*domain.AssetResponse
}

// NewCacheStorage creates an empty storage
func NewCacheStorage() *CacheStorage {
	return &CacheStorage{stores: make(map[string]map[string]*domain.AssetResponse)}
}

// Open returns a handle to the named store, creating it when missing
func (s *CacheStorage) Open(ctx context.Context, name string) (domain.CacheStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[name]; !ok {
		s.stores[name] = make(map[string]*domain.AssetResponse)
	}
	return &cacheStore{storage: s, name: name}, nil
}

// Has reports whether the named store exists
func (s *CacheStorage) Has(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.stores[name]
	return ok, nil
}

// Keys lists store names in lexical order
func (s *CacheStorage) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.stores))
	for name := range s.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete drops the named store
func (s *CacheStorage) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.stores[name]
	delete(s.stores, name)
	return ok, nil
}

// cacheStore looks its entries up by name on every call, so a deleted
// store stays deleted
type cacheStore struct {
	storage *CacheStorage
	name    string
}

// Match returns a copy so callers can never mutate the stored entry
func (c *cacheStore) Match(ctx context.Context, key string) (*domain.AssetResponse, bool, error) {
	c.storage.mu.RLock()
	defer c.storage.mu.RUnlock()

	resp, ok := c.storage.stores[c.name][key]
	if !ok {
		return nil, false, nil
	}
	return resp.Clone(), true, nil
}

func (c *cacheStore) Put(ctx context.Context, key string, resp *domain.AssetResponse) error {
	c.storage.mu.Lock()
	defer c.storage.mu.Unlock()

	entries, ok := c.storage.stores[c.name]
	if !ok {
		return fmt.Errorf("put %s: %w", c.name, domain.ErrStoreNotFound)
	}
	entries[key] = resp.Clone()
	return nil
}

func (c *cacheStore) PutAll(ctx context.Context, assets []domain.CachedAsset) error {
	c.storage.mu.Lock()
	defer c.storage.mu.Unlock()

	entries, ok := c.storage.stores[c.name]
	if !ok {
		return fmt.Errorf("put all %s: %w", c.name, domain.ErrStoreNotFound)
	}
	for _, asset := range assets {
		entries[asset.Key] = asset.Response.Clone()
	}
	return nil
}

func (c *cacheStore) Keys(ctx context.Context) ([]string, error) {
	c.storage.mu.RLock()
	defer c.storage.mu.RUnlock()

	entries := c.storage.stores[c.name]
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
