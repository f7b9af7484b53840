// Package rediscache stores named cache stores in Redis: one hash per store,
// plus a set that registers every store name.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simaogato/gstk-backend/internal/domain"
)

const defaultNamespace = "gstk"

// cacheStorage implements domain.CacheStorage
type cacheStorage struct {
	client    *redis.Client
	namespace string
}

// NewCacheStorage creates a new Redis backed cache storage.
// An empty namespace falls back to "gstk".
func NewCacheStorage(client *redis.Client, namespace string) domain.CacheStorage {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &cacheStorage{client: client, namespace: namespace}
}

func (s *cacheStorage) registryKey() string {
	return s.namespace + ":stores"
}

func (s *cacheStorage) storeKey(name string) string {
	return s.namespace + ":store:" + name
}

// Open registers the store name and returns a handle to its hash
func (s *cacheStorage) Open(ctx context.Context, name string) (domain.CacheStore, error) {
	if err := s.client.SAdd(ctx, s.registryKey(), name).Err(); err != nil {
		return nil, fmt.Errorf("failed to register cache store %s: %w", name, err)
	}
	return &cacheStore{client: s.client, registry: s.registryKey(), key: s.storeKey(name), name: name}, nil
}

// Has checks the registry for a store name
func (s *cacheStorage) Has(ctx context.Context, name string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.registryKey(), name).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check cache store %s: %w", name, err)
	}
	return ok, nil
}

// Keys lists registered store names in lexical order
func (s *cacheStorage) Keys(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.registryKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cache stores: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Delete unregisters the store first, then drops its hash.
// A delete cut short between the two leaves an orphan hash, never a registered empty store.
func (s *cacheStorage) Delete(ctx context.Context, name string) (bool, error) {
	removed, err := s.client.SRem(ctx, s.registryKey(), name).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete cache store %s: %w", name, err)
	}
	if err := s.client.Del(ctx, s.storeKey(name)).Err(); err != nil {
		return false, fmt.Errorf("failed to delete cache store %s: %w", name, err)
	}
	return removed > 0, nil
}

// putScript writes field/value pairs to the store hash only while the store
// is registered. KEYS: registry, store hash. ARGV: store name, then pairs.
var putScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 0 then
	return -1
end
for i = 2, #ARGV, 2 do
	redis.call('HSET', KEYS[2], ARGV[i], ARGV[i + 1])
end
return 1
`)

// cacheStore implements domain.CacheStore over a single hash
type cacheStore struct {
	client   *redis.Client
	registry string
	key      string
	name     string
}

// storedResponse is the JSON form of a cached response
type storedResponse struct {
	StatusCode int         `json:"status"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
	StoredAt   time.Time   `json:"stored_at"`
}

func (c *cacheStore) Match(ctx context.Context, key string) (*domain.AssetResponse, bool, error) {
	payload, err := c.client.HGet(ctx, c.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var stored storedResponse
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &domain.AssetResponse{
		StatusCode: stored.StatusCode,
		Header:     stored.Header,
		Body:       stored.Body,
	}, true, nil
}

func (c *cacheStore) Put(ctx context.Context, key string, resp *domain.AssetResponse) error {
	payload, err := encode(resp, time.Now())
	if err != nil {
		return err
	}
	if err := c.write(ctx, key, payload); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// PutAll writes every entry in one script run, which Redis applies atomically
func (c *cacheStore) PutAll(ctx context.Context, entries []domain.CachedAsset) error {
	if len(entries) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(entries)*2)
	for _, entry := range entries {
		payload, err := encode(entry.Response, entry.StoredAt)
		if err != nil {
			return err
		}
		values = append(values, entry.Key, payload)
	}

	if err := c.write(ctx, values...); err != nil {
		return fmt.Errorf("failed to write cache entries: %w", err)
	}
	return nil
}

func (c *cacheStore) write(ctx context.Context, pairs ...interface{}) error {
	args := append([]interface{}{c.name}, pairs...)
	status, err := putScript.Run(ctx, c.client, []string{c.registry, c.key}, args...).Int()
	if err != nil {
		return err
	}
	if status < 0 {
		return fmt.Errorf("%s: %w", c.name, domain.ErrStoreNotFound)
	}
	return nil
}

func (c *cacheStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.client.HKeys(ctx, c.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func encode(resp *domain.AssetResponse, storedAt time.Time) ([]byte, error) {
	if resp == nil {
		return nil, errors.New("cache entry response cannot be nil")
	}
	payload, err := json.Marshal(storedResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		StoredAt:   storedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return payload, nil
}
