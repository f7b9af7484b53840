package domain

import (
	"context"
	"errors"
)

// ErrStoreNotFound is returned when writing through a handle whose store was deleted
var ErrStoreNotFound = errors.New("cache store not found")

// CacheStorage defines the set of named cache stores
type CacheStorage interface {
	// Open returns the store with the given name, creating it when missing
	Open(ctx context.Context, name string) (CacheStore, error)

	// Has reports whether a store with the given name exists
	Has(ctx context.Context, name string) (bool, error)

	// Keys lists the names of all existing stores
	Keys(ctx context.Context) ([]string, error)

	// Delete removes a store and all its entries
	// Returns false if no such store existed
	Delete(ctx context.Context, name string) (bool, error)
}

// CacheStore defines the operations on a single named store.
// A handle never recreates its store: once the store is deleted, reads miss
// and writes fail with ErrStoreNotFound.
type CacheStore interface {
	// Match returns the stored response for a request key
	// ok is false on a miss
	Match(ctx context.Context, key string) (resp *AssetResponse, ok bool, err error)

	// Put stores a response under a request key, replacing any previous entry
	Put(ctx context.Context, key string, resp *AssetResponse) error

	// PutAll stores every entry or none of them
	PutAll(ctx context.Context, entries []CachedAsset) error

	// Keys lists the request keys held by the store
	Keys(ctx context.Context) ([]string, error)
}

// Fetcher performs a request against the network
type Fetcher interface {
	// Fetch returns an error only when no response was obtained at all;
	// HTTP error statuses are returned as responses
	Fetch(ctx context.Context, req *AssetRequest) (*AssetResponse, error)
}
