package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lib/pq"

	"github.com/simaogato/gstk-backend/internal/domain"
)

// cacheStorage implements domain.CacheStorage
type cacheStorage struct {
	db *DB
}

// NewCacheStorage creates a new PostgreSQL backed cache storage.
// Call DB.EnsureSchema before first use.
func NewCacheStorage(db *DB) domain.CacheStorage {
	return &cacheStorage{db: db}
}

// Open creates the store row if it does not exist yet
func (s *cacheStorage) Open(ctx context.Context, name string) (domain.CacheStore, error) {
	query := `
		INSERT INTO cache_stores (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, name); err != nil {
		return nil, fmt.Errorf("failed to open cache store %s: %w", name, err)
	}
	return &cacheStore{db: s.db, name: name}, nil
}

// Has checks whether a store row exists
func (s *cacheStorage) Has(ctx context.Context, name string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM cache_stores WHERE name = $1)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check cache store %s: %w", name, err)
	}
	return exists, nil
}

// Keys lists store names in lexical order
func (s *cacheStorage) Keys(ctx context.Context) ([]string, error) {
	query := `SELECT name FROM cache_stores ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache stores: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan cache store name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cache stores: %w", err)
	}
	return names, nil
}

// Delete removes the store row; its entries go with it via ON DELETE CASCADE
func (s *cacheStorage) Delete(ctx context.Context, name string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cache_stores WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete cache store %s: %w", name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// cacheStore implements domain.CacheStore for one row of cache_stores
type cacheStore struct {
	db   *DB
	name string
}

const upsertEntry = `
	INSERT INTO cache_entries (store_name, request_key, status_code, header, body, stored_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (store_name, request_key) DO UPDATE
	SET status_code = EXCLUDED.status_code,
		header = EXCLUDED.header,
		body = EXCLUDED.body,
		stored_at = EXCLUDED.stored_at
`

func (c *cacheStore) Match(ctx context.Context, key string) (*domain.AssetResponse, bool, error) {
	query := `
		SELECT status_code, header, body
		FROM cache_entries
		WHERE store_name = $1 AND request_key = $2
	`

	var (
		resp       domain.AssetResponse
		headerJSON []byte
	)
	err := c.db.QueryRowContext(ctx, query, c.name, key).Scan(&resp.StatusCode, &headerJSON, &resp.Body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if err := json.Unmarshal(headerJSON, &resp.Header); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry header: %w", err)
	}
	return &resp, true, nil
}

func (c *cacheStore) Put(ctx context.Context, key string, resp *domain.AssetResponse) error {
	args, err := entryArgs(c.name, key, resp, time.Now())
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, upsertEntry, args...); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", storeErr(c.name, err))
	}
	return nil
}

// PutAll writes every entry in one transaction
func (c *cacheStore) PutAll(ctx context.Context, entries []domain.CachedAsset) error {
	if len(entries) == 0 {
		return nil
	}

	dbTx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, upsertEntry)
	if err != nil {
		return fmt.Errorf("failed to prepare cache entry insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		args, err := entryArgs(c.name, entry.Key, entry.Response, entry.StoredAt)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to write cache entry %s: %w", entry.Key, storeErr(c.name, err))
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (c *cacheStore) Keys(ctx context.Context) ([]string, error) {
	query := `
		SELECT request_key
		FROM cache_entries
		WHERE store_name = $1
		ORDER BY request_key
	`

	rows, err := c.db.QueryContext(ctx, query, c.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cache entries: %w", err)
	}
	return keys, nil
}

// foreignKeyViolation is the SQLSTATE raised when cache_entries.store_name
// points at a missing cache_stores row
const foreignKeyViolation = "23503"

// storeErr maps a write against a deleted store to domain.ErrStoreNotFound
func storeErr(name string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return fmt.Errorf("%s: %w", name, domain.ErrStoreNotFound)
	}
	return err
}

func entryArgs(store, key string, resp *domain.AssetResponse, storedAt time.Time) ([]interface{}, error) {
	if resp == nil {
		return nil, errors.New("cache entry response cannot be nil")
	}
	header := resp.Header
	if header == nil {
		header = http.Header{}
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache entry header: %w", err)
	}
	body := resp.Body
	if body == nil {
		body = []byte{}
	}
	if storedAt.IsZero() {
		storedAt = time.Now()
	}
	// JSONB takes the text form; a []byte argument would be sent as bytea
	return []interface{}{store, key, resp.StatusCode, string(headerJSON), body, storedAt}, nil
}
