package assetcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/simaogato/gstk-backend/internal/domain"
)

// ErrNotInstalled is returned by Activate before a successful Install
var ErrNotInstalled = errors.New("interceptor has not been installed")

// ActivationReport lists what happened to stale stores during Activate
type ActivationReport struct {
	Deleted []string
	Failed  map[string]error
}

// Install populates the versioned store with every manifest entry
// Logic:
//  1. Fetch all manifest entries concurrently
//  2. Any transport failure or non-2xx status fails the whole install
//  3. Write every entry in one PutAll, so the store is never partially populated;
//     a store created by this Install is removed again when the write fails
//
// A successful Install makes the interceptor eligible for Activate right away,
// without waiting for a previous version to finish in-flight work.
func (i *Interceptor) Install(ctx context.Context) error {
	requests := make([]*domain.AssetRequest, 0, len(i.cfg.Manifest))
	for _, path := range i.cfg.Manifest {
		req, err := domain.NewAssetRequest(i.cfg.Origin, path, domain.ModeSameOrigin)
		if err != nil {
			return fmt.Errorf("invalid manifest entry %q: %w", path, err)
		}
		requests = append(requests, req)
	}

	responses := make([]*domain.AssetResponse, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	for idx, req := range requests {
		g.Go(func() error {
			resp, err := i.fetcher.Fetch(gctx, req)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", req.URL, err)
			}
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return fmt.Errorf("fetch %s: unexpected status %d", req.URL, resp.StatusCode)
			}
			responses[idx] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("install %s: %w", i.cfg.StoreName(), err)
	}

	now := time.Now()
	entries := make([]domain.CachedAsset, len(requests))
	for idx, req := range requests {
		entries[idx] = domain.CachedAsset{
			Key:      req.Key(),
			Response: responses[idx],
			StoredAt: now,
		}
	}

	name := i.cfg.StoreName()
	existed, err := i.storage.Has(ctx, name)
	if err != nil {
		return fmt.Errorf("install %s: check store: %w", name, err)
	}
	store, err := i.storage.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("install %s: open store: %w", name, err)
	}
	if err := store.PutAll(ctx, entries); err != nil {
		if !existed {
			i.discard(ctx, name)
		}
		return fmt.Errorf("install %s: populate store: %w", name, err)
	}

	i.installed.Store(true)
	i.logger.Info("asset cache installed", slog.Int("assets", len(entries)))
	return nil
}

// Activate removes stores left behind by other versions and claims control
// Logic:
//  1. Enumerate every store
//  2. Delete each store carrying the prefix but not the current name;
//     deletions run independently and a failure never blocks the others
//  3. Open the current store once and start intercepting requests
func (i *Interceptor) Activate(ctx context.Context) (*ActivationReport, error) {
	if !i.installed.Load() {
		return nil, ErrNotInstalled
	}

	names, err := i.storage.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache stores: %w", err)
	}

	current := i.cfg.StoreName()
	report := &ActivationReport{Failed: make(map[string]error)}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range names {
		if !strings.HasPrefix(name, i.cfg.Prefix) || name == current {
			continue
		}
		wg.Go(func() {
			_, err := i.storage.Delete(ctx, name)
			i.metrics.StoreDeleted(err)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[name] = err
				i.logger.Warn("failed to delete stale cache store", slog.String("stale", name), slog.Any("error", err))
				return
			}
			report.Deleted = append(report.Deleted, name)
		})
	}
	wg.Wait()
	sort.Strings(report.Deleted)

	store, err := i.storage.Open(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store %s: %w", current, err)
	}
	i.active.Store(&store)
	i.controlling.Store(true)
	i.logger.Info("asset cache activated",
		slog.Int("deleted", len(report.Deleted)),
		slog.Int("failed", len(report.Failed)),
	)
	return report, nil
}

// discard drops a store that failed to populate
func (i *Interceptor) discard(ctx context.Context, name string) {
	if _, err := i.storage.Delete(context.WithoutCancel(ctx), name); err != nil {
		i.logger.Warn("failed to remove unpopulated cache store", slog.Any("error", err))
	}
}
