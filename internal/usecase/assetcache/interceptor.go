package assetcache

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/simaogato/gstk-backend/internal/domain"
	"github.com/simaogato/gstk-backend/internal/observability"
)

// Source tells where a response handed back by Handle came from
type Source string

const (
	SourceCache    Source = "cache"
	SourceNetwork  Source = "network"
	SourceFallback Source = "fallback"
)

// Interceptor applies a cache-first policy to asset requests
type Interceptor struct {
	cfg     Config
	storage domain.CacheStorage
	fetcher domain.Fetcher
	logger  *slog.Logger
	metrics *observability.Metrics

	installed   atomic.Bool
	controlling atomic.Bool
	active      atomic.Pointer[domain.CacheStore]
	pending     sync.WaitGroup
}

// NewInterceptor creates a new Interceptor instance.
// It does not handle requests until Install and Activate have succeeded.
func NewInterceptor(
	cfg Config,
	storage domain.CacheStorage,
	fetcher domain.Fetcher,
	logger *slog.Logger,
	metrics *observability.Metrics,
) (*Interceptor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Interceptor{
		cfg:     cfg,
		storage: storage,
		fetcher: fetcher,
		logger:  logger.With(slog.String("store", cfg.StoreName())),
		metrics: metrics,
	}, nil
}

// Config returns the configuration the interceptor was built with
func (i *Interceptor) Config() Config {
	return i.cfg
}

// Controlling reports whether the interceptor has claimed request handling
func (i *Interceptor) Controlling() bool {
	return i.controlling.Load()
}

// Handle answers one request
// Logic:
//  1. Not controlling yet, or not a GET: ErrNotIntercepted, the caller goes to the network itself
//  2. Cache hit in the active store: return it, no network, no freshness check
//  3. Miss: fetch; same-origin 200 responses are written back in the background
//  4. Fetch failure: navigations get the cached root document, everything else ErrOffline
func (i *Interceptor) Handle(ctx context.Context, req *domain.AssetRequest) (*domain.AssetResponse, Source, error) {
	if !i.controlling.Load() || req.Method != http.MethodGet {
		i.metrics.AssetRequest("bypass")
		return nil, "", domain.ErrNotIntercepted
	}

	store := *i.active.Load()

	key := req.Key()
	cached, ok, err := store.Match(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("failed to match cache entry: %w", err)
	}
	if ok {
		i.metrics.AssetRequest(string(SourceCache))
		return cached, SourceCache, nil
	}

	resp, err := i.fetcher.Fetch(ctx, req)
	if err != nil {
		return i.fallback(ctx, store, req, err)
	}

	if req.SameOrigin(i.cfg.Origin) && resp.OK() {
		i.writeBack(ctx, store, key, resp.Clone())
	}

	i.metrics.AssetRequest(string(SourceNetwork))
	return resp, SourceNetwork, nil
}

// Wait blocks until every in-flight write-back has finished
func (i *Interceptor) Wait() {
	i.pending.Wait()
}

func (i *Interceptor) fallback(
	ctx context.Context,
	store domain.CacheStore,
	req *domain.AssetRequest,
	fetchErr error,
) (*domain.AssetResponse, Source, error) {
	if !req.IsNavigation() {
		i.metrics.AssetRequest("offline")
		return nil, "", fmt.Errorf("%w: %w", domain.ErrOffline, fetchErr)
	}

	rootReq, err := domain.NewAssetRequest(i.cfg.Origin, i.cfg.RootDocument, domain.ModeNavigate)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", domain.ErrOffline, fetchErr)
	}
	root, ok, err := store.Match(ctx, rootReq.Key())
	if err != nil || !ok {
		i.metrics.AssetRequest("offline")
		if err != nil {
			i.logger.Warn("root document lookup failed", slog.Any("error", err))
		}
		return nil, "", fmt.Errorf("%w: %w", domain.ErrOffline, fetchErr)
	}

	i.metrics.AssetRequest(string(SourceFallback))
	return root, SourceFallback, nil
}

// writeBack stores a response on a detached goroutine.
// Best-effort and non-blocking: a failure is logged and otherwise ignored.
// A store deleted by a newer version stays deleted.
func (i *Interceptor) writeBack(ctx context.Context, store domain.CacheStore, key string, resp *domain.AssetResponse) {
	bg := context.WithoutCancel(ctx)
	i.pending.Go(func() {
		err := store.Put(bg, key, resp)
		i.metrics.WriteBack(err)
		if err != nil {
			i.logger.Warn("cache write-back failed", slog.String("key", key), slog.Any("error", err))
		}
	})
}
