package assetcache

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/gstk-backend/internal/adapter/repository/memory"
	"github.com/simaogato/gstk-backend/internal/domain"
)

var errUnreachable = errors.New("dial tcp 203.0.113.10:443: connect: network is unreachable")

// MockFetcher is a mock implementation of domain.Fetcher for testing
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, req *domain.AssetRequest) (*domain.AssetResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AssetResponse), args.Error(1)
}

func forURL(raw string) interface{} {
	return mock.MatchedBy(func(req *domain.AssetRequest) bool {
		return req.URL.String() == raw
	})
}

func okResponse(contentType, body string) *domain.AssetResponse {
	return &domain.AssetResponse{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{contentType}},
		Body:       []byte(body),
	}
}

func testConfig(t *testing.T, version string) Config {
	t.Helper()
	origin, err := url.Parse("https://gst.example.com")
	require.NoError(t, err)
	return Config{
		Prefix:       DefaultPrefix,
		Version:      version,
		Manifest:     []string{"/", "/index.html", "/styles.css"},
		RootDocument: DefaultRootDocument,
		Origin:       origin,
	}
}

// expectManifest registers one successful fetch per manifest entry
func expectManifest(fetcher *MockFetcher) {
	fetcher.On("Fetch", mock.Anything, forURL("https://gst.example.com/")).
		Return(okResponse("text/html", "<html>root</html>"), nil).Once()
	fetcher.On("Fetch", mock.Anything, forURL("https://gst.example.com/index.html")).
		Return(okResponse("text/html", "<html>index</html>"), nil).Once()
	fetcher.On("Fetch", mock.Anything, forURL("https://gst.example.com/styles.css")).
		Return(okResponse("text/css", "body{margin:0}"), nil).Once()
}

func newActiveInterceptor(t *testing.T, storage domain.CacheStorage, fetcher *MockFetcher) *Interceptor {
	t.Helper()
	ctx := context.Background()

	interceptor, err := NewInterceptor(testConfig(t, "v1"), storage, fetcher, nil, nil)
	require.NoError(t, err)

	expectManifest(fetcher)
	require.NoError(t, interceptor.Install(ctx))
	_, err = interceptor.Activate(ctx)
	require.NoError(t, err)
	return interceptor
}

func assetRequest(t *testing.T, method, raw string, mode domain.RequestMode) *domain.AssetRequest {
	t.Helper()
	origin, _ := url.Parse("https://gst.example.com")
	req, err := domain.NewAssetRequest(origin, raw, mode)
	require.NoError(t, err)
	req.Method = method
	return req
}

func TestHandle_ManifestAssetServedOffline(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockFetcher)
	interceptor := newActiveInterceptor(t, memory.NewCacheStorage(), fetcher)

	resp, source, err := interceptor.Handle(ctx, assetRequest(t, http.MethodGet, "/styles.css", domain.ModeNoCORS))

	require.NoError(t, err)
	assert.Equal(t, SourceCache, source)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte("body{margin:0}"), resp.Body)
	assert.Equal(t, "text/css", resp.Header.Get("Content-Type"))
	// only the three install fetches, nothing for the cache hit
	fetcher.AssertNumberOfCalls(t, "Fetch", 3)
}

func TestHandle_NavigationFallsBackToRootDocument(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockFetcher)
	interceptor := newActiveInterceptor(t, memory.NewCacheStorage(), fetcher)

	fetcher.On("Fetch", mock.Anything, forURL("https://gst.example.com/calculator/b2b")).
		Return(nil, errUnreachable).Once()

	resp, source, err := interceptor.Handle(ctx, assetRequest(t, http.MethodGet, "/calculator/b2b", domain.ModeNavigate))

	require.NoError(t, err)
	assert.Equal(t, SourceFallback, source)
	assert.Equal(t, "<html>index</html>", string(resp.Body))
	fetcher.AssertExpectations(t)
}

func TestHandle_NonNavigationOfflineFails(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockFetcher)
	interceptor := newActiveInterceptor(t, memory.NewCacheStorage(), fetcher)

	fetcher.On("Fetch", mock.Anything, forURL("https://gst.example.com/app.js")).
		Return(nil, errUnreachable).Once()

	resp, source, err := interceptor.Handle(ctx, assetRequest(t, http.MethodGet, "/app.js", domain.ModeNoCORS))

	assert.Nil(t, resp)
	assert.Empty(t, source)
	assert.ErrorIs(t, err, domain.ErrOffline)
	assert.ErrorIs(t, err, errUnreachable)
}

func TestHandle_NavigationWithoutRootDocumentFails(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewCacheStorage()
	fetcher := new(MockFetcher)
	interceptor := newActiveInterceptor(t, storage, fetcher)

	// wipe the store contents so the root document is gone
	_, err := storage.Delete(ctx, "gstk-cache-v1")
	require.NoError(t, err)

	fetcher.On("Fetch", mock.Anything, forURL("https://gst.example.com/about")).
		Return(nil, errUnreachable).Once()

	_, _, err = interceptor.Handle(ctx, assetRequest(t, http.MethodGet, "/about", domain.ModeNavigate))

	assert.ErrorIs(t, err, domain.ErrOffline)
}

func TestHandle_NonGetNeverTouchesStore(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewCacheStorage()
	fetcher := new(MockFetcher)
	interceptor := newActiveInterceptor(t, storage, fetcher)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodHead} {
		// same URL as a cached manifest entry
		resp, _, err := interceptor.Handle(ctx, assetRequest(t, method, "/styles.css", domain.ModeCORS))

		assert.Nil(t, resp)
		assert.ErrorIs(t, err, domain.ErrNotIntercepted, method)
	}
	interceptor.Wait()

	store, err := storage.Open(ctx, "gstk-cache-v1")
	require.NoError(t, err)
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	for _, key := range keys {
		assert.Regexp(t, "^GET ", key)
	}
	fetcher.AssertNumberOfCalls(t, "Fetch", 3)
}

func TestHandle_MissWritesBackSameOriginSuccess(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewCacheStorage()
	fetcher := new(MockFetcher)
	interceptor := newActiveInterceptor(t, storage, fetcher)

	fetcher.On("Fetch", mock.Anything, forURL("https://gst.example.com/fonts/inter.woff2")).
		Return(okResponse("font/woff2", "woff2-bytes"), nil).Once()

	resp, source, err := interceptor.Handle(ctx, assetRequest(t, http.MethodGet, "/fonts/inter.woff2", domain.ModeCORS))
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, source)
	assert.Equal(t, "woff2-bytes", string(resp.Body))

	interceptor.Wait()

	// second request is a hit with no further fetch
	resp, source, err = interceptor.Handle(ctx, assetRequest(t, http.MethodGet, "/fonts/inter.woff2", domain.ModeCORS))
	require.NoError(t, err)
	assert.Equal(t, SourceCache, source)
	assert.Equal(t, "woff2-bytes", string(resp.Body))
	fetcher.AssertExpectations(t)
}

func TestHandle_WriteBackDoesNotRecreateDeletedStore(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewCacheStorage()
	fetcher := new(MockFetcher)
	interceptor := newActiveInterceptor(t, storage, fetcher)

	// a newer version activated and removed this store
	_, err := storage.Delete(ctx, "gstk-cache-v1")
	require.NoError(t, err)

	fetcher.On("Fetch", mock.Anything, forURL("https://gst.example.com/app.js")).
		Return(okResponse("text/javascript", "js"), nil).Once()

	resp, source, err := interceptor.Handle(ctx, assetRequest(t, http.MethodGet, "/app.js", domain.ModeNoCORS))
	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, source)
	assert.Equal(t, "js", string(resp.Body))
	interceptor.Wait()

	has, err := storage.Has(ctx, "gstk-cache-v1")
	require.NoError(t, err)
	assert.False(t, has)
	fetcher.AssertExpectations(t)
}

func TestHandle_MissDoesNotCacheUnsuitableResponses(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		resp *domain.AssetResponse
	}{
		{
			name: "cross origin",
			raw:  "https://cdn.example.net/lib.js",
			resp: okResponse("text/javascript", "lib"),
		},
		{
			name: "not found",
			raw:  "/missing.png",
			resp: &domain.AssetResponse{StatusCode: http.StatusNotFound, Body: []byte("nope")},
		},
		{
			name: "partial content",
			raw:  "/video.mp4",
			resp: &domain.AssetResponse{StatusCode: http.StatusPartialContent, Body: []byte("part")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			storage := memory.NewCacheStorage()
			fetcher := new(MockFetcher)
			interceptor := newActiveInterceptor(t, storage, fetcher)

			req := assetRequest(t, http.MethodGet, tt.raw, domain.ModeNoCORS)
			fetcher.On("Fetch", mock.Anything, forURL(req.URL.String())).Return(tt.resp, nil).Once()

			resp, source, err := interceptor.Handle(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, SourceNetwork, source)
			assert.Equal(t, tt.resp.StatusCode, resp.StatusCode)
			interceptor.Wait()

			store, err := storage.Open(ctx, "gstk-cache-v1")
			require.NoError(t, err)
			_, ok, err := store.Match(ctx, req.Key())
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestHandle_BeforeActivationPassesThrough(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockFetcher)
	interceptor, err := NewInterceptor(testConfig(t, "v1"), memory.NewCacheStorage(), fetcher, nil, nil)
	require.NoError(t, err)

	_, _, err = interceptor.Handle(ctx, assetRequest(t, http.MethodGet, "/", domain.ModeNavigate))

	assert.ErrorIs(t, err, domain.ErrNotIntercepted)
	assert.False(t, interceptor.Controlling())
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

// failingPutStorage wraps a storage whose stores reject Put
type failingPutStorage struct {
	domain.CacheStorage
}

func (s failingPutStorage) Open(ctx context.Context, name string) (domain.CacheStore, error) {
	store, err := s.CacheStorage.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return failingPutStore{store}, nil
}

type failingPutStore struct {
	domain.CacheStore
}

func (failingPutStore) Put(context.Context, string, *domain.AssetResponse) error {
	return errors.New("store is read-only")
}

func TestHandle_WriteBackFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	fetcher := new(MockFetcher)
	interceptor := newActiveInterceptor(t, failingPutStorage{memory.NewCacheStorage()}, fetcher)

	fetcher.On("Fetch", mock.Anything, forURL("https://gst.example.com/script.js")).
		Return(okResponse("text/javascript", "console.log(1)"), nil).Once()

	resp, source, err := interceptor.Handle(ctx, assetRequest(t, http.MethodGet, "/script.js", domain.ModeNoCORS))
	interceptor.Wait()

	require.NoError(t, err)
	assert.Equal(t, SourceNetwork, source)
	assert.Equal(t, "console.log(1)", string(resp.Body))
}

func TestNewInterceptor_InvalidConfig(t *testing.T) {
	cfg := testConfig(t, "")

	_, err := NewInterceptor(cfg, memory.NewCacheStorage(), new(MockFetcher), nil, nil)

	assert.EqualError(t, err, "cache version cannot be empty")
}
