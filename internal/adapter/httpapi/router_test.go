package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/simaogato/gstk-backend/internal/adapter/repository/memory"
	"github.com/simaogato/gstk-backend/internal/domain"
	"github.com/simaogato/gstk-backend/internal/observability"
	"github.com/simaogato/gstk-backend/internal/usecase/assetcache"
	"github.com/simaogato/gstk-backend/internal/usecase/calculator"
)

// fakeOrigin serves fixed responses by path and can be switched offline
type fakeOrigin struct {
	mu      sync.Mutex
	offline bool
	assets  map[string]*domain.AssetResponse
	calls   []string
}

func (f *fakeOrigin) Fetch(ctx context.Context, req *domain.AssetRequest) (*domain.AssetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.Method+" "+req.URL.Path)
	if f.offline {
		return nil, errors.New("connection refused")
	}
	if resp, ok := f.assets[req.URL.Path]; ok {
		return resp.Clone(), nil
	}
	if req.Method == http.MethodPost {
		return &domain.AssetResponse{StatusCode: http.StatusCreated, Body: req.Body}, nil
	}
	return &domain.AssetResponse{StatusCode: http.StatusNotFound, Body: []byte("not found")}, nil
}

func (f *fakeOrigin) setOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

func page(contentType, body string) *domain.AssetResponse {
	return &domain.AssetResponse{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{contentType}},
		Body:       []byte(body),
	}
}

type testServer struct {
	handler     http.Handler
	origin      *fakeOrigin
	interceptor *assetcache.Interceptor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	originURL, err := url.Parse("https://gst.example.com")
	require.NoError(t, err)

	origin := &fakeOrigin{assets: map[string]*domain.AssetResponse{
		"/":           page("text/html", "<html>root</html>"),
		"/index.html": page("text/html", "<html>index</html>"),
		"/styles.css": page("text/css", "body{margin:0}"),
	}}

	metrics := observability.NewMetrics()
	interceptor, err := assetcache.NewInterceptor(assetcache.Config{
		Prefix:       assetcache.DefaultPrefix,
		Version:      "v1",
		Manifest:     []string{"/", "/index.html", "/styles.css"},
		RootDocument: assetcache.DefaultRootDocument,
		Origin:       originURL,
	}, memory.NewCacheStorage(), origin, nil, metrics)
	require.NoError(t, err)
	require.NoError(t, interceptor.Install(ctx))
	_, err = interceptor.Activate(ctx)
	require.NoError(t, err)

	service := calculator.NewCalculatorService(language.MustParse("en-IN"), metrics)
	handler := NewRouter(RouterParams{
		Metrics:      metrics,
		TaxHandler:   NewTaxHandler(service, nil),
		AssetHandler: NewAssetHandler(interceptor, origin, originURL, nil),
		RateLimit:    1000,
	})
	return &testServer{handler: handler, origin: origin, interceptor: interceptor}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestTaxEndpoints(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      string
		wantBase  string
		wantTax   string
		wantTotal string
		wantSplit string
	}{
		{
			name:      "exclusive",
			path:      "/api/v1/tax",
			body:      `{"amount": 1000, "rate": 18, "direction": "EXCLUSIVE"}`,
			wantBase:  "1000.00",
			wantTax:   "180.00",
			wantTotal: "1180.00",
			wantSplit: "90.00",
		},
		{
			name:      "inclusive with string values",
			path:      "/api/v1/tax",
			body:      `{"amount": "1180", "rate": "18", "direction": "inclusive"}`,
			wantBase:  "1000.00",
			wantTax:   "180.00",
			wantTotal: "1180.00",
			wantSplit: "90.00",
		},
		{
			name:      "reverse",
			path:      "/api/v1/tax/reverse",
			body:      `{"total": 1070, "rate": 7}`,
			wantBase:  "1000.00",
			wantTax:   "70.00",
			wantTotal: "1070.00",
			wantSplit: "35.00",
		},
		{
			name:      "b2b",
			path:      "/api/v1/tax/b2b",
			body:      `{"amount": 2500, "rate": 12}`,
			wantBase:  "2500.00",
			wantTax:   "300.00",
			wantTotal: "2800.00",
			wantSplit: "150.00",
		},
	}

	srv := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(postJSON(tt.path, tt.body))

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

			var resp calculationResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.ID)
			assert.Equal(t, tt.wantBase, resp.Base)
			assert.Equal(t, tt.wantTax, resp.Tax)
			assert.Equal(t, tt.wantTotal, resp.Total)
			assert.Equal(t, tt.wantSplit, resp.SplitA)
			assert.Equal(t, tt.wantSplit, resp.SplitB)
			assert.True(t, strings.HasPrefix(resp.Formatted.Total, "₹"), resp.Formatted.Total)
		})
	}
}

func TestTaxEndpoints_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      string
		wantCode  int
		wantField string
	}{
		{
			name:      "non numeric amount",
			path:      "/api/v1/tax",
			body:      `{"amount": "abc", "rate": 18, "direction": "EXCLUSIVE"}`,
			wantCode:  http.StatusBadRequest,
			wantField: "amount",
		},
		{
			name:      "missing rate",
			path:      "/api/v1/tax",
			body:      `{"amount": 1000, "direction": "EXCLUSIVE"}`,
			wantCode:  http.StatusBadRequest,
			wantField: "rate",
		},
		{
			name:      "unknown direction",
			path:      "/api/v1/tax",
			body:      `{"amount": 1000, "rate": 18, "direction": "SIDEWAYS"}`,
			wantCode:  http.StatusBadRequest,
			wantField: "direction",
		},
		{
			name:      "negative total",
			path:      "/api/v1/tax/reverse",
			body:      `{"total": -5, "rate": 18}`,
			wantCode:  http.StatusBadRequest,
			wantField: "",
		},
		{
			name:     "malformed json",
			path:     "/api/v1/tax",
			body:     `{"amount": `,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown field",
			path:     "/api/v1/tax/b2b",
			body:     `{"amount": 1, "rate": 1, "category": "food"}`,
			wantCode: http.StatusBadRequest,
		},
	}

	srv := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(postJSON(tt.path, tt.body))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var problem ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tt.wantCode, problem.Status)
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, problem.Field)
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	srv.do(postJSON("/api/v1/tax", `{"amount": 1000, "rate": 18, "direction": "EXCLUSIVE"}`))

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `gstk_http_requests_total{code="200",route="/api/v1/tax"} 1`)
	assert.Contains(t, body, `gstk_tax_calculations_total{direction="EXCLUSIVE",result="ok"} 1`)
}

func TestAssetProxy_CacheFirst(t *testing.T) {
	srv := newTestServer(t)
	srv.origin.setOffline(true)

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/styles.css", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cache", rec.Header().Get(CacheSourceHeader))
	assert.Equal(t, "text/css", rec.Header().Get("Content-Type"))
	assert.Equal(t, "body{margin:0}", rec.Body.String())
}

func TestAssetProxy_OfflineNavigationFallsBack(t *testing.T) {
	srv := newTestServer(t)
	srv.origin.setOffline(true)

	req := httptest.NewRequest(http.MethodGet, "/calculator/b2b?x=1", nil)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	rec := srv.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fallback", rec.Header().Get(CacheSourceHeader))
	assert.Equal(t, "<html>index</html>", rec.Body.String())
}

func TestAssetProxy_OfflineAssetIsBadGateway(t *testing.T) {
	srv := newTestServer(t)
	srv.origin.setOffline(true)

	req := httptest.NewRequest(http.MethodGet, "/app.js", nil)
	req.Header.Set("Sec-Fetch-Mode", "no-cors")
	rec := srv.do(req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "Bad Gateway", problem.Title)
}

func TestAssetProxy_NetworkMissIsWrittenBack(t *testing.T) {
	srv := newTestServer(t)
	srv.origin.mu.Lock()
	srv.origin.assets["/script.js"] = page("text/javascript", "console.log(1)")
	srv.origin.mu.Unlock()

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/script.js", nil))
	assert.Equal(t, "network", rec.Header().Get(CacheSourceHeader))
	srv.interceptor.Wait()

	srv.origin.setOffline(true)
	rec = srv.do(httptest.NewRequest(http.MethodGet, "/script.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cache", rec.Header().Get(CacheSourceHeader))
	assert.Equal(t, "console.log(1)", rec.Body.String())
}

func TestAssetProxy_NonGetPassesThrough(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader("great app")))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, sourcePassthrough, rec.Header().Get(CacheSourceHeader))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "great app", string(body))

	srv.origin.setOffline(true)
	rec = srv.do(httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader("again")))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRequestMode(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		want   domain.RequestMode
	}{
		{name: "explicit navigate", header: map[string]string{"Sec-Fetch-Mode": "navigate"}, want: domain.ModeNavigate},
		{name: "explicit cors", header: map[string]string{"Sec-Fetch-Mode": "CORS"}, want: domain.ModeCORS},
		{name: "html accept", header: map[string]string{"Accept": "text/html,application/xhtml+xml"}, want: domain.ModeNavigate},
		{name: "no hints", header: nil, want: domain.ModeNoCORS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, requestMode(req))
		})
	}
}
