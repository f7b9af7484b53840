package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/simaogato/gstk-backend/internal/domain"
	"github.com/simaogato/gstk-backend/internal/usecase/assetcache"
)

// CacheSourceHeader tells the client where an asset response came from
const CacheSourceHeader = "X-Cache-Source"

const sourcePassthrough = "passthrough"

// AssetInterceptor answers asset requests from the cache or the network
type AssetInterceptor interface {
	Handle(ctx context.Context, req *domain.AssetRequest) (*domain.AssetResponse, assetcache.Source, error)
}

// AssetHandler proxies page and asset requests to the origin through the interceptor
type AssetHandler struct {
	interceptor AssetInterceptor
	fetcher     domain.Fetcher
	origin      *url.URL
	logger      *slog.Logger
}

// NewAssetHandler creates a new AssetHandler
func NewAssetHandler(interceptor AssetInterceptor, fetcher domain.Fetcher, origin *url.URL, logger *slog.Logger) *AssetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetHandler{
		interceptor: interceptor,
		fetcher:     fetcher,
		origin:      origin,
		logger:      logger,
	}
}

// ServeHTTP answers one proxied request
// Logic:
//  1. Build an AssetRequest for the origin URL with the browser's fetch mode
//  2. Let the interceptor answer; requests it declines go straight to the network
//  3. Failures become a 502 problem response
func (h *AssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := h.assetRequest(r)
	if err != nil {
		Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}

	resp, source, err := h.interceptor.Handle(r.Context(), req)
	if errors.Is(err, domain.ErrNotIntercepted) {
		resp, err = h.fetcher.Fetch(r.Context(), req)
		source = sourcePassthrough
	}
	if err != nil {
		h.logger.Warn("asset request failed",
			slog.String("method", req.Method),
			slog.String("url", req.URL.String()),
			slog.Any("error", err),
		)
		if errors.Is(err, domain.ErrOffline) {
			RespondError(w, err)
			return
		}
		Problem(w, http.StatusBadGateway, "Bad Gateway", "origin unavailable")
		return
	}

	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.Header().Set(CacheSourceHeader, string(source))
	w.WriteHeader(resp.StatusCode)
	if r.Method != http.MethodHead {
		_, _ = w.Write(resp.Body)
	}
}

func (h *AssetHandler) assetRequest(r *http.Request) (*domain.AssetRequest, error) {
	req, err := domain.NewAssetRequest(h.origin, r.URL.RequestURI(), requestMode(r))
	if err != nil {
		return nil, err
	}
	req.Method = r.Method
	req.Header = r.Header.Clone()
	// let the transport negotiate compression so stored bodies are plain
	req.Header.Del("Accept-Encoding")

	if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		req.Body = body
	}
	return req, nil
}

// requestMode reads Sec-Fetch-Mode; clients that do not send it are treated
// as navigating when they ask for HTML
func requestMode(r *http.Request) domain.RequestMode {
	if mode := r.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return domain.RequestMode(strings.ToLower(mode))
	}
	if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html") {
		return domain.ModeNavigate
	}
	return domain.ModeNoCORS
}
