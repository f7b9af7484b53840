package domain

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RequestMode mirrors the fetch mode a browser reports in Sec-Fetch-Mode
type RequestMode string

const (
	ModeNavigate   RequestMode = "navigate"
	ModeSameOrigin RequestMode = "same-origin"
	ModeNoCORS     RequestMode = "no-cors"
	ModeCORS       RequestMode = "cors"
)

var (
	// ErrNotIntercepted means the request must go to the network untouched
	ErrNotIntercepted = errors.New("request not intercepted")
	// ErrOffline means neither the cache nor the network could answer
	ErrOffline = errors.New("no cached response and network unavailable")
)

// AssetRequest is an intercepted request for a page or static asset
type AssetRequest struct {
	Method string
	URL    *url.URL // always absolute
	Mode   RequestMode
	Header http.Header
	Body   []byte
}

// NewAssetRequest builds a GET request for rawURL resolved against origin
func NewAssetRequest(origin *url.URL, rawURL string, mode RequestMode) (*AssetRequest, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	target := ref
	if origin != nil {
		target = origin.ResolveReference(ref)
	}
	if !target.IsAbs() {
		return nil, errors.New("asset request URL must be absolute")
	}
	return &AssetRequest{
		Method: http.MethodGet,
		URL:    target,
		Mode:   mode,
		Header: make(http.Header),
	}, nil
}

// Key is the request identity used inside a cache store: method plus URL
func (r *AssetRequest) Key() string {
	return RequestKey(r.Method, r.URL)
}

// RequestKey composes a cache key without building a full request
func RequestKey(method string, u *url.URL) string {
	return strings.ToUpper(method) + " " + u.String()
}

// IsNavigation reports whether the request loads a full page
func (r *AssetRequest) IsNavigation() bool {
	return r.Mode == ModeNavigate
}

// SameOrigin reports whether the request targets origin's scheme and host
func (r *AssetRequest) SameOrigin(origin *url.URL) bool {
	if origin == nil || r.URL == nil {
		return false
	}
	return strings.EqualFold(r.URL.Scheme, origin.Scheme) && strings.EqualFold(r.URL.Host, origin.Host)
}

// AssetResponse is a fully buffered response, as captured at fetch time
type AssetResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the response may be written to a cache store
func (r *AssetResponse) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Clone deep-copies the response so stored and returned copies never alias
func (r *AssetResponse) Clone() *AssetResponse {
	if r == nil {
		return nil
	}
	body := make([]byte, len(r.Body))
	copy(body, r.Body)
	return &AssetResponse{
		StatusCode: r.StatusCode,
		Header:     r.Header.Clone(),
		Body:       body,
	}
}

// CachedAsset is one entry of a named cache store
type CachedAsset struct {
	Key      string
	Response *AssetResponse
	StoredAt time.Time
}
