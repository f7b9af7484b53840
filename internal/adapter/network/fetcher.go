// Package network fetches assets from the origin server over HTTP.
package network

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/simaogato/gstk-backend/internal/domain"
)

// hop-by-hop headers are meaningful only for a single transport connection
var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// fetcher implements domain.Fetcher
type fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher. A nil client gets a default one with no
// timeout; requests end only when the caller's context does.
func NewFetcher(client *http.Client) domain.Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &fetcher{client: client}
}

// Fetch performs the request and reads the whole body.
// Error statuses come back as responses; only transport failures are errors.
func (f *fetcher) Fetch(ctx context.Context, req *domain.AssetRequest) (*domain.AssetResponse, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", req.URL, err)
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
		stripHopByHop(httpReq.Header)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", req.URL, err)
	}

	header := resp.Header.Clone()
	stripHopByHop(header)

	return &domain.AssetResponse{
		StatusCode: resp.StatusCode,
		Header:     header,
		Body:       payload,
	}, nil
}

func stripHopByHop(h http.Header) {
	for _, name := range hopByHop {
		h.Del(name)
	}
}
