// Package adapters contains the storefront connectors that turn a product
// page into a raw model.ScrapedListing.
//
// Adapters are generic: HTMLAdapter reads the product metadata storefronts
// publish for search engines (JSON-LD, schema.org microdata, OpenGraph), and
// ExtractorAdapter delegates extraction to an external sidecar. Neither
// normalizes anything; that is the textnorm package's job.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"smartshop/price-service/internal/model"
)

// Adapter fetches the listing behind one product link.
type Adapter interface {
	FetchListing(ctx context.Context, link string) (*model.ScrapedListing, error)
}

var (
	// ErrNotFound means the storefront no longer has the listing.
	ErrNotFound = errors.New("listing not found")
	// ErrBlocked means the storefront refused or throttled the request.
	ErrBlocked = errors.New("storefront refused request")
	// ErrNoListing means the page was fetched but carried no product data.
	ErrNoListing = errors.New("no product data on page")
)

const (
	defaultTimeout   = 20 * time.Second
	defaultUserAgent = "smartshop-price-service/1.0"
	maxBodyBytes     = 8 << 20
)

// HTTPOptions configures the HTTP client shared by the adapters.
type HTTPOptions struct {
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
}

func (o HTTPOptions) client() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	to := o.Timeout
	if to <= 0 {
		to = defaultTimeout
	}
	return &http.Client{Timeout: to}
}

func (o HTTPOptions) userAgent() string {
	if ua := strings.TrimSpace(o.UserAgent); ua != "" {
		return ua
	}
	return defaultUserAgent
}

// readResponse classifies the status code and returns the body.
func readResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("http status %d: %w", resp.StatusCode, ErrNotFound)
	case resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fmt.Errorf("http status %d: %w", resp.StatusCode, ErrBlocked)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return body, nil
}
