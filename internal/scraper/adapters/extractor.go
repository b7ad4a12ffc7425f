package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"smartshop/price-service/internal/model"
)

// ExtractorAdapter asks an extraction sidecar to render and read a product
// page. The sidecar exposes:
//
//	POST {base}/extract  {"url": "...", "store": "..."}
//	  -> {"found": true, "listing": {...}} or a bare listing object
type ExtractorAdapter struct {
	endpoint  string
	storeName string
	client    *http.Client
	userAgent string
}

// NewExtractorAdapter validates baseURL and returns an adapter for storeName.
func NewExtractorAdapter(baseURL, storeName string, opts HTTPOptions) (*ExtractorAdapter, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return nil, errors.New("extractor base URL is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid extractor base URL: %w", err)
	}
	return &ExtractorAdapter{
		endpoint:  strings.TrimRight(base, "/") + "/extract",
		storeName: storeName,
		client:    opts.client(),
		userAgent: opts.userAgent(),
	}, nil
}

type extractRequest struct {
	URL   string `json:"url"`
	Store string `json:"store"`
}

type extractResponse struct {
	Found   *bool                 `json:"found"`
	Listing *model.ScrapedListing `json:"listing"`
}

// FetchListing sends link to the sidecar.
func (a *ExtractorAdapter) FetchListing(ctx context.Context, link string) (*model.ScrapedListing, error) {
	payload, err := json.Marshal(extractRequest{URL: link, Store: a.storeName})
	if err != nil {
		return nil, fmt.Errorf("marshal extract request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extractor request: %w", err)
	}
	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	l, err := parseExtractResponse(body)
	if err != nil {
		return nil, err
	}
	if l.ProductLink == "" {
		l.ProductLink = link
	}
	if l.StoreName == "" {
		l.StoreName = a.storeName
	}
	return l, nil
}

// parseExtractResponse accepts both the wrapped and the bare payload.
func parseExtractResponse(body []byte) (*model.ScrapedListing, error) {
	var wrapped extractResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("extract payload parse: %w", err)
	}
	if wrapped.Found != nil && !*wrapped.Found {
		return nil, ErrNotFound
	}
	if wrapped.Listing != nil {
		return wrapped.Listing, nil
	}

	var bare model.ScrapedListing
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("extract payload parse: %w", err)
	}
	if bare.Title == "" && bare.Price == "" {
		return nil, ErrNoListing
	}
	return &bare, nil
}
