// Package atlas wraps the geocoded-events and partner-node data sources.
//
// The two collections load independently and in no guaranteed order. Fetch
// errors are swallowed at this boundary and degrade the collection to empty
// rather than blocking routing.
package atlas

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wayfarer-app/wayfarer/internal/models"
)

// Constants for atlas client configuration
const (
	// DefaultBaseURL is the default map-data API endpoint.
	DefaultBaseURL = "https://atlas.wayfarer.app"
	// DefaultRequestTimeout bounds every map-data call.
	DefaultRequestTimeout = 10 * time.Second
)

// Opts holds configuration options for the atlas client.
type Opts struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Option defines a configuration option for the atlas client.
type Option func(*Opts)

// WithBaseURL sets the map-data API base URL.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client talks to the events and partner-node sources.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an atlas client based on provided options.
func NewClient(opts ...Option) *Client {
	cfg := Opts{BaseURL: DefaultBaseURL, Timeout: DefaultRequestTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	slog.Debug("Creating atlas client", "baseURL", cfg.BaseURL)
	return &Client{baseURL: cfg.BaseURL, http: httpClient}
}

// FetchEvents returns the geocoded event collection. Errors degrade to an
// empty collection; the error is returned for logging but callers proceed.
func (c *Client) FetchEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	if err := c.get(ctx, "/v1/events", &events); err != nil {
		slog.Error("Atlas FetchEvents failed, degrading to empty", "error", err)
		return nil, err
	}
	slog.Debug("Atlas FetchEvents succeeded", "count", len(events))
	return events, nil
}

// FetchNodes returns the partner-node collection. Same degradation policy as
// FetchEvents.
func (c *Client) FetchNodes(ctx context.Context) ([]models.Node, error) {
	var nodes []models.Node
	if err := c.get(ctx, "/v1/nodes", &nodes); err != nil {
		slog.Error("Atlas FetchNodes failed, degrading to empty", "error", err)
		return nil, err
	}
	slog.Debug("Atlas FetchNodes succeeded", "count", len(nodes))
	return nodes, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("atlas request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("atlas API returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
