// Package identity wraps the external identity/profile API for Wayfarer.
//
// It provides identity resolution and profile reads/writes, and detects
// session invalidation centrally so the orchestrator can handle it exactly
// once. The store may be eventually consistent: a profile that was just
// created can be invisible for a few seconds, which the orchestrator's
// bounded polling absorbs.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wayfarer-app/wayfarer/internal/models"
)

// Constants for identity client configuration
const (
	// DefaultBaseURL is the default identity API endpoint.
	DefaultBaseURL = "https://id.wayfarer.app"
	// DefaultRequestTimeout bounds every identity API call.
	DefaultRequestTimeout = 10 * time.Second
)

// Opts holds configuration options for the identity client.
type Opts struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Option defines a configuration option for the identity client.
type Option func(*Opts)

// WithBaseURL sets the identity API base URL.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client talks to the external identity/profile store.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an identity client based on provided options.
func NewClient(opts ...Option) *Client {
	cfg := Opts{BaseURL: DefaultBaseURL, Timeout: DefaultRequestTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	slog.Debug("Creating identity client", "baseURL", cfg.BaseURL)
	return &Client{baseURL: cfg.BaseURL, http: httpClient}
}

// identityResponse is the wire shape of the identity endpoint.
type identityResponse struct {
	Authenticated bool `json:"authenticated"`
}

// GetIdentity resolves whether the token is authenticated. This is called
// once per session; the result is immutable afterward.
func (c *Client) GetIdentity(ctx context.Context, token string) (models.Identity, error) {
	var body identityResponse
	err := c.do(ctx, http.MethodGet, "/v1/identity", token, nil, &body)
	if err != nil {
		slog.Error("Identity GetIdentity failed", "error", err)
		return models.Identity{}, err
	}
	slog.Debug("Identity GetIdentity resolved", "authenticated", body.Authenticated)
	return models.Identity{Token: token, Authenticated: body.Authenticated}, nil
}

// GetProfile fetches the profile record for the identity. A 404 is not an
// error: it means "not yet observed", which the caller's polling absorbs.
func (c *Client) GetProfile(ctx context.Context, identity models.Identity) (*models.Profile, error) {
	var profile models.Profile
	err := c.do(ctx, http.MethodGet, "/v1/profile", identity.Token, nil, &profile)
	if err == errNotFound {
		slog.Debug("Identity GetProfile: no record yet")
		return nil, nil
	}
	if err != nil {
		slog.Error("Identity GetProfile failed", "error", err)
		return nil, err
	}
	return &profile, nil
}

// MarkOnboardingComplete persists the onboarding-completion marker.
func (c *Client) MarkOnboardingComplete(ctx context.Context, identity models.Identity) error {
	payload := map[string]bool{"onboarding_completed": true}
	if err := c.do(ctx, http.MethodPatch, "/v1/profile", identity.Token, payload, nil); err != nil {
		slog.Error("Identity MarkOnboardingComplete failed", "error", err)
		return fmt.Errorf("failed to mark onboarding complete: %w", err)
	}
	slog.Info("Identity onboarding completion marker persisted")
	return nil
}

// ReloadProfile refreshes the profile after a write. Unlike GetProfile, an
// absent record here is an error: the write path expects one to exist.
func (c *Client) ReloadProfile(ctx context.Context, identity models.Identity) (*models.Profile, error) {
	profile, err := c.GetProfile(ctx, identity)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, models.ErrProfileUnavailable
	}
	return profile, nil
}

// errNotFound is an internal sentinel for 404 responses.
var errNotFound = fmt.Errorf("not found")

// do performs a JSON request. A 401 is reported as models.ErrSessionInvalid
// so all callers share one invalidation signal.
func (c *Client) do(ctx context.Context, method, path, token string, reqBody, respBody interface{}) error {
	var reader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: identity rejected by %s %s", models.ErrSessionInvalid, method, path)
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode >= 400:
		return fmt.Errorf("identity API returned status %d for %s %s", resp.StatusCode, method, path)
	}

	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
