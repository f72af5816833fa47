// Package session defines the collaborator contracts the orchestrator
// consumes. The identity/profile store, the map data sources, and device
// geolocation are external systems; the orchestrator only reads their answers.
package session

import (
	"context"

	"github.com/wayfarer-app/wayfarer/internal/models"
)

// IdentityProvider resolves authentication state once per session.
type IdentityProvider interface {
	GetIdentity(ctx context.Context, token string) (models.Identity, error)
}

// ProfileStore is the external identity/profile API. It may be eventually
// consistent; GetProfile returns nil without error when no record is visible
// yet.
type ProfileStore interface {
	GetProfile(ctx context.Context, identity models.Identity) (*models.Profile, error)
	MarkOnboardingComplete(ctx context.Context, identity models.Identity) error
	ReloadProfile(ctx context.Context, identity models.Identity) (*models.Profile, error)
}

// AtlasSource returns the geocoded event and partner-node collections. The
// two fetches are independent and unordered with respect to each other.
type AtlasSource interface {
	FetchEvents(ctx context.Context) ([]models.Event, error)
	FetchNodes(ctx context.Context) ([]models.Node, error)
}

// Locator requests device geolocation. A permission failure is non-fatal and
// leaves the location unresolved.
type Locator interface {
	RequestLocation(ctx context.Context) (*models.Coordinates, error)
}
