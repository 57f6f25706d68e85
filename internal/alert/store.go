package alert

import "context"

// Store is the persistence interface for generated alerts.
type Store interface {
	Create(ctx context.Context, a *Alert) error
	List(ctx context.Context, userID, alertType string) ([]*Alert, error)
}

// ProfileStore supplies optional personalization context.
type ProfileStore interface {
	Profile(ctx context.Context, userID string) (*Profile, bool, error)
}
