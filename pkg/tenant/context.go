// Package tenant carries the organization that scopes every inventory,
// insight and alert query. An organization is the tenant of this system.
package tenant

import (
	"context"
	"errors"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const organizationIDKey contextKey = "organization_id"

var (
	// ErrNoOrganizationInContext is returned when the organization is missing
	ErrNoOrganizationInContext = errors.New("no organization in context")
)

// WithOrganization adds the organization ID to the context.
// Called by the auth middleware after validating the access token.
func WithOrganization(ctx context.Context, organizationID string) context.Context {
	return context.WithValue(ctx, organizationIDKey, organizationID)
}

// OrganizationID extracts the organization ID from context
func OrganizationID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(organizationIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoOrganizationInContext
	}
	return id, nil
}

// MustOrganizationID panics if no organization is present.
// Use only where a missing organization is a programming error.
func MustOrganizationID(ctx context.Context) string {
	id, err := OrganizationID(ctx)
	if err != nil {
		panic("organization ID not found in context")
	}
	return id
}
