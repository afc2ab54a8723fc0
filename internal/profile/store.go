// Package profile persists the per-user profile document written at sign-up.
package profile

import (
	"context"
	"errors"

	"looplib/internal/models"
)

var ErrNotFound = errors.New("profile: not found")

type Store interface {
	Get(ctx context.Context, uid string) (*models.Profile, error)
	// Put creates or replaces the profile keyed by p.UID.
	Put(ctx context.Context, p *models.Profile) error
}
