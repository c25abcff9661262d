// Package users records the last known identity of each signed-in account.
package users

import (
	"context"
	"strings"
	"time"

	"github.com/campus-dues/backend/internal/auth"
	"github.com/campus-dues/backend/internal/models"
	"github.com/campus-dues/backend/internal/store"
	"github.com/campus-dues/backend/pkg/apperr"
)

// Repository handles user persistence.
type Repository struct {
	users *store.Collection[models.User]
	now   func() time.Time
}

// NewRepository creates a users repository.
func NewRepository(b store.Backend) *Repository {
	return &Repository{
		users: store.NewCollection[models.User](b, store.Users),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Touch upserts the user for id, refreshing lastSeenAt. Empty identity
// fields do not overwrite stored ones.
func (r *Repository) Touch(ctx context.Context, id auth.Identity) (models.User, error) {
	if strings.TrimSpace(id.UID) == "" {
		return models.User{}, apperr.Validation("no authenticated identity")
	}
	now := r.now()
	u, err := r.users.Get(ctx, id.UID)
	if err != nil {
		if !store.IsNotFound(err) {
			return models.User{}, err
		}
		u = models.User{UID: id.UID, CreatedAt: now}
	}
	if id.Email != "" {
		u.Email = strings.TrimSpace(id.Email)
	}
	if id.Name != "" {
		u.Name = strings.TrimSpace(id.Name)
	}
	if id.Role != "" {
		u.Role = id.Role
	}
	u.LastSeenAt = now
	if err := r.users.Upsert(ctx, u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// GetByUID returns the user with uid.
func (r *Repository) GetByUID(ctx context.Context, uid string) (models.User, error) {
	u, err := r.users.Get(ctx, uid)
	if store.IsNotFound(err) {
		return u, apperr.NotFound("user")
	}
	return u, err
}
