package users

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-dues/backend/internal/auth"
	"github.com/campus-dues/backend/internal/store"
	"github.com/campus-dues/backend/pkg/apperr"
)

func TestTouchKeepsCreatedAtAndFields(t *testing.T) {
	repo := NewRepository(store.NewFileBackend(filepath.Join(t.TempDir(), "db.json"), nil))
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return t0 }

	_, err := repo.Touch(ctx, auth.Identity{UID: "u1", Email: "ana@campus.edu", Name: "Ana", Role: "officer"})
	require.NoError(t, err)

	t1 := t0.Add(48 * time.Hour)
	repo.now = func() time.Time { return t1 }
	u, err := repo.Touch(ctx, auth.Identity{UID: "u1"})
	require.NoError(t, err)

	assert.True(t, t0.Equal(u.CreatedAt))
	assert.True(t, t1.Equal(u.LastSeenAt))
	assert.Equal(t, "ana@campus.edu", u.Email)
	assert.Equal(t, "officer", u.Role)

	got, err := repo.GetByUID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
}

func TestTouchRequiresUID(t *testing.T) {
	repo := NewRepository(store.NewFileBackend(filepath.Join(t.TempDir(), "db.json"), nil))
	_, err := repo.Touch(context.Background(), auth.Identity{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = repo.GetByUID(context.Background(), "nobody")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
