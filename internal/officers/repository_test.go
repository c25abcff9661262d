package officers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-dues/backend/internal/models"
	"github.com/campus-dues/backend/internal/organizations"
	"github.com/campus-dues/backend/internal/store"
	"github.com/campus-dues/backend/pkg/apperr"
)

func newTestRegistry(t *testing.T) (*Registry, *organizations.Registry, store.Backend) {
	t.Helper()
	b := store.NewFileBackend(filepath.Join(t.TempDir(), "db.json"), nil)
	orgs := organizations.NewRegistry(b, nil)
	return NewRegistry(b, orgs, nil), orgs, b
}

func TestUpsertMergesPartialUpdates(t *testing.T) {
	r, orgs, _ := newTestRegistry(t)
	ctx := context.Background()

	first, err := r.Upsert(ctx, organizations.Ref{Name: "JIECEP"}, map[string]any{
		"name": "Ana Cruz", "designation": "Treasurer", "photo": "/uploads/ana.png",
	})
	require.NoError(t, err)

	org, err := orgs.FindByName(ctx, "jiecep")
	require.NoError(t, err)
	assert.Equal(t, org.ID, first.Key)
	assert.Equal(t, org.ID, first.OrgID)
	assert.Equal(t, "JIECEP", first.Org)

	second, err := r.Upsert(ctx, organizations.Ref{ID: org.ID}, map[string]any{
		"designation": "Auditor", "photo": "", "year": "3rd Year",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name":        "Ana Cruz",
		"designation": "Auditor",
		"photo":       "/uploads/ana.png",
		"year":        "3rd Year",
	}, second.Profile)

	list, err := r.List(ctx, "", "  jiecep ")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.Profile, list[0].Profile)
}

func TestUpsertRekeysLegacyCanonicalProfile(t *testing.T) {
	r, _, b := newTestRegistry(t)
	ctx := context.Background()
	profiles := store.NewCollection[models.OfficerProfile](b, store.OfficerProfiles)
	require.NoError(t, profiles.Upsert(ctx, models.OfficerProfile{
		Key: "math society", Org: "Math Society", Profile: map[string]any{"name": "Old Officer"},
	}))

	p, err := r.Upsert(ctx, organizations.Ref{Name: "Math Society"}, map[string]any{"designation": "President"})
	require.NoError(t, err)
	assert.NotEqual(t, "math society", p.Key)
	assert.Equal(t, "Old Officer", p.Profile["name"])
	assert.Equal(t, "President", p.Profile["designation"])

	all, err := r.List(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, p.Key, all[0].Key)
}

func TestUpsertRequiresOrg(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	_, err := r.Upsert(context.Background(), organizations.Ref{}, map[string]any{"name": "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListByOrgID(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	a, err := r.Upsert(ctx, organizations.Ref{Name: "Alpha"}, map[string]any{"name": "A"})
	require.NoError(t, err)
	_, err = r.Upsert(ctx, organizations.Ref{Name: "Beta"}, map[string]any{"name": "B"})
	require.NoError(t, err)

	list, err := r.List(ctx, a.OrgID, "Beta")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].Profile["name"])
}
