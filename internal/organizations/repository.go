package organizations

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-dues/backend/internal/models"
	"github.com/campus-dues/backend/internal/store"
	"github.com/campus-dues/backend/pkg/apperr"
	"github.com/campus-dues/backend/pkg/canonical"
)

// Attrs are optional organization fields. Empty values never overwrite
// populated ones.
type Attrs struct {
	DisplayName  string
	LogoURL      string
	ContactEmail string
	Metadata     map[string]any
}

// Ref points at an organization by id, by name, or both.
type Ref struct {
	ID   string
	Name string
}

// Empty reports whether the reference carries neither id nor name.
func (r Ref) Empty() bool {
	return r.ID == "" && canonical.Name(r.Name) == ""
}

// Registry owns organization identity. Every implicit creation goes through
// ResolveOrCreate so the one-org-per-canonical-name rule lives here.
type Registry struct {
	orgs   *store.Collection[models.Organization]
	logger *zap.Logger
	now    func() time.Time
}

// NewRegistry creates an organizations registry over b.
func NewRegistry(b store.Backend, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		orgs:   store.NewCollection[models.Organization](b, store.Organizations).WithLogger(logger),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Key returns the canonical dedup key of o, preferring the stored
// canonicalName over the display name.
func Key(o models.Organization) string {
	if o.CanonicalName != "" {
		return canonical.Name(o.CanonicalName)
	}
	return canonical.Name(o.Name)
}

// Older orders duplicates: the earliest created record survives, ties broken by id.
func Older(a, b models.Organization) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		if a.CreatedAt.IsZero() {
			return false
		}
		if b.CreatedAt.IsZero() {
			return true
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Merge fills empty fields of dst from src. It reports whether dst changed.
func Merge(dst *models.Organization, src models.Organization) bool {
	return mergeAttrs(dst, Attrs{
		DisplayName:  src.DisplayName,
		LogoURL:      src.LogoURL,
		ContactEmail: src.ContactEmail,
		Metadata:     src.Metadata,
	})
}

func mergeAttrs(dst *models.Organization, a Attrs) bool {
	changed := false
	fill := func(field *string, v string) {
		if *field == "" && v != "" {
			*field = v
			changed = true
		}
	}
	fill(&dst.DisplayName, a.DisplayName)
	fill(&dst.LogoURL, a.LogoURL)
	fill(&dst.ContactEmail, a.ContactEmail)
	for k, v := range a.Metadata {
		if dst.Metadata == nil {
			dst.Metadata = make(map[string]any, len(a.Metadata))
		}
		if _, ok := dst.Metadata[k]; !ok {
			dst.Metadata[k] = v
			changed = true
		}
	}
	return changed
}

// UpsertByName returns the organization whose canonical name matches name,
// creating it when none exists. Attrs only fill fields that are still empty.
func (r *Registry) UpsertByName(ctx context.Context, name string, attrs Attrs) (models.Organization, error) {
	key := canonical.Name(name)
	if key == "" {
		return models.Organization{}, apperr.Validation("organization name is required")
	}
	now := r.now()
	org, found, err := r.findByKey(ctx, key)
	if err != nil {
		return models.Organization{}, err
	}
	if !found {
		org = models.Organization{
			ID:            uuid.NewString(),
			Name:          strings.Join(strings.Fields(name), " "),
			CanonicalName: key,
			CreatedAt:     now,
		}
	}
	if org.CanonicalName == "" {
		org.CanonicalName = key
	}
	mergeAttrs(&org, attrs)
	org.UpdatedAt = now
	if err := r.orgs.Upsert(ctx, org); err != nil {
		return models.Organization{}, err
	}
	if !found {
		r.logger.Info("organization created", zap.String("id", org.ID), zap.String("canonical_name", key))
	}
	return org, nil
}

// ResolveOrCreate turns ref into a concrete organization. A known id wins.
// An unknown id with a name falls through to UpsertByName; an unknown id
// without a name is kept as-is so legacy references are not dropped.
func (r *Registry) ResolveOrCreate(ctx context.Context, ref Ref) (models.Organization, error) {
	if ref.ID != "" {
		org, err := r.orgs.Get(ctx, ref.ID)
		if err == nil {
			return org, nil
		}
		if !store.IsNotFound(err) {
			return models.Organization{}, err
		}
		if canonical.Name(ref.Name) == "" {
			r.logger.Debug("organization id not in registry; keeping reference", zap.String("id", ref.ID))
			return models.Organization{ID: ref.ID}, nil
		}
	}
	if canonical.Name(ref.Name) == "" {
		return models.Organization{}, apperr.Validation("organization is required")
	}
	return r.UpsertByName(ctx, ref.Name, Attrs{})
}

// Lookup resolves ref without creating anything. found is false when neither
// the id nor the canonical name matches a stored organization.
func (r *Registry) Lookup(ctx context.Context, ref Ref) (org models.Organization, found bool, err error) {
	if ref.ID != "" {
		org, err = r.orgs.Get(ctx, ref.ID)
		if err == nil {
			return org, true, nil
		}
		if !store.IsNotFound(err) {
			return models.Organization{}, false, err
		}
	}
	if key := canonical.Name(ref.Name); key != "" {
		return r.findByKey(ctx, key)
	}
	return models.Organization{}, false, nil
}

// ListAll returns every organization, merging records that share a
// canonical name into the oldest one.
func (r *Registry) ListAll(ctx context.Context) ([]models.Organization, error) {
	all, err := r.orgs.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	return Dedupe(all), nil
}

// Dedupe collapses organizations sharing a canonical name. The survivor of
// each group is the oldest record, with empty fields filled from the others.
// The result is sorted by canonical name.
func Dedupe(all []models.Organization) []models.Organization {
	groups := make(map[string][]models.Organization)
	var keys []string
	for _, o := range all {
		k := Key(o)
		if k == "" {
			k = "\x00" + o.ID
		}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], o)
	}
	sort.Strings(keys)
	out := make([]models.Organization, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		sort.SliceStable(g, func(i, j int) bool { return Older(g[i], g[j]) })
		survivor := g[0]
		for _, dup := range g[1:] {
			Merge(&survivor, dup)
		}
		if survivor.CanonicalName == "" {
			survivor.CanonicalName = Key(survivor)
		}
		out = append(out, survivor)
	}
	return out
}

// GetByID returns the organization with id.
func (r *Registry) GetByID(ctx context.Context, id string) (models.Organization, error) {
	org, err := r.orgs.Get(ctx, id)
	if store.IsNotFound(err) {
		return org, apperr.NotFound("organization")
	}
	return org, err
}

// FindByName returns the organization whose canonical name matches name.
func (r *Registry) FindByName(ctx context.Context, name string) (models.Organization, error) {
	org, found, err := r.findByKey(ctx, canonical.Name(name))
	if err != nil {
		return org, err
	}
	if !found {
		return org, apperr.NotFound("organization")
	}
	return org, nil
}

// Delete removes the organization. Events and payments referencing it are
// left dangling.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return r.orgs.Delete(ctx, id)
}

func (r *Registry) findByKey(ctx context.Context, key string) (models.Organization, bool, error) {
	if key == "" {
		return models.Organization{}, false, nil
	}
	matches, err := r.orgs.List(ctx, func(o models.Organization) bool { return Key(o) == key })
	if err != nil {
		return models.Organization{}, false, err
	}
	if len(matches) == 0 {
		return models.Organization{}, false, nil
	}
	sort.SliceStable(matches, func(i, j int) bool { return Older(matches[i], matches[j]) })
	return matches[0], true, nil
}
