// Package officers stores one free-form officer profile per organization.
package officers

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campus-dues/backend/internal/models"
	"github.com/campus-dues/backend/internal/organizations"
	"github.com/campus-dues/backend/internal/store"
	"github.com/campus-dues/backend/pkg/apperr"
	"github.com/campus-dues/backend/pkg/canonical"
)

// Registry manages officer profiles. A profile is keyed by the org id when
// the organization is known, else by the org's canonical name.
type Registry struct {
	profiles *store.Collection[models.OfficerProfile]
	orgs     *organizations.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// NewRegistry creates an officer profile registry.
func NewRegistry(b store.Backend, orgs *organizations.Registry, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		profiles: store.NewCollection[models.OfficerProfile](b, store.OfficerProfiles).WithLogger(logger),
		orgs:     orgs,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Upsert merges profile into the stored profile for ref. Fields the update
// omits, or sends empty, keep their stored values. A profile previously
// stored under the canonical name is moved to the org id key.
func (r *Registry) Upsert(ctx context.Context, ref organizations.Ref, profile map[string]any) (models.OfficerProfile, error) {
	if ref.Empty() {
		return models.OfficerProfile{}, apperr.Validation("org or orgId is required")
	}
	org, err := r.orgs.ResolveOrCreate(ctx, ref)
	if err != nil {
		return models.OfficerProfile{}, err
	}
	key := org.ID
	label := org.Label()
	if label == "" {
		label = strings.Join(strings.Fields(ref.Name), " ")
	}

	current, err := r.profiles.Get(ctx, key)
	if err != nil && !store.IsNotFound(err) {
		return models.OfficerProfile{}, err
	}
	if err != nil {
		current = models.OfficerProfile{Key: key}
	}

	var legacy *models.OfficerProfile
	if cn := canonical.Name(firstNonEmpty(label, ref.Name)); cn != "" && cn != key {
		old, err := r.profiles.Get(ctx, cn)
		switch {
		case err == nil:
			legacy = &old
			mergeProfile(&current, old.Profile)
		case !store.IsNotFound(err):
			return models.OfficerProfile{}, err
		}
	}

	mergeProfile(&current, profile)
	current.Key = key
	current.OrgID = org.ID
	current.Org = label
	current.UpdatedAt = r.now()
	if err := r.profiles.Upsert(ctx, current); err != nil {
		return models.OfficerProfile{}, err
	}
	if legacy != nil {
		if err := r.profiles.Delete(ctx, legacy.Key); err != nil {
			r.logger.Warn("remove re-keyed officer profile", zap.String("key", legacy.Key), zap.Error(err))
		}
	}
	return current, nil
}

// List returns profiles for an org id (authoritative when given) or org
// name, or all profiles when both are empty.
func (r *Registry) List(ctx context.Context, orgID, orgName string) ([]models.OfficerProfile, error) {
	var match func(models.OfficerProfile) bool
	switch key := canonical.Name(orgName); {
	case orgID != "":
		match = func(p models.OfficerProfile) bool { return p.OrgID == orgID || p.Key == orgID }
	case key != "":
		match = func(p models.OfficerProfile) bool { return canonical.Name(p.Org) == key || p.Key == key }
	}
	list, err := r.profiles.List(ctx, match)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list, nil
}

func mergeProfile(dst *models.OfficerProfile, update map[string]any) {
	for k, v := range update {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		if dst.Profile == nil {
			dst.Profile = make(map[string]any, len(update))
		}
		dst.Profile[k] = v
	}
	if dst.Profile == nil {
		dst.Profile = map[string]any{}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
