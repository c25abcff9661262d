// Package migrate reconciles the local JSON store into the configured cloud
// store: it deduplicates organizations by canonical name and backfills
// orgId/eventId on legacy events and payments. Runs are safe to repeat.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-dues/backend/internal/events"
	"github.com/campus-dues/backend/internal/models"
	"github.com/campus-dues/backend/internal/organizations"
	"github.com/campus-dues/backend/internal/store"
	"github.com/campus-dues/backend/pkg/canonical"
)

// Options control a run.
type Options struct {
	// DryRun plans everything in memory and writes nothing.
	DryRun bool
	// Dedupe merges organizations sharing a canonical name into the oldest
	// one, rewrites references and drops the rest.
	Dedupe bool
	// NormalizeOrgNames rewrites each event's display org to its
	// organization's display name.
	NormalizeOrgNames bool
	// NoBackup skips the timestamped copy of the local file.
	NoBackup bool
}

type actionKind int

const (
	actCreate actionKind = iota
	actUpdate
	actReuse
	actRemove
)

type action struct {
	collection string
	id         string
	kind       actionKind
	doc        store.Document
}

// Plan is the set of writes a run will perform.
type Plan struct {
	target []action
	local  []action
	report *Report
}

// Migrator runs the reconciliation from a local file into cloud. With a nil
// cloud the local file itself is the target.
type Migrator struct {
	local  *store.FileBackend
	cloud  store.Backend
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// New creates a migrator.
func New(local *store.FileBackend, cloud store.Backend, opts Options, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{
		local:  local,
		cloud:  cloud,
		opts:   opts,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *Migrator) target() store.Backend {
	if m.cloud != nil {
		return m.cloud
	}
	return m.local
}

// Run plans and, unless DryRun is set, applies the migration.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	plan, err := m.Plan(ctx)
	if err != nil {
		return nil, err
	}
	if m.opts.DryRun {
		return plan.report, nil
	}
	return m.Apply(ctx, plan)
}

type snapshot struct {
	orgs     []models.Organization
	events   []models.Event
	payments []models.Payment
	profiles []models.OfficerProfile
	users    []models.User
}

func loadSnapshot(ctx context.Context, b store.Backend) (snapshot, error) {
	var s snapshot
	var err error
	if s.orgs, err = store.NewCollection[models.Organization](b, store.Organizations).List(ctx, nil); err != nil {
		return s, fmt.Errorf("load organizations: %w", err)
	}
	if s.events, err = store.NewCollection[models.Event](b, store.Events).List(ctx, nil); err != nil {
		return s, fmt.Errorf("load events: %w", err)
	}
	if s.payments, err = store.NewCollection[models.Payment](b, store.Payments).List(ctx, nil); err != nil {
		return s, fmt.Errorf("load payments: %w", err)
	}
	if s.profiles, err = store.NewCollection[models.OfficerProfile](b, store.OfficerProfiles).List(ctx, nil); err != nil {
		return s, fmt.Errorf("load officer profiles: %w", err)
	}
	if s.users, err = store.NewCollection[models.User](b, store.Users).List(ctx, nil); err != nil {
		return s, fmt.Errorf("load users: %w", err)
	}
	return s, nil
}

// targetIDs returns the ids present in each collection of the target.
func (m *Migrator) targetIDs(ctx context.Context) (map[string]map[string]bool, error) {
	out := make(map[string]map[string]bool, len(store.AllCollections))
	for _, coll := range store.AllCollections {
		docs, err := m.target().List(ctx, coll)
		if err != nil {
			return nil, fmt.Errorf("list %s on %s: %w", coll, m.target().Name(), err)
		}
		ids := make(map[string]bool, len(docs))
		for _, d := range docs {
			ids[d.ID] = true
		}
		out[coll] = ids
	}
	return out, nil
}

// Plan computes every write in memory. Nothing is written.
func (m *Migrator) Plan(ctx context.Context) (*Plan, error) {
	local, err := loadSnapshot(ctx, m.local)
	if err != nil {
		return nil, err
	}
	inTarget, err := m.targetIDs(ctx)
	if err != nil {
		return nil, err
	}
	var targetOrgs []models.Organization
	if m.cloud != nil {
		targetOrgs, err = store.NewCollection[models.Organization](m.cloud, store.Organizations).List(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("load target organizations: %w", err)
		}
	}

	p := &Plan{report: newReport(m.target().Name(), m.opts.DryRun)}
	b := &builder{m: m, plan: p, inTarget: inTarget, dirty: map[string]map[string]bool{}}

	orgIDs, alias, orgByID := b.resolveOrgs(local, targetOrgs)
	evs := b.backfillEvents(local.events, orgIDs, alias, orgByID)
	b.backfillPayments(local.payments, evs, orgIDs, alias, orgByID)
	b.rekeyProfiles(local.profiles, orgIDs, alias)
	for _, u := range local.users {
		b.emit(store.Users, u, false)
	}
	return p, nil
}

type builder struct {
	m        *Migrator
	plan     *Plan
	inTarget map[string]map[string]bool
	dirty    map[string]map[string]bool
}

func (b *builder) markDirty(collection, id string) {
	if b.dirty[collection] == nil {
		b.dirty[collection] = map[string]bool{}
	}
	b.dirty[collection][id] = true
}

// emit schedules rec for the target, and for the local file when changed.
func (b *builder) emit(collection string, rec store.Record, changed bool) {
	id := rec.DocID()
	body, err := json.Marshal(rec)
	if err != nil {
		b.m.logger.Error("encode record", zap.String("collection", collection), zap.String("id", id), zap.Error(err))
		b.plan.report.counts(collection).Failed++
		return
	}
	doc := store.Document{ID: id, Body: body}
	counts := b.plan.report.counts(collection)
	switch {
	case !b.inTarget[collection][id]:
		b.plan.target = append(b.plan.target, action{collection: collection, id: id, kind: actCreate, doc: doc})
		counts.Created++
	case changed:
		b.plan.target = append(b.plan.target, action{collection: collection, id: id, kind: actUpdate, doc: doc})
		counts.Updated++
	default:
		counts.Reused++
	}
	if changed && b.m.cloud != nil {
		b.plan.local = append(b.plan.local, action{collection: collection, id: id, kind: actUpdate, doc: doc})
	}
}

func (b *builder) remove(collection, id string, inLocal bool) {
	if b.inTarget[collection][id] {
		b.plan.target = append(b.plan.target, action{collection: collection, id: id, kind: actRemove})
	}
	if inLocal && b.m.cloud != nil {
		b.plan.local = append(b.plan.local, action{collection: collection, id: id, kind: actRemove})
	}
	b.plan.report.counts(collection).Removed++
}

// resolveOrgs groups local and target organizations by canonical name and
// picks the oldest record of each group as its canonical id. Names that only
// appear on events get a new organization. alias maps every non-survivor id
// to its survivor when deduplicating.
func (b *builder) resolveOrgs(local snapshot, targetOrgs []models.Organization) (map[string]string, map[string]string, map[string]models.Organization) {
	localByID := make(map[string]models.Organization, len(local.orgs))
	for _, o := range local.orgs {
		localByID[o.ID] = o
	}
	groups := make(map[string][]models.Organization)
	seen := make(map[string]bool)
	add := func(o models.Organization) {
		k := organizations.Key(o)
		if k == "" || seen[o.ID] {
			return
		}
		seen[o.ID] = true
		groups[k] = append(groups[k], o)
	}
	for _, o := range local.orgs {
		add(o)
	}
	for _, o := range targetOrgs {
		add(o)
	}

	now := b.m.now()
	for _, ev := range local.events {
		k := canonical.Name(ev.Org)
		if k == "" || len(groups[k]) > 0 {
			continue
		}
		if ev.OrgID != "" {
			if _, ok := localByID[ev.OrgID]; ok {
				continue
			}
		}
		o := models.Organization{
			ID:            uuid.NewString(),
			Name:          collapse(ev.Org),
			CanonicalName: k,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		groups[k] = []models.Organization{o}
		b.markDirty(store.Organizations, o.ID)
		b.m.logger.Info("organization created from event reference", zap.String("canonical_name", k), zap.String("event_id", ev.ID))
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	orgIDs := make(map[string]string, len(keys))
	alias := make(map[string]string)
	byID := make(map[string]models.Organization)
	for _, k := range keys {
		g := groups[k]
		sort.SliceStable(g, func(i, j int) bool { return organizations.Older(g[i], g[j]) })
		survivor := g[0]
		orgIDs[k] = survivor.ID
		changed := b.dirty[store.Organizations][survivor.ID]
		if survivor.CanonicalName != k {
			b.plan.report.change(store.Organizations, survivor.ID, "canonicalName", survivor.CanonicalName, k)
			survivor.CanonicalName = k
			changed = true
		}
		if b.m.opts.Dedupe {
			for _, dup := range g[1:] {
				if organizations.Merge(&survivor, dup) {
					changed = true
				}
				alias[dup.ID] = survivor.ID
				_, inLocal := localByID[dup.ID]
				b.remove(store.Organizations, dup.ID, inLocal)
				b.plan.report.change(store.Organizations, dup.ID, "mergedInto", dup.ID, survivor.ID)
			}
		} else {
			for _, dup := range g[1:] {
				byID[dup.ID] = dup
				if _, ok := localByID[dup.ID]; ok {
					b.emit(store.Organizations, dup, false)
				}
			}
		}
		if changed {
			survivor.UpdatedAt = now
		}
		byID[survivor.ID] = survivor
		b.emit(store.Organizations, survivor, changed)
	}
	return orgIDs, alias, byID
}

func (b *builder) backfillEvents(list []models.Event, orgIDs, alias map[string]string, orgByID map[string]models.Organization) []models.Event {
	out := make([]models.Event, 0, len(list))
	for _, ev := range list {
		changed := false
		if to, ok := alias[ev.OrgID]; ok {
			b.plan.report.change(store.Events, ev.ID, "orgId", ev.OrgID, to)
			ev.OrgID, changed = to, true
		}
		if ev.OrgID == "" {
			if id, ok := orgIDs[canonical.Name(ev.Org)]; ok {
				b.plan.report.change(store.Events, ev.ID, "orgId", "", id)
				ev.OrgID, changed = id, true
			}
		}
		if org, ok := orgByID[ev.OrgID]; ok {
			label := org.Label()
			if label != "" && (ev.Org == "" || (b.m.opts.NormalizeOrgNames && ev.Org != label)) {
				b.plan.report.change(store.Events, ev.ID, "org", ev.Org, label)
				ev.Org, changed = label, true
			}
		}
		b.emit(store.Events, ev, changed)
		out = append(out, ev)
	}
	return out
}

func (b *builder) backfillPayments(list []models.Payment, evs []models.Event, orgIDs, alias map[string]string, orgByID map[string]models.Organization) {
	byName := make(map[string][]models.Event)
	evByID := make(map[string]models.Event, len(evs))
	for _, ev := range evs {
		byName[canonical.Name(ev.Name)] = append(byName[canonical.Name(ev.Name)], ev)
		evByID[ev.ID] = ev
	}
	for _, p := range list {
		changed := false
		if to, ok := alias[p.OrgID]; ok {
			b.plan.report.change(store.Payments, p.ID, "orgId", p.OrgID, to)
			p.OrgID, changed = to, true
		}
		if p.OrgID == "" {
			if id, ok := orgIDs[canonical.Name(p.Org)]; ok {
				b.plan.report.change(store.Payments, p.ID, "orgId", "", id)
				p.OrgID, changed = id, true
			}
		}
		if p.EventID == "" && canonical.Name(p.Event) != "" {
			if ev, ok := events.MatchOrg(byName[canonical.Name(p.Event)], p.OrgID, p.Org); ok {
				b.plan.report.change(store.Payments, p.ID, "eventId", "", ev.ID)
				p.EventID, changed = ev.ID, true
			}
		}
		if p.OrgID == "" {
			if ev, ok := evByID[p.EventID]; ok && ev.OrgID != "" {
				b.plan.report.change(store.Payments, p.ID, "orgId", "", ev.OrgID)
				p.OrgID, changed = ev.OrgID, true
			}
		}
		if p.Org == "" {
			if org, ok := orgByID[p.OrgID]; ok && org.Label() != "" {
				b.plan.report.change(store.Payments, p.ID, "org", "", org.Label())
				p.Org, changed = org.Label(), true
			}
		}
		if p.OrgID == "" {
			b.plan.report.Unmapped = append(b.plan.report.Unmapped, p.ID)
		}
		b.emit(store.Payments, p, changed)
	}
}

// rekeyProfiles moves profiles keyed by canonical name (or by a merged
// duplicate id) to the organization id. When both keys exist the legacy
// profile only fills fields the id-keyed one lacks.
func (b *builder) rekeyProfiles(list []models.OfficerProfile, orgIDs, alias map[string]string) {
	byKey := make(map[string]*models.OfficerProfile, len(list))
	order := make([]string, 0, len(list))
	changed := make(map[string]bool)
	for i := range list {
		pr := list[i]
		byKey[pr.Key] = &pr
		order = append(order, pr.Key)
	}
	for _, key := range append([]string(nil), order...) {
		pr := byKey[key]
		to := ""
		if id, ok := alias[key]; ok {
			to = id
		} else if id, ok := orgIDs[canonical.Name(key)]; ok && key != id {
			to = id
		}
		if to == "" {
			continue
		}
		b.plan.report.change(store.OfficerProfiles, key, "key", key, to)
		if dst, ok := byKey[to]; ok {
			if dst.Profile == nil {
				dst.Profile = map[string]any{}
			}
			for k, v := range pr.Profile {
				if cur, ok := dst.Profile[k]; !ok || cur == nil || cur == "" {
					dst.Profile[k] = v
				}
			}
			if dst.OrgID == "" {
				dst.OrgID = to
			}
			if dst.Org == "" {
				dst.Org = pr.Org
			}
		} else {
			moved := *pr
			moved.Key, moved.OrgID = to, to
			byKey[to] = &moved
			order = append(order, to)
		}
		changed[to] = true
		delete(byKey, key)
		b.remove(store.OfficerProfiles, key, true)
	}
	emitted := make(map[string]bool, len(order))
	for _, key := range order {
		pr, ok := byKey[key]
		if !ok || emitted[key] {
			continue
		}
		emitted[key] = true
		b.emit(store.OfficerProfiles, *pr, changed[key])
	}
}

// Apply performs plan. Per-record failures are logged and counted; the run
// continues.
func (m *Migrator) Apply(ctx context.Context, plan *Plan) (*Report, error) {
	report := plan.report
	report.DryRun = false
	if !m.opts.NoBackup {
		path, err := m.local.Backup()
		if err != nil {
			return report, fmt.Errorf("backup local store: %w", err)
		}
		report.BackupPath = path
		if path != "" {
			m.logger.Info("local store backed up", zap.String("path", path))
		}
	}
	m.run(ctx, m.target(), plan.target, report, true)
	m.run(ctx, m.local, plan.local, report, false)
	return report, nil
}

func (m *Migrator) run(ctx context.Context, b store.Backend, actions []action, report *Report, counted bool) {
	for _, a := range actions {
		var err error
		op := "put"
		if a.kind == actRemove {
			op = "delete"
			err = b.Delete(ctx, a.collection, a.id)
		} else {
			err = b.Put(ctx, a.collection, a.doc)
		}
		if err == nil {
			continue
		}
		m.logger.Warn("migration write failed",
			zap.String("backend", b.Name()), zap.String("collection", a.collection),
			zap.String("id", a.id), zap.String("op", op), zap.Error(err))
		c := report.counts(a.collection)
		c.Failed++
		if !counted {
			continue
		}
		switch a.kind {
		case actCreate:
			c.Created--
		case actUpdate:
			c.Updated--
		case actRemove:
			c.Removed--
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
