// Package events is the events registry: fee-collecting events owned by an
// organization, each with receiver details and an optional QR code.
package events

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-dues/backend/internal/models"
	"github.com/campus-dues/backend/internal/organizations"
	"github.com/campus-dues/backend/internal/store"
	"github.com/campus-dues/backend/pkg/apperr"
	"github.com/campus-dues/backend/pkg/canonical"
	"github.com/campus-dues/backend/pkg/storage"
)

// CreateInput holds the fields of a new event.
type CreateInput struct {
	Name     string
	Fee      float64
	Deadline *time.Time
	Status   string
	Org      organizations.Ref
	Receiver models.Receiver
}

// Patch is a partial event update. Nil fields are left untouched.
type Patch struct {
	Name           *string
	Fee            *float64
	Deadline       *time.Time
	ClearDeadline  bool
	Status         *string
	Org            *organizations.Ref
	ReceiverNumber *string
	ReceiverName   *string
	// ReceiverQRImage replaces the QR with an inline image and drops any
	// stored QR object.
	ReceiverQRImage *string
}

// QRLink is a dereferenceable QR code URL. Inline QR images are returned
// as-is with Inline set.
type QRLink struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
	Local     bool   `json:"local"`
	Inline    bool   `json:"inline,omitempty"`
}

// Ref identifies an event by id, or by name within an organization.
type Ref struct {
	ID      string
	Name    string
	OrgID   string
	OrgName string
}

// Registry manages events.
type Registry struct {
	events *store.Collection[models.Event]
	orgs   *organizations.Registry
	blobs  *storage.Blobs
	logger *zap.Logger
	now    func() time.Time
}

// NewRegistry creates an events registry.
func NewRegistry(b store.Backend, orgs *organizations.Registry, blobs *storage.Blobs, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		events: store.NewCollection[models.Event](b, store.Events).WithLogger(logger),
		orgs:   orgs,
		blobs:  blobs,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// qrPath is the fixed storage slot of an event's QR code, so a replacement
// overwrites the previous cloud object.
func qrPath(eventID, ext string) string {
	return "qr/" + eventID + ext
}

func checkFee(fee float64) error {
	if math.IsNaN(fee) || math.IsInf(fee, 0) {
		return apperr.Validation("fee must be a number")
	}
	if fee < 0 {
		return apperr.Validation("fee must not be negative")
	}
	return nil
}

// Create validates in, resolves its organization (creating it by name when
// unknown) and stores the event with an optional QR image.
func (r *Registry) Create(ctx context.Context, in CreateInput, qr *storage.Upload) (models.Event, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Event{}, apperr.Validation("event name is required")
	}
	if err := checkFee(in.Fee); err != nil {
		return models.Event{}, err
	}
	if in.Org.Empty() {
		return models.Event{}, apperr.Validation("org or orgId is required")
	}
	org, err := r.orgs.ResolveOrCreate(ctx, in.Org)
	if err != nil {
		return models.Event{}, err
	}

	now := r.now()
	ev := models.Event{
		ID:        uuid.NewString(),
		Name:      name,
		Fee:       in.Fee,
		Deadline:  in.Deadline,
		Status:    strings.TrimSpace(in.Status),
		OrgID:     org.ID,
		Org:       orgLabel(org, in.Org.Name),
		Receiver:  in.Receiver,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ev.Status == "" {
		ev.Status = models.EventStatusOpen
	}
	if qr != nil {
		obj, err := r.blobs.Store(ctx, *qr, qrPath(ev.ID, qr.Ext()))
		if err != nil {
			return models.Event{}, err
		}
		ev.Receiver.ObjectPath = obj.Path
		ev.Receiver.IsLocal = obj.IsLocal
		ev.Receiver.QRImage = ""
	}
	if err := r.events.Upsert(ctx, ev); err != nil {
		return models.Event{}, err
	}
	return ev, nil
}

// Update applies p to the event with id. A new QR replaces the old one in
// the same storage slot; a superseded local file is removed.
func (r *Registry) Update(ctx context.Context, id string, p Patch, qr *storage.Upload) (models.Event, error) {
	ev, err := r.Get(ctx, id)
	if err != nil {
		return models.Event{}, err
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return models.Event{}, apperr.Validation("event name must not be empty")
		}
		ev.Name = name
	}
	if p.Fee != nil {
		if err := checkFee(*p.Fee); err != nil {
			return models.Event{}, err
		}
		ev.Fee = *p.Fee
	}
	switch {
	case p.ClearDeadline:
		ev.Deadline = nil
	case p.Deadline != nil:
		ev.Deadline = p.Deadline
	}
	if p.Status != nil {
		ev.Status = strings.TrimSpace(*p.Status)
	}
	if p.Org != nil && !p.Org.Empty() {
		org, err := r.orgs.ResolveOrCreate(ctx, *p.Org)
		if err != nil {
			return models.Event{}, err
		}
		ev.OrgID = org.ID
		ev.Org = orgLabel(org, p.Org.Name)
	}
	if p.ReceiverNumber != nil {
		ev.Receiver.Number = strings.TrimSpace(*p.ReceiverNumber)
	}
	if p.ReceiverName != nil {
		ev.Receiver.Name = strings.TrimSpace(*p.ReceiverName)
	}

	old := storage.Object{Path: ev.Receiver.ObjectPath, IsLocal: ev.Receiver.IsLocal}
	switch {
	case qr != nil:
		obj, err := r.blobs.Store(ctx, *qr, qrPath(ev.ID, qr.Ext()))
		if err != nil {
			return models.Event{}, err
		}
		ev.Receiver.ObjectPath = obj.Path
		ev.Receiver.IsLocal = obj.IsLocal
		ev.Receiver.QRImage = ""
	case p.ReceiverQRImage != nil:
		ev.Receiver.QRImage = strings.TrimSpace(*p.ReceiverQRImage)
		ev.Receiver.ObjectPath = ""
		ev.Receiver.IsLocal = false
	}

	ev.UpdatedAt = r.now()
	if err := r.events.Upsert(ctx, ev); err != nil {
		return models.Event{}, err
	}
	if old.Path != "" && old != (storage.Object{Path: ev.Receiver.ObjectPath, IsLocal: ev.Receiver.IsLocal}) {
		_ = r.blobs.Remove(ctx, old)
	}
	return ev, nil
}

// Delete removes the event and its QR object. Payments referencing the
// event are kept.
func (r *Registry) Delete(ctx context.Context, id string) error {
	ev, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := r.events.Delete(ctx, id); err != nil {
		return err
	}
	if ev.Receiver.ObjectPath != "" {
		_ = r.blobs.Remove(ctx, storage.Object{Path: ev.Receiver.ObjectPath, IsLocal: ev.Receiver.IsLocal})
	}
	return nil
}

// Get returns the event with id.
func (r *Registry) Get(ctx context.Context, id string) (models.Event, error) {
	ev, err := r.events.Get(ctx, id)
	if store.IsNotFound(err) {
		return ev, apperr.NotFound("event")
	}
	return ev, err
}

// ListByOrg returns events newest first. orgID, when given, is matched
// exactly and orgName is ignored; otherwise orgName is compared by
// canonical name against the event's display org.
func (r *Registry) ListByOrg(ctx context.Context, orgID, orgName string) ([]models.Event, error) {
	var match func(models.Event) bool
	switch {
	case orgID != "":
		match = func(e models.Event) bool { return e.OrgID == orgID }
	case canonical.Name(orgName) != "":
		match = func(e models.Event) bool { return canonical.Equal(e.Org, orgName) }
	}
	list, err := r.events.List(ctx, match)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

// Lookup finds an event without creating anything: by id first, then by
// canonical event name within the organization (orgId, falling back to the
// organization's canonical name).
func (r *Registry) Lookup(ctx context.Context, ref Ref) (models.Event, bool, error) {
	if ref.ID != "" {
		ev, err := r.events.Get(ctx, ref.ID)
		if err == nil {
			return ev, true, nil
		}
		if !store.IsNotFound(err) {
			return models.Event{}, false, err
		}
	}
	if canonical.Name(ref.Name) == "" {
		return models.Event{}, false, nil
	}
	list, err := r.events.List(ctx, func(e models.Event) bool { return canonical.Equal(e.Name, ref.Name) })
	if err != nil {
		return models.Event{}, false, err
	}
	if ev, ok := MatchOrg(list, ref.OrgID, ref.OrgName); ok {
		return ev, true, nil
	}
	return models.Event{}, false, nil
}

// MatchOrg picks the first event owned by orgID, else the first whose
// display org canonicalizes to orgName. With neither given, a single
// candidate is accepted.
func MatchOrg(candidates []models.Event, orgID, orgName string) (models.Event, bool) {
	if orgID != "" {
		for _, e := range candidates {
			if e.OrgID == orgID {
				return e, true
			}
		}
	}
	if canonical.Name(orgName) != "" {
		for _, e := range candidates {
			if canonical.Equal(e.Org, orgName) {
				return e, true
			}
		}
	}
	if orgID == "" && canonical.Name(orgName) == "" && len(candidates) == 1 {
		return candidates[0], true
	}
	return models.Event{}, false
}

// QRURL resolves the event's receiver QR code. Inline images are returned
// directly; stored objects go through object storage.
func (r *Registry) QRURL(ctx context.Context, id string, ttl time.Duration) (QRLink, error) {
	ev, err := r.Get(ctx, id)
	if err != nil {
		return QRLink{}, err
	}
	if ev.Receiver.QRImage != "" {
		return QRLink{URL: ev.Receiver.QRImage, Inline: true}, nil
	}
	if ev.Receiver.ObjectPath == "" {
		return QRLink{}, apperr.NotFound("qr code")
	}
	u, err := r.blobs.ResolveURL(ctx, storage.Object{Path: ev.Receiver.ObjectPath, IsLocal: ev.Receiver.IsLocal}, ttl)
	if err != nil {
		return QRLink{}, err
	}
	return QRLink{URL: u.URL, ExpiresIn: u.ExpiresIn, Local: u.Local}, nil
}

func orgLabel(org models.Organization, fallback string) string {
	if l := org.Label(); l != "" {
		return l
	}
	return strings.Join(strings.Fields(fallback), " ")
}
