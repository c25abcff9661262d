// Package payments is the proof-of-payment intake and review pipeline.
package payments

import (
	"context"
	"io"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-dues/backend/internal/auth"
	"github.com/campus-dues/backend/internal/events"
	"github.com/campus-dues/backend/internal/models"
	"github.com/campus-dues/backend/internal/organizations"
	"github.com/campus-dues/backend/internal/store"
	"github.com/campus-dues/backend/pkg/apperr"
	"github.com/campus-dues/backend/pkg/storage"
)

// ProofURLTTL is the lifetime of a signed proof URL.
const ProofURLTTL = time.Hour

// SubmitInput holds the client-supplied fields of a submission.
type SubmitInput struct {
	Name      string
	Amount    float64
	Purpose   string
	OrgID     string
	Org       string
	EventID   string
	Event     string
	Reference string
	Notes     string
	Student   Student
}

// Student is the submitter's academic metadata.
type Student struct {
	Name       string
	Year       string
	College    string
	Department string
	Program    string
	Block      string
}

// Service runs payment intake and review.
type Service struct {
	payments *store.Collection[models.Payment]
	orgs     *organizations.Registry
	events   *events.Registry
	blobs    *storage.Blobs
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a payments service.
func NewService(b store.Backend, orgs *organizations.Registry, evs *events.Registry, blobs *storage.Blobs, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		payments: store.NewCollection[models.Payment](b, store.Payments).WithLogger(logger),
		orgs:     orgs,
		events:   evs,
		blobs:    blobs,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ParseAmount parses a client amount string.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, apperr.Validation("amount is required")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, apperr.Validation("amount must be a number")
	}
	return v, nil
}

// Submit validates and stores a new pending payment. The org and event
// references are resolved against the registries; whichever half of each
// id/name pair is missing is backfilled. An unknown id is kept as given.
func (s *Service) Submit(ctx context.Context, in SubmitInput, who auth.Identity, proof *storage.Upload) (models.Payment, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Payment{}, apperr.Validation("name is required")
	}
	if math.IsInf(in.Amount, 0) || !(in.Amount > 0) {
		return models.Payment{}, apperr.Validation("amount must be positive")
	}
	p := models.Payment{
		ID:                uuid.NewString(),
		Name:              name,
		Amount:            in.Amount,
		Purpose:           strings.TrimSpace(in.Purpose),
		OrgID:             strings.TrimSpace(in.OrgID),
		Org:               collapse(in.Org),
		EventID:           strings.TrimSpace(in.EventID),
		Event:             collapse(in.Event),
		Reference:         strings.TrimSpace(in.Reference),
		Notes:             strings.TrimSpace(in.Notes),
		Status:            models.PaymentStatusPending,
		StudentName:       collapse(in.Student.Name),
		StudentYear:       collapse(in.Student.Year),
		StudentCollege:    collapse(in.Student.College),
		StudentDepartment: collapse(in.Student.Department),
		StudentProgram:    collapse(in.Student.Program),
		StudentBlock:      collapse(in.Student.Block),
		SubmittedByUID:    who.UID,
		SubmittedByEmail:  strings.TrimSpace(who.Email),
	}
	if p.OrgID == "" && p.Org == "" && p.EventID == "" && p.Event == "" {
		return models.Payment{}, apperr.Validation("org/orgId or event/eventId is required")
	}
	if p.StudentName == "" {
		p.StudentName = collapse(who.Name)
	}
	if err := s.resolveRefs(ctx, &p); err != nil {
		return models.Payment{}, err
	}

	var stored *storage.Object
	if proof != nil {
		obj, err := s.blobs.Store(ctx, *proof, "proofs/"+p.ID+proof.Ext())
		if err != nil {
			return models.Payment{}, err
		}
		p.ProofObjectPath = obj.Path
		p.ProofObjectIsLocal = obj.IsLocal
		stored = &obj
	}
	p.CreatedAt = s.now()
	if err := s.payments.Upsert(ctx, p); err != nil {
		if stored != nil {
			_ = s.blobs.Remove(ctx, *stored)
		}
		return models.Payment{}, err
	}
	s.logger.Info("payment submitted",
		zap.String("id", p.ID), zap.String("event_id", p.EventID), zap.String("org_id", p.OrgID), zap.Bool("proof", stored != nil))
	return p, nil
}

func (s *Service) resolveRefs(ctx context.Context, p *models.Payment) error {
	if p.EventID != "" || p.Event != "" {
		ev, found, err := s.events.Lookup(ctx, events.Ref{ID: p.EventID, Name: p.Event, OrgID: p.OrgID, OrgName: p.Org})
		if err != nil {
			return err
		}
		if found {
			p.EventID = ev.ID
			p.Event = ev.Name
			if p.OrgID == "" {
				p.OrgID = ev.OrgID
			}
			if p.Org == "" {
				p.Org = ev.Org
			}
		}
	}
	if p.OrgID == "" && p.Org == "" {
		return nil
	}
	org, err := s.orgs.ResolveOrCreate(ctx, organizations.Ref{ID: p.OrgID, Name: p.Org})
	if err != nil {
		return err
	}
	p.OrgID = org.ID
	if l := org.Label(); l != "" {
		p.Org = l
	}
	return nil
}

// Get returns the payment with id.
func (s *Service) Get(ctx context.Context, id string) (models.Payment, error) {
	p, err := s.payments.Get(ctx, id)
	if store.IsNotFound(err) {
		return p, apperr.NotFound("payment")
	}
	return p, err
}

// Approve moves a payment to approved. Re-approving only refreshes approvedAt.
func (s *Service) Approve(ctx context.Context, id string) (models.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return p, err
	}
	if p.Status == models.PaymentStatusRejected {
		return models.Payment{}, apperr.Conflict("payment was rejected and cannot be approved")
	}
	now := s.now()
	p.Status = models.PaymentStatusApproved
	p.ApprovedAt = &now
	return p, s.save(ctx, p, "approve")
}

// Unapprove moves an approved payment back to pending. A pending payment is
// returned unchanged.
func (s *Service) Unapprove(ctx context.Context, id string) (models.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return p, err
	}
	switch p.Status {
	case models.PaymentStatusRejected:
		return models.Payment{}, apperr.Conflict("payment was rejected and cannot be unapproved")
	case models.PaymentStatusPending:
		return p, nil
	}
	p.Status = models.PaymentStatusPending
	p.ApprovedAt = nil
	p.RejectedAt = nil
	p.RejectionReason = ""
	return p, s.save(ctx, p, "unapprove")
}

// Reject marks a pending payment as rejected. Rejection is terminal; an
// approved payment must be unapproved first.
func (s *Service) Reject(ctx context.Context, id, reason string) (models.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return p, err
	}
	switch p.Status {
	case models.PaymentStatusApproved:
		return models.Payment{}, apperr.Conflict("payment is approved; unapprove it before rejecting")
	case models.PaymentStatusRejected:
		return p, nil
	}
	now := s.now()
	p.Status = models.PaymentStatusRejected
	p.RejectedAt = &now
	p.RejectionReason = strings.TrimSpace(reason)
	return p, s.save(ctx, p, "reject")
}

func (s *Service) save(ctx context.Context, p models.Payment, op string) error {
	if err := s.payments.Upsert(ctx, p); err != nil {
		return err
	}
	s.logger.Info("payment "+op, zap.String("id", p.ID), zap.String("status", p.Status))
	return nil
}

// ProofURL returns a URL for the payment's proof image. Only the submitter
// (by uid or email) or an officer may see it. Local proofs are not served
// statically; their URL is the authorized stream at /api/payments/:id/proof.
func (s *Service) ProofURL(ctx context.Context, id string, who auth.Identity, officer bool) (storage.ResolvedURL, error) {
	p, err := s.proofOf(ctx, id, who, officer)
	if err != nil {
		return storage.ResolvedURL{}, err
	}
	if p.ProofObjectIsLocal {
		return storage.ResolvedURL{URL: ProofStreamPath(p.ID), Local: true}, nil
	}
	return s.blobs.ResolveURL(ctx, storage.Object{Path: p.ProofObjectPath}, ProofURLTTL)
}

// OpenProof streams the proof image under the same rule as ProofURL. Caller
// must close the body.
func (s *Service) OpenProof(ctx context.Context, id string, who auth.Identity, officer bool) (io.ReadCloser, string, error) {
	p, err := s.proofOf(ctx, id, who, officer)
	if err != nil {
		return nil, "", err
	}
	return s.blobs.Open(ctx, storage.Object{Path: p.ProofObjectPath, IsLocal: p.ProofObjectIsLocal})
}

// ProofStreamPath is the API path serving a payment's proof bytes.
func ProofStreamPath(id string) string {
	return "/api/payments/" + url.PathEscape(id) + "/proof"
}

// proofOf checks access before revealing whether a proof exists.
func (s *Service) proofOf(ctx context.Context, id string, who auth.Identity, officer bool) (models.Payment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return models.Payment{}, err
	}
	if !officer && !SubmittedBy(p, who) {
		return models.Payment{}, apperr.Forbidden()
	}
	if p.ProofObjectPath == "" {
		return models.Payment{}, apperr.NotFound("proof")
	}
	return p, nil
}

// SubmittedBy reports whether who submitted p.
func SubmittedBy(p models.Payment, who auth.Identity) bool {
	if who.UID != "" && who.UID == p.SubmittedByUID {
		return true
	}
	return who.Email != "" && strings.EqualFold(strings.TrimSpace(who.Email), p.SubmittedByEmail)
}

// Mine returns the payments submitted by who, newest first.
func (s *Service) Mine(ctx context.Context, who auth.Identity) ([]models.Payment, error) {
	if who.UID == "" && who.Email == "" {
		return []models.Payment{}, nil
	}
	list, err := s.payments.List(ctx, func(p models.Payment) bool { return SubmittedBy(p, who) })
	if err != nil {
		return nil, err
	}
	sortNewestFirst(list)
	return list, nil
}

// All returns every payment, newest first.
func (s *Service) All(ctx context.Context) ([]models.Payment, error) {
	list, err := s.payments.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(list)
	return list, nil
}

func sortNewestFirst(list []models.Payment) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
