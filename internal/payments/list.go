package payments

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/campus-dues/backend/internal/models"
	"github.com/campus-dues/backend/pkg/canonical"
)

// Scope narrows the baseline population. Totals and stats are computed over
// the scoped baseline.
type Scope struct {
	EventID string
	OrgID   string
}

func (s Scope) match(p models.Payment) bool {
	if s.EventID != "" && p.EventID != s.EventID {
		return false
	}
	if s.OrgID != "" && p.OrgID != s.OrgID {
		return false
	}
	return true
}

// Query is a list request: a scope plus optional year/block filters. Filter
// values are compared after trimming, whitespace collapsing and lowercasing.
type Query struct {
	Scope
	Years  []string
	Blocks []string
}

// Totals summarize the scoped baseline.
type Totals struct {
	TotalCount    int     `json:"totalCount"`
	ApprovedCount int     `json:"approvedCount"`
	TotalAmount   float64 `json:"totalAmount"`
}

// AvailableFilters are the distinct year and block values in the scoped
// baseline, sorted.
type AvailableFilters struct {
	Years  []string `json:"years"`
	Blocks []string `json:"blocks"`
}

// Stats are the headline dashboard figures. PaidCount counts distinct
// submitters, not rows; the other two only count approved payments.
type Stats struct {
	PaidCount     int     `json:"paidCount"`
	ApprovedCount int     `json:"approvedCount"`
	TotalReceived float64 `json:"totalReceived"`
}

// ListResult is the filtered list shape.
type ListResult struct {
	Payments         []models.Payment `json:"payments"`
	Totals           Totals           `json:"totals"`
	AvailableFilters AvailableFilters `json:"availableFilters"`
	Stats            Stats            `json:"stats"`
}

// List returns the payments matching q, newest first. Year and block
// filters only narrow Payments: Totals, Stats and AvailableFilters stay
// pinned to the scoped baseline so summary figures never reflect a
// narrowed view.
func (s *Service) List(ctx context.Context, q Query) (ListResult, error) {
	baseline, err := s.payments.List(ctx, q.Scope.match)
	if err != nil {
		return ListResult{}, err
	}
	sortNewestFirst(baseline)

	years := tokenSet(q.Years)
	blocks := tokenSet(q.Blocks)
	filtered := make([]models.Payment, 0, len(baseline))
	for _, p := range baseline {
		if len(years) > 0 && !years[canonical.Token(p.StudentYear)] {
			continue
		}
		if len(blocks) > 0 && !blocks[canonical.Token(p.StudentBlock)] {
			continue
		}
		filtered = append(filtered, p)
	}

	return ListResult{
		Payments:         filtered,
		Totals:           ComputeTotals(baseline),
		AvailableFilters: ComputeAvailableFilters(baseline),
		Stats:            ComputeStats(baseline),
	}, nil
}

// Stats returns the headline figures for scope.
func (s *Service) Stats(ctx context.Context, scope Scope) (Stats, error) {
	list, err := s.payments.List(ctx, scope.match)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(list), nil
}

// ComputeTotals counts rows, approved rows and the amount sum.
func ComputeTotals(list []models.Payment) Totals {
	var t Totals
	for _, p := range list {
		t.TotalCount++
		t.TotalAmount += p.Amount
		if p.Status == models.PaymentStatusApproved {
			t.ApprovedCount++
		}
	}
	return t
}

// ComputeAvailableFilters collects the distinct non-empty years and blocks.
// Values equal after normalization are reported once, in their first
// spelling.
func ComputeAvailableFilters(list []models.Payment) AvailableFilters {
	return AvailableFilters{
		Years:  distinct(list, func(p models.Payment) string { return p.StudentYear }),
		Blocks: distinct(list, func(p models.Payment) string { return p.StudentBlock }),
	}
}

// ComputeStats computes the headline figures over list.
func ComputeStats(list []models.Payment) Stats {
	var st Stats
	seen := make(map[string]struct{})
	for _, p := range list {
		seen[SubmitterKey(p)] = struct{}{}
		if p.Status == models.PaymentStatusApproved {
			st.ApprovedCount++
			st.TotalReceived += p.Amount
		}
	}
	st.PaidCount = len(seen)
	return st
}

// SubmitterKey identifies who paid: uid, else email, else student name,
// else the reference and amount together.
func SubmitterKey(p models.Payment) string {
	switch {
	case p.SubmittedByUID != "":
		return "uid:" + p.SubmittedByUID
	case p.SubmittedByEmail != "":
		return "email:" + strings.ToLower(p.SubmittedByEmail)
	case canonical.Token(p.StudentName) != "":
		return "name:" + canonical.Token(p.StudentName)
	}
	return "ref:" + strings.TrimSpace(p.Reference) + "|" + strconv.FormatFloat(p.Amount, 'f', -1, 64)
}

func tokenSet(values []string) map[string]bool {
	set := make(map[string]bool)
	for _, v := range values {
		if t := canonical.Token(v); t != "" {
			set[t] = true
		}
	}
	return set
}

func distinct(list []models.Payment, field func(models.Payment) string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, p := range list {
		v := collapse(field(p))
		k := canonical.Token(v)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return canonical.Token(out[i]) < canonical.Token(out[j]) })
	return out
}
