package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-dues/backend/internal/auth"
	"github.com/campus-dues/backend/internal/models"
	"github.com/campus-dues/backend/pkg/canonical"
)

// seedEvent submits five payments for E1 (three 2nd Year, one approved per
// block) and two for E2.
func seedEvent(t *testing.T, f fixture) {
	t.Helper()
	ctx := context.Background()
	rows := []struct {
		event, year, block string
		who                auth.Identity
		amount             float64
		approve            bool
	}{
		{"E1", "2nd Year", "A", auth.Identity{UID: "u1"}, 100, true},
		{"E1", " 2nd  year", "B", auth.Identity{UID: "u2"}, 100, false},
		{"E1", "2nd Year", "A", auth.Identity{UID: "u1"}, 50, true},
		{"E1", "3rd Year", "B", auth.Identity{UID: "u3"}, 100, true},
		{"E1", "1st Year", "", auth.Identity{Email: "x@campus.edu"}, 100, false},
		{"E2", "2nd Year", "A", auth.Identity{UID: "u9"}, 300, true},
		{"E2", "4th Year", "C", auth.Identity{UID: "u8"}, 300, false},
	}
	for _, r := range rows {
		p, err := f.svc.Submit(ctx, SubmitInput{
			Name: "Fee", Amount: r.amount, EventID: r.event,
			Student: Student{Year: r.year, Block: r.block},
		}, r.who, nil)
		require.NoError(t, err)
		if r.approve {
			_, err = f.svc.Approve(ctx, p.ID)
			require.NoError(t, err)
		}
	}
}

func TestListByEventHasNoLeakage(t *testing.T) {
	f := newFixture(t)
	seedEvent(t, f)

	res, err := f.svc.List(context.Background(), Query{Scope: Scope{EventID: "E1"}})
	require.NoError(t, err)

	require.Len(t, res.Payments, 5)
	for _, p := range res.Payments {
		assert.Equal(t, "E1", p.EventID)
	}
	assert.Equal(t, len(res.Payments), res.Totals.TotalCount)
	assert.Equal(t, 3, res.Totals.ApprovedCount)
	assert.Equal(t, 450.0, res.Totals.TotalAmount)
}

func TestListFiltersDoNotMoveTotals(t *testing.T) {
	f := newFixture(t)
	seedEvent(t, f)
	ctx := context.Background()

	baseline, err := f.svc.List(ctx, Query{Scope: Scope{EventID: "E1"}})
	require.NoError(t, err)

	res, err := f.svc.List(ctx, Query{Scope: Scope{EventID: "E1"}, Years: []string{"2ND YEAR"}})
	require.NoError(t, err)

	require.Len(t, res.Payments, 3)
	for _, p := range res.Payments {
		assert.Equal(t, "2nd year", canonical.Token(p.StudentYear))
	}
	assert.Equal(t, baseline.Totals, res.Totals)
	assert.Equal(t, baseline.Stats, res.Stats)
	assert.Equal(t, baseline.AvailableFilters, res.AvailableFilters)
}

func TestListCombinesYearAndBlock(t *testing.T) {
	f := newFixture(t)
	seedEvent(t, f)

	res, err := f.svc.List(context.Background(), Query{
		Scope:  Scope{EventID: "E1"},
		Years:  []string{"2nd Year", "3rd Year"},
		Blocks: []string{"b"},
	})
	require.NoError(t, err)
	assert.Len(t, res.Payments, 2)
}

func TestListAvailableFilters(t *testing.T) {
	f := newFixture(t)
	seedEvent(t, f)

	res, err := f.svc.List(context.Background(), Query{Scope: Scope{EventID: "E1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"1st Year", "2nd Year", "3rd Year"}, res.AvailableFilters.Years)
	assert.Equal(t, []string{"A", "B"}, res.AvailableFilters.Blocks)
}

func TestStatsCountDistinctSubmitters(t *testing.T) {
	f := newFixture(t)
	seedEvent(t, f)

	st, err := f.svc.Stats(context.Background(), Scope{EventID: "E1"})
	require.NoError(t, err)
	assert.Equal(t, Stats{PaidCount: 4, ApprovedCount: 3, TotalReceived: 250}, st)

	all, err := f.svc.Stats(context.Background(), Scope{})
	require.NoError(t, err)
	assert.Equal(t, 6, all.PaidCount)
	assert.Equal(t, 4, all.ApprovedCount)
}

func TestSubmitterKeyFallbacks(t *testing.T) {
	tests := []struct {
		name string
		p    models.Payment
		want string
	}{
		{"uid wins", models.Payment{SubmittedByUID: "u", SubmittedByEmail: "e@x"}, "uid:u"},
		{"email", models.Payment{SubmittedByEmail: "E@X"}, "email:e@x"},
		{"name", models.Payment{StudentName: " Ana  Cruz "}, "name:ana cruz"},
		{"reference and amount", models.Payment{Reference: "GC-1", Amount: 150.5}, "ref:GC-1|150.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubmitterKey(tt.p))
		})
	}
}
