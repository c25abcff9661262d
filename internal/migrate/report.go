package migrate

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Counts tallies per-collection outcomes.
type Counts struct {
	Created int `json:"created"`
	Reused  int `json:"reused"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
	Removed int `json:"removed"`
}

// Change is one field rewritten by the backfill.
type Change struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Field      string `json:"field"`
	From       string `json:"from"`
	To         string `json:"to"`
}

func (c Change) String() string {
	return fmt.Sprintf("%s/%s %s: %q -> %q", c.Collection, c.ID, c.Field, c.From, c.To)
}

// Report is the outcome of a run. In dry-run mode counts describe what
// would have been written.
type Report struct {
	DryRun     bool               `json:"dryRun"`
	Target     string             `json:"target"`
	BackupPath string             `json:"backupPath,omitempty"`
	Counts     map[string]*Counts `json:"counts"`
	Changes    []Change           `json:"changes"`
	// Unmapped lists payments still without an orgId.
	Unmapped []string `json:"unmapped,omitempty"`
}

func newReport(target string, dryRun bool) *Report {
	return &Report{DryRun: dryRun, Target: target, Counts: map[string]*Counts{}}
}

func (r *Report) counts(collection string) *Counts {
	c, ok := r.Counts[collection]
	if !ok {
		c = &Counts{}
		r.Counts[collection] = c
	}
	return c
}

func (r *Report) change(collection, id, field, from, to string) {
	r.Changes = append(r.Changes, Change{Collection: collection, ID: id, Field: field, From: from, To: to})
}

// Failed returns the total number of failed writes.
func (r *Report) Failed() int {
	n := 0
	for _, c := range r.Counts {
		n += c.Failed
	}
	return n
}

// WriteSummary prints the per-collection table and, when verbose, every change.
func (r *Report) WriteSummary(w io.Writer, verbose bool) {
	mode := "applied"
	if r.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "migration %s (target: %s)\n", mode, r.Target)
	if r.BackupPath != "" {
		fmt.Fprintf(w, "backup: %s\n", r.BackupPath)
	}
	names := make([]string, 0, len(r.Counts))
	for name := range r.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "%-16s %8s %8s %8s %8s %8s\n", "collection", "created", "reused", "updated", "removed", "failed")
	for _, name := range names {
		c := r.Counts[name]
		fmt.Fprintf(w, "%-16s %8d %8d %8d %8d %8d\n", name, c.Created, c.Reused, c.Updated, c.Removed, c.Failed)
	}
	fmt.Fprintf(w, "%d field changes\n", len(r.Changes))
	if verbose {
		for _, c := range r.Changes {
			fmt.Fprintln(w, "  "+c.String())
		}
	}
	if len(r.Unmapped) > 0 {
		fmt.Fprintf(w, "%d payments left without orgId: %s\n", len(r.Unmapped), strings.Join(r.Unmapped, ", "))
	}
}
