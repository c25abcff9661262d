package models

import "time"

// OfficerProfile holds free-form officer details for one organization.
// Key is the org id when known, else the org's canonical name.
type OfficerProfile struct {
	Key       string         `json:"key"`
	OrgID     string         `json:"orgId,omitempty"`
	Org       string         `json:"org,omitempty"`
	Profile   map[string]any `json:"profile"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// DocID implements store.Record.
func (p OfficerProfile) DocID() string { return p.Key }
