package models

import "time"

// Organization is a campus organization. CanonicalName is the dedup key:
// at most one organization exists per canonical name.
type Organization struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	CanonicalName string         `json:"canonicalName"`
	DisplayName   string         `json:"displayName,omitempty"`
	LogoURL       string         `json:"logoUrl,omitempty"`
	ContactEmail  string         `json:"contactEmail,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// DocID implements store.Record.
func (o Organization) DocID() string { return o.ID }

// Label is the name shown to users: DisplayName when set, else Name.
func (o Organization) Label() string {
	if o.DisplayName != "" {
		return o.DisplayName
	}
	return o.Name
}
