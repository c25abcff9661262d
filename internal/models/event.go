package models

import "time"

// EventStatusOpen is the status of a newly created event. Status is free text
// after creation.
const EventStatusOpen = "Open"

// Receiver describes who collects the payment for an event. The QR code is
// either inline (QRImage, e.g. a data URL) or a pointer into object storage.
type Receiver struct {
	Number     string `json:"number,omitempty"`
	Name       string `json:"name,omitempty"`
	QRImage    string `json:"qrImage,omitempty"`
	ObjectPath string `json:"objectPath,omitempty"`
	IsLocal    bool   `json:"isLocal,omitempty"`
}

// Event is a fee-collecting event owned by an organization. Org is the
// display name denormalized at write time; OrgID is the foreign key.
type Event struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Fee       float64    `json:"fee"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	Status    string     `json:"status"`
	OrgID     string     `json:"orgId"`
	Org       string     `json:"org"`
	Receiver  Receiver   `json:"receiver"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// DocID implements store.Record.
func (e Event) DocID() string { return e.ID }
