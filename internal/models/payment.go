package models

import "time"

// Payment statuses. Rejected is terminal.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusApproved = "approved"
	PaymentStatusRejected = "rejected"
)

// Payment is a proof-of-payment submission. Amount, Reference and the proof
// pointer never change after creation; only the review fields do.
type Payment struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Amount             float64    `json:"amount"`
	Purpose            string     `json:"purpose,omitempty"`
	OrgID              string     `json:"orgId,omitempty"`
	Org                string     `json:"org,omitempty"`
	EventID            string     `json:"eventId,omitempty"`
	Event              string     `json:"event,omitempty"`
	Reference          string     `json:"reference,omitempty"`
	ProofObjectPath    string     `json:"proofObjectPath,omitempty"`
	ProofObjectIsLocal bool       `json:"proofObjectIsLocal,omitempty"`
	Status             string     `json:"status"`
	StudentName        string     `json:"studentName,omitempty"`
	StudentYear        string     `json:"studentYear,omitempty"`
	StudentCollege     string     `json:"studentCollege,omitempty"`
	StudentDepartment  string     `json:"studentDepartment,omitempty"`
	StudentProgram     string     `json:"studentProgram,omitempty"`
	StudentBlock       string     `json:"studentBlock,omitempty"`
	SubmittedByUID     string     `json:"submittedByUid,omitempty"`
	SubmittedByEmail   string     `json:"submittedByEmail,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	ApprovedAt         *time.Time `json:"approvedAt,omitempty"`
	RejectedAt         *time.Time `json:"rejectedAt,omitempty"`
	RejectionReason    string     `json:"rejectionReason,omitempty"`
}

// DocID implements store.Record.
func (p Payment) DocID() string { return p.ID }
