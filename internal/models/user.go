package models

import "time"

// User is the last known identity of a signed-in account, keyed by the
// identity provider's uid.
type User struct {
	UID        string    `json:"uid"`
	Email      string    `json:"email,omitempty"`
	Name       string    `json:"name,omitempty"`
	Role       string    `json:"role,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// DocID implements store.Record.
func (u User) DocID() string { return u.UID }
