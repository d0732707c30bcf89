package models

import (
	"strings"
	"time"
)

// Guest represents a wedding invitee
type Guest struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Phone             string           `json:"phone,omitempty"`
	PlusOnesAllowed   int              `json:"plus_ones_allowed"`
	Status            InvitationStatus `json:"status"`
	Token             string           `json:"token"`
	GuestURL          string           `json:"guest_url"`
	CreatedAt         *time.Time       `json:"created_at,omitempty"`
	LimitDate         *time.Time       `json:"limit_date,omitempty"`
	UpdatedAt         *time.Time       `json:"updated_at,omitempty"`
	LastVisitAt       *time.Time       `json:"last_visit_at,omitempty"`
	AcceptedAt        *time.Time       `json:"accepted_at,omitempty"`
	PlusOnesConfirmed *int             `json:"plus_ones_confirmed,omitempty"`
}

// InvitationStatus represents the RSVP state of an invitation
type InvitationStatus string

const (
	StatusNotOpen  InvitationStatus = "not_open"
	StatusAccepted InvitationStatus = "accepted"
	StatusRejected InvitationStatus = "rejected"
)

// ParseStatus converts user input into an InvitationStatus.
// "pending" is accepted as the pre-rename spelling of not_open.
func ParseStatus(s string) (InvitationStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StatusNotOpen), "pending":
		return StatusNotOpen, true
	case string(StatusAccepted):
		return StatusAccepted, true
	case string(StatusRejected):
		return StatusRejected, true
	}
	return "", false
}

// NameKey is the de-duplication key used when matching imported rows
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Apply merges a field-set into a copy of the guest and returns it
func (g Guest) Apply(f Fields) Guest {
	doc := g.Document()
	for k, v := range f {
		doc[k] = v
	}
	return GuestFromDocument(g.ID, doc)
}

// CreateInput carries the admin-supplied fields for a new guest
type CreateInput struct {
	Name            string            `json:"name"`
	Phone           string            `json:"phone,omitempty"`
	PlusOnesAllowed int               `json:"plus_ones_allowed"`
	Status          *InvitationStatus `json:"status,omitempty"`
	Token           string            `json:"token,omitempty"`
}

// UpdateInput carries a partial update; nil fields are left untouched
type UpdateInput struct {
	Name              *string           `json:"name,omitempty"`
	Phone             *string           `json:"phone,omitempty"`
	PlusOnesAllowed   *int              `json:"plus_ones_allowed,omitempty"`
	Status            *InvitationStatus `json:"status,omitempty"`
	PlusOnesConfirmed *int              `json:"plus_ones_confirmed,omitempty"`
}

// ImportRow is one normalized entry of an external guest list
type ImportRow struct {
	Name            string `json:"name"`
	PlusOnesAllowed *int   `json:"plus_ones_allowed,omitempty"`
}

// ImportResult summarizes what an import wrote
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}
