package model

import "time"

// Claim is a user's assertion that a reported item belongs to them.
// OwnerID is the item's reporter, captured when the claim is created.
type Claim struct {
	ID              int64      `db:"id" json:"id"`
	ItemID          int64      `db:"item_id" json:"item_id"`
	ClaimantID      int64      `db:"claimant_id" json:"claimant_id"`
	OwnerID         int64      `db:"owner_id" json:"owner_id"`
	Status          string     `db:"status" json:"status"`
	Description     string     `db:"description" json:"description"`
	IdentifyingInfo string     `db:"identifying_info" json:"identifying_info"`
	ContactInfo     string     `db:"contact_info" json:"contact_info,omitempty"`
	MeetupLocation  string     `db:"meetup_location" json:"meetup_location,omitempty"`
	MeetupTime      *time.Time `db:"meetup_time" json:"meetup_time,omitempty"`
	Notes           string     `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	// Joined fields (not always populated).
	ItemName     string `db:"item_name" json:"item_name,omitempty"`
	ClaimantName string `db:"claimant_name" json:"claimant_name,omitempty"`
	OwnerName    string `db:"owner_name" json:"owner_name,omitempty"`
}

// Claim statuses.
const (
	ClaimStatusPending   = "pending"
	ClaimStatusApproved  = "approved"
	ClaimStatusRejected  = "rejected"
	ClaimStatusCompleted = "completed"
)

// ClaimTerminal reports whether no further transitions leave status.
func ClaimTerminal(status string) bool {
	return status == ClaimStatusRejected || status == ClaimStatusCompleted
}

// ClaimTransitionAllowed reports whether a claim may move from one status
// to another. Re-approving an approved claim is allowed and re-runs its
// side effects.
func ClaimTransitionAllowed(from, to string) bool {
	switch from {
	case ClaimStatusPending:
		return to == ClaimStatusApproved || to == ClaimStatusRejected
	case ClaimStatusApproved:
		return to == ClaimStatusApproved || to == ClaimStatusCompleted
	}
	return false
}
