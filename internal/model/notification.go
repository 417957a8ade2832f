package model

import "time"

// Notification is a durable mailbox record for a single recipient.
// Only IsRead changes after creation.
type Notification struct {
	ID            int64     `db:"id" json:"id"`
	RecipientID   int64     `db:"recipient_id" json:"recipient_id"`
	SenderID      *int64    `db:"sender_id" json:"sender_id,omitempty"`
	Type          string    `db:"type" json:"type"`
	Title         string    `db:"title" json:"title"`
	Message       string    `db:"message" json:"message"`
	RelatedItemID *int64    `db:"related_item_id" json:"related_item_id,omitempty"`
	IsRead        bool      `db:"is_read" json:"is_read"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Notification types.
const (
	NotificationItemMatch     = "item-match"
	NotificationClaimRequest  = "claim-request"
	NotificationClaimApproved = "claim-approved"
	NotificationNewMessage    = "new-message"
	NotificationSystem        = "system"
)

// ValidNotificationType reports whether t is a known notification type.
func ValidNotificationType(t string) bool {
	switch t {
	case NotificationItemMatch, NotificationClaimRequest, NotificationClaimApproved,
		NotificationNewMessage, NotificationSystem:
		return true
	}
	return false
}
