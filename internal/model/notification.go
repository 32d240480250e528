package model

import "time"

// NotificationType classifies what triggered a notification.
type NotificationType string

const (
	NotificationApplicationUpdate NotificationType = "APPLICATION_UPDATE"
	NotificationComplaintUpdate   NotificationType = "COMPLAINT_UPDATE"
	NotificationSystem            NotificationType = "SYSTEM"
	NotificationReminder          NotificationType = "REMINDER"
)

// Valid reports whether t is one of the known notification types.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationApplicationUpdate, NotificationComplaintUpdate,
		NotificationSystem, NotificationReminder:
		return true
	}
	return false
}

// Notification represents an alert surfaced to a portal user about
// activity on one of their applications or complaints.
type Notification struct {
	// ID is the stable identifier used to reconcile local and server state.
	ID string `json:"id" db:"id"`

	// UserID is the owning user. The server is authoritative for it.
	UserID string `json:"userId" db:"user_id"`

	Type    NotificationType `json:"type" db:"type"`
	Title   string           `json:"title" db:"title"`
	Message string           `json:"message" db:"message"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read" db:"read"`

	// RelatedEntityID and RelatedEntityType point back at the application
	// or complaint that triggered the notification, if any.
	RelatedEntityID   string `json:"relatedEntityId,omitempty" db:"related_entity_id"`
	RelatedEntityType string `json:"relatedEntityType,omitempty" db:"related_entity_type"`

	// CreatedAt is when the notification was generated server-side.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
