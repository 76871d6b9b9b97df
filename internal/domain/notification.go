package domain

import "time"

// NotificationKind classifies a notification for the dashboard.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notification is a message shown to the owner of a generation.
type Notification struct {
	ID        string           `json:"id"`
	OwnerID   string           `json:"-"`
	Kind      NotificationKind `json:"type"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// Identity is the caller authenticated by the external identity provider.
type Identity struct {
	UserID string
	Email  string
	Role   string
	Locale string
}
