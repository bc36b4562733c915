package models

import "time"

// NotificationKind groups notifications for their icon
type NotificationKind string

const (
	NotificationWelcome  NotificationKind = "welcome"
	NotificationMaterial NotificationKind = "material"
	NotificationAnnounce NotificationKind = "announcement"
)

// Notification is a message addressed to one user
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// IsUnread is true until the user marks the notification read
func (n *Notification) IsUnread() bool {
	return n.ReadAt == nil
}

// Icon returns the font-awesome icon for the notification kind
func (n *Notification) Icon() string {
	switch n.Kind {
	case NotificationWelcome:
		return "fa-hand-sparkles"
	case NotificationMaterial:
		return "fa-file-arrow-up"
	default:
		return "fa-bell"
	}
}
