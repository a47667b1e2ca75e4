package model

// NotificationLevel selects how the UI styles a notification.
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

// Notification is a transient, user-visible message.
type Notification struct {
	Level       NotificationLevel `json:"level"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	// DurationMS of zero leaves auto-dismiss to the UI default.
	DurationMS int `json:"duration_ms,omitempty"`
}
