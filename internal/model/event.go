package model

// FormEventType names the events streamed to a form instance's subscribers.
type FormEventType string

const (
	FormEventSubmitting   FormEventType = "submitting"
	FormEventNotification FormEventType = "notification"
	FormEventState        FormEventType = "state"
)

// FormEvent is published on the instance's channel whenever its submitting
// flag flips, a notification is raised or its values are replaced.
type FormEvent struct {
	Event        FormEventType     `json:"event"`
	Submitting   *bool             `json:"submitting,omitempty"`
	Notification *Notification     `json:"notification,omitempty"`
	Values       map[string]string `json:"values,omitempty"`
}
