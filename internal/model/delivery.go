package model

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryOutcome is the resolution of one submission attempt.
type DeliveryOutcome string

const (
	DeliveryDelivered DeliveryOutcome = "DELIVERED"
	DeliveryRejected  DeliveryOutcome = "REJECTED"
	DeliveryFailed    DeliveryOutcome = "FAILED"
)

// Delivery is the audit record of one outbound submission. It never carries
// answer values.
type Delivery struct {
	ID         uuid.UUID       `json:"id"`
	FormID     string          `json:"form_id"`
	Variant    string          `json:"variant"`
	Outcome    DeliveryOutcome `json:"outcome"`
	StatusCode int             `json:"status_code,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}
