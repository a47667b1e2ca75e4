package websocket

import "github.com/stemsi/medsurvey/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing   Action = "ping"
	ActionUpdate Action = "update"
	ActionSelect Action = "select"
)

// RequestPayload covers every client action; Key and Value are only read by
// update and select.
type RequestPayload struct {
	Action Action `json:"action"`
	Key    string `json:"key,omitempty"`
	Value  string `json:"value,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError Event = "error"
	EventPong  Event = "pong"
	EventSaved Event = "saved"
	// EventSnapshot is sent once after the upgrade with the current state.
	EventSnapshot Event = "snapshot"
)

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
	// Key names the field an update error refers to.
	Key string `json:"key,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}

type SavedResponse struct {
	Event Event  `json:"event"`
	Key   string `json:"key"`
}

type SnapshotResponse struct {
	Event      Event             `json:"event"`
	Values     map[string]string `json:"values"`
	Submitting bool              `json:"submitting"`
}

// FormEventResponse forwards a form event published by the form service.
type FormEventResponse = model.FormEvent
