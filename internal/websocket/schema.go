package websocket

import "github.com/learnhub/learnhub-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestPayload carries every client action; fields unused by an action are ignored.
type RequestPayload struct {
	Action          Action                   `json:"action"`
	Answers         []model.SubmissionAnswer `json:"answers,omitempty"`
	DurationSeconds int                      `json:"durationSeconds,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventSaved  Event = "saved"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
)

type SavedResponse struct {
	Event Event `json:"event"`
	Saved int   `json:"saved"`
}

type GradedResponse struct {
	Event  Event                   `json:"event"`
	Result *model.SubmissionResult `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
