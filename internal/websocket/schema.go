package websocket

// ─── Actions (Agent → Exam server) ──────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionPing     Action = "ping"
	ActionCheat    Action = "cheat"
)

// AutosaveRequest mirrors a single recorded answer to the exam server.
type AutosaveRequest struct {
	Action    Action `json:"action"`
	QID       string `json:"q_id"`
	Answer    string `json:"ans"`
	StartedAt string `json:"started_at,omitempty"`
	EndedAt   string `json:"ended_at,omitempty"`
}

// CheatRequest reports a suspicious-activity event.
type CheatRequest struct {
	Action  Action `json:"action"`
	Payload string `json:"payload"` // JSON-encoded ActivityPayload
}

// ActivityPayload is the body carried inside CheatRequest.Payload.
type ActivityPayload struct {
	Kind     string `json:"kind"`
	Count    int    `json:"count"`
	ExamType string `json:"exam_type"`
	At       string `json:"at"`
}

// PingRequest keeps the connection alive.
type PingRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Exam server → Agent) ───────────────────────────────────

type Event string

const (
	EventError   Event = "error"
	EventSuccess Event = "success"
	EventPong    Event = "pong"
)

// ServerEvent is any acknowledgement from the server. Error is set only
// for EventError.
type ServerEvent struct {
	Event  Event  `json:"event"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}
