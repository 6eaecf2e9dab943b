package model

// Response is one answered question in a submission payload.
// Timestamps are ISO-8601 (RFC 3339, UTC, millisecond precision).
type Response struct {
	QuestionID string `json:"questionId"`
	AnswerID   string `json:"answerId"`
	StartedAt  string `json:"startedAt"`
	EndedAt    string `json:"endedAt"`
}

// SubmissionRequest is the body of the submit-responses call. It is built
// once from a ledger snapshot and never mutated afterwards.
type SubmissionRequest struct {
	Responses []Response `json:"responses"`
}

// SubmissionSummary is shown to the candidate before confirming submission.
type SubmissionSummary struct {
	Total      int `json:"total"`
	Answered   int `json:"answered"`
	Marked     int `json:"marked_for_review"`
	Unanswered int `json:"unanswered"`
}

// TimestampLayout is the ISO-8601 layout used on the wire.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
