package model

import "time"

// CaptureKind enumerates proctoring evidence types.
type CaptureKind string

const (
	CapturePhoto CaptureKind = "photo"
	CaptureVideo CaptureKind = "video"
)

// CaptureJob is one scheduled capture.
type CaptureJob struct {
	ID                        string      `json:"id"`
	Kind                      CaptureKind `json:"kind"`
	ScheduledAtElapsedSeconds int         `json:"scheduled_at_elapsed_seconds"`
}

// CaptureOutcome enumerates how a capture job ended.
type CaptureOutcome string

const (
	CaptureUploaded CaptureOutcome = "UPLOADED"
	CaptureFailed   CaptureOutcome = "FAILED"
	CaptureDropped  CaptureOutcome = "DROPPED"
)

// CaptureRecord is an audit entry for a finished or dropped job.
type CaptureRecord struct {
	CaptureJob
	Outcome    CaptureOutcome `json:"outcome"`
	Error      string         `json:"error,omitempty"`
	Caption    string         `json:"caption,omitempty"`
	FinishedAt time.Time      `json:"finished_at"`
}
