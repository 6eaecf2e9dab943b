package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/exstem-candidate/internal/model"
)

// Ledger errors.
var (
	ErrIndexOutOfRange = errors.New("question index out of range")
	ErrUnknownQuestion = errors.New("unknown question")
	ErrUnknownOption   = errors.New("option does not belong to question")
)

// Status is the per-question status shown in the question palette.
type Status string

const (
	StatusDefault         Status = "default"
	StatusAnswered        Status = "answered"
	StatusMarkedForReview Status = "markForReview"
)

// Entry is the ledger record of one question. Created lazily.
type Entry struct {
	AnswerID  string
	Status    Status
	StartedAt time.Time
	EndedAt   time.Time
}

// Answered reports whether an option has been chosen.
func (e Entry) Answered() bool { return e.AnswerID != "" }

// Ledger tracks navigation, answers and per-question timing.
// It is not safe for concurrent use; Session serialises access.
type Ledger struct {
	questions []model.Question
	position  map[string]int
	entries   map[string]*Entry
	current   int
	now       func() time.Time
}

// NewLedger builds a ledger over questions in exam order.
func NewLedger(questions []model.Question, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	position := make(map[string]int, len(questions))
	for i, q := range questions {
		position[q.ID] = i
	}
	return &Ledger{
		questions: questions,
		position:  position,
		entries:   make(map[string]*Entry, len(questions)),
		now:       now,
	}
}

// Len returns the number of questions.
func (l *Ledger) Len() int { return len(l.questions) }

// Current returns the index of the question on screen.
func (l *Ledger) Current() int { return l.current }

// Question returns the question at index.
func (l *Ledger) Question(index int) (model.Question, error) {
	if index < 0 || index >= len(l.questions) {
		return model.Question{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return l.questions[index], nil
}

// Questions returns the exam questions in order.
func (l *Ledger) Questions() []model.Question { return l.questions }

func (l *Ledger) entry(questionID string) *Entry {
	e, ok := l.entries[questionID]
	if !ok {
		e = &Entry{Status: StatusDefault}
		l.entries[questionID] = e
	}
	return e
}

// GoTo makes index current and stamps its first visit.
func (l *Ledger) GoTo(index int) error {
	if index < 0 || index >= len(l.questions) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	l.current = index

	e := l.entry(l.questions[index].ID)
	if e.StartedAt.IsZero() {
		e.StartedAt = l.now()
	}
	return nil
}

// RecordAnswer stores answerID for questionID. EndedAt moves to now on
// every call; StartedAt is backfilled if the question was never visited.
func (l *Ledger) RecordAnswer(questionID, answerID string) (Entry, error) {
	pos, ok := l.position[questionID]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if !l.questions[pos].HasOption(answerID) {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownOption, answerID)
	}

	now := l.now()
	e := l.entry(questionID)
	if e.StartedAt.IsZero() {
		e.StartedAt = now
	}
	e.EndedAt = now
	e.AnswerID = answerID
	e.Status = StatusAnswered
	return *e, nil
}

// ToggleReview flips the review mark of the question at index. The chosen
// answer survives: unmarking an answered question restores Answered.
func (l *Ledger) ToggleReview(index int) (Status, error) {
	if index < 0 || index >= len(l.questions) {
		return "", fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	e := l.entry(l.questions[index].ID)
	switch {
	case e.Status != StatusMarkedForReview:
		e.Status = StatusMarkedForReview
	case e.Answered():
		e.Status = StatusAnswered
	default:
		e.Status = StatusDefault
	}
	return e.Status, nil
}

// Entry returns a copy of the ledger record for questionID.
func (l *Ledger) Entry(questionID string) (Entry, bool) {
	e, ok := l.entries[questionID]
	if !ok {
		return Entry{Status: StatusDefault}, false
	}
	return *e, true
}

// Status returns the status of the question at index.
func (l *Ledger) Status(index int) Status {
	if index < 0 || index >= len(l.questions) {
		return StatusDefault
	}
	e, _ := l.Entry(l.questions[index].ID)
	return e.Status
}

// Statuses returns every question status in exam order.
func (l *Ledger) Statuses() []Status {
	out := make([]Status, len(l.questions))
	for i := range l.questions {
		out[i] = l.Status(i)
	}
	return out
}

// AllAnswered reports whether every question has an answer.
func (l *Ledger) AllAnswered() bool {
	for _, q := range l.questions {
		if e, ok := l.entries[q.ID]; !ok || !e.Answered() {
			return false
		}
	}
	return true
}

// NextUnresolved returns the next index after from, wrapping around and
// ending at from itself, whose question is unanswered or marked for
// review. ok is false when every question is resolved.
func (l *Ledger) NextUnresolved(from int) (index int, ok bool) {
	n := len(l.questions)
	if n == 0 {
		return -1, false
	}
	for step := 1; step <= n; step++ {
		i := ((from+step)%n + n) % n
		e, _ := l.Entry(l.questions[i].ID)
		if !e.Answered() || e.Status == StatusMarkedForReview {
			return i, true
		}
	}
	return -1, false
}

// Summary counts answered and marked questions.
func (l *Ledger) Summary() model.SubmissionSummary {
	s := model.SubmissionSummary{Total: len(l.questions)}
	for _, q := range l.questions {
		e, _ := l.Entry(q.ID)
		if e.Answered() {
			s.Answered++
		}
		if e.Status == StatusMarkedForReview {
			s.Marked++
		}
	}
	s.Unanswered = s.Total - s.Answered
	return s
}

// Snapshot builds the submission payload from answered questions, in
// exam order. The returned request shares nothing with the ledger.
func (l *Ledger) Snapshot() model.SubmissionRequest {
	responses := make([]model.Response, 0, len(l.entries))
	for _, q := range l.questions {
		e, ok := l.entries[q.ID]
		if !ok || !e.Answered() {
			continue
		}
		responses = append(responses, toResponse(q.ID, *e))
	}
	return model.SubmissionRequest{Responses: responses}
}

func toResponse(questionID string, e Entry) model.Response {
	return model.Response{
		QuestionID: questionID,
		AnswerID:   e.AnswerID,
		StartedAt:  formatTimestamp(e.StartedAt),
		EndedAt:    formatTimestamp(e.EndedAt),
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(model.TimestampLayout)
}
