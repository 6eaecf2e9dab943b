package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-candidate/internal/metrics"
	"github.com/stemsi/exstem-candidate/internal/model"
	"github.com/stemsi/exstem-candidate/internal/proctor"
)

// Phase enumerates the exam session lifecycle.
type Phase string

const (
	PhaseLoading    Phase = "LOADING"
	PhaseRunning    Phase = "RUNNING"
	PhaseSubmitting Phase = "SUBMITTING"
	PhaseCompleted  Phase = "COMPLETED"
	PhaseFailed     Phase = "FAILED"
)

// Session errors.
var (
	ErrNotRunning       = errors.New("exam session is not running")
	ErrSubmitInFlight   = errors.New("submission already in progress")
	ErrAlreadyCompleted = errors.New("exam already submitted")
	ErrIncomplete       = errors.New("not all questions are answered")
	ErrTimeUp           = errors.New("exam time is over")
	ErrLeaveBlocked     = errors.New("leaving the exam before submission is not allowed")
	ErrEmptyExam        = errors.New("exam has no questions")
)

// IncompleteError is returned when a user submit is gated. Next points at
// the first question needing attention.
type IncompleteError struct {
	Next    int
	Summary model.SubmissionSummary
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: %d of %d answered, next unresolved %d",
		ErrIncomplete, e.Summary.Answered, e.Summary.Total, e.Next)
}

// Is makes errors.Is(err, ErrIncomplete) hold.
func (e *IncompleteError) Is(target error) bool { return target == ErrIncomplete }

// ContentAPI fetches exam questions.
type ContentAPI interface {
	FetchExam(ctx context.Context, t model.ExamType) ([]model.Question, error)
}

// Submitter finalises an exam attempt.
type Submitter interface {
	Submit(ctx context.Context, req model.SubmissionRequest) error
}

// Proctor is the background capture scheduler.
type Proctor interface {
	Start(ctx context.Context) error
}

// AnswerSyncer receives best-effort copies of recorded answers.
type AnswerSyncer interface {
	Enqueue(resp model.Response)
}

// ActivityReporter receives suspicious-activity events.
type ActivityReporter interface {
	ReportActivity(kind string, count int)
}

// Params are handed over by the screen that launches the exam.
type Params struct {
	ExamType                    model.ExamType
	DurationSeconds             int
	PhotosRequired              bool
	VideoRequired               bool
	SuspiciousActivityDetection bool
	LogoURL                     string
}

// Deps are the collaborators of a Session. Proctor, Syncer, Activity,
// Metrics and OnCompleted may be nil.
type Deps struct {
	Content     ContentAPI
	Submitter   Submitter
	Proctor     Proctor
	Syncer      AnswerSyncer
	Activity    ActivityReporter
	Metrics     *metrics.Metrics
	TickSource  TickSource
	Now         func() time.Time
	OnCompleted func()
}

// Session is the exam-session aggregate. It owns the ledger and the timer
// and starts the proctoring scheduler; every exported method is safe for
// concurrent use.
type Session struct {
	params Params
	deps   Deps
	log    zerolog.Logger
	timer  *Timer

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu           sync.Mutex
	phase        Phase
	ledger       *Ledger
	remaining    int
	lastErr      error
	warnings     int
	backgrounded bool
	submitDone   chan struct{}
}

// New creates a session in the Loading phase.
func New(params Params, deps Deps, log zerolog.Logger) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		params:     params,
		deps:       deps,
		log:        log.With().Str("component", "exam_session").Str("exam_type", string(params.ExamType)).Logger(),
		baseCtx:    ctx,
		baseCancel: cancel,
		phase:      PhaseLoading,
		remaining:  params.DurationSeconds,
	}
	s.timer = NewTimer(deps.TickSource, s.onTick, s.onExpire)
	return s
}

// Load fetches the exam content and starts the clock. A failed fetch
// leaves the session in Failed; the caller decides whether to call Load
// again.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseLoading && s.phase != PhaseFailed {
		s.mu.Unlock()
		return fmt.Errorf("load in phase %s: %w", s.phase, ErrNotRunning)
	}
	s.phase = PhaseLoading
	s.mu.Unlock()

	questions, err := s.deps.Content.FetchExam(ctx, s.params.ExamType)
	if err != nil {
		s.mu.Lock()
		s.phase = PhaseFailed
		s.lastErr = err
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("Exam fetch failed")
		return fmt.Errorf("fetch exam: %w", err)
	}

	if len(questions) == 0 {
		err = ErrEmptyExam
	}
	ledger := NewLedger(questions, s.deps.Now)
	if err == nil {
		err = ledger.GoTo(0)
	}
	if err != nil {
		s.mu.Lock()
		s.phase = PhaseFailed
		s.lastErr = err
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("Exam content unusable")
		return fmt.Errorf("load exam: %w", err)
	}

	s.mu.Lock()
	s.ledger = ledger
	s.remaining = s.params.DurationSeconds
	s.lastErr = nil
	s.phase = PhaseRunning
	s.mu.Unlock()

	if err := s.timer.Start(s.params.DurationSeconds); err != nil {
		s.mu.Lock()
		s.phase = PhaseFailed
		s.lastErr = err
		s.mu.Unlock()
		return fmt.Errorf("start timer: %w", err)
	}
	s.deps.Metrics.SetRemaining(s.params.DurationSeconds)

	s.log.Info().
		Int("questions", len(questions)).
		Int("duration_s", s.params.DurationSeconds).
		Bool("photos", s.params.PhotosRequired).
		Bool("video", s.params.VideoRequired).
		Msg("Exam started")

	s.startProctor()
	return nil
}

// startProctor launches the capture scheduler when the exam requires it.
func (s *Session) startProctor() {
	if s.deps.Proctor == nil || !(s.params.PhotosRequired || s.params.VideoRequired) {
		return
	}
	go func() {
		err := s.deps.Proctor.Start(s.baseCtx)
		switch {
		case err == nil:
		case errors.Is(err, proctor.ErrAlreadyStarted):
			s.log.Debug().Msg("Proctoring already running")
		default:
			s.log.Warn().Err(err).Msg("Proctoring inactive")
		}
	}()
}

func (s *Session) onTick(remaining int) {
	s.mu.Lock()
	s.remaining = remaining
	s.mu.Unlock()
	s.deps.Metrics.SetRemaining(remaining)
}

func (s *Session) onExpire() {
	s.log.Warn().Msg("Time is up, submitting automatically")
	go func() {
		if err := s.submit(s.baseCtx, true); err != nil && !errors.Is(err, ErrSubmitInFlight) {
			s.log.Error().Err(err).Msg("Automatic submission failed")
		}
	}()
}

// runningLedger returns the ledger when mutations are allowed. Caller holds mu.
func (s *Session) runningLedger() (*Ledger, error) {
	if s.phase != PhaseRunning {
		return nil, fmt.Errorf("%w (phase %s)", ErrNotRunning, s.phase)
	}
	return s.ledger, nil
}

// GoTo moves to the question at index.
func (s *Session) GoTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.runningLedger()
	if err != nil {
		return err
	}
	return l.GoTo(index)
}

// Next moves forward one question; it is a no-op on the last question.
func (s *Session) Next() (int, error) {
	return s.step(1)
}

// Prev moves back one question; it is a no-op on the first question.
func (s *Session) Prev() (int, error) {
	return s.step(-1)
}

func (s *Session) step(delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.runningLedger()
	if err != nil {
		return 0, err
	}
	target := l.Current() + delta
	if target < 0 || target >= l.Len() {
		return l.Current(), nil
	}
	return target, l.GoTo(target)
}

// Answer records answerID for questionID and hands a copy to the syncer.
func (s *Session) Answer(questionID, answerID string) error {
	s.mu.Lock()
	l, err := s.runningLedger()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.remaining <= 0 {
		s.mu.Unlock()
		return ErrTimeUp
	}
	entry, err := l.RecordAnswer(questionID, answerID)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.deps.Syncer != nil {
		s.deps.Syncer.Enqueue(toResponse(questionID, entry))
	}
	return nil
}

// ToggleReview flips the review mark on the question at index.
func (s *Session) ToggleReview(index int) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.runningLedger()
	if err != nil {
		return "", err
	}
	return l.ToggleReview(index)
}

// Summary returns the counts shown in the submit confirmation.
func (s *Session) Summary() (model.SubmissionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ledger == nil {
		return model.SubmissionSummary{}, ErrNotRunning
	}
	return s.ledger.Summary(), nil
}

// Submit is the candidate-initiated submission. It is refused while any
// question is unanswered; review marks on answered questions do not block.
func (s *Session) Submit(ctx context.Context) error {
	return s.submit(ctx, false)
}

func (s *Session) submit(ctx context.Context, force bool) error {
	s.mu.Lock()
	switch s.phase {
	case PhaseRunning:
	case PhaseSubmitting:
		s.mu.Unlock()
		return ErrSubmitInFlight
	case PhaseCompleted:
		s.mu.Unlock()
		return ErrAlreadyCompleted
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w (phase %s)", ErrNotRunning, s.phase)
	}

	// Once time is up the gate no longer applies; a retry after a failed
	// automatic submission sends whatever was answered.
	if !force && s.remaining > 0 && !s.ledger.AllAnswered() {
		next, _ := s.ledger.NextUnresolved(s.ledger.Current())
		err := &IncompleteError{Next: next, Summary: s.ledger.Summary()}
		s.mu.Unlock()
		return err
	}

	s.phase = PhaseSubmitting
	s.submitDone = make(chan struct{})
	done := s.submitDone
	req := s.ledger.Snapshot()
	s.mu.Unlock()
	defer close(done)

	s.log.Info().
		Bool("automatic", force).
		Int("responses", len(req.Responses)).
		Msg("Submitting exam")

	if err := s.deps.Submitter.Submit(ctx, req); err != nil {
		s.mu.Lock()
		s.phase = PhaseRunning
		s.lastErr = err
		s.mu.Unlock()
		s.deps.Metrics.Submission(false)
		s.log.Error().Err(err).Msg("Submission failed, session remains open")
		// The submission released the camera; the exam is still proctored.
		s.startProctor()
		return err
	}

	s.mu.Lock()
	s.phase = PhaseCompleted
	s.lastErr = nil
	s.mu.Unlock()
	s.deps.Metrics.Submission(true)

	s.timer.Cancel()
	s.baseCancel()
	s.log.Info().Msg("Exam submitted")

	if s.deps.OnCompleted != nil {
		s.deps.OnCompleted()
	}
	return nil
}

// WaitSubmission blocks until an in-flight submission finishes or ctx ends.
func (s *Session) WaitSubmission(ctx context.Context) error {
	s.mu.Lock()
	done := s.submitDone
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Background records that the app left the foreground. The clock keeps
// running; the event only raises a warning, reported to the server when
// suspicious-activity detection is on.
func (s *Session) Background() int {
	s.mu.Lock()
	if s.backgrounded || s.phase != PhaseRunning {
		n := s.warnings
		s.mu.Unlock()
		return n
	}
	s.backgrounded = true
	s.warnings++
	n := s.warnings
	s.mu.Unlock()

	s.log.Warn().Int("warnings", n).Msg("Exam app moved to background")
	if s.params.SuspiciousActivityDetection && s.deps.Activity != nil {
		s.deps.Activity.ReportActivity("background", n)
	}
	return n
}

// Foreground records that the app is visible again.
func (s *Session) Foreground() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backgrounded = false
}

// LeaveAttempt is consulted by navigation and the hardware back button.
// Before completion the only way out is a successful submission.
func (s *Session) LeaveAttempt() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseCompleted {
		s.log.Warn().Str("phase", string(s.phase)).Msg("Blocked attempt to leave exam")
		return ErrLeaveBlocked
	}
	return nil
}

// Close tears the session down on process shutdown without submitting.
func (s *Session) Close() {
	s.timer.Cancel()
	s.baseCancel()
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Params returns the launch parameters.
func (s *Session) Params() Params { return s.params }
