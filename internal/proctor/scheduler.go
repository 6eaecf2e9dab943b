package proctor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-candidate/internal/device"
	"github.com/stemsi/exstem-candidate/internal/metrics"
	"github.com/stemsi/exstem-candidate/internal/model"
)

// Scheduler errors.
var (
	ErrNothingToCapture  = errors.New("neither photos nor video are required")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrCameraNotReady    = errors.New("camera not ready")
	ErrModeSwitchTimeout = errors.New("camera mode switch timed out")
	ErrCameraBusy        = errors.New("camera busy")
	ErrStopped           = errors.New("capture scheduler stopped")
	ErrAlreadyStarted    = errors.New("capture scheduler already started")
)

// State is the camera state machine position.
type State string

const (
	StateIdle          State = "IDLE"
	StateModeSwitching State = "MODE_SWITCHING"
	StateCapturing     State = "CAPTURING"
	StateUploading     State = "UPLOADING"
)

// Uploader sends evidence to the exam server.
type Uploader interface {
	UploadPhoto(ctx context.Context, t model.ExamType, jpeg []byte) error
	UploadVideo(ctx context.Context, t model.ExamType, clip io.Reader) error
}

// TickSource yields a 1-second tick channel and its stop function.
type TickSource func() (<-chan time.Time, func())

func secondTicks() (<-chan time.Time, func()) {
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

// Options configure a Scheduler.
type Options struct {
	ExamType           model.ExamType
	Photos             bool
	Video              bool
	Policy             Policy
	ModeSwitchTimeout  time.Duration
	CameraReadyTimeout time.Duration
	PollInterval       time.Duration
	StopTimeout        time.Duration
}

func (o *Options) setDefaults() {
	if o.Policy == (Policy{}) {
		o.Policy = DefaultPolicy()
	}
	if o.ModeSwitchTimeout <= 0 {
		o.ModeSwitchTimeout = 3 * time.Second
	}
	if o.CameraReadyTimeout <= 0 {
		o.CameraReadyTimeout = 10 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 5 * time.Second
	}
}

// Deps are the collaborators of a Scheduler. Locator, Audit, Metrics,
// Ticks and Now may be nil. OpenCamera reacquires the camera when Start
// follows a Release; without it the scheduler cannot restart.
type Deps struct {
	Camera      device.Camera
	OpenCamera  func() (device.Camera, error)
	Permissions device.Permissions
	Locator     device.Locator
	Uploader    Uploader
	Audit       Audit
	Metrics     *metrics.Metrics
	Ticks       TickSource
	Now         func() time.Time
}

// Scheduler runs periodic photo and video captures during an exam. At
// most one job owns the camera; ticks that find it busy are dropped.
type Scheduler struct {
	opts Options
	deps Deps
	log  zerolog.Logger

	mu         sync.Mutex
	camera     device.Camera
	state      State
	started    bool
	released   bool
	stopped    bool
	loopCancel context.CancelFunc
	loopDone   chan struct{}
	jobCancel  context.CancelFunc
	jobDone    chan struct{}
	userHeld   bool
}

// NewScheduler creates an idle scheduler owning deps.Camera.
func NewScheduler(opts Options, deps Deps, log zerolog.Logger) *Scheduler {
	opts.setDefaults()
	if deps.Ticks == nil {
		deps.Ticks = secondTicks
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Scheduler{
		opts:   opts,
		deps:   deps,
		log:    log.With().Str("component", "proctor").Str("exam_type", string(opts.ExamType)).Logger(),
		camera: deps.Camera,
		state:  StateIdle,
	}
}

// State returns the camera state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start checks permissions and camera readiness, then begins the capture
// loop in the background. It returns once the loop is running. After a
// Release the camera is reopened and capturing resumes.
func (s *Scheduler) Start(ctx context.Context) (err error) {
	if !s.opts.Photos && !s.opts.Video {
		return ErrNothingToCapture
	}

	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		return ErrStopped
	case s.started:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.released = false
	cam := s.camera
	s.mu.Unlock()

	defer func() {
		if err != nil {
			s.mu.Lock()
			s.started = false
			s.mu.Unlock()
		}
	}()

	for _, p := range []device.Permission{device.PermissionCamera, device.PermissionMicrophone, device.PermissionLocation} {
		granted, err := s.deps.Permissions.Request(ctx, p)
		if err != nil {
			return fmt.Errorf("request %s permission: %w", p, err)
		}
		if !granted {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, p)
		}
	}

	if cam == nil {
		if cam, err = s.reopen(); err != nil {
			return err
		}
	}
	if err := s.poll(ctx, s.opts.CameraReadyTimeout, cam.Ready); err != nil {
		if errors.Is(err, errPollTimeout) {
			return ErrCameraNotReady
		}
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	if s.stopped || s.released {
		s.mu.Unlock()
		cancel()
		return ErrStopped
	}
	s.loopCancel = cancel
	s.loopDone = done
	s.mu.Unlock()

	ticks, stopTicks := s.deps.Ticks()
	go s.loop(loopCtx, ticks, stopTicks, done)

	s.log.Info().
		Bool("photos", s.opts.Photos).
		Bool("video", s.opts.Video).
		Msg("Proctoring started")
	return nil
}

// reopen acquires a fresh camera handle after a Release.
func (s *Scheduler) reopen() (device.Camera, error) {
	if s.deps.OpenCamera == nil {
		return nil, device.ErrCameraReleased
	}
	cam, err := s.deps.OpenCamera()
	if err != nil {
		return nil, fmt.Errorf("reopen camera: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.released {
		_ = cam.Release()
		return nil, ErrStopped
	}
	s.camera = cam
	return cam, nil
}

func (s *Scheduler) loop(ctx context.Context, ticks <-chan time.Time, stopTicks func(), done chan struct{}) {
	defer close(done)
	defer stopTicks()

	elapsed := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
		}
		elapsed++

		kind, collided, ok := s.opts.Policy.Due(elapsed, s.opts.Photos, s.opts.Video)
		if !ok {
			continue
		}
		if collided {
			s.drop(ctx, model.CaptureJob{ID: uuid.NewString(), Kind: model.CaptureVideo, ScheduledAtElapsedSeconds: elapsed}, "photo scheduled on the same tick")
		}
		s.dispatch(ctx, model.CaptureJob{ID: uuid.NewString(), Kind: kind, ScheduledAtElapsedSeconds: elapsed})
	}
}

// dispatch starts job if the camera is idle, otherwise drops it.
func (s *Scheduler) dispatch(ctx context.Context, job model.CaptureJob) {
	s.mu.Lock()
	if s.stopped || s.released || s.camera == nil {
		s.mu.Unlock()
		return
	}
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		s.drop(ctx, job, "camera "+string(state))
		return
	}

	// Jobs outlive a loop cancellation so Stop can give them a grace period.
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	cam := s.camera
	s.state = StateModeSwitching
	s.jobCancel = cancel
	s.jobDone = done
	s.mu.Unlock()

	go s.runJob(jobCtx, cancel, done, cam, job)
}

func (s *Scheduler) drop(ctx context.Context, job model.CaptureJob, reason string) {
	s.deps.Metrics.DroppedTick(string(job.Kind))
	s.log.Debug().
		Str("kind", string(job.Kind)).
		Int("elapsed_s", job.ScheduledAtElapsedSeconds).
		Str("reason", reason).
		Msg("Capture tick dropped")
	s.audit(ctx, model.CaptureRecord{CaptureJob: job, Outcome: model.CaptureDropped, Error: reason})
}

func (s *Scheduler) runJob(ctx context.Context, cancel context.CancelFunc, done chan struct{}, cam device.Camera, job model.CaptureJob) {
	defer func() {
		cancel()
		s.mu.Lock()
		s.state = StateIdle
		s.jobCancel = nil
		s.jobDone = nil
		s.mu.Unlock()
		close(done)
	}()

	var (
		caption string
		err     error
	)
	switch job.Kind {
	case model.CapturePhoto:
		caption, err = s.capturePhoto(ctx, cam)
	case model.CaptureVideo:
		err = s.captureVideo(ctx, cam)
	}

	rec := model.CaptureRecord{CaptureJob: job, Outcome: model.CaptureUploaded, Caption: caption}
	if err != nil {
		rec.Outcome = model.CaptureFailed
		rec.Error = err.Error()
		s.log.Warn().Err(err).
			Str("kind", string(job.Kind)).
			Int("elapsed_s", job.ScheduledAtElapsedSeconds).
			Msg("Capture failed")
	} else {
		s.log.Debug().
			Str("kind", string(job.Kind)).
			Int("elapsed_s", job.ScheduledAtElapsedSeconds).
			Msg("Capture uploaded")
	}
	s.deps.Metrics.Capture(string(job.Kind), string(rec.Outcome))
	s.audit(ctx, rec)
}

func (s *Scheduler) capturePhoto(ctx context.Context, cam device.Camera) (string, error) {
	if err := s.switchMode(ctx, cam, device.ModePhoto); err != nil {
		return "", err
	}
	s.setState(StateCapturing)

	caption := Caption(s.address(ctx), s.deps.Now())
	frame, err := cam.TakePicture(ctx)
	if err != nil {
		return caption, fmt.Errorf("take picture: %w", err)
	}
	annotated, err := Annotate(frame, caption)
	if err != nil {
		s.log.Warn().Err(err).Msg("Caption not applied, uploading raw frame")
		annotated = frame
	}

	s.setState(StateUploading)
	if err := s.deps.Uploader.UploadPhoto(ctx, s.opts.ExamType, annotated); err != nil {
		return caption, fmt.Errorf("upload photo: %w", err)
	}
	return caption, nil
}

func (s *Scheduler) captureVideo(ctx context.Context, cam device.Camera) error {
	if err := s.switchMode(ctx, cam, device.ModeVideo); err != nil {
		return err
	}
	s.setState(StateCapturing)

	clip, err := cam.Record(ctx, s.opts.Policy.VideoClipLength)
	if err != nil {
		return fmt.Errorf("record clip: %w", err)
	}

	s.setState(StateUploading)
	if err := s.deps.Uploader.UploadVideo(ctx, s.opts.ExamType, bytes.NewReader(clip)); err != nil {
		return fmt.Errorf("upload video: %w", err)
	}
	return nil
}

func (s *Scheduler) switchMode(ctx context.Context, cam device.Camera, mode device.Mode) error {
	if cam.Mode() == mode {
		return nil
	}
	cam.SetMode(mode)
	err := s.poll(ctx, s.opts.ModeSwitchTimeout, func() bool { return cam.Mode() == mode })
	if errors.Is(err, errPollTimeout) {
		return fmt.Errorf("%w: %s", ErrModeSwitchTimeout, mode)
	}
	return err
}

// address resolves the caption location; any failure yields an empty
// address.
func (s *Scheduler) address(ctx context.Context) device.Address {
	if s.deps.Locator == nil {
		return device.Address{}
	}
	pos, err := s.deps.Locator.CurrentPosition(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("No location fix")
		return device.Address{}
	}
	addr, err := s.deps.Locator.ReverseGeocode(ctx, pos)
	if err != nil {
		s.log.Debug().Err(err).Msg("Reverse geocoding failed")
		return device.Address{}
	}
	return addr
}

func (s *Scheduler) audit(ctx context.Context, rec model.CaptureRecord) {
	if s.deps.Audit == nil {
		return
	}
	rec.FinishedAt = s.deps.Now().UTC()
	if err := s.deps.Audit.Record(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Warn().Err(err).Msg("Capture audit write failed")
	}
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

var errPollTimeout = errors.New("poll timeout")

// poll checks cond every PollInterval until it holds or timeout elapses.
func (s *Scheduler) poll(ctx context.Context, timeout time.Duration, cond func() bool) error {
	if cond() {
		return nil
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errPollTimeout
		case <-ticker.C:
			if cond() {
				return nil
			}
		}
	}
}

// Exclusive runs fn with the camera while holding the Idle slot, so
// user-driven camera actions never collide with a scheduled capture. Stop
// and Release wait for fn before the camera is let go.
func (s *Scheduler) Exclusive(ctx context.Context, fn func(ctx context.Context, cam device.Camera) error) error {
	s.mu.Lock()
	if s.stopped || s.released || s.camera == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrCameraBusy
	}
	fnCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.state = StateCapturing
	s.jobCancel = cancel
	s.jobDone = done
	s.userHeld = true
	cam := s.camera
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.state = StateIdle
		s.jobCancel = nil
		s.jobDone = nil
		s.userHeld = false
		s.mu.Unlock()
		close(done)
	}()
	return fn(fnCtx, cam)
}

// Snapshot returns a raw preview frame for the candidate, outside the
// capture schedule. It fails with ErrCameraBusy while a capture runs.
func (s *Scheduler) Snapshot(ctx context.Context) ([]byte, error) {
	var frame []byte
	err := s.Exclusive(ctx, func(ctx context.Context, cam device.Camera) error {
		if err := s.switchMode(ctx, cam, device.ModePhoto); err != nil {
			return err
		}
		f, err := cam.TakePicture(ctx)
		if err != nil {
			return fmt.Errorf("take picture: %w", err)
		}
		frame = f
		return nil
	})
	return frame, err
}

// Stop ends the capture loop and releases the camera for good. Safe to
// call more than once.
func (s *Scheduler) Stop(ctx context.Context) error {
	return s.halt(ctx, true)
}

// Release hands the camera back, e.g. before submission. Unlike Stop, a
// later Start reopens the camera and resumes capturing.
func (s *Scheduler) Release(ctx context.Context) error {
	return s.halt(ctx, false)
}

// halt stops the loop and lets go of the camera. A scheduled recording in
// flight is stopped first; an in-flight job or user action gets
// StopTimeout to finish before it is cancelled.
func (s *Scheduler) halt(ctx context.Context, final bool) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	if final {
		s.stopped = true
	} else {
		s.released = true
	}
	cam := s.camera
	userHeld := s.userHeld
	loopCancel, loopDone := s.loopCancel, s.loopDone
	s.loopCancel, s.loopDone = nil, nil
	s.mu.Unlock()

	// A user action keeps its recording; it is waited for below.
	if cam != nil && !userHeld {
		cam.StopRecording()
	}
	if loopCancel != nil {
		loopCancel()
		<-loopDone
	}

	s.mu.Lock()
	jobCancel, jobDone := s.jobCancel, s.jobDone
	s.mu.Unlock()

	if jobDone != nil {
		if !s.wait(ctx, jobDone) {
			s.log.Warn().Msg("Camera still in use, cancelling")
			jobCancel()
			s.wait(ctx, jobDone)
		}
	}

	s.mu.Lock()
	s.camera = nil
	s.started = false
	s.mu.Unlock()

	if cam == nil {
		return nil
	}
	if err := cam.Release(); err != nil {
		return fmt.Errorf("release camera: %w", err)
	}
	if final {
		s.log.Info().Msg("Proctoring stopped")
	} else {
		s.log.Info().Msg("Camera released")
	}
	return nil
}

func (s *Scheduler) wait(ctx context.Context, done <-chan struct{}) bool {
	t := time.NewTimer(s.opts.StopTimeout)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}
