package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-candidate/internal/model"
)

// Step errors. The underlying cause is wrapped alongside.
var (
	ErrResponsesFailed = errors.New("submitting responses failed")
	ErrFinalizeFailed  = errors.New("finalizing test failed")
)

// ResponsesAPI is the part of the exam server the coordinator needs.
type ResponsesAPI interface {
	SubmitResponses(ctx context.Context, t model.ExamType, req model.SubmissionRequest) error
	FinalizeTest(ctx context.Context, t model.ExamType) error
}

// CameraReleaser hands the camera back before submission.
type CameraReleaser interface {
	Release(ctx context.Context) error
}

// Coordinator runs the three-step submission: release the camera, post
// responses, then finalize. Finalize is only attempted after responses
// were accepted.
type Coordinator struct {
	examType model.ExamType
	api      ResponsesAPI
	camera   CameraReleaser
	log      zerolog.Logger
}

// New creates a coordinator. camera may be nil when proctoring is off.
func New(examType model.ExamType, api ResponsesAPI, camera CameraReleaser, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		examType: examType,
		api:      api,
		camera:   camera,
		log:      log.With().Str("component", "submission").Logger(),
	}
}

// Submit is not idempotent: every call posts req again.
func (c *Coordinator) Submit(ctx context.Context, req model.SubmissionRequest) error {
	if c.camera != nil {
		if err := c.camera.Release(ctx); err != nil {
			c.log.Warn().Err(err).Msg("Camera release failed, continuing with submission")
		}
	}

	if err := c.api.SubmitResponses(ctx, c.examType, req); err != nil {
		return fmt.Errorf("%w: %w", ErrResponsesFailed, err)
	}
	c.log.Info().Int("responses", len(req.Responses)).Msg("Responses accepted")

	if err := c.api.FinalizeTest(ctx, c.examType); err != nil {
		return fmt.Errorf("%w: %w", ErrFinalizeFailed, err)
	}
	c.log.Info().Msg("Test finalized")
	return nil
}
