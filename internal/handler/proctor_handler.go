package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-candidate/internal/model"
	"github.com/stemsi/exstem-candidate/internal/proctor"
	"github.com/stemsi/exstem-candidate/internal/response"
	"github.com/stemsi/exstem-candidate/internal/validator"
)

// ProctorCamera is the capture scheduler as seen by the control API.
type ProctorCamera interface {
	State() proctor.State
	Snapshot(ctx context.Context) ([]byte, error)
}

// ProctorHandler exposes the capture audit trail.
type ProctorHandler struct {
	audit  proctor.Audit
	camera ProctorCamera
	log    zerolog.Logger
}

// NewProctorHandler creates a new ProctorHandler. camera may be nil when
// proctoring is disabled.
func NewProctorHandler(audit proctor.Audit, camera ProctorCamera, log zerolog.Logger) *ProctorHandler {
	return &ProctorHandler{
		audit:  audit,
		camera: camera,
		log:    log.With().Str("component", "proctor_handler").Logger(),
	}
}

type capturesQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// ListCaptures godoc
// GET /api/v1/proctor/captures?limit=50
// Returns recent capture outcomes, newest first.
func (h *ProctorHandler) ListCaptures(c *gin.Context) {
	var q capturesQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if q.Limit == 0 {
		q.Limit = 50
	}

	records, err := h.audit.Recent(c.Request.Context(), q.Limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read capture audit")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if records == nil {
		records = []model.CaptureRecord{}
	}

	state := "DISABLED"
	if h.camera != nil {
		state = string(h.camera.State())
	}
	response.Success(c, http.StatusOK, gin.H{"camera_state": state, "captures": records})
}

// Preview godoc
// GET /api/v1/proctor/preview
// Returns a raw JPEG frame so the candidate can check their framing. The
// frame is not uploaded.
func (h *ProctorHandler) Preview(c *gin.Context) {
	if h.camera == nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrCameraUnavailable)
		return
	}

	frame, err := h.camera.Snapshot(c.Request.Context())
	switch {
	case err == nil:
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "image/jpeg", frame)
	case errors.Is(err, proctor.ErrCameraBusy):
		response.Fail(c, http.StatusConflict, response.ErrCameraBusy)
	default:
		h.log.Warn().Err(err).Msg("Camera preview failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrCameraUnavailable)
	}
}
