package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-candidate/internal/auth"
	"github.com/stemsi/exstem-candidate/internal/examapi"
	"github.com/stemsi/exstem-candidate/internal/response"
	"github.com/stemsi/exstem-candidate/internal/session"
	"github.com/stemsi/exstem-candidate/internal/submission"
	"github.com/stemsi/exstem-candidate/internal/validator"
)

const submitTimeout = 2 * time.Minute

// SessionHandler exposes the exam session to the kiosk UI.
type SessionHandler struct {
	session *session.Session
	log     zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(s *session.Session, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		session: s,
		log:     log.With().Str("component", "session_handler").Logger(),
	}
}

type questionURI struct {
	Index int `uri:"index" binding:"min=0"`
}

type questionQuery struct {
	Lang string `form:"lang" binding:"omitempty,max=8"`
}

type indexRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

type answerRequest struct {
	QuestionID string `json:"question_id" binding:"required,notblank"`
	AnswerID   string `json:"answer_id" binding:"required,notblank"`
}

type submitRequest struct {
	Confirm bool `json:"confirm"`
}

type lifecycleRequest struct {
	State string `json:"state" binding:"required,oneof=background foreground"`
}

// GetState godoc
// GET /api/v1/session
func (h *SessionHandler) GetState(c *gin.Context) {
	response.Success(c, http.StatusOK, h.session.State())
}

// GetQuestion godoc
// GET /api/v1/session/questions/:index?lang=hi
// Returns the question localized to lang, falling back to English.
func (h *SessionHandler) GetQuestion(c *gin.Context) {
	var uri questionURI
	if fields := validator.BindURI(c, &uri); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	var query questionQuery
	if fields := validator.BindQuery(c, &query); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.session.Question(uri.Index, query.Lang)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, q)
}

// GetLanguages godoc
// GET /api/v1/session/languages
func (h *SessionHandler) GetLanguages(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"languages": h.session.Languages()})
}

// GoTo godoc
// POST /api/v1/session/goto
func (h *SessionHandler) GoTo(c *gin.Context) {
	var req indexRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := h.session.GoTo(*req.Index); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"current_index": *req.Index})
}

// Next godoc
// POST /api/v1/session/next
func (h *SessionHandler) Next(c *gin.Context) {
	idx, err := h.session.Next()
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"current_index": idx})
}

// Prev godoc
// POST /api/v1/session/prev
func (h *SessionHandler) Prev(c *gin.Context) {
	idx, err := h.session.Prev()
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"current_index": idx})
}

// Answer godoc
// POST /api/v1/session/answer
func (h *SessionHandler) Answer(c *gin.Context) {
	var req answerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if err := h.session.Answer(req.QuestionID, req.AnswerID); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question_id": req.QuestionID, "answer_id": req.AnswerID})
}

// ToggleReview godoc
// POST /api/v1/session/review
func (h *SessionHandler) ToggleReview(c *gin.Context) {
	var req indexRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	status, err := h.session.ToggleReview(*req.Index)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"index": *req.Index, "status": status})
}

// GetSummary godoc
// GET /api/v1/session/summary
func (h *SessionHandler) GetSummary(c *gin.Context) {
	sum, err := h.session.Summary()
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, sum)
}

// Submit godoc
// POST /api/v1/session/submit
// Requires {"confirm": true}. Runs camera release, responses and finalize.
func (h *SessionHandler) Submit(c *gin.Context) {
	var req submitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if !req.Confirm {
		response.Fail(c, http.StatusBadRequest, response.ErrConfirmation)
		return
	}

	// The submission must not be cut short by the UI dropping the request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), submitTimeout)
	defer cancel()

	if err := h.session.Submit(ctx); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.session.State())
}

// Lifecycle godoc
// POST /api/v1/session/lifecycle
func (h *SessionHandler) Lifecycle(c *gin.Context) {
	var req lifecycleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	warnings := h.session.State().Warnings
	if req.State == "background" {
		warnings = h.session.Background()
	} else {
		h.session.Foreground()
	}
	response.Success(c, http.StatusOK, gin.H{"state": req.State, "warnings": warnings})
}

// Leave godoc
// POST /api/v1/session/leave
// Refused until the exam has been submitted.
func (h *SessionHandler) Leave(c *gin.Context) {
	if err := h.session.LeaveAttempt(); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"allowed": true})
}

// fail maps session, submission and credential errors onto the envelope.
func (h *SessionHandler) fail(c *gin.Context, err error) {
	var incomplete *session.IncompleteError
	switch {
	case errors.As(err, &incomplete):
		response.FailWithData(c, http.StatusConflict, response.ErrIncomplete, gin.H{
			"next_index": incomplete.Next,
			"summary":    incomplete.Summary,
		})
	case errors.Is(err, auth.ErrTokenMissing):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
	case errors.Is(err, auth.ErrTokenExpired):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenExpired)
	case errors.Is(err, submission.ErrResponsesFailed), errors.Is(err, submission.ErrFinalizeFailed):
		response.FailWithMessage(c, http.StatusBadGateway, response.ErrSubmissionFailed,
			examapi.Message(err, response.GetMessage(response.ErrSubmissionFailed)))
	case errors.Is(err, session.ErrSubmitInFlight):
		response.Fail(c, http.StatusConflict, response.ErrSubmitInProgress)
	case errors.Is(err, session.ErrAlreadyCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, session.ErrTimeUp):
		response.Fail(c, http.StatusConflict, response.ErrTimeUp)
	case errors.Is(err, session.ErrLeaveBlocked):
		response.Fail(c, http.StatusForbidden, response.ErrLeaveNotAllowed)
	case errors.Is(err, session.ErrNotRunning):
		response.Fail(c, http.StatusConflict, response.ErrExamNotRunning)
	case errors.Is(err, session.ErrIndexOutOfRange):
		response.Fail(c, http.StatusNotFound, response.ErrIndexOutOfRange)
	case errors.Is(err, session.ErrUnknownQuestion):
		response.Fail(c, http.StatusNotFound, response.ErrQuestionNotFound)
	case errors.Is(err, session.ErrUnknownOption):
		response.Fail(c, http.StatusBadRequest, response.ErrOptionNotFound)
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled session error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
