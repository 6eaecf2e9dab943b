package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-candidate/internal/proctor"
)

type stubCamera struct {
	frame []byte
	err   error
}

func (c *stubCamera) State() proctor.State { return proctor.StateIdle }

func (c *stubCamera) Snapshot(ctx context.Context) ([]byte, error) { return c.frame, c.err }

func servePreview(t *testing.T, camera ProctorCamera) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewProctorHandler(proctor.NewMemoryAudit(), camera, zerolog.Nop())

	r := gin.New()
	r.GET("/preview", h.Preview)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/preview", nil))
	return w
}

func TestPreview(t *testing.T) {
	w := servePreview(t, &stubCamera{frame: []byte("jpeg")})
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/jpeg" || w.Body.String() != "jpeg" {
		t.Fatalf("preview: %d %q %q", w.Code, w.Header().Get("Content-Type"), w.Body.String())
	}

	w = servePreview(t, &stubCamera{err: proctor.ErrCameraBusy})
	if w.Code != http.StatusConflict || !strings.Contains(w.Body.String(), `"CAMERA_BUSY"`) {
		t.Fatalf("busy preview: %d %s", w.Code, w.Body.String())
	}

	w = servePreview(t, &stubCamera{err: errors.New("no frame")})
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), `"CAMERA_UNAVAILABLE"`) {
		t.Fatalf("failed preview: %d %s", w.Code, w.Body.String())
	}

	w = servePreview(t, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled preview: %d", w.Code)
	}
}
