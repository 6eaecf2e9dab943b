package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiterPerRoute(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	r := gin.New()
	r.Use(rl.Middleware())
	r.POST("/submit", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/answer", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		return w.Code
	}

	for i, want := range []int{200, 200, 429} {
		if got := do("/submit"); got != want {
			t.Fatalf("submit #%d = %d, want %d", i, got, want)
		}
	}
	if got := do("/answer"); got != http.StatusOK {
		t.Fatalf("other route limited: %d", got)
	}

	now = now.Add(10 * time.Second)
	if got := do("/submit"); got != http.StatusOK {
		t.Fatalf("bucket not refilled: %d", got)
	}
}

func TestLocalOnly(t *testing.T) {
	r := gin.New()
	r.Use(LocalOnly())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for addr, want := range map[string]int{
		"127.0.0.1:5000":  http.StatusOK,
		"[::1]:5000":      http.StatusOK,
		"192.168.1.20:80": http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("%s: status %d, want %d", addr, w.Code, want)
		}
	}
}

func TestNoStore(t *testing.T) {
	r := gin.New()
	r.Use(NoStore())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
}
