package response

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())

	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = RequestIDFromContext(c.Request.Context())
		Success(c, http.StatusOK, nil)
	})

	cases := []struct {
		name   string
		header string
		keep   bool
	}{
		{"accepted", "ui-7", true},
		{"generated", "", false},
		{"oversized", strings.Repeat("x", maxRequestIDLen+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("X-Request-ID", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if got == "" || got != seen {
				t.Fatalf("header %q, context %q", got, seen)
			}
			if (got == tc.header) != tc.keep {
				t.Fatalf("request id %q, keep=%v", got, tc.keep)
			}
			if !strings.Contains(w.Body.String(), `"request_id":"`+got+`"`) {
				t.Fatalf("metadata missing id: %s", w.Body.String())
			}
		})
	}
}
