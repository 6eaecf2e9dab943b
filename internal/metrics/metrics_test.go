package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Capture("photo", "UPLOADED")
	m.DroppedTick("video")
	m.Submission(true)
	m.AnswerSync(false)
	m.SetRemaining(10)
	if m.Registry() != nil {
		t.Fatal("nil metrics should have no registry")
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.Capture("photo", "UPLOADED")
	m.Submission(false)
	m.SetRemaining(42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`exstem_candidate_captures_total{kind="photo",outcome="UPLOADED"} 1`,
		`exstem_candidate_submissions_total{result="error"} 1`,
		`exstem_candidate_exam_time_remaining_seconds 42`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
