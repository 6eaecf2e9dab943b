package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-candidate/internal/config"
	"github.com/stemsi/exstem-candidate/internal/examapi"
	"github.com/stemsi/exstem-candidate/internal/handler"
	"github.com/stemsi/exstem-candidate/internal/metrics"
	"github.com/stemsi/exstem-candidate/internal/model"
	"github.com/stemsi/exstem-candidate/internal/proctor"
	"github.com/stemsi/exstem-candidate/internal/session"
	"github.com/stemsi/exstem-candidate/internal/submission"
	"github.com/stemsi/exstem-candidate/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type fakeExamServer struct {
	mu        sync.Mutex
	calls     []string
	submitErr error
}

func (f *fakeExamServer) FetchExam(ctx context.Context, t model.ExamType) ([]model.Question, error) {
	return []model.Question{
		{
			ID:           "q1",
			Title:        "<p>Capital of France?</p>",
			Translations: model.Translations{"hi": {"": "<p>फ्रांस की राजधानी?</p>"}},
			Options:      []model.Option{{ID: "o1", Option: "Paris"}, {ID: "o2", Option: "Rome"}},
		},
		{
			ID:      "q2",
			Title:   "<p>2 + 2?</p>",
			Options: []model.Option{{ID: "o3", Option: "4"}, {ID: "o4", Option: "5"}},
		},
	}, nil
}

func (f *fakeExamServer) SubmitResponses(ctx context.Context, t model.ExamType, req model.SubmissionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "responses")
	return f.submitErr
}

func (f *fakeExamServer) FinalizeTest(ctx context.Context, t model.ExamType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "finalize")
	return nil
}

type testAPI struct {
	engine *gin.Engine
	server *fakeExamServer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	server := &fakeExamServer{}
	log := zerolog.Nop()

	coord := submission.New(model.ExamTypeTheory, server, nil, log)
	sess := session.New(session.Params{ExamType: model.ExamTypeTheory, DurationSeconds: 600}, session.Deps{
		Content:    server,
		Submitter:  coord,
		TickSource: func() (<-chan time.Time, func()) { return make(chan time.Time), func() {} },
	}, log)
	t.Cleanup(sess.Close)
	if err := sess.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	handlers := &Handlers{
		Session: handler.NewSessionHandler(sess, log),
		Proctor: handler.NewProctorHandler(proctor.NewMemoryAudit(), nil, log),
		System:  handler.NewSystemHandler(sess, nil, log),
		Metrics: metrics.New().Handler(),
	}
	return &testAPI{engine: SetupRouter(handlers, &config.Config{GinMode: gin.TestMode}, log), server: server}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func (a *testAPI) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "127.0.0.1:40000"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: bad envelope: %v", method, path, err)
		}
	}
	return w.Code, env
}

func errCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func TestControlAPIExamFlow(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(t, http.MethodGet, "/api/v1/session", "")
	if code != http.StatusOK {
		t.Fatalf("state: %d", code)
	}
	var st session.StateView
	_ = json.Unmarshal(env.Data, &st)
	if st.Phase != session.PhaseRunning || st.Total != 2 || st.Clock != "00:10:00" {
		t.Fatalf("unexpected state %+v", st)
	}

	if code, env = api.do(t, http.MethodPost, "/api/v1/session/answer", `{"question_id":"  "}`); code != http.StatusBadRequest || errCode(env) != "VALIDATION_ERROR" {
		t.Fatalf("blank answer: %d %s", code, errCode(env))
	}
	if _, ok := env.Error.Fields["question_id"]; !ok {
		t.Fatalf("expected question_id field error, got %v", env.Error.Fields)
	}
	if code, env = api.do(t, http.MethodPost, "/api/v1/session/answer", `{"question_id":"q1","answer_id":"o3"}`); code != http.StatusBadRequest || errCode(env) != "OPTION_NOT_FOUND" {
		t.Fatalf("foreign option: %d %s", code, errCode(env))
	}
	if code, _ = api.do(t, http.MethodPost, "/api/v1/session/answer", `{"question_id":"q1","answer_id":"o1"}`); code != http.StatusOK {
		t.Fatalf("answer: %d", code)
	}

	if code, env = api.do(t, http.MethodPost, "/api/v1/session/submit", `{"confirm":false}`); code != http.StatusBadRequest || errCode(env) != "CONFIRMATION_REQUIRED" {
		t.Fatalf("unconfirmed submit: %d %s", code, errCode(env))
	}
	code, env = api.do(t, http.MethodPost, "/api/v1/session/submit", `{"confirm":true}`)
	if code != http.StatusConflict || errCode(env) != "EXAM_INCOMPLETE" {
		t.Fatalf("incomplete submit: %d %s", code, errCode(env))
	}
	var gate struct {
		NextIndex int `json:"next_index"`
	}
	_ = json.Unmarshal(env.Data, &gate)
	if gate.NextIndex != 1 {
		t.Fatalf("next_index = %d", gate.NextIndex)
	}

	if code, env = api.do(t, http.MethodPost, "/api/v1/session/leave", ""); code != http.StatusForbidden || errCode(env) != "LEAVE_NOT_ALLOWED" {
		t.Fatalf("leave: %d %s", code, errCode(env))
	}

	code, env = api.do(t, http.MethodGet, "/api/v1/session/questions/0?lang=hi", "")
	var q session.QuestionView
	_ = json.Unmarshal(env.Data, &q)
	if code != http.StatusOK || q.Title != "<p>फ्रांस की राजधानी?</p>" || q.Selected != "o1" || q.Options[0].Text != "Paris" {
		t.Fatalf("question view: %d %+v", code, q)
	}
	if code, env = api.do(t, http.MethodGet, "/api/v1/session/questions/7", ""); code != http.StatusNotFound || errCode(env) != "INDEX_OUT_OF_RANGE" {
		t.Fatalf("out of range: %d %s", code, errCode(env))
	}

	if code, _ = api.do(t, http.MethodPost, "/api/v1/session/goto", `{"index":1}`); code != http.StatusOK {
		t.Fatalf("goto: %d", code)
	}
	_, _ = api.do(t, http.MethodPost, "/api/v1/session/answer", `{"question_id":"q2","answer_id":"o3"}`)
	code, env = api.do(t, http.MethodPost, "/api/v1/session/review", `{"index":0}`)
	if code != http.StatusOK || !strings.Contains(string(env.Data), `"markForReview"`) {
		t.Fatalf("review: %d %s", code, env.Data)
	}

	code, env = api.do(t, http.MethodGet, "/api/v1/session/summary", "")
	var sum model.SubmissionSummary
	_ = json.Unmarshal(env.Data, &sum)
	if code != http.StatusOK || sum.Answered != 2 || sum.Marked != 1 {
		t.Fatalf("summary: %d %+v", code, sum)
	}

	code, env = api.do(t, http.MethodPost, "/api/v1/session/submit", `{"confirm":true}`)
	if code != http.StatusOK {
		t.Fatalf("submit: %d %+v", code, env.Error)
	}
	_ = json.Unmarshal(env.Data, &st)
	if st.Phase != session.PhaseCompleted {
		t.Fatalf("phase after submit = %s", st.Phase)
	}
	if got := strings.Join(api.server.calls, ","); got != "responses,finalize" {
		t.Fatalf("server calls = %s", got)
	}

	if code, _ = api.do(t, http.MethodPost, "/api/v1/session/leave", ""); code != http.StatusOK {
		t.Fatalf("leave after submit: %d", code)
	}
	if code, env = api.do(t, http.MethodPost, "/api/v1/session/submit", `{"confirm":true}`); code != http.StatusConflict || errCode(env) != "ALREADY_SUBMITTED" {
		t.Fatalf("resubmit: %d %s", code, errCode(env))
	}
}

func TestControlAPISubmitSurfacesServerMessage(t *testing.T) {
	api := newTestAPI(t)
	api.server.submitErr = &examapi.APIError{Endpoint: "/candidate/submit-theory-responses", Status: 400, Message: "Test window closed"}

	api.do(t, http.MethodPost, "/api/v1/session/answer", `{"question_id":"q1","answer_id":"o2"}`)
	api.do(t, http.MethodPost, "/api/v1/session/answer", `{"question_id":"q2","answer_id":"o4"}`)

	code, env := api.do(t, http.MethodPost, "/api/v1/session/submit", `{"confirm":true}`)
	if code != http.StatusBadGateway || errCode(env) != "SUBMISSION_FAILED" || env.Error.Message != "Test window closed" {
		t.Fatalf("submit failure: %d %+v", code, env.Error)
	}
	if got := strings.Join(api.server.calls, ","); got != "responses" {
		t.Fatalf("finalize ran after failed responses: %s", got)
	}

	_, env = api.do(t, http.MethodGet, "/api/v1/session", "")
	var st session.StateView
	_ = json.Unmarshal(env.Data, &st)
	if st.Phase != session.PhaseRunning {
		t.Fatalf("phase after failed submit = %s", st.Phase)
	}
}

func TestControlAPILifecycleAndMisc(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(t, http.MethodPost, "/api/v1/session/lifecycle", `{"state":"background"}`)
	if code != http.StatusOK || !strings.Contains(string(env.Data), `"warnings":1`) {
		t.Fatalf("lifecycle: %d %s", code, env.Data)
	}
	if code, env = api.do(t, http.MethodPost, "/api/v1/session/lifecycle", `{"state":"sleep"}`); code != http.StatusBadRequest || errCode(env) != "VALIDATION_ERROR" {
		t.Fatalf("bad lifecycle: %d %s", code, errCode(env))
	}

	code, env = api.do(t, http.MethodGet, "/api/v1/session/languages", "")
	if code != http.StatusOK || !strings.Contains(string(env.Data), `"hi"`) {
		t.Fatalf("languages: %d %s", code, env.Data)
	}

	code, env = api.do(t, http.MethodGet, "/api/v1/proctor/captures", "")
	if code != http.StatusOK || !strings.Contains(string(env.Data), `"camera_state":"DISABLED"`) {
		t.Fatalf("captures: %d %s", code, env.Data)
	}

	if code, _ = api.do(t, http.MethodGet, "/health", ""); code != http.StatusOK {
		t.Fatalf("health: %d", code)
	}
	if code, _ = api.do(t, http.MethodGet, "/metrics", ""); code != http.StatusOK {
		t.Fatalf("metrics: %d", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.RemoteAddr = "10.0.0.8:5555"
	w := httptest.NewRecorder()
	api.engine.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("remote caller allowed: %d", w.Code)
	}
}
