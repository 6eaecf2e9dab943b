package examapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-candidate/internal/auth"
	"github.com/stemsi/exstem-candidate/internal/model"
	"github.com/stemsi/exstem-candidate/internal/response"
)

func newTestClient(t *testing.T, h http.HandlerFunc, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", auth.StaticTokenSource(token), 5*time.Second, zerolog.Nop())
}

func TestFetchExam(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/candidate/my-practical-test" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		io.WriteString(w, `[{"_id":"e1","questions":[
			{"_id":"q1","title":"<p>Q1</p>","marks":2,"difficultyLevel":"easy",
			 "translations":{"hi":"<p>प्रश्न</p>"},
			 "options":[{"_id":"o1","option":"A"},{"_id":"o2","option":"B","translations":{"hi":{"option":"बी"}}}]}
		]}]`)
	}, "tok")

	qs, err := c.FetchExam(context.Background(), model.ExamTypePractical)
	if err != nil {
		t.Fatalf("FetchExam: %v", err)
	}
	if len(qs) != 1 || qs[0].ID != "q1" || len(qs[0].Options) != 2 {
		t.Fatalf("unexpected questions: %+v", qs)
	}
	if got := qs[0].Text("hi"); got != "<p>प्रश्न</p>" {
		t.Fatalf("translated title = %q", got)
	}
	if got := qs[0].Options[1].Text("hi"); got != "बी" {
		t.Fatalf("translated option = %q", got)
	}
	if got := qs[0].Options[0].Text("hi"); got != "A" {
		t.Fatalf("fallback option = %q", got)
	}
}

func TestFetchExamEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	}, "tok")

	if _, err := c.FetchExam(context.Background(), model.ExamTypeTheory); !errors.Is(err, ErrNoExam) {
		t.Fatalf("expected ErrNoExam, got %v", err)
	}
}

func TestMissingTokenSendsNothing(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, "")

	err := c.FinalizeTest(context.Background(), model.ExamTypeTheory)
	if !errors.Is(err, auth.ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	if called {
		t.Fatal("request was sent without a token")
	}
}

func TestSubmitResponsesServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body model.SubmissionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(body.Responses) != 1 || body.Responses[0].AnswerID != "o1" {
			t.Errorf("unexpected body %+v", body)
		}
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error":"Test already submitted"}`)
	}, "tok")

	err := c.SubmitResponses(context.Background(), model.ExamTypeTheory, model.SubmissionRequest{
		Responses: []model.Response{{QuestionID: "q1", AnswerID: "o1"}},
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		t.Fatalf("expected APIError 409, got %v", err)
	}
	if got := Message(err, "generic"); got != "Test already submitted" {
		t.Fatalf("Message = %q", got)
	}
	if got := Message(errors.New("boom"), "generic"); got != "generic" {
		t.Fatalf("fallback Message = %q", got)
	}
}

func TestUploadPhotoMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PhotoPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("testType"); got != "THEORY" {
			t.Errorf("testType = %q", got)
		}
		f, hdr, err := r.FormFile("photo")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		if hdr.Header.Get("Content-Type") != "image/jpeg" || !strings.HasSuffix(hdr.Filename, ".jpg") {
			t.Errorf("unexpected part header %+v", hdr.Header)
		}
		data, _ := io.ReadAll(f)
		if string(data) != "jpeg-bytes" {
			t.Errorf("unexpected payload %q", data)
		}
		io.WriteString(w, `{"message":"ok"}`)
	}, "tok")

	if err := c.UploadPhoto(context.Background(), model.ExamTypeTheory, []byte("jpeg-bytes")); err != nil {
		t.Fatalf("UploadPhoto: %v", err)
	}
}

func TestRequestIDForwarded(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		io.WriteString(w, `{}`)
	}, "tok")

	ctx := response.ContextWithRequestID(context.Background(), "ui-42")
	if err := c.FinalizeTest(ctx, model.ExamTypeTheory); err != nil {
		t.Fatalf("FinalizeTest: %v", err)
	}
	if got != "ui-42" {
		t.Fatalf("X-Request-ID = %q, want ui-42", got)
	}

	if err := c.FinalizeTest(context.Background(), model.ExamTypeTheory); err != nil {
		t.Fatalf("FinalizeTest: %v", err)
	}
	if got == "" || got == "ui-42" {
		t.Fatalf("expected a generated request id, got %q", got)
	}
}

func TestTruncatedBodyIsAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "512")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `[{"_id":"e1","questions":[`)
	}, "tok")

	_, err := c.FetchExam(context.Background(), model.ExamTypeTheory)
	if err == nil || !strings.Contains(err.Error(), "read response") {
		t.Fatalf("expected a read error, got %v", err)
	}
}
