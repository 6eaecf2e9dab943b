package examapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-candidate/internal/auth"
	"github.com/stemsi/exstem-candidate/internal/model"
	"github.com/stemsi/exstem-candidate/internal/response"
)

// Sentinel errors for exam content.
var (
	ErrNoExam      = errors.New("no exam assigned to candidate")
	ErrNoQuestions = errors.New("exam has no questions")
)

// APIError is a non-2xx answer from the exam server.
type APIError struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.Status)
}

// Message returns the server-provided message carried by err, or fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// Client talks to the exam server. The base URL is supplied per session.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	tokens  auth.TokenSource
	log     zerolog.Logger
}

// New creates a client with the given request timeout.
func New(baseURL string, tokens auth.TokenSource, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		log:     log.With().Str("component", "exam_api").Logger(),
	}
}

// ExamPath returns the exam-content endpoint for t.
func ExamPath(t model.ExamType) string {
	return "/candidate/my-" + string(t) + "-test"
}

// ResponsesPath returns the submit-responses endpoint for t.
func ResponsesPath(t model.ExamType) string {
	return "/candidate/submit-" + string(t) + "-responses"
}

// FinalizePath returns the close-test endpoint for t.
func FinalizePath(t model.ExamType) string {
	return "/candidate/submit-" + string(t) + "-test"
}

const (
	PhotoPath = "/candidate/upload-random-photo"
	VideoPath = "/candidate/upload-random-video"
)

// FetchExam loads the questions of the candidate's exam. Only the first
// element of the response array is used.
func (c *Client) FetchExam(ctx context.Context, t model.ExamType) ([]model.Question, error) {
	var exams []model.ExamContent
	if err := c.doJSON(ctx, http.MethodGet, ExamPath(t), nil, &exams); err != nil {
		return nil, err
	}
	if len(exams) == 0 {
		return nil, ErrNoExam
	}
	if len(exams[0].Questions) == 0 {
		return nil, ErrNoQuestions
	}

	c.log.Info().
		Str("exam_type", string(t)).
		Int("questions", len(exams[0].Questions)).
		Msg("Exam content loaded")

	return exams[0].Questions, nil
}

// SubmitResponses posts the accumulated answers.
func (c *Client) SubmitResponses(ctx context.Context, t model.ExamType, req model.SubmissionRequest) error {
	if req.Responses == nil {
		req.Responses = []model.Response{}
	}
	return c.doJSON(ctx, http.MethodPost, ResponsesPath(t), req, nil)
}

// FinalizeTest closes the attempt server-side. Irreversible.
func (c *Client) FinalizeTest(ctx context.Context, t model.ExamType) error {
	return c.doJSON(ctx, http.MethodPost, FinalizePath(t), struct{}{}, nil)
}

// UploadPhoto sends a captioned proctoring photo.
func (c *Client) UploadPhoto(ctx context.Context, t model.ExamType, jpeg []byte) error {
	name := fmt.Sprintf("exam_%d.jpg", time.Now().UnixMilli())
	return c.upload(ctx, PhotoPath, "photo", name, "image/jpeg", bytes.NewReader(jpeg), t)
}

// UploadVideo sends a recorded proctoring clip.
func (c *Client) UploadVideo(ctx context.Context, t model.ExamType, clip io.Reader) error {
	name := fmt.Sprintf("exam_%d.mp4", time.Now().UnixMilli())
	return c.upload(ctx, VideoPath, "video", name, "video/mp4", clip, t)
}

func (c *Client) upload(ctx context.Context, path, field, filename, contentType string, data io.Reader, t model.ExamType) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("%s: create form file: %w", path, err)
	}
	if _, err := io.Copy(part, data); err != nil {
		return fmt.Errorf("%s: write file: %w", path, err)
	}
	if err := w.WriteField("testType", t.FormField()); err != nil {
		return fmt.Errorf("%s: write field: %w", path, err)
	}
	w.Close()

	req, err := c.newRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.do(req, path, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, path, out)
}

// newRequest resolves the bearer token first; no request is built without one.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	reqID := response.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	req.Header.Set("X-Request-ID", reqID)
	return req, nil
}

func (c *Client) do(req *http.Request, path string, out interface{}) error {
	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		c.log.Debug().Err(readErr).Str("path", path).Msg("Response body cut short")
	}

	c.log.Debug().
		Str("method", req.Method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("API call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Endpoint: path, Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil {
		return nil
	}
	if readErr != nil {
		return fmt.Errorf("%s: read response: %w", path, readErr)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} or {"message": "..."} from a body.
func errorMessage(raw []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}

	var s string
	if len(body.Error) > 0 && json.Unmarshal(body.Error, &s) == nil && s != "" {
		return s
	}
	var nested struct {
		Message string `json:"message"`
	}
	if len(body.Error) > 0 && json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
		return nested.Message
	}
	return body.Message
}
