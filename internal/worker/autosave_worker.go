package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-candidate/internal/auth"
	"github.com/stemsi/exstem-candidate/internal/metrics"
	"github.com/stemsi/exstem-candidate/internal/model"
	"github.com/stemsi/exstem-candidate/internal/websocket"
)

const (
	// DefaultQueueSize bounds how many unsent items are held in memory.
	DefaultQueueSize = 256
	// DefaultPingInterval is how often an open socket is pinged.
	DefaultPingInterval = 30 * time.Second
)

// AutosaveWorker mirrors recorded answers and activity reports to the exam
// server's socket. Delivery is best effort: one attempt per item, and the
// authoritative copy is always the final submission.
type AutosaveWorker struct {
	url      string
	examType model.ExamType
	tokens   auth.TokenSource
	metrics  *metrics.Metrics
	log      zerolog.Logger
	queue    chan interface{}

	// PingInterval keeps an idle socket alive; a failed ping drops it.
	PingInterval time.Duration

	mu   sync.Mutex
	conn *gorillaws.Conn
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(url string, examType model.ExamType, tokens auth.TokenSource, m *metrics.Metrics, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		url:      url,
		examType: examType,
		tokens:   tokens,
		metrics:  m,
		log:      log.With().Str("component", "autosave_worker").Logger(),
		queue:    make(chan interface{}, DefaultQueueSize),

		PingInterval: DefaultPingInterval,
	}
}

// Enqueue schedules resp for mirroring. It never blocks; when the queue is
// full the item is dropped.
func (w *AutosaveWorker) Enqueue(resp model.Response) {
	w.push(websocket.AutosaveRequest{
		Action:    websocket.ActionAutosave,
		QID:       resp.QuestionID,
		Answer:    resp.AnswerID,
		StartedAt: resp.StartedAt,
		EndedAt:   resp.EndedAt,
	})
}

// ReportActivity schedules a suspicious-activity report.
func (w *AutosaveWorker) ReportActivity(kind string, count int) {
	payload, _ := json.Marshal(websocket.ActivityPayload{
		Kind:     kind,
		Count:    count,
		ExamType: string(w.examType),
		At:       time.Now().UTC().Format(model.TimestampLayout),
	})
	w.push(websocket.CheatRequest{Action: websocket.ActionCheat, Payload: string(payload)})
}

func (w *AutosaveWorker) push(item interface{}) {
	select {
	case w.queue <- item:
	default:
		w.metrics.AnswerSync(false)
		w.log.Warn().Msg("Sync queue full, item dropped")
	}
}

// Pending returns how many items are waiting to be sent.
func (w *AutosaveWorker) Pending() int {
	return len(w.queue)
}

// Start begins the worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Str("url", w.url).Msg("Worker started")

	keepalive := time.NewTicker(w.PingInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.drain(drainCtx)
			cancel()
			w.closeConn()
			w.log.Info().Msg("Worker stopped")
			return
		case item := <-w.queue:
			w.process(ctx, item)
		case <-keepalive.C:
			w.ping()
		}
	}
}

// ping checks an already open socket. It never dials.
func (w *AutosaveWorker) ping() {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return
	}
	if err := websocket.Roundtrip(conn, websocket.PingRequest{Action: websocket.ActionPing}); err != nil {
		w.log.Debug().Err(err).Msg("Sync socket ping failed, reconnecting on next item")
		w.closeConn()
	}
}

func (w *AutosaveWorker) process(ctx context.Context, item interface{}) {
	err := w.send(ctx, item)
	w.metrics.AnswerSync(err == nil)
	if err != nil {
		w.log.Warn().Err(err).Msg("Sync failed, item discarded")
	}
}

func (w *AutosaveWorker) send(ctx context.Context, item interface{}) error {
	conn, err := w.connection(ctx)
	if err != nil {
		return err
	}
	if err := websocket.Roundtrip(conn, item); err != nil {
		w.closeConn()
		return err
	}
	return nil
}

// connection dials lazily and reuses the socket until a send fails.
func (w *AutosaveWorker) connection(ctx context.Context) (*gorillaws.Conn, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		return w.conn, nil
	}
	token, err := w.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync token: %w", err)
	}
	conn, err := websocket.Dial(ctx, w.url, token)
	if err != nil {
		return nil, err
	}
	w.conn = conn
	w.log.Debug().Msg("Sync socket connected")
	return conn, nil
}

func (w *AutosaveWorker) closeConn() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
}

// drain sends whatever is still queued before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		select {
		case item := <-w.queue:
			if ctx.Err() != nil {
				continue
			}
			if err := w.send(ctx, item); err != nil {
				w.log.Error().Err(err).Msg("Drain send error")
				w.metrics.AnswerSync(false)
				continue
			}
			w.metrics.AnswerSync(true)
			drained++
		default:
			if drained > 0 {
				w.log.Info().Int("count", drained).Msg("Drained remaining items")
			}
			return
		}
	}
}
