package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-candidate/internal/response"
	"github.com/stemsi/exstem-candidate/internal/session"
)

const streamInterval = time.Second

// QueueDepth reports how many sync items are waiting.
type QueueDepth interface {
	Pending() int
}

// SystemHandler serves agent status and the live session stream.
type SystemHandler struct {
	session   *session.Session
	queue     QueueDepth
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. queue may be nil.
func NewSystemHandler(s *session.Session, queue QueueDepth, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		session:   s,
		queue:     queue,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type agentStatus struct {
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	SyncQueue  int    `json:"sync_queue"`
	Phase      string `json:"phase"`
}

// Status godoc
// GET /api/v1/system/status
func (h *SystemHandler) Status(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	st := agentStatus{
		Uptime:     formatDuration(time.Since(h.startTime)),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		NumGC:      ms.NumGC,
		GoVersion:  runtime.Version(),
		Phase:      string(h.session.Phase()),
	}
	if h.queue != nil {
		st.SyncQueue = h.queue.Pending()
	}
	response.Success(c, http.StatusOK, st)
}

// SessionStream godoc
// GET /api/v1/session/stream
// Server-sent events carrying the session view once per second until the
// exam completes or the client disconnects.
func (h *SystemHandler) SessionStream(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.log.Debug().Msg("UI connected to session stream")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	// Send immediately on connect, then every tick.
	if h.writeState(c) {
		return
	}
	for {
		select {
		case <-reqCtx.Done():
			h.log.Debug().Msg("UI disconnected from session stream")
			return
		case <-ticker.C:
			if h.writeState(c) {
				return
			}
		}
	}
}

// writeState emits one event and reports whether the stream is finished.
func (h *SystemHandler) writeState(c *gin.Context) bool {
	st := h.session.State()
	data, err := json.Marshal(st)
	if err != nil {
		return true
	}
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(data)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
	return st.Phase == session.PhaseCompleted || st.Phase == session.PhaseFailed
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
