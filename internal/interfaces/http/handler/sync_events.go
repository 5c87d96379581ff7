package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	appmd "github.com/erp/portal/internal/application/masterdata"
	"github.com/erp/portal/internal/application/cachesync"
	"github.com/erp/portal/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncEventSource delivers completion events of every cache
type SyncEventSource interface {
	Subscribe(buffer int) (<-chan cachesync.SyncCompleted, func())
}

// SSE event names
const (
	SSEEventConnected     = "connected"
	SSEEventSyncCompleted = "sync_completed"
	SSEEventHeartbeat     = "heartbeat"
)

const (
	sseClientBuffer = 64
	sseSourceBuffer = 256
)

// ErrSSEAlreadyStarted is returned by a second Start
var ErrSSEAlreadyStarted = errors.New("sync event stream already started")

// SSEClient is one connected event stream
type SSEClient struct {
	ID   string
	Chan chan SSEMessage
}

// SSEMessage is one server-sent event
type SSEMessage struct {
	Event string
	Data  string
	ID    string
}

// SyncEventsHandler streams sync completions to browsers over SSE
type SyncEventsHandler struct {
	BaseHandler
	source  SyncEventSource
	logger  *zap.Logger
	clients sync.Map // map[string]*SSEClient
	count   atomic.Int64

	ctx         context.Context
	cancel      context.CancelFunc
	heartbeat   time.Duration
	maxClients  int
	startMu     sync.Mutex
	started     bool
	unsubscribe func()
	done        chan struct{}
}

// SyncEventsOption configures a SyncEventsHandler
type SyncEventsOption func(*SyncEventsHandler)

// WithSSELogger sets the logger for the handler
func WithSSELogger(logger *zap.Logger) SyncEventsOption {
	return func(h *SyncEventsHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithSSEHeartbeat sets the heartbeat interval
func WithSSEHeartbeat(interval time.Duration) SyncEventsOption {
	return func(h *SyncEventsHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// WithSSEMaxClients caps concurrent streams; 0 means unlimited
func WithSSEMaxClients(max int) SyncEventsOption {
	return func(h *SyncEventsHandler) {
		h.maxClients = max
	}
}

// NewSyncEventsHandler creates the handler. Call Start before serving.
func NewSyncEventsHandler(source SyncEventSource, opts ...SyncEventsOption) *SyncEventsHandler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &SyncEventsHandler{
		source:     source,
		logger:     zap.NewNop(),
		ctx:        ctx,
		cancel:     cancel,
		heartbeat:  30 * time.Second,
		maxClients: 1000,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start subscribes to the event source and begins heartbeats
func (h *SyncEventsHandler) Start() error {
	h.startMu.Lock()
	defer h.startMu.Unlock()

	if h.started {
		return ErrSSEAlreadyStarted
	}
	events, unsubscribe := h.source.Subscribe(sseSourceBuffer)
	h.unsubscribe = unsubscribe
	h.started = true

	go h.forward(events)
	go h.sendHeartbeats()

	h.logger.Info("Sync event stream started")
	return nil
}

// Stop disconnects every client and unsubscribes from the source
func (h *SyncEventsHandler) Stop() {
	h.startMu.Lock()
	defer h.startMu.Unlock()

	h.cancel()
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
		<-h.done
	}
	h.logger.Info("Sync event stream stopped")
}

func (h *SyncEventsHandler) forward(events <-chan cachesync.SyncCompleted) {
	defer close(h.done)
	for evt := range events {
		data, err := json.Marshal(appmd.ToSyncEventResponse(evt))
		if err != nil {
			h.logger.Error("Failed to marshal sync event", zap.Error(err))
			continue
		}
		h.broadcast(SSEMessage{
			Event: SSEEventSyncCompleted,
			Data:  string(data),
			ID:    evt.ID.String(),
		})
	}
}

// broadcast never blocks: a client whose buffer is full misses the event
func (h *SyncEventsHandler) broadcast(msg SSEMessage) {
	h.clients.Range(func(_, value any) bool {
		client := value.(*SSEClient)
		select {
		case client.Chan <- msg:
		default:
			h.logger.Warn("SSE client buffer full, dropping event",
				zap.String("client_id", client.ID),
				zap.String("event", msg.Event))
		}
		return true
	})
}

func (h *SyncEventsHandler) sendHeartbeats() {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case now := <-ticker.C:
			h.broadcast(SSEMessage{
				Event: SSEEventHeartbeat,
				Data:  fmt.Sprintf(`{"timestamp":%d}`, now.Unix()),
			})
		}
	}
}

// Stream holds the connection open and writes sync_completed events as
// crawls finish, plus periodic heartbeats.
//
//	GET /sync/events
func (h *SyncEventsHandler) Stream(c *gin.Context) {
	if h.ctx.Err() != nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeServiceOverloaded, "Event stream is shutting down")
		return
	}
	if n := h.count.Add(1); h.maxClients > 0 && n > int64(h.maxClients) {
		h.count.Add(-1)
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeTooManyStreams, "Maximum number of event streams reached")
		return
	}
	defer h.count.Add(-1)

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	client := &SSEClient{
		ID:   uuid.New().String(),
		Chan: make(chan SSEMessage, sseClientBuffer),
	}
	h.clients.Store(client.ID, client)
	defer h.clients.Delete(client.ID)

	log := h.logger.With(zap.String("client_id", client.ID))
	log.Debug("SSE client connected")

	c.Status(http.StatusOK)
	writeSSE(c.Writer, SSEMessage{
		Event: SSEEventConnected,
		Data:  fmt.Sprintf(`{"client_id":%q,"timestamp":%d}`, client.ID, time.Now().Unix()),
	})
	c.Writer.Flush()

	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			log.Debug("SSE client disconnected")
			return
		case <-h.ctx.Done():
			return
		case msg := <-client.Chan:
			writeSSE(c.Writer, msg)
			c.Writer.Flush()
		}
	}
}

func writeSSE(w io.Writer, msg SSEMessage) {
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}

// ClientCount returns the number of connected streams
func (h *SyncEventsHandler) ClientCount() int {
	return int(h.count.Load())
}
