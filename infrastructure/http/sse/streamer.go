package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fixora/tollgate/domain/entity"
	"github.com/fixora/tollgate/infrastructure/http/response"
	"github.com/fixora/tollgate/infrastructure/service/logger"
)

const (
	EventConnected = "connected"
	EventAudit     = "audit"
)

// Config tunes the dashboard stream.
type Config struct {
	HeartbeatInterval time.Duration
	MaxConnections    int
	BufferSize        int
}

// Streamer pushes audit records to connected dashboards as Server-Sent
// Events. It is an audit observer; slow clients are dropped rather than
// allowed to back up the broadcast loop.
type Streamer struct {
	cfg       Config
	clients   map[string]*Client
	mu        sync.RWMutex
	broadcast chan []byte
	logger    logger.Logger
	snapshot  func() interface{}
}

// Client represents an SSE client connection
type Client struct {
	ID        string
	Channel   chan []byte
	Context   context.Context
	CloseFunc func()
	Connected time.Time
}

// SSEEvent represents a Server-Sent Event
type SSEEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	Time int64       `json:"time"`
}

// NewStreamer creates a new SSE streamer
func NewStreamer(cfg Config, log logger.Logger) *Streamer {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Streamer{
		cfg:       cfg,
		clients:   make(map[string]*Client),
		broadcast: make(chan []byte, cfg.BufferSize),
		logger:    log.WithFields(map[string]interface{}{"component": "sse"}),
	}
}

// WithSnapshot sets the function whose result is sent in every connected
// event, typically the current gateway status.
func (s *Streamer) WithSnapshot(fn func() interface{}) *Streamer {
	s.snapshot = fn
	return s
}

// Start runs the broadcast loop. When ctx ends every client is closed.
func (s *Streamer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				s.closeAll()
				return

			case message := <-s.broadcast:
				s.mu.RLock()
				var slow []string
				for _, client := range s.clients {
					select {
					case client.Channel <- message:
					default:
						slow = append(slow, client.ID)
					}
				}
				s.mu.RUnlock()
				for _, id := range slow {
					s.logger.Warn(ctx, "SSE client too slow, disconnecting", map[string]interface{}{"client_id": id})
					s.RemoveClient(id)
				}
			}
		}
	}()
}

// OnAudit queues r for every connected dashboard.
func (s *Streamer) OnAudit(r entity.AuditRecord) {
	if err := s.Broadcast(EventAudit, r); err != nil {
		s.logger.Warn(context.Background(), "Dropped audit event for SSE", map[string]interface{}{
			"seq":   r.Seq,
			"error": err.Error(),
		})
	}
}

// Broadcast broadcasts a message to all clients
func (s *Streamer) Broadcast(eventType string, data interface{}) error {
	frame, err := encodeFrame(eventType, data)
	if err != nil {
		return err
	}

	select {
	case s.broadcast <- frame:
		return nil
	default:
		return fmt.Errorf("broadcast channel is full")
	}
}

// AddClient adds a new SSE client
func (s *Streamer) AddClient() *Client {
	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		ID:        uuid.NewString(),
		Channel:   make(chan []byte, s.cfg.BufferSize),
		Context:   ctx,
		CloseFunc: cancel,
		Connected: time.Now(),
	}

	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()
	return client
}

// RemoveClient removes an SSE client
func (s *Streamer) RemoveClient(clientID string) {
	s.mu.Lock()
	if client, ok := s.clients[clientID]; ok {
		client.CloseFunc()
		delete(s.clients, clientID)
	}
	s.mu.Unlock()
}

// GetClientCount returns the number of connected clients
func (s *Streamer) GetClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HandleSSE handles SSE HTTP requests
func (s *Streamer) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming unsupported")
		return
	}
	if s.cfg.MaxConnections > 0 && s.GetClientCount() >= s.cfg.MaxConnections {
		response.Error(w, http.StatusServiceUnavailable, "Too many dashboard connections")
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := s.AddClient()
	defer s.RemoveClient(client.ID)

	initEvent := map[string]interface{}{
		"client_id": client.ID,
		"connected": true,
	}
	if s.snapshot != nil {
		initEvent["status"] = s.snapshot()
	}
	frame, err := encodeFrame(EventConnected, initEvent)
	if err != nil {
		return
	}
	if _, err := w.Write(frame); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(s.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-client.Context.Done():
			return

		case message := <-client.Channel:
			if _, err := w.Write(message); err != nil {
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if _, err := w.Write([]byte(":heartbeat\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Streamer) closeAll() {
	s.mu.Lock()
	for id, client := range s.clients {
		client.CloseFunc()
		delete(s.clients, id)
	}
	s.mu.Unlock()
}

func encodeFrame(eventType string, data interface{}) ([]byte, error) {
	payload := SSEEvent{Type: eventType, Data: data, Time: time.Now().Unix()}
	message, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, message)), nil
}
