// Package stream exposes a running Sampler over HTTP: a websocket feed of
// engine events plus JSON endpoints for reports, trends, leaks, snapshots
// and exports.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dm/memwatch/internal/config"
	"github.com/dm/memwatch/internal/engine"
)

const (
	maxClients   = 100
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Server fans engine events out to websocket clients and serves the
// analysis API.
type Server struct {
	sampler   *engine.Sampler
	analyzer  *engine.Analyzer
	logger    *zap.Logger
	addr      string
	clientBuf int
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	dropped atomic.Uint64

	subMu    sync.Mutex
	subID    engine.SubscriptionID
	attached bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer creates a Server for sampler. Call Attach to start receiving
// events.
func NewServer(sampler *engine.Sampler, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	buf := cfg.ClientBuf
	if buf <= 0 {
		buf = 256
	}
	return &Server{
		sampler:   sampler,
		analyzer:  sampler.Analyzer(),
		logger:    logger.Named("stream"),
		addr:      cfg.Addr,
		clientBuf: buf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == "http://"+r.Host
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// Attach subscribes the server to the sampler's events. It is idempotent.
func (s *Server) Attach() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.attached {
		return
	}
	s.subID = s.sampler.Subscribe(s.publish)
	s.attached = true
}

// Detach removes the event subscription.
func (s *Server) Detach() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if !s.attached {
		return
	}
	s.sampler.Unsubscribe(s.subID)
	s.attached = false
}

// Run serves HTTP on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.Attach()
	defer s.Detach()

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("stream server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("stream server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.closeClients()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("stream server shutdown: %w", err)
	}
	s.logger.Info("stream server stopped", zap.Uint64("dropped", s.Dropped()))
	return nil
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Dropped returns the number of messages discarded for slow clients.
func (s *Server) Dropped() uint64 {
	return s.dropped.Load()
}

// publish runs on the sampler goroutine and must not block: slow clients
// lose messages.
func (s *Server) publish(ev engine.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("marshal event", zap.String("kind", string(ev.Kind)), zap.Error(err))
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.ClientCount() >= maxClients {
		http.Error(w, "maximum clients reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, s.clientBuf)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go s.writeLoop(c)
	s.readLoop(c)
}

// readLoop detects disconnects and keeps the read deadline fresh.
func (s *Server) readLoop(c *client) {
	defer s.removeClient(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read", zap.Error(err))
			}
			return
		}
	}
}

// writeLoop is the only writer on c.conn.
func (s *Server) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}
