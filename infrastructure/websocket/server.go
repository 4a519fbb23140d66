// Package websocket is the client transport: it authenticates the upgrade,
// turns inbound frames into hub invocations and writes events back.
package websocket

import (
	"context"
	"gym-chat/domain/chat"
	"gym-chat/services"
	"gym-chat/sink"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	gws "github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type Config struct {
	BufferSize     int
	MaxFrameBytes  int64
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	InvokeRate     float64
	InvokeBurst    int
}

type Server struct {
	log      *slog.Logger
	hub      services.IHub
	config   Config
	upgrader gws.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closing bool
	wg      sync.WaitGroup
}

func NewServer(log *slog.Logger, hub services.IHub, config Config) *Server {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	origins := newOriginPolicy(config.AllowedOrigins)
	return &Server{
		log:    log,
		hub:    hub,
		config: config,
		upgrader: gws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		clients: make(map[*client]struct{}),
	}
}

// Register mounts the upgrade endpoint on router.
func (s *Server) Register(router *mux.Router) {
	router.HandleFunc("/ws", s.ServeWS).Methods(http.MethodGet)
}

// ServeWS resolves the identity before upgrading: a refused credential gets a
// plain 401 and no connection handle is ever created.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := s.hub.Authenticate(r.Context(), credential(r))
	if err != nil {
		s.log.Debug("Connection refused", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("WebSocket upgrade failed", "user_id", identity.UserID, "error", err)
		return
	}

	conn := sink.NewConnection(identity, s.config.BufferSize)
	c := newClient(s.log, s.hub, ws, conn, s.config, s.newLimiter())
	if !s.track(c) {
		s.log.Debug("Connection refused during shutdown", "user_id", identity.UserID)
		c.cancel()
		c.writeClose(gws.CloseGoingAway, "server shutting down")
		_ = ws.Close()
		return
	}
	s.hub.OnConnect(c.ctx, conn)
	conn.SetState(chat.Joined)

	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer s.wg.Done()
		defer s.untrack(c)
		c.readPump()
	}()
}

func (s *Server) newLimiter() *rate.Limiter {
	if s.config.InvokeRate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := s.config.InvokeBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(s.config.InvokeRate), burst)
}

// track registers c and reserves its two pumps in the wait group. It refuses
// once Shutdown has started so no pump is added while Shutdown waits.
func (s *Server) track(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.clients[c] = struct{}{}
	s.wg.Add(2)
	return true
}

func (s *Server) untrack(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

// Shutdown closes every live socket and waits for their pumps to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	for c := range s.clients {
		c.shutdown()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// credential reads the bearer token from the Authorization header, or from the
// access_token query parameter for browsers that cannot set headers on upgrade.
func credential(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("access_token")
}
