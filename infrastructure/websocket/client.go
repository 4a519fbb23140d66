package websocket

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"gym-chat/domain/chat"
	"gym-chat/errors"
	"gym-chat/services"
	"gym-chat/sink"
	"log/slog"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// client pumps one socket. The read pump is the only reader and the write pump
// the only writer, as gorilla requires.
type client struct {
	log         *slog.Logger
	hub         services.IHub
	ws          *gws.Conn
	conn        *sink.Connection
	config      Config
	limiter     *rate.Limiter
	completions chan CompletionFrame
	writerDone  chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	closeOnce   sync.Once
}

func newClient(log *slog.Logger, hub services.IHub, ws *gws.Conn, conn *sink.Connection,
	config Config, limiter *rate.Limiter) *client {
	ctx, cancel := context.WithCancel(context.Background())
	return &client{
		log:         log.With("user_id", conn.Identity().UserID, "connection_id", conn.ID()),
		hub:         hub,
		ws:          ws,
		conn:        conn,
		config:      config,
		limiter:     limiter,
		completions: make(chan CompletionFrame, max(config.BufferSize, 1)),
		writerDone:  make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (c *client) readPump() {
	defer c.leave()

	if c.config.MaxFrameBytes > 0 {
		c.ws.SetReadLimit(c.config.MaxFrameBytes)
	}
	c.extendReadDeadline()
	c.ws.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		c.extendReadDeadline()

		var frame InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.complete(completionFrame("", nil, errors.Validation("malformed frame: %v", err)))
			continue
		}
		if frame.Type != FrameInvocation || frame.Target == "" {
			c.complete(completionFrame(frame.InvocationID, nil, errors.Validation("expected an invocation frame")))
			continue
		}
		if !c.limiter.Allow() {
			c.complete(completionFrame(frame.InvocationID, nil, errors.ErrRateLimited))
			continue
		}

		result, err := c.hub.Invoke(c.ctx, c.conn, frame.Target, frame.Arguments)
		c.complete(completionFrame(frame.InvocationID, result, err))
	}
}

// leave runs the LEAVING transition: the handle leaves the registry and its
// groups, then its queue is closed so the write pump says goodbye.
func (c *client) leave() {
	c.conn.SetState(chat.Leaving)
	c.hub.OnDisconnect(context.Background(), c.conn)
	c.cancel()
	c.conn.Close()
	<-c.writerDone
	_ = c.ws.Close()
}

func (c *client) complete(frame CompletionFrame) {
	select {
	case c.completions <- frame:
	case <-c.writerDone:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		close(c.writerDone)
		_ = c.ws.Close()
	}()

	for {
		select {
		case evt, ok := <-c.conn.Events():
			if !ok {
				c.writeClose(gws.CloseNormalClosure, "")
				return
			}
			if !c.writeJSON(eventFrame(evt)) {
				return
			}
		case frame := <-c.completions:
			if !c.writeJSON(frame) {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(gws.PingMessage, nil, time.Now().Add(c.config.WriteTimeout)); err != nil {
				c.log.Debug("Ping failed", "error", err)
				return
			}
		}
	}
}

func (c *client) writeJSON(v any) bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
		return false
	}
	if err := c.ws.WriteJSON(v); err != nil {
		c.log.Debug("Write failed", "error", err)
		return false
	}
	return true
}

func (c *client) writeClose(code int, text string) {
	msg := gws.FormatCloseMessage(code, text)
	_ = c.ws.WriteControl(gws.CloseMessage, msg, time.Now().Add(c.config.WriteTimeout))
}

// shutdown asks the peer to go away. The read pump then fails and runs leave.
func (c *client) shutdown() {
	c.closeOnce.Do(func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
}

func (c *client) extendReadDeadline() {
	if c.config.PongTimeout > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.config.PongTimeout))
	}
}

func (c *client) logReadError(err error) {
	switch {
	case goerrors.Is(err, gws.ErrReadLimit):
		c.log.Warn("Frame exceeded the maximum size", "max_bytes", c.config.MaxFrameBytes)
	case gws.IsUnexpectedCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway, gws.CloseNoStatusReceived):
		c.log.Debug("Unexpected close", "error", err)
	default:
		c.log.Debug("Client disconnected", "error", err)
	}
}
