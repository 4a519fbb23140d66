package sink

import (
	"context"
	"gym-chat/contract"
	"gym-chat/domain/chat"
	"gym-chat/errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Connection is the handle of one live session.
// Events pushed by the router land in a bounded FIFO queue drained by the transport,
// so a connection receives events in the order they were consumed.
type Connection struct {
	id       contract.ConnectionID
	identity chat.Identity
	events   chan chat.Event
	mu       sync.RWMutex
	closed   bool
	state    atomic.Int32
}

func NewConnection(identity chat.Identity, bufferSize int) *Connection {
	c := &Connection{
		id:       contract.ConnectionID(uuid.NewString()),
		identity: identity,
		events:   make(chan chat.Event, bufferSize),
	}
	c.state.Store(int32(chat.Connecting))
	return c
}

func (c *Connection) ID() contract.ConnectionID { return c.id }

func (c *Connection) Identity() chat.Identity { return c.identity }

func (c *Connection) State() chat.ConnectionState { return chat.ConnectionState(c.state.Load()) }

// SetState moves the connection forward in its lifecycle. Going backwards is ignored.
func (c *Connection) SetState(s chat.ConnectionState) {
	for {
		current := c.state.Load()
		if int32(s) <= current {
			return
		}
		if c.state.CompareAndSwap(current, int32(s)) {
			return
		}
	}
}

// Events is drained by the transport write loop. It is closed by Close.
func (c *Connection) Events() <-chan chat.Event { return c.events }

// Consume is called by the router.
// It never blocks: a full queue means the client is too slow and the event is dropped.
func (c *Connection) Consume(ctx context.Context, e chat.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.ErrConnectionClosed
	}
	select {
	case c.events <- e:
		return nil
	default:
		return errors.ErrBufferFull
	}
}

// Close stops accepting events and releases the write loop. Safe to call twice.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	c.SetState(chat.Closed)
}
