package repositories

import (
	"fmt"
	"gym-chat/domain/chat"
	"gym-chat/errors"
	"sync"
	"time"
)

const (
	DefaultRetention    = 30 * 24 * time.Hour
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// Options are shared by every store backend.
type Options struct {
	Retention    time.Duration
	DefaultLimit int
	MaxLimit     int
	Now          func() time.Time
}

type Option func(*Options)

func WithRetention(retention time.Duration) Option {
	return func(o *Options) {
		if retention > 0 {
			o.Retention = retention
		}
	}
}

func WithHistoryLimits(defaultLimit, maxLimit int) Option {
	return func(o *Options) {
		if defaultLimit > 0 {
			o.DefaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			o.MaxLimit = maxLimit
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

func NewOptions(opts ...Option) Options {
	o := Options{
		Retention:    DefaultRetention,
		DefaultLimit: DefaultHistoryLimit,
		MaxLimit:     MaxHistoryLimit,
		Now:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.DefaultLimit > o.MaxLimit {
		o.DefaultLimit = o.MaxLimit
	}
	return o
}

// ClampLimit maps a requested page size into [1, MaxLimit].
func (o Options) ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return o.DefaultLimit
	case limit > o.MaxLimit:
		return o.MaxLimit
	default:
		return limit
	}
}

// Cutoff is the creation time before which non-permanent messages expire.
func (o Options) Cutoff(now time.Time) time.Time {
	return now.Add(-o.Retention)
}

// StampClock hands out strictly increasing creation times.
// Two saves never share a timestamp, even when the wall clock stalls or steps back.
type StampClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func NewStampClock(now func() time.Time) *StampClock {
	return &StampClock{now: now}
}

func (c *StampClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}

// Observe moves the clock past a stamp already present in the store.
func (c *StampClock) Observe(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.last) {
		c.last = t.UTC()
	}
}

// ValidateParticipants rejects user ids that cannot be stored.
func ValidateParticipants(senderID, receiverID string) error {
	if !chat.ValidUserID(senderID) {
		return errors.Validation("invalid sender id %q", senderID)
	}
	if !chat.ValidUserID(receiverID) {
		return errors.Validation("invalid receiver id %q", receiverID)
	}
	if senderID == receiverID {
		return errors.Validation("cannot send a message to yourself")
	}
	return nil
}

// ValidateBody rejects empty bodies.
func ValidateBody(body string) error {
	if len(body) == 0 {
		return errors.Validation("message body is empty")
	}
	return nil
}

// NotFound wraps ErrMessageNotFound with the id that was looked up.
func NotFound(id chat.MessageID) error {
	return fmt.Errorf("%w: %s", errors.ErrMessageNotFound, id)
}
