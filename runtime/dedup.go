package runtime

import (
	"sync"
	"time"
)

// DefaultDedupWindow is how long a message id is remembered on the live path.
const DefaultDedupWindow = 5 * time.Minute

type dedupShard struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// Deduplicator guards live fan-out against repeated delivery attempts for the
// same message id, typically a client retrying after a reconnect.
// It does not make persistence idempotent.
type Deduplicator struct {
	window time.Duration
	now    func() time.Time
	shards [shardCount]*dedupShard
}

type DedupOption func(*Deduplicator)

// WithClock replaces time.Now, mostly to simulate elapsed windows in tests.
func WithClock(now func() time.Time) DedupOption {
	return func(d *Deduplicator) { d.now = now }
}

func WithWindow(window time.Duration) DedupOption {
	return func(d *Deduplicator) {
		if window > 0 {
			d.window = window
		}
	}
}

func NewDeduplicator(opts ...DedupOption) *Deduplicator {
	d := &Deduplicator{window: DefaultDedupWindow, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	for i := range d.shards {
		d.shards[i] = &dedupShard{seen: make(map[string]time.Time)}
	}
	return d
}

// MarkIfNew returns true only the first time id is seen inside the window.
// An entry older than the window is treated as absent and refreshed.
func (d *Deduplicator) MarkIfNew(id string) bool {
	now := d.now()
	s := d.shards[shardFor(id)]
	s.mu.Lock()
	defer s.mu.Unlock()

	if firstSeen, ok := s.seen[id]; ok && now.Sub(firstSeen) < d.window {
		return false
	}
	s.seen[id] = now
	return true
}

// Sweep drops entries whose window has elapsed and returns how many were removed.
func (d *Deduplicator) Sweep(now time.Time) int {
	removed := 0
	for _, s := range d.shards {
		s.mu.Lock()
		for id, firstSeen := range s.seen {
			if now.Sub(firstSeen) >= d.window {
				delete(s.seen, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

func (d *Deduplicator) Len() int {
	n := 0
	for _, s := range d.shards {
		s.mu.Lock()
		n += len(s.seen)
		s.mu.Unlock()
	}
	return n
}
