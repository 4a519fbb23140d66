package runtime

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestDeduplicator_TrueOncePerWindow(t *testing.T) {
	req := require.New(t)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
	dedup := NewDeduplicator(WithClock(clock.Now))

	req.True(dedup.MarkIfNew("m1"))
	req.False(dedup.MarkIfNew("m1"))

	clock.Advance(4*time.Minute + 59*time.Second)
	req.False(dedup.MarkIfNew("m1"))

	clock.Advance(time.Second)
	req.True(dedup.MarkIfNew("m1"))
	req.False(dedup.MarkIfNew("m1"))
}

func TestDeduplicator_Sweep(t *testing.T) {
	req := require.New(t)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
	dedup := NewDeduplicator(WithClock(clock.Now))

	req.True(dedup.MarkIfNew("old"))
	clock.Advance(3 * time.Minute)
	req.True(dedup.MarkIfNew("recent"))
	clock.Advance(2 * time.Minute)

	req.Equal(1, dedup.Sweep(clock.Now()))
	req.Equal(1, dedup.Len())
	req.False(dedup.MarkIfNew("recent"))
	req.True(dedup.MarkIfNew("old"))
}

func TestDeduplicator_ConcurrentMarkIsAtomic(t *testing.T) {
	req := require.New(t)
	dedup := NewDeduplicator()

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("msg-%d", i)
		var winners atomic.Int32
		var wg sync.WaitGroup
		for g := 0; g < 50; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if dedup.MarkIfNew(id) {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()
		req.Equal(int32(1), winners.Load(), id)
	}
}

func TestDeduplicator_CustomWindow(t *testing.T) {
	req := require.New(t)
	clock := &fakeClock{now: time.Unix(0, 0)}
	dedup := NewDeduplicator(WithClock(clock.Now), WithWindow(time.Second))

	req.True(dedup.MarkIfNew("x"))
	clock.Advance(time.Second)
	req.True(dedup.MarkIfNew("x"))
}
