// Package storetest holds the behaviour every message store backend must share.
package storetest

import (
	"context"
	"fmt"
	"gym-chat/domain/chat"
	"gym-chat/errors"
	"gym-chat/repositories"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

// Factory opens an empty store. The store is closed by the suite.
type Factory func(t *testing.T, opts ...repositories.Option) repositories.IMessageRepository

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock { return &Clock{now: now} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var epoch = time.Date(2026, time.January, 5, 7, 30, 0, 0, time.UTC)

// Run executes the conformance suite against the backend built by factory.
func Run(t *testing.T, factory Factory) {
	open := func(t *testing.T, opts ...repositories.Option) repositories.IMessageRepository {
		store := factory(t, opts...)
		t.Cleanup(func() { _ = store.Close() })
		return store
	}
	ctx := context.Background()

	t.Run("history is ordered and symmetric", func(t *testing.T) {
		req := require.New(t)
		store := open(t)

		var saved []chat.Message
		for i := 0; i < 6; i++ {
			from, to := "alice", "bob"
			if i%2 == 1 {
				from, to = to, from
			}
			m, err := store.SaveMessage(ctx, from, to, fmt.Sprintf("set %d done", i))
			req.NoError(err)
			saved = append(saved, m)
		}

		ab, err := store.GetHistory(ctx, "alice", "bob", 0, nil)
		req.NoError(err)
		ba, err := store.GetHistory(ctx, "bob", "alice", 0, nil)
		req.NoError(err)

		req.Equal(ids(ab.Messages), ids(ba.Messages))
		req.Equal(ids(saved), ids(ab.Messages))
		req.Nil(ab.NextCursor)
		for i := 1; i < len(ab.Messages); i++ {
			req.True(ab.Messages[i-1].CreatedAt.Before(ab.Messages[i].CreatedAt))
		}
		req.Equal(chat.ConversationIDFor("alice", "bob"), ab.Messages[0].ConversationID)
	})

	t.Run("stamps stay strictly increasing with a frozen clock", func(t *testing.T) {
		req := require.New(t)
		clock := NewClock(epoch)
		store := open(t, repositories.WithClock(clock.Now))

		first, err := store.SaveMessage(ctx, "alice", "bob", "first")
		req.NoError(err)
		second, err := store.SaveMessage(ctx, "bob", "alice", "second")
		req.NoError(err)
		req.True(first.CreatedAt.Before(second.CreatedAt))

		page, err := store.GetHistory(ctx, "alice", "bob", 10, nil)
		req.NoError(err)
		req.Equal([]chat.MessageID{first.ID, second.ID}, ids(page.Messages))
	})

	t.Run("other conversations stay out of the history", func(t *testing.T) {
		req := require.New(t)
		store := open(t)

		_, err := store.SaveMessage(ctx, "alice", "bob", "leg day")
		req.NoError(err)
		_, err = store.SaveMessage(ctx, "alice", "carol", "rest day")
		req.NoError(err)

		page, err := store.GetHistory(ctx, "alice", "bob", 10, nil)
		req.NoError(err)
		req.Len(page.Messages, 1)
		req.Equal("leg day", page.Messages[0].Body)

		page, err = store.GetHistory(ctx, "bob", "carol", 10, nil)
		req.NoError(err)
		req.Empty(page.Messages)
		req.Nil(page.NextCursor)
	})

	t.Run("pagination walks backwards with a cursor", func(t *testing.T) {
		req := require.New(t)
		store := open(t)

		var saved []chat.Message
		for i := 0; i < 5; i++ {
			m, err := store.SaveMessage(ctx, "alice", "bob", fmt.Sprintf("rep %d", i))
			req.NoError(err)
			saved = append(saved, m)
		}

		page, err := store.GetHistory(ctx, "bob", "alice", 2, nil)
		req.NoError(err)
		req.Equal(ids(saved[3:]), ids(page.Messages))
		req.NotNil(page.NextCursor)

		page, err = store.GetHistory(ctx, "bob", "alice", 2, page.NextCursor)
		req.NoError(err)
		req.Equal(ids(saved[1:3]), ids(page.Messages))
		req.NotNil(page.NextCursor)

		page, err = store.GetHistory(ctx, "bob", "alice", 2, page.NextCursor)
		req.NoError(err)
		req.Equal(ids(saved[:1]), ids(page.Messages))
		req.Nil(page.NextCursor)

		var walked []chat.MessageID
		for m, err := range repositories.History(ctx, store, "alice", "bob", 2) {
			req.NoError(err)
			walked = append(walked, m.ID)
		}
		newestFirst := ids(saved)
		slices.Reverse(newestFirst)
		req.Equal(newestFirst, walked)
	})

	t.Run("limit is clamped", func(t *testing.T) {
		req := require.New(t)
		store := open(t, repositories.WithHistoryLimits(3, 4))
		for i := 0; i < 6; i++ {
			_, err := store.SaveMessage(ctx, "alice", "bob", fmt.Sprintf("burpee %d", i))
			req.NoError(err)
		}

		page, err := store.GetHistory(ctx, "alice", "bob", 0, nil)
		req.NoError(err)
		req.Len(page.Messages, 3)

		page, err = store.GetHistory(ctx, "alice", "bob", 100, nil)
		req.NoError(err)
		req.Len(page.Messages, 4)
	})

	t.Run("invalid messages are rejected", func(t *testing.T) {
		req := require.New(t)
		store := open(t)

		_, err := store.SaveMessage(ctx, "alice", "alice", "note to self")
		req.ErrorIs(err, errors.ErrValidation)
		_, err = store.SaveMessage(ctx, "alice", "bob:1", "hi")
		req.ErrorIs(err, errors.ErrValidation)
		_, err = store.SaveMessage(ctx, "", "bob", "hi")
		req.ErrorIs(err, errors.ErrValidation)
		_, err = store.SaveMessage(ctx, "alice", "bob", "")
		req.ErrorIs(err, errors.ErrValidation)

		count, err := store.UnreadCount(ctx, "bob")
		req.NoError(err)
		req.Zero(count)
	})

	t.Run("mark read is idempotent", func(t *testing.T) {
		req := require.New(t)
		clock := NewClock(epoch)
		store := open(t, repositories.WithClock(clock.Now))

		for i := 0; i < 2; i++ {
			_, err := store.SaveMessage(ctx, "bob", "alice", "spot me?")
			req.NoError(err)
		}
		_, err := store.SaveMessage(ctx, "alice", "bob", "on my way")
		req.NoError(err)

		count, err := store.UnreadCount(ctx, "alice")
		req.NoError(err)
		req.Equal(2, count)

		clock.Advance(time.Minute)
		marked, err := store.MarkRead(ctx, "bob", "alice")
		req.NoError(err)
		req.Equal(2, marked)
		first, err := store.GetHistory(ctx, "alice", "bob", 10, nil)
		req.NoError(err)

		clock.Advance(time.Minute)
		marked, err = store.MarkRead(ctx, "bob", "alice")
		req.NoError(err)
		req.Zero(marked)
		second, err := store.GetHistory(ctx, "alice", "bob", 10, nil)
		req.NoError(err)

		for i, m := range first.Messages {
			if m.ReceiverID == "alice" {
				req.NotNil(m.ReadAt)
				req.True(m.ReadAt.Equal(*second.Messages[i].ReadAt))
			} else {
				req.Nil(m.ReadAt)
			}
		}

		count, err = store.UnreadCount(ctx, "alice")
		req.NoError(err)
		req.Zero(count)
		count, err = store.UnreadCount(ctx, "bob")
		req.NoError(err)
		req.Equal(1, count)
	})

	t.Run("conversations are listed most recent first", func(t *testing.T) {
		req := require.New(t)
		store := open(t)

		_, err := store.SaveMessage(ctx, "bob", "alice", "squats at 6")
		req.NoError(err)
		_, err = store.SaveMessage(ctx, "carol", "alice", "yoga at 7")
		req.NoError(err)
		last, err := store.SaveMessage(ctx, "alice", "bob", "deal")
		req.NoError(err)

		summaries, err := store.ListConversations(ctx, "alice")
		req.NoError(err)
		req.Len(summaries, 2)
		req.Equal("bob", summaries[0].PartnerID)
		req.Equal(last.ID, summaries[0].LastMessage.ID)
		req.Equal(1, summaries[0].UnreadCount)
		req.Equal("carol", summaries[1].PartnerID)
		req.Equal(1, summaries[1].UnreadCount)

		summaries, err = store.ListConversations(ctx, "bob")
		req.NoError(err)
		req.Len(summaries, 1)
		req.Equal("alice", summaries[0].PartnerID)
		req.Equal(1, summaries[0].UnreadCount)

		summaries, err = store.ListConversations(ctx, "dave")
		req.NoError(err)
		req.Empty(summaries)
	})

	t.Run("mark permanent", func(t *testing.T) {
		req := require.New(t)
		store := open(t)

		m, err := store.SaveMessage(ctx, "coach", "alice", "your program")
		req.NoError(err)
		req.NoError(store.MarkPermanent(ctx, m.ID))
		req.NoError(store.MarkPermanent(ctx, m.ID))

		got, err := store.GetMessage(ctx, m.ID)
		req.NoError(err)
		req.True(got.IsPermanent)
		req.Equal(m.Body, got.Body)

		req.ErrorIs(store.MarkPermanent(ctx, "unknown"), errors.ErrMessageNotFound)
		_, err = store.GetMessage(ctx, "unknown")
		req.ErrorIs(err, errors.ErrMessageNotFound)
	})

	t.Run("expiry sweep keeps permanent and recent messages", func(t *testing.T) {
		req := require.New(t)
		clock := NewClock(epoch)
		store := open(t, repositories.WithClock(clock.Now), repositories.WithRetention(24*time.Hour))

		old, err := store.SaveMessage(ctx, "alice", "bob", "old")
		req.NoError(err)
		kept, err := store.SaveMessage(ctx, "bob", "alice", "old but permanent")
		req.NoError(err)
		req.NoError(store.MarkPermanent(ctx, kept.ID))
		_, err = store.SaveMessage(ctx, "alice", "carol", "old and alone")
		req.NoError(err)

		clock.Advance(48 * time.Hour)
		recent, err := store.SaveMessage(ctx, "alice", "bob", "recent")
		req.NoError(err)

		removed, err := store.ExpirySweep(ctx, clock.Now())
		req.NoError(err)
		req.Equal(2, removed)

		page, err := store.GetHistory(ctx, "alice", "bob", 10, nil)
		req.NoError(err)
		req.Equal([]chat.MessageID{kept.ID, recent.ID}, ids(page.Messages))
		_, err = store.GetMessage(ctx, old.ID)
		req.ErrorIs(err, errors.ErrMessageNotFound)

		summaries, err := store.ListConversations(ctx, "alice")
		req.NoError(err)
		req.Len(summaries, 1)
		req.Equal("bob", summaries[0].PartnerID)
		req.Equal(recent.ID, summaries[0].LastMessage.ID)

		count, err := store.UnreadCount(ctx, "carol")
		req.NoError(err)
		req.Zero(count)

		removed, err = store.ExpirySweep(ctx, clock.Now())
		req.NoError(err)
		req.Zero(removed)
	})

	t.Run("offline recipient catches up from history", func(t *testing.T) {
		req := require.New(t)
		store := open(t)

		for _, body := range []string{"are you coming?", "class starts at 7", "saved you a spot"} {
			_, err := store.SaveMessage(ctx, "alice", "bob", body)
			req.NoError(err)
		}

		count, err := store.UnreadCount(ctx, "bob")
		req.NoError(err)
		req.Equal(3, count)

		page, err := store.GetHistory(ctx, "bob", "alice", 50, nil)
		req.NoError(err)
		req.Equal([]string{"are you coming?", "class starts at 7", "saved you a spot"},
			lo.Map(page.Messages, func(m chat.Message, _ int) string { return m.Body }))
	})

	t.Run("concurrent saves keep a total order", func(t *testing.T) {
		req := require.New(t)
		store := open(t)

		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				from, to := "alice", "bob"
				if i%2 == 0 {
					from, to = to, from
				}
				_, err := store.SaveMessage(ctx, from, to, fmt.Sprintf("msg %d", i))
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			req.NoError(err)
		}

		page, err := store.GetHistory(ctx, "alice", "bob", 100, nil)
		req.NoError(err)
		req.Len(page.Messages, 40)
		for i := 1; i < len(page.Messages); i++ {
			req.True(page.Messages[i-1].CreatedAt.Before(page.Messages[i].CreatedAt))
		}
		summaries, err := store.ListConversations(ctx, "alice")
		req.NoError(err)
		req.Len(summaries, 1)
		req.Equal(page.Messages[39].ID, summaries[0].LastMessage.ID)
	})
}

func ids(messages []chat.Message) []chat.MessageID {
	return lo.Map(messages, func(m chat.Message, _ int) chat.MessageID { return m.ID })
}
