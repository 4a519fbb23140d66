package repositories

import (
	"context"
	"gym-chat/domain/chat"
	"iter"
)

// History walks a conversation from the newest message to the oldest, one page at a time.
// Iteration stops at the first error, which is yielded with a zero message.
func History(ctx context.Context, store IMessageRepository, userA, userB string, pageSize int) iter.Seq2[chat.Message, error] {
	return func(yield func(chat.Message, error) bool) {
		var cursor *chat.Cursor
		for {
			page, err := store.GetHistory(ctx, userA, userB, pageSize, cursor)
			if err != nil {
				yield(chat.Message{}, err)
				return
			}
			for i := len(page.Messages) - 1; i >= 0; i-- {
				if !yield(page.Messages[i], nil) {
					return
				}
			}
			if page.NextCursor == nil {
				return
			}
			cursor = page.NextCursor
		}
	}
}
