package sink

import (
	"context"
	"gym-chat/domain/chat"
	"gym-chat/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnection_ConsumeKeepsOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	conn := NewConnection(chat.Identity{UserID: "u1", Role: "member"}, 3)

	for _, body := range []string{"a", "b", "c"} {
		req.NoError(conn.Consume(ctx, chat.Event{Type: chat.ReceiveDirectMessage, Payload: body}))
	}

	for _, want := range []string{"a", "b", "c"} {
		evt := <-conn.Events()
		req.Equal(want, evt.Payload)
	}
}

func TestConnection_FullBufferDrops(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	conn := NewConnection(chat.Identity{UserID: "u1"}, 1)

	req.NoError(conn.Consume(ctx, chat.Event{Type: chat.UserTyping}))
	req.ErrorIs(conn.Consume(ctx, chat.Event{Type: chat.UserTyping}), errors.ErrBufferFull)
}

func TestConnection_ConsumeAfterClose(t *testing.T) {
	req := require.New(t)
	conn := NewConnection(chat.Identity{UserID: "u1"}, 1)
	conn.Close()
	conn.Close()

	req.ErrorIs(conn.Consume(context.Background(), chat.Event{}), errors.ErrConnectionClosed)
	req.Equal(chat.Closed, conn.State())
	_, open := <-conn.Events()
	req.False(open)
}

func TestConnection_StateOnlyMovesForward(t *testing.T) {
	req := require.New(t)
	conn := NewConnection(chat.Identity{UserID: "u1"}, 1)
	req.Equal(chat.Connecting, conn.State())

	conn.SetState(chat.Joined)
	conn.SetState(chat.Connecting)
	req.Equal(chat.Joined, conn.State())

	conn.SetState(chat.Leaving)
	req.Equal(chat.Leaving, conn.State())
}
