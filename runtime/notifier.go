package runtime

import (
	"context"
	"gym-chat/contract"
	"gym-chat/domain/chat"
	"log/slog"
	"time"
)

// Notifier pushes ephemeral signals: typing, read receipts and system notices.
// Nothing here is persisted or queued; an offline recipient simply misses them.
type Notifier struct {
	log      *slog.Logger
	registry contract.IRegistry
	router   contract.IGroupRouter
	now      func() time.Time
}

func NewNotifier(log *slog.Logger, registry contract.IRegistry, router contract.IGroupRouter) *Notifier {
	return &Notifier{log: log, registry: registry, router: router, now: time.Now}
}

func (n *Notifier) NotifyTyping(ctx context.Context, fromID, toID string) int {
	return n.router.Broadcast(ctx, chat.UserGroup(toID), chat.Event{
		Type:    chat.UserTyping,
		Payload: chat.TypingPayload{FromID: fromID},
	})
}

func (n *Notifier) NotifyStoppedTyping(ctx context.Context, fromID, toID string) int {
	return n.router.Broadcast(ctx, chat.UserGroup(toID), chat.Event{
		Type:    chat.UserStoppedTyping,
		Payload: chat.TypingPayload{FromID: fromID},
	})
}

// NotifyRead tells toID that readerID has read their messages up to at.
func (n *Notifier) NotifyRead(ctx context.Context, toID, readerID string, at time.Time) int {
	return n.router.Broadcast(ctx, chat.UserGroup(toID), chat.Event{
		Type:    chat.MessagesRead,
		Payload: chat.ReadPayload{ReaderID: readerID, At: at},
	})
}

// BroadcastSystemNotification reaches every live connection, whatever its groups.
func (n *Notifier) BroadcastSystemNotification(ctx context.Context, title, body, category string) int {
	evt := chat.Event{
		Type: chat.SystemNotification,
		Payload: chat.SystemNotificationPayload{
			Title:    title,
			Body:     body,
			Category: category,
			At:       n.now().UTC(),
		},
	}
	delivered := 0
	for _, conn := range n.registry.All() {
		if err := n.router.SendToConnection(ctx, conn, evt); err == nil {
			delivered++
		}
	}
	n.log.Info("System notification broadcast", "category", category, "delivered", delivered)
	return delivered
}

func (n *Notifier) PushToRole(ctx context.Context, role string, payload any) int {
	return n.router.Broadcast(ctx, chat.RoleGroup(role), chat.Event{
		Type:    chat.RoleNotification,
		Payload: chat.RoleNotificationPayload{Role: role, Payload: payload},
	})
}
