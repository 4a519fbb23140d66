//go:generate go run go.uber.org/mock/mockgen -source=hub.go -destination=../mocks/mock_hub.go -package=mocks
package services

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"gym-chat/contract"
	"gym-chat/domain/chat"
	"gym-chat/errors"
	"gym-chat/moderation"
	"gym-chat/observability"
	"gym-chat/repositories"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
)

// Methods a connected client can invoke.
const (
	MethodGetHistory        = "getHistory"
	MethodSendDirectMessage = "sendDirectMessage"
	MethodMarkRead          = "markRead"
	MethodTyping            = "typing"
	MethodStoppedTyping     = "stoppedTyping"
	MethodListConversations = "listConversations"
	MethodUnreadCount       = "unreadCount"
	MethodMarkPermanent     = "markPermanent"
	MethodAskAssistant      = "askAssistant"
)

// IHub is the single entry point of the transport layer.
type IHub interface {
	Authenticate(ctx context.Context, credential string) (chat.Identity, error)
	OnConnect(ctx context.Context, conn contract.Connection)
	OnDisconnect(ctx context.Context, conn contract.Connection)
	Invoke(ctx context.Context, conn contract.Connection, method string, args json.RawMessage) (any, error)

	BroadcastSystemNotification(ctx context.Context, title, body, category string) int
	PushToRole(ctx context.Context, role string, payload any) int
	ExpirySweep(ctx context.Context) (int, error)
	Presence(userID string) int
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type HubConfig struct {
	MaxBodyLength    int
	AssistantTimeout time.Duration
}

type HistoryResult struct {
	Messages   []chat.MessagePayload `json:"messages"`
	NextCursor string                `json:"nextCursor,omitempty"`
}

type MarkReadResult struct {
	Marked int `json:"marked"`
}

type CountResult struct {
	Count int `json:"count"`
}

type ConversationResult struct {
	PartnerID   string              `json:"partnerId"`
	LastMessage chat.MessagePayload `json:"lastMessage"`
	UnreadCount int                 `json:"unreadCount"`
}

type AcceptedResult struct {
	Accepted bool `json:"accepted"`
}

type Hub struct {
	log       *slog.Logger
	registry  contract.IRegistry
	router    contract.IGroupRouter
	dedup     contract.IDeduplicator
	notifier  contract.INotifier
	store     repositories.IMessageRepository
	resolver  contract.IdentityResolver
	moderator moderation.IModerator
	responder contract.Responder
	metrics   *observability.Metrics
	config    HubConfig
	now       func() time.Time
	pending   sync.WaitGroup
}

func NewHub(log *slog.Logger, registry contract.IRegistry, router contract.IGroupRouter,
	dedup contract.IDeduplicator, notifier contract.INotifier, store repositories.IMessageRepository,
	resolver contract.IdentityResolver, moderator moderation.IModerator, responder contract.Responder,
	metrics *observability.Metrics, config HubConfig) *Hub {
	return &Hub{
		log:       log,
		registry:  registry,
		router:    router,
		dedup:     dedup,
		notifier:  notifier,
		store:     store,
		resolver:  resolver,
		moderator: moderator,
		responder: responder,
		metrics:   metrics,
		config:    config,
		now:       time.Now,
	}
}

// Authenticate runs before any handle exists: a refused credential never reaches the registry.
func (h *Hub) Authenticate(ctx context.Context, credential string) (chat.Identity, error) {
	identity, err := h.resolver.Resolve(ctx, credential)
	if err != nil {
		if !goerrors.Is(err, errors.ErrIdentity) {
			err = fmt.Errorf("%w: %w", errors.ErrIdentity, err)
		}
		return chat.Identity{}, err
	}
	return identity, nil
}

// OnConnect registers the handle and joins its personal and role groups.
func (h *Hub) OnConnect(_ context.Context, conn contract.Connection) {
	identity := conn.Identity()
	h.registry.Register(identity, conn)
	for _, group := range identity.Groups() {
		h.router.JoinGroup(conn, group)
	}
	h.log.Debug("Connection joined", "user_id", identity.UserID, "connection_id", conn.ID())
}

// OnDisconnect tears down registry and group membership. Calling it twice is harmless.
func (h *Hub) OnDisconnect(_ context.Context, conn contract.Connection) {
	identity := conn.Identity()
	for _, group := range identity.Groups() {
		h.router.LeaveGroup(conn, group)
	}
	h.registry.Unregister(identity, conn)
	h.log.Debug("Connection left", "user_id", identity.UserID, "connection_id", conn.ID())
}

// Invoke decodes the arguments of method and runs it on behalf of conn.
func (h *Hub) Invoke(ctx context.Context, conn contract.Connection, method string, raw json.RawMessage) (result any, err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = errors.Kind(err)
		}
		label := method
		if goerrors.Is(err, errors.ErrUnknownMethod) {
			label = "unknown"
		}
		h.metrics.Invocations.WithLabelValues(label, outcome).Inc()
	}()

	switch method {
	case MethodGetHistory:
		return invoke(raw, func(args GetHistoryArgs) (HistoryResult, error) { return h.GetHistory(ctx, conn, args) })
	case MethodSendDirectMessage:
		return invoke(raw, func(args SendDirectMessageArgs) (chat.Ack, error) { return h.SendDirectMessage(ctx, conn, args) })
	case MethodMarkRead:
		return invoke(raw, func(args MarkReadArgs) (MarkReadResult, error) { return h.MarkRead(ctx, conn, args) })
	case MethodTyping:
		return invoke(raw, func(args TypingArgs) (CountResult, error) { return h.Typing(ctx, conn, args), nil })
	case MethodStoppedTyping:
		return invoke(raw, func(args TypingArgs) (CountResult, error) { return h.StoppedTyping(ctx, conn, args), nil })
	case MethodListConversations:
		return h.ListConversations(ctx, conn)
	case MethodUnreadCount:
		count, err := h.UnreadCount(ctx, conn.Identity().UserID)
		return CountResult{Count: count}, err
	case MethodMarkPermanent:
		return invoke(raw, func(args MarkPermanentArgs) (AcceptedResult, error) { return h.MarkPermanent(ctx, conn, args) })
	case MethodAskAssistant:
		return invoke(raw, func(args AskAssistantArgs) (AcceptedResult, error) { return h.AskAssistant(ctx, conn, args) })
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownMethod, method)
	}
}

func invoke[T, R any](raw json.RawMessage, fn func(T) (R, error)) (any, error) {
	args, err := decodeArgs[T](raw)
	if err != nil {
		return nil, err
	}
	result, err := fn(args)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (h *Hub) GetHistory(ctx context.Context, conn contract.Connection, args GetHistoryArgs) (HistoryResult, error) {
	var before *chat.Cursor
	if args.Cursor != "" {
		cursor, err := chat.ParseCursor(args.Cursor)
		if err != nil {
			return HistoryResult{}, fmt.Errorf("%w: %w", errors.ErrInvalidCursor, err)
		}
		before = &cursor
	}
	page, err := h.store.GetHistory(ctx, conn.Identity().UserID, args.OtherUserID, args.Limit, before)
	if err != nil {
		return HistoryResult{}, h.storeFailure("get history", conn.Identity().UserID, err)
	}
	result := HistoryResult{Messages: lo.Map(page.Messages, func(m chat.Message, _ int) chat.MessagePayload {
		return chat.ToMessagePayload(m)
	})}
	if page.NextCursor != nil {
		result.NextCursor = page.NextCursor.String()
	}
	return result, nil
}

// SendDirectMessage persists the message first. Live fan-out happens only once
// per dedup key; the caller always gets its acknowledgement.
func (h *Hub) SendDirectMessage(ctx context.Context, conn contract.Connection, args SendDirectMessageArgs) (chat.Ack, error) {
	senderID := conn.Identity().UserID
	body := strings.TrimSpace(args.Body)
	switch {
	case body == "":
		return chat.Ack{}, errors.Validation("message body is empty")
	case h.config.MaxBodyLength > 0 && utf8.RuneCountInString(body) > h.config.MaxBodyLength:
		return chat.Ack{}, errors.Validation("message body exceeds %d characters", h.config.MaxBodyLength)
	case args.RecipientID == senderID:
		return chat.Ack{}, errors.Validation("cannot send a message to yourself")
	}

	body, words := h.moderator.Censor(body)
	if len(words) > 0 {
		h.log.Debug("Message censored", "user_id", senderID, "words", len(words))
	}

	// A client leaving mid-send must not abort a write the store has begun.
	detached := context.WithoutCancel(ctx)
	message, err := h.store.SaveMessage(detached, senderID, args.RecipientID, body)
	if err != nil {
		return chat.Ack{}, h.storeFailure("save message", senderID, err)
	}
	h.metrics.MessagesSaved.Inc()

	ack := chat.Ack{
		MessageID:      message.ID,
		ConversationID: message.ConversationID,
		CreatedAt:      message.CreatedAt,
	}
	key := string(message.ID)
	if args.ClientMessageID != "" {
		key = senderID + ":" + args.ClientMessageID
	}
	if h.dedup.MarkIfNew(key) {
		evt := chat.Event{Type: chat.ReceiveDirectMessage, Payload: chat.ToMessagePayload(message)}
		ack.Delivered = h.router.Broadcast(detached, chat.UserGroup(args.RecipientID), evt)
		ack.Delivered += h.router.Broadcast(detached, chat.UserGroup(senderID), evt, conn.ID())
	} else {
		ack.Duplicate = true
		h.metrics.DedupSuppressed.Inc()
		h.log.Debug("Duplicate send, fan-out suppressed", "user_id", senderID, "message_id", message.ID)
	}

	_ = h.router.SendToConnection(detached, conn, chat.Event{Type: chat.MessageSent, Payload: ack})
	return ack, nil
}

func (h *Hub) MarkRead(ctx context.Context, conn contract.Connection, args MarkReadArgs) (MarkReadResult, error) {
	readerID := conn.Identity().UserID
	marked, err := h.store.MarkRead(ctx, args.OtherUserID, readerID)
	if err != nil {
		return MarkReadResult{}, h.storeFailure("mark read", readerID, err)
	}
	h.notifier.NotifyRead(ctx, args.OtherUserID, readerID, h.now().UTC())
	return MarkReadResult{Marked: marked}, nil
}

func (h *Hub) Typing(ctx context.Context, conn contract.Connection, args TypingArgs) CountResult {
	return CountResult{Count: h.notifier.NotifyTyping(ctx, conn.Identity().UserID, args.RecipientID)}
}

func (h *Hub) StoppedTyping(ctx context.Context, conn contract.Connection, args TypingArgs) CountResult {
	return CountResult{Count: h.notifier.NotifyStoppedTyping(ctx, conn.Identity().UserID, args.RecipientID)}
}

func (h *Hub) ListConversations(ctx context.Context, conn contract.Connection) ([]ConversationResult, error) {
	userID := conn.Identity().UserID
	summaries, err := h.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, h.storeFailure("list conversations", userID, err)
	}
	return lo.Map(summaries, func(s chat.ConversationSummary, _ int) ConversationResult {
		return ConversationResult{
			PartnerID:   s.PartnerID,
			LastMessage: chat.ToMessagePayload(s.LastMessage),
			UnreadCount: s.UnreadCount,
		}
	}), nil
}

// MarkPermanent is only allowed to the sender or the receiver of the message.
func (h *Hub) MarkPermanent(ctx context.Context, conn contract.Connection, args MarkPermanentArgs) (AcceptedResult, error) {
	userID := conn.Identity().UserID
	id := chat.MessageID(args.MessageID)
	message, err := h.store.GetMessage(ctx, id)
	if err != nil {
		return AcceptedResult{}, h.storeFailure("get message", userID, err)
	}
	if !message.Involves(userID) {
		return AcceptedResult{}, fmt.Errorf("%w: %s", errors.ErrForbidden, id)
	}
	if err := h.store.MarkPermanent(ctx, id); err != nil {
		return AcceptedResult{}, h.storeFailure("mark permanent", userID, err)
	}
	return AcceptedResult{Accepted: true}, nil
}

// AskAssistant returns at once; the reply is pushed to the asking connection
// as an AssistantReply event when the responder is done.
func (h *Hub) AskAssistant(ctx context.Context, conn contract.Connection, args AskAssistantArgs) (AcceptedResult, error) {
	userID := conn.Identity().UserID
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		detached := context.WithoutCancel(ctx)
		askCtx, cancel := context.WithTimeout(detached, h.config.AssistantTimeout)
		defer cancel()

		payload := chat.AssistantReplyPayload{Prompt: args.Prompt}
		reply, err := h.responder.Respond(askCtx, userID, args.Prompt)
		if err != nil {
			h.log.Warn("Assistant failed", "user_id", userID, "error", err)
			payload.Error = err.Error()
		} else {
			payload.Reply = reply
		}
		_ = h.router.SendToConnection(detached, conn, chat.Event{Type: chat.AssistantReply, Payload: payload})
	}()
	return AcceptedResult{Accepted: true}, nil
}

// Wait blocks until every pending assistant call has answered.
func (h *Hub) Wait() {
	h.pending.Wait()
}

func (h *Hub) BroadcastSystemNotification(ctx context.Context, title, body, category string) int {
	return h.notifier.BroadcastSystemNotification(ctx, title, body, category)
}

func (h *Hub) PushToRole(ctx context.Context, role string, payload any) int {
	return h.notifier.PushToRole(ctx, role, payload)
}

func (h *Hub) ExpirySweep(ctx context.Context) (int, error) {
	removed, err := h.store.ExpirySweep(ctx, h.now())
	if err != nil {
		return removed, h.storeFailure("expiry sweep", "", err)
	}
	h.metrics.ExpiredMessages.Add(float64(removed))
	h.log.Info("Expired messages removed", "removed", removed)
	return removed, nil
}

// Presence is the number of live connections of userID.
func (h *Hub) Presence(userID string) int {
	return len(h.registry.ActiveConnections(userID))
}

func (h *Hub) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := h.store.UnreadCount(ctx, userID)
	if err != nil {
		return 0, h.storeFailure("unread count", userID, err)
	}
	return count, nil
}

func (h *Hub) storeFailure(op, userID string, err error) error {
	if goerrors.Is(err, errors.ErrPersistence) {
		h.metrics.PersistenceFailures.Inc()
		h.log.Error("Store operation failed", "op", op, "user_id", userID, "error", err)
	}
	return err
}
