package services

import (
	"bytes"
	"context"
	"encoding/json"
	goerrors "errors"
	"gym-chat/contract"
	"gym-chat/domain/chat"
	"gym-chat/errors"
	"gym-chat/mocks"
	"gym-chat/moderation"
	"gym-chat/observability"
	"gym-chat/repositories"
	"gym-chat/repositories/storetest"
	"gym-chat/runtime"
	"gym-chat/sink"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	alice = chat.Identity{UserID: "alice", Role: "member"}
	bob   = chat.Identity{UserID: "bob", Role: "member"}
	coach = chat.Identity{UserID: "coach", Role: "coach"}
)

type hubFixture struct {
	hub      *Hub
	registry *runtime.Registry
	router   *runtime.GroupRouter
	dedup    *runtime.Deduplicator
	metrics  *observability.Metrics
	clock    *storetest.Clock
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	store     repositories.IMessageRepository
	responder contract.Responder
	config    HubConfig
	log       *slog.Logger
}

func withStore(store repositories.IMessageRepository) fixtureOption {
	return func(c *fixtureConfig) { c.store = store }
}

func withLogger(log *slog.Logger) fixtureOption {
	return func(c *fixtureConfig) { c.log = log }
}

func newHubFixture(t *testing.T, opts ...fixtureOption) *hubFixture {
	clock := storetest.NewClock(time.Date(2026, time.February, 2, 18, 0, 0, 0, time.UTC))
	cfg := fixtureConfig{
		responder: NewEchoResponder(time.Millisecond),
		config:    HubConfig{MaxBodyLength: 40, AssistantTimeout: time.Second},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.log
	if log == nil {
		log = logs.GetLoggerFromLevel(slog.LevelDebug)
	}
	if cfg.store == nil {
		db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
		require.NoError(t, err)
		store := repositories.NewMessageRepository(db, log,
			repositories.WithClock(clock.Now), repositories.WithRetention(24*time.Hour))
		t.Cleanup(func() { _ = store.Close() })
		cfg.store = store
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	registry := runtime.NewRegistry()
	router := runtime.NewGroupRouter(log, metrics)
	dedup := runtime.NewDeduplicator(runtime.WithClock(clock.Now))
	notifier := runtime.NewNotifier(log, registry, router)
	moderator, err := moderation.NewModerator([]string{"badger"}, '*', log)
	require.NoError(t, err)

	hub := NewHub(log, registry, router, dedup, notifier, cfg.store, nil, moderator, cfg.responder, metrics, cfg.config)
	hub.now = clock.Now
	return &hubFixture{hub: hub, registry: registry, router: router, dedup: dedup, metrics: metrics, clock: clock}
}

func (f *hubFixture) connect(identity chat.Identity) *sink.Connection {
	conn := sink.NewConnection(identity, 16)
	f.hub.OnConnect(context.Background(), conn)
	return conn
}

func (f *hubFixture) invoke(t *testing.T, conn *sink.Connection, method string, args any) (any, error) {
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return f.hub.Invoke(context.Background(), conn, method, raw)
}

func (f *hubFixture) send(t *testing.T, conn *sink.Connection, to, body string) chat.Ack {
	result, err := f.invoke(t, conn, MethodSendDirectMessage, SendDirectMessageArgs{RecipientID: to, Body: body})
	require.NoError(t, err)
	return result.(chat.Ack)
}

func drain(conn *sink.Connection) []chat.Event {
	var events []chat.Event
	for {
		select {
		case e := <-conn.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func types(events []chat.Event) []chat.EventType {
	return lo.Map(events, func(e chat.Event, _ int) chat.EventType { return e.Type })
}

// Multi-device fan-out: every device of both parties sees the message once,
// except the sending device which only gets its acknowledgement.
func TestHub_SendDirectMessage_MultiDevice(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceLaptop, alicePhone := f.connect(alice), f.connect(alice)
	bobLaptop, bobPhone := f.connect(bob), f.connect(bob)

	ack := f.send(t, aliceLaptop, "bob", "leg day tomorrow?")
	req.Equal(3, ack.Delivered)
	req.False(ack.Duplicate)
	req.Equal(chat.ConversationIDFor("alice", "bob"), ack.ConversationID)

	for _, conn := range []*sink.Connection{alicePhone, bobLaptop, bobPhone} {
		events := drain(conn)
		req.Equal([]chat.EventType{chat.ReceiveDirectMessage}, types(events))
		payload := events[0].Payload.(chat.MessagePayload)
		req.Equal(ack.MessageID, payload.MessageID)
		req.Equal("leg day tomorrow?", payload.Body)
	}
	events := drain(aliceLaptop)
	req.Equal([]chat.EventType{chat.MessageSent}, types(events))
	req.Equal(ack, events[0].Payload.(chat.Ack))
	req.Equal(float64(1), testutil.ToFloat64(f.metrics.MessagesSaved))
}

// An offline recipient finds everything in history and unread count.
func TestHub_OfflineRecipientCatchesUp(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceConn := f.connect(alice)

	var acks []chat.Ack
	for _, body := range []string{"are you coming?", "class starts at 7", "saved you a spot"} {
		ack := f.send(t, aliceConn, "bob", body)
		req.Zero(ack.Delivered)
		acks = append(acks, ack)
	}
	drain(aliceConn)

	bobConn := f.connect(bob)
	result, err := f.invoke(t, bobConn, MethodGetHistory, GetHistoryArgs{OtherUserID: "alice", Limit: 50})
	req.NoError(err)
	history := result.(HistoryResult)
	req.Len(history.Messages, 3)
	req.Empty(history.NextCursor)
	for i, m := range history.Messages {
		req.Equal(acks[i].MessageID, m.MessageID)
	}

	result, err = f.invoke(t, bobConn, MethodUnreadCount, nil)
	req.NoError(err)
	req.Equal(CountResult{Count: 3}, result)

	result, err = f.invoke(t, bobConn, MethodMarkRead, MarkReadArgs{OtherUserID: "alice"})
	req.NoError(err)
	req.Equal(MarkReadResult{Marked: 3}, result)
	result, err = f.invoke(t, bobConn, MethodMarkRead, MarkReadArgs{OtherUserID: "alice"})
	req.NoError(err)
	req.Equal(MarkReadResult{Marked: 0}, result)

	count, err := f.hub.UnreadCount(context.Background(), "bob")
	req.NoError(err)
	req.Zero(count)

	events := drain(aliceConn)
	req.Equal([]chat.EventType{chat.MessagesRead, chat.MessagesRead}, types(events))
	req.Equal("bob", events[0].Payload.(chat.ReadPayload).ReaderID)
}

func TestHub_GetHistory_Pagination(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceConn := f.connect(alice)
	for i := 0; i < 5; i++ {
		f.send(t, aliceConn, "bob", "set done")
	}

	result, err := f.invoke(t, aliceConn, MethodGetHistory, GetHistoryArgs{OtherUserID: "bob", Limit: 3})
	req.NoError(err)
	first := result.(HistoryResult)
	req.Len(first.Messages, 3)
	req.NotEmpty(first.NextCursor)

	result, err = f.invoke(t, aliceConn, MethodGetHistory, GetHistoryArgs{OtherUserID: "bob", Limit: 3, Cursor: first.NextCursor})
	req.NoError(err)
	second := result.(HistoryResult)
	req.Len(second.Messages, 2)
	req.Empty(second.NextCursor)
	req.True(second.Messages[1].CreatedAt.Before(first.Messages[0].CreatedAt))

	_, err = f.invoke(t, aliceConn, MethodGetHistory, GetHistoryArgs{OtherUserID: "bob", Cursor: "yesterday"})
	req.Equal("validation", errors.Kind(err))
}

// A resend with the same client message id is stored again but not fanned out again.
func TestHub_DuplicateSendIsNotFannedOutTwice(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceConn, bobConn := f.connect(alice), f.connect(bob)
	args := SendDirectMessageArgs{RecipientID: "bob", Body: "new PR!", ClientMessageID: "c-1"}

	result, err := f.invoke(t, aliceConn, MethodSendDirectMessage, args)
	req.NoError(err)
	first := result.(chat.Ack)
	result, err = f.invoke(t, aliceConn, MethodSendDirectMessage, args)
	req.NoError(err)
	second := result.(chat.Ack)

	req.False(first.Duplicate)
	req.True(second.Duplicate)
	req.Zero(second.Delivered)
	req.NotEqual(first.MessageID, second.MessageID)
	req.Equal([]chat.EventType{chat.ReceiveDirectMessage}, types(drain(bobConn)))
	req.Equal([]chat.EventType{chat.MessageSent, chat.MessageSent}, types(drain(aliceConn)))
	req.Equal(float64(1), testutil.ToFloat64(f.metrics.DedupSuppressed))

	result, err = f.invoke(t, bobConn, MethodGetHistory, GetHistoryArgs{OtherUserID: "alice"})
	req.NoError(err)
	req.Len(result.(HistoryResult).Messages, 2)

	// Once the window is over the same key fans out again.
	f.clock.Advance(runtime.DefaultDedupWindow)
	_, err = f.invoke(t, aliceConn, MethodSendDirectMessage, args)
	req.NoError(err)
	req.Equal([]chat.EventType{chat.ReceiveDirectMessage}, types(drain(bobConn)))
}

func TestHub_SendDirectMessage_Rejected(t *testing.T) {
	f := newHubFixture(t)
	aliceConn, bobConn := f.connect(alice), f.connect(bob)

	tests := []struct {
		name   string
		method string
		args   any
		kind   string
	}{
		{"empty body", MethodSendDirectMessage, SendDirectMessageArgs{RecipientID: "bob", Body: "  "}, "validation"},
		{"missing body", MethodSendDirectMessage, map[string]string{"recipientId": "bob"}, "validation"},
		{"body too long", MethodSendDirectMessage, SendDirectMessageArgs{RecipientID: "bob", Body: strings.Repeat("a", 41)}, "validation"},
		{"to yourself", MethodSendDirectMessage, SendDirectMessageArgs{RecipientID: "alice", Body: "hi"}, "validation"},
		{"invalid recipient", MethodSendDirectMessage, SendDirectMessageArgs{RecipientID: "bob:1", Body: "hi"}, "validation"},
		{"malformed arguments", MethodSendDirectMessage, []int{1, 2}, "validation"},
		{"unknown method", "deleteEverything", nil, "unknown_method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			_, err := f.invoke(t, aliceConn, tt.method, tt.args)
			req.Error(err)
			req.Equal(tt.kind, errors.Kind(err))
		})
	}

	req := require.New(t)
	req.Empty(drain(bobConn))
	req.Empty(drain(aliceConn))
	count, err := f.hub.UnreadCount(context.Background(), "bob")
	req.NoError(err)
	req.Zero(count)
	req.Equal(float64(1), testutil.ToFloat64(f.metrics.Invocations.WithLabelValues("unknown", "unknown_method")))
}

func TestHub_SendDirectMessage_PersistenceFailure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIMessageRepository(ctrl)
	store.EXPECT().
		SaveMessage(gomock.Any(), "alice", "bob", "see you there").
		Return(chat.Message{}, errors.Persistence("save message", goerrors.New("disk full")))

	f := newHubFixture(t, withStore(store))
	aliceConn, bobConn := f.connect(alice), f.connect(bob)

	_, err := f.invoke(t, aliceConn, MethodSendDirectMessage, SendDirectMessageArgs{RecipientID: "bob", Body: "see you there"})
	req.ErrorIs(err, errors.ErrPersistence)
	req.Empty(drain(bobConn))
	req.Empty(drain(aliceConn))
	req.Zero(f.dedup.Len())
	req.Equal(float64(1), testutil.ToFloat64(f.metrics.PersistenceFailures))
}

func TestHub_SendDirectMessage_SurvivesCallerCancellation(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceConn, bobConn := f.connect(alice), f.connect(bob)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	raw, err := json.Marshal(SendDirectMessageArgs{RecipientID: "bob", Body: "sent while leaving"})
	req.NoError(err)
	_, err = f.hub.Invoke(ctx, aliceConn, MethodSendDirectMessage, raw)
	req.NoError(err)
	req.Equal([]chat.EventType{chat.ReceiveDirectMessage}, types(drain(bobConn)))
}

func TestHub_SendDirectMessage_Censored(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceConn, bobConn := f.connect(alice), f.connect(bob)

	f.send(t, aliceConn, "bob", "you b4dger")
	events := drain(bobConn)
	req.Len(events, 1)
	req.Equal("you ******", events[0].Payload.(chat.MessagePayload).Body)
}

func TestHub_Typing(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceConn, bobConn := f.connect(alice), f.connect(bob)

	result, err := f.invoke(t, aliceConn, MethodTyping, TypingArgs{RecipientID: "bob"})
	req.NoError(err)
	req.Equal(CountResult{Count: 1}, result)
	_, err = f.invoke(t, aliceConn, MethodStoppedTyping, TypingArgs{RecipientID: "bob"})
	req.NoError(err)

	events := drain(bobConn)
	req.Equal([]chat.EventType{chat.UserTyping, chat.UserStoppedTyping}, types(events))
	req.Equal(chat.TypingPayload{FromID: "alice"}, events[1].Payload)
	req.Empty(drain(aliceConn))

	// Offline recipients simply miss the signal.
	result, err = f.invoke(t, aliceConn, MethodTyping, TypingArgs{RecipientID: "carol"})
	req.NoError(err)
	req.Equal(CountResult{Count: 0}, result)
}

func TestHub_ListConversations(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceConn, coachConn := f.connect(alice), f.connect(coach)

	f.send(t, coachConn, "alice", "new program is ready")
	f.send(t, aliceConn, "bob", "gym at 6?")

	result, err := f.invoke(t, aliceConn, MethodListConversations, nil)
	req.NoError(err)
	conversations := result.([]ConversationResult)
	req.Len(conversations, 2)
	req.Equal("bob", conversations[0].PartnerID)
	req.Zero(conversations[0].UnreadCount)
	req.Equal("coach", conversations[1].PartnerID)
	req.Equal(1, conversations[1].UnreadCount)
}

func TestHub_MarkPermanent(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceConn, bobConn, coachConn := f.connect(alice), f.connect(bob), f.connect(coach)
	ack := f.send(t, coachConn, "alice", "your meal plan")

	_, err := f.invoke(t, bobConn, MethodMarkPermanent, MarkPermanentArgs{MessageID: string(ack.MessageID)})
	req.ErrorIs(err, errors.ErrForbidden)

	result, err := f.invoke(t, aliceConn, MethodMarkPermanent, MarkPermanentArgs{MessageID: string(ack.MessageID)})
	req.NoError(err)
	req.Equal(AcceptedResult{Accepted: true}, result)

	_, err = f.invoke(t, aliceConn, MethodMarkPermanent, MarkPermanentArgs{MessageID: "missing"})
	req.Equal("not_found", errors.Kind(err))

	// The permanent message survives the sweep, the other one does not.
	f.send(t, aliceConn, "coach", "thanks!")
	f.clock.Advance(48 * time.Hour)
	removed, err := f.hub.ExpirySweep(context.Background())
	req.NoError(err)
	req.Equal(1, removed)
	req.Equal(float64(1), testutil.ToFloat64(f.metrics.ExpiredMessages))

	result, err = f.invoke(t, aliceConn, MethodGetHistory, GetHistoryArgs{OtherUserID: "coach"})
	req.NoError(err)
	messages := result.(HistoryResult).Messages
	req.Len(messages, 1)
	req.True(messages[0].IsPermanent)
}

func TestHub_AskAssistant(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceConn := f.connect(alice)

	result, err := f.invoke(t, aliceConn, MethodAskAssistant, AskAssistantArgs{Prompt: "how many sets?"})
	req.NoError(err)
	req.Equal(AcceptedResult{Accepted: true}, result)
	f.hub.Wait()

	events := drain(aliceConn)
	req.Equal([]chat.EventType{chat.AssistantReply}, types(events))
	payload := events[0].Payload.(chat.AssistantReplyPayload)
	req.Contains(payload.Reply, "how many sets?")
	req.Empty(payload.Error)
}

func TestHub_AskAssistant_Timeout(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t, func(c *fixtureConfig) {
		c.responder = NewEchoResponder(time.Hour)
		c.config.AssistantTimeout = 10 * time.Millisecond
	})
	aliceConn := f.connect(alice)

	_, err := f.invoke(t, aliceConn, MethodAskAssistant, AskAssistantArgs{Prompt: "deadlift form?"})
	req.NoError(err)
	f.hub.Wait()

	events := drain(aliceConn)
	req.Len(events, 1)
	payload := events[0].Payload.(chat.AssistantReplyPayload)
	req.Empty(payload.Reply)
	req.NotEmpty(payload.Error)
}

func TestHub_Authenticate(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockIdentityResolver(ctrl)
	f := newHubFixture(t)
	f.hub.resolver = resolver

	resolver.EXPECT().Resolve(gomock.Any(), "good").Return(alice, nil)
	resolver.EXPECT().Resolve(gomock.Any(), "bad").Return(chat.Identity{}, goerrors.New("signature invalid"))

	identity, err := f.hub.Authenticate(context.Background(), "good")
	req.NoError(err)
	req.Equal(alice, identity)

	_, err = f.hub.Authenticate(context.Background(), "bad")
	req.ErrorIs(err, errors.ErrIdentity)
	req.Zero(f.registry.Count())
}

func TestHub_OnDisconnect(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	phone, laptop := f.connect(alice), f.connect(alice)
	req.Equal(2, f.hub.Presence("alice"))
	req.Equal(2, f.router.Members(chat.RoleGroup("member")))

	f.hub.OnDisconnect(context.Background(), phone)
	f.hub.OnDisconnect(context.Background(), phone)
	req.Equal(1, f.hub.Presence("alice"))

	f.hub.OnDisconnect(context.Background(), laptop)
	req.Zero(f.hub.Presence("alice"))
	req.Zero(f.registry.Count())
	req.Zero(f.registry.Users())
	req.Zero(f.router.Members(chat.UserGroup("alice")))
	req.Zero(f.router.Members(chat.RoleGroup("member")))
}

func TestHub_AdminSurface(t *testing.T) {
	req := require.New(t)
	f := newHubFixture(t)
	aliceConn, bobConn, coachConn := f.connect(alice), f.connect(bob), f.connect(coach)

	req.Equal(3, f.hub.BroadcastSystemNotification(context.Background(), "Closed", "Gym closed on Monday", "schedule"))
	req.Equal(1, f.hub.PushToRole(context.Background(), "coach", map[string]string{"shift": "morning"}))

	req.Equal([]chat.EventType{chat.SystemNotification}, types(drain(aliceConn)))
	req.Equal([]chat.EventType{chat.SystemNotification}, types(drain(bobConn)))
	req.Equal([]chat.EventType{chat.SystemNotification, chat.RoleNotification}, types(drain(coachConn)))
}

func TestHub_BroadcastLoggedOnce(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	f := newHubFixture(t, withLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	f.connect(alice)

	req.Equal(1, f.hub.BroadcastSystemNotification(context.Background(), "Closed", "Gym closed on Monday", "schedule"))
	req.Equal(1, strings.Count(buf.String(), "System notification broadcast"))
}
