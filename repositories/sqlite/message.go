// Package sqlite is the relational message store, for deployments that prefer
// a single SQLite file over a BadgerDB directory.
package sqlite

import (
	"context"
	"database/sql"
	goerrors "errors"
	"gym-chat/domain/chat"
	"gym-chat/errors"
	"gym-chat/repositories"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const lockShards = 32

type messageModel struct {
	ID             string `gorm:"primaryKey"`
	SenderID       string `gorm:"not null"`
	ReceiverID     string `gorm:"not null;index:idx_messages_receiver_read,priority:1"`
	ConversationID string `gorm:"not null;index:idx_messages_conversation_created,priority:1"`
	Body           string `gorm:"not null"`
	CreatedAtNanos int64  `gorm:"not null;index:idx_messages_conversation_created,priority:2;index:idx_messages_created"`
	ReadAtNanos    *int64 `gorm:"index:idx_messages_receiver_read,priority:2"`
	IsPermanent    bool   `gorm:"not null"`
}

func (messageModel) TableName() string { return "messages" }

func fromMessage(m chat.Message) messageModel {
	model := messageModel{
		ID:             string(m.ID),
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		ConversationID: string(m.ConversationID),
		Body:           m.Body,
		CreatedAtNanos: m.CreatedAt.UnixNano(),
		IsPermanent:    m.IsPermanent,
	}
	if m.ReadAt != nil {
		model.ReadAtNanos = lo.ToPtr(m.ReadAt.UnixNano())
	}
	return model
}

func (m messageModel) toMessage() chat.Message {
	message := chat.Message{
		ID:             chat.MessageID(m.ID),
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		ConversationID: chat.ConversationID(m.ConversationID),
		Body:           m.Body,
		CreatedAt:      time.Unix(0, m.CreatedAtNanos).UTC(),
		IsPermanent:    m.IsPermanent,
	}
	if m.ReadAtNanos != nil {
		message.ReadAt = lo.ToPtr(time.Unix(0, *m.ReadAtNanos).UTC())
	}
	return message
}

// Open opens the SQLite database at path. A single connection is kept so that
// ":memory:" databases are shared and writers never contend on the file lock.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// MessageRepository is the GORM-backed implementation of repositories.IMessageRepository.
type MessageRepository struct {
	db    *gorm.DB
	log   *slog.Logger
	opts  repositories.Options
	clock *repositories.StampClock
	locks [lockShards]sync.Mutex
}

func NewMessageRepository(db *gorm.DB, log *slog.Logger, opts ...repositories.Option) *MessageRepository {
	o := repositories.NewOptions(opts...)
	return &MessageRepository{db: db, log: log, opts: o, clock: repositories.NewStampClock(o.Now)}
}

// Migrate applies schema updates and moves the stamp clock past the newest stored message.
func (r *MessageRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&messageModel{}); err != nil {
		return errors.Persistence("migrate", err)
	}
	var newest sql.NullInt64
	err := r.db.WithContext(ctx).Model(&messageModel{}).Select("MAX(created_at_nanos)").Row().Scan(&newest)
	if err != nil {
		return errors.Persistence("migrate", err)
	}
	if newest.Valid {
		r.clock.Observe(time.Unix(0, newest.Int64))
	}
	return nil
}

func (r *MessageRepository) lock(cid chat.ConversationID) *sync.Mutex {
	return &r.locks[xxhash.Sum64String(string(cid))%lockShards]
}

func (r *MessageRepository) SaveMessage(ctx context.Context, senderID, receiverID, body string) (chat.Message, error) {
	if err := repositories.ValidateParticipants(senderID, receiverID); err != nil {
		return chat.Message{}, err
	}
	if err := repositories.ValidateBody(body); err != nil {
		return chat.Message{}, err
	}
	if err := ctx.Err(); err != nil {
		return chat.Message{}, errors.Persistence("save message", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return chat.Message{}, errors.Persistence("save message", err)
	}
	message := chat.Message{
		ID:             chat.MessageID(id.String()),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		ConversationID: chat.ConversationIDFor(senderID, receiverID),
		Body:           body,
	}

	mu := r.lock(message.ConversationID)
	mu.Lock()
	defer mu.Unlock()
	message.CreatedAt = r.clock.Next()

	model := fromMessage(message)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		r.log.Error("Unable to save message", "sender_id", senderID, "receiver_id", receiverID, "error", err)
		return chat.Message{}, errors.Persistence("save message", err)
	}
	return message, nil
}

// GetHistory uses keyset pagination on (created_at_nanos, id).
func (r *MessageRepository) GetHistory(ctx context.Context, userA, userB string, limit int, before *chat.Cursor) (chat.HistoryPage, error) {
	limit = r.opts.ClampLimit(limit)
	query := r.db.WithContext(ctx).
		Where("conversation_id = ?", string(chat.ConversationIDFor(userA, userB)))
	if before != nil {
		nanos := before.CreatedAt.UnixNano()
		query = query.Where("(created_at_nanos < ? OR (created_at_nanos = ? AND id < ?))", nanos, nanos, string(before.ID))
	}
	var models []messageModel
	err := query.Order("created_at_nanos DESC").Order("id DESC").Limit(limit + 1).Find(&models).Error
	if err != nil {
		return chat.HistoryPage{}, errors.Persistence("get history", err)
	}

	messages := lo.Map(models, func(m messageModel, _ int) chat.Message { return m.toMessage() })
	page := chat.HistoryPage{}
	if len(messages) > limit {
		messages = messages[:limit]
		page.NextCursor = lo.ToPtr(chat.CursorOf(messages[limit-1]))
	}
	slices.Reverse(messages)
	page.Messages = messages
	return page, nil
}

func (r *MessageRepository) MarkRead(ctx context.Context, partnerID, readerID string) (int, error) {
	now := r.opts.Now().UTC().UnixNano()
	result := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("receiver_id = ? AND sender_id = ? AND read_at_nanos IS NULL", readerID, partnerID).
		Update("read_at_nanos", now)
	if result.Error != nil {
		r.log.Error("Unable to mark messages as read", "reader_id", readerID, "partner_id", partnerID, "error", result.Error)
		return 0, errors.Persistence("mark read", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (r *MessageRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("receiver_id = ? AND read_at_nanos IS NULL", userID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Persistence("unread count", err)
	}
	return int(count), nil
}

type unreadRow struct {
	SenderID string
	Total    int
}

const lastMessagesQuery = `
SELECT m.* FROM messages m
WHERE (m.sender_id = ? OR m.receiver_id = ?)
AND NOT EXISTS (
	SELECT 1 FROM messages n
	WHERE n.conversation_id = m.conversation_id
	AND (n.created_at_nanos > m.created_at_nanos OR (n.created_at_nanos = m.created_at_nanos AND n.id > m.id))
)`

func (r *MessageRepository) ListConversations(ctx context.Context, userID string) ([]chat.ConversationSummary, error) {
	var last []messageModel
	if err := r.db.WithContext(ctx).Raw(lastMessagesQuery, userID, userID).Scan(&last).Error; err != nil {
		return nil, errors.Persistence("list conversations", err)
	}
	var unread []unreadRow
	err := r.db.WithContext(ctx).Model(&messageModel{}).
		Select("sender_id, COUNT(*) AS total").
		Where("receiver_id = ? AND read_at_nanos IS NULL", userID).
		Group("sender_id").
		Scan(&unread).Error
	if err != nil {
		return nil, errors.Persistence("list conversations", err)
	}
	unreadBySender := lo.SliceToMap(unread, func(row unreadRow) (string, int) { return row.SenderID, row.Total })

	summaries := lo.Map(last, func(m messageModel, _ int) chat.ConversationSummary {
		message := m.toMessage()
		partnerID := message.PartnerOf(userID)
		return chat.ConversationSummary{
			PartnerID:   partnerID,
			LastMessage: message,
			UnreadCount: unreadBySender[partnerID],
		}
	})
	repositories.SortConversations(summaries)
	return summaries, nil
}

func (r *MessageRepository) MarkPermanent(ctx context.Context, id chat.MessageID) error {
	if _, err := r.GetMessage(ctx, id); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("id = ?", string(id)).
		Update("is_permanent", true).Error
	if err != nil {
		return errors.Persistence("mark permanent", err)
	}
	return nil
}

func (r *MessageRepository) ExpirySweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := r.opts.Cutoff(now).UnixNano()
	result := r.db.WithContext(ctx).
		Where("is_permanent = ? AND created_at_nanos < ?", false, cutoff).
		Delete(&messageModel{})
	if result.Error != nil {
		r.log.Error("Expiry sweep failed", "error", result.Error)
		return 0, errors.Persistence("expiry sweep", result.Error)
	}
	r.log.Debug("Expiry sweep done", "removed", result.RowsAffected)
	return int(result.RowsAffected), nil
}

func (r *MessageRepository) GetMessage(ctx context.Context, id chat.MessageID) (chat.Message, error) {
	var model messageModel
	err := r.db.WithContext(ctx).Where("id = ?", string(id)).First(&model).Error
	switch {
	case goerrors.Is(err, gorm.ErrRecordNotFound):
		return chat.Message{}, repositories.NotFound(id)
	case err != nil:
		return chat.Message{}, errors.Persistence("get message", err)
	}
	return model.toMessage(), nil
}

func (r *MessageRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
