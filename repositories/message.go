//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"gym-chat/domain/chat"
	"gym-chat/errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// IMessageRepository is the durable source of truth for direct messages.
type IMessageRepository interface {
	SaveMessage(ctx context.Context, senderID, receiverID, body string) (chat.Message, error)
	GetHistory(ctx context.Context, userA, userB string, limit int, before *chat.Cursor) (chat.HistoryPage, error)
	MarkRead(ctx context.Context, partnerID, readerID string) (int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	ListConversations(ctx context.Context, userID string) ([]chat.ConversationSummary, error)
	MarkPermanent(ctx context.Context, id chat.MessageID) error
	ExpirySweep(ctx context.Context, now time.Time) (int, error)
	GetMessage(ctx context.Context, id chat.MessageID) (chat.Message, error)
	Close() error
}

const (
	lockShards = 32
	// Upper bound on keys touched by a single transaction during bulk updates.
	maxBatch = 500
)

// MessageRepository stores messages in BadgerDB.
//
// Key layout:
//
//	msg:{id}                              -> JSON record
//	conv:{conversation}:{nanos:019d}:{id} -> history index
//	unread:{receiver}:{sender}:{id}       -> unread index
//	partner:{user}:{partner}              -> id of the last message of the conversation
//	exp:{nanos:019d}:{id}                 -> expiry index, non-permanent messages only
//
// Writes to one conversation are serialized so that the timestamp order of the
// history index always matches the commit order.
type MessageRepository struct {
	db    *badger.DB
	log   *slog.Logger
	opts  Options
	clock *StampClock
	locks [lockShards]sync.Mutex
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, opts ...Option) *MessageRepository {
	o := NewOptions(opts...)
	r := &MessageRepository{db: db, log: log, opts: o, clock: NewStampClock(o.Now)}
	if err := r.seedClock(); err != nil {
		log.Warn("Unable to seed stamp clock from stored messages", "error", err)
	}
	return r
}

// seedClock moves the stamp clock past the newest history key on disk so a
// wall clock running behind after a restart cannot reorder a conversation.
func (m *MessageRepository) seedClock() error {
	var newest int64
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte("conv:")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			nanos, ok := stampOf(it.Item().Key())
			if ok && nanos > newest {
				newest = nanos
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if newest > 0 {
		m.clock.Observe(time.Unix(0, newest))
	}
	return nil
}

// stampOf extracts the nanos segment of conv:{conversation}:{nanos}:{id}.
func stampOf(key []byte) (int64, bool) {
	k := string(key)
	end := strings.LastIndexByte(k, ':')
	if end <= 0 {
		return 0, false
	}
	start := strings.LastIndexByte(k[:end], ':')
	if start < 0 {
		return 0, false
	}
	nanos, err := strconv.ParseInt(k[start+1:end], 10, 64)
	return nanos, err == nil
}

type messageRecord struct {
	ID             string `json:"id"`
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id"`
	ConversationID string `json:"conversation_id"`
	Body           string `json:"body"`
	CreatedAt      int64  `json:"created_at"`
	ReadAt         int64  `json:"read_at,omitempty"`
	IsPermanent    bool   `json:"is_permanent,omitempty"`
}

func fromMessage(m chat.Message) messageRecord {
	record := messageRecord{
		ID:             string(m.ID),
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		ConversationID: string(m.ConversationID),
		Body:           m.Body,
		CreatedAt:      m.CreatedAt.UnixNano(),
		IsPermanent:    m.IsPermanent,
	}
	if m.ReadAt != nil {
		record.ReadAt = m.ReadAt.UnixNano()
	}
	return record
}

func (r messageRecord) toMessage() chat.Message {
	m := chat.Message{
		ID:             chat.MessageID(r.ID),
		SenderID:       r.SenderID,
		ReceiverID:     r.ReceiverID,
		ConversationID: chat.ConversationID(r.ConversationID),
		Body:           r.Body,
		CreatedAt:      time.Unix(0, r.CreatedAt).UTC(),
		IsPermanent:    r.IsPermanent,
	}
	if r.ReadAt != 0 {
		m.ReadAt = lo.ToPtr(time.Unix(0, r.ReadAt).UTC())
	}
	return m
}

func msgKey(id chat.MessageID) []byte { return []byte("msg:" + string(id)) }

func convPrefix(cid chat.ConversationID) []byte { return []byte("conv:" + string(cid) + ":") }

func convKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("conv:%s:%019d:%s", m.ConversationID, m.CreatedAt.UnixNano(), m.ID))
}

func unreadPrefix(receiverID string) []byte { return []byte("unread:" + receiverID + ":") }

func unreadPairPrefix(receiverID, senderID string) []byte {
	return []byte("unread:" + receiverID + ":" + senderID + ":")
}

func unreadKey(m chat.Message) []byte {
	return []byte("unread:" + m.ReceiverID + ":" + m.SenderID + ":" + string(m.ID))
}

func partnerPrefix(userID string) []byte { return []byte("partner:" + userID + ":") }

func partnerKey(userID, partnerID string) []byte { return []byte("partner:" + userID + ":" + partnerID) }

const expPrefix = "exp:"

func expKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("exp:%019d:%s", m.CreatedAt.UnixNano(), m.ID))
}

func (m *MessageRepository) lock(cid chat.ConversationID) *sync.Mutex {
	return &m.locks[xxhash.Sum64String(string(cid))%lockShards]
}

// SaveMessage assigns the id and creation time, then writes the record and
// every index in a single transaction.
func (m *MessageRepository) SaveMessage(ctx context.Context, senderID, receiverID, body string) (chat.Message, error) {
	if err := ValidateParticipants(senderID, receiverID); err != nil {
		return chat.Message{}, err
	}
	if err := ValidateBody(body); err != nil {
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

	mu := m.lock(message.ConversationID)
	mu.Lock()
	defer mu.Unlock()
	message.CreatedAt = m.clock.Next()

	value, err := json.Marshal(fromMessage(message))
	if err != nil {
		return chat.Message{}, errors.Persistence("save message", err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		entries := map[string][]byte{
			string(msgKey(message.ID)):               value,
			string(convKey(message)):                 []byte(message.ID),
			string(unreadKey(message)):               nil,
			string(partnerKey(senderID, receiverID)): []byte(message.ID),
			string(partnerKey(receiverID, senderID)): []byte(message.ID),
			string(expKey(message)):                  nil,
		}
		for k, v := range entries {
			if err := txn.Set([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		m.log.Error("Unable to save message", "sender_id", senderID, "receiver_id", receiverID, "error", err)
		return chat.Message{}, errors.Persistence("save message", err)
	}
	return message, nil
}

// GetHistory walks the conversation index backwards from the cursor.
func (m *MessageRepository) GetHistory(ctx context.Context, userA, userB string, limit int, before *chat.Cursor) (chat.HistoryPage, error) {
	if err := ctx.Err(); err != nil {
		return chat.HistoryPage{}, errors.Persistence("get history", err)
	}
	limit = m.opts.ClampLimit(limit)
	prefix := convPrefix(chat.ConversationIDFor(userA, userB))

	var seekKey []byte
	switch before {
	case nil:
		seekKey = append(slices.Clone(prefix), 0xff)
	default:
		seekKey = append(slices.Clone(prefix), []byte(before.String())...)
	}

	var messages []chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		it.Seek(seekKey)
		if before != nil && it.ValidForPrefix(prefix) && bytes.Equal(it.Item().Key(), seekKey) {
			it.Next()
		}
		for ; it.ValidForPrefix(prefix) && len(messages) <= limit; it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			message, err := getMessage(txn, chat.MessageID(id))
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return chat.HistoryPage{}, errors.Persistence("get history", err)
	}

	page := chat.HistoryPage{}
	if len(messages) > limit {
		messages = messages[:limit]
		page.NextCursor = lo.ToPtr(chat.CursorOf(messages[limit-1]))
	}
	slices.Reverse(messages)
	page.Messages = messages
	return page, nil
}

// MarkRead sets the read time on every unread message sent by partnerID to readerID.
// Messages already read keep their original read time.
func (m *MessageRepository) MarkRead(ctx context.Context, partnerID, readerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Persistence("mark read", err)
	}
	mu := m.lock(chat.ConversationIDFor(partnerID, readerID))
	mu.Lock()
	defer mu.Unlock()

	now := m.opts.Now().UTC()
	prefix := unreadPairPrefix(readerID, partnerID)
	total := 0
	for {
		keys, err := m.keysWithPrefix(prefix, maxBatch)
		if err != nil {
			return total, errors.Persistence("mark read", err)
		}
		if len(keys) == 0 {
			return total, nil
		}
		marked := 0
		err = m.db.Update(func(txn *badger.Txn) error {
			for _, key := range keys {
				id := chat.MessageID(key[len(prefix):])
				message, err := getMessage(txn, id)
				if err != nil && !goerrors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
				if err == nil && message.ReadAt == nil {
					message.ReadAt = lo.ToPtr(now)
					if err := putMessage(txn, message); err != nil {
						return err
					}
					marked++
				}
				if err := txn.Delete([]byte(key)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			m.log.Error("Unable to mark messages as read", "reader_id", readerID, "partner_id", partnerID, "error", err)
			return total, errors.Persistence("mark read", err)
		}
		total += marked
	}
}

func (m *MessageRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Persistence("unread count", err)
	}
	var count int
	err := m.db.View(func(txn *badger.Txn) error {
		count = countPrefix(txn, unreadPrefix(userID))
		return nil
	})
	if err != nil {
		return 0, errors.Persistence("unread count", err)
	}
	return count, nil
}

// ListConversations returns one summary per partner, most recent first.
func (m *MessageRepository) ListConversations(ctx context.Context, userID string) ([]chat.ConversationSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Persistence("list conversations", err)
	}
	var summaries []chat.ConversationSummary
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := partnerPrefix(userID)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			partnerID := string(item.Key()[len(prefix):])
			id, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			last, err := getMessage(txn, chat.MessageID(id))
			if goerrors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			summaries = append(summaries, chat.ConversationSummary{
				PartnerID:   partnerID,
				LastMessage: last,
				UnreadCount: countPrefix(txn, unreadPairPrefix(userID, partnerID)),
			})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Persistence("list conversations", err)
	}
	SortConversations(summaries)
	return summaries, nil
}

func (m *MessageRepository) MarkPermanent(ctx context.Context, id chat.MessageID) error {
	if err := ctx.Err(); err != nil {
		return errors.Persistence("mark permanent", err)
	}
	message, err := m.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	mu := m.lock(message.ConversationID)
	mu.Lock()
	defer mu.Unlock()

	err = m.db.Update(func(txn *badger.Txn) error {
		message, err := getMessage(txn, id)
		if err != nil {
			return err
		}
		if message.IsPermanent {
			return nil
		}
		message.IsPermanent = true
		if err := putMessage(txn, message); err != nil {
			return err
		}
		return txn.Delete(expKey(message))
	})
	switch {
	case goerrors.Is(err, badger.ErrKeyNotFound):
		return NotFound(id)
	case err != nil:
		return errors.Persistence("mark permanent", err)
	}
	return nil
}

// ExpirySweep deletes non-permanent messages created before now minus the retention.
func (m *MessageRepository) ExpirySweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := m.opts.Cutoff(now).UnixNano()
	var expired []chat.MessageID
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(expPrefix)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			nanos, id, ok := strings.Cut(string(it.Item().Key()[len(prefix):]), ":")
			if !ok {
				continue
			}
			n, err := strconv.ParseInt(nanos, 10, 64)
			if err != nil {
				continue
			}
			if n >= cutoff {
				break
			}
			expired = append(expired, chat.MessageID(id))
		}
		return nil
	})
	if err != nil {
		return 0, errors.Persistence("expiry sweep", err)
	}

	removed := 0
	for _, chunk := range lo.Chunk(expired, maxBatch) {
		if err := ctx.Err(); err != nil {
			return removed, errors.Persistence("expiry sweep", err)
		}
		n, err := m.deleteExpired(chunk)
		removed += n
		if err != nil {
			m.log.Error("Expiry sweep interrupted", "removed", removed, "error", err)
			return removed, errors.Persistence("expiry sweep", err)
		}
	}
	m.log.Debug("Expiry sweep done", "removed", removed)
	return removed, nil
}

// deleteExpired removes one batch of messages, one conversation at a time, and
// repoints the conversation list at the newest surviving message.
func (m *MessageRepository) deleteExpired(ids []chat.MessageID) (int, error) {
	var messages []chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			message, err := getMessage(txn, id)
			if goerrors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for cid, group := range lo.GroupBy(messages, func(m chat.Message) chat.ConversationID { return m.ConversationID }) {
		n, err := m.deleteFromConversation(cid, group)
		removed += n
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (m *MessageRepository) deleteFromConversation(cid chat.ConversationID, messages []chat.Message) (int, error) {
	mu := m.lock(cid)
	mu.Lock()
	defer mu.Unlock()

	removed := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		for _, candidate := range messages {
			message, err := getMessage(txn, candidate.ID)
			if goerrors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			// Marked permanent since the scan.
			if message.IsPermanent {
				continue
			}
			for _, key := range [][]byte{msgKey(message.ID), convKey(message), unreadKey(message), expKey(message)} {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			removed++
		}
		return nil
	})
	if err != nil || removed == 0 {
		return 0, err
	}
	return removed, m.repointPartners(cid, messages[0].SenderID, messages[0].ReceiverID)
}

func (m *MessageRepository) repointPartners(cid chat.ConversationID, a, b string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		last, found, err := lastInConversation(txn, cid)
		if err != nil {
			return err
		}
		if !found {
			if err := txn.Delete(partnerKey(a, b)); err != nil {
				return err
			}
			return txn.Delete(partnerKey(b, a))
		}
		if err := txn.Set(partnerKey(a, b), last); err != nil {
			return err
		}
		return txn.Set(partnerKey(b, a), last)
	})
}

func lastInConversation(txn *badger.Txn, cid chat.ConversationID) ([]byte, bool, error) {
	prefix := convPrefix(cid)
	options := badger.DefaultIteratorOptions
	options.Reverse = true
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	it.Seek(append(slices.Clone(prefix), 0xff))
	if !it.ValidForPrefix(prefix) {
		return nil, false, nil
	}
	last, err := it.Item().ValueCopy(nil)
	return last, err == nil, err
}

func (m *MessageRepository) GetMessage(ctx context.Context, id chat.MessageID) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, errors.Persistence("get message", err)
	}
	var message chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		message, err = getMessage(txn, id)
		return err
	})
	switch {
	case goerrors.Is(err, badger.ErrKeyNotFound):
		return chat.Message{}, NotFound(id)
	case err != nil:
		return chat.Message{}, errors.Persistence("get message", err)
	}
	return message, nil
}

func (m *MessageRepository) Close() error {
	return m.db.Close()
}

func (m *MessageRepository) keysWithPrefix(prefix []byte, limit int) ([]string, error) {
	var keys []string
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix) && len(keys) < limit; it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

func getMessage(txn *badger.Txn, id chat.MessageID) (chat.Message, error) {
	item, err := txn.Get(msgKey(id))
	if err != nil {
		return chat.Message{}, err
	}
	var record messageRecord
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &record)
	})
	if err != nil {
		return chat.Message{}, err
	}
	return record.toMessage(), nil
}

func putMessage(txn *badger.Txn, message chat.Message) error {
	value, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return txn.Set(msgKey(message.ID), value)
}

func countPrefix(txn *badger.Txn, prefix []byte) int {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
	defer it.Close()
	count := 0
	for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
		count++
	}
	return count
}

// SortConversations orders summaries by their last message, most recent first.
func SortConversations(summaries []chat.ConversationSummary) {
	slices.SortFunc(summaries, func(a, b chat.ConversationSummary) int {
		if c := b.LastMessage.CreatedAt.Compare(a.LastMessage.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(b.LastMessage.ID), string(a.LastMessage.ID))
	})
}
