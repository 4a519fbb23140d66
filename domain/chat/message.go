// Package chat contains the core concepts of the direct-messaging system.
// Messages are immutable once stored, except for their read state and permanence flag.
// No runtime, network, or storage logic should be added here.
package chat

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type MessageID string

// ConversationID identifies the pair of users exchanging messages,
// whatever the direction of the message.
type ConversationID string

// Message represents a direct message between two users.
type Message struct {
	ID             MessageID
	SenderID       string
	ReceiverID     string
	ConversationID ConversationID
	Body           string
	CreatedAt      time.Time
	ReadAt         *time.Time
	IsPermanent    bool
}

func (m Message) IsRead() bool { return m.ReadAt != nil }

// PartnerOf returns the other participant of the message from userID's point of view.
func (m Message) PartnerOf(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Involves reports whether userID is the sender or the receiver.
func (m Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// ConversationIDFor derives the conversation key from the sorted pair of users.
// Both (a, b) and (b, a) resolve to the same value.
func ConversationIDFor(a, b string) ConversationID {
	if b < a {
		a, b = b, a
	}
	sum := sha256.Sum256([]byte(a + "\x00" + b))
	return ConversationID(hex.EncodeToString(sum[:16]))
}

// ConversationSummary is a derived view of a conversation, never stored as such.
type ConversationSummary struct {
	PartnerID   string
	LastMessage Message
	UnreadCount int
}

// HistoryPage holds messages in ascending (CreatedAt, ID) order.
// NextCursor is nil when no older message exists.
type HistoryPage struct {
	Messages   []Message
	NextCursor *Cursor
}
