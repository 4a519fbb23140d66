package chat

import "time"

type EventType string

const (
	ReceiveDirectMessage EventType = "ReceiveDirectMessage"
	MessageSent          EventType = "MessageSent"
	UserTyping           EventType = "UserTyping"
	UserStoppedTyping    EventType = "UserStoppedTyping"
	MessagesRead         EventType = "MessagesRead"
	SystemNotification   EventType = "SystemNotification"
	RoleNotification     EventType = "RoleNotification"
	AssistantReply       EventType = "AssistantReply"
)

// Event is what the router pushes to a connection.
type Event struct {
	Type    EventType
	Payload any
}

type MessagePayload struct {
	MessageID      MessageID      `json:"messageId"`
	ConversationID ConversationID `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	ReceiverID     string         `json:"receiverId"`
	Body           string         `json:"body"`
	CreatedAt      time.Time      `json:"createdAt"`
	ReadAt         *time.Time     `json:"readAt,omitempty"`
	IsPermanent    bool           `json:"isPermanent"`
}

func ToMessagePayload(m Message) MessagePayload {
	return MessagePayload{
		MessageID:      m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
		ReadAt:         m.ReadAt,
		IsPermanent:    m.IsPermanent,
	}
}

// Ack is returned to the sender once the message is durable.
type Ack struct {
	MessageID      MessageID      `json:"messageId"`
	ConversationID ConversationID `json:"conversationId"`
	CreatedAt      time.Time      `json:"createdAt"`
	Delivered      int            `json:"delivered"`
	Duplicate      bool           `json:"duplicate,omitempty"`
}

type TypingPayload struct {
	FromID string `json:"fromId"`
}

type ReadPayload struct {
	ReaderID string    `json:"readerId"`
	At       time.Time `json:"at"`
}

type SystemNotificationPayload struct {
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Category string    `json:"category"`
	At       time.Time `json:"at"`
}

type RoleNotificationPayload struct {
	Role    string `json:"role"`
	Payload any    `json:"payload"`
}

type AssistantReplyPayload struct {
	Prompt string `json:"prompt"`
	Reply  string `json:"reply,omitempty"`
	Error  string `json:"error,omitempty"`
}
