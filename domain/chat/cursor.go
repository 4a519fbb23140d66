package chat

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cursor points at a message position in a conversation.
// Ties on CreatedAt are broken by ID so the order is total.
type Cursor struct {
	CreatedAt time.Time
	ID        MessageID
}

func CursorOf(m Message) Cursor {
	return Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// Before reports whether the position of m is strictly older than the cursor.
func (c Cursor) Before(m Message) bool {
	if !m.CreatedAt.Equal(c.CreatedAt) {
		return m.CreatedAt.Before(c.CreatedAt)
	}
	return m.ID < c.ID
}

// String encodes the cursor as "{unixNano:019d}:{id}", which sorts lexicographically.
func (c Cursor) String() string {
	return fmt.Sprintf("%019d:%s", c.CreatedAt.UnixNano(), c.ID)
}

func ParseCursor(raw string) (Cursor, error) {
	nanos, id, ok := strings.Cut(raw, ":")
	if !ok || id == "" {
		return Cursor{}, fmt.Errorf("malformed cursor %q", raw)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil || n < 0 {
		return Cursor{}, fmt.Errorf("malformed cursor %q", raw)
	}
	return Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: MessageID(id)}, nil
}
