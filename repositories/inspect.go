package repositories

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DescribeEntry gives a one-line view of a raw badger entry, for debug tooling.
func DescribeEntry(key string, val []byte) (kind, detail string) {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var record messageRecord
		if err := json.Unmarshal(val, &record); err != nil {
			return "MESSAGE", "unreadable record"
		}
		state := "unread"
		if record.ReadAt != 0 {
			state = "read"
		}
		if record.IsPermanent {
			state += ",permanent"
		}
		created := time.Unix(0, record.CreatedAt).UTC().Format(time.RFC3339Nano)
		return "MESSAGE", fmt.Sprintf("%s -> %s [%s] %s: %q", record.SenderID, record.ReceiverID, state, created, record.Body)
	case strings.HasPrefix(key, "conv:"):
		return "CONVERSATION", string(val)
	case strings.HasPrefix(key, "unread:"):
		return "UNREAD", ""
	case strings.HasPrefix(key, "partner:"):
		return "PARTNER", string(val)
	case strings.HasPrefix(key, expPrefix):
		return "EXPIRY", ""
	default:
		return "UNKNOWN", ""
	}
}
