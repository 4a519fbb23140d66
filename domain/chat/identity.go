package chat

import "strings"

// Identity is resolved once at connect time and never changes for the connection's lifetime.
type Identity struct {
	UserID string
	Role   string
}

type GroupName string

const (
	userGroupPrefix = "user:"
	roleGroupPrefix = "role:"
)

// UserGroup is the personal group holding every device of a user.
func UserGroup(userID string) GroupName {
	return GroupName(userGroupPrefix + userID)
}

// RoleGroup gathers every connection sharing the same role (member, coach, admin...).
func RoleGroup(role string) GroupName {
	return GroupName(roleGroupPrefix + strings.ToLower(role))
}

// Groups returns the groups a connection joins when it reaches the JOINED state.
// The role group is skipped when the role is unknown.
func (i Identity) Groups() []GroupName {
	groups := []GroupName{UserGroup(i.UserID)}
	if i.Role != "" {
		groups = append(groups, RoleGroup(i.Role))
	}
	return groups
}

type ConnectionState int32

const (
	Connecting ConnectionState = iota
	Joined
	Leaving
	Closed
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Joined:
		return "JOINED"
	case Leaving:
		return "LEAVING"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

const MaxUserIDLength = 64

// ValidUserID rejects ids that cannot be embedded in storage keys.
func ValidUserID(id string) bool {
	return id != "" && len(id) <= MaxUserIDLength && !strings.ContainsAny(id, ": \t\n")
}
