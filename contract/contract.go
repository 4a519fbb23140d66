//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"gym-chat/domain/chat"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// It is only used for logging during supervision.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type ConnectionID string

// EventSink receives events pushed by the router.
// Consume must not block: a sink that cannot accept an event drops it and says so.
type EventSink interface {
	Consume(ctx context.Context, e chat.Event) error
}

// Connection is the opaque handle of one live transport session.
type Connection interface {
	EventSink
	ID() ConnectionID
	Identity() chat.Identity
	State() chat.ConnectionState
}

type IRegistry interface {
	Register(identity chat.Identity, conn Connection)
	Unregister(identity chat.Identity, conn Connection)
	ActiveConnections(userID string) []Connection
	All() []Connection
	Count() int
}

type IGroupRouter interface {
	JoinGroup(conn Connection, group chat.GroupName)
	LeaveGroup(conn Connection, group chat.GroupName)
	Broadcast(ctx context.Context, group chat.GroupName, evt chat.Event, exclude ...ConnectionID) int
	SendToConnection(ctx context.Context, conn Connection, evt chat.Event) error
}

type IDeduplicator interface {
	MarkIfNew(id string) bool
	Sweep(now time.Time) int
}

type INotifier interface {
	NotifyTyping(ctx context.Context, fromID, toID string) int
	NotifyStoppedTyping(ctx context.Context, fromID, toID string) int
	NotifyRead(ctx context.Context, toID, readerID string, at time.Time) int
	BroadcastSystemNotification(ctx context.Context, title, body, category string) int
	PushToRole(ctx context.Context, role string, payload any) int
}

// IdentityResolver turns a client credential into an identity, or rejects it
// before any connection handle exists.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (chat.Identity, error)
}

// Responder produces assistant replies. No timing guarantee is assumed.
type Responder interface {
	Respond(ctx context.Context, userID, prompt string) (string, error)
}
