package runtime

import (
	"context"
	"gym-chat/contract"
	"gym-chat/domain/chat"
	"gym-chat/errors"
	"gym-chat/observability"
	"log/slog"
	"sync"
)

type groupShard struct {
	mu     sync.RWMutex
	groups map[chat.GroupName]connectionSet
}

// GroupRouter fans events out to named groups of connections.
//
// Delivery is best-effort: a connection that cannot take an event loses it,
// nothing is retried and other recipients are unaffected. The message store,
// not the live path, is the system of record.
type GroupRouter struct {
	log     *slog.Logger
	metrics *observability.Metrics
	shards  [shardCount]*groupShard
}

func NewGroupRouter(log *slog.Logger, metrics *observability.Metrics) *GroupRouter {
	r := &GroupRouter{log: log, metrics: metrics}
	for i := range r.shards {
		r.shards[i] = &groupShard{groups: make(map[chat.GroupName]connectionSet)}
	}
	return r
}

func (r *GroupRouter) shard(group chat.GroupName) *groupShard {
	return r.shards[shardFor(string(group))]
}

func (r *GroupRouter) JoinGroup(conn contract.Connection, group chat.GroupName) {
	s := r.shard(group)
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.groups[group]
	if !ok {
		members = make(connectionSet)
		s.groups[group] = members
	}
	members[conn.ID()] = conn
}

func (r *GroupRouter) LeaveGroup(conn contract.Connection, group chat.GroupName) {
	s := r.shard(group)
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.groups[group]
	if !ok {
		return
	}
	delete(members, conn.ID())
	if len(members) == 0 {
		delete(s.groups, group)
	}
}

// Members returns the number of connections in the group.
func (r *GroupRouter) Members(group chat.GroupName) int {
	s := r.shard(group)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups[group])
}

func (r *GroupRouter) snapshot(group chat.GroupName) []contract.Connection {
	s := r.shard(group)
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.groups[group]
	conns := make([]contract.Connection, 0, len(members))
	for _, c := range members {
		conns = append(conns, c)
	}
	return conns
}

// Broadcast delivers evt to every current member of group except the excluded
// connections. The exclusion is a set difference computed here, at delivery time.
// It returns how many connections accepted the event.
func (r *GroupRouter) Broadcast(ctx context.Context, group chat.GroupName, evt chat.Event, exclude ...contract.ConnectionID) int {
	skip := make(map[contract.ConnectionID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	delivered := 0
	for _, conn := range r.snapshot(group) {
		if _, excluded := skip[conn.ID()]; excluded {
			continue
		}
		if err := r.deliver(ctx, conn, evt); err == nil {
			delivered++
		}
	}
	return delivered
}

// SendToConnection pushes evt to a single connection.
// The returned error is a DeliveryError callers are free to ignore.
func (r *GroupRouter) SendToConnection(ctx context.Context, conn contract.Connection, evt chat.Event) error {
	return r.deliver(ctx, conn, evt)
}

func (r *GroupRouter) deliver(ctx context.Context, conn contract.Connection, evt chat.Event) error {
	if err := conn.Consume(ctx, evt); err != nil {
		r.metrics.Deliveries.WithLabelValues("dropped").Inc()
		r.log.Debug("Event dropped",
			"connection_id", conn.ID(),
			"user_id", conn.Identity().UserID,
			"event", evt.Type,
			"error", err)
		return errors.Delivery(err)
	}
	r.metrics.Deliveries.WithLabelValues("delivered").Inc()
	return nil
}
