package runtime

import (
	"gym-chat/contract"
	"gym-chat/domain/chat"
	"sync"
)

type connectionSet map[contract.ConnectionID]contract.Connection

type registryShard struct {
	mu    sync.RWMutex
	users map[string]connectionSet
}

// Registry maps a user to the set of its live connections, one per device.
// It is pure soft state: nothing survives a restart.
type Registry struct {
	shards [shardCount]*registryShard
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &registryShard{users: make(map[string]connectionSet)}
	}
	return r
}

func (r *Registry) shard(userID string) *registryShard {
	return r.shards[shardFor(userID)]
}

// Register adds the connection to the user's set, creating the set on the fly.
// Registering the same connection twice keeps a single membership.
func (r *Registry) Register(identity chat.Identity, conn contract.Connection) {
	s := r.shard(identity.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[identity.UserID]
	if !ok {
		set = make(connectionSet)
		s.users[identity.UserID] = set
	}
	set[conn.ID()] = conn
}

// Unregister removes the connection and drops the user entry once its last
// connection is gone, so no empty set is left behind.
func (r *Registry) Unregister(identity chat.Identity, conn contract.Connection) {
	s := r.shard(identity.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.users[identity.UserID]
	if !ok {
		return
	}
	delete(set, conn.ID())
	if len(set) == 0 {
		delete(s.users, identity.UserID)
	}
}

// ActiveConnections returns a snapshot; callers may iterate it without holding any lock.
func (r *Registry) ActiveConnections(userID string) []contract.Connection {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.users[userID]
	conns := make([]contract.Connection, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	return conns
}

func (r *Registry) IsOnline(userID string) bool {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

func (r *Registry) All() []contract.Connection {
	var conns []contract.Connection
	for _, s := range r.shards {
		s.mu.RLock()
		for _, set := range s.users {
			for _, c := range set {
				conns = append(conns, c)
			}
		}
		s.mu.RUnlock()
	}
	return conns
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		for _, set := range s.users {
			n += len(set)
		}
		s.mu.RUnlock()
	}
	return n
}

// Users returns the number of users with at least one live connection.
func (r *Registry) Users() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.users)
		s.mu.RUnlock()
	}
	return n
}
