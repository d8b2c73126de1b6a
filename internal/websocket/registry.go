package websocket

import (
	"hash/fnv"
	"iter"
	"sync"

	"pulse-chat/internal/metrics"

	"github.com/google/uuid"
)

const shardCount = 64

// Conn is a single live client connection as seen by the registry.
type Conn interface {
	ID() string
	UserID() uuid.UUID
	// Send queues a frame without blocking. It returns ErrConnectionClosed
	// once the connection is gone and ErrSendBufferFull when the client is
	// not keeping up.
	Send(frame []byte) error
	Close()
}

// RegistryHooks observe connection lifecycle. They run on the caller's
// goroutine after the registry lock is released.
type RegistryHooks struct {
	OnRegister   func(userID uuid.UUID, connID string)
	OnUnregister func(userID uuid.UUID, connID string, remaining int)
	OnHeartbeat  func(userID uuid.UUID)
}

type shard struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[string]Conn
}

// Registry tracks which connections each user currently holds on this
// process.
type Registry struct {
	shards [shardCount]*shard
	byID   sync.Map // connection id -> uuid.UUID
	hooks  RegistryHooks
}

func NewRegistry(hooks RegistryHooks) *Registry {
	r := &Registry{hooks: hooks}
	for i := range r.shards {
		r.shards[i] = &shard{conns: make(map[uuid.UUID]map[string]Conn)}
	}
	return r
}

func (r *Registry) shardFor(userID uuid.UUID) *shard {
	h := fnv.New32a()
	_, _ = h.Write(userID[:])
	return r.shards[h.Sum32()%shardCount]
}

// Register adds a connection and returns its id.
func (r *Registry) Register(conn Conn) string {
	userID, connID := conn.UserID(), conn.ID()
	s := r.shardFor(userID)

	s.mu.Lock()
	userConns, ok := s.conns[userID]
	if !ok {
		userConns = make(map[string]Conn)
		s.conns[userID] = userConns
	}
	_, existed := userConns[connID]
	userConns[connID] = conn
	r.byID.Store(connID, userID)
	s.mu.Unlock()

	if existed {
		return connID
	}
	metrics.WebSocketConnections.Inc()
	if r.hooks.OnRegister != nil {
		r.hooks.OnRegister(userID, connID)
	}
	return connID
}

// Unregister removes a connection. Unknown ids are ignored.
func (r *Registry) Unregister(connID string) {
	value, ok := r.byID.LoadAndDelete(connID)
	if !ok {
		return
	}
	userID := value.(uuid.UUID)
	s := r.shardFor(userID)

	s.mu.Lock()
	userConns := s.conns[userID]
	_, present := userConns[connID]
	delete(userConns, connID)
	remaining := len(userConns)
	if remaining == 0 {
		delete(s.conns, userID)
	}
	s.mu.Unlock()

	if !present {
		return
	}
	metrics.WebSocketConnections.Dec()
	if r.hooks.OnUnregister != nil {
		r.hooks.OnUnregister(userID, connID, remaining)
	}
}

// ConnectionsFor returns the connections live for userID at call time. Later
// registrations are not visible through the returned sequence.
func (r *Registry) ConnectionsFor(userID uuid.UUID) iter.Seq[Conn] {
	s := r.shardFor(userID)

	s.mu.RLock()
	snapshot := make([]Conn, 0, len(s.conns[userID]))
	for _, c := range s.conns[userID] {
		snapshot = append(snapshot, c)
	}
	s.mu.RUnlock()

	return func(yield func(Conn) bool) {
		for _, c := range snapshot {
			if !yield(c) {
				return
			}
		}
	}
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns[userID]) > 0
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		for _, userConns := range s.conns {
			total += len(userConns)
		}
		s.mu.RUnlock()
	}
	return total
}

// UserCount returns the number of users with at least one connection.
func (r *Registry) UserCount() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.conns)
		s.mu.RUnlock()
	}
	return total
}

// Heartbeat reports activity on one of the user's connections.
func (r *Registry) Heartbeat(userID uuid.UUID) {
	if r.hooks.OnHeartbeat != nil {
		r.hooks.OnHeartbeat(userID)
	}
}

// CloseAll closes every registered connection. Used on shutdown.
func (r *Registry) CloseAll() {
	var all []Conn
	for _, s := range r.shards {
		s.mu.RLock()
		for _, userConns := range s.conns {
			for _, c := range userConns {
				all = append(all, c)
			}
		}
		s.mu.RUnlock()
	}
	for _, c := range all {
		c.Close()
	}
}
