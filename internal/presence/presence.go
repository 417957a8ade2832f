// Package presence tracks which users currently hold a live connection
// and delivers events to them without blocking.
//
// A user may hold several connections at once (tabs, devices). Every
// connection owns a buffered outbound stream; pushes go to all of the
// user's streams and are dropped for any stream that is full.
package presence

import (
	"log/slog"
	"sync"
)

// DefaultBuffer is the outbound buffer size of a connection.
const DefaultBuffer = 32

// Event is a typed live message. It is encoded on the wire as
// {"type": ..., "data": ...}.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Live event types.
const (
	EventAuthenticated         = "authenticated"
	EventPossibleMatches       = "possible-matches"
	EventItemMatchNotification = "item-match-notification"
	EventNotification          = "notification"
	EventError                 = "error"
)

type conn struct {
	id     string
	userID int64
	ch     chan Event
}

// Registry maps users to their live connections.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*conn
	users  map[int64]map[string]*conn
	buffer int
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithBuffer sets the outbound buffer size of new connections.
func WithBuffer(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.buffer = n
		}
	}
}

// WithLogger sets the logger used for dropped events and churn.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		conns:  make(map[string]*conn),
		users:  make(map[int64]map[string]*conn),
		buffer: DefaultBuffer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds connID to userID and returns the connection's outbound
// stream. Registering a known connection again returns the same stream;
// if the user differs, the connection moves to the new user.
func (r *Registry) Register(userID int64, connID string) <-chan Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conns[connID]; ok {
		if c.userID != userID {
			r.detach(c)
			c.userID = userID
			r.attach(c)
			r.logger.Debug("presence moved", "conn", connID, "user", userID)
		}
		return c.ch
	}

	c := &conn{id: connID, userID: userID, ch: make(chan Event, r.buffer)}
	r.conns[connID] = c
	r.attach(c)
	r.logger.Debug("presence registered", "conn", connID, "user", userID)
	return c.ch
}

// Unregister drops a connection and closes its stream. Unknown ids are
// ignored.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(r.conns, connID)
	r.detach(c)
	close(c.ch)
	r.logger.Debug("presence unregistered", "conn", connID, "user", c.userID)
}

// attach and detach must be called with mu held for writing.
func (r *Registry) attach(c *conn) {
	set, ok := r.users[c.userID]
	if !ok {
		set = make(map[string]*conn)
		r.users[c.userID] = set
	}
	set[c.id] = c
}

func (r *Registry) detach(c *conn) {
	set := r.users[c.userID]
	delete(set, c.id)
	if len(set) == 0 {
		delete(r.users, c.userID)
	}
}

// IsPresent reports whether the user has at least one live connection.
func (r *Registry) IsPresent(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// Route returns a handle for pushing to a present user. The handle looks
// the user's connections up again on every push.
func (r *Registry) Route(userID int64) (Route, bool) {
	if !r.IsPresent(userID) {
		return Route{}, false
	}
	return Route{registry: r, userID: userID}, true
}

// Push offers ev to every connection of the user without blocking. It
// reports whether at least one connection accepted the event.
func (r *Registry) Push(userID int64, ev Event) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := false
	for _, c := range r.users[userID] {
		select {
		case c.ch <- ev:
			delivered = true
		default:
			r.logger.Debug("dropping live event, buffer full",
				"conn", c.id, "user", userID, "type", ev.Type)
		}
	}
	return delivered
}

// Stats counts present users and open connections.
type Stats struct {
	Users       int `json:"users"`
	Connections int `json:"connections"`
}

// Stats returns a snapshot of the registry size.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Users: len(r.users), Connections: len(r.conns)}
}

// Route addresses a user rather than a fixed set of connections.
type Route struct {
	registry *Registry
	userID   int64
}

// UserID returns the routed user.
func (rt Route) UserID() int64 {
	return rt.userID
}

// Push delivers ev to the user's current connections.
func (rt Route) Push(ev Event) bool {
	if rt.registry == nil {
		return false
	}
	return rt.registry.Push(rt.userID, ev)
}
