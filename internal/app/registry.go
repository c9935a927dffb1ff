// Package app hosts the relay's in-memory state and the components that
// mediate every event between connections: registry, room router, presence,
// typing, message status and call signaling.
package app

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/connecthub/relay/internal/core"
	"github.com/connecthub/relay/internal/domain"
)

type connEntry struct {
	user domain.UserID
	sess core.Session
}

// Registry is the single source of truth for which connections exist and
// which identity each one is bound to. An identity may hold any number of
// simultaneous connections (multiple devices or tabs); it counts as online
// while at least one remains. Rapid reconnects need no ordering bookkeeping
// here: every transport session carries a fresh single-use ConnID, so a
// stale handle can never clobber the state of its successor.
type Registry struct {
	mu     sync.RWMutex
	conns  map[core.ConnID]*connEntry
	byUser map[domain.UserID]map[core.ConnID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[core.ConnID]*connEntry),
		byUser: make(map[domain.UserID]map[core.ConnID]struct{}),
	}
}

// Register binds a connection to an identity. Idempotent per connection id:
// a second call for a live handle is a no-op. Returns true when the identity
// had no other live connection, i.e. it just came online.
func (r *Registry) Register(id core.ConnID, sess core.Session) (becameOnline bool) {
	user := sess.User()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; ok {
		return false
	}
	r.conns[id] = &connEntry{user: user, sess: sess}

	set, ok := r.byUser[user]
	if !ok {
		set = make(map[core.ConnID]struct{})
		r.byUser[user] = set
	}
	becameOnline = len(set) == 0
	set[id] = struct{}{}

	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("user", string(user)).
		Bool("became_online", becameOnline).Msg("connection registered")
	return becameOnline
}

// Unregister removes the binding. Safe to call twice; the second call
// reports ok=false. wasLast is true when this was the identity's final
// connection, i.e. it just went offline.
func (r *Registry) Unregister(id core.ConnID) (user domain.UserID, wasLast, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, found := r.conns[id]
	if !found {
		return "", false, false
	}
	delete(r.conns, id)

	user = entry.user
	if set, has := r.byUser[user]; has {
		delete(set, id)
		if len(set) == 0 {
			delete(r.byUser, user)
			wasLast = true
		}
	}

	log.Info().Str("module", "app.registry").Str("conn", string(id)).Str("user", string(user)).
		Bool("was_last", wasLast).Msg("connection unregistered")
	return user, wasLast, true
}

func (r *Registry) IsOnline(user domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[user]) > 0
}

// Snapshot returns the online set, sorted for stable fan-out payloads.
func (r *Registry) Snapshot() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.UserID, 0, len(r.byUser))
	for user := range r.byUser {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) UserOf(id core.ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.user, true
	}
	return "", false
}

func (r *Registry) SessionOf(id core.ConnID) (core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.sess, true
	}
	return nil, false
}

// SessionsOf lists the live sessions of one identity, one per device.
func (r *Registry) SessionsOf(user domain.UserID) []core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[user]
	out := make([]core.Session, 0, len(set))
	for id := range set {
		if e, ok := r.conns[id]; ok {
			out = append(out, e.sess)
		}
	}
	return out
}

// Sessions snapshots every registered session, for broadcasts to all.
func (r *Registry) Sessions() []core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Session, 0, len(r.conns))
	for _, e := range r.conns {
		out = append(out, e.sess)
	}
	return out
}

func (r *Registry) ConnCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
