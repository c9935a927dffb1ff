package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/connecthub/relay/internal/core"
	"github.com/connecthub/relay/internal/domain"
)

// PublishResult reports delivery stats and backpressure to the caller.
type PublishResult struct {
	SentTo  int
	Dropped []core.ConnID
}

// Router owns every room-membership set. All joins, leaves and broadcasts go
// through it; no other component mutates membership. Rooms spring into
// existence on first join and vanish when their last member leaves.
type Router struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]map[core.ConnID]struct{}
	joined map[core.ConnID]map[domain.RoomID]struct{}

	reg *Registry

	policy Policy
	kick   func(core.ConnID)
}

func NewRouter(reg *Registry) *Router {
	return &Router{
		rooms:  make(map[domain.RoomID]map[core.ConnID]struct{}),
		joined: make(map[core.ConnID]map[domain.RoomID]struct{}),
		reg:    reg,
	}
}

// SetBackpressure installs the policy consulted for connections whose
// outbound buffer is full during a broadcast, and the hook that disconnects
// those the policy gives up on.
func (rt *Router) SetBackpressure(p Policy, kick func(core.ConnID)) {
	rt.policy = p
	rt.kick = kick
}

func (rt *Router) applyBackpressure(room domain.RoomID, dropped []core.ConnID) {
	if rt.policy == nil {
		return
	}
	for _, id := range dropped {
		switch rt.policy.OnBackpressure(room, id) {
		case KickConnection:
			log.Warn().Str("module", "app.router").Str("conn", string(id)).Str("room", string(room)).
				Msg("kicking slow consumer")
			if rt.kick != nil {
				rt.kick(id)
			}
		case DropFrame, NoAction:
		}
	}
}

// Join adds a connection to a room. Joining a room it is already in is a
// no-op, as is joining with a handle the registry does not know.
func (rt *Router) Join(id core.ConnID, room domain.RoomID) {
	if _, ok := rt.reg.SessionOf(id); !ok {
		log.Warn().Str("module", "app.router").Str("conn", string(id)).Str("room", string(room)).
			Msg("join from unregistered connection dropped")
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	members, ok := rt.rooms[room]
	if !ok {
		members = make(map[core.ConnID]struct{})
		rt.rooms[room] = members
	}
	if _, in := members[id]; in {
		return
	}
	members[id] = struct{}{}

	joined, ok := rt.joined[id]
	if !ok {
		joined = make(map[domain.RoomID]struct{})
		rt.joined[id] = joined
	}
	joined[room] = struct{}{}
	log.Debug().Str("module", "app.router").Str("conn", string(id)).Str("room", string(room)).Msg("joined room")
}

// JoinCapped inserts the connection only while the room holds fewer than
// limit members. The count check and the insert happen under one write lock,
// so concurrent joiners can never overshoot the cap. prior lists the members
// present at the moment of the insert; a connection already in the room is
// reported ok with no prior members, mirroring Join's idempotence.
func (rt *Router) JoinCapped(id core.ConnID, room domain.RoomID, limit int) (prior []core.ConnID, ok bool) {
	if _, registered := rt.reg.SessionOf(id); !registered {
		log.Warn().Str("module", "app.router").Str("conn", string(id)).Str("room", string(room)).
			Msg("join from unregistered connection dropped")
		return nil, false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	members, exists := rt.rooms[room]
	if exists {
		if _, in := members[id]; in {
			return nil, true
		}
		if len(members) >= limit {
			return nil, false
		}
	} else {
		members = make(map[core.ConnID]struct{})
		rt.rooms[room] = members
	}
	prior = make([]core.ConnID, 0, len(members))
	for m := range members {
		prior = append(prior, m)
	}
	members[id] = struct{}{}

	joined, has := rt.joined[id]
	if !has {
		joined = make(map[domain.RoomID]struct{})
		rt.joined[id] = joined
	}
	joined[room] = struct{}{}
	log.Debug().Str("module", "app.router").Str("conn", string(id)).Str("room", string(room)).Msg("joined room")
	return prior, true
}

// Leave removes a connection from a room; leaving a room it is not in is a
// no-op.
func (rt *Router) Leave(id core.ConnID, room domain.RoomID) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.leaveLocked(id, room)
}

func (rt *Router) leaveLocked(id core.ConnID, room domain.RoomID) {
	if members, ok := rt.rooms[room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(rt.rooms, room)
		}
	}
	if joined, ok := rt.joined[id]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(rt.joined, id)
		}
	}
}

// DropConnection removes a connection from every room it had joined and
// returns those rooms. Called unconditionally on unregistration; callers
// cannot skip it.
func (rt *Router) DropConnection(id core.ConnID) []domain.RoomID {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	joined := rt.joined[id]
	out := make([]domain.RoomID, 0, len(joined))
	for room := range joined {
		out = append(out, room)
	}
	for _, room := range out {
		rt.leaveLocked(id, room)
	}
	if len(out) > 0 {
		log.Info().Str("module", "app.router").Str("conn", string(id)).Int("rooms", len(out)).
			Msg("connection dropped from rooms")
	}
	return out
}

func (rt *Router) InRoom(id core.ConnID, room domain.RoomID) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	_, ok := rt.rooms[room][id]
	return ok
}

// Members snapshots a room's membership.
func (rt *Router) Members(room domain.RoomID) []core.ConnID {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	members := rt.rooms[room]
	out := make([]core.ConnID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

func (rt *Router) MemberCount(room domain.RoomID) int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.rooms[room])
}

// RoomsOf snapshots the rooms one connection has joined.
func (rt *Router) RoomsOf(id core.ConnID) []domain.RoomID {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	joined := rt.joined[id]
	out := make([]domain.RoomID, 0, len(joined))
	for room := range joined {
		out = append(out, room)
	}
	return out
}

// Broadcast delivers a frame to every member of a room except exclude
// (pass "" to exclude nobody). Membership is snapshotted first so concurrent
// joins and leaves never interleave with the send loop.
func (rt *Router) Broadcast(room domain.RoomID, frame core.Frame, exclude core.ConnID) PublishResult {
	members := rt.Members(room)
	res := PublishResult{}
	for _, id := range members {
		if id == exclude {
			continue
		}
		sess, ok := rt.reg.SessionOf(id)
		if !ok {
			continue
		}
		if err := sess.Signal().TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "app.router").Str("room", string(room)).
		Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	rt.applyBackpressure(room, res.Dropped)
	return res
}

// BroadcastAll delivers a frame to every registered connection.
func (rt *Router) BroadcastAll(frame core.Frame) PublishResult {
	res := PublishResult{}
	for _, sess := range rt.reg.Sessions() {
		if err := sess.Signal().TrySend(frame); err != nil {
			continue
		}
		res.SentTo++
	}
	return res
}

// SendToUser delivers a frame to every connection of one identity. Used for
// targeted events such as an incoming call, which must reach the callee on
// every device without any room membership.
func (rt *Router) SendToUser(user domain.UserID, frame core.Frame) int {
	sent := 0
	for _, sess := range rt.reg.SessionsOf(user) {
		if err := sess.Signal().TrySend(frame); err != nil {
			continue
		}
		sent++
	}
	return sent
}

// RoomStats is a read-only view for the HTTP surface.
type RoomStats struct {
	Room        domain.RoomID `json:"room"`
	MemberCount int           `json:"memberCount"`
}

func (rt *Router) Stats() []RoomStats {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make([]RoomStats, 0, len(rt.rooms))
	for room, members := range rt.rooms {
		out = append(out, RoomStats{Room: room, MemberCount: len(members)})
	}
	return out
}
