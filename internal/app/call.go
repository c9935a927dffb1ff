package app

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/connecthub/relay/internal/core"
	"github.com/connecthub/relay/internal/domain"
	"github.com/connecthub/relay/internal/protocol"
)

var (
	ErrCallExists   = errors.New("call already exists for room")
	ErrNoSuchCall   = errors.New("no call for room")
	ErrBadCallState = errors.New("operation invalid in current call state")
	ErrCallRoomFull = errors.New("call room full")
	ErrNotInRoom    = errors.New("connection not in room")
)

type callSession struct {
	state     domain.CallState
	caller    domain.UserID
	target    domain.UserID
	isVideo   bool
	ringTimer *time.Timer
}

// CallRelay drives the per-room call lifecycle (Idle → Ringing → Connected →
// Ended) and forwards negotiation payloads between the parties of a call.
// Room ids are caller-generated and unique per call attempt; a room whose
// call has ended is never reused.
type CallRelay struct {
	reg         *Registry
	router      *Router
	ringTimeout time.Duration

	mu    sync.Mutex
	calls map[domain.RoomID]*callSession
}

// NewCallRelay builds the relay. ringTimeout bounds how long a call may stay
// Ringing before it auto-ends; zero disables the timeout.
func NewCallRelay(reg *Registry, router *Router, ringTimeout time.Duration) *CallRelay {
	return &CallRelay{
		reg:         reg,
		router:      router,
		ringTimeout: ringTimeout,
		calls:       make(map[domain.RoomID]*callSession),
	}
}

// State reports the lifecycle phase of a call room. A room with no call is
// Idle; ok distinguishes the two for callers that care.
func (c *CallRelay) State(room domain.RoomID) (domain.CallState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if call, ok := c.calls[room]; ok {
		return call.state, true
	}
	return domain.CallIdle, false
}

// Initiate places a call: Idle → Ringing. The invitation goes straight to
// the target's registered connections, not through any room; if the target
// is offline nothing is delivered and the call simply keeps ringing until
// the ring timeout fires.
func (c *CallRelay) Initiate(from, target domain.UserID, room domain.RoomID, isVideo bool) error {
	c.mu.Lock()
	if _, ok := c.calls[room]; ok {
		c.mu.Unlock()
		return ErrCallExists
	}
	call := &callSession{
		state:   domain.CallRinging,
		caller:  from,
		target:  target,
		isVideo: isVideo,
	}
	if c.ringTimeout > 0 {
		call.ringTimer = time.AfterFunc(c.ringTimeout, func() { c.expire(room) })
	}
	c.calls[room] = call
	c.mu.Unlock()

	sent := c.router.SendToUser(target, protocol.IncomingCall(from, room, isVideo))
	log.Info().Str("module", "app.call").Str("room", string(room)).Str("caller", string(from)).
		Str("target", string(target)).Bool("video", isVideo).Int("delivered", sent).Msg("call initiated")
	return nil
}

// expire ends a call that was never answered. Only the caller is notified.
func (c *CallRelay) expire(room domain.RoomID) {
	c.mu.Lock()
	call, ok := c.calls[room]
	if !ok || call.state != domain.CallRinging {
		c.mu.Unlock()
		return
	}
	delete(c.calls, room)
	c.mu.Unlock()

	c.router.SendToUser(call.caller, protocol.CallEnded(room))
	log.Info().Str("module", "app.call").Str("room", string(room)).Msg("ring timeout, call ended")
}

// Accept transitions Ringing → Connected and notifies the caller's
// connections. Both parties then join the room themselves; see JoinRoom.
func (c *CallRelay) Accept(room domain.RoomID) error {
	c.mu.Lock()
	call, ok := c.calls[room]
	if !ok {
		c.mu.Unlock()
		return ErrNoSuchCall
	}
	if call.state != domain.CallRinging {
		c.mu.Unlock()
		return ErrBadCallState
	}
	call.state = domain.CallConnected
	if call.ringTimer != nil {
		call.ringTimer.Stop()
		call.ringTimer = nil
	}
	caller := call.caller
	c.mu.Unlock()

	c.router.SendToUser(caller, protocol.CallAccepted(room))
	log.Info().Str("module", "app.call").Str("room", string(room)).Msg("call accepted")
	return nil
}

// Reject transitions Ringing → Ended. Only the caller is notified.
func (c *CallRelay) Reject(room domain.RoomID) error {
	c.mu.Lock()
	call, ok := c.calls[room]
	if !ok {
		c.mu.Unlock()
		return ErrNoSuchCall
	}
	if call.state != domain.CallRinging {
		c.mu.Unlock()
		return ErrBadCallState
	}
	delete(c.calls, room)
	if call.ringTimer != nil {
		call.ringTimer.Stop()
	}
	caller := call.caller
	c.mu.Unlock()

	c.router.SendToUser(caller, protocol.CallRejected(room))
	log.Info().Str("module", "app.call").Str("room", string(room)).Msg("call rejected")
	return nil
}

// End terminates a call from any live state, broadcasts callEnded to the
// room and tears its membership down. The returned state is always Ended
// when err is nil.
func (c *CallRelay) End(room domain.RoomID) (domain.CallState, error) {
	c.mu.Lock()
	call, ok := c.calls[room]
	if !ok {
		c.mu.Unlock()
		return domain.CallIdle, ErrNoSuchCall
	}
	delete(c.calls, room)
	if call.ringTimer != nil {
		call.ringTimer.Stop()
	}
	c.mu.Unlock()

	c.router.Broadcast(room, protocol.CallEnded(room), "")
	for _, member := range c.router.Members(room) {
		c.router.Leave(member, room)
	}
	log.Info().Str("module", "app.call").Str("room", string(room)).Msg("call ended")
	return domain.CallEnded, nil
}

// JoinRoom subscribes a connection to a call room, capped at two parties.
// The cap check and the insert are one atomic router operation, so racing
// joiners cannot overfill the room. user-joined goes to exactly the members
// present at the insert; since only the earlier joiner hears it, exactly one
// side starts creating the offer and negotiation roles need no client-side
// declaration.
func (c *CallRelay) JoinRoom(id core.ConnID, user domain.UserID, room domain.RoomID) error {
	prior, ok := c.router.JoinCapped(id, room, domain.MaxCallParties)
	if !ok {
		return ErrCallRoomFull
	}
	frame := protocol.UserJoined(room, user)
	for _, member := range prior {
		if sess, live := c.reg.SessionOf(member); live {
			_ = sess.Signal().TrySend(frame)
		}
	}
	return nil
}

// LeaveRoom unsubscribes a connection. The remaining party is told
// user-left, and a Connected call ends outright: a one-to-one call cannot
// survive one side leaving.
func (c *CallRelay) LeaveRoom(id core.ConnID, user domain.UserID, room domain.RoomID) {
	if !c.router.InRoom(id, room) {
		return
	}
	c.router.Leave(id, room)
	c.router.Broadcast(room, protocol.UserLeft(room, user), "")

	c.mu.Lock()
	call, ok := c.calls[room]
	connected := ok && call.state == domain.CallConnected
	c.mu.Unlock()
	if connected {
		if _, err := c.End(room); err != nil && !errors.Is(err, ErrNoSuchCall) {
			log.Warn().Err(err).Str("module", "app.call").Str("room", string(room)).Msg("end after leave")
		}
	}
}

// Forward relays one opaque negotiation frame to the other member(s) of the
// room. The sender must be a member; the payload is never inspected.
func (c *CallRelay) Forward(from core.ConnID, room domain.RoomID, frame core.Frame) error {
	if !c.router.InRoom(from, room) {
		return ErrNotInRoom
	}
	c.router.Broadcast(room, frame, from)
	return nil
}

// ConnectionGone applies LeaveRoom semantics for every call room a vanished
// connection was in. rooms is the membership snapshot taken before router
// cleanup.
func (c *CallRelay) ConnectionGone(id core.ConnID, user domain.UserID, rooms []domain.RoomID) {
	for _, room := range rooms {
		if room.IsCall() {
			c.LeaveRoom(id, user, room)
		}
	}
}
