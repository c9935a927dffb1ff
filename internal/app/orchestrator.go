package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/connecthub/relay/internal/core"
	"github.com/connecthub/relay/internal/domain"
	"github.com/connecthub/relay/internal/protocol"
)

var (
	ErrNotAuthenticated = errors.New("connection not authenticated")
	ErrNotCallRoom      = errors.New("not a call room")
)

// Authenticator is the authentication collaborator seen from the relay. The
// identity arrives already issued; Verify only confirms it resolves.
type Authenticator interface {
	Verify(ctx context.Context, user domain.UserID) error
}

// Orchestrator wires the registry, router and the four relays together and
// owns the two cross-cutting flows: handshake and disconnect. Every inbound
// event lands here after the adapter has decoded it.
type Orchestrator struct {
	Registry *Registry
	Router   *Router
	Presence *Presence
	Typing   *Typing
	Status   *StatusMediator
	Calls    *CallRelay
	Auth     Authenticator
}

// NewOrchestrator assembles the components and arms the router's
// backpressure policy: a connection the policy gives up on has its transport
// closed, which funnels it into the regular disconnect path.
func NewOrchestrator(reg *Registry, router *Router, store MessageStore, auth Authenticator, policy Policy, opts Options) *Orchestrator {
	o := &Orchestrator{
		Registry: reg,
		Router:   router,
		Presence: NewPresence(reg, router),
		Typing:   NewTyping(router),
		Status:   NewStatusMediator(store, router, opts.StoreTimeout),
		Calls:    NewCallRelay(reg, router, opts.RingTimeout),
		Auth:     auth,
	}
	router.SetBackpressure(policy, func(id core.ConnID) {
		if sess, ok := reg.SessionOf(id); ok {
			sess.Signal().Close()
		}
	})
	return o
}

// Authenticate binds a fresh connection to its identity. A handshake the
// authenticator cannot resolve is fatal to this connection attempt; no room
// operation is possible before it succeeds.
func (o *Orchestrator) Authenticate(ctx context.Context, id core.ConnID, user domain.UserID, conn core.SignalConnection) error {
	if err := domain.ValidateUserID(user); err != nil {
		return err
	}
	if err := o.Auth.Verify(ctx, user); err != nil {
		return fmt.Errorf("verify identity %q: %w", user, err)
	}

	becameOnline := o.Registry.Register(id, core.NewSession(user, conn))
	// Every connection subscribes to its identity's own room so targeted
	// fan-out (new messages, status updates, calls) reaches all devices.
	o.Router.Join(id, domain.UserRoom(user))
	o.Presence.ConnectionRegistered(id, user, becameOnline)
	return nil
}

// HandleEvent dispatches one decoded event from an authenticated connection.
// Errors describe why the sender's request was not served; nothing has been
// broadcast when an error comes back.
func (o *Orchestrator) HandleEvent(ctx context.Context, id core.ConnID, ev protocol.ClientEvent) error {
	user, ok := o.Registry.UserOf(id)
	if !ok {
		return ErrNotAuthenticated
	}

	switch ev := ev.(type) {
	case protocol.Authenticate:
		// Register is idempotent per handle; a repeat handshake is a no-op.
		return nil
	case protocol.JoinChat:
		o.Router.Join(id, domain.ChatRoom(ev.ChatID))
		return nil
	case protocol.LeaveChat:
		o.Router.Leave(id, domain.ChatRoom(ev.ChatID))
		return nil
	case protocol.StartTyping:
		o.Typing.Relay(id, user, ev.ChatID, true)
		return nil
	case protocol.StopTyping:
		o.Typing.Relay(id, user, ev.ChatID, false)
		return nil
	case protocol.MessageDelivered:
		return o.Status.Update(ctx, ev.MessageID, domain.StatusDelivered, id)
	case protocol.MessageRead:
		return o.Status.Update(ctx, ev.MessageID, domain.StatusRead, id)
	case protocol.JoinRoom:
		if !ev.RoomID.IsCall() {
			return fmt.Errorf("%w: %q", ErrNotCallRoom, ev.RoomID)
		}
		return o.Calls.JoinRoom(id, user, ev.RoomID)
	case protocol.LeaveRoom:
		o.Calls.LeaveRoom(id, user, ev.RoomID)
		return nil
	case protocol.Offer:
		return o.Calls.Forward(id, ev.RoomID, protocol.ForwardOffer(ev.RoomID, ev.Offer))
	case protocol.Answer:
		return o.Calls.Forward(id, ev.RoomID, protocol.ForwardAnswer(ev.RoomID, ev.Answer))
	case protocol.ICECandidate:
		return o.Calls.Forward(id, ev.RoomID, protocol.ForwardCandidate(ev.RoomID, ev.Candidate))
	case protocol.InitiateCall:
		return o.Calls.Initiate(user, ev.TargetUserID, ev.RoomID, ev.IsVideo)
	case protocol.AcceptCall:
		return o.Calls.Accept(ev.RoomID)
	case protocol.RejectCall:
		return o.Calls.Reject(ev.RoomID)
	case protocol.EndCall:
		_, err := o.Calls.End(ev.RoomID)
		return err
	default:
		return fmt.Errorf("%w: %T", protocol.ErrUnknownEvent, ev)
	}
}

// Disconnect tears one connection down. It runs unconditionally on transport
// close and is idempotent; after it returns no broadcast can target the
// handle again. Order matters: stale typing indicators are cleared and call
// rooms released while peers can still be notified, then membership and the
// registry binding go, and finally presence reports the identity offline if
// this was its last connection.
func (o *Orchestrator) Disconnect(id core.ConnID) {
	rooms := o.Router.RoomsOf(id)
	if user, ok := o.Registry.UserOf(id); ok {
		o.Typing.StopAll(id, user, rooms)
		o.Calls.ConnectionGone(id, user, rooms)
	}
	o.Router.DropConnection(id)
	if user, wasLast, ok := o.Registry.Unregister(id); ok {
		o.Presence.ConnectionGone(user, wasLast)
	}
	log.Info().Str("module", "app.orchestrator").Str("conn", string(id)).Msg("connection torn down")
}

// NotifyNewMessage fans a freshly persisted message out to every
// participant's devices. Invoked by the storage collaborator through the
// internal HTTP surface after the message is durably written.
func (o *Orchestrator) NotifyNewMessage(message json.RawMessage, participants []domain.UserID) int {
	frame := protocol.NewMessage(message)
	delivered := 0
	for _, user := range participants {
		delivered += o.Router.Broadcast(domain.UserRoom(user), frame, "").SentTo
	}
	return delivered
}

// Options carries the tunables the orchestrator hands to its components.
type Options struct {
	StoreTimeout time.Duration
	RingTimeout  time.Duration
}
