package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/connecthub/relay/internal/core"
	"github.com/connecthub/relay/internal/domain"
	"github.com/connecthub/relay/internal/protocol"
)

// ErrUnknownMessage is returned by a MessageStore when the message id does
// not exist. The mediator treats it as a warn-level no-op, never a failure.
var ErrUnknownMessage = errors.New("unknown message")

// MessageStore is the persistence collaborator seen from the mediator's
// side. Implementations must honor the context deadline.
type MessageStore interface {
	Status(ctx context.Context, id domain.MessageID) (domain.Status, error)
	SetStatus(ctx context.Context, id domain.MessageID, status domain.Status) error
	// Participants resolves the members of the message's chat, which bounds
	// the broadcast audience for status updates.
	Participants(ctx context.Context, id domain.MessageID) ([]domain.UserID, error)
}

type msgLock struct {
	mu   sync.Mutex
	refs int
}

// StatusMediator serializes delivered/read transitions through the store and
// fans the result out to the chat's participants only. Transitions are
// monotonic: a request at or below the stored status succeeds silently with
// no persistence write and no broadcast.
type StatusMediator struct {
	store   MessageStore
	router  *Router
	timeout time.Duration

	mu       sync.Mutex
	inflight map[domain.MessageID]*msgLock
}

func NewStatusMediator(store MessageStore, router *Router, timeout time.Duration) *StatusMediator {
	return &StatusMediator{
		store:    store,
		router:   router,
		timeout:  timeout,
		inflight: make(map[domain.MessageID]*msgLock),
	}
}

// lockMessage serializes all work on one message id. Store reads and writes
// suspend at the I/O boundary, so without this a late older transition could
// land after a newer one and regress the stored status.
func (m *StatusMediator) lockMessage(id domain.MessageID) func() {
	m.mu.Lock()
	l, ok := m.inflight[id]
	if !ok {
		l = &msgLock{}
		m.inflight[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.inflight, id)
		}
		m.mu.Unlock()
	}
}

// Update applies one status transition requested by a connection. An error
// return concerns the requester only; no partial broadcast ever happens.
func (m *StatusMediator) Update(ctx context.Context, id domain.MessageID, next domain.Status, from core.ConnID) error {
	unlock := m.lockMessage(id)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	current, err := m.store.Status(ctx, id)
	if errors.Is(err, ErrUnknownMessage) {
		log.Warn().Str("module", "app.status").Str("message", string(id)).Msg("status update for unknown message")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read status of %s: %w", id, err)
	}

	if next <= current {
		// Monotonic no-op: already at or past the requested status.
		return nil
	}

	if err := m.store.SetStatus(ctx, id, next); err != nil {
		return fmt.Errorf("persist status of %s: %w", id, err)
	}

	participants, err := m.store.Participants(ctx, id)
	if err != nil {
		// The write went through; surface the scoping failure to the
		// requester rather than leaking the update to everyone.
		return fmt.Errorf("resolve participants of %s: %w", id, err)
	}

	frame := protocol.MessageStatusUpdate(id, next)
	for _, user := range participants {
		m.router.Broadcast(domain.UserRoom(user), frame, from)
	}
	log.Info().Str("module", "app.status").Str("message", string(id)).
		Str("status", next.String()).Int("participants", len(participants)).Msg("status updated")
	return nil
}
