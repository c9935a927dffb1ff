// Package storage provides the process-local message store. In a full
// deployment the chat service's database sits behind the same interface;
// this in-memory implementation backs the binary and the tests.
package storage

import (
	"context"
	"sync"

	"github.com/connecthub/relay/internal/app"
	"github.com/connecthub/relay/internal/domain"
)

type record struct {
	status       domain.Status
	participants []domain.UserID
}

type MemoryStore struct {
	mu       sync.RWMutex
	messages map[domain.MessageID]*record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[domain.MessageID]*record)}
}

var _ app.MessageStore = (*MemoryStore)(nil)

// Track registers a freshly persisted message and the members of its chat.
// Status starts at sent.
func (s *MemoryStore) Track(id domain.MessageID, participants []domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; ok {
		return
	}
	copied := make([]domain.UserID, len(participants))
	copy(copied, participants)
	s.messages[id] = &record{status: domain.StatusSent, participants: copied}
}

func (s *MemoryStore) Status(ctx context.Context, id domain.MessageID) (domain.Status, error) {
	if err := ctx.Err(); err != nil {
		return domain.StatusSent, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.messages[id]
	if !ok {
		return domain.StatusSent, app.ErrUnknownMessage
	}
	return rec.status, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, id domain.MessageID, status domain.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.messages[id]
	if !ok {
		return app.ErrUnknownMessage
	}
	rec.status = status
	return nil
}

func (s *MemoryStore) Participants(ctx context.Context, id domain.MessageID) ([]domain.UserID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.messages[id]
	if !ok {
		return nil, app.ErrUnknownMessage
	}
	out := make([]domain.UserID, len(rec.participants))
	copy(out, rec.participants)
	return out, nil
}
