// README: In-memory transaction store mirroring the Postgres semantics.
package payment

import (
	"context"
	"sync"
	"time"

	"transferhub/internal/types"
)

// MemStore keeps transactions in process memory. It enforces the same
// at-most-one-open-per-reservation rule and conditional update semantics
// as PGStore, so the dev server and tests exercise the real state machine.
type MemStore struct {
	mu   sync.Mutex
	byID map[types.ID]*Transaction
}

func NewMemStore() *MemStore {
	return &MemStore{byID: make(map[types.ID]*Transaction)}
}

func (s *MemStore) Create(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.Status == StatusPending {
		for _, other := range s.byID {
			if other.ReservationID == tx.ReservationID && other.Status == StatusPending {
				return ErrDuplicate
			}
		}
	}
	cp := *tx
	s.byID[tx.ID] = &cp
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

func (s *MemStore) FindOpenByReservation(_ context.Context, reservationID types.ID) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.byID {
		if tx.ReservationID == reservationID && tx.Status == StatusPending {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) CountByReservation(_ context.Context, reservationID types.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tx := range s.byID {
		if tx.ReservationID == reservationID {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int, patch Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.byID[id]
	if !ok || tx.Status != from || tx.StatusVersion != version {
		return false, nil
	}
	tx.Status = to
	tx.StatusVersion++
	if patch.ProviderRef != nil {
		tx.ProviderRef = *patch.ProviderRef
	}
	if patch.RedirectURL != nil {
		tx.RedirectURL = *patch.RedirectURL
	}
	if patch.ErrorCode != nil {
		tx.ErrorCode = *patch.ErrorCode
	}
	if patch.ErrorMessage != nil {
		tx.ErrorMessage = *patch.ErrorMessage
	}
	if patch.LastAttemptAt != nil {
		tx.LastAttemptAt = *patch.LastAttemptAt
	}
	tx.UpdatedAt = time.Now()
	return true, nil
}
