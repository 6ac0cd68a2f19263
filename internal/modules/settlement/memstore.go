// README: In-memory settlement store; backs local development mode and tests.
package settlement

import (
	"context"
	"sync"
	"time"

	"transferhub/internal/types"
)

type MemStore struct {
	mu            sync.Mutex
	byID          map[types.ID]*Settlement
	byReservation map[types.ID]types.ID
}

func NewMemStore() *MemStore {
	return &MemStore{
		byID:          make(map[types.ID]*Settlement),
		byReservation: make(map[types.ID]types.ID),
	}
}

func (s *MemStore) Create(_ context.Context, st *Settlement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byReservation[st.ReservationID]; exists {
		return false, nil
	}
	cp := *st
	s.byID[st.ID] = &cp
	s.byReservation[st.ReservationID] = st.ID
	return true, nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *MemStore) GetByReservation(_ context.Context, reservationID types.ID) (*Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byReservation[reservationID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *MemStore) MarkPaid(_ context.Context, id types.ID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if st.Status != StatusPending {
		return false, nil
	}
	st.Status = StatusPaid
	t := at
	st.PaidAt = &t
	return true, nil
}
