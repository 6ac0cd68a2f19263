// README: In-memory reservation store; backs local development mode and tests.
package reservation

import (
	"context"
	"sync"
	"time"

	"transferhub/internal/types"
)

// MemStore implements Store with the same conditional-write semantics as
// the PostgreSQL store, guarded by a mutex instead of a WHERE clause.
type MemStore struct {
	mu     sync.Mutex
	docs   map[types.ID]*Reservation
	events map[types.ID][]Event
	nextID int64

	subMu sync.RWMutex
	subs  []func(Change)
}

func NewMemStore() *MemStore {
	return &MemStore{
		docs:   make(map[types.ID]*Reservation),
		events: make(map[types.ID][]Event),
	}
}

func (s *MemStore) Create(_ context.Context, r *Reservation) error {
	s.mu.Lock()
	cp := *r
	s.docs[r.ID] = &cp
	s.mu.Unlock()
	s.publish(Change{ReservationID: r.ID, From: StatusNone, To: r.Status, At: r.CreatedAt})
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int, patch Patch) (bool, error) {
	s.mu.Lock()
	r, ok := s.docs[id]
	if !ok {
		s.mu.Unlock()
		return false, ErrNotFound
	}
	if r.Status != from || r.StatusVersion != version {
		s.mu.Unlock()
		return false, nil
	}
	r.Status = to
	r.StatusVersion++
	if patch.DriverID != nil {
		d := *patch.DriverID
		r.DriverID = &d
	}
	if patch.QRToken != nil {
		r.QRToken = *patch.QRToken
	}
	if patch.PaymentStatus != nil {
		r.PaymentStatus = *patch.PaymentStatus
	}
	if patch.CancelReason != nil {
		v := *patch.CancelReason
		r.CancelReason = &v
	}
	r.UpdatedAt = time.Now()
	s.mu.Unlock()
	s.publish(Change{ReservationID: id, From: from, To: to, At: time.Now()})
	return true, nil
}

func (s *MemStore) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *e
	cp.ID = s.nextID
	s.events[e.ReservationID] = append(s.events[e.ReservationID], cp)
	return nil
}

func (s *MemStore) Events(_ context.Context, id types.ID) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evs := s.events[id]
	out := make([]Event, len(evs))
	copy(out, evs)
	return out, nil
}

func (s *MemStore) Subscribe(fn func(Change)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *MemStore) publish(ch Change) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, fn := range s.subs {
		fn(ch)
	}
}
