// README: Commission engine; splits completed-trip revenue between operator and driver.
package settlement

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"transferhub/internal/types"
)

var (
	ErrNotFound     = errors.New("settlement not found")
	ErrPrecondition = errors.New("settlement precondition violated")
)

// SettleCommand carries the facts the engine needs, decoupled from the
// reservation aggregate.
type SettleCommand struct {
	ReservationID     types.ID
	DriverID          types.ID
	ReservationStatus string // must be "completed"
	Total             types.Money
}

type Store interface {
	// Create inserts the settlement unless one already exists for the
	// reservation; it reports whether the insert happened.
	Create(ctx context.Context, st *Settlement) (bool, error)
	GetByReservation(ctx context.Context, reservationID types.ID) (*Settlement, error)
	Get(ctx context.Context, id types.ID) (*Settlement, error)
	// MarkPaid flips pending->paid; false when the settlement was already paid.
	MarkPaid(ctx context.Context, id types.ID, at time.Time) (bool, error)
}

type Service struct {
	store Store
	rate  float64
	log   *zap.Logger
}

// NewService captures the commission rate at construction; the rate recorded
// on each settlement is whatever the service carried at settlement time, and
// later rate changes never rewrite existing settlements.
func NewService(store Store, rate float64, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, rate: rate, log: log}
}

// Settle computes the split and writes the settlement exactly once per
// reservation. Re-settling a reservation returns the existing record, so
// completion retries cannot double-create.
//
// operatorShare = roundHalfUp(total * rate); driverShare = total -
// operatorShare. The driver share is derived by subtraction, never rounded
// independently, so the two shares always sum to the total exactly.
func (s *Service) Settle(ctx context.Context, cmd SettleCommand) (*Settlement, error) {
	if cmd.ReservationStatus != "completed" {
		s.log.Error("settle called for incomplete reservation",
			zap.String("reservation_id", string(cmd.ReservationID)),
			zap.String("status", cmd.ReservationStatus))
		return nil, ErrPrecondition
	}
	if cmd.DriverID == "" {
		s.log.Error("settle called without a driver",
			zap.String("reservation_id", string(cmd.ReservationID)))
		return nil, ErrPrecondition
	}
	if cmd.Total.Amount < 0 {
		return nil, ErrPrecondition
	}

	operator := types.RoundHalfUp(float64(cmd.Total.Amount) * s.rate)
	st := &Settlement{
		ID:            types.NewID(),
		ReservationID: cmd.ReservationID,
		DriverID:      cmd.DriverID,
		Total:         cmd.Total,
		OperatorShare: types.Money{Amount: operator, Currency: cmd.Total.Currency},
		DriverShare:   types.Money{Amount: cmd.Total.Amount - operator, Currency: cmd.Total.Currency},
		Rate:          s.rate,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}

	created, err := s.store.Create(ctx, st)
	if err != nil {
		return nil, err
	}
	if !created {
		return s.store.GetByReservation(ctx, cmd.ReservationID)
	}
	return st, nil
}

// MarkPaid acknowledges an external payout. Paying an already-paid
// settlement is a no-op.
func (s *Service) MarkPaid(ctx context.Context, id types.ID) (*Settlement, error) {
	if _, err := s.store.MarkPaid(ctx, id, time.Now()); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) GetByReservation(ctx context.Context, reservationID types.ID) (*Settlement, error) {
	return s.store.GetByReservation(ctx, reservationID)
}
