// README: Reservation service implements the booking state machine and its side effects.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"transferhub/internal/modules/settlement"
	"transferhub/internal/types"
)

var (
	ErrValidation        = errors.New("invalid booking request")
	ErrNotFound          = errors.New("reservation not found")
	ErrInvalidState      = errors.New("invalid state transition")
	ErrConflict          = errors.New("reservation state conflict")
	ErrInvalidToken      = errors.New("pickup token mismatch")
	ErrPricing           = errors.New("trip cannot be priced")
	ErrPaymentIncomplete = errors.New("payment not completed")
)

// Pricer supplies the total price at creation time.
type Pricer interface {
	Price(ctx context.Context, distanceKm float64, vehicleClass string, services []string, pickupAt time.Time) (types.Money, error)
}

// Settler owns the commission split triggered by completion.
type Settler interface {
	Settle(ctx context.Context, cmd settlement.SettleCommand) (*settlement.Settlement, error)
	GetByReservation(ctx context.Context, reservationID types.ID) (*settlement.Settlement, error)
}

// Notifier is the fire-and-forget notification sink. Send failures are
// logged and never fail the primary operation.
type Notifier interface {
	Send(ctx context.Context, kind, recipient string, payload any) error
}

type Service struct {
	store   Store
	pricing Pricer
	settler Settler
	notify  Notifier
	log     *zap.Logger
}

func NewService(store Store, pricing Pricer, settler Settler, notify Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, pricing: pricing, settler: settler, notify: notify, log: log}
}

type CreateCommand struct {
	CustomerID    types.ID
	PickupRef     string
	DropoffRef    string
	PickupAt      time.Time
	Passengers    int
	Bags          int
	VehicleClass  string
	DistanceKm    float64
	Services      []string
	PaymentMethod PaymentMethod
}

type AssignCommand struct {
	ReservationID types.ID
	DriverID      types.ID
}

type ActivateCommand struct {
	ReservationID types.ID
	Token         string
}

type CompleteCommand struct {
	ReservationID types.ID
}

type CancelCommand struct {
	ReservationID types.ID
	ActorType     string
	Reason        string
}

// Create validates the booking request, prices it, and persists the
// reservation in its entry state: bank-transfer bookings are confirmed
// immediately (funds asserted out-of-band), card bookings stay pending until
// the provider confirms.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Reservation, error) {
	if cmd.CustomerID == "" || cmd.PickupRef == "" || cmd.DropoffRef == "" ||
		cmd.VehicleClass == "" || cmd.PickupAt.IsZero() || cmd.Passengers < 1 {
		return nil, ErrValidation
	}
	if cmd.PaymentMethod != MethodCard && cmd.PaymentMethod != MethodBankTransfer {
		return nil, ErrValidation
	}
	if cmd.DistanceKm <= 0 {
		return nil, fmt.Errorf("%w: distance", ErrPricing)
	}

	total, err := s.pricing.Price(ctx, cmd.DistanceKm, cmd.VehicleClass, cmd.Services, cmd.PickupAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPricing, err)
	}

	status := StatusPending
	if cmd.PaymentMethod == MethodBankTransfer {
		status = StatusConfirmed
	}

	now := time.Now()
	r := &Reservation{
		ID:            types.NewID(),
		CustomerID:    cmd.CustomerID,
		PickupRef:     cmd.PickupRef,
		DropoffRef:    cmd.DropoffRef,
		PickupAt:      cmd.PickupAt,
		Passengers:    cmd.Passengers,
		Bags:          cmd.Bags,
		VehicleClass:  cmd.VehicleClass,
		DistanceKm:    cmd.DistanceKm,
		Services:      cmd.Services,
		TotalPrice:    total,
		PaymentMethod: cmd.PaymentMethod,
		PaymentStatus: PaymentPending,
		Status:        status,
		StatusVersion: 0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, &Event{
		ReservationID: r.ID,
		FromStatus:    StatusNone,
		ToStatus:      status,
		ActorType:     "customer",
		ActorID:       &cmd.CustomerID,
		CreatedAt:     now,
	})
	return r, nil
}

// AssignDriver moves a confirmed reservation to assigned and mints the QR
// pickup token. Concurrent assigns are resolved by the conditional write:
// the loser gets ErrConflict, never a silently overwritten driver.
func (s *Service) AssignDriver(ctx context.Context, cmd AssignCommand) (*Reservation, error) {
	if cmd.DriverID == "" {
		return nil, ErrValidation
	}
	r, err := s.store.Get(ctx, cmd.ReservationID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusConfirmed {
		return nil, ErrInvalidState
	}

	token := MintToken()
	ok, err := s.store.UpdateStatus(ctx, r.ID, StatusConfirmed, StatusAssigned, r.StatusVersion, Patch{
		DriverID: &cmd.DriverID,
		QRToken:  &token,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, &Event{
		ReservationID: r.ID,
		FromStatus:    StatusConfirmed,
		ToStatus:      StatusAssigned,
		ActorType:     "operator",
		ActorID:       &cmd.DriverID,
		CreatedAt:     time.Now(),
	})
	s.sendNotification(ctx, "driver.assigned", string(cmd.DriverID), map[string]any{
		"reservation_id": r.ID,
		"pickup_ref":     r.PickupRef,
		"pickup_at":      r.PickupAt,
	})
	return s.store.Get(ctx, r.ID)
}

// Reassign swaps the driver on an assigned reservation, minting a fresh QR
// token atomically with the driver change; the previous token stops
// verifying the moment the write lands. Reassigning to the current driver
// is a no-op.
func (s *Service) Reassign(ctx context.Context, cmd AssignCommand) (*Reservation, error) {
	if cmd.DriverID == "" {
		return nil, ErrValidation
	}
	r, err := s.store.Get(ctx, cmd.ReservationID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusAssigned {
		return nil, ErrInvalidState
	}
	if r.DriverID != nil && *r.DriverID == cmd.DriverID {
		return r, nil
	}

	token := MintToken()
	ok, err := s.store.UpdateStatus(ctx, r.ID, StatusAssigned, StatusAssigned, r.StatusVersion, Patch{
		DriverID: &cmd.DriverID,
		QRToken:  &token,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, &Event{
		ReservationID: r.ID,
		FromStatus:    StatusAssigned,
		ToStatus:      StatusAssigned,
		ActorType:     "operator",
		ActorID:       &cmd.DriverID,
		CreatedAt:     time.Now(),
	})
	s.sendNotification(ctx, "driver.assigned", string(cmd.DriverID), map[string]any{
		"reservation_id": r.ID,
		"pickup_ref":     r.PickupRef,
		"pickup_at":      r.PickupAt,
	})
	return s.store.Get(ctx, r.ID)
}

// Activate is the proof-of-pickup gate: the presented QR token must match
// the stored one. A mismatch returns ErrInvalidToken without any mutation,
// so the driver can retry with the right code.
func (s *Service) Activate(ctx context.Context, cmd ActivateCommand) (*Reservation, error) {
	r, err := s.store.Get(ctx, cmd.ReservationID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusAssigned {
		return nil, ErrInvalidState
	}
	if !VerifyToken(r.QRToken, cmd.Token) {
		return nil, ErrInvalidToken
	}

	ok, err := s.store.UpdateStatus(ctx, r.ID, StatusAssigned, StatusStarted, r.StatusVersion, Patch{})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, &Event{
		ReservationID: r.ID,
		FromStatus:    StatusAssigned,
		ToStatus:      StatusStarted,
		ActorType:     "driver",
		ActorID:       r.DriverID,
		CreatedAt:     time.Now(),
	})
	return s.store.Get(ctx, r.ID)
}

// Complete transitions started -> completed and settles the commission as
// one logical operation. The settlement is keyed uniquely by reservation id,
// so a retry after a half-failure (status flipped, settlement write failed)
// re-enters the settle phase instead of double-creating; a completed
// reservation that already has its settlement is an invalid transition.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Reservation, error) {
	r, err := s.store.Get(ctx, cmd.ReservationID)
	if err != nil {
		return nil, err
	}

	if r.Status == StatusCompleted {
		if _, err := s.settler.GetByReservation(ctx, r.ID); err == nil {
			return nil, ErrInvalidState
		} else if !errors.Is(err, settlement.ErrNotFound) {
			return nil, err
		}
		return r, s.settle(ctx, r)
	}

	if r.Status != StatusStarted {
		return nil, ErrInvalidState
	}
	if r.PaymentStatus != PaymentCompleted {
		return nil, ErrPaymentIncomplete
	}

	ok, err := s.store.UpdateStatus(ctx, r.ID, StatusStarted, StatusCompleted, r.StatusVersion, Patch{})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, &Event{
		ReservationID: r.ID,
		FromStatus:    StatusStarted,
		ToStatus:      StatusCompleted,
		ActorType:     "driver",
		ActorID:       r.DriverID,
		CreatedAt:     time.Now(),
	})
	if err := s.settle(ctx, r); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, r.ID)
}

func (s *Service) settle(ctx context.Context, r *Reservation) error {
	if r.DriverID == nil {
		s.log.Error("completed reservation has no driver", zap.String("reservation_id", string(r.ID)))
		return settlement.ErrPrecondition
	}
	_, err := s.settler.Settle(ctx, settlement.SettleCommand{
		ReservationID:     r.ID,
		DriverID:          *r.DriverID,
		ReservationStatus: string(StatusCompleted),
		Total:             r.TotalPrice,
	})
	return err
}

// Cancel is legal from any non-terminal state and idempotent: cancelling an
// already-cancelled reservation returns it unchanged.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Reservation, error) {
	r, err := s.store.Get(ctx, cmd.ReservationID)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusCancelled {
		return r, nil
	}
	if !CanTransition(r.Status, StatusCancelled) {
		return nil, ErrInvalidState
	}

	reason := cmd.Reason
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusCancelled, r.StatusVersion, Patch{
		CancelReason: &reason,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, &Event{
		ReservationID: r.ID,
		FromStatus:    r.Status,
		ToStatus:      StatusCancelled,
		ActorType:     cmd.ActorType,
		ActorID:       nil,
		CreatedAt:     time.Now(),
	})
	return s.store.Get(ctx, r.ID)
}

// Confirm is invoked by the payment orchestrator once funds are verified.
// It is replay-safe: a reservation whose payment is already completed is
// left untouched, and confirmation of a cancelled reservation is absorbed
// with a loud log so operations can refund.
func (s *Service) Confirm(ctx context.Context, id types.ID) error {
	for attempt := 0; attempt < 2; attempt++ {
		r, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if r.PaymentStatus == PaymentCompleted {
			return nil
		}
		if r.Status == StatusCancelled {
			s.log.Error("payment confirmed for cancelled reservation",
				zap.String("reservation_id", string(id)))
			return nil
		}

		paid := PaymentCompleted
		to := r.Status
		from := r.Status
		if r.Status == StatusPending {
			to = StatusConfirmed
		}
		ok, err := s.store.UpdateStatus(ctx, id, from, to, r.StatusVersion, Patch{PaymentStatus: &paid})
		if err != nil {
			return err
		}
		if !ok {
			continue // lost a race; re-read and retry once
		}
		if from != to {
			s.appendEvent(ctx, &Event{
				ReservationID: id,
				FromStatus:    from,
				ToStatus:      to,
				ActorType:     "payment",
				CreatedAt:     time.Now(),
			})
		}
		s.sendNotification(ctx, "reservation.confirmed", string(r.CustomerID), map[string]any{
			"reservation_id": id,
		})
		return nil
	}
	return ErrConflict
}

// MarkPaymentFailed records a failed payment attempt on the reservation
// without touching its status; the booking stays in its last good state so
// the customer can retry with a fresh transaction.
func (s *Service) MarkPaymentFailed(ctx context.Context, id types.ID) error {
	return s.patchPaymentStatus(ctx, id, PaymentFailed)
}

// MarkPaymentRefunded mirrors a refunded transaction onto the reservation.
func (s *Service) MarkPaymentRefunded(ctx context.Context, id types.ID) error {
	return s.patchPaymentStatus(ctx, id, PaymentRefunded)
}

func (s *Service) patchPaymentStatus(ctx context.Context, id types.ID, ps PaymentStatus) error {
	for attempt := 0; attempt < 2; attempt++ {
		r, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if r.PaymentStatus == ps {
			return nil
		}
		ok, err := s.store.UpdateStatus(ctx, id, r.Status, r.Status, r.StatusVersion, Patch{PaymentStatus: &ps})
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrConflict
}

// TotalPrice exposes the authoritative amount for transaction opening.
func (s *Service) TotalPrice(ctx context.Context, id types.ID) (types.Money, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return types.Money{}, err
	}
	return r.TotalPrice, nil
}

// PaymentState reports the lifecycle status and payment status, letting the
// payment orchestrator refuse to open transactions for paid or cancelled
// reservations.
func (s *Service) PaymentState(ctx context.Context, id types.ID) (string, string, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return "", "", err
	}
	return string(r.Status), string(r.PaymentStatus), nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Reservation, error) {
	return s.store.Get(ctx, id)
}

// Events returns the reservation's state audit trail, oldest first.
func (s *Service) Events(ctx context.Context, id types.ID) ([]Event, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Events(ctx, id)
}

// appendEvent records an audit-trail entry. The write is best-effort: the
// state transition has already landed, so a failed append is logged loudly
// instead of failing the operation.
func (s *Service) appendEvent(ctx context.Context, ev *Event) {
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		s.log.Error("audit event lost",
			zap.String("reservation_id", string(ev.ReservationID)),
			zap.String("from", string(ev.FromStatus)),
			zap.String("to", string(ev.ToStatus)),
			zap.Error(err))
	}
}

func (s *Service) sendNotification(ctx context.Context, kind, recipient string, payload any) {
	if s.notify == nil {
		return
	}
	if err := s.notify.Send(ctx, kind, recipient, payload); err != nil {
		s.log.Warn("notification failed",
			zap.String("kind", kind),
			zap.String("recipient", recipient),
			zap.Error(err))
	}
}
