// README: Transaction orchestrator; opens payments, reconciles provider callbacks, handles refunds.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"transferhub/internal/types"
)

var (
	ErrNotFound        = errors.New("transaction not found")
	ErrConflict        = errors.New("transaction state conflict")
	ErrInvalidState    = errors.New("invalid transaction state")
	ErrAlreadyPaid     = errors.New("reservation already paid")
	ErrAmountMismatch  = errors.New("amount does not match reservation total")
	ErrBadSignature    = errors.New("callback signature mismatch")
	ErrProvider        = errors.New("payment provider error")
	ErrProviderTimeout = errors.New("payment provider timeout")
)

// Reservations is the slice of the reservation module the orchestrator
// needs: the authoritative price, the current payment state, and the
// payment-outcome hooks.
type Reservations interface {
	TotalPrice(ctx context.Context, id types.ID) (types.Money, error)
	// PaymentState reports the reservation's lifecycle status and payment
	// status ("pending", "completed", "failed", "refunded").
	PaymentState(ctx context.Context, id types.ID) (status, paymentStatus string, err error)
	Confirm(ctx context.Context, id types.ID) error
	MarkPaymentFailed(ctx context.Context, id types.ID) error
	MarkPaymentRefunded(ctx context.Context, id types.ID) error
}

// Enqueuer schedules background tasks; satisfied by *asynq.Client. Nil
// disables expiry scheduling.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Config struct {
	Secret          string
	Salt            string
	BankInstruction string
	Expiry          time.Duration
}

type Service struct {
	store        Store
	reservations Reservations
	provider     Provider
	cfg          Config
	tasks        Enqueuer
	log          *zap.Logger
}

func NewService(store Store, reservations Reservations, provider Provider, cfg Config, tasks Enqueuer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:        store,
		reservations: reservations,
		provider:     provider,
		cfg:          cfg,
		tasks:        tasks,
		log:          log,
	}
}

type OpenCommand struct {
	ReservationID types.ID
	Amount        types.Money
	Method        Method
}

type RefundCommand struct {
	TransactionID types.ID
	Amount        types.Money // zero amount means full refund
	Reason        string
}

// Open creates a payment intent for a reservation. It is idempotent per
// reservation: while a non-terminal transaction exists, Open returns it
// instead of creating a duplicate, and once the reservation is paid Open
// rejects with ErrAlreadyPaid rather than charging again. Retrying after a
// failed attempt stays legal. The amount must equal the reservation's
// total at creation time; price drift after a transaction opens is a bug
// callers must not paper over.
func (s *Service) Open(ctx context.Context, cmd OpenCommand) (*Transaction, error) {
	status, paymentStatus, err := s.reservations.PaymentState(ctx, cmd.ReservationID)
	if err != nil {
		return nil, err
	}
	if paymentStatus == "completed" {
		return nil, ErrAlreadyPaid
	}
	if status == "cancelled" {
		return nil, fmt.Errorf("%w: reservation cancelled", ErrInvalidState)
	}

	total, err := s.reservations.TotalPrice(ctx, cmd.ReservationID)
	if err != nil {
		return nil, err
	}
	if cmd.Amount.Amount != total.Amount || cmd.Amount.Currency != total.Currency {
		return nil, ErrAmountMismatch
	}

	if existing, err := s.store.FindOpenByReservation(ctx, cmd.ReservationID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	attempts, err := s.store.CountByReservation(ctx, cmd.ReservationID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tx := &Transaction{
		ID:            types.NewID(),
		ReservationID: cmd.ReservationID,
		Amount:        total,
		Method:        cmd.Method,
		Status:        StatusPending,
		Attempt:       attempts + 1,
		LastAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if cmd.Method == MethodBankTransfer {
		tx.Instructions = s.cfg.BankInstruction
	}

	if err := s.store.Create(ctx, tx); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Lost an open/open race; the winner's transaction is the one.
			return s.store.FindOpenByReservation(ctx, cmd.ReservationID)
		}
		return nil, err
	}

	if cmd.Method == MethodCard {
		if err := s.openCard(ctx, tx); err != nil {
			return tx, err
		}
		s.scheduleExpiry(tx)
	}
	return s.store.Get(ctx, tx.ID)
}

func (s *Service) openCard(ctx context.Context, tx *Transaction) error {
	intent, err := s.provider.CreatePayment(ctx, tx)
	if err != nil {
		// The transaction stays pending: a timed-out or failed provider
		// call may still have registered the payment, so reconciliation
		// or expiry decides its fate.
		s.log.Warn("provider create payment failed",
			zap.String("transaction_id", string(tx.ID)),
			zap.Error(err))
		return err
	}

	ok, err := s.store.UpdateStatus(ctx, tx.ID, StatusPending, StatusPending, tx.StatusVersion, Patch{
		ProviderRef: &intent.ProviderRef,
		RedirectURL: &intent.RedirectURL,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	tx.StatusVersion++
	tx.ProviderRef = intent.ProviderRef
	tx.RedirectURL = intent.RedirectURL

	if intent.Approved {
		return s.complete(ctx, tx)
	}
	return nil
}

// Reconcile applies a signed provider callback. Forged signatures are
// rejected without touching the transaction; callbacks for transactions
// already in a terminal state are ignored, which makes Reconcile safe to
// replay with the same payload any number of times.
func (s *Service) Reconcile(ctx context.Context, cb Callback) (*Transaction, error) {
	if !VerifySignature(s.cfg.Secret, s.cfg.Salt, cb) {
		s.log.Error("rejected callback with bad signature",
			zap.String("order_reference", cb.OrderReference),
			zap.String("status", cb.Status))
		return nil, ErrBadSignature
	}

	tx, err := s.store.Get(ctx, types.ID(cb.OrderReference))
	if err != nil {
		return nil, err
	}
	if tx.Status.Terminal() {
		return tx, nil
	}
	if cb.Amount != tx.Amount.Amount {
		s.log.Error("callback amount mismatch",
			zap.String("transaction_id", string(tx.ID)),
			zap.Int64("callback_amount", cb.Amount),
			zap.Int64("transaction_amount", tx.Amount.Amount))
		return nil, ErrAmountMismatch
	}

	switch cb.Status {
	case CallbackApproved:
		if err := s.complete(ctx, tx); err != nil {
			return tx, err
		}
	case CallbackDeclined:
		if err := s.fail(ctx, tx, cb.ReasonCode, cb.Reason); err != nil {
			return tx, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown callback status %q", ErrInvalidState, cb.Status)
	}
	return s.store.Get(ctx, tx.ID)
}

func (s *Service) complete(ctx context.Context, tx *Transaction) error {
	now := time.Now()
	ok, err := s.store.UpdateStatus(ctx, tx.ID, StatusPending, StatusCompleted, tx.StatusVersion, Patch{
		LastAttemptAt: &now,
	})
	if err != nil {
		return err
	}
	if !ok {
		// A concurrent reconcile may have won; terminal is fine.
		cur, err := s.store.Get(ctx, tx.ID)
		if err != nil {
			return err
		}
		if cur.Status != StatusCompleted {
			return ErrConflict
		}
		return nil
	}
	return s.reservations.Confirm(ctx, tx.ReservationID)
}

func (s *Service) fail(ctx context.Context, tx *Transaction, code, msg string) error {
	now := time.Now()
	ok, err := s.store.UpdateStatus(ctx, tx.ID, StatusPending, StatusFailed, tx.StatusVersion, Patch{
		ErrorCode:     &code,
		ErrorMessage:  &msg,
		LastAttemptAt: &now,
	})
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	if err := s.reservations.MarkPaymentFailed(ctx, tx.ReservationID); err != nil {
		s.log.Warn("mark payment failed on reservation",
			zap.String("reservation_id", string(tx.ReservationID)),
			zap.Error(err))
	}
	return nil
}

// Refund is legal only from completed. Card refunds delegate to the
// provider; bank-transfer refunds are a manual-process acknowledgement.
func (s *Service) Refund(ctx context.Context, cmd RefundCommand) (*Transaction, error) {
	tx, err := s.store.Get(ctx, cmd.TransactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != StatusCompleted {
		return nil, ErrInvalidState
	}

	amount := cmd.Amount
	if amount.Amount == 0 {
		amount = tx.Amount
	}
	if tx.Method == MethodCard {
		if err := s.provider.Refund(ctx, tx, amount, cmd.Reason); err != nil {
			return nil, err
		}
	}

	ok, err := s.store.UpdateStatus(ctx, tx.ID, StatusCompleted, StatusRefunded, tx.StatusVersion, Patch{})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	if err := s.reservations.MarkPaymentRefunded(ctx, tx.ReservationID); err != nil {
		s.log.Warn("mark payment refunded on reservation",
			zap.String("reservation_id", string(tx.ReservationID)),
			zap.Error(err))
	}
	return s.store.Get(ctx, tx.ID)
}

// ConfirmTransfer is the operator's acknowledgement that a bank transfer
// arrived; it completes the transaction without a provider round-trip.
func (s *Service) ConfirmTransfer(ctx context.Context, id types.ID) (*Transaction, error) {
	tx, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Method != MethodBankTransfer {
		return nil, ErrInvalidState
	}
	if tx.Status == StatusCompleted {
		return tx, nil
	}
	if tx.Status != StatusPending {
		return nil, ErrInvalidState
	}
	if err := s.complete(ctx, tx); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, tx.ID)
}

// Expire cancels a transaction abandoned in pending; terminal transactions
// are left alone.
func (s *Service) Expire(ctx context.Context, id types.ID) error {
	tx, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if tx.Status != StatusPending {
		return nil
	}
	code := "expired"
	msg := "payment window elapsed"
	ok, err := s.store.UpdateStatus(ctx, tx.ID, StatusPending, StatusCancelled, tx.StatusVersion, Patch{
		ErrorCode:    &code,
		ErrorMessage: &msg,
	})
	if err != nil {
		return err
	}
	if ok {
		s.log.Info("expired pending transaction", zap.String("transaction_id", string(tx.ID)))
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Transaction, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) scheduleExpiry(tx *Transaction) {
	if s.tasks == nil || s.cfg.Expiry <= 0 {
		return
	}
	task, err := NewExpireTask(tx.ID)
	if err != nil {
		s.log.Warn("build expiry task", zap.Error(err))
		return
	}
	if _, err := s.tasks.Enqueue(task, asynq.ProcessIn(s.cfg.Expiry)); err != nil {
		s.log.Warn("schedule expiry task",
			zap.String("transaction_id", string(tx.ID)),
			zap.Error(err))
	}
}
