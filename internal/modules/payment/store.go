// README: Postgres transaction store with optimistic status updates.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"transferhub/internal/types"
)

// ErrDuplicate reports a second open transaction for the same reservation;
// the partial unique index on (reservation_id) WHERE status='pending'
// enforces at most one.
var ErrDuplicate = errors.New("open transaction already exists")

// Patch carries the optional columns an UpdateStatus may set alongside the
// status change. Nil fields are left untouched.
type Patch struct {
	ProviderRef   *string
	RedirectURL   *string
	ErrorCode     *string
	ErrorMessage  *string
	LastAttemptAt *time.Time
}

type Store interface {
	Create(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id types.ID) (*Transaction, error)
	// FindOpenByReservation returns the reservation's pending transaction,
	// or ErrNotFound if none is open.
	FindOpenByReservation(ctx context.Context, reservationID types.ID) (*Transaction, error)
	CountByReservation(ctx context.Context, reservationID types.ID) (int, error)
	// UpdateStatus performs a conditional write guarded by the current
	// status and version; false means another writer got there first.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, patch Patch) (bool, error)
}

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const selectTransaction = `
SELECT id, reservation_id, amount, currency, method, status, status_version,
       provider_ref, redirect_url, instructions, attempt, last_attempt_at,
       error_code, error_message, created_at, updated_at
FROM transactions`

func (s *PGStore) Create(ctx context.Context, tx *Transaction) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO transactions
  (id, reservation_id, amount, currency, method, status, status_version,
   provider_ref, redirect_url, instructions, attempt, last_attempt_at,
   error_code, error_message, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		tx.ID, tx.ReservationID, tx.Amount.Amount, tx.Amount.Currency,
		tx.Method, tx.Status, tx.StatusVersion,
		tx.ProviderRef, tx.RedirectURL, tx.Instructions,
		tx.Attempt, tx.LastAttemptAt,
		tx.ErrorCode, tx.ErrorMessage, tx.CreatedAt, tx.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Transaction, error) {
	row := s.pool.QueryRow(ctx, selectTransaction+` WHERE id = $1`, id)
	return scanTransaction(row)
}

func (s *PGStore) FindOpenByReservation(ctx context.Context, reservationID types.ID) (*Transaction, error) {
	row := s.pool.QueryRow(ctx, selectTransaction+` WHERE reservation_id = $1 AND status = $2`,
		reservationID, StatusPending)
	return scanTransaction(row)
}

func (s *PGStore) CountByReservation(ctx context.Context, reservationID types.ID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE reservation_id = $1`, reservationID).Scan(&n)
	return n, err
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, patch Patch) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE transactions
SET status = $1,
    status_version = status_version + 1,
    provider_ref = COALESCE($2, provider_ref),
    redirect_url = COALESCE($3, redirect_url),
    error_code = COALESCE($4, error_code),
    error_message = COALESCE($5, error_message),
    last_attempt_at = COALESCE($6, last_attempt_at),
    updated_at = NOW()
WHERE id = $7 AND status = $8 AND status_version = $9`,
		to, patch.ProviderRef, patch.RedirectURL,
		patch.ErrorCode, patch.ErrorMessage, patch.LastAttemptAt,
		id, from, version)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var tx Transaction
	err := row.Scan(&tx.ID, &tx.ReservationID, &tx.Amount.Amount, &tx.Amount.Currency,
		&tx.Method, &tx.Status, &tx.StatusVersion,
		&tx.ProviderRef, &tx.RedirectURL, &tx.Instructions,
		&tx.Attempt, &tx.LastAttemptAt,
		&tx.ErrorCode, &tx.ErrorMessage, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
