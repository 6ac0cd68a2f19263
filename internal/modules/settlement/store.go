// README: Settlement store backed by PostgreSQL; uniqueness per reservation is enforced by the schema.
package settlement

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"transferhub/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, st *Settlement) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO settlements (
			id, reservation_id, driver_id, total, operator_share, driver_share,
			currency, rate, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (reservation_id) DO NOTHING`,
		string(st.ID),
		string(st.ReservationID),
		string(st.DriverID),
		st.Total.Amount,
		st.OperatorShare.Amount,
		st.DriverShare.Amount,
		st.Total.Currency,
		st.Rate,
		string(st.Status),
		st.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Settlement, error) {
	return s.scanOne(s.db.QueryRow(ctx, selectSettlement+` WHERE id = $1`, string(id)))
}

func (s *PGStore) GetByReservation(ctx context.Context, reservationID types.ID) (*Settlement, error) {
	return s.scanOne(s.db.QueryRow(ctx, selectSettlement+` WHERE reservation_id = $1`, string(reservationID)))
}

func (s *PGStore) MarkPaid(ctx context.Context, id types.ID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE settlements
		SET status = 'paid', paid_at = $1
		WHERE id = $2 AND status = 'pending'`,
		at, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const selectSettlement = `
	SELECT id, reservation_id, driver_id, total, operator_share, driver_share,
	       currency, rate, status, created_at, paid_at
	FROM settlements`

func (s *PGStore) scanOne(row pgx.Row) (*Settlement, error) {
	var st Settlement
	var currency string
	var paidAt sql.NullTime
	err := row.Scan(
		&st.ID, &st.ReservationID, &st.DriverID,
		&st.Total.Amount, &st.OperatorShare.Amount, &st.DriverShare.Amount,
		&currency, &st.Rate, &st.Status, &st.CreatedAt, &paidAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	st.Total.Currency = currency
	st.OperatorShare.Currency = currency
	st.DriverShare.Currency = currency
	if paidAt.Valid {
		t := paidAt.Time
		st.PaidAt = &t
	}
	return &st, nil
}
