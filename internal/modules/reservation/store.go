// README: Reservation storage contract and the PostgreSQL implementation.
package reservation

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"transferhub/internal/types"
)

// Patch carries the document fields a transition may change alongside the
// status itself. Nil fields are left untouched.
type Patch struct {
	DriverID      *types.ID
	QRToken       *string
	PaymentStatus *PaymentStatus
	CancelReason  *string
}

// Change is pushed to subscribers after every successful write.
type Change struct {
	ReservationID types.ID
	From          Status
	To            Status
	At            time.Time
}

// Store is the storage collaborator contract the state machine depends on:
// document reads, conditional writes keyed on the previously-read status and
// version, the audit-event append, and change subscriptions. Nothing here
// is specific to a database product.
type Store interface {
	Create(ctx context.Context, r *Reservation) error
	Get(ctx context.Context, id types.ID) (*Reservation, error)
	// UpdateStatus writes conditionally on (status, status_version) being
	// unchanged since the read; false means the caller lost the race.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, patch Patch) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	Events(ctx context.Context, id types.ID) ([]Event, error)
	Subscribe(fn func(Change))
}

type PGStore struct {
	db *pgxpool.Pool

	mu   sync.RWMutex
	subs []func(Change)
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, r *Reservation) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO reservations (
			id, customer_id, pickup_ref, dropoff_ref, pickup_at,
			passengers, bags, vehicle_class, distance_km, services,
			total_price, currency, payment_method, payment_status,
			status, status_version, driver_id, qr_token, cancel_reason,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18, $19,
			$20, $21
		)`,
		string(r.ID),
		string(r.CustomerID),
		r.PickupRef, r.DropoffRef, r.PickupAt,
		r.Passengers, r.Bags, r.VehicleClass, r.DistanceKm, r.Services,
		r.TotalPrice.Amount, r.TotalPrice.Currency,
		string(r.PaymentMethod), string(r.PaymentStatus),
		string(r.Status), r.StatusVersion,
		idPtr(r.DriverID), r.QRToken, r.CancelReason,
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return err
	}
	s.publish(Change{ReservationID: r.ID, From: StatusNone, To: r.Status, At: r.CreatedAt})
	return nil
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Reservation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, customer_id, pickup_ref, dropoff_ref, pickup_at,
		       passengers, bags, vehicle_class, distance_km, services,
		       total_price, currency, payment_method, payment_status,
		       status, status_version, driver_id, qr_token, cancel_reason,
		       created_at, updated_at
		FROM reservations
		WHERE id = $1`, string(id),
	)

	var r Reservation
	var driverID sql.NullString
	var cancelReason sql.NullString
	err := row.Scan(
		&r.ID, &r.CustomerID, &r.PickupRef, &r.DropoffRef, &r.PickupAt,
		&r.Passengers, &r.Bags, &r.VehicleClass, &r.DistanceKm, &r.Services,
		&r.TotalPrice.Amount, &r.TotalPrice.Currency, &r.PaymentMethod, &r.PaymentStatus,
		&r.Status, &r.StatusVersion, &driverID, &r.QRToken, &cancelReason,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if driverID.Valid {
		d := types.ID(driverID.String)
		r.DriverID = &d
	}
	if cancelReason.Valid {
		v := cancelReason.String
		r.CancelReason = &v
	}
	return &r, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, patch Patch) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE reservations
		SET status = $1,
		    status_version = status_version + 1,
		    driver_id = COALESCE($2, driver_id),
		    qr_token = COALESCE($3, qr_token),
		    payment_status = COALESCE($4, payment_status),
		    cancel_reason = COALESCE($5, cancel_reason),
		    updated_at = NOW()
		WHERE id = $6 AND status = $7 AND status_version = $8`,
		string(to),
		idPtr(patch.DriverID),
		patch.QRToken,
		statusPtr(patch.PaymentStatus),
		patch.CancelReason,
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	s.publish(Change{ReservationID: id, From: from, To: to, At: time.Now()})
	return true, nil
}

func (s *PGStore) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO reservation_state_events (
			reservation_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.ReservationID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		idPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *PGStore) Events(ctx context.Context, id types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, reservation_id, from_status, to_status, actor_type, actor_id, created_at
		FROM reservation_state_events
		WHERE reservation_id = $1
		ORDER BY id`, string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var actorID sql.NullString
		if err := rows.Scan(&e.ID, &e.ReservationID, &e.FromStatus, &e.ToStatus, &e.ActorType, &actorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actorID.Valid {
			a := types.ID(actorID.String)
			e.ActorID = &a
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Subscribe registers a change callback. Callbacks run synchronously after
// the write lands and must be quick.
func (s *PGStore) Subscribe(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *PGStore) publish(ch Change) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.subs {
		fn(ch)
	}
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func statusPtr(v *PaymentStatus) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
