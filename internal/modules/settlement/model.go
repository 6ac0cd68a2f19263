// README: Settlement aggregate; the immutable record of a completed trip's revenue split.
package settlement

import (
	"time"

	"transferhub/internal/types"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
)

// Settlement is written once when a reservation completes and never changes
// afterwards, except for the pending->paid flip performed by the payout
// process.
type Settlement struct {
	ID            types.ID
	ReservationID types.ID
	DriverID      types.ID
	Total         types.Money
	OperatorShare types.Money
	DriverShare   types.Money
	Rate          float64
	Status        Status
	CreatedAt     time.Time
	PaidAt        *time.Time
}
