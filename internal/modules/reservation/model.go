// README: Reservation aggregate and status definitions.
package reservation

import (
	"time"

	"transferhub/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusAssigned  Status = "assigned"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

type Reservation struct {
	ID            types.ID
	CustomerID    types.ID
	PickupRef     string
	DropoffRef    string
	PickupAt      time.Time
	Passengers    int
	Bags          int
	VehicleClass  string
	DistanceKm    float64
	Services      []string
	TotalPrice    types.Money
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	Status        Status
	StatusVersion int
	DriverID      *types.ID
	// QRToken is the single-use pickup credential. Minted on assignment,
	// consumed on activation, re-minted only when the trip is reassigned.
	QRToken      string
	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Event is one row of the immutable state audit trail.
type Event struct {
	ID            int64
	ReservationID types.ID
	FromStatus    Status
	ToStatus      Status
	ActorType     string
	ActorID       *types.ID
	CreatedAt     time.Time
}

// AllowedTransitions represents the reservation state flow as code. The
// assigned self-loop covers reassignment to a different driver.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusAssigned, StatusCancelled},
	StatusAssigned:  {StatusAssigned, StatusStarted, StatusCancelled},
	StatusStarted:   {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status has no outgoing transitions.
func Terminal(s Status) bool {
	return len(AllowedTransitions[s]) == 0
}
