// README: Transaction aggregate, status definitions and the provider callback shape.
package payment

import (
	"time"

	"transferhub/internal/types"
)

type Method string

const (
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

// Terminal transactions ignore further callbacks and expiry.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRefunded || s == StatusCancelled
}

// Transaction is one payment attempt for a reservation. A reservation has
// at most one open transaction at a time but may accumulate several failed
// attempts historically; failed transactions are never reopened.
type Transaction struct {
	ID            types.ID
	ReservationID types.ID
	Amount        types.Money
	Method        Method
	Status        Status
	StatusVersion int
	ProviderRef   string
	RedirectURL   string
	Instructions  string
	Attempt       int
	LastAttemptAt time.Time
	ErrorCode     string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Callback statuses understood by Reconcile.
const (
	CallbackApproved = "approved"
	CallbackDeclined = "declined"
)

// Callback is the provider's signed notification. OrderReference is the
// transaction id we handed to the provider when opening the payment.
type Callback struct {
	OrderReference string `json:"orderReference"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	ReasonCode     string `json:"reasonCode,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Signature      string `json:"signature"`
}
