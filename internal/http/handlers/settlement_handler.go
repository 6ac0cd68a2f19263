// README: Settlement handlers for payout inspection and driver payout marking.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"transferhub/internal/modules/settlement"
	"transferhub/internal/types"
)

type SettlementHandler struct {
	svc *settlement.Service
}

func NewSettlementHandler(svc *settlement.Service) *SettlementHandler {
	return &SettlementHandler{svc: svc}
}

type settlementView struct {
	ID            types.ID   `json:"id"`
	ReservationID types.ID   `json:"reservation_id"`
	DriverID      types.ID   `json:"driver_id"`
	Total         int64      `json:"total"`
	Currency      string     `json:"currency"`
	OperatorShare int64      `json:"operator_share"`
	DriverShare   int64      `json:"driver_share"`
	Rate          float64    `json:"rate"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

func settlementViewOf(s *settlement.Settlement) settlementView {
	return settlementView{
		ID:            s.ID,
		ReservationID: s.ReservationID,
		DriverID:      s.DriverID,
		Total:         s.Total.Amount,
		Currency:      s.Total.Currency,
		OperatorShare: s.OperatorShare.Amount,
		DriverShare:   s.DriverShare.Amount,
		Rate:          s.Rate,
		Status:        string(s.Status),
		CreatedAt:     s.CreatedAt,
		PaidAt:        s.PaidAt,
	}
}

// ByReservation returns the settlement produced when a reservation
// completed; 404 until then.
func (h *SettlementHandler) ByReservation(c *gin.Context) {
	s, err := h.svc.GetByReservation(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeSettlementError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, settlementViewOf(s))
}

// MarkPaid records that the driver's share was paid out.
func (h *SettlementHandler) MarkPaid(c *gin.Context) {
	s, err := h.svc.MarkPaid(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeSettlementError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, settlementViewOf(s))
}
