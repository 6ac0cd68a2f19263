// README: Reservation handlers for booking, driver lifecycle and cancellation.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"transferhub/internal/modules/reservation"
	"transferhub/internal/types"
)

type ReservationHandler struct {
	svc   *reservation.Service
	cache *reservation.StatusCache // nil when redis is not configured
}

func NewReservationHandler(svc *reservation.Service, cache *reservation.StatusCache) *ReservationHandler {
	return &ReservationHandler{svc: svc, cache: cache}
}

type createReservationReq struct {
	CustomerID    string   `json:"customer_id" validate:"required"`
	PickupRef     string   `json:"pickup_ref" validate:"required"`
	DropoffRef    string   `json:"dropoff_ref" validate:"required"`
	PickupAt      string   `json:"pickup_at" validate:"required"`
	Passengers    int      `json:"passengers" validate:"required,min=1"`
	Bags          int      `json:"bags" validate:"min=0"`
	VehicleClass  string   `json:"vehicle_class" validate:"required"`
	DistanceKm    float64  `json:"distance_km" validate:"required,gt=0"`
	Services      []string `json:"services"`
	PaymentMethod string   `json:"payment_method" validate:"required,oneof=card bank_transfer"`
}

type reservationView struct {
	ID            types.ID      `json:"id"`
	CustomerID    types.ID      `json:"customer_id"`
	PickupRef     string        `json:"pickup_ref"`
	DropoffRef    string        `json:"dropoff_ref"`
	PickupAt      time.Time     `json:"pickup_at"`
	Passengers    int           `json:"passengers"`
	Bags          int           `json:"bags"`
	VehicleClass  string        `json:"vehicle_class"`
	DistanceKm    float64       `json:"distance_km"`
	Services      []string      `json:"services,omitempty"`
	TotalAmount   int64         `json:"total_amount"`
	Currency      string        `json:"currency"`
	PaymentMethod string        `json:"payment_method"`
	PaymentStatus string        `json:"payment_status"`
	Status        string        `json:"status"`
	DriverID      *types.ID     `json:"driver_id,omitempty"`
	CancelReason  *string       `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func viewOf(r *reservation.Reservation) reservationView {
	return reservationView{
		ID:            r.ID,
		CustomerID:    r.CustomerID,
		PickupRef:     r.PickupRef,
		DropoffRef:    r.DropoffRef,
		PickupAt:      r.PickupAt,
		Passengers:    r.Passengers,
		Bags:          r.Bags,
		VehicleClass:  r.VehicleClass,
		DistanceKm:    r.DistanceKm,
		Services:      r.Services,
		TotalAmount:   r.TotalPrice.Amount,
		Currency:      r.TotalPrice.Currency,
		PaymentMethod: string(r.PaymentMethod),
		PaymentStatus: string(r.PaymentStatus),
		Status:        string(r.Status),
		DriverID:      r.DriverID,
		CancelReason:  r.CancelReason,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (h *ReservationHandler) Create(c *gin.Context) {
	var req createReservationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	pickupAt, err := time.Parse(time.RFC3339, req.PickupAt)
	if err != nil {
		writeError(c, http.StatusBadRequest, "pickup_at must be RFC3339")
		return
	}

	r, err := h.svc.Create(c.Request.Context(), reservation.CreateCommand{
		CustomerID:    types.ID(req.CustomerID),
		PickupRef:     req.PickupRef,
		DropoffRef:    req.DropoffRef,
		PickupAt:      pickupAt,
		Passengers:    req.Passengers,
		Bags:          req.Bags,
		VehicleClass:  req.VehicleClass,
		DistanceKm:    req.DistanceKm,
		Services:      req.Services,
		PaymentMethod: reservation.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		writeReservationError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, viewOf(r))
}

func (h *ReservationHandler) Get(c *gin.Context) {
	r, err := h.svc.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeReservationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(r))
}

// Status answers from the redis cache when possible and falls back to the
// store, so the hot polling path stays off Postgres.
func (h *ReservationHandler) Status(c *gin.Context) {
	id := types.ID(c.Param("id"))
	if h.cache != nil {
		if st, err := h.cache.Status(c.Request.Context(), id); err == nil && st != "" {
			writeJSON(c, http.StatusOK, map[string]any{"reservation_id": id, "status": st})
			return
		}
	}
	r, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeReservationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"reservation_id": r.ID, "status": r.Status})
}

type assignReq struct {
	DriverID string `json:"driver_id" validate:"required"`
}

func (h *ReservationHandler) Assign(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	r, err := h.svc.AssignDriver(c.Request.Context(), reservation.AssignCommand{
		ReservationID: types.ID(c.Param("id")),
		DriverID:      types.ID(req.DriverID),
	})
	if err != nil {
		writeReservationError(c, err)
		return
	}
	// The token is returned once here for handover to the driver app; the
	// regular views never expose it.
	writeJSON(c, http.StatusOK, map[string]any{
		"reservation_id": r.ID,
		"status":         r.Status,
		"driver_id":      req.DriverID,
		"qr_token":       r.QRToken,
	})
}

func (h *ReservationHandler) Reassign(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	r, err := h.svc.Reassign(c.Request.Context(), reservation.AssignCommand{
		ReservationID: types.ID(c.Param("id")),
		DriverID:      types.ID(req.DriverID),
	})
	if err != nil {
		writeReservationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{
		"reservation_id": r.ID,
		"status":         r.Status,
		"driver_id":      req.DriverID,
		"qr_token":       r.QRToken,
	})
}

type activateReq struct {
	Token string `json:"token" validate:"required"`
}

func (h *ReservationHandler) Activate(c *gin.Context) {
	var req activateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	r, err := h.svc.Activate(c.Request.Context(), reservation.ActivateCommand{
		ReservationID: types.ID(c.Param("id")),
		Token:         req.Token,
	})
	if err != nil {
		writeReservationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"reservation_id": r.ID, "status": r.Status})
}

func (h *ReservationHandler) Complete(c *gin.Context) {
	r, err := h.svc.Complete(c.Request.Context(), reservation.CompleteCommand{
		ReservationID: types.ID(c.Param("id")),
	})
	if err != nil {
		writeReservationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"reservation_id": r.ID, "status": r.Status})
}

type cancelReq struct {
	ActorType string `json:"actor_type" validate:"omitempty,oneof=customer operator driver system"`
	Reason    string `json:"reason"`
}

func (h *ReservationHandler) Cancel(c *gin.Context) {
	var req cancelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.ActorType == "" {
		req.ActorType = "customer"
	}
	r, err := h.svc.Cancel(c.Request.Context(), reservation.CancelCommand{
		ReservationID: types.ID(c.Param("id")),
		ActorType:     req.ActorType,
		Reason:        req.Reason,
	})
	if err != nil {
		writeReservationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"reservation_id": r.ID, "status": r.Status})
}

func (h *ReservationHandler) Events(c *gin.Context) {
	events, err := h.svc.Events(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeReservationError(c, err)
		return
	}
	out := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		out = append(out, map[string]any{
			"from":       ev.FromStatus,
			"to":         ev.ToStatus,
			"actor_type": ev.ActorType,
			"actor_id":   ev.ActorID,
			"created_at": ev.CreatedAt,
		})
	}
	writeJSON(c, http.StatusOK, map[string]any{"events": out})
}
