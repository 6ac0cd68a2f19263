// README: Quote handler exposing tariff pricing before booking.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"transferhub/internal/maps"
	"transferhub/internal/modules/pricing"
	"transferhub/internal/types"
)

type PricingHandler struct {
	svc      *pricing.Service
	distance *maps.DistanceService // nil falls back to great-circle estimates
}

func NewPricingHandler(svc *pricing.Service, distance *maps.DistanceService) *PricingHandler {
	return &PricingHandler{svc: svc, distance: distance}
}

type quoteReq struct {
	DistanceKm   float64  `json:"distance_km" validate:"min=0"`
	PickupLat    float64  `json:"pickup_lat"`
	PickupLng    float64  `json:"pickup_lng"`
	DropoffLat   float64  `json:"dropoff_lat"`
	DropoffLng   float64  `json:"dropoff_lng"`
	VehicleClass string   `json:"vehicle_class" validate:"required"`
	Services     []string `json:"services"`
	PickupAt     string   `json:"pickup_at" validate:"required"`
}

// Quote prices a prospective trip. Callers either supply distance_km
// directly or pickup/dropoff coordinates; coordinates are resolved to a
// driving distance when a directions backend is configured, otherwise to
// a great-circle estimate.
func (h *PricingHandler) Quote(c *gin.Context) {
	var req quoteReq
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

	distance := req.DistanceKm
	if distance == 0 {
		distance = h.resolveDistance(c.Request.Context(), req)
	}

	total, breakdown, err := h.svc.Quote(c.Request.Context(), pricing.QuoteRequest{
		DistanceKm:   distance,
		VehicleClass: req.VehicleClass,
		Services:     req.Services,
		PickupAt:     pickupAt,
		BookedAt:     time.Now(),
	})
	if err != nil {
		writePricingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{
		"amount":      total.Amount,
		"currency":    total.Currency,
		"distance_km": distance,
		"breakdown":   breakdown,
	})
}

func (h *PricingHandler) resolveDistance(ctx context.Context, req quoteReq) float64 {
	if h.distance != nil {
		origin := fmt.Sprintf("%f,%f", req.PickupLat, req.PickupLng)
		destination := fmt.Sprintf("%f,%f", req.DropoffLat, req.DropoffLng)
		if km, _, err := h.distance.DrivingDistance(ctx, origin, destination); err == nil {
			return km
		}
	}
	return maps.HaversineKm(
		types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng})
}
