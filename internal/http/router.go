// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"transferhub/internal/http/handlers"
	"transferhub/internal/http/middleware"
	"transferhub/internal/maps"
	"transferhub/internal/modules/payment"
	"transferhub/internal/modules/pricing"
	"transferhub/internal/modules/reservation"
	"transferhub/internal/modules/settlement"
)

type RouterDeps struct {
	Reservation *reservation.Service
	StatusCache *reservation.StatusCache // nil when redis is not configured
	Payment     *payment.Service
	Pricing     *pricing.Service
	Distance    *maps.DistanceService // nil when no maps API key is configured
	Settlement  *settlement.Service
	Log         *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	reservationHandler := handlers.NewReservationHandler(deps.Reservation, deps.StatusCache)
	r.POST("/api/reservations", reservationHandler.Create)
	r.GET("/api/reservations/:id", reservationHandler.Get)
	r.GET("/api/reservations/:id/status", reservationHandler.Status)
	r.GET("/api/reservations/:id/events", reservationHandler.Events)
	r.POST("/api/reservations/:id/assign", reservationHandler.Assign)
	r.POST("/api/reservations/:id/reassign", reservationHandler.Reassign)
	r.POST("/api/reservations/:id/activate", reservationHandler.Activate)
	r.POST("/api/reservations/:id/complete", reservationHandler.Complete)
	r.POST("/api/reservations/:id/cancel", reservationHandler.Cancel)

	paymentHandler := handlers.NewPaymentHandler(deps.Payment)
	r.POST("/api/payments", paymentHandler.Open)
	r.GET("/api/payments/:id", paymentHandler.Get)
	r.POST("/api/payments/callback", paymentHandler.Callback)
	r.POST("/api/payments/:id/refund", paymentHandler.Refund)
	r.POST("/api/payments/:id/confirm-transfer", paymentHandler.ConfirmTransfer)

	pricingHandler := handlers.NewPricingHandler(deps.Pricing, deps.Distance)
	r.POST("/api/quotes", pricingHandler.Quote)

	settlementHandler := handlers.NewSettlementHandler(deps.Settlement)
	r.GET("/api/reservations/:id/settlement", settlementHandler.ByReservation)
	r.POST("/api/settlements/:id/payout", settlementHandler.MarkPaid)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
