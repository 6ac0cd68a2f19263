// README: Base handler utilities (JSON helpers, validation, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"transferhub/internal/modules/payment"
	"transferhub/internal/modules/pricing"
	"transferhub/internal/modules/reservation"
	"transferhub/internal/modules/settlement"
)

// validate is shared across handlers; validator instances cache struct
// metadata and are safe for concurrent use.
var validate = validator.New()

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeReservationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reservation.ErrValidation), errors.Is(err, reservation.ErrPricing):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, reservation.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, reservation.ErrInvalidToken):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, reservation.ErrInvalidState),
		errors.Is(err, reservation.ErrConflict),
		errors.Is(err, reservation.ErrPaymentIncomplete):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writePaymentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, payment.ErrAmountMismatch):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, payment.ErrBadSignature):
		writeError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, payment.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, payment.ErrInvalidState), errors.Is(err, payment.ErrConflict),
		errors.Is(err, payment.ErrAlreadyPaid):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, payment.ErrProviderTimeout):
		writeError(c, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, payment.ErrProvider):
		writeError(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, reservation.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writePricingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pricing.ErrBadDistance),
		errors.Is(err, pricing.ErrUnknownClass),
		errors.Is(err, pricing.ErrUnknownService):
		writeError(c, http.StatusBadRequest, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeSettlementError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, settlement.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, settlement.ErrPrecondition):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
