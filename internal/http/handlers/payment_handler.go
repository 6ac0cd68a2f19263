// README: Payment handlers for opening transactions, provider callbacks and refunds.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"transferhub/internal/modules/payment"
	"transferhub/internal/types"
)

type PaymentHandler struct {
	svc *payment.Service
}

func NewPaymentHandler(svc *payment.Service) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

type openPaymentReq struct {
	ReservationID string `json:"reservation_id" validate:"required"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Currency      string `json:"currency" validate:"required,len=3"`
	Method        string `json:"method" validate:"required,oneof=card bank_transfer"`
}

type transactionView struct {
	ID            types.ID  `json:"id"`
	ReservationID types.ID  `json:"reservation_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Method        string    `json:"method"`
	Status        string    `json:"status"`
	RedirectURL   string    `json:"redirect_url,omitempty"`
	Instructions  string    `json:"instructions,omitempty"`
	Attempt       int       `json:"attempt"`
	ErrorCode     string    `json:"error_code,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func txViewOf(tx *payment.Transaction) transactionView {
	return transactionView{
		ID:            tx.ID,
		ReservationID: tx.ReservationID,
		Amount:        tx.Amount.Amount,
		Currency:      tx.Amount.Currency,
		Method:        string(tx.Method),
		Status:        string(tx.Status),
		RedirectURL:   tx.RedirectURL,
		Instructions:  tx.Instructions,
		Attempt:       tx.Attempt,
		ErrorCode:     tx.ErrorCode,
		ErrorMessage:  tx.ErrorMessage,
		CreatedAt:     tx.CreatedAt,
	}
}

func (h *PaymentHandler) Open(c *gin.Context) {
	var req openPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	tx, err := h.svc.Open(c.Request.Context(), payment.OpenCommand{
		ReservationID: types.ID(req.ReservationID),
		Amount:        types.Money{Amount: req.Amount, Currency: req.Currency},
		Method:        payment.Method(req.Method),
	})
	if err != nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, txViewOf(tx))
}

func (h *PaymentHandler) Get(c *gin.Context) {
	tx, err := h.svc.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, txViewOf(tx))
}

// Callback receives the provider's signed notification. The signature is
// the only authentication on this route; a bad one answers 401 and nothing
// else happens.
func (h *PaymentHandler) Callback(c *gin.Context) {
	var cb payment.Callback
	if err := c.ShouldBindJSON(&cb); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	tx, err := h.svc.Reconcile(c.Request.Context(), cb)
	if err != nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"transaction_id": tx.ID, "status": tx.Status})
}

type refundReq struct {
	Amount int64  `json:"amount" validate:"min=0"`
	Reason string `json:"reason"`
}

func (h *PaymentHandler) Refund(c *gin.Context) {
	var req refundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	tx, err := h.svc.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writePaymentError(c, err)
		return
	}
	amount := types.Money{Amount: req.Amount, Currency: tx.Amount.Currency}
	tx, err = h.svc.Refund(c.Request.Context(), payment.RefundCommand{
		TransactionID: tx.ID,
		Amount:        amount,
		Reason:        req.Reason,
	})
	if err != nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, txViewOf(tx))
}

// ConfirmTransfer is the operator endpoint acknowledging an arrived bank
// transfer.
func (h *PaymentHandler) ConfirmTransfer(c *gin.Context) {
	tx, err := h.svc.ConfirmTransfer(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writePaymentError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, txViewOf(tx))
}
