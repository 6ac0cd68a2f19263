// README: Asynq task for expiring abandoned pending transactions.
package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"transferhub/internal/types"
)

const TaskTypePaymentExpire = "payment:expire"

type expirePayload struct {
	TransactionID types.ID `json:"transaction_id"`
}

func NewExpireTask(id types.ID) (*asynq.Task, error) {
	payload, err := json.Marshal(expirePayload{TransactionID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePaymentExpire, payload), nil
}

// ExpiryHandler processes scheduled expiry tasks. Expire itself is a no-op
// for anything not still pending, so late or duplicate deliveries are safe.
type ExpiryHandler struct {
	svc *Service
	log *zap.Logger
}

func NewExpiryHandler(svc *Service, log *zap.Logger) *ExpiryHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExpiryHandler{svc: svc, log: log}
}

func (h *ExpiryHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p expirePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode expiry payload: %w", err)
	}
	if err := h.svc.Expire(ctx, p.TransactionID); err != nil {
		h.log.Warn("expire transaction",
			zap.String("transaction_id", string(p.TransactionID)),
			zap.Error(err))
		return err
	}
	return nil
}
