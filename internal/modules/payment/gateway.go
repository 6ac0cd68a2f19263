// README: HTTP card gateway provider with circuit breaker and bounded timeouts.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	circuit "github.com/rubyist/circuitbreaker"
	"go.uber.org/zap"

	"transferhub/internal/types"
)

// Gateway talks to the external card processor. Every call carries a
// bounded timeout; a timeout surfaces ErrProviderTimeout and leaves the
// transaction pending for later reconciliation.
type Gateway struct {
	baseURL    string
	merchantID string
	secret     string
	salt       string
	timeout    time.Duration
	client     *circuit.HTTPClient
	log        *zap.Logger
}

func NewGateway(baseURL, merchantID, secret, salt string, timeout time.Duration, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		baseURL:    baseURL,
		merchantID: merchantID,
		secret:     secret,
		salt:       salt,
		timeout:    timeout,
		client:     circuit.NewHTTPClient(timeout, 10, nil),
		log:        log,
	}
}

func (g *Gateway) Name() string { return "gateway" }

type createPaymentReq struct {
	MerchantAccount   string `json:"merchantAccount"`
	OrderReference    string `json:"orderReference"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	MerchantSignature string `json:"merchantSignature"`
}

type createPaymentResp struct {
	PaymentRef  string `json:"paymentRef"`
	RedirectURL string `json:"redirectUrl"`
}

func (g *Gateway) CreatePayment(ctx context.Context, tx *Transaction) (Intent, error) {
	body := createPaymentReq{
		MerchantAccount:   g.merchantID,
		OrderReference:    string(tx.ID),
		Amount:            tx.Amount.Amount,
		Currency:          tx.Amount.Currency,
		MerchantSignature: Sign(g.secret, g.salt, string(tx.ID), "create", tx.Amount.Amount),
	}
	var resp createPaymentResp
	if err := g.post(ctx, "/api/payments", body, &resp); err != nil {
		return Intent{}, err
	}
	if resp.RedirectURL == "" {
		return Intent{}, fmt.Errorf("%w: gateway returned no redirect url", ErrProvider)
	}
	return Intent{ProviderRef: resp.PaymentRef, RedirectURL: resp.RedirectURL}, nil
}

type refundReq struct {
	MerchantAccount   string `json:"merchantAccount"`
	OrderReference    string `json:"orderReference"`
	Amount            int64  `json:"amount"`
	Reason            string `json:"reason"`
	MerchantSignature string `json:"merchantSignature"`
}

func (g *Gateway) Refund(ctx context.Context, tx *Transaction, amount types.Money, reason string) error {
	body := refundReq{
		MerchantAccount:   g.merchantID,
		OrderReference:    string(tx.ID),
		Amount:            amount.Amount,
		Reason:            reason,
		MerchantSignature: Sign(g.secret, g.salt, string(tx.ID), "refund", amount.Amount),
	}
	return g.post(ctx, "/api/refunds", body, &struct{}{})
}

func (g *Gateway) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return g.classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: gateway responded %d", ErrProvider, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *Gateway) classify(err error) error {
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
	case errors.As(err, &nerr) && nerr.Timeout():
		return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
	case errors.Is(err, circuit.ErrBreakerOpen):
		g.log.Warn("gateway circuit open")
		return fmt.Errorf("%w: circuit open", ErrProvider)
	default:
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
}
