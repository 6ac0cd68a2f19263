// README: Payment provider contract and the sandbox (immediate-success) provider.
package payment

import (
	"context"

	"transferhub/internal/types"
)

// Intent is what a provider returns when a payment is opened.
type Intent struct {
	ProviderRef string
	RedirectURL string
	// Approved short-circuits the async callback flow; only the sandbox
	// provider sets it.
	Approved bool
}

// Provider abstracts the card gateway. Demo/test mode is a provider
// implementation, not a branch inside the orchestrator.
type Provider interface {
	Name() string
	CreatePayment(ctx context.Context, tx *Transaction) (Intent, error)
	Refund(ctx context.Context, tx *Transaction, amount types.Money, reason string) error
}

// Sandbox approves every payment immediately. Used for demo environments
// and tests.
type Sandbox struct{}

func (Sandbox) Name() string { return "sandbox" }

func (Sandbox) CreatePayment(_ context.Context, tx *Transaction) (Intent, error) {
	return Intent{ProviderRef: "sandbox-" + string(tx.ID), Approved: true}, nil
}

func (Sandbox) Refund(context.Context, *Transaction, types.Money, string) error {
	return nil
}
