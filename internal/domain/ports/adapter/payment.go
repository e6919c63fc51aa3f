package adapter

import "context"

// CollectRequest asks the provider to pull money from a subscriber's
// mobile-money wallet.
type CollectRequest struct {
	Amount      int64
	PhoneNumber string // canonical 12-digit form
	Currency    string
	Reference   string // our transaction id, echoed back in the webhook
	Description string
}

type CollectResult struct {
	ProviderTxID string
	Status       string
	Message      string
}

type StatusResult struct {
	Status      string // provider vocabulary: successful/completed/failed/cancelled/pending
	Amount      int64
	PhoneNumber string
}

// PaymentGateway is the hex port for the mobile-money provider.
type PaymentGateway interface {
	Name() string
	Collect(ctx context.Context, req CollectRequest) (*CollectResult, error)
	Status(ctx context.Context, providerTxID string) (*StatusResult, error)
}
