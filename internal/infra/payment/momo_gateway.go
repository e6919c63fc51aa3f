package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"edupay-service/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.PaymentGateway = (*MomoGateway)(nil)

// MomoGateway talks to the mobile-money collection API over direct HTTP.
type MomoGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewMomoGateway(baseURL, apiKey string) *MomoGateway {
	return &MomoGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *MomoGateway) Name() string { return "momo" }

type collectResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

type statusResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Phone         string `json:"phone"`
	Message       string `json:"message"`
}

// Collect asks the provider to pull money from the subscriber's wallet. The
// transfer completes asynchronously; the provider pushes the final status to
// our webhook.
func (g *MomoGateway) Collect(ctx context.Context, req adapter.CollectRequest) (*adapter.CollectResult, error) {
	payload := map[string]interface{}{
		"amount":             req.Amount,
		"phone":              req.PhoneNumber,
		"currency":           req.Currency,
		"external_reference": req.Reference,
		"description":        req.Description,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request data: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/collect", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	g.setHeaders(httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var out collectResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider error: http %d, message: %s", resp.StatusCode, out.Message)
	}
	if out.TransactionID == "" {
		return nil, fmt.Errorf("provider returned no transaction id, message: %s", out.Message)
	}
	return &adapter.CollectResult{
		ProviderTxID: out.TransactionID,
		Status:       out.Status,
		Message:      out.Message,
	}, nil
}

// Status queries the provider for the current state of a transaction.
func (g *MomoGateway) Status(ctx context.Context, providerTxID string) (*adapter.StatusResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", g.baseURL+"/transaction/"+providerTxID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	g.setHeaders(httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var out statusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider error: http %d, message: %s", resp.StatusCode, out.Message)
	}
	return &adapter.StatusResult{
		Status:      out.Status,
		Amount:      out.Amount,
		PhoneNumber: out.Phone,
	}, nil
}

func (g *MomoGateway) setHeaders(r *http.Request) {
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "application/json")
	r.Header.Set("Authorization", "Bearer "+g.apiKey)
}
