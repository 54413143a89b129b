package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"grovevest-settlement/pkg/config"

	"go.uber.org/fx"
)

// Intent is the gateway-side payment intent backing one purchase transaction.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

type IntentRequest struct {
	TransactionID string
	InvestmentID  string
	UserID        string
	AmountCents   int64
	Currency      string
}

// GatewayError distinguishes definite rejections from ambiguous outcomes.
// Ambiguous means the request may have reached the gateway (timeout,
// transport failure after send, 5xx): the caller must not assume the intent
// does not exist.
type GatewayError struct {
	Ambiguous  bool
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("payment gateway: %s", e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
}

type httpGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type GatewayParams struct {
	fx.In
	Config *config.Config
}

func NewHTTPGateway(p GatewayParams) Gateway {
	return &httpGateway{
		baseURL: p.Config.Gateway.BaseURL,
		apiKey:  p.Config.Gateway.APIKey,
		client:  &http.Client{Timeout: p.Config.Gateway.Timeout},
	}
}

type intentBody struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

func (g *httpGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	body, err := json.Marshal(intentBody{
		Amount:   req.AmountCents,
		Currency: req.Currency,
		Metadata: map[string]string{
			"transaction_id": req.TransactionID,
			"investment_id":  req.InvestmentID,
			"user_id":        req.UserID,
		},
	})
	if err != nil {
		return nil, &GatewayError{Message: "failed to encode intent request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return nil, &GatewayError{Message: "failed to build intent request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.TransactionID)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// request may have been delivered; outcome unknown
		return nil, &GatewayError{Ambiguous: true, Message: "intent request did not complete", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var intent Intent
		if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
			return nil, &GatewayError{Ambiguous: true, StatusCode: resp.StatusCode, Message: "unreadable intent response", Err: err}
		}
		return &intent, nil
	case resp.StatusCode >= 500:
		return nil, &GatewayError{Ambiguous: true, StatusCode: resp.StatusCode, Message: "gateway unavailable"}
	default:
		return nil, &GatewayError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("intent rejected (%d)", resp.StatusCode)}
	}
}

func (g *httpGateway) CancelIntent(ctx context.Context, intentID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/payment_intents/"+intentID+"/cancel", nil)
	if err != nil {
		return &GatewayError{Message: "failed to build cancel request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return &GatewayError{Ambiguous: true, Message: "cancel request did not complete", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &GatewayError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("cancel rejected (%d)", resp.StatusCode)}
}
