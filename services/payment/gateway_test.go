package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"grovevest-settlement/pkg/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestGateway(t *testing.T, handler http.HandlerFunc, timeout time.Duration) Gateway {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Gateway.BaseURL = srv.URL
	cfg.Gateway.APIKey = "sk_test"
	cfg.Gateway.Timeout = timeout

	return NewHTTPGateway(GatewayParams{Config: cfg})
}

func TestCreateIntentSuccess(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payment_intents", r.URL.Path)
		require.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.Equal(t, "txn-1", r.Header.Get("Idempotency-Key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_1","client_secret":"pi_1_secret","status":"requires_payment_method"}`))
	}, 5*time.Second)

	intent, err := gw.CreateIntent(context.Background(), IntentRequest{
		TransactionID: "txn-1",
		InvestmentID:  "inv-1",
		UserID:        "user-1",
		AmountCents:   5000,
		Currency:      "usd",
	})
	require.NoError(t, err)
	require.Equal(t, "pi_1", intent.ID)
	require.Equal(t, "pi_1_secret", intent.ClientSecret)
}

func TestCreateIntentDefiniteRejection(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}, 5*time.Second)

	_, err := gw.CreateIntent(context.Background(), IntentRequest{TransactionID: "txn-1"})

	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	require.False(t, gerr.Ambiguous, "a 4xx is a definite rejection")
	require.Equal(t, http.StatusPaymentRequired, gerr.StatusCode)
}

func TestCreateIntentServerErrorIsAmbiguous(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, 5*time.Second)

	_, err := gw.CreateIntent(context.Background(), IntentRequest{TransactionID: "txn-1"})

	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	require.True(t, gerr.Ambiguous, "a 5xx leaves the outcome unknown")
}

func TestCreateIntentTimeoutIsAmbiguous(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}, 20*time.Millisecond)

	_, err := gw.CreateIntent(context.Background(), IntentRequest{TransactionID: "txn-1"})

	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	require.True(t, gerr.Ambiguous, "a timeout leaves the outcome unknown")
}

func TestCancelIntent(t *testing.T) {
	var path string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}, 5*time.Second)

	require.NoError(t, gw.CancelIntent(context.Background(), "pi_1"))
	require.Equal(t, "/v1/payment_intents/pi_1/cancel", path)
}

func TestReconcilerWithoutBindingIsNoop(t *testing.T) {
	orch := NewOrchestrator(OrchestratorParams{Gateway: nil})
	rec := NewReconciler(ReconcilerParams{Orchestrator: orch})

	items, err := rec.Run(context.Background())
	require.NoError(t, err)
	require.Nil(t, items)
	require.False(t, errors.Is(err, context.Canceled))
}
