package payment

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SettlementService is the slice of the investment service the payment side
// needs. Declared here and late-bound via SetInvestmentService so webhook
// reconciliation can drive confirm/fail without an import cycle.
type SettlementService interface {
	ConfirmPaymentTx(ctx context.Context, tx *gorm.DB, intentID string) error
	FailPaymentTx(ctx context.Context, tx *gorm.DB, intentID, reason string) error
	ListReconcileRequired(ctx context.Context) ([]ReconcileItem, error)
}

// ReconcileItem is one pending transaction whose gateway outcome is unknown.
type ReconcileItem struct {
	TransactionID   string `json:"transaction_id"`
	InvestmentID    string `json:"investment_id"`
	UserID          string `json:"user_id"`
	GatewayIntentID string `json:"gateway_intent_id,omitempty"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
	FlaggedAt       string `json:"flagged_at"`
}

type Orchestrator struct {
	gateway Gateway

	mu         sync.RWMutex
	settlement SettlementService
}

type OrchestratorParams struct {
	fx.In
	Gateway Gateway
}

func NewOrchestrator(p OrchestratorParams) *Orchestrator {
	return &Orchestrator{gateway: p.Gateway}
}

func (o *Orchestrator) SetInvestmentService(s SettlementService) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settlement = s
}

func (o *Orchestrator) investmentService() SettlementService {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.settlement
}

// CreateIntentTx creates the gateway intent for a purchase transaction inside
// the caller's open creation transaction. A definite gateway rejection is
// returned as-is so the caller rolls back the whole creation. An ambiguous
// outcome tags the transaction row reconcile_required before returning the
// error: the caller commits the pending pair instead of rolling back, and an
// operator (or gateway webhook) settles it later.
func (o *Orchestrator) CreateIntentTx(ctx context.Context, tx *gorm.DB, req IntentRequest) (*Intent, error) {
	intent, err := o.gateway.CreateIntent(ctx, req)
	if err == nil {
		return intent, nil
	}

	var gerr *GatewayError
	if errors.As(err, &gerr) && gerr.Ambiguous {
		if uerr := tx.WithContext(ctx).Table("transactions").
			Where("id = ?", req.TransactionID).
			Update("reconcile_required", true).Error; uerr != nil {
			zap.L().Error("failed to flag transaction for reconciliation",
				zap.String("transaction_id", req.TransactionID), zap.Error(uerr))
			return nil, uerr
		}
		zap.L().Warn("gateway outcome unknown, transaction flagged for reconciliation",
			zap.String("transaction_id", req.TransactionID), zap.Error(err))
	}

	return nil, err
}

func (o *Orchestrator) CancelIntent(ctx context.Context, intentID string) error {
	return o.gateway.CancelIntent(ctx, intentID)
}
