package payment

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Reconciler surfaces transactions stuck in an unknown gateway state. It
// never resolves them on its own: resolution comes from a later gateway
// webhook or from an operator acting on the listed items.
type Reconciler struct {
	orchestrator *Orchestrator
}

type ReconcilerParams struct {
	fx.In
	Orchestrator *Orchestrator
}

func NewReconciler(p ReconcilerParams) *Reconciler {
	return &Reconciler{orchestrator: p.Orchestrator}
}

func (r *Reconciler) Run(ctx context.Context) ([]ReconcileItem, error) {
	settlement := r.orchestrator.investmentService()
	if settlement == nil {
		zap.L().Warn("reconciler has no settlement service bound")
		return nil, nil
	}

	items, err := settlement.ListReconcileRequired(ctx)
	if err != nil {
		zap.L().Error("failed to list transactions pending reconciliation", zap.Error(err))
		return nil, err
	}

	for _, item := range items {
		zap.L().Warn("transaction awaiting manual reconciliation",
			zap.String("transaction_id", item.TransactionID),
			zap.String("investment_id", item.InvestmentID),
			zap.String("gateway_intent_id", item.GatewayIntentID),
			zap.Int64("amount_cents", item.AmountCents))
	}

	return items, nil
}
