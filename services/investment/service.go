package investment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"grovevest-settlement/pkg/config"
	"grovevest-settlement/pkg/db/option"
	"grovevest-settlement/pkg/money"
	"grovevest-settlement/pkg/repository"
	"grovevest-settlement/pkg/sequence"
	"grovevest-settlement/pkg/task"
	"grovevest-settlement/pkg/taskname"
	"grovevest-settlement/services/audit"
	"grovevest-settlement/services/catalog"
	"grovevest-settlement/services/payment"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	seq      sequence.Generator
	guard    *Guard
	catalog  *catalog.Service
	audit    *audit.Recorder
	intents  *payment.Orchestrator
	enqueuer task.Enqueuer
	currency string

	investments  repository.Repository[Investment]
	transactions repository.Repository[Transaction]
}

type ServiceParams struct {
	fx.In
	Config       *config.Config
	DB           *gorm.DB
	Node         *snowflake.Node
	Seq          sequence.Generator
	Guard        *Guard
	Catalog      *catalog.Service
	Audit        *audit.Recorder
	Orchestrator *payment.Orchestrator
	Enqueuer     task.Enqueuer `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		seq:      p.Seq,
		guard:    p.Guard,
		catalog:  p.Catalog,
		audit:    p.Audit,
		intents:  p.Orchestrator,
		enqueuer: p.Enqueuer,
		currency: p.Config.Gateway.Currency,

		investments:  repository.ProvideStore[Investment](p.DB),
		transactions: repository.ProvideStore[Transaction](p.DB),
	}
}

type CreateRequest struct {
	UserID      string      `json:"user_id" binding:"required"`
	TreeID      string      `json:"tree_id" binding:"required"`
	AmountCents money.Cents `json:"amount_cents" binding:"required"`
}

type CreateResult struct {
	Investment   *Investment  `json:"investment"`
	Transaction  *Transaction `json:"transaction"`
	ClientSecret string       `json:"client_secret,omitempty"`
}

// Create runs the full purchase flow: eligibility, capacity reservation,
// pending investment + transaction rows, gateway intent, audit entry — all in
// one transaction. A definite gateway rejection rolls everything back. An
// ambiguous gateway outcome commits the pending pair flagged
// reconcile_required and reports a timeout to the caller.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	span := trace.SpanFromContext(ctx)
	fields := []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("user_id", req.UserID),
		zap.String("tree_id", req.TreeID),
	}

	// Unlocked pre-check for fast rejection; re-run on the locked row below.
	tree, err := s.catalog.Get(ctx, req.TreeID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.AuthorizePurchase(ctx, req.UserID, tree, req.AmountCents); err != nil {
		return nil, err
	}

	invCode, err := s.seq.NextInvestmentCode(ctx)
	if err != nil {
		zap.L().With(fields...).Error("failed to allocate investment code", zap.Error(err))
		return nil, err
	}
	txnCode, err := s.seq.NextTransactionCode(ctx)
	if err != nil {
		zap.L().With(fields...).Error("failed to allocate transaction code", zap.Error(err))
		return nil, err
	}

	inv := &Investment{
		ID:          s.node.Generate().String(),
		Code:        invCode,
		UserID:      req.UserID,
		TreeID:      req.TreeID,
		AmountCents: req.AmountCents.Int64(),
		Currency:    s.currency,
		Status:      StatusPendingPayment,
	}
	txn := &Transaction{
		ID:           s.node.Generate().String(),
		Code:         txnCode,
		InvestmentID: inv.ID,
		UserID:       req.UserID,
		Type:         TxnTypePurchase,
		Status:       TxnProcessing,
		AmountCents:  req.AmountCents.Int64(),
		Currency:     s.currency,
	}

	var clientSecret string
	var ambiguous error

	err = s.db.Transaction(func(tx *gorm.DB) error {
		locked, err := s.catalog.GetTx(ctx, tx, req.TreeID)
		if err != nil {
			return err
		}
		if err := s.guard.AuthorizePurchaseTx(ctx, tx, req.UserID, locked, req.AmountCents); err != nil {
			return err
		}

		if err := s.catalog.ReserveCapacityTx(ctx, tx, locked.ID, req.AmountCents); err != nil {
			return err
		}

		if err := s.investments.WithTrx(tx).Create(ctx, inv); err != nil {
			return err
		}
		if err := s.transactions.WithTrx(tx).Create(ctx, txn); err != nil {
			return err
		}

		intent, err := s.intents.CreateIntentTx(ctx, tx, payment.IntentRequest{
			TransactionID: txn.ID,
			InvestmentID:  inv.ID,
			UserID:        req.UserID,
			AmountCents:   txn.AmountCents,
			Currency:      txn.Currency,
		})
		if err != nil {
			var gerr *payment.GatewayError
			if errors.As(err, &gerr) && gerr.Ambiguous {
				// pending pair stays committed for reconciliation
				txn.ReconcileRequired = true
				ambiguous = err
				return s.audit.RecordTx(ctx, tx, req.UserID, "investment.reconcile_required", map[string]string{
					"investment_id":  inv.ID,
					"transaction_id": txn.ID,
				})
			}
			return err
		}

		if err := s.investments.WithTrx(tx).Update(ctx, inv.ID, map[string]interface{}{
			"payment_intent_id": intent.ID,
		}); err != nil {
			return err
		}
		if err := s.transactions.WithTrx(tx).Update(ctx, txn.ID, map[string]interface{}{
			"gateway_intent_id": intent.ID,
		}); err != nil {
			return err
		}

		inv.PaymentIntentID = intent.ID
		txn.GatewayIntentID = &intent.ID
		clientSecret = intent.ClientSecret

		return s.audit.RecordTx(ctx, tx, req.UserID, "investment.created", map[string]string{
			"investment_id":     inv.ID,
			"transaction_id":    txn.ID,
			"payment_intent_id": intent.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.enqueueFraudEvaluation(inv, txn)

	if ambiguous != nil {
		zap.L().With(fields...).Warn("investment committed pending reconciliation",
			zap.String("investment_id", inv.ID), zap.Error(ambiguous))
		return nil, newGatewayAmbiguousError(inv.ID, ambiguous)
	}

	zap.L().With(fields...).Info("investment created",
		zap.String("investment_id", inv.ID),
		zap.String("transaction_id", txn.ID),
		zap.Int64("amount_cents", inv.AmountCents))

	return &CreateResult{Investment: inv, Transaction: txn, ClientSecret: clientSecret}, nil
}

func (s *Service) enqueueFraudEvaluation(inv *Investment, txn *Transaction) {
	if s.enqueuer == nil {
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"user_id":        inv.UserID,
		"tree_id":        inv.TreeID,
		"investment_id":  inv.ID,
		"transaction_id": txn.ID,
		"amount_cents":   txn.AmountCents,
	})

	if _, err := s.enqueuer.Enqueue(
		asynq.NewTask(taskname.FraudEvaluate, payload),
		asynq.Queue("low"),
		asynq.MaxRetry(5),
	); err != nil {
		// fraud evaluation is best-effort and never blocks settlement
		zap.L().Warn("failed to enqueue fraud evaluation",
			zap.String("transaction_id", txn.ID), zap.Error(err))
	}
}

// ConfirmPayment activates the investment linked to a gateway intent.
func (s *Service) ConfirmPayment(ctx context.Context, intentID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.ConfirmPaymentTx(ctx, tx, intentID)
	})
}

// ConfirmPaymentTx is the in-transaction form used by the webhook applier so
// activation commits atomically with the idempotency ledger row.
func (s *Service) ConfirmPaymentTx(ctx context.Context, tx *gorm.DB, intentID string) error {
	txn, inv, err := s.lockedPairByIntent(ctx, tx, intentID)
	if err != nil {
		return err
	}

	switch inv.Status {
	case StatusActive:
		return nil // duplicate success event
	case StatusPendingPayment:
	default:
		return errInvalidTransition(inv.ID, inv.Status, StatusActive)
	}

	now := time.Now()
	if err := s.investments.WithTrx(tx).Update(ctx, inv.ID, map[string]interface{}{
		"status":        StatusActive,
		"purchase_date": now,
	}); err != nil {
		return err
	}
	if err := s.transactions.WithTrx(tx).Update(ctx, txn.ID, map[string]interface{}{
		"status":             TxnSucceeded,
		"reconcile_required": false,
	}); err != nil {
		return err
	}

	zap.L().Info("investment activated",
		zap.String("investment_id", inv.ID),
		zap.String("payment_intent_id", intentID))

	return s.audit.RecordTx(ctx, tx, inv.UserID, "investment.activated", map[string]string{
		"investment_id":     inv.ID,
		"transaction_id":    txn.ID,
		"payment_intent_id": intentID,
	})
}

// FailPayment cancels the investment linked to a failed gateway intent.
func (s *Service) FailPayment(ctx context.Context, intentID, reason string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.FailPaymentTx(ctx, tx, intentID, reason)
	})
}

func (s *Service) FailPaymentTx(ctx context.Context, tx *gorm.DB, intentID, reason string) error {
	txn, inv, err := s.lockedPairByIntent(ctx, tx, intentID)
	if err != nil {
		return err
	}

	switch inv.Status {
	case StatusCancelled:
		return nil // duplicate failure event
	case StatusPendingPayment:
	default:
		return errInvalidTransition(inv.ID, inv.Status, StatusCancelled)
	}

	if err := s.catalog.ReleaseCapacityTx(ctx, tx, inv.TreeID, money.Cents(inv.AmountCents)); err != nil {
		return err
	}

	now := time.Now()
	if err := s.investments.WithTrx(tx).Update(ctx, inv.ID, map[string]interface{}{
		"status":              StatusCancelled,
		"cancelled_at":        now,
		"cancellation_reason": ReasonPaymentFailed,
	}); err != nil {
		return err
	}
	if err := s.transactions.WithTrx(tx).Update(ctx, txn.ID, map[string]interface{}{
		"status":             TxnFailed,
		"failure_reason":     reason,
		"reconcile_required": false,
	}); err != nil {
		return err
	}

	zap.L().Info("investment cancelled on payment failure",
		zap.String("investment_id", inv.ID),
		zap.String("payment_intent_id", intentID),
		zap.String("reason", reason))

	return s.audit.RecordTx(ctx, tx, inv.UserID, "investment.payment_failed", map[string]string{
		"investment_id":  inv.ID,
		"transaction_id": txn.ID,
		"reason":         reason,
	})
}

// Cancel is the investor-initiated cancellation. Only pending investments can
// be cancelled; the gateway intent is voided best-effort after commit.
func (s *Service) Cancel(ctx context.Context, investmentID, actorID string) (*Investment, error) {
	var inv *Investment

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		inv, err = s.investments.WithTrx(tx).FindOne(ctx, &Investment{ID: investmentID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if inv == nil {
			return errInvestmentNotFound(investmentID)
		}
		if inv.Status != StatusPendingPayment {
			return errNotCancellable(inv.ID, inv.Status)
		}

		if err := s.catalog.ReleaseCapacityTx(ctx, tx, inv.TreeID, money.Cents(inv.AmountCents)); err != nil {
			return err
		}

		now := time.Now()
		if err := s.investments.WithTrx(tx).Update(ctx, inv.ID, map[string]interface{}{
			"status":              StatusCancelled,
			"cancelled_at":        now,
			"cancellation_reason": ReasonUserCancelled,
		}); err != nil {
			return err
		}

		txn, err := s.transactions.WithTrx(tx).FindOne(ctx, &Transaction{InvestmentID: inv.ID, Status: TxnProcessing})
		if err != nil {
			return err
		}
		if txn != nil {
			if err := s.transactions.WithTrx(tx).Update(ctx, txn.ID, map[string]interface{}{
				"status":             TxnFailed,
				"failure_reason":     "cancelled",
				"reconcile_required": false,
			}); err != nil {
				return err
			}
		}

		inv.Status = StatusCancelled
		inv.CancelledAt = &now
		inv.CancellationReason = ReasonUserCancelled

		return s.audit.RecordTx(ctx, tx, actorID, "investment.cancelled", map[string]string{
			"investment_id": inv.ID,
			"actor_id":      actorID,
		})
	})
	if err != nil {
		return nil, err
	}

	if inv.PaymentIntentID != "" {
		if err := s.intents.CancelIntent(ctx, inv.PaymentIntentID); err != nil {
			zap.L().Warn("failed to void gateway intent after cancellation",
				zap.String("investment_id", inv.ID),
				zap.String("payment_intent_id", inv.PaymentIntentID),
				zap.Error(err))
		}
	}

	return inv, nil
}

// MarkMatured records the external maturity lifecycle event.
func (s *Service) MarkMatured(ctx context.Context, investmentID string) (*Investment, error) {
	return s.transition(ctx, investmentID, StatusMatured, "investment.matured")
}

// MarkSold records the external sale lifecycle event.
func (s *Service) MarkSold(ctx context.Context, investmentID string) (*Investment, error) {
	return s.transition(ctx, investmentID, StatusSold, "investment.sold")
}

func (s *Service) transition(ctx context.Context, investmentID, to, eventType string) (*Investment, error) {
	var inv *Investment

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		inv, err = s.investments.WithTrx(tx).FindOne(ctx, &Investment{ID: investmentID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if inv == nil {
			return errInvestmentNotFound(investmentID)
		}
		if inv.Status == to {
			return nil
		}
		if inv.Status != StatusActive {
			return errInvalidTransition(inv.ID, inv.Status, to)
		}

		if err := s.investments.WithTrx(tx).Update(ctx, inv.ID, map[string]interface{}{
			"status": to,
		}); err != nil {
			return err
		}
		inv.Status = to

		return s.audit.RecordTx(ctx, tx, inv.UserID, eventType, map[string]string{
			"investment_id": inv.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	return inv, nil
}

func (s *Service) Get(ctx context.Context, investmentID string) (*Investment, error) {
	inv, err := s.investments.FindOne(ctx, &Investment{ID: investmentID})
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, errInvestmentNotFound(investmentID)
	}
	return inv, nil
}

type ListRequest struct {
	UserID string
	Status string
	Limit  int
	Offset int
}

func (s *Service) List(ctx context.Context, req ListRequest) ([]*Investment, error) {
	return s.investments.Find(ctx, &Investment{UserID: req.UserID, Status: req.Status},
		option.WithSortBy(option.QuerySortBy{OrderBy: "DESC"}),
		option.WithLimit(req.Limit),
		option.WithOffset(req.Offset),
	)
}

// ListReconcileRequired exposes the flagged transactions to the payment
// reconciler.
func (s *Service) ListReconcileRequired(ctx context.Context) ([]payment.ReconcileItem, error) {
	txns, err := s.transactions.Find(ctx, &Transaction{ReconcileRequired: true})
	if err != nil {
		return nil, err
	}

	items := make([]payment.ReconcileItem, 0, len(txns))
	for _, txn := range txns {
		item := payment.ReconcileItem{
			TransactionID: txn.ID,
			InvestmentID:  txn.InvestmentID,
			UserID:        txn.UserID,
			AmountCents:   txn.AmountCents,
			Currency:      txn.Currency,
			FlaggedAt:     txn.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if txn.GatewayIntentID != nil {
			item.GatewayIntentID = *txn.GatewayIntentID
		}
		items = append(items, item)
	}

	return items, nil
}

func (s *Service) lockedPairByIntent(ctx context.Context, tx *gorm.DB, intentID string) (*Transaction, *Investment, error) {
	txn, err := s.transactions.WithTrx(tx).FindOne(ctx, &Transaction{GatewayIntentID: &intentID}, option.WithLockingUpdate())
	if err != nil {
		return nil, nil, err
	}
	if txn == nil {
		return nil, nil, errInvestmentNotFound(intentID)
	}

	inv, err := s.investments.WithTrx(tx).FindOne(ctx, &Investment{ID: txn.InvestmentID}, option.WithLockingUpdate())
	if err != nil {
		return nil, nil, err
	}
	if inv == nil {
		return nil, nil, errInvestmentNotFound(txn.InvestmentID)
	}

	return txn, inv, nil
}
