package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"grovevest-settlement/pkg/errutil"
	"grovevest-settlement/pkg/repository"
	"grovevest-settlement/services/audit"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Settlement is the slice of the investment service the webhook applier
// drives. Both calls run inside the applier's transaction.
type Settlement interface {
	ConfirmPaymentTx(ctx context.Context, tx *gorm.DB, intentID string) error
	FailPaymentTx(ctx context.Context, tx *gorm.DB, intentID, reason string) error
}

type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	settlement Settlement
	audit      *audit.Recorder

	events repository.Repository[Event]
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Node       *snowflake.Node
	Settlement Settlement
	Audit      *audit.Recorder
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		node:       p.Node,
		settlement: p.Settlement,
		audit:      p.Audit,

		events: repository.ProvideStore[Event](p.DB),
	}
}

// Apply processes one gateway event. The ledger insert and the state change
// it triggers share a transaction, so the event is either fully applied and
// deduped, or neither. Business rejections (unknown intent, state guard) are
// acknowledged with the ledger row kept; infrastructure errors roll the whole
// thing back so asynq redelivers.
func (s *Service) Apply(ctx context.Context, env Envelope) error {
	fields := []zap.Field{
		zap.String("event_id", env.ID),
		zap.String("event_type", env.Type),
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		event := &Event{
			ID:        s.node.Generate().String(),
			EventID:   env.ID,
			EventType: env.Type,
			Payload:   []byte(env.Data),
		}

		if err := s.events.WithTrx(tx).Create(ctx, event); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				zap.L().With(fields...).Info("webhook event already processed, acknowledging")
				return errAlreadyProcessed
			}
			return err
		}

		if env.Type != EventIntentSucceeded && env.Type != EventIntentFailed {
			zap.L().With(fields...).Info("unrecognized webhook event type, ignoring")
			return nil
		}

		var data intentData
		if err := json.Unmarshal(env.Data, &data); err != nil || data.IntentID == "" {
			zap.L().With(fields...).Warn("webhook data has no usable intent id, acknowledging")
			return nil
		}

		var derr error
		switch env.Type {
		case EventIntentSucceeded:
			derr = s.settlement.ConfirmPaymentTx(ctx, tx, data.IntentID)
		case EventIntentFailed:
			reason := data.Reason
			if reason == "" {
				reason = "payment_failed"
			}
			derr = s.settlement.FailPaymentTx(ctx, tx, data.IntentID, reason)
		}

		if derr != nil {
			var be errutil.BaseError
			if errors.As(derr, &be) {
				// state machine said no; the ledger row still commits so the
				// event is not redelivered forever
				zap.L().With(fields...).Warn("webhook rejected by settlement state, acknowledging",
					zap.String("intent_id", data.IntentID),
					zap.Error(derr))
				return nil
			}
			return derr
		}

		now := time.Now()
		if err := s.events.WithTrx(tx).Update(ctx, event.ID, map[string]interface{}{
			"processed_at": now,
		}); err != nil {
			return err
		}

		return s.audit.RecordTx(ctx, tx, "", "webhook.applied", map[string]string{
			"event_id":  env.ID,
			"type":      env.Type,
			"intent_id": data.IntentID,
		})
	})
}

// errAlreadyProcessed aborts the transaction (nothing to keep) while letting
// the caller acknowledge the delivery.
var errAlreadyProcessed = errors.New("webhook event already processed")

// IsAlreadyProcessed reports whether err marks a duplicate delivery.
func IsAlreadyProcessed(err error) bool {
	return errors.Is(err, errAlreadyProcessed)
}
