package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grovevest-settlement/pkg/errutil"
	"grovevest-settlement/services/audit"
	"grovevest-settlement/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type settlementMock struct {
	confirmed []string
	failed    []string
	confirmFn func(ctx context.Context, tx *gorm.DB, intentID string) error
	failFn    func(ctx context.Context, tx *gorm.DB, intentID, reason string) error
}

func (m *settlementMock) ConfirmPaymentTx(ctx context.Context, tx *gorm.DB, intentID string) error {
	if m.confirmFn != nil {
		return m.confirmFn(ctx, tx, intentID)
	}
	m.confirmed = append(m.confirmed, intentID)
	return nil
}

func (m *settlementMock) FailPaymentTx(ctx context.Context, tx *gorm.DB, intentID, reason string) error {
	if m.failFn != nil {
		return m.failFn(ctx, tx, intentID, reason)
	}
	m.failed = append(m.failed, intentID+":"+reason)
	return nil
}

func newTestService(t *testing.T) (*Service, *settlementMock, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &Event{}, &audit.Entry{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	settlement := &settlementMock{}
	svc := NewService(ServiceParams{
		DB:         db,
		Node:       node,
		Settlement: settlement,
		Audit:      audit.NewRecorder(audit.RecorderParams{DB: db, Node: node}),
	})

	return svc, settlement, db
}

func envelope(id, eventType, intentID, reason string) Envelope {
	data, _ := json.Marshal(map[string]string{"intent_id": intentID, "reason": reason})
	return Envelope{ID: id, Type: eventType, Data: data}
}

func TestApplySucceededEventConfirms(t *testing.T) {
	svc, settlement, db := newTestService(t)

	err := svc.Apply(context.Background(), envelope("evt_1", EventIntentSucceeded, "pi_1", ""))
	require.NoError(t, err)
	require.Equal(t, []string{"pi_1"}, settlement.confirmed)

	var event Event
	require.NoError(t, db.First(&event, "event_id = ?", "evt_1").Error)
	require.NotNil(t, event.ProcessedAt)

	var auditRows int64
	require.NoError(t, db.Model(&audit.Entry{}).Where("event_type = ?", "webhook.applied").Count(&auditRows).Error)
	require.Equal(t, int64(1), auditRows)
}

func TestApplyFailedEventPassesReason(t *testing.T) {
	svc, settlement, _ := newTestService(t)

	err := svc.Apply(context.Background(), envelope("evt_1", EventIntentFailed, "pi_1", "card_declined"))
	require.NoError(t, err)
	require.Equal(t, []string{"pi_1:card_declined"}, settlement.failed)
}

func TestApplyDuplicateEventAcked(t *testing.T) {
	svc, settlement, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Apply(ctx, envelope("evt_1", EventIntentSucceeded, "pi_1", "")))

	err := svc.Apply(ctx, envelope("evt_1", EventIntentSucceeded, "pi_1", ""))
	require.True(t, IsAlreadyProcessed(err))
	require.Len(t, settlement.confirmed, 1, "duplicate delivery must not reprocess")
}

func TestApplyStateRejectionAcked(t *testing.T) {
	svc, settlement, db := newTestService(t)
	settlement.confirmFn = func(ctx context.Context, tx *gorm.DB, intentID string) error {
		return errutil.Conflict("invalid investment state transition", nil)
	}

	err := svc.Apply(context.Background(), envelope("evt_1", EventIntentSucceeded, "pi_1", ""))
	require.NoError(t, err, "state-guard rejections are acknowledged")

	var rows int64
	require.NoError(t, db.Model(&Event{}).Count(&rows).Error)
	require.Equal(t, int64(1), rows, "ledger row must survive a state rejection")
}

func TestApplyInfraErrorRollsBackLedger(t *testing.T) {
	svc, settlement, db := newTestService(t)
	infra := errors.New("connection reset")
	settlement.confirmFn = func(ctx context.Context, tx *gorm.DB, intentID string) error {
		return infra
	}

	err := svc.Apply(context.Background(), envelope("evt_1", EventIntentSucceeded, "pi_1", ""))
	require.ErrorIs(t, err, infra)

	var rows int64
	require.NoError(t, db.Model(&Event{}).Count(&rows).Error)
	require.Zero(t, rows, "ledger insert must roll back so redelivery can reprocess")

	// redelivery after the outage succeeds
	settlement.confirmFn = nil
	require.NoError(t, svc.Apply(context.Background(), envelope("evt_1", EventIntentSucceeded, "pi_1", "")))
	require.Equal(t, []string{"pi_1"}, settlement.confirmed)
}

func TestApplyUnrecognizedTypeIgnored(t *testing.T) {
	svc, settlement, db := newTestService(t)

	err := svc.Apply(context.Background(), envelope("evt_1", "charge.refunded", "pi_1", ""))
	require.NoError(t, err)
	require.Empty(t, settlement.confirmed)
	require.Empty(t, settlement.failed)

	var rows int64
	require.NoError(t, db.Model(&Event{}).Count(&rows).Error)
	require.Equal(t, int64(1), rows, "unknown events are still deduped")
}

func TestApplyMissingIntentAcked(t *testing.T) {
	svc, settlement, _ := newTestService(t)

	err := svc.Apply(context.Background(), Envelope{
		ID:   "evt_1",
		Type: EventIntentSucceeded,
		Data: json.RawMessage(`{"object":"payment_intent"}`),
	})
	require.NoError(t, err)
	require.Empty(t, settlement.confirmed)
}
