package investment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"grovevest-settlement/pkg/config"
	"grovevest-settlement/pkg/errutil"
	"grovevest-settlement/pkg/money"
	"grovevest-settlement/services/audit"
	"grovevest-settlement/services/catalog"
	"grovevest-settlement/services/kyc"
	"grovevest-settlement/services/payment"
	"grovevest-settlement/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type seqStub struct {
	n int
}

func (s *seqStub) NextInvestmentCode(ctx context.Context) (string, error) {
	s.n++
	return fmt.Sprintf("INV-%03d", s.n), nil
}

func (s *seqStub) NextTransactionCode(ctx context.Context) (string, error) {
	s.n++
	return fmt.Sprintf("TXN-%03d", s.n), nil
}

func (s *seqStub) NextAlertCode(ctx context.Context) (string, error) {
	s.n++
	return fmt.Sprintf("FRD-%03d", s.n), nil
}

type gatewayMock struct {
	createFn  func(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error)
	cancelled []string
	intents   int
}

func (m *gatewayMock) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	m.intents++
	return &payment.Intent{
		ID:           fmt.Sprintf("pi_%03d", m.intents),
		ClientSecret: fmt.Sprintf("pi_%03d_secret", m.intents),
		Status:       "requires_payment_method",
	}, nil
}

func (m *gatewayMock) CancelIntent(ctx context.Context, intentID string) error {
	m.cancelled = append(m.cancelled, intentID)
	return nil
}

type fixture struct {
	db      *gorm.DB
	svc     *Service
	catalog *catalog.Service
	gateway *gatewayMock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t,
		&catalog.Tree{}, &kyc.Profile{},
		&Investment{}, &Transaction{}, &audit.Entry{})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Gateway.Currency = "usd"

	cat := catalog.NewService(catalog.ServiceParams{DB: db, Node: node})
	provider := kyc.NewProvider(kyc.ProviderParams{DB: db})
	recorder := audit.NewRecorder(audit.RecorderParams{DB: db, Node: node})

	gw := &gatewayMock{}
	orch := payment.NewOrchestrator(payment.OrchestratorParams{Gateway: gw})

	svc := NewService(ServiceParams{
		Config:       cfg,
		DB:           db,
		Node:         node,
		Seq:          &seqStub{},
		Guard:        NewGuard(GuardParams{KYC: provider}),
		Catalog:      cat,
		Audit:        recorder,
		Orchestrator: orch,
	})
	orch.SetInvestmentService(svc)

	return &fixture{db: db, svc: svc, catalog: cat, gateway: gw}
}

func (f *fixture) seedVerifiedUser(t *testing.T, userID string) {
	t.Helper()

	now := time.Now()
	require.NoError(t, f.db.Create(&kyc.Profile{
		ID:         "prof-" + userID,
		UserID:     userID,
		Status:     kyc.StatusVerified,
		VerifiedAt: &now,
	}).Error)
}

func (f *fixture) seedTree(t *testing.T, capacity money.Cents) *catalog.Tree {
	t.Helper()

	tree, err := f.catalog.Create(context.Background(), catalog.CreateTreeRequest{
		FarmID:             "farm-1",
		Name:               "Kalamata Olive #7",
		Species:            "olea europaea",
		MinInvestmentCents: money.FromMajor(10, 0),
		MaxInvestmentCents: capacity,
		CapacityCents:      capacity,
	})
	require.NoError(t, err)
	return tree
}

func TestCreateHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedVerifiedUser(t, "user-1")
	tree := f.seedTree(t, money.FromMajor(500, 0))

	result, err := f.svc.Create(ctx, CreateRequest{
		UserID:      "user-1",
		TreeID:      tree.ID,
		AmountCents: money.FromMajor(120, 0),
	})
	require.NoError(t, err)

	require.Equal(t, StatusPendingPayment, result.Investment.Status)
	require.Equal(t, int64(12000), result.Investment.AmountCents)
	require.Equal(t, "usd", result.Investment.Currency)
	require.NotEmpty(t, result.Investment.PaymentIntentID)
	require.NotEmpty(t, result.ClientSecret)

	require.Equal(t, TxnProcessing, result.Transaction.Status)
	require.Equal(t, TxnTypePurchase, result.Transaction.Type)
	require.False(t, result.Transaction.ReconcileRequired)

	got, err := f.catalog.Get(ctx, tree.ID)
	require.NoError(t, err)
	require.Equal(t, int64(38000), got.RemainingCapacityCents)

	var auditRows int64
	require.NoError(t, f.db.Model(&audit.Entry{}).Where("event_type = ?", "investment.created").Count(&auditRows).Error)
	require.Equal(t, int64(1), auditRows)
}

func TestCreateRejectsUnverifiedInvestor(t *testing.T) {
	f := newFixture(t)
	tree := f.seedTree(t, money.FromMajor(500, 0))

	_, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:      "ghost",
		TreeID:      tree.ID,
		AmountCents: money.FromMajor(50, 0),
	})

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusForbidden, be.Code)

	var rows int64
	require.NoError(t, f.db.Model(&Investment{}).Count(&rows).Error)
	require.Zero(t, rows)
}

func TestCreateRejectsExpiredKyc(t *testing.T) {
	f := newFixture(t)
	tree := f.seedTree(t, money.FromMajor(500, 0))

	verified := time.Now().Add(-48 * time.Hour)
	expired := time.Now().Add(-time.Hour)
	require.NoError(t, f.db.Create(&kyc.Profile{
		ID:         "prof-old",
		UserID:     "user-old",
		Status:     kyc.StatusVerified,
		VerifiedAt: &verified,
		ExpiresAt:  &expired,
	}).Error)

	_, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:      "user-old",
		TreeID:      tree.ID,
		AmountCents: money.FromMajor(50, 0),
	})

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusForbidden, be.Code)
}

func TestCreateRejectsAmountBelowMinimum(t *testing.T) {
	f := newFixture(t)
	f.seedVerifiedUser(t, "user-1")
	tree := f.seedTree(t, money.FromMajor(500, 0))

	_, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:      "user-1",
		TreeID:      tree.ID,
		AmountCents: money.FromMajor(9, 99),
	})

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusValidationFailed, be.Code)
}

func TestCreateRejectsAmountOverCapacity(t *testing.T) {
	f := newFixture(t)
	f.seedVerifiedUser(t, "user-1")
	tree := f.seedTree(t, money.FromMajor(100, 0))

	_, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:      "user-1",
		TreeID:      tree.ID,
		AmountCents: money.FromMajor(101, 0),
	})

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusUnprocessableEntity, be.Code)
}

func TestCreateDefiniteGatewayFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedVerifiedUser(t, "user-1")
	tree := f.seedTree(t, money.FromMajor(500, 0))

	f.gateway.createFn = func(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
		return nil, &payment.GatewayError{StatusCode: 402, Message: "card declined"}
	}

	_, err := f.svc.Create(ctx, CreateRequest{
		UserID:      "user-1",
		TreeID:      tree.ID,
		AmountCents: money.FromMajor(50, 0),
	})
	require.Error(t, err)

	var invRows, txnRows int64
	require.NoError(t, f.db.Model(&Investment{}).Count(&invRows).Error)
	require.NoError(t, f.db.Model(&Transaction{}).Count(&txnRows).Error)
	require.Zero(t, invRows, "definite gateway rejection must roll back the investment")
	require.Zero(t, txnRows)

	got, err := f.catalog.Get(ctx, tree.ID)
	require.NoError(t, err)
	require.Equal(t, int64(50000), got.RemainingCapacityCents, "reserved capacity must be rolled back")
}

func TestCreateAmbiguousGatewayCommitsForReconciliation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedVerifiedUser(t, "user-1")
	tree := f.seedTree(t, money.FromMajor(500, 0))

	f.gateway.createFn = func(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
		return nil, &payment.GatewayError{Ambiguous: true, Message: "intent request did not complete"}
	}

	_, err := f.svc.Create(ctx, CreateRequest{
		UserID:      "user-1",
		TreeID:      tree.ID,
		AmountCents: money.FromMajor(50, 0),
	})

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusTimeout, be.Code)

	var inv Investment
	require.NoError(t, f.db.First(&inv).Error)
	require.Equal(t, StatusPendingPayment, inv.Status)

	var txn Transaction
	require.NoError(t, f.db.First(&txn).Error)
	require.True(t, txn.ReconcileRequired, "ambiguous outcome must flag the transaction")

	items, err := f.svc.ListReconcileRequired(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, txn.ID, items[0].TransactionID)
}

func createActiveReady(t *testing.T, f *fixture) (*CreateResult, *catalog.Tree) {
	t.Helper()

	f.seedVerifiedUser(t, "user-1")
	tree := f.seedTree(t, money.FromMajor(500, 0))

	result, err := f.svc.Create(context.Background(), CreateRequest{
		UserID:      "user-1",
		TreeID:      tree.ID,
		AmountCents: money.FromMajor(50, 0),
	})
	require.NoError(t, err)
	return result, tree
}

func TestConfirmPaymentActivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result, _ := createActiveReady(t, f)

	require.NoError(t, f.svc.ConfirmPayment(ctx, result.Investment.PaymentIntentID))

	inv, err := f.svc.Get(ctx, result.Investment.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, inv.Status)
	require.NotNil(t, inv.PurchaseDate)

	var txn Transaction
	require.NoError(t, f.db.First(&txn, "investment_id = ?", inv.ID).Error)
	require.Equal(t, TxnSucceeded, txn.Status)

	// duplicate success event is a no-op
	require.NoError(t, f.svc.ConfirmPayment(ctx, result.Investment.PaymentIntentID))
}

func TestConfirmPaymentUnknownIntent(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ConfirmPayment(context.Background(), "pi_unknown")

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusNotFound, be.Code)
}

func TestConfirmPaymentAfterCancelRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result, _ := createActiveReady(t, f)

	_, err := f.svc.Cancel(ctx, result.Investment.ID, "user-1")
	require.NoError(t, err)

	err = f.svc.ConfirmPayment(ctx, result.Investment.PaymentIntentID)

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusConflict, be.Code, "cancelled is terminal")
}

func TestFailPaymentCancelsAndReleasesCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result, tree := createActiveReady(t, f)

	require.NoError(t, f.svc.FailPayment(ctx, result.Investment.PaymentIntentID, "insufficient_funds"))

	inv, err := f.svc.Get(ctx, result.Investment.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, inv.Status)
	require.Equal(t, ReasonPaymentFailed, inv.CancellationReason)

	var txn Transaction
	require.NoError(t, f.db.First(&txn, "investment_id = ?", inv.ID).Error)
	require.Equal(t, TxnFailed, txn.Status)
	require.Equal(t, "insufficient_funds", txn.FailureReason)

	got, err := f.catalog.Get(ctx, tree.ID)
	require.NoError(t, err)
	require.Equal(t, int64(50000), got.RemainingCapacityCents)

	// duplicate failure event is a no-op
	require.NoError(t, f.svc.FailPayment(ctx, result.Investment.PaymentIntentID, "insufficient_funds"))
}

func TestCancelPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result, tree := createActiveReady(t, f)

	inv, err := f.svc.Cancel(ctx, result.Investment.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, inv.Status)
	require.Equal(t, ReasonUserCancelled, inv.CancellationReason)
	require.NotNil(t, inv.CancelledAt)

	require.Contains(t, f.gateway.cancelled, result.Investment.PaymentIntentID, "gateway intent must be voided")

	got, err := f.catalog.Get(ctx, tree.ID)
	require.NoError(t, err)
	require.Equal(t, int64(50000), got.RemainingCapacityCents)

	_, err = f.svc.Cancel(ctx, result.Investment.ID, "user-1")
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusConflict, be.Code)
}

func TestCancelActiveRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result, _ := createActiveReady(t, f)

	require.NoError(t, f.svc.ConfirmPayment(ctx, result.Investment.PaymentIntentID))

	_, err := f.svc.Cancel(ctx, result.Investment.ID, "user-1")

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusConflict, be.Code)
}

func TestLifecycleTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result, _ := createActiveReady(t, f)

	// matured requires active
	_, err := f.svc.MarkMatured(ctx, result.Investment.ID)
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusConflict, be.Code)

	require.NoError(t, f.svc.ConfirmPayment(ctx, result.Investment.PaymentIntentID))

	inv, err := f.svc.MarkMatured(ctx, result.Investment.ID)
	require.NoError(t, err)
	require.Equal(t, StatusMatured, inv.Status)

	// matured is terminal
	_, err = f.svc.MarkSold(ctx, result.Investment.ID)
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusConflict, be.Code)
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	result, tree := createActiveReady(t, f)

	_, err := f.svc.Get(ctx, "missing")
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusNotFound, be.Code)

	f.seedVerifiedUser(t, "user-2")
	_, err = f.svc.Create(ctx, CreateRequest{
		UserID:      "user-2",
		TreeID:      tree.ID,
		AmountCents: money.FromMajor(25, 0),
	})
	require.NoError(t, err)

	mine, err := f.svc.List(ctx, ListRequest{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, result.Investment.ID, mine[0].ID)

	pending, err := f.svc.List(ctx, ListRequest{Status: StatusPendingPayment})
	require.NoError(t, err)
	require.Len(t, pending, 2)
}

func TestGuardRecheckInsideCreationTransaction(t *testing.T) {
	f := newFixture(t)
	f.seedVerifiedUser(t, "user-1")
	tree := f.seedTree(t, money.FromMajor(500, 0))
	ctx := context.Background()

	// The fixture pool holds one connection, which the open transaction owns.
	// The re-check can only complete if its KYC reads run on that transaction.
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		locked, err := f.catalog.GetTx(ctx, tx, tree.ID)
		require.NoError(t, err)

		return f.svc.guard.AuthorizePurchaseTx(ctx, tx, "user-1", locked, money.FromMajor(50, 0))
	}))
}
