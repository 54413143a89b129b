package investment

import (
	"context"

	"grovevest-settlement/pkg/money"
	"grovevest-settlement/services/catalog"
	"grovevest-settlement/services/kyc"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Guard runs the ordered eligibility checks for a purchase. Checks
// short-circuit on the first failure; the guard itself never mutates state,
// so it can run both before and inside the creation transaction.
type Guard struct {
	kyc kyc.Provider
}

type GuardParams struct {
	fx.In
	KYC kyc.Provider
}

func NewGuard(p GuardParams) *Guard {
	return &Guard{kyc: p.KYC}
}

func (g *Guard) AuthorizePurchase(ctx context.Context, userID string, tree *catalog.Tree, amount money.Cents) error {
	return g.authorize(ctx, g.kyc, userID, tree, amount)
}

// AuthorizePurchaseTx is the in-transaction form: the KYC reads go through
// the caller's open transaction, so the re-check commits or fails with the
// creation it guards.
func (g *Guard) AuthorizePurchaseTx(ctx context.Context, tx *gorm.DB, userID string, tree *catalog.Tree, amount money.Cents) error {
	return g.authorize(ctx, g.kyc.WithTrx(tx), userID, tree, amount)
}

func (g *Guard) authorize(ctx context.Context, provider kyc.Provider, userID string, tree *catalog.Tree, amount money.Cents) error {
	verified, err := provider.IsVerified(ctx, userID)
	if err != nil {
		return err
	}
	if !verified {
		return errKycNotVerified(userID)
	}

	expired, err := provider.IsExpired(ctx, userID)
	if err != nil {
		return err
	}
	if expired {
		return errKycNotVerified(userID)
	}

	if !tree.Investable() {
		return errTreeNotInvestable(tree.ID, tree.Status)
	}

	if !amount.Positive() || amount.Int64() < tree.MinInvestmentCents {
		return errInvalidAmount(amount, money.Cents(tree.MinInvestmentCents))
	}

	if amount.Int64() > tree.MaxInvestmentCents {
		return errLimitExceeded(amount, money.Cents(tree.MaxInvestmentCents), "max_investment_cents")
	}

	if amount.Int64() > tree.RemainingCapacityCents {
		return errLimitExceeded(amount, money.Cents(tree.RemainingCapacityCents), "remaining_capacity_cents")
	}

	return nil
}
