package investment

import (
	"fmt"

	"grovevest-settlement/pkg/errutil"
	"grovevest-settlement/pkg/money"
)

func errInvestmentNotFound(id string) error {
	return errutil.NotFound("investment not found", nil,
		errutil.WithDetails(errutil.Detail{Field: "investment_id", Message: id}))
}

func errKycNotVerified(userID string) error {
	return errutil.Forbidden("investor has not passed KYC verification", nil,
		errutil.WithDetails(errutil.Detail{Field: "user_id", Message: userID}))
}

func errTreeNotInvestable(treeID, status string) error {
	return errutil.UnprocessableEntity("tree is not open for investment", nil,
		errutil.WithDetails(
			errutil.Detail{Field: "tree_id", Message: treeID},
			errutil.Detail{Field: "status", Message: status},
		))
}

func errInvalidAmount(requested, minimum money.Cents) error {
	return errutil.ValidationFailed("investment amount below tree minimum", nil,
		errutil.WithDetails(
			errutil.Detail{Field: "amount_cents", Message: requested.String()},
			errutil.Detail{Field: "min_investment_cents", Message: minimum.String()},
		))
}

func errLimitExceeded(requested, limit money.Cents, kind string) error {
	return errutil.UnprocessableEntity(fmt.Sprintf("investment amount exceeds %s", kind), nil,
		errutil.WithDetails(
			errutil.Detail{Field: "amount_cents", Message: requested.String()},
			errutil.Detail{Field: kind, Message: limit.String()},
		))
}

func errNotCancellable(id, status string) error {
	return errutil.Conflict("investment can no longer be cancelled", nil,
		errutil.WithDetails(
			errutil.Detail{Field: "investment_id", Message: id},
			errutil.Detail{Field: "status", Message: status},
		))
}

func newGatewayAmbiguousError(investmentID string, err error) error {
	return errutil.Timeout("payment gateway outcome unknown; investment held for reconciliation", err,
		errutil.WithDetails(errutil.Detail{Field: "investment_id", Message: investmentID}))
}

func errInvalidTransition(id, from, to string) error {
	return errutil.Conflict("invalid investment state transition", nil,
		errutil.WithDetails(
			errutil.Detail{Field: "investment_id", Message: id},
			errutil.Detail{Field: "from", Message: from},
			errutil.Detail{Field: "to", Message: to},
		))
}
