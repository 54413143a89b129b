package investment

import "time"

// Investment lifecycle states. cancelled, matured and sold are terminal.
const (
	StatusPendingPayment = "pending_payment"
	StatusActive         = "active"
	StatusMatured        = "matured"
	StatusSold           = "sold"
	StatusCancelled      = "cancelled"
)

// Transaction states.
const (
	TxnProcessing = "processing"
	TxnSucceeded  = "succeeded"
	TxnFailed     = "failed"
)

const TxnTypePurchase = "purchase"

// Cancellation reasons recorded on the investment.
const (
	ReasonPaymentFailed = "payment_failed"
	ReasonUserCancelled = "user_cancelled"
)

type Investment struct {
	ID                 string     `gorm:"column:id" json:"investment_id"`
	Code               string     `gorm:"column:code" json:"code"`
	UserID             string     `gorm:"column:user_id" json:"user_id"`
	TreeID             string     `gorm:"column:tree_id" json:"tree_id"`
	AmountCents        int64      `gorm:"column:amount_cents" json:"amount_cents"`
	Currency           string     `gorm:"column:currency" json:"currency"`
	Status             string     `gorm:"column:status" json:"status"`
	PaymentIntentID    string     `gorm:"column:payment_intent_id" json:"payment_intent_id,omitempty"`
	PurchaseDate       *time.Time `gorm:"column:purchase_date" json:"purchase_date,omitempty"`
	CancelledAt        *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason string     `gorm:"column:cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Investment) TableName() string {
	return "investments"
}

func (i *Investment) Terminal() bool {
	switch i.Status {
	case StatusCancelled, StatusMatured, StatusSold:
		return true
	}
	return false
}

type Transaction struct {
	ID                string    `gorm:"column:id" json:"transaction_id"`
	Code              string    `gorm:"column:code" json:"code"`
	InvestmentID      string    `gorm:"column:investment_id" json:"investment_id"`
	UserID            string    `gorm:"column:user_id" json:"user_id"`
	Type              string    `gorm:"column:type" json:"type"`
	Status            string    `gorm:"column:status" json:"status"`
	AmountCents       int64     `gorm:"column:amount_cents" json:"amount_cents"`
	Currency          string    `gorm:"column:currency" json:"currency"`
	GatewayIntentID   *string   `gorm:"column:gateway_intent_id;uniqueIndex" json:"gateway_intent_id,omitempty"`
	FailureReason     string    `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	ReconcileRequired bool      `gorm:"column:reconcile_required" json:"reconcile_required"`
	CreatedAt         time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
