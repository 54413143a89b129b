package fraud

import "time"

// Rule types.
const (
	RuleRapidInvestments = "rapid_investments"
	RuleUnusualAmount    = "unusual_amount"
	RuleFailedAuth       = "failed_auth"
)

// Alert severities.
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Alert is one rule firing for one transaction. At most one alert exists per
// (transaction, rule) pair; redeliveries of the evaluation task are no-ops.
type Alert struct {
	ID            string    `gorm:"column:id" json:"alert_id"`
	Code          string    `gorm:"column:code" json:"code"`
	UserID        string    `gorm:"column:user_id" json:"user_id"`
	TransactionID string    `gorm:"column:transaction_id" json:"transaction_id"`
	RuleType      string    `gorm:"column:rule_type" json:"rule_type"`
	Severity      string    `gorm:"column:severity" json:"severity"`
	Notes         string    `gorm:"column:notes" json:"notes"`
	DetectedAt    time.Time `gorm:"column:detected_at" json:"detected_at"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Alert) TableName() string {
	return "fraud_alerts"
}

// AuthAttempt is the read model behind the failed_auth rule, fed by the
// platform's auth service.
type AuthAttempt struct {
	ID        string    `gorm:"column:id" json:"id"`
	UserID    string    `gorm:"column:user_id" json:"user_id"`
	Succeeded bool      `gorm:"column:succeeded" json:"succeeded"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (AuthAttempt) TableName() string {
	return "auth_attempts"
}
