package taskname

const (
	// Webhook tasks
	WebhookApply = "webhook:apply"

	// Fraud tasks
	FraudEvaluate = "fraud:evaluate"

	// Reconciliation tasks
	ReconciliationScan = "reconciliation:scan"
)
