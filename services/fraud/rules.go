package fraud

// Rule pairs a CEL condition with the alert it raises. Conditions are
// evaluated over the aggregate context map built per transaction; thresholds
// are part of the map so operators can tune them through config without
// touching the expressions.
type Rule struct {
	Type       string
	Severity   string
	Expression string
}

func defaultRules() []Rule {
	return []Rule{
		{
			Type:       RuleRapidInvestments,
			Severity:   SeverityMedium,
			Expression: "recent_count >= velocity_threshold",
		},
		{
			Type:       RuleUnusualAmount,
			Severity:   SeverityHigh,
			Expression: "history_count >= min_history && amount_cents > avg_amount_cents * amount_multiplier",
		},
		{
			Type:       RuleFailedAuth,
			Severity:   SeverityHigh,
			Expression: "failed_attempts >= failed_auth_threshold",
		},
	}
}
