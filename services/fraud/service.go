package fraud

import (
	"context"
	"fmt"
	"sync"
	"time"

	"grovevest-settlement/pkg/celengine"
	"grovevest-settlement/pkg/config"
	"grovevest-settlement/pkg/db/option"
	"grovevest-settlement/pkg/repository"
	"grovevest-settlement/pkg/sequence"
	"grovevest-settlement/services/investment"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	seq  sequence.Generator
	cfg  *config.Config

	rules []Rule

	alerts   repository.Repository[Alert]
	attempts repository.Repository[AuthAttempt]
}

type ServiceParams struct {
	fx.In
	Config *config.Config
	DB     *gorm.DB
	Node   *snowflake.Node
	Seq    sequence.Generator `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		seq:  p.Seq,
		cfg:  p.Config,

		rules: defaultRules(),

		alerts:   repository.ProvideStore[Alert](p.DB),
		attempts: repository.ProvideStore[AuthAttempt](p.DB),
	}
}

type EvaluateRequest struct {
	UserID        string `json:"user_id"`
	TreeID        string `json:"tree_id"`
	InvestmentID  string `json:"investment_id"`
	TransactionID string `json:"transaction_id"`
	AmountCents   int64  `json:"amount_cents"`
}

// Evaluate runs every rule against the aggregate context for one
// transaction. Evaluation is read-only with respect to settlement state;
// alerts are the only writes. Rule and query failures are logged, never
// propagated: fraud scoring must not block or fail a purchase.
func (s *Service) Evaluate(ctx context.Context, req EvaluateRequest) []*Alert {
	attrs := s.buildContext(ctx, req)

	env, err := celengine.GetOrBuildEnv(attrs)
	if err != nil {
		zap.L().Error("failed to build fraud rule environment",
			zap.String("transaction_id", req.TransactionID), zap.Error(err))
		return nil
	}

	var mu sync.Mutex
	var alerts []*Alert

	g, gctx := errgroup.WithContext(ctx)
	for _, rule := range s.rules {
		rule := rule
		g.Go(func() error {
			triggered, err := celengine.Evaluate(env, rule.Expression, attrs)
			if err != nil {
				zap.L().Error("fraud rule evaluation failed",
					zap.String("rule_type", rule.Type),
					zap.String("transaction_id", req.TransactionID),
					zap.Error(err))
				return nil
			}
			if !triggered {
				return nil
			}

			alert, err := s.raiseAlert(gctx, req, rule, attrs)
			if err != nil {
				zap.L().Error("failed to persist fraud alert",
					zap.String("rule_type", rule.Type),
					zap.String("transaction_id", req.TransactionID),
					zap.Error(err))
				return nil
			}
			if alert != nil {
				mu.Lock()
				alerts = append(alerts, alert)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return alerts
}

func (s *Service) raiseAlert(ctx context.Context, req EvaluateRequest, rule Rule, attrs map[string]interface{}) (*Alert, error) {
	existing, err := s.alerts.FindOne(ctx, &Alert{TransactionID: req.TransactionID, RuleType: rule.Type})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil // already raised on a previous delivery
	}

	var code string
	if s.seq != nil {
		if c, err := s.seq.NextAlertCode(ctx); err == nil {
			code = c
		}
	}

	alert := &Alert{
		ID:            s.node.Generate().String(),
		Code:          code,
		UserID:        req.UserID,
		TransactionID: req.TransactionID,
		RuleType:      rule.Type,
		Severity:      rule.Severity,
		Notes:         ruleNotes(rule.Type, attrs),
		DetectedAt:    time.Now(),
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}

	zap.L().Warn("fraud alert raised",
		zap.String("rule_type", rule.Type),
		zap.String("severity", rule.Severity),
		zap.String("user_id", req.UserID),
		zap.String("transaction_id", req.TransactionID))

	return alert, nil
}

// RecordAuthAttempt ingests one auth outcome from the platform's identity
// service. Failed attempts feed the failed_auth rule.
func (s *Service) RecordAuthAttempt(ctx context.Context, userID string, succeeded bool) (*AuthAttempt, error) {
	attempt := &AuthAttempt{
		ID:        s.node.Generate().String(),
		UserID:    userID,
		Succeeded: succeeded,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// buildContext gathers the aggregates the rules reference. A failed query
// degrades that signal to zero rather than failing the evaluation.
func (s *Service) buildContext(ctx context.Context, req EvaluateRequest) map[string]interface{} {
	fc := s.cfg.Fraud

	var recentCount int64
	if err := s.db.WithContext(ctx).Model(&investment.Transaction{}).
		Where("user_id = ? AND created_at >= ?", req.UserID, time.Now().Add(-fc.VelocityWindow)).
		Count(&recentCount).Error; err != nil {
		zap.L().Error("failed to count recent transactions", zap.String("user_id", req.UserID), zap.Error(err))
	}

	var history struct {
		Count int64
		Avg   float64
	}
	if err := s.db.WithContext(ctx).Model(&investment.Transaction{}).
		Select("COUNT(*) AS count, COALESCE(AVG(amount_cents), 0) AS avg").
		Where("user_id = ? AND id <> ?", req.UserID, req.TransactionID).
		Scan(&history).Error; err != nil {
		zap.L().Error("failed to aggregate transaction history", zap.String("user_id", req.UserID), zap.Error(err))
	}

	var failedAttempts int64
	if err := s.db.WithContext(ctx).Model(&AuthAttempt{}).
		Where("user_id = ? AND succeeded = ? AND created_at >= ?", req.UserID, false, time.Now().Add(-fc.FailedAuthWindow)).
		Count(&failedAttempts).Error; err != nil {
		zap.L().Error("failed to count failed auth attempts", zap.String("user_id", req.UserID), zap.Error(err))
	}

	return map[string]interface{}{
		"amount_cents":          req.AmountCents,
		"recent_count":          recentCount,
		"history_count":         history.Count,
		"avg_amount_cents":      int64(history.Avg),
		"failed_attempts":       failedAttempts,
		"velocity_threshold":    fc.VelocityThreshold,
		"min_history":           fc.MinHistory,
		"amount_multiplier":     fc.AmountMultiplier,
		"failed_auth_threshold": fc.FailedAuthThreshold,
	}
}

func ruleNotes(ruleType string, attrs map[string]interface{}) string {
	switch ruleType {
	case RuleRapidInvestments:
		return fmt.Sprintf("%v transactions inside the velocity window (threshold %v)",
			attrs["recent_count"], attrs["velocity_threshold"])
	case RuleUnusualAmount:
		return fmt.Sprintf("amount %v against historical average %v over %v transactions",
			attrs["amount_cents"], attrs["avg_amount_cents"], attrs["history_count"])
	case RuleFailedAuth:
		return fmt.Sprintf("%v failed auth attempts inside the window (threshold %v)",
			attrs["failed_attempts"], attrs["failed_auth_threshold"])
	}
	return ""
}

type ListAlertsRequest struct {
	UserID   string
	RuleType string
	Limit    int
	Offset   int
}

func (s *Service) ListAlerts(ctx context.Context, req ListAlertsRequest) ([]*Alert, error) {
	return s.alerts.Find(ctx, &Alert{UserID: req.UserID, RuleType: req.RuleType},
		option.WithSortBy(option.QuerySortBy{OrderBy: "DESC"}),
		option.WithLimit(req.Limit),
		option.WithOffset(req.Offset),
	)
}
