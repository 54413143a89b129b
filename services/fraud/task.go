package fraud

import (
	"context"
	"encoding/json"

	"grovevest-settlement/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Tasks = fx.Module("fraud.tasks",
	fx.Invoke(registerTaskHandlers),
)

type taskHandlerParams struct {
	fx.In
	Mux     *asynq.ServeMux
	Service *Service
}

func registerTaskHandlers(p taskHandlerParams) {
	p.Mux.HandleFunc(taskname.FraudEvaluate, p.Service.HandleEvaluateTask)
}

// HandleEvaluateTask always returns nil: fraud evaluation is advisory and a
// redelivery loop would add nothing a later manual review cannot.
func (s *Service) HandleEvaluateTask(ctx context.Context, t *asynq.Task) error {
	var req EvaluateRequest
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		zap.L().Error("invalid fraud evaluation payload", zap.Error(err))
		return nil
	}

	alerts := s.Evaluate(ctx, req)
	if len(alerts) > 0 {
		zap.L().Info("fraud evaluation completed with alerts",
			zap.String("transaction_id", req.TransactionID),
			zap.Int("alerts", len(alerts)))
	}

	return nil
}
