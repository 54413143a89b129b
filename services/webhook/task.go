package webhook

import (
	"context"
	"encoding/json"

	"grovevest-settlement/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Tasks = fx.Module("webhook.tasks",
	fx.Invoke(registerTaskHandlers),
)

type taskHandlerParams struct {
	fx.In
	Mux     *asynq.ServeMux
	Service *Service
}

func registerTaskHandlers(p taskHandlerParams) {
	p.Mux.HandleFunc(taskname.WebhookApply, p.Service.HandleApplyTask)
}

// HandleApplyTask is the asynq entry point. A non-nil return means asynq
// retries with backoff; duplicates are treated as success.
func (s *Service) HandleApplyTask(ctx context.Context, t *asynq.Task) error {
	var env Envelope
	if err := json.Unmarshal(t.Payload(), &env); err != nil {
		// enqueued by our own handler, so this should never happen; retrying
		// will not fix a bad payload
		zap.L().Error("invalid webhook task payload", zap.Error(err))
		return nil
	}

	if err := s.Apply(ctx, env); err != nil {
		if IsAlreadyProcessed(err) {
			return nil
		}
		zap.L().Error("failed to apply webhook event",
			zap.String("event_id", env.ID),
			zap.String("event_type", env.Type),
			zap.Error(err))
		return err
	}

	return nil
}
