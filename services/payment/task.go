package payment

import (
	"context"

	"grovevest-settlement/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Tasks = fx.Module("payment.tasks",
	fx.Invoke(registerTaskHandlers),
)

type taskHandlerParams struct {
	fx.In
	Mux        *asynq.ServeMux
	Scheduler  *asynq.Scheduler `optional:"true"`
	Reconciler *Reconciler
}

func registerTaskHandlers(p taskHandlerParams) error {
	p.Mux.HandleFunc(taskname.ReconciliationScan, func(ctx context.Context, t *asynq.Task) error {
		_, err := p.Reconciler.Run(ctx)
		return err
	})

	if p.Scheduler != nil {
		if _, err := p.Scheduler.Register("@every 5m",
			asynq.NewTask(taskname.ReconciliationScan, nil),
			asynq.Queue("low"),
		); err != nil {
			return err
		}
	}

	return nil
}
