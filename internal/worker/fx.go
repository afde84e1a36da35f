package worker

import (
	"context"

	"github.com/plansight/plansight/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("worker",
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, cfg config.Config, w *Worker) {
	if !cfg.Worker.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			go w.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return nil
		},
	})
}
