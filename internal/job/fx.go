package job

import (
	"github.com/plansight/plansight/internal/job/repository"
	"github.com/plansight/plansight/internal/job/service"
	"go.uber.org/fx"
)

var Module = fx.Module("job.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
