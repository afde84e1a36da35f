package admission

import (
	admissiondomain "github.com/plansight/plansight/internal/admission/domain"
	"github.com/plansight/plansight/internal/admission/service"
	jobdomain "github.com/plansight/plansight/internal/job/domain"
	"go.uber.org/fx"
)

func provideStarter(jobs jobdomain.Service) admissiondomain.JobStarter {
	return jobs
}

var Module = fx.Module("admission.service",
	fx.Provide(
		provideStarter,
		service.NewService,
	),
)
