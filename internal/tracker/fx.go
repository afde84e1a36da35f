package tracker

import (
	"github.com/plansight/plansight/internal/config"
	jobdomain "github.com/plansight/plansight/internal/job/domain"
	obsmetrics "github.com/plansight/plansight/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type FactoryParam struct {
	fx.In

	Log     *zap.Logger
	Config  config.Config
	Jobs    jobdomain.Service
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func ProvideFactory(p FactoryParam) *Factory {
	cfg := Config{
		PollInterval: p.Config.Tracker.PollInterval,
		Deadline:     p.Config.Tracker.Deadline,
	}
	return NewFactory(p.Jobs, p.Log, cfg, p.Metrics)
}

var Module = fx.Module("tracker",
	fx.Provide(ProvideFactory),
)
