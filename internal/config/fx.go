package config

import "go.uber.org/fx"

// Module wires application and quota configuration.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewQuotaConfigHolder,
	),
)
