package scheduler

import (
	"github.com/opencivic/muniva/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(provideConfig),
	fx.Provide(New),
)

func provideConfig(cfg config.Config, holder *config.EngineConfigHolder) Config {
	c := DefaultConfig()
	c.RunInterval = cfg.MaintenanceInterval
	engine := holder.Get()
	if engine.JobTimeout > 0 {
		c.JobTimeout = engine.JobTimeout
	}
	c.EnabledJobs = engine.Jobs
	return c
}
