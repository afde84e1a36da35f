package ratelimit

import (
	"github.com/plansight/plansight/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// ProvideLocker builds the admission locker when Redis is configured;
// callers must tolerate a nil locker.
func ProvideLocker(cfg config.Config) *Locker {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return NewLocker(client)
}

var Module = fx.Module("ratelimit",
	fx.Provide(ProvideLocker),
)
