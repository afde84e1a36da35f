package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// QuotaConfig holds per-tier monthly analysis limits. Premium is always
// unlimited and carries no entry here.
type QuotaConfig struct {
	FreeMonthlyLimit  int `mapstructure:"freeMonthlyLimit"`
	BasicMonthlyLimit int `mapstructure:"basicMonthlyLimit"`
}

func DefaultQuotaConfig() QuotaConfig {
	return QuotaConfig{
		FreeMonthlyLimit:  10,
		BasicMonthlyLimit: 100,
	}
}

// QuotaConfigHolder exposes the current quota config and hot-reloads it
// when the backing file changes.
type QuotaConfigHolder struct {
	current atomic.Value // holds QuotaConfig
}

func NewQuotaConfigHolder() (*QuotaConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("quota")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/plansight/config")
	v.AddConfigPath("/etc/plansight")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PLANSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultQuotaConfig()
		v.SetDefault("quota.freeMonthlyLimit", defaults.FreeMonthlyLimit)
		v.SetDefault("quota.basicMonthlyLimit", defaults.BasicMonthlyLimit)
	}

	var cfg QuotaConfig
	if err := v.UnmarshalKey("quota", &cfg); err != nil {
		return nil, err
	}
	if err := validateQuotaConfig(cfg); err != nil {
		return nil, err
	}

	holder := &QuotaConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated QuotaConfig
		if err := v.UnmarshalKey("quota", &updated); err != nil {
			log.Printf("[quota-config] reload failed: %v", err)
			return
		}
		if err := validateQuotaConfig(updated); err != nil {
			log.Printf("[quota-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[quota-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticQuotaHolder returns a holder pinned to cfg. Tests use it to
// avoid touching the filesystem.
func NewStaticQuotaHolder(cfg QuotaConfig) *QuotaConfigHolder {
	holder := &QuotaConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *QuotaConfigHolder) Get() QuotaConfig {
	return h.current.Load().(QuotaConfig)
}

func validateQuotaConfig(cfg QuotaConfig) error {
	if cfg.FreeMonthlyLimit <= 0 {
		return errors.New("quota.freeMonthlyLimit must be positive")
	}
	if cfg.BasicMonthlyLimit <= 0 {
		return errors.New("quota.basicMonthlyLimit must be positive")
	}
	return nil
}
