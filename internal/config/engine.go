package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EngineConfig carries the operator-tuned knobs of the metrics engine.
// Values come from an optional engine.yml and can change at runtime
// without a restart.
type EngineConfig struct {
	// AcquisitionCost is the fixed customer-acquisition cost reported as
	// CAC, in currency minor units.
	AcquisitionCost float64 `mapstructure:"acquisitionCost"`
	// SnapshotStaleAfter is how old the latest snapshot may grow before
	// the consistency check flags it.
	SnapshotStaleAfter time.Duration `mapstructure:"snapshotStaleAfter"`
	// JobTimeout bounds each maintenance job.
	JobTimeout time.Duration `mapstructure:"jobTimeout"`
	// Jobs switches individual maintenance jobs off; absent jobs run.
	Jobs map[string]bool `mapstructure:"jobs"`
}

func DefaultEngineConfig(cfg Config) EngineConfig {
	return EngineConfig{
		AcquisitionCost:    float64(cfg.CustomerAcquisitionCost),
		SnapshotStaleAfter: 24 * time.Hour,
		JobTimeout:         2 * time.Minute,
	}
}

type EngineConfigHolder struct {
	current atomic.Value // holds EngineConfig
}

func NewEngineConfigHolder(cfg Config) (*EngineConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("engine")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/muniva/config") // Volume-mounted config
	v.AddConfigPath("/etc/muniva")            // System config
	v.AddConfigPath(".")                      // Current directory (dev mode)

	v.SetEnvPrefix("MUNIVA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultEngineConfig(cfg)
	v.SetDefault("engine.acquisitionCost", defaults.AcquisitionCost)
	v.SetDefault("engine.snapshotStaleAfter", defaults.SnapshotStaleAfter)
	v.SetDefault("engine.jobTimeout", defaults.JobTimeout)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var engineCfg EngineConfig
	if err := v.UnmarshalKey("engine", &engineCfg); err != nil {
		return nil, err
	}
	if err := validateEngineConfig(engineCfg); err != nil {
		return nil, err
	}

	holder := &EngineConfigHolder{}
	holder.current.Store(engineCfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated EngineConfig
		if err := v.UnmarshalKey("engine", &updated); err != nil {
			zap.L().Warn("engine config reload failed", zap.Error(err))
			return
		}
		if err := validateEngineConfig(updated); err != nil {
			zap.L().Warn("engine config reload ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("engine config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// StaticEngineConfigHolder wraps a fixed configuration, for callers that
// do not watch a file.
func StaticEngineConfigHolder(cfg EngineConfig) *EngineConfigHolder {
	holder := &EngineConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *EngineConfigHolder) Get() EngineConfig {
	return h.current.Load().(EngineConfig)
}

func validateEngineConfig(cfg EngineConfig) error {
	if cfg.AcquisitionCost < 0 {
		return errors.New("engine.acquisitionCost cannot be negative")
	}
	if cfg.SnapshotStaleAfter <= 0 {
		return errors.New("engine.snapshotStaleAfter must be positive")
	}
	if cfg.JobTimeout <= 0 {
		return errors.New("engine.jobTimeout must be positive")
	}
	return nil
}
