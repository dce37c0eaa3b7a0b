package lattice

import (
	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
)

// worldConfig holds the configuration for a World instance.
// Every field can be set via environment variables with the specified defaults.
type worldConfig struct {
	// Unique id of this world instance. Generated when empty.
	InstanceID string `env:"LATTICE_INSTANCE_ID"`

	// Minimum level for the world logger.
	LogLevel string `env:"LATTICE_LOG_LEVEL" envDefault:"info"`

	// Log output format, "json" or "pretty".
	LogFormat string `env:"LATTICE_LOG_FORMAT" envDefault:"json"`

	// Number of ticks per second driven by StartGameLoop.
	TickRate float64 `env:"LATTICE_TICK_RATE" envDefault:"20"`

	// Number of workers executing system batches. Zero keeps the default.
	Workers int `env:"LATTICE_WORKERS"`
}

// loadWorldConfig loads the world configuration from environment variables.
func loadWorldConfig() (worldConfig, error) {
	cfg := worldConfig{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse world config")
	}

	return cfg, nil
}

// toOptions converts the configuration into options so it can be layered
// under the options the caller passed to NewWorld.
func (cfg *worldConfig) toOptions() WorldOptions {
	return WorldOptions{
		InstanceID: cfg.InstanceID,
		LogLevel:   cfg.LogLevel,
		LogFormat:  cfg.LogFormat,
		TickRate:   cfg.TickRate,
		Workers:    cfg.Workers,
	}
}
