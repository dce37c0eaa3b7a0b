package lattice

import (
	"io"
	"os"
	"runtime"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/argus-labs/lattice/ecs"
)

// Log output formats accepted by WorldOptions.LogFormat.
const (
	LogFormatJSON   = "json"
	LogFormatPretty = "pretty"
)

// WorldOptions configures a World. Zero-valued fields keep the defaults,
// which can in turn be overridden through LATTICE_* environment variables.
type WorldOptions struct {
	InstanceID string      // Unique id of this world instance; generated when empty
	LogLevel   string      // Minimum level for the world logger
	LogFormat  string      // Log output format, "json" or "pretty"
	LogWriter  io.Writer   // Log destination, defaults to stdout
	TickRate   float64     // Ticks per second driven by StartGameLoop
	Workers    int         // Workers executing system batches
	StageOrder []ecs.Stage // Tick stage order, ecs.DefaultStages when empty
}

// newDefaultWorldOptions creates WorldOptions with default values.
func newDefaultWorldOptions() WorldOptions {
	return WorldOptions{
		InstanceID: "",
		LogLevel:   "info",
		LogFormat:  LogFormatJSON,
		LogWriter:  os.Stdout,
		TickRate:   20,
		Workers:    runtime.NumCPU(),
		StageOrder: nil,
	}
}

// apply merges the given options into the current options, overriding non-zero values.
func (opt *WorldOptions) apply(newOpt WorldOptions) {
	if newOpt.InstanceID != "" {
		opt.InstanceID = newOpt.InstanceID
	}
	if newOpt.LogLevel != "" {
		opt.LogLevel = newOpt.LogLevel
	}
	if newOpt.LogFormat != "" {
		opt.LogFormat = newOpt.LogFormat
	}
	if newOpt.LogWriter != nil {
		opt.LogWriter = newOpt.LogWriter
	}
	if newOpt.TickRate != 0.0 {
		opt.TickRate = newOpt.TickRate
	}
	if newOpt.Workers != 0 {
		opt.Workers = newOpt.Workers
	}
	if newOpt.StageOrder != nil {
		opt.StageOrder = newOpt.StageOrder
	}
}

// validate checks that all required options are set and valid.
func (opt *WorldOptions) validate() error {
	if _, err := zerolog.ParseLevel(opt.LogLevel); err != nil {
		return eris.Wrapf(err, "unknown log level %q", opt.LogLevel)
	}
	if opt.LogFormat != LogFormatJSON && opt.LogFormat != LogFormatPretty {
		return eris.Errorf("unknown log format %q", opt.LogFormat)
	}
	if opt.TickRate <= 0 {
		return eris.New("tick rate must be positive")
	}
	if opt.Workers < 1 {
		return eris.New("worker count must be at least 1")
	}
	return nil
}

// newLogger builds the world logger described by the options.
func newLogger(opt WorldOptions) zerolog.Logger {
	level, err := zerolog.ParseLevel(opt.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	writer := opt.LogWriter
	if opt.LogFormat == LogFormatPretty {
		writer = zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Str("world", opt.InstanceID).
		Logger()
}
