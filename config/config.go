// Package config loads msgwire settings from an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/wippyai/msgwire/errors"
)

// EnvPrefix prefixes every environment variable, e.g. MSGWIRE_ENGINE.
const EnvPrefix = "MSGWIRE_"

// Engine names.
const (
	EngineNative = "native"
	EngineWasm   = "wasm"
)

// Config holds every setting the CLI and server use.
type Config struct {
	Engine           string        `env:"ENGINE,default=native" yaml:"engine"`
	ModulePath       string        `env:"MODULE" yaml:"module"`
	LogLevel         string        `env:"LOG_LEVEL,default=info" yaml:"log_level"`
	LogFormat        string        `env:"LOG_FORMAT,default=console" yaml:"log_format"`
	ListenAddr       string        `env:"LISTEN_ADDR,default=:8080" yaml:"listen_addr"`
	BodyLimit        string        `env:"BODY_LIMIT,default=1M" yaml:"body_limit"`
	InvokeTimeout    time.Duration `env:"INVOKE_TIMEOUT,default=5s" yaml:"invoke_timeout"`
	RateLimit        float64       `env:"RATE_LIMIT" yaml:"rate_limit"`
	PoolSize         int           `env:"POOL_SIZE,default=4" yaml:"pool_size"`
	MaxFieldSize     int           `env:"MAX_FIELD_SIZE" yaml:"max_field_size"`
	MemoryLimitPages uint32        `env:"MEMORY_LIMIT_PAGES" yaml:"memory_limit_pages"`
}

type options struct {
	lookuper envconfig.Lookuper
	file     string
	envFile  string
}

// Option configures Load.
type Option func(*options)

// WithFile reads a YAML file before the environment. An empty path is ignored.
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// WithEnvFile loads variables from a dotenv file when it exists. Variables
// already set in the environment win.
func WithEnvFile(path string) Option {
	return func(o *options) { o.envFile = path }
}

// WithLookuper replaces the process environment as the variable source.
func WithLookuper(l envconfig.Lookuper) Option {
	return func(o *options) { o.lookuper = l }
}

// Load builds a Config. Values from the YAML file are kept unless the
// matching environment variable is set; unset fields take their defaults.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	o := options{envFile: ".env"}
	for _, opt := range opts {
		opt(&o)
	}

	if o.envFile != "" {
		if _, err := os.Stat(o.envFile); err == nil {
			if err := godotenv.Load(o.envFile); err != nil {
				return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "load "+o.envFile)
			}
		}
	}

	var cfg Config
	if o.file != "" {
		data, err := os.ReadFile(o.file)
		if err != nil {
			return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read "+o.file)
		}
		if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.DisallowUnknownField()); err != nil {
			return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse "+o.file)
		}
	}

	l := o.lookuper
	if l == nil {
		l = envconfig.OsLookuper()
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:           &cfg,
		Lookuper:         envconfig.PrefixLookuper(EnvPrefix, l),
		DefaultOverwrite: true,
	}); err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch c.Engine {
	case EngineNative:
	case EngineWasm:
		if c.ModulePath == "" {
			return invalid("module", "the wasm engine needs a module path")
		}
	default:
		return errors.InvalidEnum(errors.PhaseConfig, []string{"engine"}, c.Engine, "engine")
	}
	if c.PoolSize < 1 {
		return invalid("pool_size", fmt.Sprintf("must be at least 1, got %d", c.PoolSize))
	}
	if c.InvokeTimeout < 0 {
		return invalid("invoke_timeout", "must not be negative")
	}
	if c.MaxFieldSize < 0 {
		return invalid("max_field_size", "must not be negative")
	}
	if c.RateLimit < 0 {
		return invalid("rate_limit", "must not be negative")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return errors.InvalidEnum(errors.PhaseConfig, []string{"log_format"}, c.LogFormat, "log format")
	}
	return nil
}

func invalid(field, detail string) error {
	return errors.InvalidData(errors.PhaseConfig, []string{field}, detail)
}
