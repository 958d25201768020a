package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/msgwire"
	"github.com/wippyai/msgwire/config"
	"github.com/wippyai/msgwire/errors"
	"github.com/wippyai/msgwire/host"
	"github.com/wippyai/msgwire/internal/logging"
	"github.com/wippyai/msgwire/wire"
)

var (
	version = "dev"
	commit  = "unknown"
)

// app carries the resolved configuration from the root command to its
// subcommands.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	cfgFile  string
	envFile  string
	engine   string
	module   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "msgwire",
		Short: "Encode chat messages into hex packets",
		Long: `msgwire turns message documents (text segments and button keyboards)
into the hex packet format the messaging backend accepts, either in process
or through a WebAssembly encoder module.`,
		Version:           fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "YAML config file")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded when present")
	pf.StringVar(&a.engine, "engine", config.EngineNative, "encoding engine: native or wasm")
	pf.StringVar(&a.module, "module", "", "encoder module for the wasm engine")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level")

	root.AddCommand(
		newEncodeCmd(a),
		newInspectCmd(a),
		newServeCmd(a),
		newComposeCmd(a),
	)
	return root
}

// setup loads configuration and lets explicit flags override it.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Context(), config.WithFile(a.cfgFile), config.WithEnvFile(a.envFile))
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("module") {
		cfg.ModulePath = a.module
		cfg.Engine = config.EngineWasm
	}
	if f.Changed("engine") {
		cfg.Engine = a.engine
	}
	if f.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.Install(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// encoder builds the configured engine. The returned function releases it.
// reg may be nil.
func (a *app) encoder(ctx context.Context, reg prometheus.Registerer) (msgwire.Encoder, func(), error) {
	if a.cfg.Engine != config.EngineWasm {
		return msgwire.NewNative(wire.WithMaxFieldSize(a.cfg.MaxFieldSize)), func() {}, nil
	}

	wasm, err := os.ReadFile(a.cfg.ModulePath)
	if err != nil {
		return nil, nil, errors.Load("read "+a.cfg.ModulePath, err)
	}
	opts := []host.Option{
		host.WithInvokeTimeout(a.cfg.InvokeTimeout),
		host.WithMemoryLimitPages(a.cfg.MemoryLimitPages),
	}
	if reg != nil {
		opts = append(opts, host.WithMetrics(host.NewMetrics(reg)))
	}
	h, err := host.New(ctx, wasm, opts...)
	if err != nil {
		return nil, nil, err
	}
	engine := host.NewEngine(host.NewPool(h, a.cfg.PoolSize))

	release := func() {
		if err := engine.Close(ctx); err != nil {
			a.logger.Warn("close engine", zap.Error(err))
		}
		if err := h.Close(ctx); err != nil {
			a.logger.Warn("close host", zap.Error(err))
		}
	}
	return engine, release, nil
}

// readInput reads the named file, or stdin when name is empty or "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
