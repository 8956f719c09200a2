package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/typedpg/internal/config"
	"github.com/roach88/typedpg/internal/pool"
)

// loadConfig layers the config file, the environment and flags, in that
// order.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	lookup := o.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg, err := config.ApplyEnv(cfg, lookup)
	if err != nil {
		return config.Config{}, err
	}

	if o.DatabaseURL != "" {
		cfg.DatabaseURL = o.DatabaseURL
	}
	if o.Driver != "" {
		cfg.Driver = o.Driver
	}
	return cfg, nil
}

// logger writes diagnostics to stderr: debug when verbose, warnings
// otherwise.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// withPool opens a pool from the resolved configuration, runs fn and
// ends the pool. Interrupts cancel fn's context.
func (o *RootOptions) withPool(cmd *cobra.Command, f *OutputFormatter, fn func(ctx context.Context, p *pool.Pool) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		_ = f.Error(CodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if o.Provider == nil {
		if err := cfg.Validate(); err != nil {
			_ = f.Error(CodeConfig, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid configuration", err)
		}
	}
	transform, err := cfg.Transformer()
	if err != nil {
		_ = f.Error(CodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := o.logger(cmd)
	pcfg := pool.Config{
		Transform:     transform,
		IDs:           o.IDs,
		Logger:        logger,
		SkipTypeSetup: cfg.Driver != "postgres",
	}

	var p *pool.Pool
	if o.Provider != nil {
		p = pool.New(o.Provider, pcfg)
	} else {
		dsn, err := cfg.DSN()
		if err != nil {
			_ = f.Error(CodeConfig, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid configuration", err)
		}
		f.VerboseLog("opening %s pool (max %d)", cfg.Driver, cfg.Pool.MaxSize)
		p, err = pool.Open(ctx, cfg.Driver, dsn, cfg.SQLOptions(), pcfg)
		if err != nil {
			return f.Fail("failed to open pool", err)
		}
	}
	defer func() {
		if endErr := p.End(context.WithoutCancel(ctx)); endErr != nil {
			logger.Error("failed to end pool", "error", endErr)
		}
	}()

	return fn(ctx, p)
}
