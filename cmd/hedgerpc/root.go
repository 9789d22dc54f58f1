package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kroma-labs/sentinel-hedge/config"
	"github.com/kroma-labs/sentinel-hedge/hedge"
	"github.com/kroma-labs/sentinel-hedge/rpcclient"
)

type rootFlags struct {
	configPath string
	logLevel   string
	preset     string
}

// app is the state shared by every subcommand, filled in before it runs.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
	out    io.Writer
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	a := &app{logger: zerolog.Nop(), out: io.Discard}

	cmd := &cobra.Command{
		Use:           "hedgerpc",
		Short:         "Hedged reads across redundant Solana RPC providers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd, flags)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML config file")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides HEDGE_LOG_LEVEL)")
	pf.StringVar(&flags.preset, "preset", "", "hedge preset: default, low-latency, conservative, aggressive")

	cmd.AddCommand(
		newRaceCmd(a),
		newBenchCmd(a),
		newProbeCmd(a),
		newServeCmd(a),
	)
	return cmd
}

func (a *app) load(cmd *cobra.Command, flags *rootFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.preset != "" {
		cfg.Hedge.Preset = flags.preset
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        cmd.ErrOrStderr(),
		TimeFormat: time.TimeOnly,
	}).Level(level).With().Timestamp().Logger()
	return nil
}

func (a *app) commitment() rpcclient.Commitment {
	return rpcclient.Commitment(a.cfg.Commitment)
}

// newClient builds the hedged client from the loaded configuration. The
// returned func releases the Redis connection, if one was opened.
func (a *app) newClient(ctx context.Context, extra ...rpcclient.Option) (*rpcclient.HedgedClient, func(), error) {
	hc, err := a.cfg.HedgeConfig()
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	var engineOpts []hedge.Option

	if a.cfg.Breaker.Enabled {
		bc := hedge.DefaultBreakerConfig()
		if addr := a.cfg.Breaker.RedisAddr; addr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: addr})
			if err := rdb.Ping(ctx).Err(); err != nil {
				a.logger.Warn().Err(err).Str("addr", addr).Msg("redis unavailable, using local breakers")
				_ = rdb.Close()
			} else {
				bc.Store = hedge.NewRedisStore(rdb)
				cleanup = func() { _ = rdb.Close() }
			}
		}
		engineOpts = append(engineOpts, hedge.WithBreaker(bc))
	}

	if a.cfg.RateLimit.RPS > 0 {
		rl := hedge.DefaultRateLimitConfig()
		rl.RequestsPerSecond = a.cfg.RateLimit.RPS
		if a.cfg.RateLimit.Burst > 0 {
			rl.Burst = a.cfg.RateLimit.Burst
		}
		rl.WaitOnLimit = a.cfg.RateLimit.Wait
		engineOpts = append(engineOpts, hedge.WithRateLimit(rl))
	}

	opts := []rpcclient.Option{
		rpcclient.WithLogger(a.logger),
		rpcclient.WithServiceName(a.cfg.ServiceName),
		rpcclient.WithEngineOptions(engineOpts...),
	}
	if a.cfg.Hedge.Adaptive {
		opts = append(opts, rpcclient.WithAdaptiveDelay(hedge.DefaultAdaptiveDelay()))
	}
	opts = append(opts, extra...)

	client, err := rpcclient.NewHedgedClient(a.cfg.HedgeProviders(), hc, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	a.logger.Debug().
		Int("providers", len(client.Providers())).
		Int("initial", hc.InitialProviders).
		Dur("hedge_after", hc.HedgeAfter).
		Int("max", hc.MaxProviders).
		Dur("timeout", hc.OverallTimeout).
		Msg("hedged client ready")

	return client, cleanup, nil
}
