package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kroma-labs/sentinel-hedge/hedge"
	"github.com/kroma-labs/sentinel-hedge/rpcclient"
)

type probeFlags struct {
	timeout     time.Duration
	callTimeout time.Duration
}

func newProbeCmd(a *app) *cobra.Command {
	flags := &probeFlags{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Wait until any provider reports healthy",
		Long: `Calls getHealth on every provider in order, retrying with exponential
backoff until one answers "ok" or --timeout elapses. Exits non-zero on timeout,
so it can gate startup scripts.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool := rpcclient.NewPool(a.cfg.HedgeProviders(),
				rpcclient.WithLogger(a.logger),
				rpcclient.WithServiceName(a.cfg.ServiceName),
			)

			start := time.Now()
			id, err := runProbe(cmd.Context(), pool, a.cfg.HedgeProviders(), flags, a.logger)
			if err != nil {
				badColor.Fprintf(a.out, "✗ no healthy provider after %s\n", time.Since(start).Round(time.Millisecond))
				return err
			}

			goodColor.Fprintf(a.out, "✓ %s healthy", id)
			fmt.Fprintf(a.out, " after %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "give up after this long")
	cmd.Flags().DurationVar(&flags.callTimeout, "call-timeout", 2*time.Second, "timeout for each getHealth call")
	return cmd
}

// runProbe returns the first provider that answers getHealth with "ok".
func runProbe(
	ctx context.Context,
	pool *rpcclient.Pool,
	providers []hedge.ProviderConfig,
	flags *probeFlags,
	logger zerolog.Logger,
) (hedge.ProviderID, error) {
	health := pool.GetHealth()

	probeOnce := func() (hedge.ProviderID, error) {
		var errs []error
		for _, p := range providers {
			callCtx, cancel := context.WithTimeout(ctx, flags.callTimeout)
			resp, err := health(callCtx, p)
			cancel()

			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("%s: %w", p.ID, err))
			case resp.Value != "ok":
				errs = append(errs, fmt.Errorf("%s: health %q", p.ID, resp.Value))
			default:
				return p.ID, nil
			}
		}
		return "", errors.Join(errs...)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second

	attempt := 0
	return backoff.Retry(ctx, probeOnce,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(flags.timeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			attempt++
			logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("retry_in", next).
				Msg("no healthy provider yet")
		}),
	)
}
