package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kroma-labs/sentinel-hedge/rpcclient"
	"github.com/kroma-labs/sentinel-hedge/statsserver"
	"github.com/kroma-labs/sentinel-hedge/telemetry"
)

type serveFlags struct {
	addr          string
	interval      time.Duration
	traceExporter string
	otlpEndpoint  string
}

func newServeCmd(a *app) *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve provider statistics and Prometheus metrics over HTTP",
		Long: `Starts the stats server (GET /stats, POST /stats/reset, GET /metrics,
GET /livez). With --interval, races getSlot periodically so the statistics
stay current without outside traffic.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), a, flags)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", "", "listen address (default from HEDGE_STATS_ADDR or :2112)")
	cmd.Flags().DurationVar(&flags.interval, "interval", 0, "race getSlot at this interval; 0 disables")
	cmd.Flags().StringVar(&flags.traceExporter, "trace-exporter", telemetry.ExporterNone, "none, stdout or otlp")
	cmd.Flags().StringVar(&flags.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector address")
	return cmd
}

func runServe(ctx context.Context, a *app, flags *serveFlags) error {
	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    a.cfg.ServiceName,
		ServiceVersion: version,
		TraceExporter:  flags.traceExporter,
		OTLPEndpoint:   flags.otlpEndpoint,
		Writer:         a.out,
		SetGlobal:      true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			a.logger.Error().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	client, closeFn, err := a.newClient(ctx,
		rpcclient.WithTracerProvider(tel.TracerProvider),
		rpcclient.WithMeterProvider(tel.MeterProvider),
	)
	if err != nil {
		return err
	}
	defer closeFn()

	addr := flags.addr
	if addr == "" {
		addr = a.cfg.StatsAddr
	}
	srv := statsserver.New(client.Engine(),
		statsserver.WithAddr(addr),
		statsserver.WithServiceName(a.cfg.ServiceName),
		statsserver.WithVersion(version),
		statsserver.WithLogger(a.logger),
		statsserver.WithMetricsHandler(tel.MetricsHandler()),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return srv.ListenAndServe(gctx)
	})
	if flags.interval > 0 {
		g.Go(func() error {
			raceLoop(gctx, client, a.commitment(), flags.interval, a.logger)
			return nil
		})
	}
	return g.Wait()
}

// raceLoop races getSlot every interval until ctx is done.
func raceLoop(
	ctx context.Context,
	client *rpcclient.HedgedClient,
	commitment rpcclient.Commitment,
	interval time.Duration,
	logger zerolog.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		res, err := client.GetSlot(ctx, commitment)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("periodic race failed")
			continue
		}
		logger.Debug().
			Str("provider", res.Provider.String()).
			Uint64("slot", res.Value).
			Dur("latency", res.Latency).
			Int("launched", res.Launched).
			Msg("periodic race")
	}
}
