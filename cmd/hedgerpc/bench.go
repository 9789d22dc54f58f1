package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kroma-labs/sentinel-hedge/rpcclient"
)

type benchFlags struct {
	count       int
	concurrency int
	method      string
}

// benchReport summarises a bench run.
type benchReport struct {
	Races    int
	Failures int64
	Elapsed  time.Duration
}

func newBenchCmd(a *app) *cobra.Command {
	flags := &benchFlags{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run many hedged calls and print per-provider statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.count < 1 || flags.concurrency < 1 {
				return fmt.Errorf("--count and --concurrency must be positive")
			}

			client, closeFn, err := a.newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			rep, err := runBench(cmd.Context(), client, a.commitment(), flags)
			if err != nil {
				return err
			}

			headerColor.Fprintf(a.out, "%d races in %s", rep.Races, rep.Elapsed.Round(time.Millisecond))
			if rep.Failures > 0 {
				badColor.Fprintf(a.out, " (%d failed)", rep.Failures)
			}
			fmt.Fprintln(a.out)
			printStats(a.out, client.Providers(), client.Engine().Snapshot())
			return nil
		},
	}

	cmd.Flags().IntVar(&flags.count, "count", 100, "number of races")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 8, "races in flight at once")
	cmd.Flags().StringVar(&flags.method, "method", "slot", "slot or blockhash")
	return cmd
}

// runBench issues flags.count races, at most flags.concurrency at a time.
// Race failures are counted, not returned.
func runBench(
	ctx context.Context,
	client *rpcclient.HedgedClient,
	commitment rpcclient.Commitment,
	flags *benchFlags,
) (benchReport, error) {
	call, err := benchCall(client, commitment, flags.method)
	if err != nil {
		return benchReport{}, err
	}

	var (
		g        errgroup.Group
		failures atomic.Int64
	)
	g.SetLimit(flags.concurrency)

	start := time.Now()
	for range flags.count {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := call(ctx); err != nil {
				failures.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return benchReport{}, err
	}
	return benchReport{
		Races:    flags.count,
		Failures: failures.Load(),
		Elapsed:  time.Since(start),
	}, nil
}

func benchCall(
	client *rpcclient.HedgedClient,
	commitment rpcclient.Commitment,
	method string,
) (func(context.Context) error, error) {
	switch method {
	case "slot":
		return func(ctx context.Context) error {
			_, err := client.GetSlot(ctx, commitment)
			return err
		}, nil
	case "blockhash":
		return func(ctx context.Context) error {
			_, err := client.GetLatestBlockhash(ctx, commitment)
			return err
		}, nil
	default:
		return nil, fmt.Errorf("unknown bench method %q (want slot or blockhash)", method)
	}
}
