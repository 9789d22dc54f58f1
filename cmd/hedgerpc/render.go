package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/kroma-labs/sentinel-hedge/hedge"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
	labelColor  = color.New(color.Bold)
)

// printWinner reports a successful race.
func printWinner[T any](out io.Writer, res hedge.Result[T], value string) {
	goodColor.Fprintf(out, "✓ %s won", res.Provider)
	fmt.Fprintf(out, " in %s (provider %s, %d launched)\n",
		res.Latency.Round(time.Microsecond),
		res.ProviderLatency.Round(time.Microsecond),
		res.Launched)
	labelColor.Fprint(out, "  slot:  ")
	fmt.Fprintln(out, res.Freshness)
	labelColor.Fprint(out, "  value: ")
	fmt.Fprintln(out, value)
}

// printFailure reports a failed race with each provider's error.
func printFailure(out io.Writer, err error) {
	var raceErr *hedge.RaceError
	if !errors.As(err, &raceErr) {
		badColor.Fprintf(out, "✗ %v\n", err)
		return
	}

	c := badColor
	if raceErr.Kind == hedge.KindCanceled {
		c = warnColor
	}
	c.Fprintf(out, "✗ race %s after %s\n", raceErr.Kind, raceErr.Elapsed.Round(time.Millisecond))
	for _, f := range raceErr.Failures {
		fmt.Fprintf(out, "  %-12s %-10s %v\n", f.Provider, f.Latency.Round(time.Millisecond), f.Err)
	}
	if raceErr.Err != nil {
		fmt.Fprintf(out, "  cause: %v\n", raceErr.Err)
	}
}

// printStats writes one row per provider in registry order. Cells stay
// uncoloured so tabwriter can align them.
func printStats(out io.Writer, providers []hedge.ProviderConfig, snap map[hedge.ProviderID]hedge.ProviderStats) {
	headerColor.Fprintln(out, "Provider statistics")

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tWINS\tATTEMPTS\tERRORS\tSUCCESS\tAVG\tP95")
	for _, p := range providers {
		s := snap[p.ID]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			p.ID, s.Wins, s.Attempts, s.Errors,
			successRate(s),
			s.AvgLatency().Round(time.Microsecond),
			s.Percentile(0.95).Round(time.Microsecond))
	}
	_ = tw.Flush()
}

func successRate(s hedge.ProviderStats) string {
	if s.Wins+s.Errors == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", s.SuccessRate()*100)
}
