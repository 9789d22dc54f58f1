package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kroma-labs/sentinel-hedge/hedge"
	"github.com/kroma-labs/sentinel-hedge/rpcclient"
)

var errPubkeyRequired = errors.New("--pubkey is required for this method")

type raceFlags struct {
	method  string
	pubkey  string
	minSlot uint64
}

func newRaceCmd(a *app) *cobra.Command {
	flags := &raceFlags{}

	cmd := &cobra.Command{
		Use:   "race",
		Short: "Run one hedged call and print the winner",
		Example: `  hedgerpc race --method blockhash
  hedgerpc race --method account --pubkey <address> --min-slot 250000000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, closeFn, err := a.newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			return runRace(cmd.Context(), a.out, client, a.commitment(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.method, "method", "blockhash", "blockhash, slot, account or balance")
	cmd.Flags().StringVar(&flags.pubkey, "pubkey", "", "account address for account and balance")
	cmd.Flags().Uint64Var(&flags.minSlot, "min-slot", 0, "reject account responses served below this slot")
	return cmd
}

func runRace(
	ctx context.Context,
	out io.Writer,
	client *rpcclient.HedgedClient,
	commitment rpcclient.Commitment,
	flags *raceFlags,
) error {
	switch flags.method {
	case "blockhash":
		res, err := client.GetLatestBlockhash(ctx, commitment)
		return report(out, res, err, func(b rpcclient.Blockhash) string {
			return fmt.Sprintf("%s (valid until height %d)", b.Blockhash, b.LastValidBlockHeight)
		})

	case "slot":
		res, err := client.GetSlot(ctx, commitment)
		return report(out, res, err, func(slot uint64) string { return fmt.Sprint(slot) })

	case "account":
		if flags.pubkey == "" {
			return errPubkeyRequired
		}
		var (
			res hedge.Result[*rpcclient.Account]
			err error
		)
		if flags.minSlot > 0 {
			res, err = client.GetAccountFresh(ctx, flags.pubkey, commitment, flags.minSlot)
		} else {
			res, err = client.GetAccount(ctx, flags.pubkey, commitment)
		}
		return report(out, res, err, func(acc *rpcclient.Account) string {
			if acc == nil {
				return "account not found"
			}
			return fmt.Sprintf("%d lamports, owner %s", acc.Lamports, acc.Owner)
		})

	case "balance":
		if flags.pubkey == "" {
			return errPubkeyRequired
		}
		res, err := client.GetBalance(ctx, flags.pubkey, commitment)
		return report(out, res, err, func(lamports uint64) string {
			return fmt.Sprintf("%d lamports", lamports)
		})

	default:
		return fmt.Errorf("unknown method %q (want blockhash, slot, account or balance)", flags.method)
	}
}

func report[T any](out io.Writer, res hedge.Result[T], err error, format func(T) string) error {
	if err != nil {
		printFailure(out, err)
		return err
	}
	printWinner(out, res, format(res.Value))
	return nil
}
