// Command hedgerpc races Solana JSON-RPC reads across redundant providers.
//
// Usage:
//
//	hedgerpc race --method blockhash
//	hedgerpc bench --count 200 --concurrency 16
//	hedgerpc probe --timeout 30s
//	hedgerpc serve --addr :2112 --interval 1s
//
// Providers come from HELIUS_RPC_URL, TRITON_RPC_URL, QUICKNODE_RPC_URL and
// HEDGE_PROVIDERS, optionally via a .env file or --config YAML.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
