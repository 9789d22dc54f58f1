// Package rpcclient provides a JSON-RPC 2.0 transport for Solana-style RPC
// providers and a hedged client that races every call across them.
//
// # Quick Start
//
// Create a hedged client from a list of providers:
//
//	client, err := rpcclient.NewHedgedClient(
//	    []hedge.ProviderConfig{
//	        {ID: "helius", Endpoint: os.Getenv("HELIUS_RPC_URL")},
//	        {ID: "triton", Endpoint: os.Getenv("TRITON_RPC_URL")},
//	        {ID: "quicknode", Endpoint: os.Getenv("QUICKNODE_RPC_URL")},
//	    },
//	    hedge.LowLatencyHedgeConfig(3),
//	    rpcclient.WithServiceName("wallet"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	provider, hash, err := client.GetLatestBlockhash(ctx, rpcclient.CommitmentConfirmed)
//
// # Freshness
//
// Every Solana response that carries a context reports the slot it was
// served at. The descriptors pass that slot to the engine as the response's
// freshness marker, so GetAccountFresh can reject nodes that lag behind:
//
//	provider, account, err := client.GetAccountFresh(ctx, pubkey, rpcclient.CommitmentConfirmed, minSlot)
//
// A lagging node counts as a provider error and the race keeps going.
//
// # Single Provider
//
// Client speaks JSON-RPC to one endpoint and can be used on its own:
//
//	c := rpcclient.NewClient("https://api.mainnet-beta.solana.com")
//	var slot uint64
//	err := c.Call(ctx, "getSlot", []any{map[string]any{"commitment": "confirmed"}}, &slot)
package rpcclient
