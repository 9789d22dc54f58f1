package rpcclient

import (
	"encoding/base64"
	"fmt"
)

// Commitment is the Solana confirmation level a read is served at.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// RPCContext is the context object attached to most Solana responses.
type RPCContext struct {
	// Slot is the slot the response was served at.
	Slot uint64 `json:"slot"`
}

// ContextResult wraps a value with the slot it was observed at.
type ContextResult[T any] struct {
	Context RPCContext `json:"context"`
	Value   T          `json:"value"`
}

// Blockhash is the result of getLatestBlockhash.
type Blockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// Account is the result of getAccountInfo with base64 encoding.
type Account struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
	Space      uint64 `json:"space"`

	// Data is the [payload, encoding] pair returned by the node.
	Data []string `json:"data"`
}

// Bytes decodes the account data.
func (a *Account) Bytes() ([]byte, error) {
	if len(a.Data) == 0 {
		return nil, nil
	}
	if len(a.Data) > 1 && a.Data[1] != "base64" {
		return nil, fmt.Errorf("rpcclient: unsupported account encoding %q", a.Data[1])
	}
	return base64.StdEncoding.DecodeString(a.Data[0])
}

// commitmentConfig renders the optional config object for a call.
func commitmentConfig(c Commitment, extra map[string]any) map[string]any {
	cfg := make(map[string]any, len(extra)+1)
	for k, v := range extra {
		cfg[k] = v
	}
	if c != "" {
		cfg["commitment"] = string(c)
	}
	return cfg
}
