package blockchain

import (
	"context"
	"encoding/json"
)

// EventKind identifies a wallet event stream.
type EventKind string

const (
	AccountsChanged EventKind = "accountsChanged"
	ChainChanged    EventKind = "chainChanged"
)

// Event is one notification pushed by the wallet.
type Event struct {
	Kind     EventKind
	Accounts []string
	ChainID  string
}

// Gateway is the wallet-facing JSON-RPC surface: request/response calls plus
// the accountsChanged / chainChanged streams.
type Gateway interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	Events() <-chan Event
}

func requestAccounts(ctx context.Context, gw Gateway, method string) ([]string, error) {
	raw, err := gw.Request(ctx, method)
	if err != nil {
		return nil, err
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, &RPCError{Code: -32700, Message: "decode " + method + ": " + err.Error()}
	}
	return accounts, nil
}

func requestChainID(ctx context.Context, gw Gateway) (string, error) {
	raw, err := gw.Request(ctx, "eth_chainId")
	if err != nil {
		return "", err
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", &RPCError{Code: -32700, Message: "decode eth_chainId: " + err.Error()}
	}
	return id, nil
}
