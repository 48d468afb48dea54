package blockchain

import (
	"context"
	"encoding/json"
	"sync"
)

// fakeWallet is an in-memory Gateway with a scriptable wallet.
type fakeWallet struct {
	mu       sync.Mutex
	accounts []string
	chainID  string
	calls    map[string]int
	params   map[string][]any
	errs     map[string]error
	known    map[string]bool // chain ids the wallet can switch to

	// block, when set, holds eth_requestAccounts until it is closed.
	block   chan struct{}
	entered chan struct{}

	events chan Event
}

func newFakeWallet(chainID string, accounts ...string) *fakeWallet {
	return &fakeWallet{
		accounts: accounts,
		chainID:  chainID,
		calls:    map[string]int{},
		params:   map[string][]any{},
		errs:     map[string]error{},
		known:    map[string]bool{chainID: true},
		events:   make(chan Event, 8),
	}
}

func (w *fakeWallet) Events() <-chan Event { return w.events }

func (w *fakeWallet) count(method string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[method]
}

func (w *fakeWallet) failWith(method string, err error) {
	w.mu.Lock()
	w.errs[method] = err
	w.mu.Unlock()
}

func (w *fakeWallet) setChain(id string) {
	w.mu.Lock()
	w.chainID = id
	w.mu.Unlock()
}

func (w *fakeWallet) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	w.mu.Lock()
	w.calls[method]++
	w.params[method] = params
	err := w.errs[method]
	block, entered := w.block, w.entered
	w.mu.Unlock()

	if method == "eth_requestAccounts" && block != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch method {
	case "eth_requestAccounts", "eth_accounts":
		accounts := w.accounts
		if accounts == nil {
			accounts = []string{}
		}
		return json.Marshal(accounts)
	case "eth_chainId":
		return json.Marshal(w.chainID)
	case "wallet_switchEthereumChain":
		target := params[0].(map[string]string)["chainId"]
		if !w.known[target] {
			return nil, &RPCError{Code: CodeUnknownChain, Message: "Unrecognized chain ID"}
		}
		w.chainID = target
		return json.RawMessage("null"), nil
	case "wallet_addEthereumChain":
		n := params[0].(Network)
		w.known[n.ChainID] = true
		w.chainID = n.ChainID
		return json.RawMessage("null"), nil
	case "eth_sendTransaction":
		return json.Marshal("0x00000000000000000000000000000000000000000000000000000000000000aa")
	}
	return nil, &RPCError{Code: CodeMethodNotFound, Message: "method not found"}
}
