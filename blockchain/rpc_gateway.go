package blockchain

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often RPCGateway samples accounts and chain id.
const DefaultPollInterval = 2 * time.Second

// RPCGateway talks to a node (or wallet daemon) over JSON-RPC. A node has no
// push channel for account or chain changes, so Watch polls eth_accounts and
// eth_chainId and turns differences into events.
type RPCGateway struct {
	client *rpc.Client
	log    *zap.Logger
	events chan Event

	mu       sync.Mutex
	watching bool
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool
}

// DialRPCGateway connects to the JSON-RPC endpoint at url.
func DialRPCGateway(ctx context.Context, url string, log *zap.Logger) (*RPCGateway, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", url)
	}
	return NewRPCGateway(c, log), nil
}

// NewRPCGateway wraps an existing rpc client.
func NewRPCGateway(c *rpc.Client, log *zap.Logger) *RPCGateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &RPCGateway{
		client: c,
		log:    log,
		events: make(chan Event, 16),
	}
}

// Client exposes the underlying rpc client, e.g. for ethclient.NewClient.
func (g *RPCGateway) Client() *rpc.Client { return g.client }

func (g *RPCGateway) Events() <-chan Event { return g.events }

// Request performs one JSON-RPC call. Nodes that do not implement
// eth_requestAccounts are asked for eth_accounts instead.
func (g *RPCGateway) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var raw json.RawMessage
	err := g.client.CallContext(ctx, &raw, method, params...)
	if err != nil && method == "eth_requestAccounts" && ErrorCode(translateRPCError(err)) == CodeMethodNotFound {
		g.log.Debug("eth_requestAccounts unsupported, falling back to eth_accounts")
		err = g.client.CallContext(ctx, &raw, "eth_accounts")
	}
	if err != nil {
		return nil, translateRPCError(err)
	}
	return raw, nil
}

func translateRPCError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &RPCError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	}
	// some nodes only report "method not found" in the message text
	if strings.Contains(strings.ToLower(err.Error()), "method not found") {
		return &RPCError{Code: CodeMethodNotFound, Message: err.Error()}
	}
	return errors.Wrap(err, "rpc transport")
}

// Watch starts the polling loop. The first sample seeds the baseline and
// emits nothing. Calling Watch twice is a no-op.
func (g *RPCGateway) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	g.mu.Lock()
	if g.watching || g.closed {
		g.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	g.watching = true
	g.cancel = cancel
	g.done = make(chan struct{})
	done := g.done
	g.mu.Unlock()

	go func() {
		defer close(done)
		defer close(g.events)

		var (
			lastAccounts []string
			lastChain    string
			seeded       bool
		)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			accounts, accErr := requestAccounts(ctx, g, "eth_accounts")
			chainID, chainErr := requestChainID(ctx, g)
			if ctx.Err() != nil {
				return
			}
			switch {
			case accErr != nil:
				g.log.Warn("poll eth_accounts failed", zap.Error(accErr))
			case !seeded:
				lastAccounts = normalizeAccounts(accounts)
			case !sameAccounts(lastAccounts, accounts):
				lastAccounts = normalizeAccounts(accounts)
				if !g.emit(ctx, Event{Kind: AccountsChanged, Accounts: lastAccounts}) {
					return
				}
			}
			switch {
			case chainErr != nil:
				g.log.Warn("poll eth_chainId failed", zap.Error(chainErr))
			case !seeded:
				lastChain = chainID
			case !SameChain(lastChain, chainID):
				lastChain = chainID
				if !g.emit(ctx, Event{Kind: ChainChanged, ChainID: chainID}) {
					return
				}
			}
			if accErr == nil && chainErr == nil {
				seeded = true
			}

			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
}

func (g *RPCGateway) emit(ctx context.Context, ev Event) bool {
	g.log.Debug("wallet event", zap.String("kind", string(ev.Kind)),
		zap.Strings("accounts", ev.Accounts), zap.String("chain_id", ev.ChainID))
	select {
	case g.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close stops the watcher and closes the rpc client.
func (g *RPCGateway) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	cancel, done, watching := g.cancel, g.done, g.watching
	g.mu.Unlock()

	if watching {
		cancel()
		<-done
	} else {
		close(g.events)
	}
	g.client.Close()
}

func normalizeAccounts(accounts []string) []string {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, strings.ToLower(a))
	}
	return out
}

func sameAccounts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
