package blockchain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// nodeService answers the eth_ namespace like a dev node without
// eth_requestAccounts.
type nodeService struct {
	mu       sync.Mutex
	accounts []string
	chainID  string
}

func (s *nodeService) Accounts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.accounts...)
}

func (s *nodeService) ChainId() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainID
}

func (s *nodeService) set(chainID string, accounts ...string) {
	s.mu.Lock()
	s.chainID, s.accounts = chainID, accounts
	s.mu.Unlock()
}

func startNode(t *testing.T, svc *nodeService) *RPCGateway {
	t.Helper()
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", svc))
	gw := NewRPCGateway(rpc.DialInProc(srv), nil)
	t.Cleanup(func() {
		gw.Close()
		srv.Stop()
	})
	return gw
}

func TestRPCGatewayRequestFallsBackToAccounts(t *testing.T) {
	svc := &nodeService{}
	svc.set("0x539", alice)
	gw := startNode(t, svc)

	accounts, err := requestAccounts(context.Background(), gw, "eth_requestAccounts")
	require.NoError(t, err)
	assert.Equal(t, []string{alice}, accounts)
}

func TestRPCGatewayUnknownMethod(t *testing.T) {
	gw := startNode(t, &nodeService{})

	_, err := gw.Request(context.Background(), "wallet_switchEthereumChain", map[string]string{"chainId": "0x539"})
	require.Error(t, err)
	assert.Equal(t, CodeMethodNotFound, ErrorCode(err))
}

func TestRPCGatewayWatchEmitsChanges(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	svc := &nodeService{}
	svc.set("0x539", alice)
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", svc))
	gw := NewRPCGateway(rpc.DialInProc(srv), nil)
	defer srv.Stop()
	defer gw.Close()

	gw.Watch(context.Background(), 5*time.Millisecond)
	gw.Watch(context.Background(), 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	svc.set("0x1", bob)
	got := map[EventKind]Event{}
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-gw.Events():
			got[ev.Kind] = ev
		case <-deadline:
			t.Fatalf("events so far: %v", got)
		}
	}
	assert.Equal(t, []string{"0xabc0000000000000000000000000000000000002"}, got[AccountsChanged].Accounts)
	assert.Equal(t, "0x1", got[ChainChanged].ChainID)
}

func TestRPCGatewayCloseWithoutWatch(t *testing.T) {
	gw := startNode(t, &nodeService{})
	gw.Close()
	_, open := <-gw.Events()
	assert.False(t, open)
}
