package blockchain

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	t   *testing.T
	abi abi.ABI

	mu        sync.Mutex
	hashes    map[string]common.Hash
	recorders map[string]common.Address
	pending   int // receipts report NotFound this many times
	status    uint64
	callErr   error
}

func newFakeChain(t *testing.T) *fakeChain {
	parsed, err := abi.JSON(strings.NewReader(FoodTraceabilityABI))
	require.NoError(t, err)
	return &fakeChain{
		t:         t,
		abi:       parsed,
		hashes:    map[string]common.Hash{},
		recorders: map[string]common.Address{},
		status:    types.ReceiptStatusSuccessful,
	}
}

func (c *fakeChain) CallContract(ctx context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if c.callErr != nil {
		return nil, c.callErr
	}
	method, err := c.abi.MethodById(call.Data[:4])
	require.NoError(c.t, err)
	args, err := method.Inputs.Unpack(call.Data[4:])
	require.NoError(c.t, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch method.Name {
	case "getMetadataHash":
		return method.Outputs.Pack([32]byte(c.hashes[args[0].(string)]))
	case "checkMetadataHashExists":
		want := common.Hash(args[0].([32]byte))
		for _, h := range c.hashes {
			if h == want {
				return method.Outputs.Pack(true)
			}
		}
		return method.Outputs.Pack(false)
	case "records":
		id := args[0].(string)
		return method.Outputs.Pack([32]byte(c.hashes[id]), c.recorders[id], big.NewInt(1700000000))
	}
	c.t.Fatalf("unexpected call %s", method.Name)
	return nil, nil
}

func (c *fakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending > 0 {
		c.pending--
		return nil, ethereum.NotFound
	}
	return &types.Receipt{TxHash: txHash, Status: c.status, BlockNumber: big.NewInt(7)}, nil
}

type recordingSigner struct {
	from common.Address
	to   common.Address
	data []byte
	err  error
}

func (s *recordingSigner) Address() common.Address { return s.from }

func (s *recordingSigner) SendTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	if s.err != nil {
		return common.Hash{}, s.err
	}
	s.to, s.data = to, data
	return common.HexToHash("0xbeef"), nil
}

func newTestContract(t *testing.T, chain *fakeChain) *ContractClient {
	c, err := NewContractClient(DefaultContractAddress, chain, nil)
	require.NoError(t, err)
	c.ReceiptPollInterval = time.Millisecond
	return c
}

func TestNewContractClientRejectsBadAddress(t *testing.T) {
	_, err := NewContractClient("not-an-address", newFakeChain(t), nil)
	assert.Error(t, err)
}

func TestSubmitRecordPacksAddRecord(t *testing.T) {
	chain := newFakeChain(t)
	chain.pending = 2
	c := newTestContract(t, chain)
	signer := &recordingSigner{from: common.HexToAddress(alice)}
	h := common.HexToHash("0x1234")

	receipt, err := c.SubmitRecord(context.Background(), signer, "BATCH001", h)
	require.NoError(t, err)

	assert.Equal(t, common.HexToHash("0xbeef"), receipt.TxHash)
	assert.Equal(t, common.HexToAddress(DefaultContractAddress), signer.to)
	want, err := chain.abi.Pack("addRecord", "BATCH001", [32]byte(h))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(want, signer.data))
	assert.Zero(t, chain.pending)
}

func TestSubmitRecordReverted(t *testing.T) {
	chain := newFakeChain(t)
	chain.status = types.ReceiptStatusFailed
	c := newTestContract(t, chain)

	receipt, err := c.SubmitRecord(context.Background(), &recordingSigner{}, "BATCH001", common.HexToHash("0x1"))
	assert.ErrorIs(t, err, ErrContractReverted)
	require.NotNil(t, receipt)
	assert.Equal(t, types.ReceiptStatusFailed, receipt.Status)
}

func TestSubmitRecordUserRejected(t *testing.T) {
	c := newTestContract(t, newFakeChain(t))
	signer := &recordingSigner{err: &RPCError{Code: CodeUserRejected, Message: "User denied transaction signature."}}

	_, err := c.SubmitRecord(context.Background(), signer, "BATCH001", common.HexToHash("0x1"))
	assert.True(t, IsUserRejected(err))
}

func TestSubmitRecordWithoutSigner(t *testing.T) {
	c := newTestContract(t, newFakeChain(t))
	_, err := c.SubmitRecord(context.Background(), nil, "BATCH001", common.HexToHash("0x1"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSubmitRecordGivesUpWithContext(t *testing.T) {
	chain := newFakeChain(t)
	chain.pending = 1 << 30
	c := newTestContract(t, chain)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.SubmitRecord(ctx, &recordingSigner{}, "BATCH001", common.HexToHash("0x1"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchOnchainHash(t *testing.T) {
	chain := newFakeChain(t)
	h := common.HexToHash("0xfeed")
	chain.hashes["BATCH001"] = h
	c := newTestContract(t, chain)

	got, err := c.FetchOnchainHash(context.Background(), "BATCH001")
	require.NoError(t, err)
	assert.Equal(t, h, got)

	missing, err := c.FetchOnchainHash(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Equal(t, common.Hash{}, missing)
}

func TestFetchOnchainHashRPCError(t *testing.T) {
	chain := newFakeChain(t)
	chain.callErr = &RPCError{Code: -32000, Message: "header not found"}
	c := newTestContract(t, chain)

	_, err := c.FetchOnchainHash(context.Background(), "BATCH001")
	assert.Equal(t, -32000, ErrorCode(err))
}

func TestMetadataHashExists(t *testing.T) {
	chain := newFakeChain(t)
	chain.hashes["BATCH001"] = common.HexToHash("0xfeed")
	c := newTestContract(t, chain)

	ok, err := c.MetadataHashExists(context.Background(), common.HexToHash("0xfeed"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.MetadataHashExists(context.Background(), common.HexToHash("0xdead"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchRecord(t *testing.T) {
	chain := newFakeChain(t)
	chain.hashes["BATCH001"] = common.HexToHash("0xfeed")
	chain.recorders["BATCH001"] = common.HexToAddress(bob)
	c := newTestContract(t, chain)

	rec, err := c.FetchRecord(context.Background(), "BATCH001")
	require.NoError(t, err)
	assert.True(t, rec.Exists())
	assert.Equal(t, common.HexToAddress(bob), rec.Recorder)
	assert.Equal(t, int64(1700000000), rec.Timestamp.Int64())

	empty, err := c.FetchRecord(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.False(t, empty.Exists())
}
