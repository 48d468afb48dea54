package blockchain

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ChainReader is the read side of a node; *ethclient.Client satisfies it.
type ChainReader interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// OnchainRecord mirrors the contract's records(string) getter.
type OnchainRecord struct {
	MetadataHash common.Hash
	Recorder     common.Address
	Timestamp    *big.Int
}

// Exists reports whether the contract has ever stored this record.
func (r *OnchainRecord) Exists() bool {
	return r != nil && r.MetadataHash != (common.Hash{})
}

// ContractClient is a typed wrapper over the FoodTraceability contract.
type ContractClient struct {
	address common.Address
	abi     abi.ABI
	reader  ChainReader
	log     *zap.Logger

	// ReceiptPollInterval controls how often SubmitRecord checks for the
	// receipt.
	ReceiptPollInterval time.Duration
}

// NewContractClient binds the client to a deployed contract.
func NewContractClient(address string, reader ChainReader, log *zap.Logger) (*ContractClient, error) {
	if !common.IsHexAddress(address) {
		return nil, errors.Errorf("invalid contract address %q", address)
	}
	parsed, err := abi.JSON(strings.NewReader(FoodTraceabilityABI))
	if err != nil {
		return nil, errors.Wrap(err, "parse contract abi")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ContractClient{
		address:             common.HexToAddress(address),
		abi:                 parsed,
		reader:              reader,
		log:                 log,
		ReceiptPollInterval: time.Second,
	}, nil
}

func (c *ContractClient) Address() common.Address { return c.address }

// SubmitRecord writes addRecord(productID, metadataHash) and waits for the
// receipt. Nothing is retried: a rejection, a wrong network or a revert is
// returned to the caller as is.
func (c *ContractClient) SubmitRecord(ctx context.Context, signer Signer, productID string, metadataHash common.Hash) (*types.Receipt, error) {
	if signer == nil {
		return nil, ErrNotConnected
	}
	data, err := c.abi.Pack("addRecord", productID, [32]byte(metadataHash))
	if err != nil {
		return nil, errors.Wrap(err, "pack addRecord")
	}
	txHash, err := signer.SendTransaction(ctx, c.address, data)
	if err != nil {
		return nil, errors.Wrap(err, "send addRecord")
	}
	c.log.Info("addRecord sent",
		zap.String("product_id", productID),
		zap.String("metadata_hash", metadataHash.Hex()),
		zap.String("tx", txHash.Hex()))

	receipt, err := c.waitReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, errors.Wrapf(ErrContractReverted, "tx %s", txHash.Hex())
	}
	return receipt, nil
}

func (c *ContractClient) waitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	interval := c.ReceiptPollInterval
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		receipt, err := c.reader.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrapf(err, "receipt for %s", txHash.Hex())
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "waiting for %s", txHash.Hex())
		case <-t.C:
		}
	}
}

func (c *ContractClient) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}
	out, err := c.reader.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", method)
	}
	res, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method)
	}
	return res, nil
}

// FetchOnchainHash reads getMetadataHash(productID). An unknown product
// yields the zero hash.
func (c *ContractClient) FetchOnchainHash(ctx context.Context, productID string) (common.Hash, error) {
	res, err := c.call(ctx, "getMetadataHash", productID)
	if err != nil {
		return common.Hash{}, err
	}
	h, ok := res[0].([32]byte)
	if !ok {
		return common.Hash{}, errors.Errorf("getMetadataHash returned %T", res[0])
	}
	return common.Hash(h), nil
}

// MetadataHashExists reads checkMetadataHashExists(hash).
func (c *ContractClient) MetadataHashExists(ctx context.Context, metadataHash common.Hash) (bool, error) {
	res, err := c.call(ctx, "checkMetadataHashExists", [32]byte(metadataHash))
	if err != nil {
		return false, err
	}
	ok, isBool := res[0].(bool)
	if !isBool {
		return false, errors.Errorf("checkMetadataHashExists returned %T", res[0])
	}
	return ok, nil
}

// FetchRecord reads the public records(productID) getter.
func (c *ContractClient) FetchRecord(ctx context.Context, productID string) (*OnchainRecord, error) {
	res, err := c.call(ctx, "records", productID)
	if err != nil {
		return nil, err
	}
	if len(res) != 3 {
		return nil, errors.Errorf("records returned %d values", len(res))
	}
	h, okHash := res[0].([32]byte)
	recorder, okAddr := res[1].(common.Address)
	ts, okTS := res[2].(*big.Int)
	if !okHash || !okAddr || !okTS {
		return nil, errors.New("records returned unexpected types")
	}
	return &OnchainRecord{MetadataHash: common.Hash(h), Recorder: recorder, Timestamp: ts}, nil
}
