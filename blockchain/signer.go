package blockchain

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Signer authorizes transactions on behalf of one address.
type Signer interface {
	Address() common.Address
	SendTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
}

// gatewaySigner lets the wallet behind the gateway sign and broadcast.
type gatewaySigner struct {
	gw   Gateway
	from common.Address
}

// NewGatewaySigner returns a signer that sends eth_sendTransaction through gw.
func NewGatewaySigner(gw Gateway, from string) Signer {
	return &gatewaySigner{gw: gw, from: common.HexToAddress(from)}
}

func (s *gatewaySigner) Address() common.Address { return s.from }

type sendTxArgs struct {
	From common.Address `json:"from"`
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

func (s *gatewaySigner) SendTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	raw, err := s.gw.Request(ctx, "eth_sendTransaction", sendTxArgs{From: s.from, To: to, Data: data})
	if err != nil {
		return common.Hash{}, err
	}
	var h common.Hash
	if err := json.Unmarshal(raw, &h); err != nil {
		return common.Hash{}, errors.Wrap(err, "decode transaction hash")
	}
	return h, nil
}

// TxBackend is what KeySigner needs from a node; *ethclient.Client
// satisfies it.
type TxBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// KeySigner signs locally with an ECDSA key and broadcasts raw transactions.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	backend TxBackend
}

// NewKeySigner parses a hex private key (with or without 0x).
func NewKeySigner(hexKey string, chainID *big.Int, backend TxBackend) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}
	if chainID == nil {
		return nil, errors.New("chain id is required for local signing")
	}
	return &KeySigner{
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		backend: backend,
	}, nil
}

func (s *KeySigner) Address() common.Address { return s.from }

func (s *KeySigner) SendTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	nonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "nonce")
	}
	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "gas price")
	}
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{From: s.from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "estimate gas")
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    new(big.Int),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "sign transaction")
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, errors.Wrap(err, "send transaction")
	}
	return signed.Hash(), nil
}
