package blockchain

import (
	"fmt"

	"github.com/pkg/errors"
)

// EIP-1193 / EIP-3326 provider error codes.
const (
	CodeUserRejected   = 4001
	CodeUnknownChain   = 4902
	CodeMethodNotFound = -32601
)

var (
	ErrUserRejected     = errors.New("user rejected the wallet request")
	ErrUnknownChain     = errors.New("chain has not been added to the wallet")
	ErrWrongNetwork     = errors.New("wallet is connected to the wrong network")
	ErrNotConnected     = errors.New("wallet is not connected")
	ErrNoAccounts       = errors.New("wallet returned no accounts")
	ErrContractReverted = errors.New("transaction reverted on chain")
)

// RPCError is a JSON-RPC error returned by the gateway.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Is lets errors.Is match the well-known provider codes against the
// package sentinels.
func (e *RPCError) Is(target error) bool {
	switch target {
	case ErrUserRejected:
		return e.Code == CodeUserRejected
	case ErrUnknownChain:
		return e.Code == CodeUnknownChain
	}
	return false
}

// ErrorCode returns the JSON-RPC code carried by err, or 0.
func ErrorCode(err error) int {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code
	}
	return 0
}

func IsUserRejected(err error) bool { return errors.Is(err, ErrUserRejected) }

func IsUnknownChain(err error) bool { return errors.Is(err, ErrUnknownChain) }
