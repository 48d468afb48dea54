package blockchain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// NativeCurrency describes the gas token of a network.
type NativeCurrency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals int    `json:"decimals" yaml:"decimals"`
}

// Network is the descriptor sent with wallet_addEthereumChain.
type Network struct {
	ChainID        string         `json:"chainId" yaml:"chain_id"`
	ChainName      string         `json:"chainName" yaml:"chain_name"`
	RPCURLs        []string       `json:"rpcUrls" yaml:"rpc_urls"`
	NativeCurrency NativeCurrency `json:"nativeCurrency" yaml:"native_currency"`
}

// DefaultNetwork is the local Hardhat network the contract is deployed to.
var DefaultNetwork = Network{
	ChainID:   "0x539",
	ChainName: "Hardhat Local",
	RPCURLs:   []string{"http://127.0.0.1:8545"},
	NativeCurrency: NativeCurrency{
		Name:     "Ether",
		Symbol:   "ETH",
		Decimals: 18,
	},
}

// DefaultContractAddress is where the Hardhat deploy script puts the
// contract on a fresh node.
const DefaultContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

// ParseChainID accepts hex ("0x539") or decimal ("1337") chain ids.
func ParseChainID(s string) (*big.Int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, false
	}
	base := 10
	if strings.HasPrefix(s, "0x") {
		s = s[2:]
		base = 16
	}
	if s == "" {
		return nil, false
	}
	id, ok := new(big.Int).SetString(s, base)
	if !ok || id.Sign() < 0 {
		return nil, false
	}
	return id, true
}

// NormalizeChainID returns the canonical 0x-prefixed form of a chain id, or
// the lowercased input when it cannot be parsed.
func NormalizeChainID(s string) string {
	id, ok := ParseChainID(s)
	if !ok {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return hexutil.EncodeBig(id)
}

// SameChain compares two chain ids numerically.
func SameChain(a, b string) bool {
	x, okA := ParseChainID(a)
	y, okB := ParseChainID(b)
	if !okA || !okB {
		return false
	}
	return x.Cmp(y) == 0
}

// IsExpected reports whether chainID is this network.
func (n Network) IsExpected(chainID string) bool {
	return SameChain(n.ChainID, chainID)
}

// ChainIDBig returns the numeric chain id, or nil if the descriptor is bad.
func (n Network) ChainIDBig() *big.Int {
	id, ok := ParseChainID(n.ChainID)
	if !ok {
		return nil
	}
	return id
}
