package blockchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameChain(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"0x539", "0x539", true},
		{"0x539", "0X539", true},
		{"0x539", "0x0539", true},
		{"0x539", "1337", true},
		{"0x539", "0x1", false},
		{"0x539", "", false},
		{"garbage", "garbage", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SameChain(tc.a, tc.b), "%q vs %q", tc.a, tc.b)
	}
}

func TestNormalizeChainID(t *testing.T) {
	assert.Equal(t, "0x539", NormalizeChainID("0x0539"))
	assert.Equal(t, "0x539", NormalizeChainID("1337"))
	assert.Equal(t, "0x1", NormalizeChainID(" 0x1 "))
	assert.Equal(t, "bogus", NormalizeChainID("BOGUS"))
}

func TestDefaultNetwork(t *testing.T) {
	assert.True(t, DefaultNetwork.IsExpected("0x539"))
	assert.Equal(t, int64(1337), DefaultNetwork.ChainIDBig().Int64())
	assert.Equal(t, "ETH", DefaultNetwork.NativeCurrency.Symbol)
}
