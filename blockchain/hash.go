package blockchain

import (
	"bytes"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// CalculateMetadataHash returns keccak256 of the compact form of raw. Key
// order is kept as given, so the same document always yields the same hash.
func CalculateMetadataHash(raw []byte) (common.Hash, error) {
	compact, err := CompactJSON(raw)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(compact), nil
}

// HashMetadata marshals v the way a browser's JSON.stringify would (no HTML
// escaping, struct field order) and hashes the result.
func HashMetadata(v any) (common.Hash, []byte, error) {
	b, err := MarshalMetadata(v)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return crypto.Keccak256Hash(b), b, nil
}

// MarshalMetadata encodes v as compact JSON without HTML escaping.
func MarshalMetadata(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "encode metadata")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// CompactJSON validates raw and strips insignificant whitespace.
func CompactJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, errors.Wrap(err, "metadata is not valid JSON")
	}
	return buf.Bytes(), nil
}
