package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const alice = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

// devNode answers the eth_ namespace like a dev node: no
// eth_requestAccounts, and eth_call always returns the configured word.
type devNode struct {
	mu       sync.Mutex
	accounts []string
	chainID  string
	word     common.Hash
}

func (n *devNode) Accounts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.accounts...)
}

func (n *devNode) ChainId() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.chainID
}

func (n *devNode) Call(args map[string]any, block string) (hexutil.Bytes, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.word.Bytes(), nil
}

func startDevNode(t *testing.T, n *devNode) string {
	t.Helper()
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", n))
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		hs.Close()
		srv.Stop()
	})
	return hs.URL
}

// writeConfig writes a config file pointing at rpcURL and apiURL with a
// session file in a temp dir.
func writeConfig(t *testing.T, rpcURL, apiURL string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.RPCURL = rpcURL
	cfg.APIURL = apiURL
	cfg.SessionFile = filepath.Join(dir, "session.yaml")
	b, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

// execute runs the CLI with args and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func executeJSON[T any](t *testing.T, args ...string) (T, error) {
	t.Helper()
	out, err := execute(t, append([]string{"--format", "json"}, args...)...)
	var data T
	if out == "" {
		return data, err
	}
	var resp response
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if resp.Status == "ok" {
		require.NoError(t, json.Unmarshal(resp.Data, &data))
	}
	return data, err
}
