package cli

import (
	"context"

	"github.com/ActorLancer/Food-Info-Trace/blockchain"
	"github.com/ActorLancer/Food-Info-Trace/client"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// wallet bundles everything a command needs to talk to the chain.
type wallet struct {
	gw      *blockchain.RPCGateway
	eth     *ethclient.Client
	session *blockchain.FileSessionStore
	mgr     *blockchain.Manager
	log     *zap.Logger
}

func (o *RootOptions) openWallet(ctx context.Context) (*wallet, error) {
	cfg := o.Config
	gw, err := blockchain.DialRPCGateway(ctx, cfg.RPCURL, o.Log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "connect to "+cfg.RPCURL, err)
	}
	session, err := blockchain.OpenSessionStore(cfg.SessionFile)
	if err != nil {
		gw.Close()
		return nil, WrapExitError(ExitCommandError, "open session", err)
	}

	mgr := blockchain.NewManager(gw, cfg.Network, session, o.Log)
	mgr.OnChange(func(s blockchain.Snapshot) {
		if s.Connection == nil {
			return
		}
		if err := session.Remember(s.Connection); err != nil {
			o.Log.Warn("save session", zap.Error(err))
		}
	})
	return &wallet{
		gw:      gw,
		eth:     ethclient.NewClient(gw.Client()),
		session: session,
		mgr:     mgr,
		log:     o.Log,
	}, nil
}

func (w *wallet) Close() {
	w.gw.Close()
}

func (w *wallet) contract(address string) (*blockchain.ContractClient, error) {
	c, err := blockchain.NewContractClient(address, w.eth, w.log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "contract", err)
	}
	return c, nil
}

// signer prefers a configured private key over the wallet account.
func (w *wallet) signer(cfg *Config) (blockchain.Signer, error) {
	if cfg.PrivateKey != "" {
		s, err := blockchain.NewKeySigner(cfg.PrivateKey, w.mgr.Network().ChainIDBig(), w.eth)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return w.mgr.Signer()
}

func (o *RootOptions) backend() *client.Client {
	c := client.New(o.Config.APIURL)
	c.Token = o.Config.APIToken
	return c
}
