package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ActorLancer/Food-Info-Trace/blockchain"

	"github.com/spf13/cobra"
)

type walletStatus struct {
	State                string `json:"state"`
	Address              string `json:"address,omitempty"`
	ChainID              string `json:"chain_id,omitempty"`
	ExpectedChainID      string `json:"expected_chain_id"`
	ExpectedNetwork      bool   `json:"expected_network"`
	ManuallyDisconnected bool   `json:"manually_disconnected"`
	LastAccount          string `json:"last_account,omitempty"`
	LastChainID          string `json:"last_chain_id,omitempty"`
}

func statusOf(w *wallet) walletStatus {
	snap := w.mgr.Snapshot()
	st := walletStatus{
		State:                snap.State.String(),
		ChainID:              snap.ChainID,
		ExpectedChainID:      w.mgr.Network().ChainID,
		ExpectedNetwork:      !snap.WrongNetwork && snap.ChainID != "",
		ManuallyDisconnected: w.session.ManuallyDisconnected(),
	}
	if snap.Connection != nil {
		st.Address = snap.Connection.Address
		st.ChainID = snap.Connection.ChainID
		st.ExpectedNetwork = snap.Connection.IsExpectedNetwork
		return st
	}
	// No live account: fall back to the one saved by an earlier run.
	last := w.session.Session()
	st.LastAccount, st.LastChainID = last.LastAddress, last.LastChainID
	return st
}

func (s walletStatus) render(w io.Writer) {
	fmt.Fprintf(w, "State:    %s\n", s.State)
	if s.Address != "" {
		fmt.Fprintf(w, "Account:  %s\n", s.Address)
	}
	if s.LastAccount != "" {
		fmt.Fprintf(w, "Last:     %s on %s (not connected)\n", s.LastAccount, s.LastChainID)
	}
	if s.ChainID != "" {
		fmt.Fprintf(w, "Chain:    %s\n", s.ChainID)
	}
	if s.ChainID != "" && !s.ExpectedNetwork {
		fmt.Fprintf(w, "Warning:  wrong network, expected %s (run 'foodtrace switch-network')\n", s.ExpectedChainID)
	}
	if s.ManuallyDisconnected {
		fmt.Fprintln(w, "Auto-connect is off until you run 'foodtrace connect'.")
	}
}

// walletError maps wallet failures to exit errors with readable messages.
func walletError(action string, err error) error {
	switch {
	case blockchain.IsUserRejected(err):
		return WrapExitError(ExitCommandError, action+": request rejected in wallet", err)
	case errors.Is(err, blockchain.ErrNotConnected):
		return WrapExitError(ExitCommandError, action+": wallet not connected (run 'foodtrace connect')", err)
	case errors.Is(err, blockchain.ErrWrongNetwork):
		return WrapExitError(ExitCommandError, action+": wallet is on the wrong network (run 'foodtrace switch-network')", err)
	case errors.Is(err, blockchain.ErrContractReverted):
		return WrapExitError(ExitCommandError, action+": transaction reverted (is the product id already recorded?)", err)
	case errors.Is(err, blockchain.ErrNoAccounts):
		return WrapExitError(ExitCommandError, action+": wallet has no accounts", err)
	default:
		return WrapExitError(ExitCommandError, action, err)
	}
}

func withWallet(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, w *wallet) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w, err := opts.openWallet(ctx)
	if err != nil {
		return err
	}
	defer w.Close()
	return fn(ctx, w)
}

// NewConnectCommand creates the connect command.
func NewConnectCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect the wallet account",
		Long: `Request accounts from the wallet and remember the connection.

Connecting clears a previous 'foodtrace disconnect', so later commands
connect automatically again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWallet(opts, cmd, func(ctx context.Context, w *wallet) error {
				if err := w.mgr.Connect(ctx, blockchain.TriggerUser); err != nil {
					return walletError("connect", err)
				}
				st := statusOf(w)
				return opts.formatter(cmd).Success(st, st.render)
			})
		},
	}
}

// NewDisconnectCommand creates the disconnect command.
func NewDisconnectCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the wallet connection and stop auto-connecting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWallet(opts, cmd, func(ctx context.Context, w *wallet) error {
				if err := w.mgr.Disconnect(); err != nil {
					return WrapExitError(ExitCommandError, "save session", err)
				}
				if err := w.session.Remember(nil); err != nil {
					return WrapExitError(ExitCommandError, "save session", err)
				}
				st := statusOf(w)
				return opts.formatter(cmd).Success(st, st.render)
			})
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the wallet connection",
		Long: `Show the wallet connection. Unless auto-connect was turned off with
'foodtrace disconnect', an already authorised account is connected without
prompting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWallet(opts, cmd, func(ctx context.Context, w *wallet) error {
				w.mgr.Sync(ctx)
				st := statusOf(w)
				return opts.formatter(cmd).Success(st, st.render)
			})
		},
	}
}

// NewSwitchNetworkCommand creates the switch-network command.
func NewSwitchNetworkCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "switch-network",
		Short: "Ask the wallet to switch to the expected network",
		Long: `Ask the wallet to switch to the configured network, adding it to the
wallet first when the wallet does not know it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWallet(opts, cmd, func(ctx context.Context, w *wallet) error {
				if err := w.mgr.SwitchNetwork(ctx); err != nil {
					return walletError("switch network", err)
				}
				st := statusOf(w)
				return opts.formatter(cmd).Success(st, st.render)
			})
		},
	}
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow wallet account and network changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWallet(opts, cmd, func(ctx context.Context, w *wallet) error {
				f := opts.formatter(cmd)
				w.mgr.OnChange(func(blockchain.Snapshot) {
					st := statusOf(w)
					_ = f.Success(st, func(out io.Writer) {
						fmt.Fprintln(out, "---")
						st.render(out)
					})
				})
				w.gw.Watch(ctx, opts.Config.PollInterval)
				if err := w.mgr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		},
	}
}
