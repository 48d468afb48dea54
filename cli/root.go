// Package cli implements the foodtrace command line: wallet connection,
// record entry, lookup and on-chain verification.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	APIURL          string
	RPCURL          string
	ContractAddress string

	// Config is loaded in PersistentPreRunE with flag overrides applied.
	Config *Config
	Log    *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the foodtrace CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "foodtrace",
		Short: "Food traceability on a local EVM chain",
		Long: `Record food batches with their metadata hash anchored on chain, look them
up from the record store and verify that stored metadata still matches the
on-chain hash.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", DefaultConfigPath(), "config file")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api", "", "record store base URL (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.RPCURL, "rpc", "", "wallet / node JSON-RPC URL (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.ContractAddress, "contract", "", "traceability contract address (overrides config)")

	cmd.AddCommand(NewConnectCommand(opts))
	cmd.AddCommand(NewDisconnectCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSwitchNetworkCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := LoadConfig(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if o.APIURL != "" {
		cfg.APIURL = o.APIURL
	}
	if o.RPCURL != "" {
		cfg.RPCURL = o.RPCURL
	}
	if o.ContractAddress != "" {
		cfg.ContractAddress = o.ContractAddress
	}
	o.Config = cfg

	if o.Log == nil {
		o.Log = newLogger(o.Verbose, cmd.ErrOrStderr())
	}
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
