package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ActorLancer/Food-Info-Trace/blockchain"
	"github.com/ActorLancer/Food-Info-Trace/client"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// recordSubmitter anchors a metadata hash on chain.
type recordSubmitter interface {
	SubmitRecord(ctx context.Context, signer blockchain.Signer, productID string, metadataHash common.Hash) (*types.Receipt, error)
}

// hashFetcher reads the anchored hash of a product.
type hashFetcher interface {
	FetchOnchainHash(ctx context.Context, productID string) (common.Hash, error)
}

type addResult struct {
	ProductID       string `json:"product_id"`
	MetadataHash    string `json:"metadata_hash"`
	TransactionHash string `json:"transaction_hash"`
	BlockNumber     uint64 `json:"block_number"`
	Message         string `json:"message"`
}

// addRecord hashes md, anchors the hash through contract and stores the
// record in the backend.
func addRecord(ctx context.Context, mgr *blockchain.Manager, signerFor func() (blockchain.Signer, error),
	contract recordSubmitter, backend *client.Client, md FoodMetadata, log *zap.Logger) (*addResult, error) {
	if err := md.Normalize(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid metadata", err)
	}
	hash, raw, err := blockchain.HashMetadata(md)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "hash metadata", err)
	}
	log.Debug("metadata hashed", zap.String("product_id", md.ProductID), zap.String("hash", hash.Hex()))

	if mgr.Snapshot().Connection == nil {
		if _, err := mgr.AutoConnect(ctx); err != nil {
			log.Warn("auto connect failed", zap.Error(err))
		}
	}
	signer, err := signerFor()
	if err != nil {
		return nil, walletError("sign", err)
	}

	receipt, err := contract.SubmitRecord(ctx, signer, md.ProductID, hash)
	if err != nil {
		return nil, walletError("submit on chain", err)
	}
	txHash := receipt.TxHash.Hex()

	st, err := backend.CreateRecord(ctx, client.CreateRecordRequest{
		ProductID:           md.ProductID,
		Metadata:            raw,
		MetadataHashOnChain: hash.Hex(),
		TransactionHash:     txHash,
	})
	if err != nil {
		// the hash is on chain already; tell the user how to find it
		return nil, WrapExitError(ExitCommandError,
			fmt.Sprintf("hash anchored in %s but the record store rejected the record", txHash), err)
	}

	res := &addResult{
		ProductID:       md.ProductID,
		MetadataHash:    hash.Hex(),
		TransactionHash: txHash,
		Message:         st.Message,
	}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return res, nil
}

// NewAddCommand creates the add command.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	var md FoodMetadata

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a food batch on chain and in the record store",
		Long: `Hash the batch metadata, anchor the hash with the traceability contract
and store the metadata in the record store.

Example:
  foodtrace add --product-id BATCH001 --name "Organic Apples" \
    --producer "Green Farm" --date 2024-05-01 --origin Yunnan`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWallet(opts, cmd, func(ctx context.Context, w *wallet) error {
				contract, err := w.contract(opts.Config.ContractAddress)
				if err != nil {
					return err
				}
				res, err := addRecord(ctx, w.mgr, func() (blockchain.Signer, error) {
					return w.signer(opts.Config)
				}, contract, opts.backend(), md, opts.Log)
				if err != nil {
					return err
				}
				return opts.formatter(cmd).Success(res, func(out io.Writer) {
					fmt.Fprintf(out, "Recorded %s\n", res.ProductID)
					fmt.Fprintf(out, "  metadata hash: %s\n", res.MetadataHash)
					fmt.Fprintf(out, "  transaction:   %s (block %d)\n", res.TransactionHash, res.BlockNumber)
				})
			})
		},
	}

	cmd.Flags().StringVar(&md.ProductID, "product-id", "", "batch / product id (letters, digits, '_' and '-')")
	cmd.Flags().StringVar(&md.ProductName, "name", "", "product name")
	cmd.Flags().StringVar(&md.ProducerInfo, "producer", "", "producer information")
	cmd.Flags().StringVar(&md.ProductionDate, "date", "", "production date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&md.Origin, "origin", "", "place of origin")
	cmd.Flags().StringVar(&md.ProcessingSteps, "steps", "", "processing steps")
	_ = cmd.MarkFlagRequired("product-id")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded batches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := opts.backend().ListRecords(cmd.Context(), page, pageSize)
			if err != nil {
				return backendError("list records", err)
			}
			return opts.formatter(cmd).Success(out, func(w io.Writer) {
				if len(out.Items) == 0 {
					fmt.Fprintln(w, "No records.")
					return
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PRODUCT ID\tNAME\tMETADATA HASH\tCREATED")
				for _, it := range out.Items {
					name := "-"
					if it.ProductName != nil {
						name = *it.ProductName
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ProductID, name, it.OnchainMetadataHash,
						it.CreatedAt.Local().Format(time.DateTime))
				}
				_ = tw.Flush()
				fmt.Fprintf(w, "page %d of %d (%d records)\n", out.Page, out.TotalPages, out.TotalItems)
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "records per page (max 100)")

	return cmd
}

func renderDetail(w io.Writer, rec *client.RecordDetail) {
	fmt.Fprintf(w, "Product ID:    %s\n", rec.ProductID)
	fmt.Fprintf(w, "Metadata hash: %s\n", rec.OnchainMetadataHash)
	fmt.Fprintf(w, "Transaction:   %s\n", rec.BlockchainTransactionHash)
	fmt.Fprintf(w, "Created:       %s\n", rec.CreatedAt.Local().Format(time.DateTime))
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, rec.MetadataJSON, "  ", "  "); err == nil {
		fmt.Fprintf(w, "Metadata:\n  %s\n", pretty.String())
	}
}

func getRecord(cmd *cobra.Command, opts *RootOptions, productID string) error {
	rec, err := opts.backend().GetRecord(cmd.Context(), productID)
	if client.IsNotFound(err) {
		f := opts.formatter(cmd)
		_ = f.Error("NOT_FOUND", fmt.Sprintf("no record for product id %q", productID))
		return NewExitError(ExitFailure, "record not found")
	}
	if err != nil {
		return backendError("get record", err)
	}
	return opts.formatter(cmd).Success(rec, func(w io.Writer) { renderDetail(w, rec) })
}

// NewGetCommand creates the get command.
func NewGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <product-id>",
		Short: "Show one recorded batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getRecord(cmd, opts, args[0])
		},
	}
}

// NewSearchCommand creates the search command.
func NewSearchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <product-id>",
		Short: "Look up a batch by product id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return NewExitError(ExitCommandError, "enter a product id to search for")
			}
			return getRecord(cmd, opts, id)
		},
	}
}

type verifyResult struct {
	ProductID      string `json:"product_id"`
	StoredHash     string `json:"stored_hash"`
	RecomputedHash string `json:"recomputed_hash"`
	OnchainHash    string `json:"onchain_hash"`
	Verified       bool   `json:"verified"`
}

// verifyLocally recomputes the hash of the stored metadata and compares it
// with the stored and the anchored hash.
func verifyLocally(ctx context.Context, backend *client.Client, chain hashFetcher, productID string) (*verifyResult, error) {
	rec, err := backend.GetRecord(ctx, productID)
	if err != nil {
		return nil, err
	}
	recomputed, err := blockchain.CalculateMetadataHash(rec.MetadataJSON)
	if err != nil {
		return nil, err
	}
	onchain, err := chain.FetchOnchainHash(ctx, rec.ProductID)
	if err != nil {
		return nil, err
	}
	res := &verifyResult{
		ProductID:      rec.ProductID,
		StoredHash:     strings.ToLower(rec.OnchainMetadataHash),
		RecomputedHash: recomputed.Hex(),
		OnchainHash:    onchain.Hex(),
	}
	res.Verified = res.RecomputedHash == res.OnchainHash && res.StoredHash == res.OnchainHash
	return res, nil
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(opts *RootOptions) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "verify <product-id>",
		Short: "Check stored metadata against the on-chain hash",
		Long: `Recompute the metadata hash of a stored batch and compare it with the
hash anchored on chain. With --remote the record store does the check.

Exits 1 when the hashes differ.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return NewExitError(ExitCommandError, "enter a product id to verify")
			}
			var res *verifyResult
			if remote {
				v, err := opts.backend().VerifyRecord(cmd.Context(), id)
				if err != nil {
					return backendError("verify record", err)
				}
				res = &verifyResult{
					ProductID:      v.ProductID,
					StoredHash:     v.StoredHash,
					RecomputedHash: v.RecomputedHash,
					OnchainHash:    v.OnchainHash,
					Verified:       v.Verified,
				}
			} else {
				err := withWallet(opts, cmd, func(ctx context.Context, w *wallet) error {
					contract, err := w.contract(opts.Config.ContractAddress)
					if err != nil {
						return err
					}
					res, err = verifyLocally(ctx, opts.backend(), contract, id)
					return err
				})
				if err != nil {
					return backendError("verify record", err)
				}
			}

			if err := opts.formatter(cmd).Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "Product ID:      %s\n", res.ProductID)
				fmt.Fprintf(w, "Stored hash:     %s\n", res.StoredHash)
				fmt.Fprintf(w, "Recomputed hash: %s\n", res.RecomputedHash)
				fmt.Fprintf(w, "On-chain hash:   %s\n", res.OnchainHash)
				if res.Verified {
					fmt.Fprintln(w, "OK: metadata matches the on-chain hash")
				} else {
					fmt.Fprintln(w, "MISMATCH: metadata does not match the on-chain hash")
				}
			}); err != nil {
				return err
			}
			if !res.Verified {
				return NewExitError(ExitFailure, "verification failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "let the record store verify")

	return cmd
}

func backendError(action string, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	if client.IsNotFound(err) {
		return WrapExitError(ExitFailure, action, err)
	}
	return WrapExitError(ExitCommandError, action, err)
}
