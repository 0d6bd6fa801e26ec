package solana

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"solana-activity-service/service/metrics"
)

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// Client is the typed gateway over the Solana RPC interface. All reads use
// the confirmed commitment level, trading a small recency lag for result
// stability. Transport-level retry and backoff live in the injected HTTP
// client (service/fetch), not here.
type Client struct {
	rpc      RPCClient
	logger   *slog.Logger
	metrics  *metrics.Metrics
	endpoint string // RPC endpoint identifier for metrics (e.g., "mainnet", rpc host)
}

// NewClient creates a new Solana gateway.
// The endpoint parameter is used for metrics labeling (e.g., "mainnet" or RPC hostname).
// If m is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:      rpcClient,
		logger:   logger,
		metrics:  m,
		endpoint: endpoint,
	}
}

// ListSignatures returns up to limit recent transaction signatures for the
// wallet, newest first. An empty slice is a valid, non-error result.
func (c *Client) ListSignatures(ctx context.Context, wallet solana.PublicKey, limit int) ([]SignatureRecord, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	}

	start := time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, wallet, opts)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		c.logger.ErrorContext(ctx, "failed to get signatures",
			"wallet", wallet.String(),
			"error", err,
		)
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetSignaturesForAddress", status, c.endpoint, duration)
		if err == nil {
			c.metrics.RecordRPCSignaturesPerCall(c.endpoint, float64(len(signatures)))
		}
	}

	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "fetched transaction signatures",
		"wallet", wallet.String(),
		"count", len(signatures),
	)

	records := make([]SignatureRecord, 0, len(signatures))
	for _, sig := range signatures {
		records = append(records, signatureToRecord(sig))
	}
	return records, nil
}

// GetParsedTransaction fetches and decodes the full transaction for a
// signature. It returns (nil, nil) when the node has no record for the
// signature (pruned or not yet finalized); callers handle that by skipping
// the transaction rather than treating it as an error.
func (c *Client) GetParsedTransaction(ctx context.Context, signature solana.Signature) (*ParsedTransaction, error) {
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &[]uint64{0}[0],
	}

	start := time.Now()
	result, err := c.rpc.GetTransaction(ctx, signature, opts)
	duration := time.Since(start).Seconds()

	// Handle parsing errors for legacy transactions: retry without version support.
	if err != nil && strings.Contains(err.Error(), "expects '\"' or 'n', but found '{'") {
		c.logger.WarnContext(ctx, "could not parse as versioned tx, retrying as legacy",
			"signature", signature.String(),
		)
		if c.metrics != nil {
			c.metrics.RecordRPCRetry("GetTransaction", "parse_error")
		}
		legacyOpts := &rpc.GetTransactionOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: rpc.CommitmentConfirmed,
		}
		result, err = c.rpc.GetTransaction(ctx, signature, legacyOpts)
		duration = time.Since(start).Seconds()
	}

	status := "success"
	if err != nil && !errors.Is(err, rpc.ErrNotFound) {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall("GetTransaction", status, c.endpoint, duration)
	}

	if errors.Is(err, rpc.ErrNotFound) {
		c.logger.DebugContext(ctx, "transaction not found",
			"signature", signature.String(),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	txn, err := parseTransactionResult(signature, result)
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func signatureToRecord(sig *rpc.TransactionSignature) SignatureRecord {
	rec := SignatureRecord{
		Signature: sig.Signature.String(),
		Slot:      sig.Slot,
	}
	if sig.BlockTime != nil {
		t := sig.BlockTime.Time()
		rec.BlockTime = &t
	}
	if sig.Err != nil {
		errMsg := "transaction failed"
		rec.Err = &errMsg
	}
	return rec
}
