package activity

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"solana-activity-service/service/metrics"
	"solana-activity-service/service/solana"
	"solana-activity-service/service/token"
)

// timestampFormat renders block times as ISO-8601 UTC with millisecond
// precision, e.g. "2023-11-14T22:13:20.000Z".
const timestampFormat = "2006-01-02T15:04:05.000Z"

// explorerCluster is the cluster query parameter on explorer links. Only
// mainnet-beta is supported.
const explorerCluster = "mainnet-beta"

// Gateway is the subset of the Solana gateway the engine needs.
// Narrowing the dependency here keeps the engine mockable in tests.
type Gateway interface {
	ListSignatures(ctx context.Context, wallet solanago.PublicKey, limit int) ([]solana.SignatureRecord, error)
	GetParsedTransaction(ctx context.Context, signature solanago.Signature) (*solana.ParsedTransaction, error)
}

// Resolver resolves a mint address to token metadata. Resolution never
// fails; unknown mints yield the explicit empty record.
type Resolver interface {
	Resolve(ctx context.Context, mint string) token.Metadata
}

// Engine turns one signature record into a normalized Activity.
type Engine struct {
	gateway         Gateway
	resolver        Resolver
	explorerBaseURL string
	logger          *slog.Logger
	metrics         *metrics.Metrics

	// now and newID are injectable for deterministic tests.
	now   func() time.Time
	newID func() string
}

// NewEngine creates a transformation engine. If m is nil, no metrics are recorded.
func NewEngine(gateway Gateway, resolver Resolver, explorerBaseURL string, m *metrics.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		gateway:         gateway,
		resolver:        resolver,
		explorerBaseURL: explorerBaseURL,
		logger:          logger,
		metrics:         m,
		now:             time.Now,
		newID:           uuid.NewString,
	}
}

// Transform fetches the parsed transaction for a signature and derives the
// Activity. It returns (nil, nil) when the node has no record for the
// signature; the caller drops that entry. Any failure, including a panic
// inside the transformation, is isolated to this one signature and never
// aborts processing of siblings.
func (e *Engine) Transform(ctx context.Context, wallet string, rec solana.SignatureRecord) (act *Activity, err error) {
	start := e.now()
	outcome := "success"
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "panic during activity transformation",
				"signature", rec.Signature,
				"panic", r,
			)
			act, err = nil, nil
			outcome = "error"
		}
		if e.metrics != nil {
			e.metrics.RecordActivityTransformed(outcome, time.Since(start).Seconds())
		}
	}()

	signature, sigErr := solanago.SignatureFromBase58(rec.Signature)
	if sigErr != nil {
		outcome = "error"
		return nil, fmt.Errorf("invalid signature %q: %w", rec.Signature, sigErr)
	}

	txn, txnErr := e.gateway.GetParsedTransaction(ctx, signature)
	if txnErr != nil {
		outcome = "error"
		return nil, fmt.Errorf("get parsed transaction %s: %w", rec.Signature, txnErr)
	}
	if txn == nil {
		// Pruned or not yet finalized; expected partial-failure path.
		e.logger.InfoContext(ctx, "transaction not found, dropping",
			"signature", rec.Signature,
		)
		outcome = "absent"
		return nil, nil
	}

	// Block time may be missing; fall back to the current instant. The
	// timestamp is then imprecise, but present.
	timestamp := e.now().UTC()
	if txn.BlockTime != nil {
		timestamp = txn.BlockTime.UTC()
	}

	mint := token.NativeMint
	if len(txn.PostTokenMints) > 0 {
		mint = txn.PostTokenMints[0]
	}
	md := e.resolver.Resolve(ctx, mint)

	return &Activity{
		UUID:                 e.newID(),
		Network:              NetworkSolana,
		Fee:                  txn.Fee,
		ComputeUnitsConsumed: txn.ComputeUnitsConsumed,
		Timestamp:            timestamp.Format(timestampFormat),
		Type:                 classify(wallet, txn.Instructions),
		WalletAddress:        wallet,
		TransactionHash:      txn.Signature,
		Metadata:             ActivityMetadata{Amount: balanceDelta(txn.PreBalances, txn.PostBalances)},
		Token:                e.tokenInfo(mint, md),
		ExplorerURL:          fmt.Sprintf("%s/tx/%s?cluster=%s", e.explorerBaseURL, txn.Signature, explorerCluster),
	}, nil
}

// classify derives the activity type from the decoded instructions: a
// transfer whose source is the requesting wallet is a send, any other
// transfer is a receive, and a transaction without transfers is "other".
func classify(wallet string, instructions []solana.Instruction) string {
	hasTransfer := false
	for _, ix := range instructions {
		if !ix.IsTransfer() {
			continue
		}
		hasTransfer = true
		if ix.Source == wallet {
			return TypeSendToken
		}
	}
	if hasTransfer {
		return TypeReceiveToken
	}
	return TypeOther
}

// balanceDelta computes preBalances[0] - postBalances[0] as a decimal string.
// The subtraction runs on big integers so lamport balances near the uint64
// ceiling cannot lose precision. Missing balance entries yield "0".
func balanceDelta(pre, post []uint64) string {
	if len(pre) == 0 || len(post) == 0 {
		return "0"
	}
	delta := new(big.Int).Sub(
		new(big.Int).SetUint64(pre[0]),
		new(big.Int).SetUint64(post[0]),
	)
	return delta.String()
}

func (e *Engine) tokenInfo(mint string, md token.Metadata) TokenInfo {
	info := TokenInfo{
		UUID:            e.newID(),
		Network:         NetworkSolana,
		ContractAddress: mint,
		Name:            md.Name,
		Symbol:          md.Symbol,
		DisplayDecimals: DisplayDecimals,
		LogoURL:         md.LogoURI,
	}
	if md.Decimals != token.DecimalsUnknown {
		decimals := md.Decimals
		info.Decimals = &decimals
	}
	return info
}
