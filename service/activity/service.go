// Package activity implements the wallet activity feed: it orchestrates
// signature listing, per-transaction transformation, and token metadata
// resolution into the normalized response shape served over HTTP.
package activity

import (
	"context"
	"fmt"
	"log/slog"

	solanago "github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentTransforms bounds the per-request fan-out so a large limit
// cannot stampede the RPC endpoint.
const maxConcurrentTransforms = 8

// Service is the activity feed entry point. It validates requests, fans out
// transformation work, and aggregates the surviving results.
type Service struct {
	engine   *Engine
	gateway  Gateway
	limitMax int
	logger   *slog.Logger
}

// NewService creates the activity service. limitMax caps the per-request
// signature limit.
func NewService(engine *Engine, gateway Gateway, limitMax int, logger *slog.Logger) *Service {
	return &Service{
		engine:   engine,
		gateway:  gateway,
		limitMax: limitMax,
		logger:   logger,
	}
}

// GetActivity returns the recent activity feed for a wallet.
//
// Validation failures return a *ValidationError. A wallet with no
// transactions is a success-shaped response, not an error. Individual
// transactions whose details cannot be retrieved are dropped from the
// result; only a failure to list signatures at all is surfaced as an error.
func (s *Service) GetActivity(ctx context.Context, req Request) (*Response, error) {
	if req.WalletAddress == "" || req.Network == "" {
		return nil, &ValidationError{Message: msgMissingParams}
	}
	if req.Network != NetworkSolana {
		return nil, &ValidationError{Message: msgUnsupportedNetwork}
	}

	wallet, err := solanago.PublicKeyFromBase58(req.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("parse wallet address: %w", err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > s.limitMax {
		limit = s.limitMax
	}

	signatures, err := s.gateway.ListSignatures(ctx, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("list signatures for %s: %w", req.WalletAddress, err)
	}

	if len(signatures) == 0 {
		return &Response{
			Status:  StatusError,
			Message: MessageNoTransactions,
			Data:    []Activity{},
		}, nil
	}

	// Fan out one transformation per signature, bounded, with results
	// written into an index-addressed slice so the newest-first ordering of
	// the signature list survives the join. Per-signature failures are
	// logged and leave a nil slot; they never abort the siblings.
	results := make([]*Activity, len(signatures))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentTransforms)
	for i, rec := range signatures {
		g.Go(func() error {
			act, err := s.engine.Transform(gctx, req.WalletAddress, rec)
			if err != nil {
				s.logger.WarnContext(gctx, "failed to transform transaction, dropping",
					"signature", rec.Signature,
					"error", err,
				)
				return nil
			}
			results[i] = act
			return nil
		})
	}
	g.Wait()

	data := make([]Activity, 0, len(results))
	for _, act := range results {
		if act != nil {
			data = append(data, *act)
		}
	}

	s.logger.InfoContext(ctx, "activity feed assembled",
		"wallet", req.WalletAddress,
		"signatures", len(signatures),
		"activities", len(data),
	)

	return &Response{
		Status:  StatusSuccess,
		Message: MessageRetrieved,
		Data:    data,
	}, nil
}
