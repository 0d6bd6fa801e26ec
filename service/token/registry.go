// Package token resolves SPL token mint addresses to descriptive metadata
// using a bulk token-list snapshot. The snapshot is loaded lazily, shared
// across all resolutions for the process lifetime, and can be refreshed
// explicitly.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"solana-activity-service/service/metrics"
)

// NativeMint is the well-known wrapped SOL mint, used as the sentinel
// contract address when a transaction carries no explicit token balance.
const NativeMint = "So11111111111111111111111111111111111111112"

// MainnetChainID is the token-list chain identifier for Solana mainnet-beta.
const MainnetChainID = 101

// DecimalsUnknown marks metadata whose decimals could not be resolved.
const DecimalsUnknown = -1

// Metadata describes a token. Every field is optional: an unresolvable mint
// yields empty strings and DecimalsUnknown rather than an error.
type Metadata struct {
	Address  string
	Name     string
	Symbol   string
	Decimals int
	LogoURI  string
}

// Known reports whether the metadata came from the registry (as opposed to
// the unknown fallback).
func (m Metadata) Known() bool {
	return m.Decimals != DecimalsUnknown || m.Name != "" || m.Symbol != ""
}

// Unknown returns the explicit empty metadata record for a mint.
func Unknown(address string) Metadata {
	return Metadata{Address: address, Decimals: DecimalsUnknown}
}

// Registry is an explicitly owned, thread-safe, lazily-initialized token
// metadata cache. Construct one and pass it by reference; it is not a
// module-level singleton. Concurrent first lookups trigger exactly one
// bulk download (single-flight); once loaded, reads are lock-cheap and
// require no further fetching until Refresh is called.
type Registry struct {
	listURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics

	group singleflight.Group

	mu     sync.RWMutex
	tokens map[string]Metadata
	loaded bool
}

// NewRegistry creates a token registry backed by the given token-list URL.
// The httpClient should be the retrying client from service/fetch; if nil,
// http.DefaultClient is used. If m is nil, no metrics are recorded.
func NewRegistry(listURL string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Registry {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Registry{
		listURL:    listURL,
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
	}
}

// Resolve looks up metadata for a mint address. It never returns an error:
// if the registry is unreachable or the mint is absent, the explicit unknown
// record is returned and callers treat every field as optional. A failed
// load is not cached; the next call retries the download.
func (r *Registry) Resolve(ctx context.Context, mint string) Metadata {
	if err := r.ensureLoaded(ctx); err != nil {
		r.logger.WarnContext(ctx, "token registry unavailable, degrading to empty metadata",
			"mint", mint,
			"error", err,
		)
		if r.metrics != nil {
			r.metrics.RecordRegistryLookup("miss")
		}
		return Unknown(mint)
	}

	r.mu.RLock()
	md, ok := r.tokens[mint]
	r.mu.RUnlock()

	if !ok {
		if r.metrics != nil {
			r.metrics.RecordRegistryLookup("miss")
		}
		return Unknown(mint)
	}

	if r.metrics != nil {
		r.metrics.RecordRegistryLookup("hit")
	}
	return md
}

// Refresh re-fetches the token list and atomically swaps the snapshot.
// Concurrent callers share a single fetch.
func (r *Registry) Refresh(ctx context.Context) error {
	_, err, _ := r.group.Do("load", func() (any, error) {
		return nil, r.load(ctx)
	})
	return err
}

// ensureLoaded performs the lazy single-flight initial load.
func (r *Registry) ensureLoaded(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}

	_, err, _ := r.group.Do("load", func() (any, error) {
		// Re-check under the flight: another caller may have just loaded.
		r.mu.RLock()
		loaded := r.loaded
		r.mu.RUnlock()
		if loaded {
			return nil, nil
		}
		return nil, r.load(ctx)
	})
	return err
}

// tokenListFile matches the Solana token-list JSON shape.
type tokenListFile struct {
	Tokens []tokenListEntry `json:"tokens"`
}

type tokenListEntry struct {
	ChainID  int    `json:"chainId"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	LogoURI  string `json:"logoURI"`
}

func (r *Registry) load(ctx context.Context) error {
	start := time.Now()

	err := r.fetchAndSwap(ctx)

	status := "success"
	if err != nil {
		status = "error"
	}
	if r.metrics != nil {
		r.metrics.RecordRegistryLoad(status, time.Since(start).Seconds())
	}
	return err
}

func (r *Registry) fetchAndSwap(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.listURL, nil)
	if err != nil {
		return fmt.Errorf("build token list request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch token list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("fetch token list: unexpected status %d", resp.StatusCode)
	}

	var list tokenListFile
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("decode token list: %w", err)
	}

	tokens := make(map[string]Metadata, len(list.Tokens))
	for _, entry := range list.Tokens {
		if entry.ChainID != MainnetChainID {
			continue
		}
		tokens[entry.Address] = Metadata{
			Address:  entry.Address,
			Name:     entry.Name,
			Symbol:   entry.Symbol,
			Decimals: entry.Decimals,
			LogoURI:  entry.LogoURI,
		}
	}

	r.mu.Lock()
	r.tokens = tokens
	r.loaded = true
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "token registry snapshot loaded",
		"tokens", len(tokens),
	)
	return nil
}
