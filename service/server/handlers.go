package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"solana-activity-service/service/activity"
)

// genericFailureMessage is the only error detail exposed on unexpected
// failures; internals stay in the server logs.
const genericFailureMessage = "Failed to fetch transactions"

// handleWalletActivity returns the handler for the wallet activity feed.
// GET /mainnet/activity?wallet_address={base58}&network=Solana&limit={int}
func handleWalletActivity(svc *activity.Service, timeout time.Duration, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := activity.Request{
			WalletAddress: r.URL.Query().Get("wallet_address"),
			Network:       r.URL.Query().Get("network"),
		}

		if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
			limit, err := strconv.Atoi(rawLimit)
			if err != nil || limit <= 0 {
				writeError(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			req.Limit = limit
		}

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		resp, err := svc.GetActivity(ctx, req)
		if err != nil {
			var verr *activity.ValidationError
			if errors.As(err, &verr) {
				logger.Debug("invalid activity request",
					"wallet_address", req.WalletAddress,
					"network", req.Network,
					"error", verr.Message,
				)
				writeError(w, verr.Message, http.StatusBadRequest)
				return
			}

			logger.Error("failed to fetch activity",
				"wallet_address", req.WalletAddress,
				"error", err,
			)
			writeError(w, genericFailureMessage, http.StatusInternalServerError)
			return
		}

		writeJSON(w, resp, http.StatusOK)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
