package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-activity-service/service/activity"
	"solana-activity-service/service/config"
	"solana-activity-service/service/solana"
	"solana-activity-service/service/token"
)

const (
	testWallet    = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
	testSignature = "5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"
)

// stubGateway implements the activity.Gateway interface for handler tests.
type stubGateway struct {
	signatures   []solana.SignatureRecord
	transactions map[string]*solana.ParsedTransaction
	listErr      error
}

func (s *stubGateway) ListSignatures(ctx context.Context, wallet solanago.PublicKey, limit int) ([]solana.SignatureRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.signatures, nil
}

func (s *stubGateway) GetParsedTransaction(ctx context.Context, signature solanago.Signature) (*solana.ParsedTransaction, error) {
	return s.transactions[signature.String()], nil
}

// stubResolver returns the unknown record for every mint.
type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, mint string) token.Metadata {
	return token.Unknown(mint)
}

func newTestServer(t *testing.T, gateway *stubGateway) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := activity.NewEngine(gateway, stubResolver{}, "https://solscan.io", nil, logger)
	svc := activity.NewService(engine, gateway, 50, logger)

	cfg := &config.Config{
		ServerAddr:        ":0",
		SolanaRPCURL:      "https://rpc.example.com",
		TokenListURL:      "https://tokens.example.com/list.json",
		ExplorerBaseURL:   "https://solscan.io",
		SignatureLimitMax: 50,
		RequestTimeout:    5 * time.Second,
		FetchMaxAttempts:  5,
	}

	srv := New(":0", cfg, svc, nil, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, body
}

func TestWalletActivity_MissingParams(t *testing.T) {
	ts := newTestServer(t, &stubGateway{})

	tests := []struct {
		name  string
		query string
	}{
		{name: "no params", query: ""},
		{name: "missing network", query: "?wallet_address=" + testWallet},
		{name: "missing wallet", query: "?network=Solana"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, ts.URL+"/mainnet/activity"+tt.query)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var errResp map[string]string
			require.NoError(t, json.Unmarshal(body, &errResp))
			assert.Equal(t, "wallet_address and network are required", errResp["error"])
		})
	}
}

func TestWalletActivity_UnsupportedNetwork(t *testing.T) {
	ts := newTestServer(t, &stubGateway{})

	resp, body := get(t, ts.URL+"/mainnet/activity?wallet_address="+testWallet+"&network=Ethereum")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp map[string]string
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "Only Solana network is supported", errResp["error"])
}

func TestWalletActivity_InvalidLimit(t *testing.T) {
	ts := newTestServer(t, &stubGateway{})

	for _, limit := range []string{"abc", "0", "-3"} {
		resp, _ := get(t, ts.URL+"/mainnet/activity?wallet_address="+testWallet+"&network=Solana&limit="+limit)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "limit=%s", limit)
	}
}

func TestWalletActivity_NoTransactions(t *testing.T) {
	ts := newTestServer(t, &stubGateway{})

	resp, body := get(t, ts.URL+"/mainnet/activity?wallet_address="+testWallet+"&network=Solana")

	// HTTP 200 with status "error" in the body is the published contract for
	// an empty feed.
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var feed activity.Response
	require.NoError(t, json.Unmarshal(body, &feed))
	assert.Equal(t, "error", feed.Status)
	assert.Equal(t, "No transactions found for this address.", feed.Message)
	assert.Empty(t, feed.Data)
}

func TestWalletActivity_Success(t *testing.T) {
	blockTime := time.Unix(1700000000, 0).UTC()
	gateway := &stubGateway{
		signatures: []solana.SignatureRecord{{Signature: testSignature, Slot: 100}},
		transactions: map[string]*solana.ParsedTransaction{
			testSignature: {
				Signature:            testSignature,
				Slot:                 100,
				BlockTime:            &blockTime,
				Fee:                  5000,
				ComputeUnitsConsumed: 200,
				Instructions: []solana.Instruction{
					{Kind: solana.InstructionKindTransfer, Source: testWallet, Amount: 10000},
				},
				PreBalances:  []uint64{1000000},
				PostBalances: []uint64{990000},
			},
		},
	}
	ts := newTestServer(t, gateway)

	resp, body := get(t, ts.URL+"/mainnet/activity?wallet_address="+testWallet+"&network=Solana&limit=1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	// Decode generically to pin the exact wire field names.
	var feed map[string]any
	require.NoError(t, json.Unmarshal(body, &feed))
	assert.Equal(t, "success", feed["status"])
	assert.Equal(t, "Activity retrieved successfully", feed["message"])

	data, ok := feed["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)

	entry := data[0].(map[string]any)
	assert.Equal(t, "Solana", entry["network"])
	assert.Equal(t, float64(5000), entry["fee"])
	assert.Equal(t, float64(200), entry["compute_units_consumed"])
	assert.Equal(t, "2023-11-14T22:13:20.000Z", entry["timestamp"])
	assert.Equal(t, "send_token", entry["type"])
	assert.Equal(t, testWallet, entry["wallet_address"])
	assert.Equal(t, testSignature, entry["transaction_hash"])
	assert.NotEmpty(t, entry["uuid"])
	assert.Equal(t, "https://solscan.io/tx/"+testSignature+"?cluster=mainnet-beta", entry["explorer_url"])

	meta := entry["metadata"].(map[string]any)
	assert.Equal(t, "10000", meta["amount"])

	tok := entry["token"].(map[string]any)
	assert.Equal(t, token.NativeMint, tok["contract_address"])
	assert.Equal(t, "", tok["name"])
	assert.Equal(t, "", tok["symbol"])
	assert.Equal(t, float64(2), tok["display_decimals"])
	_, hasDecimals := tok["decimals"]
	assert.False(t, hasDecimals, "unknown decimals must be omitted")
}

func TestWalletActivity_ListFailureReturnsGeneric500(t *testing.T) {
	gateway := &stubGateway{listErr: errors.New("secret internal detail")}
	ts := newTestServer(t, gateway)

	resp, body := get(t, ts.URL+"/mainnet/activity?wallet_address="+testWallet+"&network=Solana")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var errResp map[string]string
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, "Failed to fetch transactions", errResp["error"])
	assert.NotContains(t, string(body), "secret internal detail")
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubGateway{})

	resp, body := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &stubGateway{})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/mainnet/activity", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "GET")
}
