package activity

// NetworkSolana is the single supported network value.
const NetworkSolana = "Solana"

// Activity classification values.
const (
	TypeSendToken    = "send_token"
	TypeReceiveToken = "receive_token"
	TypeOther        = "other"
)

// Response status and message values. The empty-result response deliberately
// pairs status "error" with HTTP 200; clients depend on the exact message.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	MessageRetrieved      = "Activity retrieved successfully"
	MessageNoTransactions = "No transactions found for this address."
)

// DefaultLimit is the number of signatures fetched when the request does not
// specify one.
const DefaultLimit = 5

// DisplayDecimals is the fixed display precision reported for every token.
const DisplayDecimals = 2

// Request is a validated-on-entry activity query for one wallet.
type Request struct {
	WalletAddress string
	Network       string
	Limit         int
}

// Response is the aggregate result returned to the caller.
type Response struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Data    []Activity `json:"data"`
}

// Activity is one normalized entry in a wallet's activity feed. It is
// immutable after construction and corresponds to exactly one transaction
// signature.
type Activity struct {
	UUID                 string           `json:"uuid"`
	Network              string           `json:"network"`
	Fee                  uint64           `json:"fee"`
	ComputeUnitsConsumed uint64           `json:"compute_units_consumed"`
	Timestamp            string           `json:"timestamp"`
	Type                 string           `json:"type"`
	WalletAddress        string           `json:"wallet_address"`
	TransactionHash      string           `json:"transaction_hash"`
	Metadata             ActivityMetadata `json:"metadata"`
	Token                TokenInfo        `json:"token"`
	ExplorerURL          string           `json:"explorer_url"`
}

// ActivityMetadata carries the signed balance delta as a string to avoid
// precision loss for large integers.
type ActivityMetadata struct {
	Amount string `json:"amount"`
}

// TokenInfo describes the token involved in an activity. Name, symbol, and
// logo are empty when the mint is not in the registry; decimals is omitted
// entirely when unknown.
type TokenInfo struct {
	UUID            string `json:"uuid"`
	Network         string `json:"network"`
	ContractAddress string `json:"contract_address"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	Decimals        *int   `json:"decimals,omitempty"`
	DisplayDecimals int    `json:"display_decimals"`
	LogoURL         string `json:"logo_url"`
}
