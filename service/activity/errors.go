package activity

// ValidationError describes a malformed or missing request parameter.
// It is surfaced to the caller as a 400 with its message and is never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation messages match the public API contract.
const (
	msgMissingParams      = "wallet_address and network are required"
	msgUnsupportedNetwork = "Only Solana network is supported"
)
