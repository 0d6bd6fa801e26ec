package solana

import (
	"time"
)

// SignatureRecord is one entry from the signature list for an address.
// It carries only the metadata the RPC returns alongside each signature;
// full transaction details require a separate GetParsedTransaction call.
type SignatureRecord struct {
	Signature string
	Slot      uint64
	BlockTime *time.Time
	Err       *string // nil if the transaction succeeded
}

// ParsedTransaction is our domain model for a fully fetched transaction,
// independent of the RPC response format. It is transient: built per
// signature, consumed immediately, never cached.
type ParsedTransaction struct {
	Signature            string
	Slot                 uint64
	BlockTime            *time.Time
	Fee                  uint64
	ComputeUnitsConsumed uint64
	Instructions         []Instruction
	PreBalances          []uint64
	PostBalances         []uint64
	PostTokenMints       []string // mint addresses from post token balances, in order
}

// InstructionKindTransfer marks an instruction decoded as a transfer
// (native SOL System Program transfer or SPL Token transfer).
const InstructionKindTransfer = "transfer"

// Instruction is a decoded top-level instruction. Only transfers are decoded
// in detail; everything else keeps an empty Kind.
type Instruction struct {
	Kind   string
	Source string // sending address, empty when it cannot be determined
	Amount uint64 // base units (lamports for SOL, raw amount for tokens)
	Mint   string // token mint, empty for native SOL
}

// IsTransfer reports whether the instruction was decoded as a transfer.
func (ix Instruction) IsTransfer() bool {
	return ix.Kind == InstructionKindTransfer
}
