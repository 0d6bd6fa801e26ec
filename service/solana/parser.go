package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Well-known Solana program IDs
var (
	// SystemProgramID is the native SOL transfer program
	SystemProgramID = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")

	// TokenProgramID is the SPL Token program
	TokenProgramID = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// Token2022ProgramID is the Token Extensions program (Token-2022)
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

// System Program instruction types
const (
	SystemProgramTransferInstruction = uint32(2)
)

// Token Program instruction types
const (
	TokenProgramTransferInstruction        = uint8(3)
	TokenProgramTransferCheckedInstruction = uint8(12)
)

// parseTransactionResult converts a GetTransactionResult into our domain
// ParsedTransaction, decoding transfer instructions and lifting out the
// fee, compute, and balance metadata the transformation engine needs.
func parseTransactionResult(signature solana.Signature, result *rpc.GetTransactionResult) (*ParsedTransaction, error) {
	txn := &ParsedTransaction{
		Signature: signature.String(),
		Slot:      result.Slot,
	}

	if result.BlockTime != nil {
		t := result.BlockTime.Time()
		txn.BlockTime = &t
	}

	if meta := result.Meta; meta != nil {
		txn.Fee = meta.Fee
		if meta.ComputeUnitsConsumed != nil {
			txn.ComputeUnitsConsumed = *meta.ComputeUnitsConsumed
		}
		txn.PreBalances = meta.PreBalances
		txn.PostBalances = meta.PostBalances
		for _, tb := range meta.PostTokenBalances {
			txn.PostTokenMints = append(txn.PostTokenMints, tb.Mint.String())
		}
	}

	// Decode the transaction envelope
	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	accountKeys := tx.Message.AccountKeys
	for _, instruction := range tx.Message.Instructions {
		if int(instruction.ProgramIDIndex) >= len(accountKeys) {
			continue
		}
		programID := accountKeys[instruction.ProgramIDIndex]

		// System Program transfers (native SOL)
		if programID.Equals(SystemProgramID) {
			if ix, err := parseSystemTransfer(instruction, accountKeys); err == nil {
				txn.Instructions = append(txn.Instructions, ix)
				continue
			}
		}

		// SPL Token transfers (USDC, etc.)
		if programID.Equals(TokenProgramID) || programID.Equals(Token2022ProgramID) {
			if ix, err := parseTokenTransfer(instruction, accountKeys); err == nil {
				txn.Instructions = append(txn.Instructions, ix)
				continue
			}
		}

		// Anything else is kept as an opaque instruction so callers see the
		// full instruction count.
		txn.Instructions = append(txn.Instructions, Instruction{})
	}

	return txn, nil
}

// parseSystemTransfer decodes a System Program Transfer instruction.
func parseSystemTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (Instruction, error) {
	// System Transfer instruction format:
	// [0..4]  = instruction type (u32, should be 2 for Transfer)
	// [4..12] = lamports (u64)

	if len(instruction.Data) < 12 {
		return Instruction{}, fmt.Errorf("instruction data too short: %d bytes", len(instruction.Data))
	}

	instructionType := binary.LittleEndian.Uint32(instruction.Data[0:4])
	if instructionType != SystemProgramTransferInstruction {
		return Instruction{}, fmt.Errorf("not a transfer instruction: type %d", instructionType)
	}

	ix := Instruction{
		Kind:   InstructionKindTransfer,
		Amount: binary.LittleEndian.Uint64(instruction.Data[4:12]),
	}

	// System Transfer accounts: [from, to]
	if len(instruction.Accounts) >= 1 {
		fromAccountIndex := instruction.Accounts[0]
		if int(fromAccountIndex) < len(accountKeys) {
			ix.Source = accountKeys[fromAccountIndex].String()
		}
	}

	return ix, nil
}

// parseTokenTransfer decodes an SPL Token Transfer or TransferChecked instruction.
func parseTokenTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) (Instruction, error) {
	if len(instruction.Data) == 0 {
		return Instruction{}, fmt.Errorf("empty instruction data")
	}

	switch instruction.Data[0] {
	case TokenProgramTransferInstruction:
		// Transfer instruction format:
		// [0]     = instruction type (u8, 3 = Transfer)
		// [1..9]  = amount (u64)
		if len(instruction.Data) < 9 {
			return Instruction{}, fmt.Errorf("transfer instruction data too short")
		}

		// Account layout for Transfer: [source, destination, authority]
		// Note: source is the token account, not the wallet owner, so we report
		// the authority (the signing wallet) as the sending address.
		ix := Instruction{
			Kind:   InstructionKindTransfer,
			Amount: binary.LittleEndian.Uint64(instruction.Data[1:9]),
		}
		if len(instruction.Accounts) >= 3 {
			authorityIndex := instruction.Accounts[2]
			if int(authorityIndex) < len(accountKeys) {
				ix.Source = accountKeys[authorityIndex].String()
			}
		}
		return ix, nil

	case TokenProgramTransferCheckedInstruction:
		// TransferChecked instruction format:
		// [0]      = instruction type (u8, 12 = TransferChecked)
		// [1..9]   = amount (u64)
		// [9]      = decimals (u8)
		if len(instruction.Data) < 10 {
			return Instruction{}, fmt.Errorf("transferChecked instruction data too short")
		}

		// Account layout: [source_token_account, mint, destination_token_account, authority, ...]
		if len(instruction.Accounts) < 4 {
			return Instruction{}, fmt.Errorf("transferChecked missing accounts")
		}

		ix := Instruction{
			Kind:   InstructionKindTransfer,
			Amount: binary.LittleEndian.Uint64(instruction.Data[1:9]),
		}

		mintAccountIndex := instruction.Accounts[1]
		if int(mintAccountIndex) >= len(accountKeys) {
			return Instruction{}, fmt.Errorf("mint account index out of bounds")
		}
		ix.Mint = accountKeys[mintAccountIndex].String()

		authorityIndex := instruction.Accounts[3]
		if int(authorityIndex) < len(accountKeys) {
			ix.Source = accountKeys[authorityIndex].String()
		}

		return ix, nil

	default:
		return Instruction{}, fmt.Errorf("unknown token instruction type: %d", instruction.Data[0])
	}
}
