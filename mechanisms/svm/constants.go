package svm

import "time"

// SchemeExact is the scheme identifier for exact SPL token payments.
const SchemeExact = "exact"

// CaipFamilySvm matches every Solana CAIP-2 network.
const CaipFamilySvm = "solana:*"

// CAIP-2 network identifiers (genesis hash prefixes).
const (
	NetworkSolanaMainnet = "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
	NetworkSolanaDevnet  = "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1"
)

// MemoProgramAddress is the SPL memo program. A memo with random content is
// appended to every payment so two payments for the same requirements never
// produce identical transactions.
const MemoProgramAddress = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

// Swig smart-wallet program addresses.
const (
	SwigProgramAddress        = "swigypWHEksbC64pWKwah1WTeh9JXwx8H1rJHLdbQMB"
	Secp256r1PrecompileAddress = "Secp256r1SigVerify1111111111111111111111111"
	// SwigSignV2Discriminator is the U16 LE discriminator of the Swig
	// signV2 instruction.
	SwigSignV2Discriminator uint16 = 10
)

// Compute budget instruction discriminators (first data byte).
const (
	ComputeUnitLimitDiscriminator byte = 2
	ComputeUnitPriceDiscriminator byte = 3
)

// Client-side compute budget defaults.
const (
	DefaultComputeUnitLimit               uint32 = 10_000
	DefaultComputeUnitPriceMicroLamports  uint64 = 1_000
)

// MaxComputeUnitPrice caps the priority fee a payer may attach, in lamports
// per compute unit. The facilitator pays transaction fees, so an unbounded
// price would let a client drain the fee payer.
const MaxComputeUnitPrice uint64 = 5

// Instruction count bounds for a payment transaction: compute limit, compute
// price and transfer are required; memo and Swig wrapping are optional.
const (
	MinPaymentInstructions = 3
	MaxPaymentInstructions = 6
)

// Settlement confirmation polling.
const (
	MaxConfirmAttempts = 30
	ConfirmRetryDelay  = time.Second
)

// Verification failure reasons.
const (
	ErrInvalidScheme           = "invalid_scheme"
	ErrInvalidNetwork          = "invalid_network"
	ErrMissingFeePayer         = "invalid_exact_solana_payload_missing_fee_payer"
	ErrInvalidTransaction      = "invalid_exact_solana_payload_transaction"
	ErrInstructionCount        = "invalid_exact_solana_payload_instruction_count"
	ErrComputeLimitInstruction = "invalid_exact_solana_payload_compute_unit_limit"
	ErrComputePriceInstruction = "invalid_exact_solana_payload_compute_unit_price"
	ErrComputePriceTooHigh     = "invalid_exact_solana_payload_compute_unit_price_too_high"
	ErrUnexpectedInstruction   = "invalid_exact_solana_payload_unexpected_instruction"
	ErrNoTransferInstruction   = "invalid_exact_solana_payload_no_transfer_instruction"
	ErrFeePayerIsAuthority     = "invalid_exact_solana_payload_fee_payer_transferring_funds"
	ErrMintMismatch            = "invalid_exact_solana_payload_mint_mismatch"
	ErrRecipientMismatch       = "invalid_exact_solana_payload_recipient_mismatch"
	ErrInsufficientAmount      = "invalid_exact_solana_payload_amount_insufficient"
	ErrSimulationFailed        = "invalid_exact_solana_payload_simulation_failed"
)

// V1Networks are the legacy alias names served by the v1 subpackage.
var V1Networks = []string{"solana", "solana-devnet"}

// V1ToV2NetworkMap maps legacy alias names to CAIP-2 identifiers.
var V1ToV2NetworkMap = map[string]string{
	"solana":        NetworkSolanaMainnet,
	"solana-devnet": NetworkSolanaDevnet,
}

// NetworkConfigs holds per-network settings, keyed by CAIP-2 identifier.
var NetworkConfigs = map[string]NetworkConfig{
	NetworkSolanaMainnet: {
		Name:   "solana",
		CAIP2:  NetworkSolanaMainnet,
		RPCURL: "https://api.mainnet-beta.solana.com",
		DefaultAsset: AssetInfo{
			Address:  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
	NetworkSolanaDevnet: {
		Name:   "solana-devnet",
		CAIP2:  NetworkSolanaDevnet,
		RPCURL: "https://api.devnet.solana.com",
		DefaultAsset: AssetInfo{
			Address:  "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
			Symbol:   "USDC",
			Decimals: 6,
		},
	},
}
