package hypercore

import "time"

// SchemeExact is the scheme identifier for exact sendAsset payments.
const SchemeExact = "exact"

// CaipFamilyHypercore matches every Hypercore network.
const CaipFamilyHypercore = "hypercore:*"

// Network identifiers.
const (
	NetworkMainnet = "hypercore:mainnet"
	NetworkTestnet = "hypercore:testnet"
)

// EIP-712 signing parameters. Hyperliquid signs user actions against the
// HyperliquidSignTransaction domain on chain id 999 regardless of the
// network the action targets.
const (
	SignatureChainID    = 999
	SignatureChainIDHex = "0x3e7"
)

// MaxNonceAgeSeconds bounds how old an action nonce (a millisecond
// timestamp) may be at verification time.
const MaxNonceAgeSeconds = 3600

// Hyperliquid API endpoints.
const (
	HyperliquidAPIMainnet = "https://api.hyperliquid.xyz"
	HyperliquidAPITestnet = "https://api.hyperliquid-testnet.xyz"
)

// Transaction hash lookup after settlement submission.
const (
	TxHashMaxRetries     = 2
	TxHashRetryDelay     = 500 * time.Millisecond
	TxHashLookbackWindow = 5000 * time.Millisecond
)

// Verification failure reasons.
const (
	ErrInvalidScheme           = "invalid_scheme"
	ErrInvalidNetwork          = "invalid_network"
	ErrInvalidPayloadStructure = "invalid_payload_structure"
	ErrInvalidActionType       = "invalid_action_type"
	ErrDestinationMismatch     = "destination_mismatch"
	ErrInvalidAmountFormat     = "invalid_amount_format"
	ErrInsufficientAmount      = "insufficient_amount"
	ErrTokenMismatch           = "token_mismatch"
	ErrNonceTooOld             = "nonce_too_old"
	ErrInvalidSignature        = "invalid_signature_structure"
	ErrSettlementFailed        = "settlement_failed"
)

// NetworkConfigs holds per-network settings.
var NetworkConfigs = map[string]NetworkConfig{
	NetworkMainnet: {
		APIURL: HyperliquidAPIMainnet,
		DefaultAsset: AssetInfo{
			Token:    "USDH:0x54e00a5988577cb0b0c9ab0cb6ef7f4b",
			Name:     "USDH",
			Decimals: 8,
		},
	},
	NetworkTestnet: {
		APIURL: HyperliquidAPITestnet,
		DefaultAsset: AssetInfo{
			Token:    "USDH:0x471fd4480bb9943a1fe080ab0d4ff36c",
			Name:     "USDH",
			Decimals: 8,
		},
	},
}
