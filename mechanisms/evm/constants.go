package evm

import (
	"math/big"
)

const (
	// SchemeExact is the scheme identifier this package implements.
	SchemeExact = "exact"

	// CaipFamilyEvm is the network family pattern served by this mechanism.
	CaipFamilyEvm = "eip155:*"

	// DefaultDecimals is the decimal count for USDC.
	DefaultDecimals = 6

	// EIP-3009 function names.
	FunctionTransferWithAuthorization = "transferWithAuthorization"
	FunctionAuthorizationState        = "authorizationState"

	// Transaction receipt status.
	TxStatusSuccess = 1
	TxStatusFailed  = 0

	// DefaultValidityPeriod is the authorization lifetime in seconds when the
	// requirements carry no timeout.
	DefaultValidityPeriod = 3600

	// ERC6492MagicValue is the suffix marking a wrapped counterfactual
	// signature: bytes32(uint256(keccak256("erc6492.invalid.signature")) - 1).
	ERC6492MagicValue = "0x6492649264926492649264926492649264926492649264926492649264926492"

	// EIP1271MagicValue is returned by isValidSignature on success.
	EIP1271MagicValue = "0x1626ba7e"

	// UniversalSigValidatorAddress is the ERC-6492 reference validator
	// singleton, deployed at the same address on all EVM chains.
	UniversalSigValidatorAddress = "0x164af34fAF9879394370C7f09064127C043A35E9"

	// Error reasons surfaced in verify/settle responses.
	ErrInvalidSignature      = "invalid_exact_evm_payload_signature"
	ErrUndeployedSmartWallet = "invalid_exact_evm_payload_undeployed_smart_wallet"
	ErrInvalidAuthorization  = "invalid_exact_evm_payload_authorization"
	ErrNonceAlreadyUsed      = "exact_evm_nonce_already_used"
	ErrInsufficientBalance   = "insufficient_funds"
	ErrInsufficientAmount    = "insufficient_amount"
	ErrRecipientMismatch     = "recipient_mismatch"
	ErrAuthorizationExpired  = "authorization_expired"
	ErrAuthorizationNotYet   = "authorization_not_yet_valid"
)

var (
	// Chain IDs for the networks configured out of the box.
	ChainIDBase        = big.NewInt(8453)
	ChainIDBaseSepolia = big.NewInt(84532)

	// NetworkConfigs maps both CAIP-2 identifiers and legacy v1 aliases to
	// their chain configuration. The default asset is the chain's canonical
	// EIP-3009 stablecoin.
	NetworkConfigs = map[string]NetworkConfig{
		"eip155:8453": {
			ChainID: ChainIDBase,
			DefaultAsset: AssetInfo{
				Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", // USDC on Base
				Name:     "USD Coin",
				Version:  "2",
				Decimals: DefaultDecimals,
			},
		},
		"base": {
			ChainID: ChainIDBase,
			DefaultAsset: AssetInfo{
				Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
				Name:     "USD Coin",
				Version:  "2",
				Decimals: DefaultDecimals,
			},
		},
		"eip155:84532": {
			ChainID: ChainIDBaseSepolia,
			DefaultAsset: AssetInfo{
				Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e", // USDC on Base Sepolia
				Name:     "USDC",
				Version:  "2",
				Decimals: DefaultDecimals,
			},
		},
		"base-sepolia": {
			ChainID: ChainIDBaseSepolia,
			DefaultAsset: AssetInfo{
				Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
				Name:     "USDC",
				Version:  "2",
				Decimals: DefaultDecimals,
			},
		},
	}

	// TransferWithAuthorizationABI is the EIP-3009 transfer entrypoint with
	// split v,r,s signature components (EOA signatures).
	TransferWithAuthorizationABI = []byte(`[
		{
			"inputs": [
				{"name": "from", "type": "address"},
				{"name": "to", "type": "address"},
				{"name": "value", "type": "uint256"},
				{"name": "validAfter", "type": "uint256"},
				{"name": "validBefore", "type": "uint256"},
				{"name": "nonce", "type": "bytes32"},
				{"name": "v", "type": "uint8"},
				{"name": "r", "type": "bytes32"},
				{"name": "s", "type": "bytes32"}
			],
			"name": "transferWithAuthorization",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		}
	]`)

	// TransferWithAuthorizationBytesABI is the variant taking an opaque bytes
	// signature, used for smart wallet (EIP-1271) settlements.
	TransferWithAuthorizationBytesABI = []byte(`[
		{
			"inputs": [
				{"name": "from", "type": "address"},
				{"name": "to", "type": "address"},
				{"name": "value", "type": "uint256"},
				{"name": "validAfter", "type": "uint256"},
				{"name": "validBefore", "type": "uint256"},
				{"name": "nonce", "type": "bytes32"},
				{"name": "signature", "type": "bytes"}
			],
			"name": "transferWithAuthorization",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		}
	]`)

	// AuthorizationStateABI checks whether an EIP-3009 nonce is spent.
	AuthorizationStateABI = []byte(`[
		{
			"inputs": [
				{"name": "authorizer", "type": "address"},
				{"name": "nonce", "type": "bytes32"}
			],
			"name": "authorizationState",
			"outputs": [{"name": "", "type": "bool"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)

	// ERC20BalanceOfABI reads the payer's token balance.
	ERC20BalanceOfABI = []byte(`[
		{
			"inputs": [
				{"name": "account", "type": "address"}
			],
			"name": "balanceOf",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)

	// UniversalSigValidatorABI is the ERC-6492 reference validator. isValidSig
	// simulates counterfactual deployment and verifies EIP-1271 signatures in
	// one eth_call.
	UniversalSigValidatorABI = []byte(`[
		{
			"inputs": [
				{"name": "_signer", "type": "address"},
				{"name": "_hash", "type": "bytes32"},
				{"name": "_signature", "type": "bytes"}
			],
			"name": "isValidSig",
			"outputs": [{"name": "", "type": "bool"}],
			"stateMutability": "nonpayable",
			"type": "function"
		}
	]`)
)
