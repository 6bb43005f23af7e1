// Package evm implements the "exact" payment scheme for EVM networks using
// EIP-3009 transferWithAuthorization.
//
// The client half signs an EIP-712 TransferWithAuthorization message over the
// payment amount, recipient, validity window, and a random 32-byte nonce. The
// facilitator half verifies the signature (EOA via ecrecover, smart wallets
// via ERC-1271/ERC-6492), checks the authorization against the requirements
// and on-chain state, and settles by submitting transferWithAuthorization
// from a facilitator-controlled account. The payer never spends gas.
//
// Concrete networks are identified by CAIP-2 ("eip155:8453"); the v1
// subpackage serves the legacy alias names ("base", "base-sepolia").
package evm
