// Package hypercore implements the "exact" payment scheme on Hyperliquid's
// Hypercore ledger.
//
// Payments are spot sendAsset actions signed off-chain with EIP-712
// (HyperliquidSignTransaction domain, chain id 999). The client signs the
// action, the facilitator validates it against the payment requirements,
// recovers the payer from the signature, submits the action to the
// /exchange endpoint and resolves the transaction hash from the payer's
// ledger updates. Amounts are decimal strings; USDH (8 decimals) is the
// default asset.
package hypercore
