// Package svm implements the "exact" payment scheme for Solana networks.
//
// The client half assembles a partially signed SPL TransferChecked
// transaction (compute budget, transfer, and a random memo for uniqueness)
// whose fee payer is the facilitator. The facilitator half decodes the
// transaction, validates its instruction layout against the payment
// requirements, co-signs as fee payer, simulates it during verification and
// broadcasts it during settlement. Swig smart-wallet transactions are
// supported by flattening their embedded compact instructions before
// validation.
//
// Networks use CAIP-2 identifiers ("solana:<genesis-hash-prefix>"); the v1
// subpackage serves the legacy alias names.
package svm
