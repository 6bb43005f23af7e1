// Package svm provides keypair signer implementations for the Solana
// payment mechanism: a partial-signing client signer and an RPC-backed
// facilitator signer that co-signs, simulates, and submits payment
// transactions as the fee payer.
package svm

import (
	"context"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// SignTransactionFunc signs a Solana transaction in place.
type SignTransactionFunc func(ctx context.Context, tx *solana.Transaction) error

// ClientSigner implements x402svm.ClientSvmSigner with a signing callback,
// so hardware wallets and remote signers plug in the same way as raw keys.
type ClientSigner struct {
	publicKey       solana.PublicKey
	signTransaction SignTransactionFunc
}

// NewClientSigner creates a client signer from a public key and signing
// callback.
func NewClientSigner(publicKey solana.PublicKey, signFunc SignTransactionFunc) (*ClientSigner, error) {
	if publicKey.IsZero() {
		return nil, fmt.Errorf("public key is required")
	}
	if signFunc == nil {
		return nil, fmt.Errorf("sign callback is required")
	}
	return &ClientSigner{publicKey: publicKey, signTransaction: signFunc}, nil
}

// NewClientSignerFromPrivateKey creates a client signer from a
// base58-encoded private key.
func NewClientSignerFromPrivateKey(privateKeyBase58 string) (*ClientSigner, error) {
	privateKey, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewClientSigner(privateKey.PublicKey(), func(ctx context.Context, tx *solana.Transaction) error {
		return partialSign(privateKey, tx)
	})
}

// Address returns the signer's public key.
func (s *ClientSigner) Address() solana.PublicKey {
	return s.publicKey
}

// SignTransaction adds the payer's signature to the transaction, leaving
// other signature slots (the fee payer's) untouched.
func (s *ClientSigner) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	return s.signTransaction(ctx, tx)
}

// partialSign signs the transaction message with one key and places the
// signature at that key's slot, growing the signature list to the message's
// required count so serialization stays valid while other slots are empty.
func partialSign(privateKey solana.PrivateKey, tx *solana.Transaction) error {
	messageBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	signature, err := privateKey.Sign(messageBytes)
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}

	accountIndex, err := tx.GetAccountIndex(privateKey.PublicKey())
	if err != nil {
		return fmt.Errorf("signer %s not in transaction: %w", privateKey.PublicKey(), err)
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) < required {
		grown := make([]solana.Signature, required)
		copy(grown, tx.Signatures)
		tx.Signatures = grown
	}
	if int(accountIndex) >= len(tx.Signatures) {
		return fmt.Errorf("signer %s is not a required signer", privateKey.PublicKey())
	}
	tx.Signatures[accountIndex] = signature
	return nil
}
