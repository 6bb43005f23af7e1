// Package hypercore provides a private-key signer for the Hypercore
// payment mechanism.
package hypercore

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	x402evm "github.com/x402-foundation/x402-go/mechanisms/evm"
	x402hypercore "github.com/x402-foundation/x402-go/mechanisms/hypercore"
)

// ClientSigner implements x402hypercore.HyperliquidSigner with a raw ECDSA
// private key.
type ClientSigner struct {
	privateKey *ecdsa.PrivateKey
	address    string
}

// NewClientSignerFromPrivateKey creates a signer from a hex-encoded private
// key (with or without the "0x" prefix).
func NewClientSignerFromPrivateKey(privateKeyHex string) (*ClientSigner, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &ClientSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
	}, nil
}

// Address returns the signer's EVM address.
func (s *ClientSigner) Address() string {
	return s.address
}

// SignSendAsset signs a sendAsset action with the HyperliquidSignTransaction
// EIP-712 domain and returns the split signature.
func (s *ClientSigner) SignSendAsset(ctx context.Context, action x402hypercore.SendAssetAction) (x402hypercore.Signature, error) {
	domain, types, message := x402hypercore.SendAssetTypedData(action)
	digest, err := x402evm.HashTypedData(domain, types, "HyperliquidTransaction:SendAsset", message)
	if err != nil {
		return x402hypercore.Signature{}, fmt.Errorf("failed to hash action: %w", err)
	}

	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return x402hypercore.Signature{}, fmt.Errorf("failed to sign: %w", err)
	}

	return x402hypercore.Signature{
		R: "0x" + hex.EncodeToString(signature[0:32]),
		S: "0x" + hex.EncodeToString(signature[32:64]),
		V: int(signature[64]) + 27,
	}, nil
}
