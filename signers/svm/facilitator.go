package svm

import (
	"context"
	"fmt"
	"sync"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	x402 "github.com/x402-foundation/x402-go"
	x402svm "github.com/x402-foundation/x402-go/mechanisms/svm"
)

// FacilitatorSigner implements x402svm.FacilitatorSvmSigner with a fee
// payer keypair and per-network RPC connections.
type FacilitatorSigner struct {
	privateKey solana.PrivateKey

	mu         sync.Mutex
	rpcURLs    map[string]string
	rpcClients map[string]*rpc.Client
}

// FacilitatorSignerConfig holds optional per-network RPC endpoint
// overrides, keyed by CAIP-2 identifier or legacy alias.
type FacilitatorSignerConfig struct {
	RPCURLs map[string]string
}

// NewFacilitatorSigner creates a facilitator signer from a base58-encoded
// fee payer private key.
func NewFacilitatorSigner(privateKeyBase58 string, config ...FacilitatorSignerConfig) (*FacilitatorSigner, error) {
	privateKey, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	signer := &FacilitatorSigner{
		privateKey: privateKey,
		rpcURLs:    map[string]string{},
		rpcClients: map[string]*rpc.Client{},
	}
	if len(config) > 0 {
		for network, url := range config[0].RPCURLs {
			signer.rpcURLs[network] = url
		}
	}
	return signer, nil
}

// GetAddresses returns the fee payer public key for the network.
func (s *FacilitatorSigner) GetAddresses(network x402.Network) []solana.PublicKey {
	return []solana.PublicKey{s.privateKey.PublicKey()}
}

// SignTransaction adds the fee payer's signature to the transaction.
func (s *FacilitatorSigner) SignTransaction(ctx context.Context, tx *solana.Transaction, feePayer solana.PublicKey, network x402.Network) error {
	if !feePayer.Equals(s.privateKey.PublicKey()) {
		return fmt.Errorf("fee payer %s is not this signer", feePayer)
	}
	return partialSign(s.privateKey, tx)
}

// SimulateTransaction simulates the fully signed transaction with
// signature verification enabled.
func (s *FacilitatorSigner) SimulateTransaction(ctx context.Context, tx *solana.Transaction, network x402.Network) error {
	client, err := s.rpcFor(network)
	if err != nil {
		return err
	}

	result, err := client.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:  true,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return fmt.Errorf("simulation request failed: %w", err)
	}
	if result.Value != nil && result.Value.Err != nil {
		return fmt.Errorf("simulation failed: %v", result.Value.Err)
	}
	return nil
}

// SendTransaction broadcasts the transaction. Preflight is skipped because
// verification already simulated it.
func (s *FacilitatorSigner) SendTransaction(ctx context.Context, tx *solana.Transaction, network x402.Network) (solana.Signature, error) {
	client, err := s.rpcFor(network)
	if err != nil {
		return solana.Signature{}, err
	}
	return client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight: true,
	})
}

// ConfirmTransaction polls signature statuses until the transaction is
// confirmed, fails, or the attempt budget runs out.
func (s *FacilitatorSigner) ConfirmTransaction(ctx context.Context, signature solana.Signature, network x402.Network) error {
	client, err := s.rpcFor(network)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < x402svm.MaxConfirmAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(x402svm.ConfirmRetryDelay):
			}
		}

		statuses, err := client.GetSignatureStatuses(ctx, true, signature)
		if err != nil || statuses == nil || len(statuses.Value) == 0 || statuses.Value[0] == nil {
			continue
		}
		status := statuses.Value[0]
		if status.Err != nil {
			return fmt.Errorf("transaction failed: %v", status.Err)
		}
		if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			return nil
		}
	}

	return fmt.Errorf("transaction %s not confirmed after %d attempts", signature, x402svm.MaxConfirmAttempts)
}

// rpcFor returns (and caches) the RPC client for a network, preferring
// configured overrides over the network defaults.
func (s *FacilitatorSigner) rpcFor(network x402.Network) (*rpc.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(network)
	if client, ok := s.rpcClients[key]; ok {
		return client, nil
	}

	url, ok := s.rpcURLs[key]
	if !ok {
		config, err := x402svm.GetNetworkConfig(key)
		if err != nil {
			return nil, err
		}
		url = config.RPCURL
	}

	client := rpc.New(url)
	s.rpcClients[key] = client
	return client, nil
}
