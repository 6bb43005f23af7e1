package hypercore

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	x402 "github.com/x402-foundation/x402-go"
	"github.com/x402-foundation/x402-go/mechanisms/evm"
)

// ExactHypercoreFacilitator verifies and settles sendAsset payments. It
// holds no keys: settlement submits the payer-signed action to the
// Hyperliquid API.
type ExactHypercoreFacilitator struct {
	apiURL     string
	httpClient *http.Client
}

// NewExactHypercoreFacilitator creates the facilitator mechanism. An
// optional apiURL overrides the per-network API endpoints.
func NewExactHypercoreFacilitator(apiURL ...string) *ExactHypercoreFacilitator {
	f := &ExactHypercoreFacilitator{httpClient: http.DefaultClient}
	if len(apiURL) > 0 {
		f.apiURL = apiURL[0]
	}
	return f
}

// Scheme returns the scheme identifier.
func (f *ExactHypercoreFacilitator) Scheme() string {
	return SchemeExact
}

// CaipFamily returns the network family pattern.
func (f *ExactHypercoreFacilitator) CaipFamily() string {
	return CaipFamilyHypercore
}

// GetExtra returns nil; the scheme advertises no kind metadata.
func (f *ExactHypercoreFacilitator) GetExtra(network x402.Network) map[string]interface{} {
	return nil
}

// GetSigners returns no addresses; the payer's own signature settles the
// payment.
func (f *ExactHypercoreFacilitator) GetSigners(network x402.Network) []string {
	return []string{}
}

func (f *ExactHypercoreFacilitator) networkAPIURL(network string) string {
	if f.apiURL != "" {
		return f.apiURL
	}
	if config, ok := NetworkConfigs[network]; ok {
		return config.APIURL
	}
	return HyperliquidAPIMainnet
}

// Verify checks a payment payload against requirements: action shape,
// destination, amount, token, nonce freshness, and that the signature
// recovers to a payer address.
func (f *ExactHypercoreFacilitator) Verify(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.VerifyResponse, error) {
	if payload.X402Version != 2 {
		return invalid(fmt.Sprintf("unsupported x402 version: %d", payload.X402Version)), nil
	}
	if payload.Accepted.Scheme != SchemeExact {
		return invalid(ErrInvalidScheme), nil
	}
	if payload.Accepted.Network != requirements.Network {
		return invalid(fmt.Sprintf("%s: %s", ErrInvalidNetwork, payload.Accepted.Network)), nil
	}

	config, err := GetNetworkConfig(string(requirements.Network))
	if err != nil {
		return invalid(fmt.Sprintf("%s: %s", ErrInvalidNetwork, requirements.Network)), nil
	}

	hypercorePayload, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return invalid(fmt.Sprintf("%s: %v", ErrInvalidPayloadStructure, err)), nil
	}

	if hypercorePayload.Action.Type != "sendAsset" {
		return invalid(fmt.Sprintf("%s: %s", ErrInvalidActionType, hypercorePayload.Action.Type)), nil
	}
	if !strings.EqualFold(hypercorePayload.Action.Destination, requirements.PayTo) {
		return invalid(ErrDestinationMismatch), nil
	}

	payloadAmount, err := ParseAmountToInteger(hypercorePayload.Action.Amount, config.DefaultAsset.Decimals)
	if err != nil {
		return invalid(ErrInvalidAmountFormat), nil
	}
	requiredAmount, ok := new(big.Int).SetString(requirements.Amount, 10)
	if !ok {
		return invalid(ErrInvalidAmountFormat), nil
	}
	if payloadAmount.Cmp(requiredAmount) < 0 {
		return invalid(ErrInsufficientAmount), nil
	}

	if requirements.Asset != "" && hypercorePayload.Action.Token != requirements.Asset {
		return invalid(ErrTokenMismatch), nil
	}

	if !IsNonceFresh(hypercorePayload.Nonce, MaxNonceAgeSeconds*time.Second) {
		return invalid(ErrNonceTooOld), nil
	}

	if hypercorePayload.Signature.R == "" || hypercorePayload.Signature.S == "" {
		return invalid(ErrInvalidSignature), nil
	}
	payer, err := RecoverPayer(hypercorePayload.Action, hypercorePayload.Signature)
	if err != nil {
		return invalid(fmt.Sprintf("%s: %v", ErrInvalidSignature, err)), nil
	}

	return x402.VerifyResponse{IsValid: true, Payer: payer}, nil
}

// Settle verifies the payment, submits the signed action to the /exchange
// endpoint and resolves the resulting transaction hash from the payer's
// ledger updates.
func (f *ExactHypercoreFacilitator) Settle(
	ctx context.Context,
	payload x402.PaymentPayload,
	requirements x402.PaymentRequirements,
) (x402.SettleResponse, error) {
	verifyResponse, err := f.Verify(ctx, payload, requirements)
	if err != nil {
		return x402.SettleResponse{}, err
	}
	if !verifyResponse.IsValid {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: verifyResponse.InvalidReason,
			Network:     requirements.Network,
		}, nil
	}

	hypercorePayload, err := PayloadFromMap(payload.Payload)
	if err != nil {
		return x402.SettleResponse{}, err
	}
	apiURL := f.networkAPIURL(string(requirements.Network))
	startTime := time.Now()

	submitPayload := map[string]interface{}{
		"action":       hypercorePayload.Action,
		"nonce":        hypercorePayload.Nonce,
		"signature":    hypercorePayload.Signature,
		"vaultAddress": nil,
	}
	body, err := json.Marshal(submitPayload)
	if err != nil {
		return x402.SettleResponse{}, fmt.Errorf("failed to marshal exchange payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/exchange", bytes.NewReader(body))
	if err != nil {
		return x402.SettleResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := f.httpClient.Do(request)
	if err != nil {
		return x402.SettleResponse{}, fmt.Errorf("failed to submit to hyperliquid: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return x402.SettleResponse{}, fmt.Errorf("hyperliquid API error: %d", response.StatusCode)
	}

	var apiResponse exchangeResponse
	if err := json.NewDecoder(response.Body).Decode(&apiResponse); err != nil {
		return x402.SettleResponse{}, fmt.Errorf("failed to decode exchange response: %w", err)
	}
	if apiResponse.Status != "ok" {
		return x402.SettleResponse{
			Success:     false,
			ErrorReason: ErrSettlementFailed,
			Network:     requirements.Network,
		}, nil
	}

	txHash, err := f.findTransactionHash(
		ctx,
		apiURL,
		verifyResponse.Payer,
		hypercorePayload.Action.Destination,
		hypercorePayload.Nonce,
		startTime,
	)
	if err != nil {
		return x402.SettleResponse{}, fmt.Errorf("failed to resolve transaction hash: %w", err)
	}

	return x402.SettleResponse{
		Success:     true,
		Transaction: txHash,
		Network:     requirements.Network,
		Payer:       verifyResponse.Payer,
	}, nil
}

// findTransactionHash polls the payer's non-funding ledger updates for the
// send matching the action's destination and nonce.
func (f *ExactHypercoreFacilitator) findTransactionHash(
	ctx context.Context,
	apiURL string,
	user string,
	destination string,
	nonce int64,
	startTime time.Time,
) (string, error) {
	for attempt := 0; attempt < TxHashMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(TxHashRetryDelay):
			}
		}

		queryPayload := map[string]interface{}{
			"type":      "userNonFundingLedgerUpdates",
			"user":      user,
			"startTime": startTime.Add(-TxHashLookbackWindow).UnixMilli(),
		}
		body, err := json.Marshal(queryPayload)
		if err != nil {
			continue
		}

		request, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/info", bytes.NewReader(body))
		if err != nil {
			continue
		}
		request.Header.Set("Content-Type", "application/json")

		response, err := f.httpClient.Do(request)
		if err != nil {
			continue
		}
		responseBody, err := io.ReadAll(response.Body)
		response.Body.Close()
		if err != nil {
			continue
		}

		var updates []LedgerUpdate
		if err := json.Unmarshal(responseBody, &updates); err != nil {
			continue
		}
		for _, update := range updates {
			if update.Delta.Type == "send" &&
				update.Delta.Destination != nil &&
				strings.EqualFold(*update.Delta.Destination, destination) &&
				update.Delta.Nonce != nil &&
				*update.Delta.Nonce == nonce {
				return update.Hash, nil
			}
		}
	}

	return "", fmt.Errorf("transaction hash not found after %d attempts", TxHashMaxRetries)
}

// SendAssetTypedData returns the EIP-712 domain, types, and message for a
// sendAsset action. Shared by signing and payer recovery.
func SendAssetTypedData(action SendAssetAction) (evm.TypedDataDomain, map[string][]evm.TypedDataField, map[string]interface{}) {
	domain := evm.TypedDataDomain{
		Name:              "HyperliquidSignTransaction",
		Version:           "1",
		ChainID:           big.NewInt(SignatureChainID),
		VerifyingContract: "0x0000000000000000000000000000000000000000",
	}
	types := map[string][]evm.TypedDataField{
		"HyperliquidTransaction:SendAsset": {
			{Name: "hyperliquidChain", Type: "string"},
			{Name: "destination", Type: "string"},
			{Name: "sourceDex", Type: "string"},
			{Name: "destinationDex", Type: "string"},
			{Name: "token", Type: "string"},
			{Name: "amount", Type: "string"},
			{Name: "fromSubAccount", Type: "string"},
			{Name: "nonce", Type: "uint64"},
		},
	}
	// uint64 fields must be passed as decimal strings for hashing.
	message := map[string]interface{}{
		"hyperliquidChain": action.HyperliquidChain,
		"destination":      action.Destination,
		"sourceDex":        action.SourceDex,
		"destinationDex":   action.DestinationDex,
		"token":            action.Token,
		"amount":           action.Amount,
		"fromSubAccount":   action.FromSubAccount,
		"nonce":            fmt.Sprintf("%d", action.Nonce),
	}
	return domain, types, message
}

// RecoverPayer recovers the signing address from a sendAsset action and its
// signature.
func RecoverPayer(action SendAssetAction, signature Signature) (string, error) {
	domain, types, message := SendAssetTypedData(action)
	hash, err := evm.HashTypedData(domain, types, "HyperliquidTransaction:SendAsset", message)
	if err != nil {
		return "", fmt.Errorf("failed to hash typed data: %w", err)
	}

	rBytes, err := hex.DecodeString(strings.TrimPrefix(signature.R, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid r value: %w", err)
	}
	sBytes, err := hex.DecodeString(strings.TrimPrefix(signature.S, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid s value: %w", err)
	}
	if len(rBytes) != 32 || len(sBytes) != 32 {
		return "", fmt.Errorf("signature components must be 32 bytes")
	}

	v := byte(signature.V)
	if v >= 27 {
		v -= 27
	}
	sig := append(append(rBytes, sBytes...), v)

	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pubKey).Hex(), nil
}

func invalid(reason string) x402.VerifyResponse {
	return x402.VerifyResponse{IsValid: false, InvalidReason: reason}
}
