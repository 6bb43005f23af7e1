package x402

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/x402-foundation/x402-go/types"
)

// X402Facilitator verifies and settles payments. It is the decode point of
// the protocol: wire bytes come in, version is detected, both v1 and v2
// shapes are converted to the canonical form, and the structured mechanism
// registered for (version, network, scheme) does the rest.
type X402Facilitator struct {
	mu         sync.RWMutex
	schemes    map[int]map[Network]map[string]SchemeNetworkFacilitator
	extensions []string

	beforeVerifyHooks    []FacilitatorBeforeVerifyHook
	afterVerifyHooks     []FacilitatorAfterVerifyHook
	onVerifyFailureHooks []FacilitatorOnVerifyFailureHook
	beforeSettleHooks    []FacilitatorBeforeSettleHook
	afterSettleHooks     []FacilitatorAfterSettleHook
	onSettleFailureHooks []FacilitatorOnSettleFailureHook
}

// Newx402Facilitator creates an empty facilitator.
func Newx402Facilitator() *X402Facilitator {
	return &X402Facilitator{
		schemes:    make(map[int]map[Network]map[string]SchemeNetworkFacilitator),
		extensions: []string{},
	}
}

// Register registers a v2 mechanism under each of the given networks or
// patterns.
func (f *X402Facilitator) Register(networks []Network, mechanism SchemeNetworkFacilitator) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, network := range networks {
		registerScheme(f.schemes, 2, network, mechanism.Scheme(), mechanism)
	}
	return f
}

// RegisterV1 registers a legacy v1 mechanism under each of the given alias
// networks.
func (f *X402Facilitator) RegisterV1(networks []Network, mechanism SchemeNetworkFacilitator) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, network := range networks {
		registerScheme(f.schemes, 1, network, mechanism.Scheme(), mechanism)
	}
	return f
}

// RegisterExtension declares support for a protocol extension. Duplicate
// registrations are ignored.
func (f *X402Facilitator) RegisterExtension(extension string) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ext := range f.extensions {
		if ext == extension {
			return f
		}
	}
	f.extensions = append(f.extensions, extension)
	return f
}

// OnBeforeVerify registers a hook to run before mechanism verification.
func (f *X402Facilitator) OnBeforeVerify(hook FacilitatorBeforeVerifyHook) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeVerifyHooks = append(f.beforeVerifyHooks, hook)
	return f
}

// OnAfterVerify registers a hook to run after successful verification.
func (f *X402Facilitator) OnAfterVerify(hook FacilitatorAfterVerifyHook) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterVerifyHooks = append(f.afterVerifyHooks, hook)
	return f
}

// OnVerifyFailure registers a hook to run when verification fails.
func (f *X402Facilitator) OnVerifyFailure(hook FacilitatorOnVerifyFailureHook) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onVerifyFailureHooks = append(f.onVerifyFailureHooks, hook)
	return f
}

// OnBeforeSettle registers a hook to run before mechanism settlement.
func (f *X402Facilitator) OnBeforeSettle(hook FacilitatorBeforeSettleHook) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeSettleHooks = append(f.beforeSettleHooks, hook)
	return f
}

// OnAfterSettle registers a hook to run after successful settlement.
func (f *X402Facilitator) OnAfterSettle(hook FacilitatorAfterSettleHook) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.afterSettleHooks = append(f.afterSettleHooks, hook)
	return f
}

// OnSettleFailure registers a hook to run when settlement fails.
func (f *X402Facilitator) OnSettleFailure(hook FacilitatorOnSettleFailureHook) *X402Facilitator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSettleFailureHooks = append(f.onSettleFailureHooks, hook)
	return f
}

// Verify verifies a payment. Decode errors and routing misses yield an
// invalid verdict, not a transport error; mechanism errors run the failure
// hooks before surfacing.
func (f *X402Facilitator) Verify(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (VerifyResponse, error) {
	payload, requirements, invalidReason := f.decodePair(payloadBytes, requirementsBytes)
	if invalidReason != "" {
		return VerifyResponse{IsValid: false, InvalidReason: invalidReason}, nil
	}

	if reason := payloadMatchesRequirements(payload, requirements); reason != "" {
		return VerifyResponse{IsValid: false, InvalidReason: reason}, nil
	}

	f.mu.RLock()
	beforeHooks := f.beforeVerifyHooks
	afterHooks := f.afterVerifyHooks
	failureHooks := f.onVerifyFailureHooks
	f.mu.RUnlock()

	hookCtx := FacilitatorVerifyContext{
		Ctx:                 ctx,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
		Timestamp:           time.Now(),
	}

	for _, hook := range beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return VerifyResponse{IsValid: false, InvalidReason: err.Error()}, err
		}
		if result != nil && result.Abort {
			return VerifyResponse{IsValid: false, InvalidReason: result.Reason}, nil
		}
	}

	mechanism := f.findMechanism(payload.X402Version, requirements.Network, requirements.Scheme)
	if mechanism == nil {
		// The stable reason string, so callers can branch without parsing.
		return VerifyResponse{
			IsValid:       false,
			InvalidReason: ErrCodeSchemeNotFound,
		}, nil
	}

	verifyResult, verifyErr := mechanism.Verify(ctx, payload, requirements)

	if verifyErr != nil {
		failureCtx := FacilitatorVerifyFailureContext{FacilitatorVerifyContext: hookCtx, Error: verifyErr}
		for _, hook := range failureHooks {
			result, err := hook(failureCtx)
			if err != nil {
				return VerifyResponse{}, err
			}
			if result != nil && result.Recovered {
				return result.Result, nil
			}
		}
		return verifyResult, verifyErr
	}

	resultCtx := FacilitatorVerifyResultContext{FacilitatorVerifyContext: hookCtx, Result: verifyResult}
	for _, hook := range afterHooks {
		// After-hook errors never change the verdict.
		_ = hook(resultCtx)
	}

	return verifyResult, nil
}

// Settle settles a payment. The same decode, routing, and hook pipeline as
// Verify, with failed-settlement semantics on errors.
func (f *X402Facilitator) Settle(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (SettleResponse, error) {
	payload, requirements, invalidReason := f.decodePair(payloadBytes, requirementsBytes)
	if invalidReason != "" {
		return SettleResponse{Success: false, ErrorReason: invalidReason, Network: requirements.Network}, nil
	}

	if reason := payloadMatchesRequirements(payload, requirements); reason != "" {
		return SettleResponse{Success: false, ErrorReason: reason, Network: requirements.Network}, nil
	}

	f.mu.RLock()
	beforeHooks := f.beforeSettleHooks
	afterHooks := f.afterSettleHooks
	failureHooks := f.onSettleFailureHooks
	f.mu.RUnlock()

	hookCtx := FacilitatorSettleContext{
		Ctx:                 ctx,
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
		Timestamp:           time.Now(),
	}

	for _, hook := range beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return SettleResponse{Success: false, ErrorReason: err.Error(), Network: requirements.Network}, err
		}
		if result != nil && result.Abort {
			return SettleResponse{
				Success:     false,
				ErrorReason: result.Reason,
				Network:     requirements.Network,
			}, nil
		}
	}

	mechanism := f.findMechanism(payload.X402Version, requirements.Network, requirements.Scheme)
	if mechanism == nil {
		return SettleResponse{
			Success:     false,
			ErrorReason: ErrCodeSchemeNotFound,
			Network:     requirements.Network,
		}, nil
	}

	settleResult, settleErr := mechanism.Settle(ctx, payload, requirements)

	if settleErr != nil {
		failureCtx := FacilitatorSettleFailureContext{FacilitatorSettleContext: hookCtx, Error: settleErr}
		for _, hook := range failureHooks {
			result, err := hook(failureCtx)
			if err != nil {
				return SettleResponse{}, err
			}
			if result != nil && result.Recovered {
				return result.Result, nil
			}
		}
		return settleResult, settleErr
	}

	resultCtx := FacilitatorSettleResultContext{FacilitatorSettleContext: hookCtx, Result: settleResult}
	for _, hook := range afterHooks {
		_ = hook(resultCtx)
	}

	return settleResult, nil
}

// GetSupported enumerates the facilitator's capabilities. Wildcard
// registrations route payments but are not advertised; only concrete
// networks appear as kinds.
func (f *X402Facilitator) GetSupported() SupportedResponse {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var kinds []SupportedKind
	signers := make(map[string][]string)

	for _, version := range []int{1, 2} {
		versionMap, ok := f.schemes[version]
		if !ok {
			continue
		}
		for network, schemeMap := range versionMap {
			if network.IsWildcard() {
				continue
			}
			for scheme, mechanism := range schemeMap {
				kind := SupportedKind{
					X402Version: version,
					Scheme:      scheme,
					Network:     network,
				}
				if extra := mechanism.GetExtra(network); extra != nil {
					kind.Extra = extra
				}
				kinds = append(kinds, kind)

				if addrs := mechanism.GetSigners(network); len(addrs) > 0 {
					signers[string(network)] = addrs
				}
			}
		}
	}

	resp := SupportedResponse{
		Kinds:      kinds,
		Extensions: append([]string{}, f.extensions...),
	}
	if len(signers) > 0 {
		resp.Signers = signers
	}
	return resp
}

// decodePair turns wire bytes into canonical forms. A non-empty third
// return value is the invalid reason for undecodable input.
func (f *X402Facilitator) decodePair(payloadBytes, requirementsBytes []byte) (PaymentPayload, PaymentRequirements, string) {
	version, err := types.DetectVersion(payloadBytes)
	if err != nil {
		return PaymentPayload{}, PaymentRequirements{}, "invalid payment header format"
	}

	switch version {
	case 1:
		payloadV1, err := types.ToPaymentPayloadV1(payloadBytes)
		if err != nil {
			return PaymentPayload{}, PaymentRequirements{}, "invalid v1 payload"
		}
		requirementsV1, err := types.ToPaymentRequirementsV1(requirementsBytes)
		if err != nil {
			return PaymentPayload{}, PaymentRequirements{}, "invalid v1 requirements"
		}
		return PaymentPayload{
			X402Version: 1,
			Payload:     payloadV1.Payload,
			Scheme:      payloadV1.Scheme,
			Network:     Network(payloadV1.Network),
		}, requirementsFromV1(*requirementsV1), ""

	case 2:
		var payload PaymentPayload
		if err := json.Unmarshal(payloadBytes, &payload); err != nil {
			return PaymentPayload{}, PaymentRequirements{}, "invalid v2 payload"
		}
		var requirements PaymentRequirements
		if err := json.Unmarshal(requirementsBytes, &requirements); err != nil {
			return PaymentPayload{}, PaymentRequirements{}, "invalid v2 requirements"
		}
		if err := ValidatePaymentPayload(payload); err != nil {
			return PaymentPayload{}, PaymentRequirements{}, err.Error()
		}
		return payload, requirements, ""

	default:
		return PaymentPayload{}, PaymentRequirements{}, fmt.Sprintf("unsupported x402 version: %d", version)
	}
}

// payloadMatchesRequirements checks that the payment was created for the
// requirements it is being verified against.
func payloadMatchesRequirements(payload PaymentPayload, requirements PaymentRequirements) string {
	switch payload.X402Version {
	case 1:
		if payload.Scheme != requirements.Scheme || payload.Network != requirements.Network {
			return "payment payload does not match requirements"
		}
	case 2:
		if payload.Accepted.Scheme != requirements.Scheme || payload.Accepted.Network != requirements.Network {
			return "payment payload does not match requirements"
		}
	}
	return ""
}

func (f *X402Facilitator) findMechanism(version int, network Network, scheme string) SchemeNetworkFacilitator {
	f.mu.RLock()
	defer f.mu.RUnlock()
	mechanism, ok := findByNetworkAndScheme(f.schemes, version, network, scheme)
	if !ok {
		return nil
	}
	return mechanism
}
