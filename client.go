package x402

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/x402-foundation/x402-go/types"
)

// X402Client creates payment payloads from PaymentRequired responses.
// Mechanisms are registered per (version, network pattern, scheme); policies
// and the selector narrow the server's accepts list down to one option.
type X402Client struct {
	mu                   sync.RWMutex
	schemes              map[int]map[Network]map[string]SchemeNetworkClient
	requirementsSelector PaymentRequirementsSelector
	policies             []PaymentPolicy

	beforePaymentCreationHooks    []BeforePaymentCreationHook
	afterPaymentCreationHooks     []AfterPaymentCreationHook
	onPaymentCreationFailureHooks []OnPaymentCreationFailureHook
}

// ClientOption configures an X402Client.
type ClientOption func(*X402Client)

// WithScheme registers a mechanism for a version and network pattern at
// construction time.
func WithScheme(version int, network Network, client SchemeNetworkClient) ClientOption {
	return func(c *X402Client) {
		registerScheme(c.schemes, version, network, client.Scheme(), client)
	}
}

// WithPaymentSelector replaces the default first-candidate selector.
func WithPaymentSelector(selector PaymentRequirementsSelector) ClientOption {
	return func(c *X402Client) {
		c.requirementsSelector = selector
	}
}

// WithPolicy appends a payment policy. Policies run in registration order.
func WithPolicy(policy PaymentPolicy) ClientOption {
	return func(c *X402Client) {
		c.policies = append(c.policies, policy)
	}
}

// defaultPaymentSelector picks the first candidate.
func defaultPaymentSelector(version int, candidates []PaymentRequirements) PaymentRequirements {
	return candidates[0]
}

// Newx402Client creates a client. No I/O happens at construction.
func Newx402Client(opts ...ClientOption) *X402Client {
	c := &X402Client{
		schemes:              make(map[int]map[Network]map[string]SchemeNetworkClient),
		requirementsSelector: defaultPaymentSelector,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterScheme registers a v2 mechanism for a network or pattern.
func (c *X402Client) RegisterScheme(network Network, client SchemeNetworkClient) *X402Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	registerScheme(c.schemes, 2, network, client.Scheme(), client)
	return c
}

// RegisterSchemeV1 registers a legacy v1 mechanism for an alias network.
func (c *X402Client) RegisterSchemeV1(network Network, client SchemeNetworkClient) *X402Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	registerScheme(c.schemes, 1, network, client.Scheme(), client)
	return c
}

// WithPolicies appends policies after construction.
func (c *X402Client) WithPolicies(policies ...PaymentPolicy) *X402Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policies = append(c.policies, policies...)
	return c
}

// OnBeforePaymentCreation registers a before-payment-creation hook.
func (c *X402Client) OnBeforePaymentCreation(hook BeforePaymentCreationHook) *X402Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beforePaymentCreationHooks = append(c.beforePaymentCreationHooks, hook)
	return c
}

// OnAfterPaymentCreation registers an after-payment-creation hook.
func (c *X402Client) OnAfterPaymentCreation(hook AfterPaymentCreationHook) *X402Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterPaymentCreationHooks = append(c.afterPaymentCreationHooks, hook)
	return c
}

// OnPaymentCreationFailure registers a failure-recovery hook.
func (c *X402Client) OnPaymentCreationFailure(hook OnPaymentCreationFailureHook) *X402Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPaymentCreationFailureHooks = append(c.onPaymentCreationFailureHooks, hook)
	return c
}

// SelectPaymentRequirements filters the accepts list down to the options a
// registered mechanism can satisfy, applies policies, and asks the selector
// to pick one.
func (c *X402Client) SelectPaymentRequirements(version int, accepts []PaymentRequirements) (PaymentRequirements, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selectLocked(version, accepts)
}

func (c *X402Client) selectLocked(version int, accepts []PaymentRequirements) (PaymentRequirements, error) {
	supported := make([]PaymentRequirements, 0, len(accepts))
	for _, req := range accepts {
		if _, ok := findByNetworkAndScheme(c.schemes, version, req.Network, req.Scheme); ok {
			supported = append(supported, req)
		}
	}

	if len(supported) == 0 {
		requested := PaymentRequirements{}
		if len(accepts) > 0 {
			requested = accepts[0]
		}
		return PaymentRequirements{}, NewSchemeNotFoundError(version, requested.Network, requested.Scheme, registeredSchemes(c.schemes))
	}

	survivors := supported
	for _, policy := range c.policies {
		survivors = policy(version, survivors)
		if len(survivors) == 0 {
			return PaymentRequirements{}, NewNoMatchingRequirementsError(version)
		}
	}

	return c.requirementsSelector(version, survivors), nil
}

// CreatePaymentPayload runs the full client flow against a PaymentRequired
// response: capability filter, policies, selector, before-hooks, mechanism
// invocation with failure recovery, payload assembly, after-hooks.
func (c *X402Client) CreatePaymentPayload(ctx context.Context, paymentRequired PaymentRequired) (PaymentPayload, error) {
	version := paymentRequired.X402Version
	if version != 1 && version != 2 {
		return PaymentPayload{}, NewUnsupportedVersionError(version)
	}

	c.mu.RLock()
	beforeHooks := c.beforePaymentCreationHooks
	afterHooks := c.afterPaymentCreationHooks
	failureHooks := c.onPaymentCreationFailureHooks
	selected, err := c.selectLocked(version, paymentRequired.Accepts)
	c.mu.RUnlock()
	if err != nil {
		return PaymentPayload{}, err
	}

	hookCtx := PaymentCreationContext{
		Ctx:                  ctx,
		PaymentRequired:      paymentRequired,
		SelectedRequirements: selected,
		Timestamp:            time.Now(),
	}

	for _, hook := range beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return PaymentPayload{}, err
		}
		if result != nil && result.Abort {
			return PaymentPayload{}, NewPaymentAbortedError(result.Reason)
		}
	}

	c.mu.RLock()
	mechanism, ok := findByNetworkAndScheme(c.schemes, version, selected.Network, selected.Scheme)
	registered := registeredSchemes(c.schemes)
	c.mu.RUnlock()
	if !ok {
		return PaymentPayload{}, NewSchemeNotFoundError(version, selected.Network, selected.Scheme, registered)
	}

	partial, createErr := mechanism.CreatePaymentPayload(ctx, version, selected)
	if createErr != nil {
		recovered := false
		for _, hook := range failureHooks {
			result, err := hook(PaymentCreationFailureContext{
				PaymentCreationContext: hookCtx,
				Error:                  createErr,
			})
			if err != nil {
				return PaymentPayload{}, err
			}
			if result != nil && result.Recovered {
				partial = result.Payload
				recovered = true
				break
			}
		}
		if !recovered {
			return PaymentPayload{}, createErr
		}
	}

	payload := c.assemblePayload(version, partial, selected, paymentRequired)

	for _, hook := range afterHooks {
		// After-hook errors never fail payload creation.
		_ = hook(PaymentCreatedContext{
			PaymentCreationContext: hookCtx,
			PaymentPayload:         payload,
		})
	}

	return payload, nil
}

func (c *X402Client) assemblePayload(version int, partial PartialPaymentPayload, selected PaymentRequirements, paymentRequired PaymentRequired) PaymentPayload {
	if version == 1 {
		scheme := partial.Scheme
		if scheme == "" {
			scheme = selected.Scheme
		}
		network := partial.Network
		if network == "" {
			network = selected.Network
		}
		return PaymentPayload{
			X402Version: 1,
			Payload:     partial.Payload,
			Scheme:      scheme,
			Network:     network,
		}
	}

	return PaymentPayload{
		X402Version: 2,
		Payload:     partial.Payload,
		Accepted:    selected,
		Resource:    paymentRequired.Resource,
		Extensions:  paymentRequired.Extensions,
	}
}

// CreatePaymentForRequired is the bytes convenience: it decodes a serialized
// PaymentRequired (either wire version), creates the payload, and returns it
// serialized in the matching wire shape.
func (c *X402Client) CreatePaymentForRequired(ctx context.Context, paymentRequiredBytes []byte) ([]byte, error) {
	version, err := types.DetectVersion(paymentRequiredBytes)
	if err != nil {
		return nil, NewUnsupportedVersionError(0)
	}

	paymentRequired, err := decodePaymentRequired(version, paymentRequiredBytes)
	if err != nil {
		return nil, err
	}

	payload, err := c.CreatePaymentPayload(ctx, paymentRequired)
	if err != nil {
		return nil, err
	}

	return encodePaymentPayload(payload)
}

// decodePaymentRequired converts either wire shape into the canonical form.
func decodePaymentRequired(version int, data []byte) (PaymentRequired, error) {
	switch version {
	case 2:
		var required PaymentRequired
		if err := json.Unmarshal(data, &required); err != nil {
			return PaymentRequired{}, &PaymentError{Code: ErrCodeInvalidPayload, Message: err.Error()}
		}
		return required, nil
	case 1:
		requiredV1, err := types.ToPaymentRequiredV1(data)
		if err != nil {
			return PaymentRequired{}, &PaymentError{Code: ErrCodeInvalidPayload, Message: err.Error()}
		}
		required := PaymentRequired{
			X402Version: 1,
			Error:       requiredV1.Error,
		}
		for _, reqV1 := range requiredV1.Accepts {
			required.Accepts = append(required.Accepts, requirementsFromV1(reqV1))
		}
		return required, nil
	default:
		return PaymentRequired{}, NewUnsupportedVersionError(version)
	}
}

// encodePaymentPayload serializes a canonical payload into its wire shape.
func encodePaymentPayload(payload PaymentPayload) ([]byte, error) {
	if payload.X402Version == 1 {
		return json.Marshal(types.PaymentPayloadV1{
			X402Version: 1,
			Scheme:      payload.Scheme,
			Network:     string(payload.Network),
			Payload:     payload.Payload,
		})
	}
	return json.Marshal(payload)
}

// requirementsFromV1 converts a v1 wire requirement to canonical form.
// The legacy alias network is preserved; maxAmountRequired becomes amount.
func requirementsFromV1(reqV1 types.PaymentRequirementsV1) PaymentRequirements {
	var extra map[string]interface{}
	if reqV1.Extra != nil {
		_ = json.Unmarshal(*reqV1.Extra, &extra)
	}
	return PaymentRequirements{
		Scheme:            reqV1.Scheme,
		Network:           Network(reqV1.Network),
		Asset:             reqV1.Asset,
		Amount:            reqV1.MaxAmountRequired,
		PayTo:             reqV1.PayTo,
		MaxTimeoutSeconds: reqV1.MaxTimeoutSeconds,
		Extra:             extra,
	}
}
