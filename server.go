package x402

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/x402-foundation/x402-go/types"
)

// X402ResourceServer manages payment requirements and verification for
// protected resources. It owns no blockchain logic: verify and settle are
// delegated to facilitator clients, routed by (version, network, scheme).
type X402ResourceServer struct {
	mu                    sync.RWMutex
	schemes               map[Network]map[string]SchemeNetworkServer
	facilitatorClients    []FacilitatorClient
	registeredExtensions  map[string]types.ResourceServerExtension
	supportedCache        *SupportedCache
	facilitatorClientsMap map[int]map[Network]map[string]FacilitatorClient

	beforeVerifyHooks    []BeforeVerifyHook
	afterVerifyHooks     []AfterVerifyHook
	onVerifyFailureHooks []OnVerifyFailureHook
	beforeSettleHooks    []BeforeSettleHook
	afterSettleHooks     []AfterSettleHook
	onSettleFailureHooks []OnSettleFailureHook
}

// SupportedCache caches facilitator capabilities with a TTL.
type SupportedCache struct {
	mu     sync.RWMutex
	data   map[string]SupportedResponse
	expiry map[string]time.Time
	ttl    time.Duration
}

// ResourceServerOption configures the server.
type ResourceServerOption func(*X402ResourceServer)

// WithFacilitatorClient adds a facilitator client. Earlier clients take
// precedence when several support the same payment kind.
func WithFacilitatorClient(client FacilitatorClient) ResourceServerOption {
	return func(s *X402ResourceServer) {
		s.facilitatorClients = append(s.facilitatorClients, client)
	}
}

// WithSchemeServer registers a scheme server for a network or pattern.
func WithSchemeServer(network Network, schemeServer SchemeNetworkServer) ResourceServerOption {
	return func(s *X402ResourceServer) {
		s.registerScheme(network, schemeServer)
	}
}

// WithCacheTTL sets the TTL of the supported-kinds cache.
func WithCacheTTL(ttl time.Duration) ResourceServerOption {
	return func(s *X402ResourceServer) {
		s.supportedCache.ttl = ttl
	}
}

// Newx402ResourceServer creates a resource server. Call Initialize before
// serving to populate facilitator capabilities.
func Newx402ResourceServer(opts ...ResourceServerOption) *X402ResourceServer {
	s := &X402ResourceServer{
		schemes:              make(map[Network]map[string]SchemeNetworkServer),
		facilitatorClients:   []FacilitatorClient{},
		registeredExtensions: make(map[string]types.ResourceServerExtension),
		supportedCache: &SupportedCache{
			data:   make(map[string]SupportedResponse),
			expiry: make(map[string]time.Time),
			ttl:    5 * time.Minute,
		},
		facilitatorClientsMap: make(map[int]map[Network]map[string]FacilitatorClient),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize fetches supported payment kinds from all facilitators and
// builds the routing map. Must be called before BuildPaymentRequirements,
// VerifyPayment, or SettlePayment.
func (s *X402ResourceServer) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.facilitatorClientsMap = make(map[int]map[Network]map[string]FacilitatorClient)

	var lastErr error
	successCount := 0

	for i, client := range s.facilitatorClients {
		supported, err := client.GetSupported(ctx)
		if err != nil {
			lastErr = fmt.Errorf("facilitator %d: %w", i, err)
			continue
		}

		s.supportedCache.Set(fmt.Sprintf("facilitator_%d", i), *supported)
		successCount++

		for _, kind := range supported.Kinds {
			if s.facilitatorClientsMap[kind.X402Version] == nil {
				s.facilitatorClientsMap[kind.X402Version] = make(map[Network]map[string]FacilitatorClient)
			}
			versionMap := s.facilitatorClientsMap[kind.X402Version]
			if versionMap[kind.Network] == nil {
				versionMap[kind.Network] = make(map[string]FacilitatorClient)
			}
			// Earlier facilitators keep precedence.
			if _, exists := versionMap[kind.Network][kind.Scheme]; !exists {
				versionMap[kind.Network][kind.Scheme] = client
			}
		}
	}

	if successCount == 0 && lastErr != nil {
		return fmt.Errorf("failed to initialize any facilitators: %w", lastErr)
	}
	return nil
}

// Register registers a scheme server for a network or pattern.
func (s *X402ResourceServer) Register(network Network, schemeServer SchemeNetworkServer) *X402ResourceServer {
	return s.registerScheme(network, schemeServer)
}

func (s *X402ResourceServer) registerScheme(network Network, schemeServer SchemeNetworkServer) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemes[network] == nil {
		s.schemes[network] = make(map[string]SchemeNetworkServer)
	}
	s.schemes[network][schemeServer.Scheme()] = schemeServer
	return s
}

// RegisterExtension registers a resource-server extension used to enrich
// declared extension payloads per transport.
func (s *X402ResourceServer) RegisterExtension(extension types.ResourceServerExtension) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registeredExtensions[extension.Key()] = extension
	return s
}

// OnBeforeVerify registers a hook to run before payment verification.
func (s *X402ResourceServer) OnBeforeVerify(hook BeforeVerifyHook) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeVerifyHooks = append(s.beforeVerifyHooks, hook)
	return s
}

// OnAfterVerify registers a hook to run after successful verification.
func (s *X402ResourceServer) OnAfterVerify(hook AfterVerifyHook) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterVerifyHooks = append(s.afterVerifyHooks, hook)
	return s
}

// OnVerifyFailure registers a hook to run when verification fails.
func (s *X402ResourceServer) OnVerifyFailure(hook OnVerifyFailureHook) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onVerifyFailureHooks = append(s.onVerifyFailureHooks, hook)
	return s
}

// OnBeforeSettle registers a hook to run before settlement.
func (s *X402ResourceServer) OnBeforeSettle(hook BeforeSettleHook) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeSettleHooks = append(s.beforeSettleHooks, hook)
	return s
}

// OnAfterSettle registers a hook to run after successful settlement.
func (s *X402ResourceServer) OnAfterSettle(hook AfterSettleHook) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterSettleHooks = append(s.afterSettleHooks, hook)
	return s
}

// OnSettleFailure registers a hook to run when settlement fails.
func (s *X402ResourceServer) OnSettleFailure(hook OnSettleFailureHook) *X402ResourceServer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSettleFailureHooks = append(s.onSettleFailureHooks, hook)
	return s
}

// EnrichExtensions applies registered extensions to declared extension
// payloads. Extensions are applied in sorted key order so the result is
// deterministic regardless of declaration order.
func (s *X402ResourceServer) EnrichExtensions(
	declaredExtensions map[string]interface{},
	transportContext interface{},
) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(declaredExtensions))
	for key := range declaredExtensions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	enriched := make(map[string]interface{}, len(declaredExtensions))
	for _, key := range keys {
		declaration := declaredExtensions[key]
		if extension, ok := s.registeredExtensions[key]; ok {
			enriched[key] = extension.EnrichDeclaration(declaration, transportContext)
		} else {
			enriched[key] = declaration
		}
	}
	return enriched
}

// BuildPaymentRequirements creates payment requirements for a route: one
// per cached supported (version, network) kind that matches the config.
func (s *X402ResourceServer) BuildPaymentRequirements(ctx context.Context, config ResourceConfig) ([]PaymentRequirements, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kinds := s.findSupportedKinds(config.Network, config.Scheme)
	if len(kinds) == 0 {
		return nil, &PaymentError{
			Code:    ErrCodeUnsupportedNetwork,
			Message: fmt.Sprintf("no facilitator supports %s on %s", config.Scheme, config.Network),
			Details: map[string]interface{}{
				"hint": "call Initialize() to fetch supported kinds from facilitators",
			},
		}
	}

	var requirements []PaymentRequirements
	for _, kind := range kinds {
		schemeServer := s.findServerScheme(kind.Network, kind.Scheme)
		if schemeServer == nil {
			continue
		}

		assetAmount, err := schemeServer.ParsePrice(config.Price, kind.Network)
		if err != nil {
			return nil, fmt.Errorf("failed to parse price: %w", err)
		}

		base := PaymentRequirements{
			Scheme:            kind.Scheme,
			Network:           kind.Network,
			Asset:             assetAmount.Asset,
			Amount:            assetAmount.Amount,
			PayTo:             config.PayTo,
			MaxTimeoutSeconds: config.MaxTimeoutSeconds,
			Extra:             mergeExtra(assetAmount.Extra, config.Extra),
		}
		if base.MaxTimeoutSeconds == 0 {
			base.MaxTimeoutSeconds = 300
		}

		enhanced, err := schemeServer.EnhancePaymentRequirements(ctx, base, kind, s.getFacilitatorExtensions(kind))
		if err != nil {
			return nil, fmt.Errorf("failed to enhance payment requirements: %w", err)
		}
		requirements = append(requirements, enhanced)
	}

	if len(requirements) == 0 {
		return nil, &PaymentError{
			Code:    ErrCodeUnsupportedScheme,
			Message: fmt.Sprintf("no server mechanism registered for scheme %s on network %s", config.Scheme, config.Network),
		}
	}
	return requirements, nil
}

// CreatePaymentRequiredResponse assembles a 402 response body.
func (s *X402ResourceServer) CreatePaymentRequiredResponse(
	requirements []PaymentRequirements,
	info ResourceInfo,
	errorMsg string,
	extensions map[string]interface{},
) PaymentRequired {
	if errorMsg == "" {
		errorMsg = "Payment required"
	}
	return PaymentRequired{
		X402Version: ProtocolVersion,
		Error:       errorMsg,
		Resource:    &info,
		Accepts:     requirements,
		Extensions:  extensions,
	}
}

// VerifyPayment verifies a payment against requirements, routing to the
// facilitator that advertised support for the payment's kind.
func (s *X402ResourceServer) VerifyPayment(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (VerifyResponse, error) {
	hookCtx := VerifyContext{
		Ctx:               ctx,
		PayloadBytes:      payloadBytes,
		RequirementsBytes: requirementsBytes,
		Timestamp:         time.Now(),
	}

	s.mu.RLock()
	beforeHooks := s.beforeVerifyHooks
	afterHooks := s.afterVerifyHooks
	failureHooks := s.onVerifyFailureHooks
	s.mu.RUnlock()

	for _, hook := range beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return VerifyResponse{}, err
		}
		if result != nil && result.Abort {
			return VerifyResponse{IsValid: false, InvalidReason: result.Reason}, nil
		}
	}

	verifyResult, verifyErr := s.routeVerify(ctx, payloadBytes, requirementsBytes)

	if verifyErr == nil {
		resultCtx := VerifyResultContext{VerifyContext: hookCtx, Result: verifyResult}
		for _, hook := range afterHooks {
			// After-hook errors never fail verification.
			_ = hook(resultCtx)
		}
		return verifyResult, nil
	}

	failureCtx := VerifyFailureContext{VerifyContext: hookCtx, Error: verifyErr}
	for _, hook := range failureHooks {
		result, err := hook(failureCtx)
		if err != nil {
			return VerifyResponse{}, err
		}
		if result != nil && result.Recovered {
			return result.Result, nil
		}
	}

	// Unrecovered facilitator errors surface as an invalid verdict, never
	// as a transport exception to the protocol caller.
	return VerifyResponse{IsValid: false, InvalidReason: verifyErr.Error()}, nil
}

func (s *X402ResourceServer) routeVerify(ctx context.Context, payloadBytes, requirementsBytes []byte) (VerifyResponse, error) {
	version, err := types.DetectVersion(payloadBytes)
	if err != nil {
		return VerifyResponse{}, NewUnsupportedVersionError(0)
	}
	reqInfo, err := types.ExtractRequirementsInfo(requirementsBytes)
	if err != nil {
		return VerifyResponse{}, &PaymentError{Code: ErrCodeInvalidRequirements, Message: err.Error()}
	}

	facilitator := s.findFacilitatorForPayment(version, Network(reqInfo.Network), reqInfo.Scheme)
	if facilitator == nil {
		return VerifyResponse{}, &PaymentError{
			Code:    ErrCodeUnsupportedNetwork,
			Message: fmt.Sprintf("no facilitator supports %s on %s at version %d", reqInfo.Scheme, reqInfo.Network, version),
		}
	}

	resp, err := facilitator.Verify(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		return VerifyResponse{}, err
	}
	return *resp, nil
}

// SettlePayment settles a verified payment.
func (s *X402ResourceServer) SettlePayment(ctx context.Context, payloadBytes []byte, requirementsBytes []byte) (SettleResponse, error) {
	hookCtx := SettleContext{
		Ctx:               ctx,
		PayloadBytes:      payloadBytes,
		RequirementsBytes: requirementsBytes,
		Timestamp:         time.Now(),
	}

	s.mu.RLock()
	beforeHooks := s.beforeSettleHooks
	afterHooks := s.afterSettleHooks
	failureHooks := s.onSettleFailureHooks
	s.mu.RUnlock()

	for _, hook := range beforeHooks {
		result, err := hook(hookCtx)
		if err != nil {
			return SettleResponse{}, err
		}
		if result != nil && result.Abort {
			reqInfo, _ := types.ExtractRequirementsInfo(requirementsBytes)
			network := Network("")
			if reqInfo != nil {
				network = Network(reqInfo.Network)
			}
			return SettleResponse{
				Success:     false,
				ErrorReason: fmt.Sprintf("settlement aborted: %s", result.Reason),
				Network:     network,
			}, nil
		}
	}

	settleResult, settleErr := s.routeSettle(ctx, payloadBytes, requirementsBytes)

	if settleErr == nil {
		resultCtx := SettleResultContext{SettleContext: hookCtx, Result: settleResult}
		for _, hook := range afterHooks {
			_ = hook(resultCtx)
		}
		return settleResult, nil
	}

	failureCtx := SettleFailureContext{SettleContext: hookCtx, Error: settleErr}
	for _, hook := range failureHooks {
		result, err := hook(failureCtx)
		if err != nil {
			return SettleResponse{}, err
		}
		if result != nil && result.Recovered {
			return result.Result, nil
		}
	}

	reqInfo, _ := types.ExtractRequirementsInfo(requirementsBytes)
	network := Network("")
	if reqInfo != nil {
		network = Network(reqInfo.Network)
	}
	return SettleResponse{
		Success:     false,
		ErrorReason: settleErr.Error(),
		Transaction: "",
		Network:     network,
	}, nil
}

func (s *X402ResourceServer) routeSettle(ctx context.Context, payloadBytes, requirementsBytes []byte) (SettleResponse, error) {
	version, err := types.DetectVersion(payloadBytes)
	if err != nil {
		return SettleResponse{}, NewUnsupportedVersionError(0)
	}
	reqInfo, err := types.ExtractRequirementsInfo(requirementsBytes)
	if err != nil {
		return SettleResponse{}, &PaymentError{Code: ErrCodeInvalidRequirements, Message: err.Error()}
	}

	facilitator := s.findFacilitatorForPayment(version, Network(reqInfo.Network), reqInfo.Scheme)
	if facilitator == nil {
		return SettleResponse{}, &PaymentError{
			Code:    ErrCodeSettlementFailed,
			Message: fmt.Sprintf("no facilitator supports %s on %s at version %d", reqInfo.Scheme, reqInfo.Network, version),
		}
	}

	resp, err := facilitator.Settle(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		return SettleResponse{}, err
	}
	return *resp, nil
}

// FindMatchingRequirements binds an incoming payload to exactly one of the
// configured requirements, using version-aware matching.
func (s *X402ResourceServer) FindMatchingRequirements(available []PaymentRequirements, payloadBytes []byte) *PaymentRequirements {
	version, err := types.DetectVersion(payloadBytes)
	if err != nil {
		return nil
	}

	for _, req := range available {
		reqBytes, err := json.Marshal(req)
		if err != nil {
			continue
		}
		match, err := types.MatchPayloadToRequirements(version, payloadBytes, reqBytes)
		if err == nil && match {
			matched := req
			return &matched
		}
	}
	return nil
}

// ProcessResult is the outcome of ProcessPaymentRequest.
type ProcessResult struct {
	Success             bool
	RequiresPayment     *PaymentRequired
	MatchedRequirements *PaymentRequirements
	VerificationResult  *VerifyResponse
	SettlementResult    *SettleResponse
	Error               string
}

// ProcessPaymentRequest runs the server side of a request: build
// requirements, match the payload (nil payload → 402), verify. Settlement
// is left to the caller so the resource handler can run in between.
func (s *X402ResourceServer) ProcessPaymentRequest(
	ctx context.Context,
	paymentPayload *PaymentPayload,
	resourceConfig ResourceConfig,
	resourceInfo ResourceInfo,
	extensions map[string]interface{},
) (*ProcessResult, error) {
	requirements, err := s.BuildPaymentRequirements(ctx, resourceConfig)
	if err != nil {
		return nil, err
	}

	if paymentPayload == nil {
		required := s.CreatePaymentRequiredResponse(requirements, resourceInfo, "", extensions)
		return &ProcessResult{Success: false, RequiresPayment: &required}, nil
	}

	payloadBytes, err := encodePaymentPayload(*paymentPayload)
	if err != nil {
		return nil, err
	}

	matching := s.FindMatchingRequirements(requirements, payloadBytes)
	if matching == nil {
		required := s.CreatePaymentRequiredResponse(requirements, resourceInfo, "No matching payment requirements found", extensions)
		return &ProcessResult{Success: false, RequiresPayment: &required}, nil
	}

	requirementsBytes, err := json.Marshal(matching)
	if err != nil {
		return nil, err
	}

	verification, err := s.VerifyPayment(ctx, payloadBytes, requirementsBytes)
	if err != nil {
		return nil, err
	}
	if !verification.IsValid {
		return &ProcessResult{
			Success:             false,
			Error:               verification.InvalidReason,
			MatchedRequirements: matching,
			VerificationResult:  &verification,
		}, nil
	}

	return &ProcessResult{
		Success:             true,
		MatchedRequirements: matching,
		VerificationResult:  &verification,
	}, nil
}

// findSupportedKinds returns cached kinds matching a network pattern and
// scheme, v2 before v1.
func (s *X402ResourceServer) findSupportedKinds(network Network, scheme string) []SupportedKind {
	s.supportedCache.mu.RLock()
	defer s.supportedCache.mu.RUnlock()

	var kinds []SupportedKind
	seen := make(map[string]bool)

	for key, supported := range s.supportedCache.data {
		if expiry, exists := s.supportedCache.expiry[key]; exists && time.Now().After(expiry) {
			continue
		}
		for _, kind := range supported.Kinds {
			if kind.Scheme != scheme {
				continue
			}
			if !kind.Network.Match(network) {
				continue
			}
			dedupeKey := fmt.Sprintf("%d|%s|%s", kind.X402Version, kind.Network, kind.Scheme)
			if seen[dedupeKey] {
				continue
			}
			seen[dedupeKey] = true
			kinds = append(kinds, kind)
		}
	}

	sort.SliceStable(kinds, func(i, j int) bool {
		return kinds[i].X402Version > kinds[j].X402Version
	})
	return kinds
}

// getFacilitatorExtensions returns the extension keys declared by the
// facilitator that advertised the given kind.
func (s *X402ResourceServer) getFacilitatorExtensions(kind SupportedKind) []string {
	s.supportedCache.mu.RLock()
	defer s.supportedCache.mu.RUnlock()

	for _, supported := range s.supportedCache.data {
		for _, k := range supported.Kinds {
			if k.X402Version == kind.X402Version && k.Scheme == kind.Scheme && k.Network == kind.Network {
				return supported.Extensions
			}
		}
	}
	return []string{}
}

// findServerScheme resolves a scheme server for a concrete network,
// honoring wildcard registrations.
func (s *X402ResourceServer) findServerScheme(network Network, scheme string) SchemeNetworkServer {
	if networkMap, ok := s.schemes[network]; ok {
		if server, ok := networkMap[scheme]; ok {
			return server
		}
	}
	if networkMap, ok := s.schemes[Network(network.Family()+":*")]; ok {
		if server, ok := networkMap[scheme]; ok {
			return server
		}
	}
	if networkMap, ok := s.schemes[Network("*:*")]; ok {
		if server, ok := networkMap[scheme]; ok {
			return server
		}
	}
	return nil
}

// findFacilitatorForPayment routes a payment kind to the facilitator that
// advertised it during Initialize.
func (s *X402ResourceServer) findFacilitatorForPayment(version int, network Network, scheme string) FacilitatorClient {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := findByNetworkAndScheme(s.facilitatorClientsMap, version, network, scheme)
	if !ok {
		return nil
	}
	return client
}

func mergeExtra(base, overrides map[string]interface{}) map[string]interface{} {
	if base == nil && overrides == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// Set stores a facilitator's capabilities in the cache.
func (c *SupportedCache) Set(key string, value SupportedResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.expiry[key] = time.Now().Add(c.ttl)
}

// Clear drops all cached capabilities.
func (c *SupportedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]SupportedResponse)
	c.expiry = make(map[string]time.Time)
}
