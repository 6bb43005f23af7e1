package x402

import "fmt"

// Stable error codes carried by PaymentError. These map one-to-one to
// programmatic handling in HTTP wrappers and middleware.
const (
	ErrCodeSchemeNotFound         = "scheme_not_found"
	ErrCodeNoMatchingRequirements = "no_matching_requirements"
	ErrCodePaymentAborted         = "payment_aborted"
	ErrCodeUnsupportedScheme      = "unsupported_scheme"
	ErrCodeUnsupportedNetwork     = "unsupported_network"
	ErrCodeUnsupportedVersion     = "unsupported_version"
	ErrCodeInvalidPayload         = "invalid_payload"
	ErrCodeInvalidRequirements    = "invalid_requirements"
	ErrCodeVerificationFailed     = "verification_failed"
	ErrCodeSettlementFailed       = "settlement_failed"
)

// PaymentError is the typed error surfaced at the protocol boundary.
// Code is stable; Message is for humans; Details carries structured context
// (the attempted (version, network, scheme) tuple, the aborting hook's
// reason, and so on).
type PaymentError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

func (e *PaymentError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewSchemeNotFoundError reports that no mechanism is registered for the
// requested (version, network, scheme). The registered map is included so
// callers can see what was available.
func NewSchemeNotFoundError(version int, network Network, scheme string, registered map[int][]string) *PaymentError {
	details := map[string]interface{}{
		"requested": map[string]interface{}{
			"version": version,
			"network": network,
			"scheme":  scheme,
		},
	}
	if registered != nil {
		details["schemes"] = registered
	}
	return &PaymentError{
		Code:    ErrCodeSchemeNotFound,
		Message: fmt.Sprintf("no mechanism registered for scheme %q on network %q at version %d", scheme, network, version),
		Details: details,
	}
}

// NewNoMatchingRequirementsError reports that policies filtered out every
// candidate requirement.
func NewNoMatchingRequirementsError(version int) *PaymentError {
	return &PaymentError{
		Code:    ErrCodeNoMatchingRequirements,
		Message: "all payment requirements were filtered out by client policies",
		Details: map[string]interface{}{"version": version},
	}
}

// NewPaymentAbortedError reports that a before-payment-creation hook
// requested an abort.
func NewPaymentAbortedError(reason string) *PaymentError {
	return &PaymentError{
		Code:    ErrCodePaymentAborted,
		Message: reason,
		Details: map[string]interface{}{"reason": reason},
	}
}

// NewUnsupportedVersionError reports an x402Version this implementation
// does not speak.
func NewUnsupportedVersionError(version int) *PaymentError {
	return &PaymentError{
		Code:    ErrCodeUnsupportedVersion,
		Message: fmt.Sprintf("unsupported x402 version: %d", version),
		Details: map[string]interface{}{"version": version},
	}
}

// NewVerifyError wraps an unrecoverable verification failure.
func NewVerifyError(reason string, network Network, scheme string, cause error) *PaymentError {
	details := map[string]interface{}{
		"network": network,
		"scheme":  scheme,
	}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return &PaymentError{
		Code:    ErrCodeVerificationFailed,
		Message: reason,
		Details: details,
	}
}

// NewSettleError wraps an unrecoverable settlement failure.
func NewSettleError(reason string, network Network, scheme string, transaction string, cause error) *PaymentError {
	details := map[string]interface{}{
		"network": network,
		"scheme":  scheme,
	}
	if transaction != "" {
		details["transaction"] = transaction
	}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return &PaymentError{
		Code:    ErrCodeSettlementFailed,
		Message: reason,
		Details: details,
	}
}
