package x402

import (
	"context"
	"time"
)

// Facilitator hooks run around verify and settle after the wire bytes have
// been decoded, so they always see the canonical structured forms.

// FacilitatorVerifyContext is passed to facilitator verify hooks.
type FacilitatorVerifyContext struct {
	Ctx                 context.Context
	PaymentPayload      PaymentPayload
	PaymentRequirements PaymentRequirements
	Timestamp           time.Time
	RequestMetadata     map[string]interface{}
}

// FacilitatorVerifyResultContext extends FacilitatorVerifyContext with the
// verification result.
type FacilitatorVerifyResultContext struct {
	FacilitatorVerifyContext
	Result VerifyResponse
}

// FacilitatorVerifyFailureContext extends FacilitatorVerifyContext with the
// error that occurred.
type FacilitatorVerifyFailureContext struct {
	FacilitatorVerifyContext
	Error error
}

// FacilitatorVerifyFailureHookResult lets a failure hook substitute a result
// for a failed verification.
type FacilitatorVerifyFailureHookResult struct {
	Recovered bool
	Result    VerifyResponse
}

// FacilitatorSettleContext is passed to facilitator settle hooks.
type FacilitatorSettleContext struct {
	Ctx                 context.Context
	PaymentPayload      PaymentPayload
	PaymentRequirements PaymentRequirements
	Timestamp           time.Time
	RequestMetadata     map[string]interface{}
}

// FacilitatorSettleResultContext extends FacilitatorSettleContext with the
// settlement result.
type FacilitatorSettleResultContext struct {
	FacilitatorSettleContext
	Result SettleResponse
}

// FacilitatorSettleFailureContext extends FacilitatorSettleContext with the
// error that occurred.
type FacilitatorSettleFailureContext struct {
	FacilitatorSettleContext
	Error error
}

// FacilitatorSettleFailureHookResult lets a failure hook substitute a result
// for a failed settlement.
type FacilitatorSettleFailureHookResult struct {
	Recovered bool
	Result    SettleResponse
}

// FacilitatorBeforeVerifyHook runs before mechanism verification; Abort
// short-circuits with an invalid VerifyResponse carrying the reason.
type FacilitatorBeforeVerifyHook func(ctx FacilitatorVerifyContext) (*BeforeHookResult, error)

// FacilitatorAfterVerifyHook runs after successful verification. Errors are
// swallowed.
type FacilitatorAfterVerifyHook func(ctx FacilitatorVerifyResultContext) error

// FacilitatorOnVerifyFailureHook runs when verification throws; the first
// hook returning Recovered=true substitutes its result.
type FacilitatorOnVerifyFailureHook func(ctx FacilitatorVerifyFailureContext) (*FacilitatorVerifyFailureHookResult, error)

// FacilitatorBeforeSettleHook runs before mechanism settlement; Abort
// short-circuits with a failed SettleResponse.
type FacilitatorBeforeSettleHook func(ctx FacilitatorSettleContext) (*BeforeHookResult, error)

// FacilitatorAfterSettleHook runs after successful settlement. Errors are
// swallowed.
type FacilitatorAfterSettleHook func(ctx FacilitatorSettleResultContext) error

// FacilitatorOnSettleFailureHook runs when settlement throws; the first hook
// returning Recovered=true substitutes its result.
type FacilitatorOnSettleFailureHook func(ctx FacilitatorSettleFailureContext) (*FacilitatorSettleFailureHookResult, error)
