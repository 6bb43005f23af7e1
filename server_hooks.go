package x402

import (
	"context"
	"time"
)

// Hook contexts for the resource server's verify and settle pipelines. The
// server boundary is bytes: hooks see the serialized payload and
// requirements exactly as they arrived from the transport.

// VerifyContext is passed to verification hooks.
type VerifyContext struct {
	Ctx               context.Context
	PayloadBytes      []byte
	RequirementsBytes []byte
	Timestamp         time.Time
	RequestMetadata   map[string]interface{}
}

// VerifyResultContext extends VerifyContext with the verification result.
type VerifyResultContext struct {
	VerifyContext
	Result VerifyResponse
}

// VerifyFailureContext extends VerifyContext with the error that occurred.
type VerifyFailureContext struct {
	VerifyContext
	Error error
}

// VerifyFailureHookResult lets a failure hook substitute a result for a
// failed verification.
type VerifyFailureHookResult struct {
	Recovered bool
	Result    VerifyResponse
}

// SettleContext is passed to settlement hooks.
type SettleContext struct {
	Ctx               context.Context
	PayloadBytes      []byte
	RequirementsBytes []byte
	Timestamp         time.Time
	RequestMetadata   map[string]interface{}
}

// SettleResultContext extends SettleContext with the settlement result.
type SettleResultContext struct {
	SettleContext
	Result SettleResponse
}

// SettleFailureContext extends SettleContext with the error that occurred.
type SettleFailureContext struct {
	SettleContext
	Error error
}

// SettleFailureHookResult lets a failure hook substitute a result for a
// failed settlement.
type SettleFailureHookResult struct {
	Recovered bool
	Result    SettleResponse
}

// BeforeVerifyHook runs before verification; Abort short-circuits with an
// invalid VerifyResponse carrying the reason.
type BeforeVerifyHook func(ctx VerifyContext) (*BeforeHookResult, error)

// AfterVerifyHook runs after successful verification. Errors are swallowed.
type AfterVerifyHook func(ctx VerifyResultContext) error

// OnVerifyFailureHook runs when verification throws; the first hook
// returning Recovered=true substitutes its result.
type OnVerifyFailureHook func(ctx VerifyFailureContext) (*VerifyFailureHookResult, error)

// BeforeSettleHook runs before settlement; Abort short-circuits with a
// failed SettleResponse.
type BeforeSettleHook func(ctx SettleContext) (*BeforeHookResult, error)

// AfterSettleHook runs after successful settlement. Errors are swallowed.
type AfterSettleHook func(ctx SettleResultContext) error

// OnSettleFailureHook runs when settlement throws; the first hook returning
// Recovered=true substitutes its result.
type OnSettleFailureHook func(ctx SettleFailureContext) (*SettleFailureHookResult, error)
