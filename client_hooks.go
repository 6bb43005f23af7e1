package x402

import (
	"context"
	"time"
)

// BeforeHookResult is returned by before-stage hooks across all components.
// Abort short-circuits the protected operation with Reason.
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// PaymentCreationContext is passed to client-side hooks around payload
// creation.
type PaymentCreationContext struct {
	Ctx                  context.Context
	PaymentRequired      PaymentRequired
	SelectedRequirements PaymentRequirements
	Timestamp            time.Time
}

// PaymentCreatedContext is passed to after-payment-creation hooks.
type PaymentCreatedContext struct {
	PaymentCreationContext
	PaymentPayload PaymentPayload
}

// PaymentCreationFailureContext is passed to failure-recovery hooks when
// the mechanism's CreatePaymentPayload returns an error.
type PaymentCreationFailureContext struct {
	PaymentCreationContext
	Error error
}

// PaymentCreationFailureResult lets a failure hook suppress the error and
// substitute its own partial payload.
type PaymentCreationFailureResult struct {
	Recovered bool
	Payload   PartialPaymentPayload
}

// BeforePaymentCreationHook runs before the mechanism is invoked. Returning
// a result with Abort=true raises PaymentAbortedError and stops the flow.
type BeforePaymentCreationHook func(ctx PaymentCreationContext) (*BeforeHookResult, error)

// AfterPaymentCreationHook runs after the payload is assembled. Errors are
// logged and swallowed; they never fail the operation.
type AfterPaymentCreationHook func(ctx PaymentCreatedContext) error

// OnPaymentCreationFailureHook runs when the mechanism fails. The first
// hook returning Recovered=true wins; later failure hooks are skipped.
type OnPaymentCreationFailureHook func(ctx PaymentCreationFailureContext) (*PaymentCreationFailureResult, error)
