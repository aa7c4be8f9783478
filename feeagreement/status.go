package feeagreement

import "fmt"

// Rules carries the externally configured thresholds the state machine
// consults when routing validation.
type Rules struct {
	// DefaultFeePercentage is the standard fee; agreements asking for less
	// require operations sign-off.
	DefaultFeePercentage float64
	// DefaultGuaranteeDays is the standard guarantee window.
	DefaultGuaranteeDays int
}

// CalcContext is the read-only context a transition may consult. The agreement
// is never mutated by the calculator.
type CalcContext struct {
	Agreement *FeeAgreement
	Rules     Rules
}

// InvalidTransitionError reports a (status, event) pair outside the transition
// table. The state machine never silently ignores an unrecognized event.
type InvalidTransitionError struct {
	Status Status
	Event  EventType
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("feeagreement: event %d (%s) is not a valid transition from status %d (%s)",
		e.Event, e.Event, e.Status, e.Status)
}

type transitionFunc func(CalcContext) (Status, error)

func to(next Status) transitionFunc {
	return func(CalcContext) (Status, error) { return next, nil }
}

// transitions is the full lifecycle table. Every legal (status, event) pair is
// listed; anything else fails with InvalidTransitionError.
var transitions = map[Status]map[EventType]transitionFunc{
	StatusPendingCoachValidation: {
		EventSignatureRequestPreviewCreated:     to(StatusPendingCoachValidation),
		EventDeclinedByCoach:                    to(StatusDeclinedByCoach),
		EventDeclinedByRegionalDirector:         to(StatusDeclinedByCoach),
		EventDeclinedByOperations:               to(StatusDeclinedByCoach),
		EventValidatedByCoach:                   afterCoachValidation,
		EventValidatedByRegionalDirector:        afterCoachValidation,
		EventValidatedByOperationsAndSentToSign: to(StatusPendingHiringAuthoritySignature),
		EventValidationRequestCanceled:          to(StatusCanceled),
	},
	StatusDeclinedByCoach: {
		EventSentToCoachValidation:     to(StatusPendingCoachValidation),
		EventValidationRequestCanceled: to(StatusCanceled),
	},
	StatusPendingOperationsValidation: {
		EventValidatedByOperationsAndSentToSign: to(StatusPendingHiringAuthoritySignature),
		EventDeclinedByOperations:               to(StatusDeclinedByOperations),
		EventSignatureRequestPreviewCreated:     to(StatusPendingOperationsValidation),
		EventValidationRequestCanceled:          to(StatusCanceled),
		EventUnmanagedValidatedByOperations:     to(StatusSigned),
	},
	StatusDeclinedByOperations: {
		EventSentToOperationsValidation: to(StatusPendingOperationsValidation),
		EventValidationRequestCanceled:  to(StatusCanceled),
	},
	StatusPendingHiringAuthoritySignature: {
		EventSignedByHiringAuthority: to(StatusPendingProductionDirectorSignature),
		EventVoidedByOperations:      to(StatusVoid),
		EventVoidedByExpiration:      to(StatusExpired),
	},
	StatusPendingProductionDirectorSignature: {
		EventSignedByProductionDirector: to(StatusSigned),
		EventVoidedByOperations:         to(StatusVoid),
		EventVoidedByExpiration:         to(StatusExpired),
	},
	StatusExpired: {
		EventRestored: to(StatusPendingHiringAuthoritySignature),
	},
	StatusSigned: {
		EventUpdatedByOperations: signedUpdate,
	},
}

// CalculateStatus computes the next lifecycle status for the given event. It
// is pure: repeated calls with the same inputs yield the same result, and no
// state is retained between calls.
func CalculateStatus(current Status, event EventType, ctx CalcContext) (Status, error) {
	events, ok := transitions[current]
	if !ok {
		return 0, &InvalidTransitionError{Status: current, Event: event}
	}
	fn, ok := events[event]
	if !ok {
		return 0, &InvalidTransitionError{Status: current, Event: event}
	}
	return fn(ctx)
}

// afterCoachValidation routes coach approval. BaseSalary agreements with no
// pending exception skip operations validation and go straight to signature;
// everything else waits for operations.
func afterCoachValidation(ctx CalcContext) (Status, error) {
	ag := ctx.Agreement
	if ag == nil {
		return 0, fmt.Errorf("feeagreement: coach validation requires the agreement in context")
	}
	if ag.PaymentScheme == SchemeBaseSalary && !RequiresOperationsValidation(ag, ctx.Rules) {
		return StatusPendingHiringAuthoritySignature, nil
	}
	return StatusPendingOperationsValidation, nil
}

// signedUpdate allows in-place updates of a signed agreement only for
// documents signed outside the managed envelope flow.
func signedUpdate(ctx CalcContext) (Status, error) {
	ag := ctx.Agreement
	if ag == nil || ag.SignatureProcessType != ProcessTypeExternalUnmanaged {
		return 0, &InvalidTransitionError{Status: StatusSigned, Event: EventUpdatedByOperations}
	}
	return StatusSigned, nil
}

// RequiresOperationsValidation reports whether any exception to standard terms
// is pending: a fee reduced below the configured default, a guarantee-days
// exception, or requested verbiage changes.
func RequiresOperationsValidation(ag *FeeAgreement, rules Rules) bool {
	if ag.VerbiageChangesRequested {
		return true
	}
	if ag.GuaranteeDaysChangeRequested {
		return true
	}
	if ag.GuaranteeDays != nil && rules.DefaultGuaranteeDays > 0 && *ag.GuaranteeDays != rules.DefaultGuaranteeDays {
		return true
	}
	return feeReducedBelowDefault(ag, rules)
}

func feeReducedBelowDefault(ag *FeeAgreement, rules Rules) bool {
	if !ag.FeePercentageChangeRequested {
		return false
	}
	return ag.FeePercentage != nil && *ag.FeePercentage < rules.DefaultFeePercentage
}
