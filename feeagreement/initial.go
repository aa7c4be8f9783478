package feeagreement

import "fmt"

// InitialState is the (status, event) pair an agreement starts its lifecycle
// with. The creating caller persists both atomically.
type InitialState struct {
	Status Status
	Event  EventType
}

// InitialStatus derives the creation-time state for an agreement based on its
// payment scheme, the creator's role, the appropriator (an operations-role
// approver who pre-cleared exception terms), and the scheme-specific exception
// checks.
func InitialStatus(ag *FeeAgreement, creatorRole Role, rules Rules) (InitialState, error) {
	if ag == nil {
		return InitialState{}, fmt.Errorf("feeagreement: initial status requires an agreement")
	}
	if ag.SignatureProcessType == ProcessTypeExternalUnmanaged {
		return initialForUnmanaged(), nil
	}
	switch ag.PaymentScheme {
	case SchemeStandard:
		return initialForStandard(ag, creatorRole, rules), nil
	case SchemeFlat:
		return initialForFlat(ag, creatorRole), nil
	case SchemeConversion:
		return initialForConversion(ag, creatorRole), nil
	case SchemeBaseSalary:
		return initialForBaseSalary(ag, creatorRole, rules), nil
	default:
		return InitialState{}, fmt.Errorf("feeagreement: unknown payment scheme %q", ag.PaymentScheme)
	}
}

// initialForUnmanaged starts externally signed documents in operations
// validation; operations later confirms the signed paperwork in one step.
func initialForUnmanaged() InitialState {
	return InitialState{
		Status: StatusPendingOperationsValidation,
		Event:  EventCreatedAndSentToOperationsValidation,
	}
}

func initialForStandard(ag *FeeAgreement, creatorRole Role, rules Rules) InitialState {
	return route(ag, creatorRole, RequiresOperationsValidation(ag, rules))
}

// Flat agreements have no percentage to reduce; only verbiage and guarantee
// exceptions gate validation.
func initialForFlat(ag *FeeAgreement, creatorRole Role) InitialState {
	needsValidation := ag.VerbiageChangesRequested || ag.GuaranteeDaysChangeRequested
	return route(ag, creatorRole, needsValidation)
}

// Conversion agreements only carry a verbiage exception.
func initialForConversion(ag *FeeAgreement, creatorRole Role) InitialState {
	return route(ag, creatorRole, ag.VerbiageChangesRequested)
}

// BaseSalary agreements route a requested-but-unapproved fee reduction to
// coach validation regardless of who created them.
func initialForBaseSalary(ag *FeeAgreement, creatorRole Role, rules Rules) InitialState {
	if !appropriated(ag) && feeReducedBelowDefault(ag, rules) {
		return InitialState{
			Status: StatusPendingCoachValidation,
			Event:  EventCreatedAndSentToCoachValidation,
		}
	}
	return route(ag, creatorRole, ag.VerbiageChangesRequested)
}

// route applies the shared decision shape: pre-approved or exception-free
// agreements go straight to signature; otherwise coach-level creators hand off
// to operations, and everyone else starts with their coach.
func route(ag *FeeAgreement, creatorRole Role, needsValidation bool) InitialState {
	if appropriated(ag) || !needsValidation {
		return InitialState{
			Status: StatusPendingHiringAuthoritySignature,
			Event:  EventCreatedAndSentToSign,
		}
	}
	if bypassesCoachValidation(creatorRole) {
		return InitialState{
			Status: StatusPendingOperationsValidation,
			Event:  EventCreatedAndSentToOperationsValidation,
		}
	}
	return InitialState{
		Status: StatusPendingCoachValidation,
		Event:  EventCreatedAndSentToCoachValidation,
	}
}

// appropriated reports whether an operations-role approver pre-approved the
// exception terms at creation time.
func appropriated(ag *FeeAgreement) bool {
	return ag.AppropriatorRole != nil && *ag.AppropriatorRole == RoleOperations
}

func bypassesCoachValidation(role Role) bool {
	return role == RoleCoach || role == RoleRegionalDirector
}
