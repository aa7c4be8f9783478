package feeagreement

import "testing"

func TestInitialStatus_StandardRecruiterWithReducedFee(t *testing.T) {
	ag := plainAgreement(SchemeStandard)
	lowFee := 22.5
	ag.FeePercentage = &lowFee
	ag.FeePercentageChangeRequested = true

	state, err := InitialStatus(ag, RoleRecruiter, testRules())
	if err != nil {
		t.Fatalf("initial status: %v", err)
	}
	if state.Status != StatusPendingCoachValidation {
		t.Errorf("expected coach validation, got %s", state.Status)
	}
	if state.Event != EventCreatedAndSentToCoachValidation {
		t.Errorf("expected created_and_sent_to_coach_validation, got %s", state.Event)
	}
}

func TestInitialStatus_StandardCoachNoExceptions(t *testing.T) {
	ag := plainAgreement(SchemeStandard)

	state, err := InitialStatus(ag, RoleCoach, testRules())
	if err != nil {
		t.Fatalf("initial status: %v", err)
	}
	if state.Status != StatusPendingHiringAuthoritySignature {
		t.Errorf("expected straight to signature, got %s", state.Status)
	}
	if state.Event != EventCreatedAndSentToSign {
		t.Errorf("expected created_and_sent_to_sign, got %s", state.Event)
	}
}

func TestInitialStatus_CoachCreatorWithExceptionSkipsToOperations(t *testing.T) {
	ag := plainAgreement(SchemeStandard)
	ag.VerbiageChangesRequested = true

	state, err := InitialStatus(ag, RoleRegionalDirector, testRules())
	if err != nil {
		t.Fatalf("initial status: %v", err)
	}
	if state.Status != StatusPendingOperationsValidation {
		t.Errorf("expected operations validation, got %s", state.Status)
	}
	if state.Event != EventCreatedAndSentToOperationsValidation {
		t.Errorf("expected created_and_sent_to_operations_validation, got %s", state.Event)
	}
}

func TestInitialStatus_AppropriatedBypassesValidation(t *testing.T) {
	ag := plainAgreement(SchemeStandard)
	ag.VerbiageChangesRequested = true
	ops := RoleOperations
	ag.AppropriatorRole = &ops

	state, err := InitialStatus(ag, RoleRecruiter, testRules())
	if err != nil {
		t.Fatalf("initial status: %v", err)
	}
	if state.Status != StatusPendingHiringAuthoritySignature || state.Event != EventCreatedAndSentToSign {
		t.Errorf("appropriated agreement should skip validation, got %s / %s", state.Status, state.Event)
	}
}

// A requested-but-unapproved fee reduction forces coach validation for
// BaseSalary even when the creator would otherwise bypass the coach.
func TestInitialStatus_BaseSalaryFeeReductionForcesCoach(t *testing.T) {
	ag := plainAgreement(SchemeBaseSalary)
	lowFee := 15.0
	ag.FeePercentage = &lowFee
	ag.FeePercentageChangeRequested = true

	state, err := InitialStatus(ag, RoleCoach, testRules())
	if err != nil {
		t.Fatalf("initial status: %v", err)
	}
	if state.Status != StatusPendingCoachValidation || state.Event != EventCreatedAndSentToCoachValidation {
		t.Errorf("expected forced coach validation, got %s / %s", state.Status, state.Event)
	}
}

func TestInitialStatus_FlatAndConversionExceptionChecks(t *testing.T) {
	flat := plainAgreement(SchemeFlat)
	flat.GuaranteeDaysChangeRequested = true
	state, err := InitialStatus(flat, RoleRecruiter, testRules())
	if err != nil {
		t.Fatalf("flat: %v", err)
	}
	if state.Status != StatusPendingCoachValidation {
		t.Errorf("flat with guarantee exception: expected coach validation, got %s", state.Status)
	}

	// A fee-percentage request is meaningless on a flat agreement.
	flatFee := plainAgreement(SchemeFlat)
	flatFee.FeePercentageChangeRequested = true
	state, err = InitialStatus(flatFee, RoleRecruiter, testRules())
	if err != nil {
		t.Fatalf("flat fee: %v", err)
	}
	if state.Status != StatusPendingHiringAuthoritySignature {
		t.Errorf("flat ignores fee percentage, got %s", state.Status)
	}

	conv := plainAgreement(SchemeConversion)
	conv.GuaranteeDaysChangeRequested = true
	state, err = InitialStatus(conv, RoleRecruiter, testRules())
	if err != nil {
		t.Fatalf("conversion: %v", err)
	}
	if state.Status != StatusPendingHiringAuthoritySignature {
		t.Errorf("conversion only gates on verbiage, got %s", state.Status)
	}
}

func TestInitialStatus_UnmanagedStartsInOperationsValidation(t *testing.T) {
	ag := plainAgreement(SchemeStandard)
	ag.SignatureProcessType = ProcessTypeExternalUnmanaged

	state, err := InitialStatus(ag, RoleRecruiter, testRules())
	if err != nil {
		t.Fatalf("initial status: %v", err)
	}
	if state.Status != StatusPendingOperationsValidation || state.Event != EventCreatedAndSentToOperationsValidation {
		t.Errorf("unmanaged flow: got %s / %s", state.Status, state.Event)
	}
}

func TestInitialStatus_UnknownScheme(t *testing.T) {
	ag := plainAgreement("retainer")
	if _, err := InitialStatus(ag, RoleRecruiter, testRules()); err == nil {
		t.Fatal("expected error for unknown payment scheme")
	}
}
