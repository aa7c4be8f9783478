package feeagreement

import (
	"encoding/json"
	"time"
)

// Status enumerates the lifecycle states of a fee agreement. Values are stable
// numeric identifiers persisted in the database and must not be reordered.
type Status int

const (
	StatusPendingHiringAuthoritySignature    Status = 1
	StatusPendingProductionDirectorSignature Status = 2
	StatusSigned                             Status = 3
	StatusPendingCoachValidation             Status = 4
	StatusPendingOperationsValidation        Status = 5
	StatusDeclinedByCoach                    Status = 6
	StatusDeclinedByOperations               Status = 7
	StatusExpired                            Status = 8
	StatusVoid                               Status = 9
	StatusCanceled                           Status = 10
)

var statusNames = map[Status]string{
	StatusPendingHiringAuthoritySignature:    "pending_hiring_authority_signature",
	StatusPendingProductionDirectorSignature: "pending_production_director_signature",
	StatusSigned:                             "signed",
	StatusPendingCoachValidation:             "pending_coach_validation",
	StatusPendingOperationsValidation:        "pending_operations_validation",
	StatusDeclinedByCoach:                    "declined_by_coach",
	StatusDeclinedByOperations:               "declined_by_operations",
	StatusExpired:                            "expired",
	StatusVoid:                               "void",
	StatusCanceled:                           "canceled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown_status"
}

// EventType enumerates every recognized lifecycle event. As with Status, the
// numeric identifiers are persisted and stable.
type EventType int

const (
	EventCreatedAndSentToCoachValidation      EventType = 1
	EventCreatedAndSentToOperationsValidation EventType = 2
	EventCreatedAndSentToSign                 EventType = 3
	EventSentToCoachValidation                EventType = 4
	EventSentToOperationsValidation           EventType = 5
	EventValidatedByCoach                     EventType = 6
	EventValidatedByRegionalDirector          EventType = 7
	EventDeclinedByCoach                      EventType = 8
	EventDeclinedByRegionalDirector           EventType = 9
	EventDeclinedByOperations                 EventType = 10
	EventValidatedByOperationsAndSentToSign   EventType = 11
	EventSignatureRequestPreviewCreated       EventType = 12
	EventValidationRequestCanceled            EventType = 13
	EventSignedByHiringAuthority              EventType = 14
	EventSignedByProductionDirector           EventType = 15
	EventVoidedByOperations                   EventType = 16
	EventVoidedByExpiration                   EventType = 17
	EventRestored                             EventType = 18
	EventUpdatedByOperations                  EventType = 19
	EventUnmanagedValidatedByOperations       EventType = 20
	// History-only events recorded from the provider audit trail. They never
	// appear in the transition table.
	EventSignatureDocumentOpened EventType = 21
	EventSignatureDocumentViewed EventType = 22
)

var eventNames = map[EventType]string{
	EventCreatedAndSentToCoachValidation:      "created_and_sent_to_coach_validation",
	EventCreatedAndSentToOperationsValidation: "created_and_sent_to_operations_validation",
	EventCreatedAndSentToSign:                 "created_and_sent_to_sign",
	EventSentToCoachValidation:                "sent_to_coach_validation",
	EventSentToOperationsValidation:           "sent_to_operations_validation",
	EventValidatedByCoach:                     "validated_by_coach",
	EventValidatedByRegionalDirector:          "validated_by_regional_director",
	EventDeclinedByCoach:                      "declined_by_coach",
	EventDeclinedByRegionalDirector:           "declined_by_regional_director",
	EventDeclinedByOperations:                 "declined_by_operations",
	EventValidatedByOperationsAndSentToSign:   "validated_by_operations_and_sent_to_sign",
	EventSignatureRequestPreviewCreated:       "signature_request_preview_created",
	EventValidationRequestCanceled:            "validation_request_canceled",
	EventSignedByHiringAuthority:              "signed_by_hiring_authority",
	EventSignedByProductionDirector:           "signed_by_production_director",
	EventVoidedByOperations:                   "voided_by_operations",
	EventVoidedByExpiration:                   "voided_by_expiration",
	EventRestored:                             "restored",
	EventUpdatedByOperations:                  "updated_by_operations",
	EventUnmanagedValidatedByOperations:       "unmanaged_validated_by_operations",
	EventSignatureDocumentOpened:              "signature_document_opened",
	EventSignatureDocumentViewed:              "signature_document_viewed",
}

func (e EventType) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown_event"
}

// PaymentScheme selects the fee structure of the agreement and which exception
// checks gate its validation path.
type PaymentScheme string

const (
	SchemeStandard   PaymentScheme = "standard"
	SchemeFlat       PaymentScheme = "flat"
	SchemeConversion PaymentScheme = "conversion"
	SchemeBaseSalary PaymentScheme = "base_salary"
)

// SignatureProcessType distinguishes envelopes orchestrated by this system
// from documents signed outside of it.
type SignatureProcessType string

const (
	ProcessTypeManaged           SignatureProcessType = "fortpac_managed"
	ProcessTypeExternalUnmanaged SignatureProcessType = "external_unmanaged"
)

// Internal roles relevant to validation routing.
type Role string

const (
	RoleRecruiter        Role = "recruiter"
	RoleCoach            Role = "coach"
	RoleRegionalDirector Role = "regional_director"
	RoleOperations       Role = "operations"
)

// FeeAgreement mirrors the fee_agreements table columns touched by the
// reconciliation pipeline.
type FeeAgreement struct {
	ID                   string
	CompanyID            string
	CreatorID            string
	CoachID              *string
	AppropriatorRole     *Role
	PaymentScheme        PaymentScheme
	SignatureProcessType SignatureProcessType
	Status               Status
	ContractID           *string

	FeePercentage                *float64
	GuaranteeDays                *int
	VerbiageChangesRequested     bool
	FeePercentageChangeRequested bool
	GuaranteeDaysChangeRequested bool

	HiringAuthoritySignDate      *time.Time
	ProductionDirectorSignedDate *time.Time
	SignedDate                   *time.Time
	TrackingSignedDate           *time.Time
	PDFURL                       *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventLog is one append-only audit row written per applied transition (or
// history-only observation). Never mutated after creation.
type EventLog struct {
	ID                int64
	FeeAgreementID    string
	TriggeredByUserID *string
	Event             EventType
	ResultStatus      Status
	Details           json.RawMessage
	RealDate          time.Time
	CreatedAt         time.Time
}

// AuditEvent is the idempotency ledger row for one provider audit-trail entry.
// The ID is the provider-assigned (or derived) event id and is the dedup key.
type AuditEvent struct {
	ID             string
	FeeAgreementID string
	EnvelopeID     string
	Action         string
	ActorUserID    string
	Data           json.RawMessage
	RealDate       time.Time
	Processed      bool
}

// Outbox topics emitted alongside transitions for downstream listeners.
const (
	TopicSignedByHiringAuthority    = "feeagreement.signed_by_hiring_authority"
	TopicSignedByProductionDirector = "feeagreement.signed_by_production_director"
	TopicFeeAgreementSigned         = "feeagreement.signed"
)
