package esign

import "time"

// Action is the provider's vocabulary for audit-trail entries.
type Action string

const (
	ActionOpened Action = "Opened"
	ActionViewed Action = "Viewed"
	ActionSigned Action = "Signed"
)

// Signer role names as they appear on the envelope. These are the provider-side
// parties, distinct from internal validation roles.
const (
	RoleHiringAuthority    = "Hiring Authority"
	RoleProductionDirector = "Production Director"
)

// SignerStatusCompleted is the recipient status the provider reports once a
// signer has finished their part of the envelope.
const SignerStatusCompleted = "completed"

// Envelope is the provider's container for one document plus its recipients.
// The JSON shape mirrors the provider's envelope resource and is also the shape
// of webhook push payloads.
type Envelope struct {
	EnvelopeID string             `json:"envelopeId"`
	Status     string             `json:"status"`
	Recipients *Recipients        `json:"recipients"`
	Documents  []EnvelopeDocument `json:"envelopeDocuments"`
}

type Recipients struct {
	Signers []Signer `json:"signers"`
}

// Signer is one named party on an envelope.
type Signer struct {
	RoleName       string `json:"roleName"`
	UserID         string `json:"userId"`
	RecipientID    string `json:"recipientId"`
	Status         string `json:"status"`
	SignedDateTime string `json:"signedDateTime"`
}

// EnvelopeDocument carries document content on webhook payloads. The document
// with ID "1" is the contract body; "certificate" is the signing certificate.
type EnvelopeDocument struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	PDFBytes   string `json:"PDFBytes"`
}

const ContractDocumentID = "1"

// EventField is one name/value pair inside a raw provider audit event.
type EventField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RawAuditEvent is a single untyped audit-trail row as returned by the
// provider. Fields of interest are extracted by FormatAuditEvent.
type RawAuditEvent struct {
	EventFields []EventField `json:"eventFields"`
}

// AuditEntry is the normalized form of a raw audit event.
type AuditEntry struct {
	ID      string    `json:"id"`
	Action  Action    `json:"action"`
	UserID  string    `json:"user_id"`
	LogTime time.Time `json:"log_time"`
}
