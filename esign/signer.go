package esign

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEnvelope signals the envelope carries no recipient data at all.
	ErrMalformedEnvelope = errors.New("esign: envelope has no recipient data")
)

// RoleSignerNotFoundError is returned when the recipient list is well formed
// but no signer carries the requested role.
type RoleSignerNotFoundError struct {
	EnvelopeID string
	Role       string
}

func (e *RoleSignerNotFoundError) Error() string {
	return fmt.Sprintf("esign: envelope %s has no signer with role %q", e.EnvelopeID, e.Role)
}

// SignerByRole returns the signer holding the given role name. A missing
// recipient block and a missing role signer are distinct failures; the
// resolver never returns a nil signer without an error.
func (e *Envelope) SignerByRole(role string) (*Signer, error) {
	if e == nil || e.Recipients == nil || len(e.Recipients.Signers) == 0 {
		return nil, ErrMalformedEnvelope
	}
	for i := range e.Recipients.Signers {
		if e.Recipients.Signers[i].RoleName == role {
			return &e.Recipients.Signers[i], nil
		}
	}
	var id string
	if e != nil {
		id = e.EnvelopeID
	}
	return nil, &RoleSignerNotFoundError{EnvelopeID: id, Role: role}
}
