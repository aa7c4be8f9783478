package esign

import (
	"errors"
	"testing"
)

func TestSignerByRole(t *testing.T) {
	env := &Envelope{
		EnvelopeID: "env-1",
		Recipients: &Recipients{Signers: []Signer{
			{RoleName: RoleHiringAuthority, UserID: "u-1"},
			{RoleName: RoleProductionDirector, UserID: "u-2"},
		}},
	}

	signer, err := env.SignerByRole(RoleProductionDirector)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if signer.UserID != "u-2" {
		t.Fatalf("got wrong signer: %+v", signer)
	}
}

func TestSignerByRole_MissingRecipients(t *testing.T) {
	cases := []*Envelope{
		nil,
		{EnvelopeID: "env-1"},
		{EnvelopeID: "env-1", Recipients: &Recipients{}},
	}
	for _, env := range cases {
		if _, err := env.SignerByRole(RoleHiringAuthority); !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("envelope %+v: expected ErrMalformedEnvelope, got %v", env, err)
		}
	}
}

func TestSignerByRole_RoleNotPresent(t *testing.T) {
	env := &Envelope{
		EnvelopeID: "env-1",
		Recipients: &Recipients{Signers: []Signer{{RoleName: RoleHiringAuthority}}},
	}

	_, err := env.SignerByRole(RoleProductionDirector)
	var notFound *RoleSignerNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected RoleSignerNotFoundError, got %v", err)
	}
	if notFound.EnvelopeID != "env-1" || notFound.Role != RoleProductionDirector {
		t.Fatalf("error missing context: %+v", notFound)
	}
}
