package feeagreement

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"feeflow/esign"
)

// webhookScanners is the narrower per-status scanner set for push payloads. A
// webhook snapshot can reflect either signer's completion when the agreement
// is still waiting on the hiring authority, because deliveries may arrive out
// of order or coalesced.
var webhookScanners = map[Status][]scanner{
	StatusPendingHiringAuthoritySignature: {
		{role: esign.RoleHiringAuthority, action: esign.ActionSigned, event: EventSignedByHiringAuthority},
		{role: esign.RoleProductionDirector, action: esign.ActionSigned, event: EventSignedByProductionDirector},
	},
	StatusPendingProductionDirectorSignature: {
		{role: esign.RoleProductionDirector, action: esign.ActionSigned, event: EventSignedByProductionDirector},
	},
}

// WebhookStore is the repository slice the webhook path consumes.
type WebhookStore interface {
	GetByContractID(ctx context.Context, contractID string) (FeeAgreement, error)
	HasEventLog(ctx context.Context, agreementID string, event EventType) (bool, error)
	ApplyTransition(ctx context.Context, params TransitionParams) (Status, error)
}

// WebhookProcessor handles provider push deliveries carrying a materialized
// envelope snapshot. Unlike the polling loop it applies at most one hop per
// delivery; the provider sends one webhook per actor transition.
type WebhookProcessor struct {
	store WebhookStore
	files FileStore
	log   logrus.FieldLogger
}

func NewWebhookProcessor(store WebhookStore, files FileStore, log logrus.FieldLogger) *WebhookProcessor {
	return &WebhookProcessor{store: store, files: files, log: log}
}

// ProcessEnvelopeUpdate applies a webhook envelope snapshot. Lookup failures
// surface as ErrAgreementNotFound so the HTTP layer can acknowledge the
// delivery without retrying forever; duplicate deliveries are detected via the
// event log and skipped.
func (p *WebhookProcessor) ProcessEnvelopeUpdate(ctx context.Context, env *esign.Envelope) error {
	if env == nil || env.EnvelopeID == "" {
		webhookDeliveries.WithLabelValues("malformed").Inc()
		return fmt.Errorf("feeagreement: webhook payload missing envelope id")
	}

	ag, err := p.store.GetByContractID(ctx, env.EnvelopeID)
	if err != nil {
		webhookDeliveries.WithLabelValues("unknown_envelope").Inc()
		return err
	}

	for _, sc := range webhookScanners[ag.Status] {
		applied, err := p.applyScanner(ctx, &ag, sc, env)
		if err != nil {
			webhookDeliveries.WithLabelValues("error").Inc()
			return err
		}
		if applied {
			webhookDeliveries.WithLabelValues("applied").Inc()
			return nil
		}
	}

	webhookDeliveries.WithLabelValues("noop").Inc()
	return nil
}

func (p *WebhookProcessor) applyScanner(ctx context.Context, ag *FeeAgreement, sc scanner, env *esign.Envelope) (bool, error) {
	done, err := p.store.HasEventLog(ctx, ag.ID, sc.event)
	if err != nil {
		return false, err
	}
	if done {
		p.log.WithFields(logrus.Fields{
			"fee_agreement_id": ag.ID,
			"event":            sc.event.String(),
		}).Info("webhook replay; event already recorded")
		return false, nil
	}

	signer, err := env.SignerByRole(sc.role)
	if err != nil {
		return false, err
	}
	if signer.Status != esign.SignerStatusCompleted {
		// Not actionable yet; a later delivery will carry the completion.
		return false, nil
	}

	realDate := time.Now().UTC()
	if signer.SignedDateTime != "" {
		if parsed, err := esign.ParseLogTime(signer.SignedDateTime); err == nil {
			realDate = parsed
		}
	}

	pdfURL, err := p.storePayloadPDF(ctx, ag.ID, env)
	if err != nil {
		return false, err
	}

	if _, err := p.store.ApplyTransition(ctx, TransitionParams{
		AgreementID: ag.ID,
		Event:       sc.event,
		RealDate:    realDate,
		Details: map[string]any{
			"source":      "webhook",
			"envelope_id": env.EnvelopeID,
			"role":        sc.role,
			"signer":      signer.UserID,
			"signed_at":   signer.SignedDateTime,
		},
		PDFURL: pdfURL,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// storePayloadPDF extracts the contract body shipped inline with the webhook
// (base64, documentId "1"); no extra provider round-trip is made. A payload
// without documents is tolerated.
func (p *WebhookProcessor) storePayloadPDF(ctx context.Context, agreementID string, env *esign.Envelope) (*string, error) {
	for _, doc := range env.Documents {
		if doc.DocumentID != esign.ContractDocumentID {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(doc.PDFBytes)
		if err != nil {
			return nil, fmt.Errorf("feeagreement: decode webhook document: %w", err)
		}
		url, err := p.files.Upload(ctx, PDFPath(agreementID), bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("feeagreement: upload webhook pdf: %w", err)
		}
		return &url, nil
	}
	return nil, nil
}
