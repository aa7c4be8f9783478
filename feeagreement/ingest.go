package feeagreement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"feeflow/esign"
)

// AuditLedger is the slice of the repository the ingester needs.
type AuditLedger interface {
	KnownAuditEventIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	InsertAuditEvent(ctx context.Context, ev AuditEvent) error
}

// Ingester pulls a contract's full audit trail from the provider and persists
// any not-yet-seen event as an unprocessed ledger row.
type Ingester struct {
	client esign.Client
	ledger AuditLedger
	log    logrus.FieldLogger
}

func NewIngester(client esign.Client, ledger AuditLedger, log logrus.FieldLogger) *Ingester {
	return &Ingester{client: client, ledger: ledger, log: log}
}

// Ingest fetches and dedups the audit trail for the agreement's envelope. It
// returns the newly persisted events. An empty provider trail is not an error.
//
// Individual insert failures are logged and counted, then skipped: the event
// is excluded from this round and remains eligible on the next poll because
// the provider keeps returning it.
func (i *Ingester) Ingest(ctx context.Context, ag *FeeAgreement) ([]AuditEvent, error) {
	if ag.ContractID == nil || *ag.ContractID == "" {
		return nil, fmt.Errorf("feeagreement: agreement %s has no contract id", ag.ID)
	}
	envelopeID := *ag.ContractID

	raw, err := i.client.ListAuditEvents(ctx, envelopeID)
	if err != nil {
		return nil, fmt.Errorf("feeagreement: fetch audit trail: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	entries := make([]esign.AuditEntry, 0, len(raw))
	ids := make([]string, 0, len(raw))
	for _, ev := range raw {
		entry, err := esign.FormatAuditEvent(envelopeID, ev)
		if err != nil {
			i.log.WithError(err).WithField("envelope_id", envelopeID).
				Warn("skipping unparseable audit event")
			continue
		}
		entries = append(entries, entry)
		ids = append(ids, entry.ID)
	}

	known, err := i.ledger.KnownAuditEventIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	inserted := make([]AuditEvent, 0, len(entries))
	for _, entry := range entries {
		if _, seen := known[entry.ID]; seen {
			continue
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("feeagreement: marshal audit entry: %w", err)
		}
		ev := AuditEvent{
			ID:             entry.ID,
			FeeAgreementID: ag.ID,
			EnvelopeID:     envelopeID,
			Action:         string(entry.Action),
			ActorUserID:    entry.UserID,
			Data:           data,
			RealDate:       entry.LogTime,
		}
		if err := i.ledger.InsertAuditEvent(ctx, ev); err != nil {
			if errors.Is(err, ErrDuplicateAuditEvent) {
				continue
			}
			auditInsertFailures.Inc()
			i.log.WithError(err).WithFields(logrus.Fields{
				"envelope_id": envelopeID,
				"event_id":    entry.ID,
			}).Warn("audit event insert failed; will retry next poll")
			continue
		}
		inserted = append(inserted, ev)
	}

	return inserted, nil
}
