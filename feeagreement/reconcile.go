package feeagreement

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"feeflow/esign"
)

// TransitionStore is the slice of the repository the reconciler writes through.
type TransitionStore interface {
	ApplyTransition(ctx context.Context, params TransitionParams) (Status, error)
	AppendHistory(ctx context.Context, params HistoryParams) error
}

// FileStore persists rendered PDF snapshots and returns their URL.
type FileStore interface {
	Upload(ctx context.Context, path string, r io.Reader) (string, error)
}

// scanner looks for one (signer role, provider action) combination in a batch
// of ledger events. History scanners record the observation without moving the
// lifecycle; transition scanners drive the state machine.
type scanner struct {
	role    string
	action  esign.Action
	event   EventType
	history bool
}

// auditScanners lists, per lifecycle status, which provider actions are worth
// scanning for on the polling path.
var auditScanners = map[Status][]scanner{
	StatusPendingHiringAuthoritySignature: {
		{role: esign.RoleHiringAuthority, action: esign.ActionOpened, event: EventSignatureDocumentOpened, history: true},
		{role: esign.RoleHiringAuthority, action: esign.ActionViewed, event: EventSignatureDocumentViewed, history: true},
		{role: esign.RoleHiringAuthority, action: esign.ActionSigned, event: EventSignedByHiringAuthority},
	},
	StatusPendingProductionDirectorSignature: {
		{role: esign.RoleProductionDirector, action: esign.ActionOpened, event: EventSignatureDocumentOpened, history: true},
		{role: esign.RoleProductionDirector, action: esign.ActionViewed, event: EventSignatureDocumentViewed, history: true},
		{role: esign.RoleProductionDirector, action: esign.ActionSigned, event: EventSignedByProductionDirector},
	},
}

// maxReconcilePasses bounds the fixed-point loop. The longest legal chain in
// one batch is two signature hops plus slack; hitting the bound means a
// transition cycle bug, not more work.
const maxReconcilePasses = 5

// Reconciler applies ingested ledger events against an agreement's current
// status and re-scans from the new status until no transition fires.
type Reconciler struct {
	store  TransitionStore
	client esign.Client
	files  FileStore
	log    logrus.FieldLogger
}

func NewReconciler(store TransitionStore, client esign.Client, files FileStore, log logrus.FieldLogger) *Reconciler {
	return &Reconciler{store: store, client: client, files: files, log: log}
}

type scanResult struct {
	matchedIDs []string
	newStatus  Status
	transition bool
	err        error
}

// Reconcile runs scanner passes over the event pool. Scanners within one pass
// run concurrently against the same immutable batch and starting status; a
// failing scanner is logged and counted without aborting its siblings. Passes
// repeat while the status keeps changing, with the consumed events removed
// from the pool between passes.
func (r *Reconciler) Reconcile(ctx context.Context, ag FeeAgreement, env *esign.Envelope, pool []AuditEvent) (Status, error) {
	status := ag.Status
	if len(pool) == 0 {
		return status, nil
	}
	if ag.ContractID == nil {
		return status, fmt.Errorf("feeagreement: agreement %s has no contract id", ag.ID)
	}

	for pass := 0; pass < maxReconcilePasses; pass++ {
		scanners := auditScanners[status]
		if len(scanners) == 0 || len(pool) == 0 {
			break
		}

		if env == nil {
			fetched, err := r.client.GetEnvelope(ctx, *ag.ContractID, "recipients")
			if err != nil {
				return status, fmt.Errorf("feeagreement: fetch envelope recipients: %w", err)
			}
			env = fetched
		}

		results := make([]scanResult, len(scanners))
		var g errgroup.Group
		for idx, sc := range scanners {
			g.Go(func() error {
				results[idx] = r.runScanner(ctx, ag.ID, sc, env, pool)
				return nil
			})
		}
		_ = g.Wait()

		consumed := make(map[string]struct{})
		next := status
		for _, res := range results {
			if res.err != nil {
				scannerFailures.WithLabelValues(status.String()).Inc()
				r.log.WithError(res.err).WithFields(logrus.Fields{
					"fee_agreement_id": ag.ID,
					"status":           status.String(),
				}).Error("scanner failed; continuing with siblings")
				continue
			}
			for _, id := range res.matchedIDs {
				consumed[id] = struct{}{}
			}
			if res.transition {
				next = res.newStatus
			}
		}

		pool = withoutConsumed(pool, consumed)
		if next == status {
			break
		}
		status = next
	}

	return status, nil
}

// runScanner filters the pool down to events attributable to the scanner's
// role signer with the expected action, then either logs history or applies
// the transition. The earliest real_date among the matches is the
// authoritative business timestamp.
func (r *Reconciler) runScanner(ctx context.Context, agreementID string, sc scanner, env *esign.Envelope, pool []AuditEvent) scanResult {
	signer, err := env.SignerByRole(sc.role)
	if err != nil {
		return scanResult{err: err}
	}

	var (
		matched  []AuditEvent
		earliest time.Time
	)
	for _, ev := range pool {
		if ev.ActorUserID != signer.UserID || ev.Action != string(sc.action) {
			continue
		}
		if len(matched) == 0 || ev.RealDate.Before(earliest) {
			earliest = ev.RealDate
		}
		matched = append(matched, ev)
	}
	if len(matched) == 0 {
		return scanResult{}
	}

	ids := make([]string, len(matched))
	details := make([]map[string]any, len(matched))
	for i, ev := range matched {
		ids[i] = ev.ID
		details[i] = map[string]any{
			"event_id":      ev.ID,
			"action":        ev.Action,
			"actor_user_id": ev.ActorUserID,
			"real_date":     ev.RealDate.UTC(),
		}
	}

	if sc.history {
		err := r.store.AppendHistory(ctx, HistoryParams{
			AgreementID:       agreementID,
			Event:             sc.event,
			RealDate:          earliest,
			Details:           details,
			ProcessedEventIDs: ids,
		})
		return scanResult{matchedIDs: ids, err: err}
	}

	pdfURL, err := r.storeSignedPDF(ctx, agreementID, env.EnvelopeID)
	if err != nil {
		return scanResult{err: err}
	}

	next, err := r.store.ApplyTransition(ctx, TransitionParams{
		AgreementID:       agreementID,
		Event:             sc.event,
		RealDate:          earliest,
		Details:           details,
		ProcessedEventIDs: ids,
		PDFURL:            pdfURL,
	})
	if err != nil {
		return scanResult{err: err}
	}
	return scanResult{matchedIDs: ids, newStatus: next, transition: true}
}

// storeSignedPDF pulls the combined document stream and uploads the snapshot
// under the agreement's canonical path.
func (r *Reconciler) storeSignedPDF(ctx context.Context, agreementID, envelopeID string) (*string, error) {
	stream, err := r.client.GetCombinedDocuments(ctx, envelopeID)
	if err != nil {
		return nil, fmt.Errorf("feeagreement: fetch combined documents: %w", err)
	}
	defer stream.Close()

	url, err := r.files.Upload(ctx, PDFPath(agreementID), stream)
	if err != nil {
		return nil, fmt.Errorf("feeagreement: upload signed pdf: %w", err)
	}
	return &url, nil
}

// PDFPath is the storage path convention for agreement snapshots.
func PDFPath(agreementID string) string {
	return fmt.Sprintf("fee_agreements/fee_agreement_%s.pdf", agreementID)
}

func withoutConsumed(pool []AuditEvent, consumed map[string]struct{}) []AuditEvent {
	if len(consumed) == 0 {
		return pool
	}
	out := pool[:0]
	for _, ev := range pool {
		if _, ok := consumed[ev.ID]; !ok {
			out = append(out, ev)
		}
	}
	return out
}
