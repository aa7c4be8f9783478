package feeagreement

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PollStore is the repository slice the poll orchestrator reads from.
type PollStore interface {
	ListPendingSignature(ctx context.Context) ([]FeeAgreement, error)
	ListUnprocessedEvents(ctx context.Context, agreementID string) ([]AuditEvent, error)
}

// Poller runs one ingest-then-reconcile cycle per signature-pending agreement.
// Agreements are processed concurrently but independently; one agreement's
// failure never blocks the others.
type Poller struct {
	store      PollStore
	ingester   *Ingester
	reconciler *Reconciler
	log        logrus.FieldLogger
	// concurrency bounds the per-cycle fan-out.
	concurrency int
}

func NewPoller(store PollStore, ingester *Ingester, reconciler *Reconciler, log logrus.FieldLogger) *Poller {
	return &Poller{
		store:       store,
		ingester:    ingester,
		reconciler:  reconciler,
		log:         log,
		concurrency: 4,
	}
}

// ProcessPending reconciles every poll candidate once. Errors are reported per
// agreement to the log and metrics; the cycle itself only fails when the
// candidate list cannot be loaded.
func (p *Poller) ProcessPending(ctx context.Context) error {
	pending, err := p.store.ListPendingSignature(ctx)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, ag := range pending {
		g.Go(func() error {
			if err := p.ProcessAgreement(ctx, ag); err != nil {
				p.log.WithError(err).WithField("fee_agreement_id", ag.ID).
					Error("poll cycle failed for agreement")
			}
			return nil
		})
	}
	return g.Wait()
}

// ProcessAgreement ingests the envelope's audit trail and reconciles the full
// set of still-unprocessed ledger events, including leftovers from earlier
// cycles whose inserts or scans previously failed.
func (p *Poller) ProcessAgreement(ctx context.Context, ag FeeAgreement) error {
	if _, err := p.ingester.Ingest(ctx, &ag); err != nil {
		return err
	}

	pool, err := p.store.ListUnprocessedEvents(ctx, ag.ID)
	if err != nil {
		return err
	}
	if len(pool) == 0 {
		return nil
	}

	final, err := p.reconciler.Reconcile(ctx, ag, nil, pool)
	if err != nil {
		return err
	}
	if final != ag.Status {
		p.log.WithFields(logrus.Fields{
			"fee_agreement_id": ag.ID,
			"from":             ag.Status.String(),
			"to":               final.String(),
		}).Info("agreement reconciled")
	}
	return nil
}
