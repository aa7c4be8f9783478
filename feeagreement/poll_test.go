package feeagreement

import (
	"context"
	"sort"
	"testing"
	"time"

	"feeflow/esign"
)

// fakePollStore glues the in-memory agreement store and ledger together so one
// poll cycle exercises the real ingest → reconcile composition.
type fakePollStore struct {
	*fakeStore
	ledger *fakeLedger
}

func (f *fakePollStore) ListPendingSignature(ctx context.Context) ([]FeeAgreement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.agreement.Status {
	case StatusPendingHiringAuthoritySignature, StatusPendingProductionDirectorSignature:
		return []FeeAgreement{f.agreement}, nil
	}
	return nil, nil
}

func (f *fakePollStore) ListUnprocessedEvents(ctx context.Context, agreementID string) ([]AuditEvent, error) {
	f.ledger.mu.Lock()
	defer f.ledger.mu.Unlock()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []AuditEvent
	for id, ev := range f.ledger.rows {
		if f.processed[id] {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RealDate.Before(out[j].RealDate) })
	return out, nil
}

func TestPoller_FullCycle(t *testing.T) {
	t1 := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	store := &fakePollStore{
		fakeStore: newFakeStore(pendingAgreement(StatusPendingHiringAuthoritySignature)),
		ledger:    newFakeLedger(),
	}
	client := &fakeClient{
		envelope: signingEnvelope("env-1"),
		auditEvents: []esign.RawAuditEvent{
			rawEvent("ev-ha", esign.ActionSigned, "ha-user", t1),
			rawEvent("ev-pd", esign.ActionSigned, "pd-user", t2),
		},
	}

	log := testLogger()
	poller := NewPoller(store,
		NewIngester(client, store.ledger, log),
		NewReconciler(store.fakeStore, client, &fakeFiles{}, log),
		log)

	if err := poller.ProcessPending(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if store.status() != StatusSigned {
		t.Fatalf("expected signed after one cycle, got %s", store.status())
	}
	events := store.logEvents()
	if len(events) != 2 || events[0] != EventSignedByHiringAuthority || events[1] != EventSignedByProductionDirector {
		t.Fatalf("event log sequence: %v", events)
	}

	// The agreement is no longer a poll candidate and the provider trail is
	// fully consumed; another cycle changes nothing.
	if err := poller.ProcessPending(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if got := len(store.logEvents()); got != 2 {
		t.Fatalf("idle cycle appended log rows: %d", got)
	}
	if client.auditCalls != 1 {
		t.Fatalf("idle cycle should not pull the trail again, got %d pulls", client.auditCalls)
	}
}

// Ledger rows left over from an earlier failed scan are picked up even when
// the provider trail yields nothing new this cycle.
func TestPoller_ReconcilesLeftoverLedgerRows(t *testing.T) {
	at := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	store := &fakePollStore{
		fakeStore: newFakeStore(pendingAgreement(StatusPendingHiringAuthoritySignature)),
		ledger:    newFakeLedger(),
	}
	store.ledger.rows["ev-old"] = ledgerEvent("ev-old", esign.ActionSigned, "ha-user", at)
	client := &fakeClient{envelope: signingEnvelope("env-1")}

	log := testLogger()
	poller := NewPoller(store,
		NewIngester(client, store.ledger, log),
		NewReconciler(store.fakeStore, client, &fakeFiles{}, log),
		log)

	if err := poller.ProcessPending(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if store.status() != StatusPendingProductionDirectorSignature {
		t.Fatalf("leftover row not reconciled, status %s", store.status())
	}
	if !store.processed["ev-old"] {
		t.Fatal("leftover row not consumed")
	}
}
