package feeagreement

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"feeflow/esign"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func rawEvent(id string, action esign.Action, userID string, at time.Time) esign.RawAuditEvent {
	return esign.RawAuditEvent{EventFields: []esign.EventField{
		{Name: "EventId", Value: id},
		{Name: "Action", Value: string(action)},
		{Name: "UserId", Value: userID},
		{Name: "logTime", Value: at.UTC().Format(time.RFC3339)},
	}}
}

func ledgerEvent(id string, action esign.Action, userID string, at time.Time) AuditEvent {
	return AuditEvent{
		ID:          id,
		Action:      string(action),
		ActorUserID: userID,
		RealDate:    at.UTC(),
		Data:        []byte(`{}`),
	}
}

type fakeClient struct {
	auditEvents []esign.RawAuditEvent
	envelope    *esign.Envelope
	auditErr    error
	docBytes    []byte

	mu           sync.Mutex
	auditCalls   int
	docFetches   int
	envelopeGets int
}

func (f *fakeClient) ListAuditEvents(ctx context.Context, envelopeID string) ([]esign.RawAuditEvent, error) {
	f.mu.Lock()
	f.auditCalls++
	f.mu.Unlock()
	if f.auditErr != nil {
		return nil, f.auditErr
	}
	return f.auditEvents, nil
}

func (f *fakeClient) GetEnvelope(ctx context.Context, envelopeID string, include ...string) (*esign.Envelope, error) {
	f.mu.Lock()
	f.envelopeGets++
	f.mu.Unlock()
	if f.envelope == nil {
		return nil, fmt.Errorf("no envelope configured")
	}
	return f.envelope, nil
}

func (f *fakeClient) GetCombinedDocuments(ctx context.Context, envelopeID string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.docFetches++
	f.mu.Unlock()
	b := f.docBytes
	if b == nil {
		b = []byte("%PDF-1.4 fake")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type fakeLedger struct {
	mu        sync.Mutex
	rows      map[string]AuditEvent
	insertErr map[string]error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[string]AuditEvent), insertErr: make(map[string]error)}
}

func (f *fakeLedger) KnownAuditEventIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	known := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := f.rows[id]; ok {
			known[id] = struct{}{}
		}
	}
	return known, nil
}

func (f *fakeLedger) InsertAuditEvent(ctx context.Context, ev AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insertErr[ev.ID]; err != nil {
		return err
	}
	if _, ok := f.rows[ev.ID]; ok {
		return ErrDuplicateAuditEvent
	}
	f.rows[ev.ID] = ev
	return nil
}

// fakeStore is an in-memory stand-in for the repository: it runs the real
// calculator against its stored agreement so transition semantics match the
// database path.
type fakeStore struct {
	mu        sync.Mutex
	agreement FeeAgreement
	rules     Rules
	logs      []EventLog
	processed map[string]bool

	applyErr   map[EventType]error
	historyErr error
}

func newFakeStore(ag FeeAgreement) *fakeStore {
	return &fakeStore{
		agreement: ag,
		rules:     testRules(),
		processed: make(map[string]bool),
		applyErr:  make(map[EventType]error),
	}
}

func (f *fakeStore) ApplyTransition(ctx context.Context, params TransitionParams) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.applyErr[params.Event]; err != nil {
		return 0, err
	}
	next, err := CalculateStatus(f.agreement.Status, params.Event, CalcContext{Agreement: &f.agreement, Rules: f.rules})
	if err != nil {
		return 0, err
	}
	f.agreement.Status = next
	if params.PDFURL != nil {
		f.agreement.PDFURL = params.PDFURL
	}
	f.logs = append(f.logs, EventLog{
		FeeAgreementID: f.agreement.ID,
		Event:          params.Event,
		ResultStatus:   next,
		RealDate:       params.RealDate,
	})
	for _, id := range params.ProcessedEventIDs {
		f.processed[id] = true
	}
	return next, nil
}

func (f *fakeStore) AppendHistory(ctx context.Context, params HistoryParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return f.historyErr
	}
	f.logs = append(f.logs, EventLog{
		FeeAgreementID: f.agreement.ID,
		Event:          params.Event,
		ResultStatus:   f.agreement.Status,
		RealDate:       params.RealDate,
	})
	for _, id := range params.ProcessedEventIDs {
		f.processed[id] = true
	}
	return nil
}

func (f *fakeStore) GetByContractID(ctx context.Context, contractID string) (FeeAgreement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.agreement.ContractID == nil || *f.agreement.ContractID != contractID {
		return FeeAgreement{}, ErrAgreementNotFound
	}
	return f.agreement, nil
}

func (f *fakeStore) HasEventLog(ctx context.Context, agreementID string, event EventType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.logs {
		if l.FeeAgreementID == agreementID && l.Event == event {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.agreement.Status
}

func (f *fakeStore) logEvents() []EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]EventType, len(f.logs))
	for i, l := range f.logs {
		out[i] = l.Event
	}
	return out
}

type fakeFiles struct {
	mu      sync.Mutex
	uploads []string
}

func (f *fakeFiles) Upload(ctx context.Context, path string, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, path)
	return "https://files.test/" + path, nil
}

func signingEnvelope(envelopeID string) *esign.Envelope {
	return &esign.Envelope{
		EnvelopeID: envelopeID,
		Recipients: &esign.Recipients{Signers: []esign.Signer{
			{RoleName: esign.RoleHiringAuthority, UserID: "ha-user", Status: "sent"},
			{RoleName: esign.RoleProductionDirector, UserID: "pd-user", Status: "sent"},
		}},
	}
}

func pendingAgreement(status Status) FeeAgreement {
	contract := "env-1"
	return FeeAgreement{
		ID:                   "ag-1",
		CompanyID:            "co-1",
		PaymentScheme:        SchemeStandard,
		SignatureProcessType: ProcessTypeManaged,
		Status:               status,
		ContractID:           &contract,
	}
}
