package feeagreement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAgreementNotFound is returned when no agreement row exists for the
	// provided identifier or contract id.
	ErrAgreementNotFound = errors.New("feeagreement: not found")
	// ErrDuplicateAuditEvent signals the provider event id is already in the
	// dedup ledger.
	ErrDuplicateAuditEvent = errors.New("feeagreement: duplicate audit event")
)

// Repository is the Postgres data access layer for agreements, their
// append-only event log, and the provider audit-event ledger.
type Repository struct {
	pool  *pgxpool.Pool
	rules Rules
}

func NewRepository(pool *pgxpool.Pool, rules Rules) *Repository {
	return &Repository{pool: pool, rules: rules}
}

const agreementColumns = `
id, company_id, creator_id, coach_id, appropriator_role, payment_scheme,
signature_process_type, status, contract_id, fee_percentage, guarantee_days,
verbiage_changes_requested, fee_percentage_change_requested,
guarantee_days_change_requested, hiring_authority_sign_date,
production_director_signed_date, signed_date, tracking_signed_date, pdf_url,
created_at, updated_at`

func scanAgreement(row pgx.Row) (FeeAgreement, error) {
	var ag FeeAgreement
	err := row.Scan(
		&ag.ID, &ag.CompanyID, &ag.CreatorID, &ag.CoachID, &ag.AppropriatorRole,
		&ag.PaymentScheme, &ag.SignatureProcessType, &ag.Status, &ag.ContractID,
		&ag.FeePercentage, &ag.GuaranteeDays, &ag.VerbiageChangesRequested,
		&ag.FeePercentageChangeRequested, &ag.GuaranteeDaysChangeRequested,
		&ag.HiringAuthoritySignDate, &ag.ProductionDirectorSignedDate,
		&ag.SignedDate, &ag.TrackingSignedDate, &ag.PDFURL,
		&ag.CreatedAt, &ag.UpdatedAt,
	)
	return ag, err
}

func (r *Repository) GetByID(ctx context.Context, id string) (FeeAgreement, error) {
	ag, err := scanAgreement(r.pool.QueryRow(ctx,
		`SELECT `+agreementColumns+` FROM fee_agreements WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FeeAgreement{}, ErrAgreementNotFound
		}
		return FeeAgreement{}, fmt.Errorf("feeagreement: get by id: %w", err)
	}
	return ag, nil
}

// GetByContractID resolves the agreement owning a provider envelope. Envelope
// ids map 1:1 to agreements.
func (r *Repository) GetByContractID(ctx context.Context, contractID string) (FeeAgreement, error) {
	ag, err := scanAgreement(r.pool.QueryRow(ctx,
		`SELECT `+agreementColumns+` FROM fee_agreements WHERE contract_id = $1`, contractID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FeeAgreement{}, ErrAgreementNotFound
		}
		return FeeAgreement{}, fmt.Errorf("feeagreement: get by contract id: %w", err)
	}
	return ag, nil
}

// ListPendingSignature returns agreements waiting on a signer and carrying an
// envelope, i.e. the poll candidates.
func (r *Repository) ListPendingSignature(ctx context.Context) ([]FeeAgreement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+agreementColumns+`
		 FROM fee_agreements
		 WHERE status = ANY($1) AND contract_id IS NOT NULL
		 ORDER BY updated_at ASC`,
		[]int{int(StatusPendingHiringAuthoritySignature), int(StatusPendingProductionDirectorSignature)})
	if err != nil {
		return nil, fmt.Errorf("feeagreement: list pending signature: %w", err)
	}
	defer rows.Close()

	out := make([]FeeAgreement, 0, 16)
	for rows.Next() {
		ag, err := scanAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("feeagreement: scan pending agreement: %w", err)
		}
		out = append(out, ag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("feeagreement: iterate pending agreements: %w", err)
	}
	return out, nil
}

// KnownAuditEventIDs returns, in one query, which of the given provider event
// ids are already in the ledger.
func (r *Repository) KnownAuditEventIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	known := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return known, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM docusign_audit_events WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("feeagreement: query known audit events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("feeagreement: scan audit event id: %w", err)
		}
		known[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("feeagreement: iterate audit event ids: %w", err)
	}
	return known, nil
}

// InsertAuditEvent persists one ledger row. The provider event id is the
// primary key; a unique violation maps to ErrDuplicateAuditEvent.
func (r *Repository) InsertAuditEvent(ctx context.Context, ev AuditEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO docusign_audit_events (id, fee_agreement_id, envelope_id, action, actor_user_id, data, real_date, processed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)`,
		ev.ID, ev.FeeAgreementID, ev.EnvelopeID, ev.Action, ev.ActorUserID, ev.Data, ev.RealDate)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateAuditEvent
		}
		return fmt.Errorf("feeagreement: insert audit event %s: %w", ev.ID, err)
	}
	return nil
}

// ListUnprocessedEvents returns ledger rows still eligible to drive a
// transition, oldest first.
func (r *Repository) ListUnprocessedEvents(ctx context.Context, agreementID string) ([]AuditEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, fee_agreement_id, envelope_id, action, actor_user_id, data, real_date, processed
		FROM docusign_audit_events
		WHERE fee_agreement_id = $1 AND processed = false
		ORDER BY real_date ASC`, agreementID)
	if err != nil {
		return nil, fmt.Errorf("feeagreement: list unprocessed events: %w", err)
	}
	defer rows.Close()

	out := make([]AuditEvent, 0, 8)
	for rows.Next() {
		var ev AuditEvent
		if err := rows.Scan(&ev.ID, &ev.FeeAgreementID, &ev.EnvelopeID, &ev.Action,
			&ev.ActorUserID, &ev.Data, &ev.RealDate, &ev.Processed); err != nil {
			return nil, fmt.Errorf("feeagreement: scan audit event: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("feeagreement: iterate audit events: %w", err)
	}
	return out, nil
}

// HasEventLog reports whether a transition for this (agreement, event) pair is
// already on record. The webhook path uses it as its idempotency guard.
func (r *Repository) HasEventLog(ctx context.Context, agreementID string, event EventType) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM fee_agreement_event_logs
			WHERE fee_agreement_id = $1 AND event_type = $2
		)`, agreementID, int(event)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("feeagreement: check event log: %w", err)
	}
	return exists, nil
}

// ListEventLogs returns the append-only history for an agreement in insertion
// order.
func (r *Repository) ListEventLogs(ctx context.Context, agreementID string) ([]EventLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, fee_agreement_id, triggered_by_user_id, event_type, result_status, event_details, real_date, created_at
		FROM fee_agreement_event_logs
		WHERE fee_agreement_id = $1
		ORDER BY id ASC`, agreementID)
	if err != nil {
		return nil, fmt.Errorf("feeagreement: list event logs: %w", err)
	}
	defer rows.Close()

	out := make([]EventLog, 0, 8)
	for rows.Next() {
		var l EventLog
		if err := rows.Scan(&l.ID, &l.FeeAgreementID, &l.TriggeredByUserID, &l.Event,
			&l.ResultStatus, &l.Details, &l.RealDate, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("feeagreement: scan event log: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("feeagreement: iterate event logs: %w", err)
	}
	return out, nil
}

// TransitionParams describes one status transition to apply atomically:
// agreement update, event-log append, processed flags, and outbox emit all
// commit or roll back together.
type TransitionParams struct {
	AgreementID       string
	Event             EventType
	TriggeredBy       *string
	RealDate          time.Time
	Details           any
	ProcessedEventIDs []string
	PDFURL            *string
}

// ApplyTransition locks the agreement row, recomputes the transition against
// the fresh status, and commits the full write set. The row lock serializes
// the polling and webhook paths for one agreement.
func (r *Repository) ApplyTransition(ctx context.Context, params TransitionParams) (Status, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("feeagreement: begin transition tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ag, err := scanAgreement(tx.QueryRow(ctx,
		`SELECT `+agreementColumns+` FROM fee_agreements WHERE id = $1 FOR UPDATE`, params.AgreementID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAgreementNotFound
		}
		return 0, fmt.Errorf("feeagreement: lock agreement: %w", err)
	}

	next, err := CalculateStatus(ag.Status, params.Event, CalcContext{Agreement: &ag, Rules: r.rules})
	if err != nil {
		return 0, err
	}

	var (
		haSignDate   *time.Time
		pdSignDate   *time.Time
		signedDate   *time.Time
		trackingDate *time.Time
	)
	switch params.Event {
	case EventSignedByHiringAuthority:
		haSignDate = &params.RealDate
	case EventSignedByProductionDirector:
		pdSignDate = &params.RealDate
		signedDate = &params.RealDate
		tracked := TrackingDate(params.RealDate)
		trackingDate = &tracked
	}

	if _, err := tx.Exec(ctx, `
		UPDATE fee_agreements
		SET status = $2,
		    pdf_url = COALESCE($3, pdf_url),
		    hiring_authority_sign_date = COALESCE($4, hiring_authority_sign_date),
		    production_director_signed_date = COALESCE($5, production_director_signed_date),
		    signed_date = COALESCE($6, signed_date),
		    tracking_signed_date = COALESCE($7, tracking_signed_date),
		    updated_at = now()
		WHERE id = $1`,
		params.AgreementID, int(next), params.PDFURL, haSignDate, pdSignDate, signedDate, trackingDate); err != nil {
		return 0, fmt.Errorf("feeagreement: update status: %w", err)
	}

	if err := insertEventLog(ctx, tx, params.AgreementID, params.TriggeredBy, params.Event, next, params.Details, params.RealDate); err != nil {
		return 0, err
	}

	if err := markProcessed(ctx, tx, params.ProcessedEventIDs); err != nil {
		return 0, err
	}

	for _, topic := range outboxTopics(params.Event) {
		payload := map[string]any{
			"fee_agreement_id": ag.ID,
			"company_id":       ag.CompanyID,
			"event":            params.Event.String(),
			"status":           next.String(),
			"real_date":        params.RealDate.UTC(),
		}
		if err := enqueueOutbox(ctx, tx, topic, payload); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("feeagreement: commit transition: %w", err)
	}

	transitionsApplied.WithLabelValues(params.Event.String()).Inc()
	return next, nil
}

// HistoryParams describes a provider observation that is logged but does not
// move the lifecycle (Opened/Viewed actions).
type HistoryParams struct {
	AgreementID       string
	Event             EventType
	RealDate          time.Time
	Details           any
	ProcessedEventIDs []string
}

// AppendHistory records the observation and consumes the matched ledger rows
// without changing status.
func (r *Repository) AppendHistory(ctx context.Context, params HistoryParams) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("feeagreement: begin history tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current Status
	if err := tx.QueryRow(ctx,
		`SELECT status FROM fee_agreements WHERE id = $1 FOR UPDATE`, params.AgreementID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAgreementNotFound
		}
		return fmt.Errorf("feeagreement: lock agreement for history: %w", err)
	}

	if err := insertEventLog(ctx, tx, params.AgreementID, nil, params.Event, current, params.Details, params.RealDate); err != nil {
		return err
	}
	if err := markProcessed(ctx, tx, params.ProcessedEventIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("feeagreement: commit history: %w", err)
	}
	return nil
}

func insertEventLog(ctx context.Context, tx pgx.Tx, agreementID string, triggeredBy *string, event EventType, result Status, details any, realDate time.Time) error {
	body, err := marshalDetails(details)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO fee_agreement_event_logs (fee_agreement_id, triggered_by_user_id, event_type, result_status, event_details, real_date)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		agreementID, triggeredBy, int(event), int(result), body, realDate); err != nil {
		return fmt.Errorf("feeagreement: insert event log: %w", err)
	}
	return nil
}

func markProcessed(ctx context.Context, tx pgx.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := tx.Exec(ctx,
		`UPDATE docusign_audit_events SET processed = true WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("feeagreement: mark events processed: %w", err)
	}
	return nil
}

func enqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("feeagreement: marshal outbox payload: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`, topic, body); err != nil {
		return fmt.Errorf("feeagreement: enqueue outbox: %w", err)
	}
	return nil
}

func outboxTopics(event EventType) []string {
	switch event {
	case EventSignedByHiringAuthority:
		return []string{TopicSignedByHiringAuthority}
	case EventSignedByProductionDirector:
		return []string{TopicSignedByProductionDirector, TopicFeeAgreementSigned}
	default:
		return nil
	}
}

func marshalDetails(details any) ([]byte, error) {
	if details == nil {
		return []byte(`{}`), nil
	}
	body, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("feeagreement: marshal event details: %w", err)
	}
	return body, nil
}
