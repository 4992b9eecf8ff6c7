package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Yibooo/mission-control/internal/store"
)

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"leads",
		"email_drafts",
		"sales_logs",
		"agents",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run infra/migrations/001_init.sql)", table)
		}
	}
	return nil
}

func (p *PostgresStore) CreateLead(ctx context.Context, lead store.Lead) error {
	status := lead.Status
	if status == "" {
		status = store.LeadStatusResearching
	}
	const query = `
		INSERT INTO leads (
			id,
			company_name,
			industry,
			location,
			estimated_size,
			website_url,
			contact_form_url,
			form_structure,
			contact_email,
			contact_name,
			research_summary,
			status,
			notes,
			source,
			created_at,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := p.db.ExecContext(
		ctx,
		query,
		lead.ID,
		lead.CompanyName,
		lead.Industry,
		lead.Location,
		lead.EstimatedSize,
		lead.WebsiteURL,
		nullString(lead.ContactFormURL),
		nullString(lead.FormStructure),
		nullString(lead.ContactEmail),
		nullString(lead.ContactName),
		nullString(lead.ResearchSummary),
		status,
		nullString(lead.Notes),
		lead.Source,
		parseTimestampValue(lead.CreatedAt),
		parseTimestampValue(lead.UpdatedAt),
	)
	return err
}

const leadColumns = `
	id, company_name, industry, location, estimated_size, website_url,
	contact_form_url, form_structure, contact_email, contact_name,
	research_summary, status, notes, source, created_at, updated_at
`

func scanLead(row interface{ Scan(...any) error }) (store.Lead, error) {
	var (
		lead            store.Lead
		contactFormURL  sql.NullString
		formStructure   sql.NullString
		contactEmail    sql.NullString
		contactName     sql.NullString
		researchSummary sql.NullString
		notes           sql.NullString
		createdAt       time.Time
		updatedAt       time.Time
	)
	if err := row.Scan(
		&lead.ID,
		&lead.CompanyName,
		&lead.Industry,
		&lead.Location,
		&lead.EstimatedSize,
		&lead.WebsiteURL,
		&contactFormURL,
		&formStructure,
		&contactEmail,
		&contactName,
		&researchSummary,
		&lead.Status,
		&notes,
		&lead.Source,
		&createdAt,
		&updatedAt,
	); err != nil {
		return store.Lead{}, err
	}
	lead.ContactFormURL = contactFormURL.String
	lead.FormStructure = formStructure.String
	lead.ContactEmail = contactEmail.String
	lead.ContactName = contactName.String
	lead.ResearchSummary = researchSummary.String
	lead.Notes = notes.String
	lead.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	lead.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return lead, nil
}

func (p *PostgresStore) GetLead(ctx context.Context, leadID string) (*store.Lead, error) {
	query := "SELECT " + leadColumns + " FROM leads WHERE id = $1"
	lead, err := scanLead(p.db.QueryRowContext(ctx, query, leadID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &lead, nil
}

func (p *PostgresStore) ListLeads(ctx context.Context, status string) ([]store.Lead, error) {
	query := "SELECT " + leadColumns + " FROM leads"
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) UpdateLeadStatus(ctx context.Context, leadID string, status string, notes string) error {
	const query = `
		UPDATE leads
		SET status = $2, notes = COALESCE(NULLIF($3, ''), notes), updated_at = NOW()
		WHERE id = $1
	`
	res, err := p.db.ExecContext(ctx, query, leadID, status, notes)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresStore) UpdateLeadResearch(ctx context.Context, leadID string, summary string) error {
	const query = `
		UPDATE leads
		SET research_summary = $2, updated_at = NOW()
		WHERE id = $1
	`
	res, err := p.db.ExecContext(ctx, query, leadID, summary)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresStore) CreateDraft(ctx context.Context, draft store.EmailDraft) error {
	approvalStatus := draft.ApprovalStatus
	if approvalStatus == "" {
		approvalStatus = store.DraftPending
	}
	const query = `
		INSERT INTO email_drafts (
			id,
			lead_id,
			subject,
			body,
			approval_status,
			edited_body,
			generated_by,
			failure_reason,
			created_at,
			approved_at,
			sent_at,
			submitted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := p.db.ExecContext(
		ctx,
		query,
		draft.ID,
		draft.LeadID,
		draft.Subject,
		draft.Body,
		approvalStatus,
		nullString(draft.EditedBody),
		nullString(draft.GeneratedBy),
		nullString(draft.FailureReason),
		parseTimestampValue(draft.CreatedAt),
		parseTimestampNull(draft.ApprovedAt),
		parseTimestampNull(draft.SentAt),
		parseTimestampNull(draft.SubmittedAt),
	)
	return err
}

const draftColumns = `
	id, lead_id, subject, body, approval_status, edited_body, generated_by,
	failure_reason, created_at, approved_at, sent_at, submitted_at
`

func scanDraft(row interface{ Scan(...any) error }) (store.EmailDraft, error) {
	var (
		draft         store.EmailDraft
		editedBody    sql.NullString
		generatedBy   sql.NullString
		failureReason sql.NullString
		createdAt     time.Time
		approvedAt    sql.NullTime
		sentAt        sql.NullTime
		submittedAt   sql.NullTime
	)
	if err := row.Scan(
		&draft.ID,
		&draft.LeadID,
		&draft.Subject,
		&draft.Body,
		&draft.ApprovalStatus,
		&editedBody,
		&generatedBy,
		&failureReason,
		&createdAt,
		&approvedAt,
		&sentAt,
		&submittedAt,
	); err != nil {
		return store.EmailDraft{}, err
	}
	draft.EditedBody = editedBody.String
	draft.GeneratedBy = generatedBy.String
	draft.FailureReason = failureReason.String
	draft.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	if approvedAt.Valid {
		draft.ApprovedAt = approvedAt.Time.UTC().Format(time.RFC3339Nano)
	}
	if sentAt.Valid {
		draft.SentAt = sentAt.Time.UTC().Format(time.RFC3339Nano)
	}
	if submittedAt.Valid {
		draft.SubmittedAt = submittedAt.Time.UTC().Format(time.RFC3339Nano)
	}
	return draft, nil
}

func (p *PostgresStore) GetDraft(ctx context.Context, draftID string) (*store.EmailDraft, error) {
	query := "SELECT " + draftColumns + " FROM email_drafts WHERE id = $1"
	draft, err := scanDraft(p.db.QueryRowContext(ctx, query, draftID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

func (p *PostgresStore) GetDraftByLead(ctx context.Context, leadID string) (*store.EmailDraft, error) {
	query := "SELECT " + draftColumns + " FROM email_drafts WHERE lead_id = $1 ORDER BY created_at DESC LIMIT 1"
	draft, err := scanDraft(p.db.QueryRowContext(ctx, query, leadID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

func (p *PostgresStore) ListDrafts(ctx context.Context, approvalStatus string) ([]store.EmailDraft, error) {
	query := "SELECT " + draftColumns + " FROM email_drafts"
	args := []any{}
	if approvalStatus != "" {
		query += " WHERE approval_status = $1"
		args = append(args, approvalStatus)
	}
	query += " ORDER BY created_at DESC"
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.EmailDraft{}
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, draft)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) ApproveDraft(ctx context.Context, draftID string, editedBody string, approvedAt string) error {
	const query = `
		UPDATE email_drafts
		SET approval_status = $2, edited_body = NULLIF($3, ''), approved_at = $4
		WHERE id = $1 AND approval_status = $5
	`
	res, err := p.db.ExecContext(ctx, query, draftID, store.DraftApproved, editedBody, parseTimestampValue(approvedAt), store.DraftPending)
	if err != nil {
		return err
	}
	return p.requireTransition(ctx, res, draftID)
}

func (p *PostgresStore) RejectDraft(ctx context.Context, draftID string) error {
	const query = `
		UPDATE email_drafts
		SET approval_status = $2
		WHERE id = $1 AND approval_status = $3
	`
	res, err := p.db.ExecContext(ctx, query, draftID, store.DraftRejected, store.DraftPending)
	if err != nil {
		return err
	}
	return p.requireTransition(ctx, res, draftID)
}

func (p *PostgresStore) MarkDraftSent(ctx context.Context, draftID string, sentAt string) error {
	const query = `
		UPDATE email_drafts
		SET approval_status = $2, sent_at = $3
		WHERE id = $1 AND approval_status = $4
	`
	res, err := p.db.ExecContext(ctx, query, draftID, store.DraftSent, parseTimestampValue(sentAt), store.DraftApproved)
	if err != nil {
		return err
	}
	return p.requireTransition(ctx, res, draftID)
}

func (p *PostgresStore) MarkDraftSubmitted(ctx context.Context, draftID string, submittedAt string) error {
	const query = `
		UPDATE email_drafts
		SET approval_status = $2, submitted_at = $3
		WHERE id = $1 AND approval_status = $4
	`
	res, err := p.db.ExecContext(ctx, query, draftID, store.DraftSubmitted, parseTimestampValue(submittedAt), store.DraftApproved)
	if err != nil {
		return err
	}
	return p.requireTransition(ctx, res, draftID)
}

func (p *PostgresStore) MarkDraftFailed(ctx context.Context, draftID string, reason string) error {
	const query = `
		UPDATE email_drafts
		SET approval_status = $2, failure_reason = $3
		WHERE id = $1 AND approval_status = $4
	`
	res, err := p.db.ExecContext(ctx, query, draftID, store.DraftFailed, reason, store.DraftApproved)
	if err != nil {
		return err
	}
	return p.requireTransition(ctx, res, draftID)
}

// requireTransition distinguishes a missing draft from one whose status
// blocked the guarded UPDATE.
func (p *PostgresStore) requireTransition(ctx context.Context, res sql.Result, draftID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	if err := p.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM email_drafts WHERE id = $1)", draftID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrInvalidTransition
}

func (p *PostgresStore) AppendSalesLog(ctx context.Context, entry store.SalesLog) error {
	const query = `
		INSERT INTO sales_logs (id, lead_id, draft_id, event, detail, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := p.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.LeadID,
		nullString(entry.DraftID),
		entry.Event,
		entry.Detail,
		entry.PerformedBy,
		parseTimestampValue(entry.CreatedAt),
	)
	return err
}

func (p *PostgresStore) ListSalesLogs(ctx context.Context, leadID string, limit int) ([]store.SalesLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, lead_id, draft_id, event, detail, performed_by, created_at
		FROM sales_logs
	`
	args := []any{}
	if leadID != "" {
		query += " WHERE lead_id = $1 ORDER BY created_at DESC LIMIT $2"
		args = append(args, leadID, limit)
	} else {
		query += " ORDER BY created_at DESC LIMIT $1"
		args = append(args, limit)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.SalesLog{}
	for rows.Next() {
		var createdAt time.Time
		var draftID sql.NullString
		var entry store.SalesLog
		if err := rows.Scan(&entry.ID, &entry.LeadID, &draftID, &entry.Event, &entry.Detail, &entry.PerformedBy, &createdAt); err != nil {
			return nil, err
		}
		entry.DraftID = draftID.String
		entry.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) SalesStats(ctx context.Context) (store.SalesStats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM leads),
			(SELECT COUNT(*) FROM email_drafts WHERE approval_status = 'pending'),
			(SELECT COUNT(*) FROM leads WHERE status = 'contacted'),
			(SELECT COUNT(*) FROM leads WHERE status = 'replied'),
			(SELECT COUNT(*) FROM leads WHERE status = 'negotiating'),
			(SELECT COUNT(*) FROM leads WHERE status = 'closed_won')
	`
	stats := store.SalesStats{}
	if err := p.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalLeads,
		&stats.PendingApprovals,
		&stats.Sent,
		&stats.Replied,
		&stats.Negotiating,
		&stats.ClosedWon,
	); err != nil {
		return store.SalesStats{}, err
	}
	return stats, nil
}

func (p *PostgresStore) ListAgents(ctx context.Context) ([]store.Agent, error) {
	const query = `
		SELECT id, name, role, status, current_task, current_action, updated_at
		FROM agents
		ORDER BY name ASC
	`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Agent{}
	for rows.Next() {
		var currentTask sql.NullString
		var currentAction sql.NullString
		var updatedAt time.Time
		var agent store.Agent
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.Role, &agent.Status, &currentTask, &currentAction, &updatedAt); err != nil {
			return nil, err
		}
		agent.CurrentTask = currentTask.String
		agent.CurrentAction = currentAction.String
		agent.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
		results = append(results, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) UpdateAgentStatus(ctx context.Context, agentID string, status string, currentTask string) error {
	const query = `
		UPDATE agents
		SET status = $2, current_task = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1
	`
	res, err := p.db.ExecContext(ctx, query, agentID, status, currentTask)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *PostgresStore) UpdateAgentActivity(ctx context.Context, agentID string, currentAction string) error {
	const query = `
		UPDATE agents
		SET current_action = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $1
	`
	res, err := p.db.ExecContext(ctx, query, agentID, currentAction)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimestampValue(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Now().UTC()
	}
	return parsed
}

func parseTimestampNull(value string) any {
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil
	}
	return parsed
}
