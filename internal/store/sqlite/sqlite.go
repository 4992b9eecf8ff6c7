package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Yibooo/mission-control/internal/store"
)

const DefaultDBPath = "mission-control.db"

// SQLiteStore is the single-binary deployment backend. Timestamps are kept as
// the RFC3339Nano strings the entities already carry, so lexicographic
// ordering matches chronological ordering.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

func New(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}

	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) initTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS leads (
			id TEXT PRIMARY KEY,
			company_name TEXT NOT NULL,
			industry TEXT,
			location TEXT,
			estimated_size TEXT,
			website_url TEXT,
			contact_form_url TEXT,
			form_structure TEXT,
			contact_email TEXT,
			contact_name TEXT,
			research_summary TEXT,
			status TEXT NOT NULL DEFAULT 'researching',
			notes TEXT,
			source TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS email_drafts (
			id TEXT PRIMARY KEY,
			lead_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			body TEXT NOT NULL,
			approval_status TEXT NOT NULL DEFAULT 'pending',
			edited_body TEXT,
			generated_by TEXT,
			failure_reason TEXT,
			created_at TEXT NOT NULL,
			approved_at TEXT,
			sent_at TEXT,
			submitted_at TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS sales_logs (
			id TEXT PRIMARY KEY,
			lead_id TEXT NOT NULL,
			draft_id TEXT,
			event TEXT NOT NULL,
			detail TEXT,
			performed_by TEXT,
			created_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT,
			status TEXT NOT NULL DEFAULT 'idle',
			current_task TEXT,
			current_action TEXT,
			updated_at TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status)`,
		`CREATE INDEX IF NOT EXISTS idx_drafts_lead ON email_drafts(lead_id)`,
		`CREATE INDEX IF NOT EXISTS idx_drafts_status ON email_drafts(approval_status)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_lead ON sales_logs(lead_id)`,
	}
	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead store.Lead) error {
	status := lead.Status
	if status == "" {
		status = store.LeadStatusResearching
	}
	const query = `
		INSERT INTO leads (
			id, company_name, industry, location, estimated_size, website_url,
			contact_form_url, form_structure, contact_email, contact_name,
			research_summary, status, notes, source, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		lead.ID,
		lead.CompanyName,
		lead.Industry,
		lead.Location,
		lead.EstimatedSize,
		lead.WebsiteURL,
		lead.ContactFormURL,
		lead.FormStructure,
		lead.ContactEmail,
		lead.ContactName,
		lead.ResearchSummary,
		status,
		lead.Notes,
		lead.Source,
		lead.CreatedAt,
		lead.UpdatedAt,
	)
	return err
}

const leadColumns = `
	id, company_name, industry, location, estimated_size, website_url,
	contact_form_url, form_structure, contact_email, contact_name,
	research_summary, status, notes, source, created_at, updated_at
`

func scanLead(row interface{ Scan(...any) error }) (store.Lead, error) {
	var lead store.Lead
	err := row.Scan(
		&lead.ID,
		&lead.CompanyName,
		&lead.Industry,
		&lead.Location,
		&lead.EstimatedSize,
		&lead.WebsiteURL,
		&lead.ContactFormURL,
		&lead.FormStructure,
		&lead.ContactEmail,
		&lead.ContactName,
		&lead.ResearchSummary,
		&lead.Status,
		&lead.Notes,
		&lead.Source,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	return lead, err
}

func (s *SQLiteStore) GetLead(ctx context.Context, leadID string) (*store.Lead, error) {
	query := "SELECT " + leadColumns + " FROM leads WHERE id = ?"
	lead, err := scanLead(s.db.QueryRowContext(ctx, query, leadID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, status string) ([]store.Lead, error) {
	query := "SELECT " + leadColumns + " FROM leads"
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteStore) UpdateLeadStatus(ctx context.Context, leadID string, status string, notes string) error {
	const query = `
		UPDATE leads
		SET status = ?,
			notes = CASE WHEN ? != '' THEN ? ELSE notes END,
			updated_at = ?
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query, status, notes, notes, now(), leadID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) UpdateLeadResearch(ctx context.Context, leadID string, summary string) error {
	const query = `UPDATE leads SET research_summary = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, summary, now(), leadID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) CreateDraft(ctx context.Context, draft store.EmailDraft) error {
	approvalStatus := draft.ApprovalStatus
	if approvalStatus == "" {
		approvalStatus = store.DraftPending
	}
	const query = `
		INSERT INTO email_drafts (
			id, lead_id, subject, body, approval_status, edited_body,
			generated_by, failure_reason, created_at, approved_at, sent_at, submitted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		draft.ID,
		draft.LeadID,
		draft.Subject,
		draft.Body,
		approvalStatus,
		draft.EditedBody,
		draft.GeneratedBy,
		draft.FailureReason,
		draft.CreatedAt,
		draft.ApprovedAt,
		draft.SentAt,
		draft.SubmittedAt,
	)
	return err
}

const draftColumns = `
	id, lead_id, subject, body, approval_status, edited_body, generated_by,
	failure_reason, created_at, approved_at, sent_at, submitted_at
`

func scanDraft(row interface{ Scan(...any) error }) (store.EmailDraft, error) {
	var draft store.EmailDraft
	err := row.Scan(
		&draft.ID,
		&draft.LeadID,
		&draft.Subject,
		&draft.Body,
		&draft.ApprovalStatus,
		&draft.EditedBody,
		&draft.GeneratedBy,
		&draft.FailureReason,
		&draft.CreatedAt,
		&draft.ApprovedAt,
		&draft.SentAt,
		&draft.SubmittedAt,
	)
	return draft, err
}

func (s *SQLiteStore) GetDraft(ctx context.Context, draftID string) (*store.EmailDraft, error) {
	query := "SELECT " + draftColumns + " FROM email_drafts WHERE id = ?"
	draft, err := scanDraft(s.db.QueryRowContext(ctx, query, draftID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

func (s *SQLiteStore) GetDraftByLead(ctx context.Context, leadID string) (*store.EmailDraft, error) {
	query := "SELECT " + draftColumns + " FROM email_drafts WHERE lead_id = ? ORDER BY created_at DESC LIMIT 1"
	draft, err := scanDraft(s.db.QueryRowContext(ctx, query, leadID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

func (s *SQLiteStore) ListDrafts(ctx context.Context, approvalStatus string) ([]store.EmailDraft, error) {
	query := "SELECT " + draftColumns + " FROM email_drafts"
	args := []any{}
	if approvalStatus != "" {
		query += " WHERE approval_status = ?"
		args = append(args, approvalStatus)
	}
	query += " ORDER BY created_at DESC"
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteStore) ApproveDraft(ctx context.Context, draftID string, editedBody string, approvedAt string) error {
	const query = `
		UPDATE email_drafts
		SET approval_status = ?, edited_body = ?, approved_at = ?
		WHERE id = ? AND approval_status = ?
	`
	res, err := s.db.ExecContext(ctx, query, store.DraftApproved, editedBody, approvedAt, draftID, store.DraftPending)
	if err != nil {
		return err
	}
	return s.requireTransition(ctx, res, draftID)
}

func (s *SQLiteStore) RejectDraft(ctx context.Context, draftID string) error {
	const query = `
		UPDATE email_drafts
		SET approval_status = ?
		WHERE id = ? AND approval_status = ?
	`
	res, err := s.db.ExecContext(ctx, query, store.DraftRejected, draftID, store.DraftPending)
	if err != nil {
		return err
	}
	return s.requireTransition(ctx, res, draftID)
}

func (s *SQLiteStore) MarkDraftSent(ctx context.Context, draftID string, sentAt string) error {
	const query = `
		UPDATE email_drafts
		SET approval_status = ?, sent_at = ?
		WHERE id = ? AND approval_status = ?
	`
	res, err := s.db.ExecContext(ctx, query, store.DraftSent, sentAt, draftID, store.DraftApproved)
	if err != nil {
		return err
	}
	return s.requireTransition(ctx, res, draftID)
}

func (s *SQLiteStore) MarkDraftSubmitted(ctx context.Context, draftID string, submittedAt string) error {
	const query = `
		UPDATE email_drafts
		SET approval_status = ?, submitted_at = ?
		WHERE id = ? AND approval_status = ?
	`
	res, err := s.db.ExecContext(ctx, query, store.DraftSubmitted, submittedAt, draftID, store.DraftApproved)
	if err != nil {
		return err
	}
	return s.requireTransition(ctx, res, draftID)
}

func (s *SQLiteStore) MarkDraftFailed(ctx context.Context, draftID string, reason string) error {
	const query = `
		UPDATE email_drafts
		SET approval_status = ?, failure_reason = ?
		WHERE id = ? AND approval_status = ?
	`
	res, err := s.db.ExecContext(ctx, query, store.DraftFailed, reason, draftID, store.DraftApproved)
	if err != nil {
		return err
	}
	return s.requireTransition(ctx, res, draftID)
}

func (s *SQLiteStore) requireTransition(ctx context.Context, res sql.Result, draftID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM email_drafts WHERE id = ?)", draftID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrInvalidTransition
}

func (s *SQLiteStore) AppendSalesLog(ctx context.Context, entry store.SalesLog) error {
	const query = `
		INSERT INTO sales_logs (id, lead_id, draft_id, event, detail, performed_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.LeadID,
		entry.DraftID,
		entry.Event,
		entry.Detail,
		entry.PerformedBy,
		entry.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) ListSalesLogs(ctx context.Context, leadID string, limit int) ([]store.SalesLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, lead_id, draft_id, event, detail, performed_by, created_at
		FROM sales_logs
	`
	args := []any{}
	if leadID != "" {
		query += " WHERE lead_id = ?"
		args = append(args, leadID)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.SalesLog{}
	for rows.Next() {
		var entry store.SalesLog
		if err := rows.Scan(&entry.ID, &entry.LeadID, &entry.DraftID, &entry.Event, &entry.Detail, &entry.PerformedBy, &entry.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *SQLiteStore) SalesStats(ctx context.Context) (store.SalesStats, error) {
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
	if err := s.db.QueryRowContext(ctx, query).Scan(
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

func (s *SQLiteStore) ListAgents(ctx context.Context) ([]store.Agent, error) {
	const query = `
		SELECT id, name, role, status, current_task, current_action, updated_at
		FROM agents
		ORDER BY name ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Agent{}
	for rows.Next() {
		var agent store.Agent
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.Role, &agent.Status, &agent.CurrentTask, &agent.CurrentAction, &agent.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// SeedAgent inserts or refreshes a collaborator record at startup.
func (s *SQLiteStore) SeedAgent(ctx context.Context, agent store.Agent) error {
	const query = `
		INSERT INTO agents (id, name, role, status, current_task, current_action, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, role = excluded.role
	`
	status := agent.Status
	if status == "" {
		status = "idle"
	}
	_, err := s.db.ExecContext(ctx, query, agent.ID, agent.Name, agent.Role, status, agent.CurrentTask, agent.CurrentAction, now())
	return err
}

func (s *SQLiteStore) UpdateAgentStatus(ctx context.Context, agentID string, status string, currentTask string) error {
	const query = `UPDATE agents SET status = ?, current_task = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, status, currentTask, now(), agentID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) UpdateAgentActivity(ctx context.Context, agentID string, currentAction string) error {
	const query = `UPDATE agents SET current_action = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, currentAction, now(), agentID)
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

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
