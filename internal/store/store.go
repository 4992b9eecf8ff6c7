package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a lead or draft id does not resolve.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when a status change would move a draft
// backwards. Approval statuses only advance: pending → approved/rejected →
// sent|submitted|failed.
var ErrInvalidTransition = errors.New("invalid status transition")

// Lead lifecycle states. captcha_required is terminal pending manual
// intervention; closed_won, closed_lost and rejected are terminal.
const (
	LeadStatusResearching     = "researching"
	LeadStatusDraftReady      = "draft_ready"
	LeadStatusCaptchaRequired = "captcha_required"
	LeadStatusContacted       = "contacted"
	LeadStatusReplied         = "replied"
	LeadStatusNegotiating     = "negotiating"
	LeadStatusClosedWon       = "closed_won"
	LeadStatusClosedLost      = "closed_lost"
	LeadStatusRejected        = "rejected"
)

const (
	DraftPending   = "pending"
	DraftApproved  = "approved"
	DraftRejected  = "rejected"
	DraftSent      = "sent"
	DraftSubmitted = "submitted"
	DraftFailed    = "failed"
)

// Sales log event vocabulary.
const (
	EventLeadCreated      = "lead_created"
	EventResearchDone     = "research_done"
	EventDraftGenerated   = "draft_generated"
	EventApproved         = "approved"
	EventRejected         = "rejected"
	EventSent             = "sent"
	EventFormSubmitted    = "form_submitted"
	EventSubmissionFailed = "submission_failed"
)

type Lead struct {
	ID              string `json:"id"`
	CompanyName     string `json:"companyName"`
	Industry        string `json:"industry"`
	Location        string `json:"location"`
	EstimatedSize   string `json:"estimatedSize"`
	WebsiteURL      string `json:"websiteUrl"`
	ContactFormURL  string `json:"contactFormUrl,omitempty"`
	FormStructure   string `json:"formStructure,omitempty"` // serialized form.Structure, empty when none discovered
	ContactEmail    string `json:"contactEmail,omitempty"`
	ContactName     string `json:"contactName,omitempty"`
	ResearchSummary string `json:"researchSummary,omitempty"`
	Status          string `json:"status"`
	Notes           string `json:"notes,omitempty"`
	Source          string `json:"source"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

type EmailDraft struct {
	ID             string `json:"id"`
	LeadID         string `json:"leadId"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	ApprovalStatus string `json:"approvalStatus"`
	EditedBody     string `json:"editedBody,omitempty"`
	GeneratedBy    string `json:"generatedBy,omitempty"`
	FailureReason  string `json:"failureReason,omitempty"`
	CreatedAt      string `json:"createdAt"`
	ApprovedAt     string `json:"approvedAt,omitempty"`
	SentAt         string `json:"sentAt,omitempty"`
	SubmittedAt    string `json:"submittedAt,omitempty"`
}

type SalesLog struct {
	ID          string `json:"id"`
	LeadID      string `json:"leadId"`
	DraftID     string `json:"draftId,omitempty"`
	Event       string `json:"event"`
	Detail      string `json:"detail"`
	PerformedBy string `json:"performedBy"`
	CreatedAt   string `json:"createdAt"`
}

// Agent is an external collaborator record: the pipeline only flips its
// status/currentAction for observability and never depends on it.
type Agent struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	Status        string `json:"status"`
	CurrentTask   string `json:"currentTask,omitempty"`
	CurrentAction string `json:"currentAction,omitempty"`
	UpdatedAt     string `json:"updatedAt"`
}

type SalesStats struct {
	TotalLeads       int `json:"totalLeads"`
	PendingApprovals int `json:"pendingApprovals"`
	Sent             int `json:"sent"`
	Replied          int `json:"replied"`
	Negotiating      int `json:"negotiating"`
	ClosedWon        int `json:"closedWon"`
}

type Store interface {
	CreateLead(ctx context.Context, lead Lead) error
	GetLead(ctx context.Context, leadID string) (*Lead, error)
	ListLeads(ctx context.Context, status string) ([]Lead, error)
	UpdateLeadStatus(ctx context.Context, leadID string, status string, notes string) error
	UpdateLeadResearch(ctx context.Context, leadID string, summary string) error

	CreateDraft(ctx context.Context, draft EmailDraft) error
	GetDraft(ctx context.Context, draftID string) (*EmailDraft, error)
	GetDraftByLead(ctx context.Context, leadID string) (*EmailDraft, error)
	ListDrafts(ctx context.Context, approvalStatus string) ([]EmailDraft, error)
	ApproveDraft(ctx context.Context, draftID string, editedBody string, approvedAt string) error
	RejectDraft(ctx context.Context, draftID string) error
	MarkDraftSent(ctx context.Context, draftID string, sentAt string) error
	MarkDraftSubmitted(ctx context.Context, draftID string, submittedAt string) error
	MarkDraftFailed(ctx context.Context, draftID string, reason string) error

	AppendSalesLog(ctx context.Context, entry SalesLog) error
	ListSalesLogs(ctx context.Context, leadID string, limit int) ([]SalesLog, error)

	SalesStats(ctx context.Context) (SalesStats, error)

	ListAgents(ctx context.Context) ([]Agent, error)
	UpdateAgentStatus(ctx context.Context, agentID string, status string, currentTask string) error
	UpdateAgentActivity(ctx context.Context, agentID string, currentAction string) error
}
