package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Yibooo/mission-control/internal/store"
)

type MemoryStore struct {
	mu     sync.RWMutex
	leads  map[string]store.Lead
	drafts map[string]store.EmailDraft
	logs   []store.SalesLog
	agents map[string]store.Agent
}

func New() *MemoryStore {
	return &MemoryStore{
		leads:  map[string]store.Lead{},
		drafts: map[string]store.EmailDraft{},
		agents: map[string]store.Agent{},
	}
}

func (m *MemoryStore) CreateLead(ctx context.Context, lead store.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lead.Status == "" {
		lead.Status = store.LeadStatusResearching
	}
	m.leads[lead.ID] = lead
	return nil
}

func (m *MemoryStore) GetLead(ctx context.Context, leadID string) (*store.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lead, ok := m.leads[leadID]
	if !ok {
		return nil, nil
	}
	cloned := lead
	return &cloned, nil
}

func (m *MemoryStore) ListLeads(ctx context.Context, status string) ([]store.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.Lead, 0, len(m.leads))
	for _, lead := range m.leads {
		if status != "" && lead.Status != status {
			continue
		}
		results = append(results, lead)
	}
	sort.Slice(results, func(i, j int) bool {
		return parseTime(results[i].CreatedAt).After(parseTime(results[j].CreatedAt))
	})
	return results, nil
}

func (m *MemoryStore) UpdateLeadStatus(ctx context.Context, leadID string, status string, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[leadID]
	if !ok {
		return store.ErrNotFound
	}
	lead.Status = status
	if notes != "" {
		lead.Notes = notes
	}
	lead.UpdatedAt = now()
	m.leads[leadID] = lead
	return nil
}

func (m *MemoryStore) UpdateLeadResearch(ctx context.Context, leadID string, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[leadID]
	if !ok {
		return store.ErrNotFound
	}
	lead.ResearchSummary = summary
	lead.UpdatedAt = now()
	m.leads[leadID] = lead
	return nil
}

func (m *MemoryStore) CreateDraft(ctx context.Context, draft store.EmailDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if draft.ApprovalStatus == "" {
		draft.ApprovalStatus = store.DraftPending
	}
	m.drafts[draft.ID] = draft
	return nil
}

func (m *MemoryStore) GetDraft(ctx context.Context, draftID string) (*store.EmailDraft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	draft, ok := m.drafts[draftID]
	if !ok {
		return nil, nil
	}
	cloned := draft
	return &cloned, nil
}

func (m *MemoryStore) GetDraftByLead(ctx context.Context, leadID string) (*store.EmailDraft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, draft := range m.drafts {
		if draft.LeadID == leadID {
			cloned := draft
			return &cloned, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListDrafts(ctx context.Context, approvalStatus string) ([]store.EmailDraft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.EmailDraft, 0, len(m.drafts))
	for _, draft := range m.drafts {
		if approvalStatus != "" && draft.ApprovalStatus != approvalStatus {
			continue
		}
		results = append(results, draft)
	}
	sort.Slice(results, func(i, j int) bool {
		return parseTime(results[i].CreatedAt).After(parseTime(results[j].CreatedAt))
	})
	return results, nil
}

func (m *MemoryStore) ApproveDraft(ctx context.Context, draftID string, editedBody string, approvedAt string) error {
	return m.transition(draftID, store.DraftPending, func(draft *store.EmailDraft) {
		draft.ApprovalStatus = store.DraftApproved
		draft.EditedBody = editedBody
		draft.ApprovedAt = approvedAt
	})
}

func (m *MemoryStore) RejectDraft(ctx context.Context, draftID string) error {
	return m.transition(draftID, store.DraftPending, func(draft *store.EmailDraft) {
		draft.ApprovalStatus = store.DraftRejected
	})
}

func (m *MemoryStore) MarkDraftSent(ctx context.Context, draftID string, sentAt string) error {
	return m.transition(draftID, store.DraftApproved, func(draft *store.EmailDraft) {
		draft.ApprovalStatus = store.DraftSent
		draft.SentAt = sentAt
	})
}

func (m *MemoryStore) MarkDraftSubmitted(ctx context.Context, draftID string, submittedAt string) error {
	return m.transition(draftID, store.DraftApproved, func(draft *store.EmailDraft) {
		draft.ApprovalStatus = store.DraftSubmitted
		draft.SubmittedAt = submittedAt
	})
}

func (m *MemoryStore) MarkDraftFailed(ctx context.Context, draftID string, reason string) error {
	return m.transition(draftID, store.DraftApproved, func(draft *store.EmailDraft) {
		draft.ApprovalStatus = store.DraftFailed
		draft.FailureReason = reason
	})
}

func (m *MemoryStore) transition(draftID string, from string, apply func(*store.EmailDraft)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft, ok := m.drafts[draftID]
	if !ok {
		return store.ErrNotFound
	}
	if draft.ApprovalStatus != from {
		return store.ErrInvalidTransition
	}
	apply(&draft)
	m.drafts[draftID] = draft
	return nil
}

func (m *MemoryStore) AppendSalesLog(ctx context.Context, entry store.SalesLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}

func (m *MemoryStore) ListSalesLogs(ctx context.Context, leadID string, limit int) ([]store.SalesLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.SalesLog, 0, len(m.logs))
	for _, entry := range m.logs {
		if leadID != "" && entry.LeadID != leadID {
			continue
		}
		results = append(results, entry)
	}
	sort.Slice(results, func(i, j int) bool {
		return parseTime(results[i].CreatedAt).After(parseTime(results[j].CreatedAt))
	})
	if limit <= 0 {
		limit = 50
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MemoryStore) SalesStats(ctx context.Context) (store.SalesStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := store.SalesStats{TotalLeads: len(m.leads)}
	for _, draft := range m.drafts {
		if draft.ApprovalStatus == store.DraftPending {
			stats.PendingApprovals++
		}
	}
	for _, lead := range m.leads {
		switch lead.Status {
		case store.LeadStatusContacted:
			stats.Sent++
		case store.LeadStatusReplied:
			stats.Replied++
		case store.LeadStatusNegotiating:
			stats.Negotiating++
		case store.LeadStatusClosedWon:
			stats.ClosedWon++
		}
	}
	return stats, nil
}

func (m *MemoryStore) ListAgents(ctx context.Context) ([]store.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]store.Agent, 0, len(m.agents))
	for _, agent := range m.agents {
		results = append(results, agent)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})
	return results, nil
}

// SeedAgent registers a collaborator record. The dashboard owns the roster in
// production; tests and the memory-backed dev server seed it here.
func (m *MemoryStore) SeedAgent(agent store.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[agent.ID] = agent
}

func (m *MemoryStore) UpdateAgentStatus(ctx context.Context, agentID string, status string, currentTask string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[agentID]
	if !ok {
		return store.ErrNotFound
	}
	agent.Status = status
	agent.CurrentTask = currentTask
	agent.UpdatedAt = now()
	m.agents[agentID] = agent
	return nil
}

func (m *MemoryStore) UpdateAgentActivity(ctx context.Context, agentID string, currentAction string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[agentID]
	if !ok {
		return store.ErrNotFound
	}
	agent.CurrentAction = currentAction
	agent.UpdatedAt = now()
	m.agents[agentID] = agent
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
