package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Yibooo/mission-control/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLeadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	lead := store.Lead{
		ID:            "lead-1",
		CompanyName:   "株式会社山田商事",
		Industry:      "小売業",
		WebsiteURL:    "https://yamada.co.jp",
		FormStructure: `{"schemaVersion":1}`,
		Source:        "tavily_search",
		CreatedAt:     "2026-08-01T00:00:00Z",
		UpdatedAt:     "2026-08-01T00:00:00Z",
	}
	require.NoError(t, s.CreateLead(ctx, lead))

	got, err := s.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "株式会社山田商事", got.CompanyName)
	require.Equal(t, store.LeadStatusResearching, got.Status)
	require.Equal(t, `{"schemaVersion":1}`, got.FormStructure)

	missing, err := s.GetLead(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestListLeadsOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateLead(ctx, store.Lead{
		ID: "old", CompanyName: "古い会社", CreatedAt: "2026-08-01T00:00:00Z", UpdatedAt: "2026-08-01T00:00:00Z",
	}))
	require.NoError(t, s.CreateLead(ctx, store.Lead{
		ID: "new", CompanyName: "新しい会社", Status: store.LeadStatusDraftReady,
		CreatedAt: "2026-08-02T00:00:00Z", UpdatedAt: "2026-08-02T00:00:00Z",
	}))

	all, err := s.ListLeads(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "new", all[0].ID)

	ready, err := s.ListLeads(ctx, store.LeadStatusDraftReady)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	require.Equal(t, "new", ready[0].ID)
}

func TestUpdateLeadStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateLead(ctx, store.Lead{
		ID: "lead-1", CompanyName: "会社", Notes: "初期メモ",
		CreatedAt: "2026-08-01T00:00:00Z", UpdatedAt: "2026-08-01T00:00:00Z",
	}))

	// Empty notes keep the existing ones.
	require.NoError(t, s.UpdateLeadStatus(ctx, "lead-1", store.LeadStatusContacted, ""))
	got, err := s.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	require.Equal(t, store.LeadStatusContacted, got.Status)
	require.Equal(t, "初期メモ", got.Notes)

	require.NoError(t, s.UpdateLeadStatus(ctx, "lead-1", store.LeadStatusReplied, "返信あり"))
	got, err = s.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	require.Equal(t, "返信あり", got.Notes)

	require.ErrorIs(t, s.UpdateLeadStatus(ctx, "nope", store.LeadStatusContacted, ""), store.ErrNotFound)
}

func TestDraftTransitions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateDraft(ctx, store.EmailDraft{
		ID: "draft-1", LeadID: "lead-1", Subject: "ご提案", Body: "本文",
		CreatedAt: "2026-08-01T00:00:00Z",
	}))

	got, err := s.GetDraft(ctx, "draft-1")
	require.NoError(t, err)
	require.Equal(t, store.DraftPending, got.ApprovalStatus)

	require.NoError(t, s.ApproveDraft(ctx, "draft-1", "修正本文", "2026-08-02T00:00:00Z"))
	got, err = s.GetDraft(ctx, "draft-1")
	require.NoError(t, err)
	require.Equal(t, store.DraftApproved, got.ApprovalStatus)
	require.Equal(t, "修正本文", got.EditedBody)
	require.Equal(t, "2026-08-02T00:00:00Z", got.ApprovedAt)

	// Approving twice moves nothing.
	require.ErrorIs(t, s.ApproveDraft(ctx, "draft-1", "", "2026-08-03T00:00:00Z"), store.ErrInvalidTransition)
	require.ErrorIs(t, s.ApproveDraft(ctx, "nope", "", "2026-08-03T00:00:00Z"), store.ErrNotFound)

	require.NoError(t, s.MarkDraftSubmitted(ctx, "draft-1", "2026-08-03T00:00:00Z"))
	got, err = s.GetDraft(ctx, "draft-1")
	require.NoError(t, err)
	require.Equal(t, store.DraftSubmitted, got.ApprovalStatus)
	require.Equal(t, "2026-08-03T00:00:00Z", got.SubmittedAt)

	// Submitted drafts cannot fail or send.
	require.ErrorIs(t, s.MarkDraftFailed(ctx, "draft-1", "reason"), store.ErrInvalidTransition)
	require.ErrorIs(t, s.MarkDraftSent(ctx, "draft-1", "2026-08-04T00:00:00Z"), store.ErrInvalidTransition)
}

func TestRejectDraft(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateDraft(ctx, store.EmailDraft{
		ID: "draft-1", LeadID: "lead-1", Subject: "件名", Body: "本文",
		CreatedAt: "2026-08-01T00:00:00Z",
	}))
	require.NoError(t, s.RejectDraft(ctx, "draft-1"))
	require.ErrorIs(t, s.RejectDraft(ctx, "draft-1"), store.ErrInvalidTransition)
}

func TestGetDraftByLead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateDraft(ctx, store.EmailDraft{
		ID: "draft-old", LeadID: "lead-1", Subject: "旧", Body: "b", CreatedAt: "2026-08-01T00:00:00Z",
	}))
	require.NoError(t, s.CreateDraft(ctx, store.EmailDraft{
		ID: "draft-new", LeadID: "lead-1", Subject: "新", Body: "b", CreatedAt: "2026-08-02T00:00:00Z",
	}))

	got, err := s.GetDraftByLead(ctx, "lead-1")
	require.NoError(t, err)
	require.Equal(t, "draft-new", got.ID)

	missing, err := s.GetDraftByLead(ctx, "lead-2")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestSalesLogs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entries := []store.SalesLog{
		{ID: "log-1", LeadID: "lead-1", Event: store.EventLeadCreated, CreatedAt: "2026-08-01T00:00:00Z"},
		{ID: "log-2", LeadID: "lead-1", Event: store.EventDraftGenerated, CreatedAt: "2026-08-02T00:00:00Z"},
		{ID: "log-3", LeadID: "lead-2", Event: store.EventLeadCreated, CreatedAt: "2026-08-03T00:00:00Z"},
	}
	for _, entry := range entries {
		require.NoError(t, s.AppendSalesLog(ctx, entry))
	}

	logs, err := s.ListSalesLogs(ctx, "lead-1", 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "log-2", logs[0].ID)

	limited, err := s.ListSalesLogs(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "log-3", limited[0].ID)
}

func TestSalesStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	leads := []store.Lead{
		{ID: "l1", CompanyName: "a", Status: store.LeadStatusContacted},
		{ID: "l2", CompanyName: "b", Status: store.LeadStatusReplied},
		{ID: "l3", CompanyName: "c", Status: store.LeadStatusClosedWon},
	}
	for _, lead := range leads {
		lead.CreatedAt = "2026-08-01T00:00:00Z"
		lead.UpdatedAt = lead.CreatedAt
		require.NoError(t, s.CreateLead(ctx, lead))
	}
	require.NoError(t, s.CreateDraft(ctx, store.EmailDraft{
		ID: "d1", LeadID: "l1", Subject: "s", Body: "b", CreatedAt: "2026-08-01T00:00:00Z",
	}))

	stats, err := s.SalesStats(ctx)
	require.NoError(t, err)
	require.Equal(t, store.SalesStats{
		TotalLeads:       3,
		PendingApprovals: 1,
		Sent:             1,
		Replied:          1,
		ClosedWon:        1,
	}, stats)
}

func TestAgents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SeedAgent(ctx, store.Agent{ID: "agent-1", Name: "Prospector", Role: "リード探索"}))
	require.NoError(t, s.UpdateAgentStatus(ctx, "agent-1", "working", "リサーチ中"))

	// Reseeding refreshes the name but keeps the live status.
	require.NoError(t, s.SeedAgent(ctx, store.Agent{ID: "agent-1", Name: "Prospector", Role: "探索"}))

	agents, err := s.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	require.Equal(t, "working", agents[0].Status)
	require.Equal(t, "探索", agents[0].Role)
	require.Equal(t, "リサーチ中", agents[0].CurrentTask)

	require.NoError(t, s.UpdateAgentActivity(ctx, "agent-1", "抽出中"))
	agents, err = s.ListAgents(ctx)
	require.NoError(t, err)
	require.Equal(t, "抽出中", agents[0].CurrentAction)

	require.ErrorIs(t, s.UpdateAgentStatus(ctx, "nope", "idle", ""), store.ErrNotFound)
	require.ErrorIs(t, s.UpdateAgentActivity(ctx, "nope", ""), store.ErrNotFound)
}
