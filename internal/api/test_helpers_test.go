package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/Yibooo/mission-control/internal/config"
	"github.com/Yibooo/mission-control/internal/events"
	"github.com/Yibooo/mission-control/internal/pipeline"
	"github.com/Yibooo/mission-control/internal/store"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateLead(ctx context.Context, lead store.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

func (m *MockStore) GetLead(ctx context.Context, leadID string) (*store.Lead, error) {
	args := m.Called(ctx, leadID)
	if value := args.Get(0); value != nil {
		return value.(*store.Lead), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ListLeads(ctx context.Context, status string) ([]store.Lead, error) {
	args := m.Called(ctx, status)
	var result []store.Lead
	if value := args.Get(0); value != nil {
		result = value.([]store.Lead)
	}
	return result, args.Error(1)
}

func (m *MockStore) UpdateLeadStatus(ctx context.Context, leadID string, status string, notes string) error {
	args := m.Called(ctx, leadID, status, notes)
	return args.Error(0)
}

func (m *MockStore) UpdateLeadResearch(ctx context.Context, leadID string, summary string) error {
	args := m.Called(ctx, leadID, summary)
	return args.Error(0)
}

func (m *MockStore) CreateDraft(ctx context.Context, draft store.EmailDraft) error {
	args := m.Called(ctx, draft)
	return args.Error(0)
}

func (m *MockStore) GetDraft(ctx context.Context, draftID string) (*store.EmailDraft, error) {
	args := m.Called(ctx, draftID)
	if value := args.Get(0); value != nil {
		return value.(*store.EmailDraft), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) GetDraftByLead(ctx context.Context, leadID string) (*store.EmailDraft, error) {
	args := m.Called(ctx, leadID)
	if value := args.Get(0); value != nil {
		return value.(*store.EmailDraft), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) ListDrafts(ctx context.Context, approvalStatus string) ([]store.EmailDraft, error) {
	args := m.Called(ctx, approvalStatus)
	var result []store.EmailDraft
	if value := args.Get(0); value != nil {
		result = value.([]store.EmailDraft)
	}
	return result, args.Error(1)
}

func (m *MockStore) ApproveDraft(ctx context.Context, draftID string, editedBody string, approvedAt string) error {
	args := m.Called(ctx, draftID, editedBody, approvedAt)
	return args.Error(0)
}

func (m *MockStore) RejectDraft(ctx context.Context, draftID string) error {
	args := m.Called(ctx, draftID)
	return args.Error(0)
}

func (m *MockStore) MarkDraftSent(ctx context.Context, draftID string, sentAt string) error {
	args := m.Called(ctx, draftID, sentAt)
	return args.Error(0)
}

func (m *MockStore) MarkDraftSubmitted(ctx context.Context, draftID string, submittedAt string) error {
	args := m.Called(ctx, draftID, submittedAt)
	return args.Error(0)
}

func (m *MockStore) MarkDraftFailed(ctx context.Context, draftID string, reason string) error {
	args := m.Called(ctx, draftID, reason)
	return args.Error(0)
}

func (m *MockStore) AppendSalesLog(ctx context.Context, entry store.SalesLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockStore) ListSalesLogs(ctx context.Context, leadID string, limit int) ([]store.SalesLog, error) {
	args := m.Called(ctx, leadID, limit)
	var result []store.SalesLog
	if value := args.Get(0); value != nil {
		result = value.([]store.SalesLog)
	}
	return result, args.Error(1)
}

func (m *MockStore) SalesStats(ctx context.Context) (store.SalesStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(store.SalesStats), args.Error(1)
}

func (m *MockStore) ListAgents(ctx context.Context) ([]store.Agent, error) {
	args := m.Called(ctx)
	var result []store.Agent
	if value := args.Get(0); value != nil {
		result = value.([]store.Agent)
	}
	return result, args.Error(1)
}

func (m *MockStore) UpdateAgentStatus(ctx context.Context, agentID string, status string, currentTask string) error {
	args := m.Called(ctx, agentID, status, currentTask)
	return args.Error(0)
}

func (m *MockStore) UpdateAgentActivity(ctx context.Context, agentID string, currentAction string) error {
	args := m.Called(ctx, agentID, currentAction)
	return args.Error(0)
}

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Publish(event events.PipelineEvent) {
	m.Called(event)
}

func (m *MockBroker) Subscribe(ctx context.Context, runID string) <-chan events.PipelineEvent {
	args := m.Called(ctx, runID)
	if value := args.Get(0); value != nil {
		if ch, ok := value.(chan events.PipelineEvent); ok {
			return ch
		}
		if ch, ok := value.(<-chan events.PipelineEvent); ok {
			return ch
		}
	}
	return nil
}

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, params pipeline.RunParams) (*pipeline.RunResult, error) {
	args := m.Called(ctx, params)
	if value := args.Get(0); value != nil {
		return value.(*pipeline.RunResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) SubmitApprovedDraft(ctx context.Context, draftID string) (*pipeline.SubmitResult, error) {
	args := m.Called(ctx, draftID)
	if value := args.Get(0); value != nil {
		return value.(*pipeline.SubmitResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockWorkflowService struct {
	mock.Mock
}

func (m *MockWorkflowService) StartPipeline(ctx context.Context, runID string, targetArea string, maxLeads int) error {
	args := m.Called(ctx, runID, targetArea, maxLeads)
	return args.Error(0)
}

func (m *MockWorkflowService) CancelPipeline(ctx context.Context, runID string) error {
	args := m.Called(ctx, runID)
	return args.Error(0)
}

// runnableConfig carries the credentials the run endpoints require.
func runnableConfig() config.Config {
	return config.Config{TavilyAPIKey: "tavily-key", LLMProvider: "gemini", GeminiAPIKey: "gemini-key"}
}

func newTestServer(t *testing.T, st store.Store, broker Broker, runner PipelineRunner, submitter DraftSubmitter, workflows WorkflowService) *httptest.Server {
	t.Helper()
	return newTestServerWithConfig(t, st, broker, runner, submitter, workflows, runnableConfig())
}

func newTestServerWithConfig(t *testing.T, st store.Store, broker Broker, runner PipelineRunner, submitter DraftSubmitter, workflows WorkflowService, cfg config.Config) *httptest.Server {
	t.Helper()
	server := NewServer(st, broker, runner, submitter, workflows, cfg)
	return httptest.NewServer(server.Router())
}
