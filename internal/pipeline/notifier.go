package pipeline

import (
	"context"

	"github.com/Yibooo/mission-control/internal/store"
)

// Collaborator agent roles the pipeline reports progress for.
const (
	RoleProspector    = "Prospector"
	RoleResearcher    = "Researcher"
	RoleCopywriter    = "Copywriter"
	RoleFormSubmitter = "FormSubmitter"
)

// AgentNotifier receives fire-and-forget status updates for the dashboard's
// agent roster. Implementations must never fail the pipeline; the orchestrator
// ignores every outcome.
type AgentNotifier interface {
	SetWorking(ctx context.Context, role string, currentTask string)
	SetAction(ctx context.Context, role string, currentAction string)
	SetIdle(ctx context.Context, role string)
}

type NoopNotifier struct{}

func (NoopNotifier) SetWorking(context.Context, string, string) {}
func (NoopNotifier) SetAction(context.Context, string, string)  {}
func (NoopNotifier) SetIdle(context.Context, string)            {}

// StoreNotifier resolves agent roles to roster ids once and forwards status
// updates to the store, swallowing errors: a missing agent or failed write is
// an observability gap, not a pipeline fault.
type StoreNotifier struct {
	store store.Store
	ids   map[string]string
}

func NewStoreNotifier(ctx context.Context, st store.Store) *StoreNotifier {
	ids := map[string]string{}
	agents, err := st.ListAgents(ctx)
	if err == nil {
		for _, agent := range agents {
			ids[agent.Name] = agent.ID
		}
	}
	return &StoreNotifier{store: st, ids: ids}
}

func (n *StoreNotifier) SetWorking(ctx context.Context, role string, currentTask string) {
	if id, ok := n.ids[role]; ok {
		_ = n.store.UpdateAgentStatus(ctx, id, "working", currentTask)
	}
}

func (n *StoreNotifier) SetAction(ctx context.Context, role string, currentAction string) {
	if id, ok := n.ids[role]; ok {
		_ = n.store.UpdateAgentActivity(ctx, id, currentAction)
	}
}

func (n *StoreNotifier) SetIdle(ctx context.Context, role string) {
	if id, ok := n.ids[role]; ok {
		_ = n.store.UpdateAgentStatus(ctx, id, "idle", "")
		_ = n.store.UpdateAgentActivity(ctx, id, "")
	}
}
