package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Yibooo/mission-control/internal/pipeline"
)

type PipelineInput struct {
	RunID      string
	TargetArea string
	MaxLeads   int
}

// PipelineWorkflow runs one lead-generation pass as a single activity. The
// run is internally resumable per candidate, so there is nothing to gain
// from splitting it into finer-grained activities; retries are disabled
// because a re-run would re-search and create duplicate work for the
// reviewer.
func PipelineWorkflow(ctx workflow.Context, input PipelineInput) (pipeline.RunResult, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 20 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	logger := workflow.GetLogger(ctx)
	logger.Info("pipeline run starting", "run_id", input.RunID, "max_leads", input.MaxLeads)

	result := pipeline.RunResult{}
	if err := workflow.ExecuteActivity(ctx, "RunPipeline", input).Get(ctx, &result); err != nil {
		logger.Error("pipeline activity failed", "run_id", input.RunID, "error", err)
		return pipeline.RunResult{}, err
	}
	logger.Info("pipeline run finished",
		"run_id", input.RunID,
		"leads_created", result.LeadsCreated,
		"drafts_created", result.DraftsCreated,
		"errors", len(result.Errors),
	)
	return result, nil
}
