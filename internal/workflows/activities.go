package workflows

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/Yibooo/mission-control/internal/pipeline"
)

// Runner is the slice of the orchestrator the activity layer needs.
type Runner interface {
	Run(ctx context.Context, params pipeline.RunParams) (*pipeline.RunResult, error)
}

type PipelineActivities struct {
	runner Runner
}

func NewPipelineActivities(runner Runner) *PipelineActivities {
	return &PipelineActivities{runner: runner}
}

// RunPipeline executes the full pipeline pass, heartbeating so a hung
// downstream API surfaces as an activity timeout instead of a silent stall.
func (a *PipelineActivities) RunPipeline(ctx context.Context, input PipelineInput) (pipeline.RunResult, error) {
	if strings.TrimSpace(input.RunID) == "" {
		return pipeline.RunResult{}, errors.New("run_id required")
	}

	heartbeatCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				activity.RecordHeartbeat(ctx)
			case <-heartbeatCtx.Done():
				return
			}
		}
	}()

	result, err := a.runner.Run(ctx, pipeline.RunParams{
		RunID:      input.RunID,
		TargetArea: input.TargetArea,
		MaxLeads:   input.MaxLeads,
	})
	if err != nil {
		return pipeline.RunResult{}, err
	}
	return *result, nil
}
