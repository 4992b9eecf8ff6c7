package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

type Service struct {
	client    client.Client
	taskQueue string
}

func NewService(client client.Client, taskQueue string) *Service {
	if taskQueue == "" {
		taskQueue = "sales-pipeline"
	}
	return &Service{client: client, taskQueue: taskQueue}
}

// StartPipeline launches a durable pipeline run. The workflow id embeds the
// run id, so starting the same run twice is rejected by the server.
func (s *Service) StartPipeline(ctx context.Context, runID string, targetArea string, maxLeads int) error {
	options := client.StartWorkflowOptions{
		ID:        workflowID(runID),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, options, PipelineWorkflow, PipelineInput{
		RunID:      runID,
		TargetArea: targetArea,
		MaxLeads:   maxLeads,
	})
	return err
}

func (s *Service) CancelPipeline(ctx context.Context, runID string) error {
	return s.client.CancelWorkflow(ctx, workflowID(runID), "")
}

func workflowID(runID string) string {
	return fmt.Sprintf("pipeline:%s", runID)
}
