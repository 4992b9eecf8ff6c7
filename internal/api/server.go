package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Yibooo/mission-control/internal/config"
	"github.com/Yibooo/mission-control/internal/events"
	"github.com/Yibooo/mission-control/internal/pipeline"
	"github.com/Yibooo/mission-control/internal/store"
)

type Server struct {
	store     store.Store
	broker    Broker
	runner    PipelineRunner
	submitter DraftSubmitter
	workflows WorkflowService
	cfg       config.Config
}

type Broker interface {
	Publish(event events.PipelineEvent)
	Subscribe(ctx context.Context, runID string) <-chan events.PipelineEvent
}

// PipelineRunner executes a lead-generation run synchronously.
type PipelineRunner interface {
	Run(ctx context.Context, params pipeline.RunParams) (*pipeline.RunResult, error)
}

// DraftSubmitter drives the form submission of an approved draft.
type DraftSubmitter interface {
	SubmitApprovedDraft(ctx context.Context, draftID string) (*pipeline.SubmitResult, error)
}

// WorkflowService starts and cancels durable pipeline runs on the worker
// fleet. nil when the server runs without a Temporal connection;
// POST /pipeline/runs then falls back to an in-process goroutine, which is
// not cancelable.
type WorkflowService interface {
	StartPipeline(ctx context.Context, runID string, targetArea string, maxLeads int) error
	CancelPipeline(ctx context.Context, runID string) error
}

func NewServer(st store.Store, broker Broker, runner PipelineRunner, submitter DraftSubmitter, workflows WorkflowService, cfg config.Config) *Server {
	return &Server{
		store:     st,
		broker:    broker,
		runner:    runner,
		submitter: submitter,
		workflows: workflows,
		cfg:       cfg,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Post("/pipeline/run", s.runPipeline)
	r.Post("/pipeline/runs", s.startPipelineRun)
	r.Delete("/pipeline/runs/{id}", s.cancelPipelineRun)
	r.Get("/pipeline/runs/{id}/events", s.streamEvents)

	r.Get("/leads", s.listLeads)
	r.Get("/leads/{id}", s.getLead)
	r.Post("/leads/{id}/status", s.updateLeadStatus)
	r.Get("/leads/{id}/logs", s.listLeadLogs)

	r.Get("/drafts", s.listDrafts)
	r.Get("/drafts/{id}", s.getDraft)
	r.Post("/drafts/{id}/approve", s.approveDraft)
	r.Post("/drafts/{id}/reject", s.rejectDraft)
	r.Post("/drafts/{id}/sent", s.markDraftSent)
	r.Post("/drafts/{id}/submit", s.submitDraft)

	r.Get("/approvals", s.listApprovals)
	r.Get("/stats", s.getStats)
	r.Get("/logs", s.listLogs)
	r.Get("/agents", s.listAgents)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)

	return r
}

func quietRequestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if method == http.MethodGet && strings.HasSuffix(cleanPath, "/events") {
		return true
	}
	if method == http.MethodGet && (cleanPath == "/stats" || cleanPath == "/agents") {
		return true
	}
	if method == http.MethodOptions {
		return true
	}
	return false
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if _, err := s.store.SalesStats(ctx); err != nil {
		subsystems["store"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["store"] = subsystemStatus{Status: "ok"}
	}

	if s.workflows == nil {
		subsystems["workflows"] = subsystemStatus{Status: "skipped"}
	} else {
		subsystems["workflows"] = subsystemStatus{Status: "ok"}
	}

	if err := s.cfg.ValidateRun(); err != nil {
		subsystems["credentials"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["credentials"] = subsystemStatus{Status: "ok"}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func writeJSON(w http.ResponseWriter, value any) {
	writeJSONStatus(w, value, http.StatusOK)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

type runPipelineRequest struct {
	TargetArea string `json:"targetArea"`
	MaxLeads   int    `json:"maxLeads"`
}

// runPipeline executes the whole search-to-draft pipeline inline and returns
// the run report. Long but deliberate: the dashboard's "Run now" button shows
// the counters on completion.
func (s *Server) runPipeline(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.ValidateRun(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	req := runPipelineRequest{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
	}
	result, err := s.runner.Run(r.Context(), pipeline.RunParams{
		RunID:      uuid.New().String(),
		TargetArea: req.TargetArea,
		MaxLeads:   req.MaxLeads,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// startPipelineRun launches a run asynchronously and returns its id so the
// caller can follow progress on the event stream.
func (s *Server) startPipelineRun(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.ValidateRun(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	req := runPipelineRequest{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
	}
	runID := uuid.New().String()
	if s.workflows != nil {
		if err := s.workflows.StartPipeline(r.Context(), runID, req.TargetArea, req.MaxLeads); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	} else {
		params := pipeline.RunParams{RunID: runID, TargetArea: req.TargetArea, MaxLeads: req.MaxLeads}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			_, _ = s.runner.Run(ctx, params)
		}()
	}
	writeJSONStatus(w, map[string]string{"runId": runID, "status": "started"}, http.StatusAccepted)
}

// cancelPipelineRun stops a durable run. In-process fallback runs carry no
// handle to cancel.
func (s *Server) cancelPipelineRun(w http.ResponseWriter, r *http.Request) {
	if s.workflows == nil {
		http.Error(w, "workflow service unavailable", http.StatusServiceUnavailable)
		return
	}
	runID := chi.URLParam(r, "id")
	if err := s.workflows.CancelPipeline(r.Context(), runID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"runId": runID, "status": "cancelling"})
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	eventsChan := s.broker.Subscribe(ctx, runID)
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventsChan:
			if !ok {
				return
			}
			sendSSE(w, event)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, event events.PipelineEvent) {
	payload, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %s:%d\n", event.RunID, event.Seq)
	fmt.Fprint(w, "event: pipeline_event\n")
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()
	return server.ListenAndServe()
}
