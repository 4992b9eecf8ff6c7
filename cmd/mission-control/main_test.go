package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.temporal.io/sdk/client"

	"github.com/Yibooo/mission-control/internal/api"
	"github.com/Yibooo/mission-control/internal/config"
	"github.com/Yibooo/mission-control/internal/events"
	"github.com/Yibooo/mission-control/internal/store"
	"github.com/Yibooo/mission-control/internal/store/memory"
	"github.com/Yibooo/mission-control/internal/workflows"
)

type stubServer struct {
	err error
}

func (s stubServer) Start(ctx context.Context, addr string) error {
	return s.err
}

func captureDeps() func() {
	origLoadConfig := loadConfig
	origNewBroker := newBroker
	origNewStore := newStore
	origDialTemporal := dialTemporal
	origNewWorkflowService := newWorkflowService
	origNewServer := newServer
	origNotifyContext := notifyContext

	return func() {
		loadConfig = origLoadConfig
		newBroker = origNewBroker
		newStore = origNewStore
		dialTemporal = origDialTemporal
		newWorkflowService = origNewWorkflowService
		newServer = origNewServer
		notifyContext = origNotifyContext
	}
}

func testConfig() config.Config {
	return config.Config{
		APIPort:     "0",
		StoreDriver: "memory",
		ProfilePath: "",
		LLMProvider: "gemini",
	}
}

func TestRunSuccess(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return testConfig(), nil
	}
	newStore = func(_ config.Config) (store.Store, error) {
		return memory.New(), nil
	}
	newServer = func(st store.Store, _ *events.Broker, _ api.PipelineRunner, _ api.DraftSubmitter, _ api.WorkflowService, _ config.Config) server {
		return stubServer{}
	}
	notifyContext = func(ctx context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}

	if err := run(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestRunSeedsAgentRoster(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)

	st := memory.New()
	loadConfig = func() (config.Config, error) {
		return testConfig(), nil
	}
	newStore = func(_ config.Config) (store.Store, error) {
		return st, nil
	}
	newServer = func(_ store.Store, _ *events.Broker, _ api.PipelineRunner, _ api.DraftSubmitter, _ api.WorkflowService, _ config.Config) server {
		return stubServer{}
	}
	notifyContext = func(ctx context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}

	if err := run(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	agents, err := st.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	if len(agents) != 4 {
		t.Fatalf("expected 4 seeded agents, got %d", len(agents))
	}
}

func TestRunTemporalDialFailureIsNonFatal(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)

	cfg := testConfig()
	cfg.TemporalAddress = "localhost:7233"
	loadConfig = func() (config.Config, error) {
		return cfg, nil
	}
	newStore = func(_ config.Config) (store.Store, error) {
		return memory.New(), nil
	}
	dialTemporal = func(_ client.Options) (client.Client, error) {
		return nil, errors.New("connection refused")
	}
	var gotWorkflows api.WorkflowService
	newServer = func(_ store.Store, _ *events.Broker, _ api.PipelineRunner, _ api.DraftSubmitter, wf api.WorkflowService, _ config.Config) server {
		gotWorkflows = wf
		return stubServer{}
	}
	notifyContext = func(ctx context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}

	if err := run(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if gotWorkflows != nil {
		t.Fatal("expected nil workflow service when the dial fails")
	}
}

func TestRunTemporalDialSuccessWiresWorkflows(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)

	cfg := testConfig()
	cfg.TemporalAddress = "localhost:7233"
	loadConfig = func() (config.Config, error) {
		return cfg, nil
	}
	newStore = func(_ config.Config) (store.Store, error) {
		return memory.New(), nil
	}
	dialTemporal = func(_ client.Options) (client.Client, error) {
		return nil, nil
	}
	newWorkflowService = func(_ client.Client, _ string) *workflows.Service {
		return &workflows.Service{}
	}
	var gotWorkflows api.WorkflowService
	newServer = func(_ store.Store, _ *events.Broker, _ api.PipelineRunner, _ api.DraftSubmitter, wf api.WorkflowService, _ config.Config) server {
		gotWorkflows = wf
		return stubServer{}
	}
	notifyContext = func(ctx context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}

	if err := run(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if gotWorkflows == nil {
		t.Fatal("expected workflow service to be wired")
	}
}

func TestRunConfigLoadFailure(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return config.Config{}, errors.New("config load failed")
	}

	if err := run(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRunStoreInitFailure(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return testConfig(), nil
	}
	newStore = func(_ config.Config) (store.Store, error) {
		return nil, errors.New("store init failed")
	}
	notifyContext = func(ctx context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}

	if err := run(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRunServerFailure(t *testing.T) {
	restore := captureDeps()
	t.Cleanup(restore)

	loadConfig = func() (config.Config, error) {
		return testConfig(), nil
	}
	newStore = func(_ config.Config) (store.Store, error) {
		return memory.New(), nil
	}
	newServer = func(_ store.Store, _ *events.Broker, _ api.PipelineRunner, _ api.DraftSubmitter, _ api.WorkflowService, _ config.Config) server {
		return stubServer{err: errors.New("listen failed")}
	}
	notifyContext = func(ctx context.Context, _ ...os.Signal) (context.Context, context.CancelFunc) {
		return context.WithCancel(ctx)
	}

	if err := run(); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := openStore(config.Config{StoreDriver: "cassandra"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
