package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"

	"github.com/Yibooo/mission-control/internal/api"
	"github.com/Yibooo/mission-control/internal/config"
	"github.com/Yibooo/mission-control/internal/events"
	"github.com/Yibooo/mission-control/internal/llm"
	"github.com/Yibooo/mission-control/internal/pipeline"
	"github.com/Yibooo/mission-control/internal/profile"
	"github.com/Yibooo/mission-control/internal/scrape"
	"github.com/Yibooo/mission-control/internal/search"
	"github.com/Yibooo/mission-control/internal/store"
	"github.com/Yibooo/mission-control/internal/store/memory"
	"github.com/Yibooo/mission-control/internal/store/postgres"
	"github.com/Yibooo/mission-control/internal/store/sqlite"
	"github.com/Yibooo/mission-control/internal/workflows"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig = func() (config.Config, error) {
		_ = godotenv.Load()
		return config.Load(), nil
	}
	newBroker          = events.NewBroker
	newStore           = openStore
	dialTemporal       = client.Dial
	newWorkflowService = workflows.NewService
	newServer          = func(st store.Store, broker *events.Broker, runner api.PipelineRunner, submitter api.DraftSubmitter, workflows api.WorkflowService, cfg config.Config) server {
		return api.NewServer(st, broker, runner, submitter, workflows, cfg)
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	broker := newBroker()
	st, err := newStore(cfg)
	if err != nil {
		return err
	}
	seedAgents(ctx, st)

	campaign := profile.Default()
	if cfg.ProfilePath != "" {
		campaign, err = profile.LoadFile(cfg.ProfilePath)
		if err != nil {
			return err
		}
	}

	provider, err := llm.NewProvider(llm.Config{
		Provider:        cfg.LLMProvider,
		Model:           cfg.LLMModel,
		BaseURL:         cfg.LLMBaseURL,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
	})
	if err != nil {
		return err
	}

	searcher := search.NewClient(cfg.TavilyAPIKey, cfg.TavilyBaseURL)
	notifier := pipeline.NewStoreNotifier(ctx, st)

	var discoverer *pipeline.Discoverer
	var submitter api.DraftSubmitter
	if cfg.FirecrawlAPIKey != "" {
		scraper := scrape.NewClient(cfg.FirecrawlAPIKey, cfg.FirecrawlBaseURL)
		discoverer = pipeline.NewDiscoverer(scraper, provider, campaign)
		submitter = pipeline.NewSubmitter(st, scraper, campaign, notifier)
	} else {
		log.Print("FIRECRAWL_API_KEY not set; form discovery and submission disabled")
	}

	orchestrator := pipeline.NewOrchestrator(
		st,
		searcher,
		pipeline.NewExtractor(provider, campaign),
		discoverer,
		pipeline.NewGenerator(provider, campaign),
		notifier,
		broker,
		campaign,
		cfg.CandidateDelay,
	)

	var workflowService api.WorkflowService
	if cfg.TemporalAddress != "" {
		workflowClient, err := dialTemporal(client.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			log.Printf("warning: temporal unavailable at %s, running pipelines in-process: %v", cfg.TemporalAddress, err)
		} else {
			if workflowClient != nil {
				defer workflowClient.Close()
			}
			workflowService = newWorkflowService(workflowClient, cfg.TemporalTaskQueue)
		}
	}

	server := newServer(st, broker, orchestrator, submitter, workflowService, cfg)

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Printf("mission control listening on %s", addr)
	return server.Start(ctx, addr)
}

// openStore picks the backend by STORE_DRIVER, falling back to postgres when
// a connection string is configured and to the embedded sqlite file otherwise.
func openStore(cfg config.Config) (store.Store, error) {
	driver := cfg.StoreDriver
	if driver == "" {
		if cfg.PostgresURL != "" {
			driver = "postgres"
		} else {
			driver = "sqlite"
		}
	}
	switch driver {
	case "postgres":
		return postgres.New(cfg.PostgresURL)
	case "sqlite":
		return sqlite.New(cfg.SQLitePath)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// seedAgents makes sure the four pipeline roles exist in the roster. The
// postgres schema seeds them in the migration, so only the embedded backends
// need it here.
func seedAgents(ctx context.Context, st store.Store) {
	roster := []store.Agent{
		{ID: "agent-prospector", Name: pipeline.RoleProspector, Role: "リード探索"},
		{ID: "agent-researcher", Name: pipeline.RoleResearcher, Role: "企業調査"},
		{ID: "agent-copywriter", Name: pipeline.RoleCopywriter, Role: "文面作成"},
		{ID: "agent-form-submitter", Name: pipeline.RoleFormSubmitter, Role: "フォーム送信"},
	}
	switch s := st.(type) {
	case *sqlite.SQLiteStore:
		for _, agent := range roster {
			if err := s.SeedAgent(ctx, agent); err != nil {
				log.Printf("warning: failed to seed agent %s: %v", agent.Name, err)
			}
		}
	case *memory.MemoryStore:
		for _, agent := range roster {
			s.SeedAgent(agent)
		}
	}
}
