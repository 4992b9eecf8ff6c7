package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/Yibooo/mission-control/internal/config"
	"github.com/Yibooo/mission-control/internal/llm"
	"github.com/Yibooo/mission-control/internal/pipeline"
	"github.com/Yibooo/mission-control/internal/profile"
	"github.com/Yibooo/mission-control/internal/scrape"
	"github.com/Yibooo/mission-control/internal/search"
	"github.com/Yibooo/mission-control/internal/store"
	"github.com/Yibooo/mission-control/internal/store/postgres"
	"github.com/Yibooo/mission-control/internal/store/sqlite"
	"github.com/Yibooo/mission-control/internal/workflows"
)

var (
	loadConfig = func() (config.Config, error) {
		_ = godotenv.Load()
		return config.Load(), nil
	}
	dialTemporal  = client.Dial
	newStore      = openStore
	newRunner     = buildRunner
	newActivities = func(runner workflows.Runner) *workflows.PipelineActivities {
		return workflows.NewPipelineActivities(runner)
	}
	newWorker       = worker.New
	workerInterrupt = worker.InterruptCh
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
	if err := cfg.ValidateRun(); err != nil {
		return err
	}
	temporalClient, err := dialTemporal(client.Options{
		HostPort: cfg.TemporalAddress,
	})
	if err != nil {
		return err
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}

	st, err := newStore(cfg)
	if err != nil {
		return err
	}

	runner, err := newRunner(cfg, st)
	if err != nil {
		return err
	}
	activities := newActivities(runner)

	w := newWorker(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.PipelineWorkflow)
	w.RegisterActivity(activities)

	log.Println("mission control worker started")
	return w.Run(workerInterrupt())
}

// openStore picks the backend by STORE_DRIVER. The in-memory backend is not
// offered here: a worker writing leads nobody can read is a misconfiguration.
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
	default:
		return nil, fmt.Errorf("unknown store driver %q (worker supports postgres and sqlite)", driver)
	}
}

// buildRunner wires the full pipeline the activity delegates to. Events have
// no publisher on the worker: the SSE broker lives in the API process.
func buildRunner(cfg config.Config, st store.Store) (workflows.Runner, error) {
	campaign := profile.Default()
	if cfg.ProfilePath != "" {
		var err error
		campaign, err = profile.LoadFile(cfg.ProfilePath)
		if err != nil {
			return nil, err
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
		return nil, err
	}

	searcher := search.NewClient(cfg.TavilyAPIKey, cfg.TavilyBaseURL)
	notifier := pipeline.NewStoreNotifier(context.Background(), st)

	var discoverer *pipeline.Discoverer
	if cfg.FirecrawlAPIKey != "" {
		scraper := scrape.NewClient(cfg.FirecrawlAPIKey, cfg.FirecrawlBaseURL)
		discoverer = pipeline.NewDiscoverer(scraper, provider, campaign)
	} else {
		log.Print("FIRECRAWL_API_KEY not set; form discovery disabled")
	}

	return pipeline.NewOrchestrator(
		st,
		searcher,
		pipeline.NewExtractor(provider, campaign),
		discoverer,
		pipeline.NewGenerator(provider, campaign),
		notifier,
		nil,
		campaign,
		cfg.CandidateDelay,
	), nil
}
