package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIPort           string
	APIBaseURL        string
	PostgresURL       string
	SQLitePath        string
	StoreDriver       string
	TemporalAddress   string
	TemporalTaskQueue string
	LLMProvider       string
	LLMModel          string
	LLMBaseURL        string
	GeminiAPIKey      string
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	TavilyAPIKey      string
	TavilyBaseURL     string
	FirecrawlAPIKey   string
	FirecrawlBaseURL  string
	ProfilePath       string
	TargetArea        string
	MaxLeads          int
	CandidateDelay    time.Duration
}

func Load() Config {
	apiPort := getEnv("MISSION_CONTROL_PORT", "8080")
	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" && getEnv("POSTGRES_HOST", "") != "" {
		postgresURL = buildPostgresURL()
	}
	return Config{
		APIPort:           apiPort,
		APIBaseURL:        getEnv("MISSION_CONTROL_URL", "http://localhost:"+apiPort),
		PostgresURL:       postgresURL,
		SQLitePath:        getEnv("SQLITE_PATH", "mission_control.db"),
		StoreDriver:       getEnv("STORE_DRIVER", ""),
		TemporalAddress:   getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue: getEnv("TEMPORAL_TASK_QUEUE", "sales-pipeline"),
		LLMProvider:       getEnv("LLM_PROVIDER", "gemini"),
		LLMModel:          getEnv("LLM_MODEL", ""),
		LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		TavilyAPIKey:      getEnv("TAVILY_API_KEY", ""),
		TavilyBaseURL:     getEnv("TAVILY_BASE_URL", ""),
		FirecrawlAPIKey:   getEnv("FIRECRAWL_API_KEY", ""),
		FirecrawlBaseURL:  getEnv("FIRECRAWL_BASE_URL", ""),
		ProfilePath:       getEnv("CAMPAIGN_PROFILE", ""),
		TargetArea:        getEnv("TARGET_AREA", "東京都・首都圏"),
		MaxLeads:          getEnvInt("MAX_LEADS", 5),
		CandidateDelay:    time.Duration(getEnvInt("CANDIDATE_DELAY_MS", 300)) * time.Millisecond,
	}
}

// ValidateRun checks the credentials a pipeline run cannot start without.
// FIRECRAWL_API_KEY is deliberately not required: without it the orchestrator
// skips form discovery.
func (c Config) ValidateRun() error {
	if c.TavilyAPIKey == "" {
		return errors.New("TAVILY_API_KEY is not set")
	}
	switch c.LLMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is not set")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return errors.New("ANTHROPIC_API_KEY is not set")
		}
	default:
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is not set")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "mission")
	password := getEnv("POSTGRES_PASSWORD", "mission")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "mission_control")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}
