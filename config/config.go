// Package config loads engine-wide settings: storage location, the
// default LLM provider, the memory-stream embedding model, and the
// scheduler tick interval. Grounded on the dotenv-plus-os.Getenv loading
// pattern the example pack uses for exactly this (kadirpekel-hector's
// config/env.go LoadEnvFiles, intelligencedev-manifold's main.go) — a
// .env file is loaded first (if present), then environment variables
// override it, then a built-in default applies last.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is every setting the engine reads at startup.
type Config struct {
	// StoragePath is the SQLite database file path, or ":memory:" for an
	// ephemeral in-process store.
	StoragePath string
	// PostgresDSN, if non-empty, selects the Postgres backend instead of
	// SQLite.
	PostgresDSN string

	// DefaultLLMModel/APIURL/APIKey are the engine-wide LLM provider
	// settings. cmd/agentgraphctl passes APIURL/APIKey to the memory-stream
	// embedder. They do not seed agent nodes: an agent node without its own
	// model/api_url/api_key gets execbuild's built-in defaults.
	DefaultLLMModel  string
	DefaultLLMAPIURL string
	DefaultLLMAPIKey string

	// EmbeddingModel names the OpenAI embeddings model the production
	// memory-stream Embedder calls.
	EmbeddingModel string

	// SchedulerTickInterval is how often the scheduler checks for due
	// scheduled_event tasks.
	SchedulerTickInterval time.Duration

	// RedisAddr, if non-empty, enables the distributed scheduler lock
	// (scheduler.DistLock) for multi-instance deployments.
	RedisAddr string
}

const (
	defaultStoragePath    = "agentgraph.db"
	defaultLLMModel       = "gpt-4"
	defaultLLMAPIURL      = "http://127.0.0.1:1234/v1"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultTickInterval   = time.Second
)

// Load reads .env.local then .env (later files filling gaps, never
// overriding a variable the process environment already set), then
// resolves every setting from the environment with a built-in default.
// A missing .env file is not an error; a malformed one is.
func Load() (Config, error) {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return Config{}, err
		}
	}

	return Config{
		StoragePath:           getenv("AGENTGRAPH_STORAGE_PATH", defaultStoragePath),
		PostgresDSN:           getenv("AGENTGRAPH_POSTGRES_DSN", ""),
		DefaultLLMModel:       getenv("AGENTGRAPH_LLM_MODEL", defaultLLMModel),
		DefaultLLMAPIURL:      getenv("AGENTGRAPH_LLM_API_URL", defaultLLMAPIURL),
		DefaultLLMAPIKey:      getenv("AGENTGRAPH_LLM_API_KEY", ""),
		EmbeddingModel:        getenv("AGENTGRAPH_EMBEDDING_MODEL", defaultEmbeddingModel),
		SchedulerTickInterval: getDuration("AGENTGRAPH_SCHEDULER_TICK_SECONDS", defaultTickInterval),
		RedisAddr:             getenv("AGENTGRAPH_REDIS_ADDR", ""),
	}, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil || seconds <= 0 {
		return def
	}
	return time.Duration(seconds * float64(time.Second))
}
