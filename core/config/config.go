package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"hyperscribe.app/scribe/core/db"
)

type Config struct {
	OTel        OTelConfig
	Pipeline    PipelineConfig
	Transcriber TranscriberConfig
	TextLLM     LLMConfig
	Cycle       CycleConfig
	Discussions DiscussionStoreConfig
	Env         string
	Port        string
	AuditDir    string
	DB          db.Config
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64
}

type PipelineConfig struct {
	RedisURL        string
	ChunkStream     string
	ChunkGroup      string
	ChunkConsumer   string
	ChunkDLQStream  string
	EffectStream    string
	TraceHeaderName string
}

type TranscriberConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type LLMConfig struct {
	Provider  string // "openai" or "anthropic"
	APIKey    string
	BaseURL   string // Optional: for custom endpoints
	Model     string
	MaxTokens int
}

// CycleConfig holds the knobs consumed by the cycle orchestrator.
type CycleConfig struct {
	MaxWorkers             int
	TranscriptOverlapWords int
	IsLocalData            bool
	ExtractorFailure       string // "keep_known" or "abort"
}

type DiscussionStoreConfig struct {
	Backend string // "memory", "redis" or "postgres"
	TTL     time.Duration
}

type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeWorker ServiceType = "worker"
	ServiceTypeReplay ServiceType = "replay"
)

// What a cycle does when instruction extraction fails outright.
const (
	// The common track keeps the known instructions and synthesizes nothing.
	ExtractorFailureKeepKnown = "keep_known"
	// The whole cycle degrades to a no-op, as for a transcription failure.
	ExtractorFailureAbort = "abort"
)

const (
	DiscussionBackendMemory   = "memory"
	DiscussionBackendRedis    = "redis"
	DiscussionBackendPostgres = "postgres"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.server for the API server
//   - .env.worker for the cycle worker
//   - .env.replay for local replays
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("SCRIBE_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:      getEnv("SCRIBE_ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		AuditDir: getEnv("AUDIT_DIR", ""),
		DB: db.Config{
			DSN:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt32("DB_MAX_CONNS", 10),
			MinConns: getEnvInt32("DB_MIN_CONNS", 2),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "scribe"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLE_RATIO", 1.0),
		},
		Pipeline: PipelineConfig{
			RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
			ChunkStream:     getEnv("CHUNK_STREAM", "scribe_chunks"),
			ChunkGroup:      getEnv("CHUNK_CONSUMER_GROUP", "scribe_group"),
			ChunkConsumer:   getEnv("CHUNK_CONSUMER_NAME", "scribe-worker"),
			ChunkDLQStream:  getEnv("CHUNK_DLQ_STREAM", "scribe_chunks_dlq"),
			EffectStream:    getEnv("EFFECT_STREAM", "scribe_effects"),
			TraceHeaderName: getEnv("TRACE_HEADER_NAME", "X-Trace-Id"),
		},
		Transcriber: TranscriberConfig{
			APIKey:  getEnv("TRANSCRIBER_API_KEY", ""),
			BaseURL: getEnv("TRANSCRIBER_BASE_URL", ""),
			Model:   getEnv("TRANSCRIBER_MODEL", "whisper-1"),
		},
		TextLLM: LLMConfig{
			Provider:  getEnv("TEXT_LLM_PROVIDER", "openai"),
			APIKey:    getEnv("TEXT_LLM_API_KEY", ""),
			BaseURL:   getEnv("TEXT_LLM_BASE_URL", ""),
			Model:     getEnv("TEXT_LLM_MODEL", "gpt-4o"),
			MaxTokens: getEnvInt("TEXT_LLM_MAX_TOKENS", 8192),
		},
		Cycle: CycleConfig{
			MaxWorkers:             getEnvInt("MAX_WORKERS", 3),
			TranscriptOverlapWords: getEnvInt("TRANSCRIPT_OVERLAP_WORDS", 100),
			IsLocalData:            getEnvBool("IS_LOCAL_DATA", false),
			ExtractorFailure:       getEnv("EXTRACTOR_FAILURE", ExtractorFailureKeepKnown),
		},
		Discussions: DiscussionStoreConfig{
			Backend: getEnv("DISCUSSION_STORE", DiscussionBackendMemory),
			TTL:     getEnvDuration("DISCUSSION_TTL", 0),
		},
	}

	if serviceType != ServiceTypeServer {
		if !cfg.Transcriber.Enabled() {
			return Config{}, fmt.Errorf("TRANSCRIBER_API_KEY is required")
		}
		if !cfg.TextLLM.Enabled() {
			return Config{}, fmt.Errorf("TEXT_LLM_API_KEY and a TEXT_LLM_PROVIDER of openai or anthropic are required")
		}
	}

	switch cfg.Cycle.ExtractorFailure {
	case ExtractorFailureKeepKnown, ExtractorFailureAbort:
	default:
		return Config{}, fmt.Errorf("unknown EXTRACTOR_FAILURE %q", cfg.Cycle.ExtractorFailure)
	}

	switch cfg.Discussions.Backend {
	case DiscussionBackendMemory, DiscussionBackendRedis, DiscussionBackendPostgres:
	default:
		return Config{}, fmt.Errorf("unknown DISCUSSION_STORE %q", cfg.Discussions.Backend)
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c TranscriberConfig) Enabled() bool {
	return c.APIKey != ""
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != "" && (c.Provider == "openai" || c.Provider == "anthropic")
}

func (c PipelineConfig) Enabled() bool {
	return c.RedisURL != ""
}

// EffectiveMaxWorkers clamps the configured pool size to at least one worker.
func (c CycleConfig) EffectiveMaxWorkers() int {
	if c.MaxWorkers < 1 {
		return 1
	}
	return c.MaxWorkers
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
