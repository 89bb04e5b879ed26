// Package config loads, defaults and validates the TipsAI configuration.
// Values come from a YAML file, then TIPSAI_* environment variables, with a
// .env file loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides, e.g. TIPSAI_GEMINI_API_KEY.
const EnvPrefix = "TIPSAI"

// Config holds every tunable of the bot and the ingestion tool.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"log"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Gemini      GeminiConfig      `mapstructure:"gemini"`
	Database    DatabaseConfig    `mapstructure:"database"`
	VectorStore VectorStoreConfig `mapstructure:"vectorstore"`
	RAG         RAGConfig         `mapstructure:"rag"`
	WebSearch   WebSearchConfig   `mapstructure:"websearch"`
	Memory      MemoryConfig      `mapstructure:"memory"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Ingest      IngestConfig      `mapstructure:"ingest"`
	Summary     SummaryConfig     `mapstructure:"summary"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Messages    MessagesConfig    `mapstructure:"messages"`
}

// LoggerConfig controls slog output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds bot credentials. Token is only needed by the bot
// process. BotInfo is filled at runtime from getMe.
type TelegramConfig struct {
	Token       string       `mapstructure:"token"`
	AdminUserID int64        `mapstructure:"admin_user_id" validate:"gte=0"`
	BotInfo     *models.User `mapstructure:"-"`
}

// GeminiConfig configures generation, embeddings and media description.
type GeminiConfig struct {
	APIKey             string        `mapstructure:"api_key"             validate:"required"`
	ModelName          string        `mapstructure:"model_name"          validate:"required"`
	FallbackModelName  string        `mapstructure:"fallback_model_name"`
	EmbeddingModel     string        `mapstructure:"embedding_model"     validate:"required"`
	EmbeddingDimension int           `mapstructure:"embedding_dimension" validate:"gt=0"`
	Temperature        float32       `mapstructure:"temperature"         validate:"gte=0,lte=2"`
	MaxOutputTokens    int32         `mapstructure:"max_output_tokens"   validate:"gt=0"`
	SystemInstruction  string        `mapstructure:"system_instruction"  validate:"required"`
	MaxRetries         int           `mapstructure:"max_retries"         validate:"gte=0,lte=5"`
	RetryDelaySeconds  int           `mapstructure:"retry_delay_seconds" validate:"gte=0"`
	Timeout            time.Duration `mapstructure:"timeout"             validate:"gte=1s"`
}

// DatabaseConfig points at the SQLite file used for bookkeeping and, by
// default, for vectors.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	Backend     string `mapstructure:"backend"      validate:"oneof=sqlite pgvector"`
	PostgresURL string `mapstructure:"postgres_url" validate:"required_if=Backend pgvector"`
	Collection  string `mapstructure:"collection"   validate:"required"`
}

// RAGConfig tunes retrieval, reranking and the response cache.
type RAGConfig struct {
	TopK          int           `mapstructure:"top_k"           validate:"gt=0,lte=50"`
	SearchTopK    int           `mapstructure:"search_top_k"    validate:"gt=0,lte=20"`
	MinScore      float64       `mapstructure:"min_score"       validate:"gte=0,lte=1"`
	Rerank        bool          `mapstructure:"rerank"`
	RerankMinimum int           `mapstructure:"rerank_minimum"  validate:"gte=1"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CacheSize     int           `mapstructure:"cache_size"      validate:"gt=0"`
	MaxTokens     int32         `mapstructure:"max_tokens"      validate:"gt=0"`
}

// WebSearchConfig controls real-time augmentation.
type WebSearchConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Endpoint   string        `mapstructure:"endpoint"    validate:"omitempty,url"`
	Region     string        `mapstructure:"region"`
	MaxResults int           `mapstructure:"max_results" validate:"gt=0,lte=10"`
	Timeout    time.Duration `mapstructure:"timeout"     validate:"gte=1s"`
}

// MemoryConfig bounds per-user conversation history.
type MemoryConfig struct {
	MaxHistory   int           `mapstructure:"max_history"  validate:"gte=2"`
	TTL          time.Duration `mapstructure:"ttl"          validate:"gte=1s"`
	Condensation bool          `mapstructure:"condensation"`
}

// RateLimitConfig bounds per-user request rates.
type RateLimitConfig struct {
	MaxRequests  int           `mapstructure:"max_requests"  validate:"gt=0"`
	Window       time.Duration `mapstructure:"window"        validate:"gte=1s"`
	CleanupEvery int           `mapstructure:"cleanup_every" validate:"gt=0"`
}

// IngestConfig drives batch and live ingestion.
type IngestConfig struct {
	ExportPath         string        `mapstructure:"export_path"`
	BatchSize          int           `mapstructure:"batch_size"           validate:"gt=0,lte=100"`
	Concurrency        int           `mapstructure:"concurrency"          validate:"gt=0,lte=16"`
	ConversationGap    time.Duration `mapstructure:"conversation_gap"     validate:"gte=1m"`
	TargetChars        int           `mapstructure:"target_chars"         validate:"gte=200"`
	OverlapChars       int           `mapstructure:"overlap_chars"        validate:"gte=0,ltfield=TargetChars"`
	Transcribe         bool          `mapstructure:"transcribe"`
	Caption            bool          `mapstructure:"caption"`
	LiveEnabled        bool          `mapstructure:"live_enabled"`
	LiveBatchThreshold int           `mapstructure:"live_batch_threshold" validate:"gt=0"`
	LiveFlushInterval  time.Duration `mapstructure:"live_flush_interval"  validate:"gte=1s"`
	Timezone           string        `mapstructure:"timezone"             validate:"required"`
}

// SummaryConfig sets where the daily summary is posted. A zero ChatID disables it.
type SummaryConfig struct {
	ChatID   int64  `mapstructure:"chat_id"`
	ThreadID int    `mapstructure:"thread_id"`
	Prompt   string `mapstructure:"prompt" validate:"required"`
}

// SchedulerConfig maps task names to cron schedules.
type SchedulerConfig struct {
	Timezone string                `mapstructure:"timezone" validate:"required"`
	Tasks    map[string]TaskConfig `mapstructure:"tasks"    validate:"dive"`
}

// TaskConfig configures one scheduled task. Schedule is a six-field cron
// expression with seconds.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// HTTPConfig configures the health and metrics server.
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// MessagesConfig holds every user-facing text. "@botname" is replaced with
// the bot's username where relevant.
type MessagesConfig struct {
	Welcome           string `mapstructure:"welcome"            validate:"required"`
	Help              string `mapstructure:"help"               validate:"required"`
	About             string `mapstructure:"about"              validate:"required"`
	TipsUsage         string `mapstructure:"tips_usage"         validate:"required"`
	SearchUsage       string `mapstructure:"search_usage"       validate:"required"`
	SearchNoResults   string `mapstructure:"search_no_results"  validate:"required"`
	MentionNoPrompt   string `mapstructure:"mention_no_prompt"  validate:"required"`
	RateLimited       string `mapstructure:"rate_limited"       validate:"required"`
	AnswerError       string `mapstructure:"answer_error"       validate:"required"`
	SearchError       string `mapstructure:"search_error"       validate:"required"`
	SummaryError      string `mapstructure:"summary_error"      validate:"required"`
	GeneralError      string `mapstructure:"general_error"      validate:"required"`
	NotAuthorized     string `mapstructure:"not_authorized"     validate:"required"`
	AdminCheckFailed  string `mapstructure:"admin_check_failed" validate:"required"`
	ReindexStarted    string `mapstructure:"reindex_started"    validate:"required"`
	ReindexDone       string `mapstructure:"reindex_done"       validate:"required"`
	ReindexFailed     string `mapstructure:"reindex_failed"     validate:"required"`
	StatsError        string `mapstructure:"stats_error"        validate:"required"`
	FeedbackPositive  string `mapstructure:"feedback_positive"  validate:"required"`
	FeedbackNegative  string `mapstructure:"feedback_negative"  validate:"required"`
	SummaryQuestion   string `mapstructure:"summary_question"   validate:"required"`
	HistoryReset      string `mapstructure:"history_reset"      validate:"required"`
}

// LoadConfig reads the configuration at path. A missing file is not an
// error: defaults and environment variables are used instead.
func LoadConfig(path string) (*Config, error) {
	// A missing .env is the normal case in production.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		slog.Info("Config file not found, using defaults and environment", "path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// BotUsername returns the runtime bot username, or an empty string before getMe.
func (c *Config) BotUsername() string {
	if c.Telegram.BotInfo == nil {
		return ""
	}
	return c.Telegram.BotInfo.Username
}
