package config

import (
	"context"
	"time"

	"github.com/texlate/texlate/pkg/config/definition"
)

// Config represents the complete configuration for the translation service.
// It provides type-safe access to all configuration values with validation.
type Config struct {
	Server      ServerConfig      `koanf:"server"      validate:"required"`
	Runtime     RuntimeConfig     `koanf:"runtime"     validate:"required"`
	Redis       RedisConfig       `koanf:"redis"`
	Slots       SlotsConfig       `koanf:"slots"       validate:"required"`
	Translation TranslationConfig `koanf:"translation" validate:"required"`
	Source      SourceConfig      `koanf:"source"      validate:"required"`
	Compile     CompileConfig     `koanf:"compile"     validate:"required"`
	Output      OutputConfig      `koanf:"output"      validate:"required"`
	Monitoring  MonitoringConfig  `koanf:"monitoring"`
	Mode        string            `koanf:"mode"        validate:"omitempty,oneof=standalone distributed" env:"TEXLATE_MODE"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"             validate:"required"        env:"SERVER_HOST"`
	Port            int           `koanf:"port"             validate:"min=1,max=65535" env:"SERVER_PORT"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"                            env:"SERVER_SHUTDOWN_TIMEOUT"`
	// SSEHeartbeat is how often an idle log stream emits an empty event.
	SSEHeartbeat time.Duration `koanf:"sse_heartbeat" validate:"gt=0" env:"SERVER_SSE_HEARTBEAT"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error"          env:"RUNTIME_LOG_LEVEL"`
}

// RedisConfig contains the connection settings of the shared counter store.
type RedisConfig struct {
	Mode        string          `koanf:"mode"         validate:"omitempty,oneof=standalone distributed" env:"REDIS_MODE"`
	URL         string          `koanf:"url"                                                            env:"REDIS_URL"`
	Host        string          `koanf:"host"                                                           env:"REDIS_HOST"`
	Port        string          `koanf:"port"                                                           env:"REDIS_PORT"`
	Password    SensitiveString `koanf:"password"                                                       env:"REDIS_PASSWORD" sensitive:"true"`
	DB          int             `koanf:"db"           validate:"min=0"                                  env:"REDIS_DB"`
	PoolSize    int             `koanf:"pool_size"    validate:"min=1"                                  env:"REDIS_POOL_SIZE"`
	MaxRetries  int             `koanf:"max_retries"  validate:"min=0"                                  env:"REDIS_MAX_RETRIES"`
	DialTimeout time.Duration   `koanf:"dial_timeout"                                                   env:"REDIS_DIAL_TIMEOUT"`
	PingTimeout time.Duration   `koanf:"ping_timeout"                                                   env:"REDIS_PING_TIMEOUT"`
}

// SlotsConfig bounds how many translation jobs run at once across all workers.
type SlotsConfig struct {
	Limit        int           `koanf:"limit"         validate:"min=1"                    env:"SLOTS_LIMIT"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"                     env:"SLOTS_POLL_INTERVAL"`
	Key          string        `koanf:"key"           validate:"required"                 env:"SLOTS_KEY"`
	Strategy     string        `koanf:"strategy"      validate:"oneof=recheck atomic"     env:"SLOTS_STRATEGY"`
}

// TranslationConfig configures segmentation and the generation backend.
type TranslationConfig struct {
	Provider          string          `koanf:"provider"            validate:"oneof=openai mock"  env:"TRANSLATION_PROVIDER"`
	Model             string          `koanf:"model"               validate:"required"           env:"TRANSLATION_MODEL"`
	Encoding          string          `koanf:"encoding"                                          env:"TRANSLATION_ENCODING"`
	APIKey            SensitiveString `koanf:"api_key"                                           env:"OPENAI_API_KEY" sensitive:"true"`
	BaseURL           string          `koanf:"base_url"                                          env:"OPENAI_BASE_URL"`
	ChunkBudget       int             `koanf:"chunk_budget"        validate:"min=1"              env:"TRANSLATION_CHUNK_BUDGET"`
	PromptTemplate    string          `koanf:"prompt_template"     validate:"required"           env:"TRANSLATION_PROMPT_TEMPLATE"`
	PreambleInsert    string          `koanf:"preamble_insert"                                   env:"TRANSLATION_PREAMBLE_INSERT"`
	RequestsPerMinute int             `koanf:"requests_per_minute" validate:"min=0"              env:"TRANSLATION_REQUESTS_PER_MINUTE"`
	RequestTimeout    time.Duration   `koanf:"request_timeout"                                   env:"TRANSLATION_REQUEST_TIMEOUT"`
	TokenCacheSize    int             `koanf:"token_cache_size"    validate:"min=0"              env:"TRANSLATION_TOKEN_CACHE_SIZE"`
}

// SourceConfig configures where documents are fetched from and staged.
type SourceConfig struct {
	BaseURL        string        `koanf:"base_url"        validate:"required,url" env:"SOURCE_BASE_URL"`
	Timeout        time.Duration `koanf:"timeout"         validate:"gt=0"         env:"SOURCE_TIMEOUT"`
	RetryCount     int           `koanf:"retry_count"     validate:"min=0"        env:"SOURCE_RETRY_COUNT"`
	DownloadDir    string        `koanf:"download_dir"    validate:"required"     env:"SOURCE_DOWNLOAD_DIR"`
	WorkDir        string        `koanf:"work_dir"        validate:"required"     env:"SOURCE_WORK_DIR"`
	ReuseDownloads bool          `koanf:"reuse_downloads"                         env:"SOURCE_REUSE_DOWNLOADS"`
}

// CompileConfig configures the build toolchain supervisor.
type CompileConfig struct {
	Command     string        `koanf:"command"      validate:"required" env:"COMPILE_COMMAND"`
	MaxAttempts int           `koanf:"max_attempts" validate:"min=1"    env:"COMPILE_MAX_ATTEMPTS"`
	Delay       time.Duration `koanf:"delay"        validate:"min=0"    env:"COMPILE_DELAY"`
	Timeout     time.Duration `koanf:"timeout"      validate:"min=0"    env:"COMPILE_TIMEOUT"`
}

// OutputConfig configures where built artifacts are published.
type OutputConfig struct {
	Dir            string `koanf:"dir"             validate:"required" env:"OUTPUT_DIR"`
	ArtifactSuffix string `koanf:"artifact_suffix" validate:"required" env:"OUTPUT_ARTIFACT_SUFFIX"`
	PublicPath     string `koanf:"public_path"     validate:"required" env:"OUTPUT_PUBLIC_PATH"`
}

// MonitoringConfig toggles the metrics endpoint.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"MONITORING_PATH"    validate:"omitempty,startswith=/"`
}

// Service defines the interface for configuration management operations.
type Service interface {
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Watch(ctx context.Context, callback func(*Config)) error
	Validate(config *Config) error
	GetSource(key string) SourceType
}

// Source represents a configuration source that can be loaded and watched.
type Source interface {
	Load() (map[string]any, error)
	Watch(ctx context.Context, callback func()) error
	Type() SourceType
	Close() error
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata tracks where each key was loaded from.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// Default returns the built-in configuration defined by the registry.
func Default() *Config {
	registry := definition.CreateRegistry()
	return &Config{
		Server: ServerConfig{
			Host:            getString(registry, "server.host"),
			Port:            getInt(registry, "server.port"),
			ShutdownTimeout: getDuration(registry, "server.shutdown_timeout"),
			SSEHeartbeat:    getDuration(registry, "server.sse_heartbeat"),
		},
		Runtime: RuntimeConfig{
			Environment: getString(registry, "runtime.environment"),
			LogLevel:    getString(registry, "runtime.log_level"),
		},
		Redis: RedisConfig{
			Mode:        getString(registry, "redis.mode"),
			URL:         getString(registry, "redis.url"),
			Host:        getString(registry, "redis.host"),
			Port:        getString(registry, "redis.port"),
			Password:    SensitiveString(getString(registry, "redis.password")),
			DB:          getInt(registry, "redis.db"),
			PoolSize:    getInt(registry, "redis.pool_size"),
			MaxRetries:  getInt(registry, "redis.max_retries"),
			DialTimeout: getDuration(registry, "redis.dial_timeout"),
			PingTimeout: getDuration(registry, "redis.ping_timeout"),
		},
		Slots: SlotsConfig{
			Limit:        getInt(registry, "slots.limit"),
			PollInterval: getDuration(registry, "slots.poll_interval"),
			Key:          getString(registry, "slots.key"),
			Strategy:     getString(registry, "slots.strategy"),
		},
		Translation: TranslationConfig{
			Provider:          getString(registry, "translation.provider"),
			Model:             getString(registry, "translation.model"),
			Encoding:          getString(registry, "translation.encoding"),
			APIKey:            SensitiveString(getString(registry, "translation.api_key")),
			BaseURL:           getString(registry, "translation.base_url"),
			ChunkBudget:       getInt(registry, "translation.chunk_budget"),
			PromptTemplate:    getString(registry, "translation.prompt_template"),
			PreambleInsert:    getString(registry, "translation.preamble_insert"),
			RequestsPerMinute: getInt(registry, "translation.requests_per_minute"),
			RequestTimeout:    getDuration(registry, "translation.request_timeout"),
			TokenCacheSize:    getInt(registry, "translation.token_cache_size"),
		},
		Source: SourceConfig{
			BaseURL:        getString(registry, "source.base_url"),
			Timeout:        getDuration(registry, "source.timeout"),
			RetryCount:     getInt(registry, "source.retry_count"),
			DownloadDir:    getString(registry, "source.download_dir"),
			WorkDir:        getString(registry, "source.work_dir"),
			ReuseDownloads: getBool(registry, "source.reuse_downloads"),
		},
		Compile: CompileConfig{
			Command:     getString(registry, "compile.command"),
			MaxAttempts: getInt(registry, "compile.max_attempts"),
			Delay:       getDuration(registry, "compile.delay"),
			Timeout:     getDuration(registry, "compile.timeout"),
		},
		Output: OutputConfig{
			Dir:            getString(registry, "output.dir"),
			ArtifactSuffix: getString(registry, "output.artifact_suffix"),
			PublicPath:     getString(registry, "output.public_path"),
		},
		Monitoring: MonitoringConfig{
			Enabled: getBool(registry, "monitoring.enabled"),
			Path:    getString(registry, "monitoring.path"),
		},
		Mode: getString(registry, "mode"),
	}
}

func getString(registry *definition.Registry, path string) string {
	if s, ok := registry.GetDefault(path).(string); ok {
		return s
	}
	return ""
}

func getInt(registry *definition.Registry, path string) int {
	if i, ok := registry.GetDefault(path).(int); ok {
		return i
	}
	return 0
}

func getBool(registry *definition.Registry, path string) bool {
	if b, ok := registry.GetDefault(path).(bool); ok {
		return b
	}
	return false
}

func getDuration(registry *definition.Registry, path string) time.Duration {
	if d, ok := registry.GetDefault(path).(time.Duration); ok {
		return d
	}
	return 0
}
