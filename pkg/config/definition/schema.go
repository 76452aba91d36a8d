package definition

import (
	"reflect"
	"time"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	stringType   = reflect.TypeOf("")
	intType      = reflect.TypeOf(0)
	boolType     = reflect.TypeOf(false)
)

// DefaultPromptTemplate asks the model for a single fenced block so the
// response can be extracted unambiguously.
const DefaultPromptTemplate = `You are a translator of academic LaTeX papers.
Translate the English prose in the following LaTeX fragment into natural Japanese.
Keep every LaTeX command, environment, label, citation, math expression and comment structure unchanged.
Do not add or drop content. Return only the translated fragment inside exactly one fenced code block.

` + "```latex\n{{ .prompt }}\n```\n"

// DefaultPreambleInsert loads Japanese support for lualatex builds.
const DefaultPreambleInsert = `\usepackage{luatexja}
\usepackage[haranoaji]{luatexja-preset}`

// CreateRegistry creates and populates the configuration registry.
// It is the single source of configuration defaults.
func CreateRegistry() *Registry {
	registry := NewRegistry()
	registerServerFields(registry)
	registerRuntimeFields(registry)
	registerRedisFields(registry)
	registerSlotsFields(registry)
	registerTranslationFields(registry)
	registerSourceFields(registry)
	registerCompileFields(registry)
	registerOutputFields(registry)
	registerMonitoringFields(registry)
	registry.Register(&FieldDef{
		Path:    "mode",
		Default: "standalone",
		CLIFlag: "mode",
		EnvVar:  "TEXLATE_MODE",
		Type:    stringType,
		Help:    "Deployment mode: standalone (embedded counter store) or distributed (external Redis)",
	})
	return registry
}

func registerServerFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "server.host",
		Default: "0.0.0.0",
		CLIFlag: "host",
		EnvVar:  "SERVER_HOST",
		Type:    stringType,
		Help:    "Host to bind the HTTP server",
	})
	registry.Register(&FieldDef{
		Path:      "server.port",
		Default:   5050,
		CLIFlag:   "port",
		Shorthand: "p",
		EnvVar:    "SERVER_PORT",
		Type:      intType,
		Help:      "Port to bind the HTTP server",
	})
	registry.Register(&FieldDef{
		Path:    "server.shutdown_timeout",
		Default: 30 * time.Second,
		EnvVar:  "SERVER_SHUTDOWN_TIMEOUT",
		Type:    durationType,
		Help:    "Grace period for in-flight requests on shutdown",
	})
	registry.Register(&FieldDef{
		Path:    "server.sse_heartbeat",
		Default: 500 * time.Millisecond,
		EnvVar:  "SERVER_SSE_HEARTBEAT",
		Type:    durationType,
		Help:    "Interval of empty events on an idle log stream",
	})
}

func registerRuntimeFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "runtime.environment",
		Default: "development",
		EnvVar:  "RUNTIME_ENVIRONMENT",
		Type:    stringType,
		Help:    "Runtime environment (development, staging, production)",
	})
	registry.Register(&FieldDef{
		Path:    "runtime.log_level",
		Default: "info",
		CLIFlag: "log-level",
		EnvVar:  "RUNTIME_LOG_LEVEL",
		Type:    stringType,
		Help:    "Log level (debug, info, warn, error)",
	})
}

func registerRedisFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "redis.mode",
		Default: "",
		EnvVar:  "REDIS_MODE",
		Type:    stringType,
		Help:    "Overrides the global mode for the counter store",
	})
	registry.Register(&FieldDef{
		Path:    "redis.url",
		Default: "",
		CLIFlag: "redis-url",
		EnvVar:  "REDIS_URL",
		Type:    stringType,
		Help:    "Redis connection URL; takes precedence over host and port",
	})
	registry.Register(&FieldDef{
		Path:    "redis.host",
		Default: "localhost",
		EnvVar:  "REDIS_HOST",
		Type:    stringType,
		Help:    "Redis host",
	})
	registry.Register(&FieldDef{
		Path:    "redis.port",
		Default: "6379",
		EnvVar:  "REDIS_PORT",
		Type:    stringType,
		Help:    "Redis port",
	})
	registry.Register(&FieldDef{
		Path:    "redis.password",
		Default: "",
		EnvVar:  "REDIS_PASSWORD",
		Type:    stringType,
		Help:    "Redis password",
	})
	registry.Register(&FieldDef{
		Path:    "redis.db",
		Default: 0,
		EnvVar:  "REDIS_DB",
		Type:    intType,
		Help:    "Redis database index",
	})
	registry.Register(&FieldDef{
		Path:    "redis.pool_size",
		Default: 10,
		EnvVar:  "REDIS_POOL_SIZE",
		Type:    intType,
		Help:    "Redis connection pool size",
	})
	registry.Register(&FieldDef{
		Path:    "redis.max_retries",
		Default: 3,
		EnvVar:  "REDIS_MAX_RETRIES",
		Type:    intType,
		Help:    "Client-side retries per Redis command",
	})
	registry.Register(&FieldDef{
		Path:    "redis.dial_timeout",
		Default: 5 * time.Second,
		EnvVar:  "REDIS_DIAL_TIMEOUT",
		Type:    durationType,
		Help:    "Redis dial timeout",
	})
	registry.Register(&FieldDef{
		Path:    "redis.ping_timeout",
		Default: 10 * time.Second,
		EnvVar:  "REDIS_PING_TIMEOUT",
		Type:    durationType,
		Help:    "Timeout of the startup connectivity check",
	})
}

func registerSlotsFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "slots.limit",
		Default: 2,
		CLIFlag: "slots-limit",
		EnvVar:  "SLOTS_LIMIT",
		Type:    intType,
		Help:    "Maximum number of translation jobs running at once across all workers",
	})
	registry.Register(&FieldDef{
		Path:    "slots.poll_interval",
		Default: time.Second,
		CLIFlag: "slots-poll-interval",
		EnvVar:  "SLOTS_POLL_INTERVAL",
		Type:    durationType,
		Help:    "Delay between admission attempts while waiting for a slot",
	})
	registry.Register(&FieldDef{
		Path:    "slots.key",
		Default: "texlate:slots:running",
		EnvVar:  "SLOTS_KEY",
		Type:    stringType,
		Help:    "Key of the shared slot counter",
	})
	registry.Register(&FieldDef{
		Path:    "slots.strategy",
		Default: "recheck",
		EnvVar:  "SLOTS_STRATEGY",
		Type:    stringType,
		Help:    "Admission strategy: recheck (increment then verify) or atomic (bounded script)",
	})
}

func registerTranslationFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "translation.provider",
		Default: "openai",
		CLIFlag: "provider",
		EnvVar:  "TRANSLATION_PROVIDER",
		Type:    stringType,
		Help:    "Generation backend (openai, mock)",
	})
	registry.Register(&FieldDef{
		Path:    "translation.model",
		Default: "gpt-4o",
		CLIFlag: "model",
		EnvVar:  "TRANSLATION_MODEL",
		Type:    stringType,
		Help:    "Model used for translation",
	})
	registry.Register(&FieldDef{
		Path:    "translation.encoding",
		Default: "",
		EnvVar:  "TRANSLATION_ENCODING",
		Type:    stringType,
		Help:    "Tokenizer encoding; resolved from the model when empty",
	})
	registry.Register(&FieldDef{
		Path:    "translation.api_key",
		Default: "",
		EnvVar:  "OPENAI_API_KEY",
		Type:    stringType,
		Help:    "API key of the generation backend",
	})
	registry.Register(&FieldDef{
		Path:    "translation.base_url",
		Default: "",
		EnvVar:  "OPENAI_BASE_URL",
		Type:    stringType,
		Help:    "Base URL of an OpenAI-compatible endpoint",
	})
	registry.Register(&FieldDef{
		Path:    "translation.chunk_budget",
		Default: 2000,
		CLIFlag: "chunk-budget",
		EnvVar:  "TRANSLATION_CHUNK_BUDGET",
		Type:    intType,
		Help:    "Token budget of one translation chunk",
	})
	registry.Register(&FieldDef{
		Path:    "translation.prompt_template",
		Default: DefaultPromptTemplate,
		EnvVar:  "TRANSLATION_PROMPT_TEMPLATE",
		Type:    stringType,
		Help:    "Prompt template; the chunk text is available as .prompt",
	})
	registry.Register(&FieldDef{
		Path:    "translation.preamble_insert",
		Default: DefaultPreambleInsert,
		EnvVar:  "TRANSLATION_PREAMBLE_INSERT",
		Type:    stringType,
		Help:    "Text inserted after the document class line of the main file",
	})
	registry.Register(&FieldDef{
		Path:    "translation.requests_per_minute",
		Default: 60,
		EnvVar:  "TRANSLATION_REQUESTS_PER_MINUTE",
		Type:    intType,
		Help:    "Backend request rate limit per process (0 disables)",
	})
	registry.Register(&FieldDef{
		Path:    "translation.request_timeout",
		Default: 5 * time.Minute,
		EnvVar:  "TRANSLATION_REQUEST_TIMEOUT",
		Type:    durationType,
		Help:    "Timeout of a single backend request",
	})
	registry.Register(&FieldDef{
		Path:    "translation.token_cache_size",
		Default: 4096,
		EnvVar:  "TRANSLATION_TOKEN_CACHE_SIZE",
		Type:    intType,
		Help:    "Entries kept in the token count cache (0 disables)",
	})
}

func registerSourceFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "source.base_url",
		Default: "https://arxiv.org/src",
		EnvVar:  "SOURCE_BASE_URL",
		Type:    stringType,
		Help:    "Base URL of the document source archive",
	})
	registry.Register(&FieldDef{
		Path:    "source.timeout",
		Default: 2 * time.Minute,
		EnvVar:  "SOURCE_TIMEOUT",
		Type:    durationType,
		Help:    "Download timeout",
	})
	registry.Register(&FieldDef{
		Path:    "source.retry_count",
		Default: 2,
		EnvVar:  "SOURCE_RETRY_COUNT",
		Type:    intType,
		Help:    "Transport-level retries of the download client",
	})
	registry.Register(&FieldDef{
		Path:    "source.download_dir",
		Default: "data/0_download",
		CLIFlag: "download-dir",
		EnvVar:  "SOURCE_DOWNLOAD_DIR",
		Type:    stringType,
		Help:    "Directory holding downloaded archives",
	})
	registry.Register(&FieldDef{
		Path:    "source.work_dir",
		Default: "data/2_working_data",
		CLIFlag: "work-dir",
		EnvVar:  "SOURCE_WORK_DIR",
		Type:    stringType,
		Help:    "Directory holding per-job working trees",
	})
	registry.Register(&FieldDef{
		Path:    "source.reuse_downloads",
		Default: true,
		EnvVar:  "SOURCE_REUSE_DOWNLOADS",
		Type:    boolType,
		Help:    "Skip the download when the archive is already present",
	})
}

func registerCompileFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "compile.command",
		Default: "latexmk -lualatex -interaction=nonstopmode",
		EnvVar:  "COMPILE_COMMAND",
		Type:    stringType,
		Help:    "Build command; the main file name is appended",
	})
	registry.Register(&FieldDef{
		Path:    "compile.max_attempts",
		Default: 5,
		CLIFlag: "compile-attempts",
		EnvVar:  "COMPILE_MAX_ATTEMPTS",
		Type:    intType,
		Help:    "Maximum build attempts",
	})
	registry.Register(&FieldDef{
		Path:    "compile.delay",
		Default: 2 * time.Second,
		EnvVar:  "COMPILE_DELAY",
		Type:    durationType,
		Help:    "Fixed delay between build attempts",
	})
	registry.Register(&FieldDef{
		Path:    "compile.timeout",
		Default: 10 * time.Minute,
		EnvVar:  "COMPILE_TIMEOUT",
		Type:    durationType,
		Help:    "Timeout of one build attempt (0 disables)",
	})
}

func registerOutputFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "output.dir",
		Default: "data/3_output_data",
		CLIFlag: "output-dir",
		EnvVar:  "OUTPUT_DIR",
		Type:    stringType,
		Help:    "Directory where built artifacts are published",
	})
	registry.Register(&FieldDef{
		Path:    "output.artifact_suffix",
		Default: "_ja",
		EnvVar:  "OUTPUT_ARTIFACT_SUFFIX",
		Type:    stringType,
		Help:    "Suffix appended to the document id in artifact names",
	})
	registry.Register(&FieldDef{
		Path:    "output.public_path",
		Default: "/api/v0/artifacts",
		EnvVar:  "OUTPUT_PUBLIC_PATH",
		Type:    stringType,
		Help:    "URL prefix under which artifacts are served",
	})
}

func registerMonitoringFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "monitoring.enabled",
		Default: true,
		EnvVar:  "MONITORING_ENABLED",
		Type:    boolType,
		Help:    "Expose Prometheus metrics",
	})
	registry.Register(&FieldDef{
		Path:    "monitoring.path",
		Default: "/metrics",
		EnvVar:  "MONITORING_PATH",
		Type:    stringType,
		Help:    "Path of the metrics endpoint",
	})
}
