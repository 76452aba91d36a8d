package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/texlate/texlate/pkg/config"
	"github.com/texlate/texlate/pkg/logger"
	"github.com/texlate/texlate/pkg/tplengine"
)

const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"

	promptTemplateName = "translate"
)

// Backend sends chunks to a text-generation model through the configured
// prompt.
type Backend struct {
	model   llms.Model
	prompts *tplengine.TemplateEngine
	limiter *rate.Limiter
	timeout time.Duration
}

type Option func(*Backend)

// WithModel replaces the provider model, mainly for tests.
func WithModel(m llms.Model) Option {
	return func(b *Backend) {
		b.model = m
	}
}

// NewBackend builds the backend described by cfg.
func NewBackend(cfg *config.TranslationConfig, opts ...Option) (*Backend, error) {
	prompts := tplengine.NewEngine()
	if err := prompts.AddTemplate(promptTemplateName, cfg.PromptTemplate); err != nil {
		return nil, fmt.Errorf("prompt template: %w", err)
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	b := &Backend{
		prompts: prompts,
		limiter: rate.NewLimiter(limit, 1),
		timeout: cfg.RequestTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.model == nil {
		model, err := newModel(cfg)
		if err != nil {
			return nil, err
		}
		b.model = model
	}
	return b, nil
}

func newModel(cfg *config.TranslationConfig) (llms.Model, error) {
	switch cfg.Provider {
	case ProviderMock:
		return EchoLLM{}, nil
	case ProviderOpenAI, "":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		token := cfg.APIKey.Value()
		if token == "" && cfg.BaseURL != "" {
			// self-hosted compatible servers usually ignore the key
			token = "unused"
		}
		if token != "" {
			opts = append(opts, openai.WithToken(token))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("creating openai client: %w", err)
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unsupported translation provider %q", cfg.Provider)
	}
}

// Prompt renders the request sent for text.
func (b *Backend) Prompt(text string) (string, error) {
	return b.prompts.Render(promptTemplateName, map[string]any{"prompt": text})
}

// Generate returns the raw model response for one chunk.
func (b *Backend) Generate(ctx context.Context, text string) (string, error) {
	prompt, err := b.Prompt(text)
	if err != nil {
		return "", err
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, b.model, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("generating translation: %w", err)
	}
	logger.FromContext(ctx).Debug("model responded", "duration", time.Since(start), "response_bytes", len(out))
	return out, nil
}
