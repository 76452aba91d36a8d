package cli

import (
	"context"
	"fmt"

	"github.com/spf13/afero"

	"github.com/texlate/texlate/engine/compile"
	"github.com/texlate/texlate/engine/infra/cache"
	"github.com/texlate/texlate/engine/infra/monitoring"
	"github.com/texlate/texlate/engine/job"
	"github.com/texlate/texlate/engine/llm"
	"github.com/texlate/texlate/engine/slot"
	"github.com/texlate/texlate/engine/source"
	"github.com/texlate/texlate/pkg/config"
	"github.com/texlate/texlate/pkg/logger"
)

// App is the wired pipeline shared by the serve and translate commands.
type App struct {
	Config     *config.Config
	Cache      *cache.Cache
	Slots      *slot.Manager
	Workspace  *source.Workspace
	Runner     *job.Runner
	Monitoring *monitoring.Service

	cleanups []func()
}

// NewApp builds every collaborator from the configuration in ctx. Jobs run
// until ctx is canceled.
func NewApp(ctx context.Context) (*App, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("configuration missing from context")
	}
	app := &App{Config: cfg}
	mon := monitoring.NewMonitoringServiceWithFallback(ctx, monitoring.FromAppConfig(cfg))
	app.Monitoring = mon
	app.onClose(func() {
		if err := mon.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.FromContext(ctx).Warn("failed to shut down monitoring", "error", err)
		}
	})
	if err := app.setupSlots(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.setupRunner(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) setupSlots(ctx context.Context, cfg *config.Config) error {
	c, closeCache, err := cache.SetupCache(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up slot store: %w", err)
	}
	a.Cache = c
	a.onClose(closeCache)
	counter, err := slot.NewRedisCounter(c.Client, cfg.Slots.Key)
	if err != nil {
		return err
	}
	a.Slots, err = slot.NewManager(
		counter,
		cfg.Slots.Limit,
		cfg.Slots.PollInterval,
		slot.WithStrategy(slot.Strategy(cfg.Slots.Strategy)),
		slot.WithObserver(a.Monitoring.Pipeline()),
	)
	if err != nil {
		return err
	}
	if err := a.Monitoring.Pipeline().ObserveSharedSlots(a.Slots.Current); err != nil {
		logger.FromContext(ctx).Warn("failed to register slot gauge", "error", err)
	}
	return nil
}

func (a *App) setupRunner(ctx context.Context, cfg *config.Config) error {
	fs := afero.NewOsFs()
	a.Workspace = source.NewWorkspace(fs, cfg.Source.WorkDir, cfg.Output.Dir, cfg.Output.ArtifactSuffix)
	encoding := cfg.Translation.Encoding
	if encoding == "" {
		encoding = cfg.Translation.Model
	}
	tokenizer, err := llm.NewTiktokenCounter(encoding)
	if err != nil {
		return fmt.Errorf("failed to load tokenizer: %w", err)
	}
	counter, err := llm.NewCachedCounter(tokenizer, cfg.Translation.TokenCacheSize)
	if err != nil {
		return err
	}
	backend, err := llm.NewBackend(&cfg.Translation)
	if err != nil {
		return fmt.Errorf("failed to create translation backend: %w", err)
	}
	builder, err := compile.NewLatexmkBuilder(cfg.Compile.Command, cfg.Compile.Timeout)
	if err != nil {
		return err
	}
	settings := job.SettingsFromConfig(cfg)
	settings.LogLevel = logger.ParseLevel(cfg.Runtime.LogLevel)
	a.Runner, err = job.NewRunner(ctx, job.Deps{
		Registry:  job.NewRegistry(a.Slots),
		Slots:     a.Slots,
		Fetcher:   source.NewFetcher(fs, &cfg.Source),
		Workspace: a.Workspace,
		Counter:   counter,
		Backend:   backend,
		Compiler:  compile.NewSupervisor(builder, compile.WithObserver(a.Monitoring.Pipeline().CompileAttempt)),
		Observer:  a.Monitoring.Pipeline(),
	}, settings)
	return err
}

func (a *App) onClose(fn func()) {
	a.cleanups = append(a.cleanups, fn)
}

// Close waits for running jobs, then releases resources in reverse order.
func (a *App) Close() {
	if a.Runner != nil {
		a.Runner.Wait()
	}
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}
