package job

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/texlate/texlate/engine/compile"
	"github.com/texlate/texlate/engine/core"
	"github.com/texlate/texlate/engine/document"
	"github.com/texlate/texlate/engine/source"
	"github.com/texlate/texlate/engine/translate"
	"github.com/texlate/texlate/pkg/config"
	"github.com/texlate/texlate/pkg/logger"
)

// Line prefixes that consumers of a log channel can match on.
const (
	FailurePrefix  = "job failed:"
	ArtifactPrefix = "ARTIFACT_LINK:"
)

// SlotAcquirer admits jobs.
type SlotAcquirer interface {
	Acquire(ctx context.Context, jobID string) error
}

// Fetcher downloads the source archive of a document.
type Fetcher interface {
	Fetch(ctx context.Context, documentID string) (string, error)
}

// Compiler builds the translated main file.
type Compiler interface {
	CompileWithRetry(ctx context.Context, target string, maxAttempts int, delay time.Duration) (*compile.Result, error)
}

// Observer receives job-level events, typically for metrics.
type Observer interface {
	JobFinished(ctx context.Context, outcome State, kind core.Kind, duration time.Duration)
	ChunkTranslated(ctx context.Context, kind document.ChunkKind)
}

// Settings are the per-run knobs of the pipeline.
type Settings struct {
	ChunkBudget     int
	PreambleInsert  string
	CompileAttempts int
	CompileDelay    time.Duration
	PublicPath      string
	LogLevel        logger.LogLevel
}

// SettingsFromConfig derives Settings from the application configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		ChunkBudget:     cfg.Translation.ChunkBudget,
		PreambleInsert:  cfg.Translation.PreambleInsert,
		CompileAttempts: cfg.Compile.MaxAttempts,
		CompileDelay:    cfg.Compile.Delay,
		PublicPath:      cfg.Output.PublicPath,
		LogLevel:        logger.InfoLevel,
	}
}

// Deps are the collaborators a Runner drives.
type Deps struct {
	Registry  *Registry
	Slots     SlotAcquirer
	Fetcher   Fetcher
	Workspace *source.Workspace
	Counter   document.TokenCounter
	Backend   translate.Generator
	Compiler  Compiler
	Observer  Observer
}

// Runner executes translation jobs, one goroutine per job.
type Runner struct {
	deps     Deps
	settings Settings
	ctx      context.Context
	wg       sync.WaitGroup
}

// NewRunner creates a runner whose jobs live until ctx is canceled.
func NewRunner(ctx context.Context, deps Deps, settings Settings) (*Runner, error) {
	switch {
	case deps.Registry == nil:
		return nil, fmt.Errorf("job registry is required")
	case deps.Slots == nil:
		return nil, fmt.Errorf("slot manager is required")
	case deps.Fetcher == nil, deps.Workspace == nil:
		return nil, fmt.Errorf("document source is required")
	case deps.Counter == nil, deps.Backend == nil:
		return nil, fmt.Errorf("translation backend is required")
	case deps.Compiler == nil:
		return nil, fmt.Errorf("compiler is required")
	}
	if settings.ChunkBudget <= 0 {
		return nil, fmt.Errorf("chunk budget must be positive, got %d", settings.ChunkBudget)
	}
	if settings.CompileAttempts < 1 {
		settings.CompileAttempts = 1
	}
	return &Runner{deps: deps, settings: settings, ctx: ctx}, nil
}

// Registry exposes the registry the runner reports to.
func (r *Runner) Registry() *Registry {
	return r.deps.Registry
}

// Submit registers a job for documentID and starts it in the background.
// The returned id can be used to follow the job's log channel.
func (r *Runner) Submit(ctx context.Context, documentID string) (string, error) {
	jobID, _, err := r.Start(ctx, documentID)
	return jobID, err
}

// Start is Submit for callers that consume the log channel themselves. The
// channel is returned before the job can possibly be released.
func (r *Runner) Start(ctx context.Context, documentID string) (string, *LogChannel, error) {
	if !config.IsDocumentID(documentID) {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidDocumentID, documentID)
	}
	id, err := core.NewID()
	if err != nil {
		return "", nil, err
	}
	jobID := id.String()
	ch, err := r.deps.Registry.Register(jobID, documentID)
	if err != nil {
		return "", nil, err
	}
	logger.FromContext(ctx).Info("job submitted", "job_id", jobID, "document_id", documentID)
	r.wg.Add(1)
	go r.run(jobID, documentID, ch)
	return jobID, ch, nil
}

// Wait blocks until every submitted job has been released.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(jobID, documentID string, ch *LogChannel) {
	defer r.wg.Done()
	base := logger.FromContext(r.ctx).With("job_id", jobID, "document_id", documentID)
	channelLog := logger.NewLogger(&logger.Config{
		Level:      r.settings.LogLevel,
		Output:     ch,
		Plain:      true,
		TimeFormat: time.TimeOnly,
	})
	ctx := logger.ContextWithLogger(r.ctx, logger.Fanout(base, channelLog))
	log := logger.FromContext(ctx)
	start := time.Now()

	artifact, err := r.execute(ctx, jobID, documentID)
	r.finish(ctx, jobID, ch, artifact, err)

	outcome, kind := StateSucceeded, core.Kind("")
	if err != nil {
		outcome, kind = StateFailed, core.KindOf(err)
	}
	if r.deps.Observer != nil {
		r.deps.Observer.JobFinished(ctx, outcome, kind, time.Since(start))
	}
	if err := r.deps.Registry.Release(context.WithoutCancel(ctx), jobID); err != nil {
		log.Error("job release failed", "error", err)
	}
}

func (r *Runner) execute(ctx context.Context, jobID, documentID string) (artifact string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = core.Errorf(core.Internal, "panic: %v", p)
		}
	}()
	log := logger.FromContext(ctx)
	reg := r.deps.Registry
	if err := reg.SetState(jobID, StateSlotWait); err != nil {
		return "", err
	}
	if err := r.deps.Slots.Acquire(ctx, jobID); err != nil {
		return "", fmt.Errorf("waiting for a slot: %w", err)
	}
	if err := reg.MarkAdmitted(jobID); err != nil {
		return "", err
	}
	if err := reg.SetState(jobID, StateRunning); err != nil {
		return "", err
	}
	log.Info("job running")

	ws := r.deps.Workspace
	archive, err := r.deps.Fetcher.Fetch(ctx, documentID)
	if err != nil {
		return "", err
	}
	dir, err := ws.Prepare(ctx, archive, jobID)
	if err != nil {
		return "", err
	}
	main, err := ws.FindMain(dir)
	if err != nil {
		return "", err
	}
	log.Info("main file located", "file", relative(dir, main))
	if err := r.insertPreamble(ctx, main); err != nil {
		return "", err
	}
	files, err := ws.Enumerate(dir, source.TexPattern)
	if err != nil {
		return "", err
	}
	for _, file := range files {
		if err := r.translateFile(ctx, file, relative(dir, file)); err != nil {
			return "", err
		}
	}
	log.Info("building document", "file", relative(dir, main))
	res, err := r.deps.Compiler.CompileWithRetry(ctx, main, r.settings.CompileAttempts, r.settings.CompileDelay)
	if err != nil {
		return "", err
	}
	name, err := ws.PublishArtifact(res.Artifact, documentID)
	if err != nil {
		return "", err
	}
	if err := ws.Discard(jobID); err != nil {
		log.Warn("workspace cleanup failed", "error", err)
	}
	return name, nil
}

func (r *Runner) insertPreamble(ctx context.Context, main string) error {
	if r.settings.PreambleInsert == "" {
		return nil
	}
	ws := r.deps.Workspace
	content, err := ws.ReadFile(main)
	if err != nil {
		return err
	}
	updated, ok := document.InsertAfterDocumentClass(content, r.settings.PreambleInsert)
	if !ok {
		logger.FromContext(ctx).Warn("document class line not found, preamble left unchanged")
		return nil
	}
	return ws.WriteFile(main, updated)
}

func (r *Runner) translateFile(ctx context.Context, file, name string) error {
	log := logger.FromContext(ctx).With("file", name)
	ws := r.deps.Workspace
	content, err := ws.ReadFile(file)
	if err != nil {
		return err
	}
	chunks, err := document.Segment(ctx, content, r.settings.ChunkBudget, r.deps.Counter)
	if err != nil {
		return fmt.Errorf("segmenting %s: %w", name, err)
	}
	log.Info("file segmented", "chunks", len(chunks))
	if n := document.OversizedCount(chunks); n > 0 {
		log.Warn("chunks exceed the token budget", "kind", core.OversizedUnit, "oversized", n, "budget", r.settings.ChunkBudget)
	}
	translated, err := translate.TranslateAll(ctx, chunks, r.deps.Backend, func(done, total int, chunk document.Chunk) {
		log.Info("translated chunk", "chunk", done, "total", total)
		if r.deps.Observer != nil {
			r.deps.Observer.ChunkTranslated(ctx, chunk.Kind)
		}
	})
	if err != nil {
		return fmt.Errorf("translating %s: %w", name, err)
	}
	return ws.WriteFile(file, translated)
}

func (r *Runner) finish(ctx context.Context, jobID string, ch *LogChannel, artifact string, err error) {
	log := logger.FromContext(ctx)
	if recErr := r.deps.Registry.Finish(jobID, artifact, err); recErr != nil {
		log.Warn("failed to record job outcome", "error", recErr)
	}
	if err != nil {
		log.Error("job failed", "kind", core.KindOf(err), "error", err)
		ch.Append(FailureLine(err))
		return
	}
	link := ArtifactURL(r.settings.PublicPath, artifact)
	log.Info("job succeeded", "artifact", artifact)
	ch.Append(ArtifactPrefix + " " + link)
}

// FailureLine is the final line a failed job writes to its channel.
func FailureLine(err error) string {
	return failureLine(core.KindOf(err), core.Message(err))
}

func failureLine(kind core.Kind, msg string) string {
	return fmt.Sprintf("%s kind=%s error=%s", FailurePrefix, kind, msg)
}

// FinalLine rebuilds the last line a finished job wrote, for clients that
// subscribe after its channel is gone.
func (r *Runner) FinalLine(j Job) (string, bool) {
	switch j.Outcome {
	case StateSucceeded:
		return ArtifactPrefix + " " + ArtifactURL(r.settings.PublicPath, j.Artifact), true
	case StateFailed:
		return failureLine(j.ErrorKind, j.Error), true
	default:
		return "", false
	}
}

// ArtifactURL joins the public download path with an artifact name.
func ArtifactURL(publicPath, name string) string {
	return path.Join("/", publicPath, name)
}

func relative(dir, file string) string {
	if rel, err := filepath.Rel(dir, file); err == nil {
		return filepath.ToSlash(rel)
	}
	return file
}
