// Package routertest builds application state backed by in-memory fakes for
// HTTP handler tests.
package routertest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/texlate/texlate/engine/compile"
	"github.com/texlate/texlate/engine/document"
	"github.com/texlate/texlate/engine/infra/server/appstate"
	"github.com/texlate/texlate/engine/job"
	"github.com/texlate/texlate/engine/slot"
	"github.com/texlate/texlate/engine/source"
	"github.com/texlate/texlate/engine/translate"
	"github.com/texlate/texlate/pkg/logger"
)

const (
	OutputDir  = "out"
	PublicPath = "/api/v0/artifacts"
)

// Paper is a minimal single-file document.
var Paper = "\\documentclass{article}\n\\begin{document}\n\\section{A}\nhello world\n\\end{document}\n"

// Env is a test application wired to fakes.
type Env struct {
	State   *appstate.State
	Fs      afero.Fs
	Counter *slot.MemoryCounter
	// Gate holds every build until it is closed, when non-nil.
	Gate     chan struct{}
	openOnce sync.Once
}

type Options struct {
	Gated bool
}

// NewEnv creates the state. Jobs fetch Paper as a gzip'd single file,
// translate it with a [T] prefixer and build a fake PDF.
func NewEnv(t *testing.T, opts Options) *Env {
	t.Helper()
	env := &Env{Fs: afero.NewMemMapFs(), Counter: slot.NewMemoryCounter()}
	if opts.Gated {
		env.Gate = make(chan struct{})
	}
	ctx := logger.ContextWithLogger(context.Background(), logger.NewForTests())
	slots, err := slot.NewManager(env.Counter, 2, 2*time.Millisecond)
	require.NoError(t, err)
	workspace := source.NewWorkspace(env.Fs, "work", OutputDir, "_ja")
	runner, err := job.NewRunner(ctx, job.Deps{
		Registry:  job.NewRegistry(slots),
		Slots:     slots,
		Fetcher:   &gzipFetcher{fs: env.Fs, data: gzipped(t, Paper)},
		Workspace: workspace,
		Counter: document.CounterFunc(func(_ context.Context, text string) (int, error) {
			return len(strings.Fields(text)), nil
		}),
		Backend: translate.GeneratorFunc(func(_ context.Context, text string) (string, error) {
			return "```latex\n[T]" + text + "\n```", nil
		}),
		Compiler: compile.NewSupervisor(compile.BuilderFunc(env.build)),
	}, job.Settings{
		ChunkBudget:     100,
		CompileAttempts: 1,
		PublicPath:      PublicPath,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		env.Open()
		runner.Wait()
	})
	env.State, err = appstate.NewState(runner, slots, workspace)
	require.NoError(t, err)
	env.State.Heartbeat = 5 * time.Millisecond
	return env
}

// Open releases gated builds. It is safe to call more than once.
func (e *Env) Open() {
	if e.Gate == nil {
		return
	}
	e.openOnce.Do(func() { close(e.Gate) })
}

func (e *Env) build(ctx context.Context, target string) (string, string, error) {
	if e.Gate != nil {
		select {
		case <-e.Gate:
		case <-ctx.Done():
			return "", "", ctx.Err()
		}
	}
	pdf := strings.TrimSuffix(target, ".tex") + ".pdf"
	return pdf, "", afero.WriteFile(e.Fs, pdf, []byte("%PDF-1.5"), 0o644)
}

type gzipFetcher struct {
	mu   sync.Mutex
	fs   afero.Fs
	data []byte
}

func (f *gzipFetcher) Fetch(_ context.Context, documentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := filepath.Join("downloads", fmt.Sprintf("arxiv-%s.tar.gz", source.SafeID(documentID)))
	if ok, _ := afero.Exists(f.fs, p); ok {
		return p, nil
	}
	return p, afero.WriteFile(f.fs, p, f.data, 0o644)
}

func gzipped(t *testing.T, content string) []byte {
	t.Helper()
	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return out.Bytes()
}

// StreamRecorder is a ResponseWriter whose body can be read while a
// handler is still writing to it.
type StreamRecorder struct {
	mu     sync.Mutex
	header http.Header
	code   int
	body   bytes.Buffer
}

func NewStreamRecorder() *StreamRecorder {
	return &StreamRecorder{header: http.Header{}, code: http.StatusOK}
}

func (r *StreamRecorder) Header() http.Header {
	return r.header
}

func (r *StreamRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.Write(p)
}

func (r *StreamRecorder) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.code = code
}

func (r *StreamRecorder) Flush() {}

func (r *StreamRecorder) Code() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.code
}

func (r *StreamRecorder) Body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}
