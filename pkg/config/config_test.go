package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texlate/texlate/pkg/config/definition"
)

type mockSource struct {
	data       map[string]any
	sourceType SourceType
}

func (m *mockSource) Load() (map[string]any, error)       { return m.data, nil }
func (m *mockSource) Watch(context.Context, func()) error { return nil }
func (m *mockSource) Type() SourceType                    { return m.sourceType }
func (m *mockSource) Close() error                        { return nil }

func TestDefault(t *testing.T) {
	t.Run("Should expose the registry defaults", func(t *testing.T) {
		cfg := Default()

		assert.Equal(t, 2, cfg.Slots.Limit)
		assert.Equal(t, time.Second, cfg.Slots.PollInterval)
		assert.Equal(t, "recheck", cfg.Slots.Strategy)
		assert.Equal(t, 5, cfg.Compile.MaxAttempts)
		assert.Equal(t, 2*time.Second, cfg.Compile.Delay)
		assert.Equal(t, "latexmk -lualatex -interaction=nonstopmode", cfg.Compile.Command)
		assert.Equal(t, "https://arxiv.org/src", cfg.Source.BaseURL)
		assert.Equal(t, ModeStandalone, cfg.EffectiveRedisMode())
		assert.Contains(t, cfg.Translation.PromptTemplate, "{{ .prompt }}")
	})
}

func TestLoader_Load(t *testing.T) {
	t.Run("Should load default configuration when no sources provided", func(t *testing.T) {
		cfg, err := NewService().Load(t.Context())
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 5050, cfg.Server.Port)
		assert.Equal(t, 2000, cfg.Translation.ChunkBudget)
	})

	t.Run("Should apply sources in precedence order", func(t *testing.T) {
		yamlSrc := &mockSource{
			sourceType: SourceYAML,
			data: map[string]any{
				"slots":  map[string]any{"limit": 4, "poll_interval": "250ms"},
				"server": map[string]any{"port": 9001},
			},
		}
		cliSrc := &mockSource{
			sourceType: SourceCLI,
			data:       map[string]any{"slots": map[string]any{"limit": 6}},
		}
		svc := NewService()

		cfg, err := svc.Load(t.Context(), cliSrc, yamlSrc)
		require.NoError(t, err)

		assert.Equal(t, 6, cfg.Slots.Limit)
		assert.Equal(t, 250*time.Millisecond, cfg.Slots.PollInterval)
		assert.Equal(t, 9001, cfg.Server.Port)
		assert.Equal(t, SourceCLI, svc.GetSource("slots.limit"))
		assert.Equal(t, SourceYAML, svc.GetSource("server.port"))
		assert.Equal(t, SourceDefault, svc.GetSource("compile.max_attempts"))
	})

	t.Run("Should let environment override YAML but not CLI", func(t *testing.T) {
		t.Setenv("SLOTS_LIMIT", "7")
		t.Setenv("COMPILE_MAX_ATTEMPTS", "3")
		t.Setenv("OPENAI_API_KEY", "sk-test")
		yamlSrc := &mockSource{sourceType: SourceYAML, data: map[string]any{"slots": map[string]any{"limit": 4}}}
		cliSrc := &mockSource{sourceType: SourceCLI, data: map[string]any{"compile": map[string]any{"max_attempts": 9}}}

		cfg, err := NewService().Load(t.Context(), yamlSrc, cliSrc)
		require.NoError(t, err)

		assert.Equal(t, 7, cfg.Slots.Limit)
		assert.Equal(t, 9, cfg.Compile.MaxAttempts)
		assert.Equal(t, "sk-test", cfg.Translation.APIKey.Value())
	})

	t.Run("Should reject invalid values", func(t *testing.T) {
		src := &mockSource{sourceType: SourceYAML, data: map[string]any{"slots": map[string]any{"limit": 0}}}

		_, err := NewService().Load(t.Context(), src)
		assert.Error(t, err)
	})

	t.Run("Should reject an unknown admission strategy", func(t *testing.T) {
		src := &mockSource{sourceType: SourceYAML, data: map[string]any{"slots": map[string]any{"strategy": "fifo"}}}

		_, err := NewService().Load(t.Context(), src)
		assert.Error(t, err)
	})

	t.Run("Should reject an unparsable prompt template", func(t *testing.T) {
		src := &mockSource{
			sourceType: SourceYAML,
			data:       map[string]any{"translation": map[string]any{"prompt_template": "{{ .prompt"}},
		}

		_, err := NewService().Load(t.Context(), src)
		assert.ErrorContains(t, err, "prompt_template")
	})

	t.Run("Should require a redis address in distributed mode", func(t *testing.T) {
		src := &mockSource{
			sourceType: SourceYAML,
			data:       map[string]any{"mode": "distributed", "redis": map[string]any{"host": ""}},
		}

		_, err := NewService().Load(t.Context(), src)
		assert.ErrorContains(t, err, "redis")
	})
}

func TestProviders(t *testing.T) {
	t.Run("Should map CLI flags to config paths", func(t *testing.T) {
		data, err := NewCLIProvider(map[string]any{"slots-limit": 3, "port": 8080, "unknown": true}).Load()
		require.NoError(t, err)

		assert.Equal(t, map[string]any{
			"slots":  map[string]any{"limit": 3},
			"server": map[string]any{"port": 8080},
		}, data)
	})

	t.Run("Should read YAML files and ignore missing ones", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "texlate.yaml")
		require.NoError(t, os.WriteFile(path, []byte("slots:\n  limit: 3\n  key: ~\n"), 0o600))

		data, err := NewYAMLProvider(path).Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"slots": map[string]any{"limit": 3}}, data)

		empty, err := NewYAMLProvider(filepath.Join(dir, "missing.yaml")).Load()
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Should build nested defaults from the registry", func(t *testing.T) {
		data, err := NewDefaultProvider().Load()
		require.NoError(t, err)

		slots, ok := data["slots"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 2, slots["limit"])
	})
}

func TestManager(t *testing.T) {
	t.Run("Should reload when the YAML file changes", func(t *testing.T) {
		ctx := t.Context()
		path := filepath.Join(t.TempDir(), "texlate.yaml")
		require.NoError(t, os.WriteFile(path, []byte("slots:\n  limit: 3\n"), 0o600))
		m := NewManager(ctx, NewService())
		m.SetDebounce(10 * time.Millisecond)
		changed := make(chan int, 4)
		m.OnChange(func(c *Config) { changed <- c.Slots.Limit })

		cfg, err := m.Load(ctx, NewDefaultProvider(), NewYAMLProvider(path), NewEnvProvider())
		require.NoError(t, err)
		t.Cleanup(func() { _ = m.Close(ctx) })
		assert.Equal(t, 3, cfg.Slots.Limit)
		assert.Equal(t, 3, <-changed)

		require.NoError(t, os.WriteFile(path, []byte("slots:\n  limit: 5\n"), 0o600))
		require.Eventually(t, func() bool { return m.Get().Slots.Limit == 5 }, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("Should keep the previous config when a reload fails", func(t *testing.T) {
		ctx := t.Context()
		src := &mockSource{sourceType: SourceYAML, data: map[string]any{"slots": map[string]any{"limit": 3}}}
		m := NewManager(ctx, NewService())
		_, err := m.Load(ctx, src)
		require.NoError(t, err)

		src.data = map[string]any{"slots": map[string]any{"limit": -1}}
		assert.Error(t, m.Reload(ctx))
		assert.Equal(t, 3, m.Get().Slots.Limit)
	})

	t.Run("Should resolve the manager from context", func(t *testing.T) {
		ctx := t.Context()
		m := NewManager(ctx, NewService())
		_, err := m.Load(ctx, NewDefaultProvider())
		require.NoError(t, err)

		ctx = ContextWithManager(ctx, m)
		assert.Same(t, m, ManagerFromContext(ctx))
		assert.Equal(t, m.Get(), FromContext(ctx))
	})

	t.Run("Should keep reloading after the file is replaced by a rename", func(t *testing.T) {
		ctx := t.Context()
		dir := t.TempDir()
		path := filepath.Join(dir, "texlate.yaml")
		require.NoError(t, os.WriteFile(path, []byte("slots:\n  limit: 3\n"), 0o600))
		m := NewManager(ctx, NewService())
		m.SetDebounce(10 * time.Millisecond)
		_, err := m.Load(ctx, NewDefaultProvider(), NewYAMLProvider(path))
		require.NoError(t, err)
		t.Cleanup(func() { _ = m.Close(ctx) })

		for _, limit := range []int{4, 6} {
			tmp := filepath.Join(dir, "texlate.yaml.tmp")
			require.NoError(t, os.WriteFile(tmp, fmt.Appendf(nil, "slots:\n  limit: %d\n", limit), 0o600))
			require.NoError(t, os.Rename(tmp, path))
			require.Eventually(t, func() bool { return m.Get().Slots.Limit == limit }, 5*time.Second, 20*time.Millisecond)
		}
	})
}

func TestEnvBindings(t *testing.T) {
	t.Run("Should bind every env tag to its koanf path", func(t *testing.T) {
		b := envBindings()

		assert.Equal(t, "slots.limit", b["SLOTS_LIMIT"])
		assert.Equal(t, "translation.api_key", b["OPENAI_API_KEY"])
		assert.Equal(t, "server.sse_heartbeat", b["SERVER_SSE_HEARTBEAT"])
		assert.NotContains(t, b, "SERVER")
	})

	t.Run("Should agree with the variables documented in the registry", func(t *testing.T) {
		b := envBindings()
		for _, f := range definition.CreateRegistry().Fields() {
			if f.EnvVar == "" {
				continue
			}
			assert.Equal(t, f.Path, b[f.EnvVar], f.EnvVar)
		}
	})

	t.Run("Should refuse one variable bound to two fields", func(t *testing.T) {
		type section struct {
			A string `koanf:"a" env:"DUP"`
			B string `koanf:"b" env:"DUP"`
		}
		type root struct {
			S section `koanf:"s"`
		}
		assert.Panics(t, func() { bindEnv(reflect.TypeFor[root](), "", map[string]string{}) })
	})
}

func TestIsDocumentID(t *testing.T) {
	t.Run("Should accept new and old style identifiers", func(t *testing.T) {
		for _, id := range []string{"2401.01234", "2401.01234v2", "1706.03762", "hep-th/9901001", "math.GT/0309136v1"} {
			assert.True(t, IsDocumentID(id), id)
		}
	})

	t.Run("Should reject anything else", func(t *testing.T) {
		for _, id := range []string{"", "../etc/passwd", "2401", "abc.defgh", "2401.01234/../x"} {
			assert.False(t, IsDocumentID(id), id)
		}
	})
}
