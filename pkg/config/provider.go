package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/texlate/texlate/pkg/config/definition"
	"gopkg.in/yaml.v3"
)

// envProvider marks environment loading in a source list; the variables
// themselves are read by the loader through koanf's env provider.
type envProvider struct{}

func NewEnvProvider() Source {
	return &envProvider{}
}

func (e *envProvider) Load() (map[string]any, error) {
	return make(map[string]any), nil
}

func (e *envProvider) Watch(_ context.Context, _ func()) error {
	return nil
}

func (e *envProvider) Type() SourceType {
	return SourceEnv
}

func (e *envProvider) Close() error {
	return nil
}

// cliProvider implements Source interface for CLI flags.
type cliProvider struct {
	flags map[string]any
}

// NewCLIProvider creates a source from changed flags keyed by flag name.
func NewCLIProvider(flags map[string]any) Source {
	return &cliProvider{
		flags: flags,
	}
}

func (c *cliProvider) Load() (map[string]any, error) {
	if c.flags == nil {
		return make(map[string]any), nil
	}
	flagToPath := definition.CreateRegistry().GetCLIFlagMapping()
	config := make(map[string]any)
	for key, value := range c.flags {
		if path, ok := flagToPath[key]; ok {
			if err := setNested(config, path, value); err != nil {
				return nil, fmt.Errorf("failed to set CLI flag %s: %w", key, err)
			}
		}
	}
	return config, nil
}

func (c *cliProvider) Watch(_ context.Context, _ func()) error {
	return nil
}

func (c *cliProvider) Type() SourceType {
	return SourceCLI
}

func (c *cliProvider) Close() error {
	return nil
}

// setNested sets a value in a nested map structure using dot notation.
// It returns an error if a path conflict is encountered.
func setNested(m map[string]any, path string, value any) error {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	current := m
	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if _, exists := current[part]; !exists {
			current[part] = make(map[string]any)
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return fmt.Errorf("configuration conflict: key %q is not a map", strings.Join(parts[:i+1], "."))
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
	return nil
}

// yamlProvider implements Source interface for YAML files.
type yamlProvider struct {
	path      string
	mu        sync.Mutex
	watcher   *fileWatcher
	closeOnce sync.Once
}

func NewYAMLProvider(path string) Source {
	return &yamlProvider{
		path: path,
	}
}

func (y *yamlProvider) Load() (map[string]any, error) {
	data, err := os.ReadFile(y.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]any), nil
		}
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file: %w", err)
	}
	return filterNilValues(config), nil
}

// filterNilValues drops nil leaves so they do not override defaults.
func filterNilValues(m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			if filtered := filterNilValues(nested); len(filtered) > 0 {
				result[k] = filtered
			}
			continue
		}
		result[k] = v
	}
	return result
}

// Watch reloads on writes to the YAML file. Missing files are not watched.
func (y *yamlProvider) Watch(ctx context.Context, callback func()) error {
	if _, err := os.Stat(y.path); err != nil {
		return fmt.Errorf("yaml source %s not watchable: %w", y.path, err)
	}
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.watcher == nil {
		w, err := newFileWatcher(y.path)
		if err != nil {
			return err
		}
		y.watcher = w
		go w.run(ctx)
	}
	y.watcher.onChange(callback)
	return nil
}

func (y *yamlProvider) Type() SourceType {
	return SourceYAML
}

func (y *yamlProvider) Close() error {
	var err error
	y.closeOnce.Do(func() {
		y.mu.Lock()
		defer y.mu.Unlock()
		if y.watcher != nil {
			err = y.watcher.close()
			y.watcher = nil
		}
	})
	return err
}

// defaultProvider exposes the registry defaults as a source.
type defaultProvider struct {
	defaults map[string]any
}

func NewDefaultProvider() Source {
	return &defaultProvider{
		defaults: createDefaultMap(),
	}
}

func (d *defaultProvider) Load() (map[string]any, error) {
	return d.defaults, nil
}

func (d *defaultProvider) Watch(_ context.Context, _ func()) error {
	return nil
}

func (d *defaultProvider) Type() SourceType {
	return SourceDefault
}

func (d *defaultProvider) Close() error {
	return nil
}

// createDefaultMap builds a nested map from the registry defaults.
func createDefaultMap() map[string]any {
	result := make(map[string]any)
	for _, field := range definition.CreateRegistry().Fields() {
		_ = setNested(result, field.Path, field.Default)
	}
	return result
}
