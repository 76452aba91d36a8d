package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texlate/texlate/pkg/config"
	"github.com/texlate/texlate/pkg/version"
)

// execute runs the root command with an isolated config and env file.
func execute(t *testing.T, configFile string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	if configFile == "" {
		configFile = filepath.Join(dir, "missing.yaml")
	}
	args = append(args,
		"--config", configFile,
		"--env-file", filepath.Join(dir, "missing.env"),
	)
	var out bytes.Buffer
	cmd := RootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	cmd.SetContext(t.Context())
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "texlate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type shownConfig struct {
	Config config.Config `json:"config"`
}

func TestConfigShow(t *testing.T) {
	t.Run("Should layer yaml under env under flags", func(t *testing.T) {
		path := writeConfig(t, "translation:\n  chunk_budget: 123\nslots:\n  limit: 4\n  poll_interval: 250ms\n")
		t.Setenv("SLOTS_LIMIT", "3")

		out, err := execute(t, path, "config", "show", "--format", "json", "--slots-limit", "5")
		require.NoError(t, err)

		var shown shownConfig
		require.NoError(t, json.Unmarshal([]byte(out), &shown))
		assert.Equal(t, 123, shown.Config.Translation.ChunkBudget)
		assert.Equal(t, 5, shown.Config.Slots.Limit)
		assert.Equal(t, "250ms", shown.Config.Slots.PollInterval.String())
	})

	t.Run("Should let env override yaml", func(t *testing.T) {
		path := writeConfig(t, "slots:\n  limit: 4\n")
		t.Setenv("SLOTS_LIMIT", "3")

		out, err := execute(t, path, "config", "show", "--format", "json")
		require.NoError(t, err)

		var shown shownConfig
		require.NoError(t, json.Unmarshal([]byte(out), &shown))
		assert.Equal(t, 3, shown.Config.Slots.Limit)
	})

	t.Run("Should redact the api key in every format", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-secret")
		for _, format := range []string{"json", "yaml", "table"} {
			out, err := execute(t, "", "config", "show", "--format", format)
			require.NoError(t, err, format)
			assert.NotContains(t, out, "sk-secret", format)
			assert.Contains(t, out, "[REDACTED]", format)
		}
	})

	t.Run("Should list dotted keys with their source", func(t *testing.T) {
		out, err := execute(t, "", "config", "show", "--sources", "--chunk-budget", "300")
		require.NoError(t, err)
		assert.Contains(t, out, "KEY")
		assert.Contains(t, out, "SOURCE")
		assert.Regexp(t, `translation\.chunk_budget\s+300\s+cli`, out)
		assert.Regexp(t, `slots\.limit\s+2\s+default`, out)
	})

	t.Run("Should reject an unknown format", func(t *testing.T) {
		_, err := execute(t, "", "config", "show", "--format", "xml")
		assert.ErrorContains(t, err, "unsupported format")
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("Should accept the defaults", func(t *testing.T) {
		out, err := execute(t, "", "config", "validate")
		require.NoError(t, err)
		assert.Contains(t, out, "configuration is valid")
	})

	t.Run("Should fail loading an out of range limit", func(t *testing.T) {
		path := writeConfig(t, "slots:\n  limit: 0\n")
		_, err := execute(t, path, "config", "validate")
		assert.Error(t, err)
	})
}

func TestVersionCmd(t *testing.T) {
	t.Run("Should print build info as JSON", func(t *testing.T) {
		out, err := execute(t, "", "version", "--json")
		require.NoError(t, err)

		var info version.Info
		require.NoError(t, json.Unmarshal([]byte(out), &info))
		assert.Equal(t, version.Get(), info)
	})

	t.Run("Should print a single line by default", func(t *testing.T) {
		out, err := execute(t, "", "version")
		require.NoError(t, err)
		assert.Contains(t, out, "texlate "+version.Get().Version)
	})
}

func TestTranslateCmd(t *testing.T) {
	t.Run("Should require exactly one document id", func(t *testing.T) {
		_, err := execute(t, "", "translate")
		assert.ErrorContains(t, err, "accepts 1 arg")
	})

	t.Run("Should reject a malformed document id before starting", func(t *testing.T) {
		_, err := execute(t, "", "translate", "../etc/passwd")
		assert.ErrorContains(t, err, "invalid document id")
	})
}

func TestSlotsCmd(t *testing.T) {
	t.Run("Should read an idle embedded counter", func(t *testing.T) {
		out, err := execute(t, "", "slots", "--format", "json", "--mode", "standalone", "--slots-limit", "3")
		require.NoError(t, err)

		var status SlotsStatus
		require.NoError(t, json.Unmarshal([]byte(out), &status))
		assert.Equal(t, SlotsStatus{
			Mode:      config.ModeStandalone,
			Key:       "texlate:slots:running",
			Limit:     3,
			InUse:     0,
			Available: 3,
		}, status)
	})

	t.Run("Should print a readable summary", func(t *testing.T) {
		out, err := execute(t, "", "slots", "--mode", "standalone")
		require.NoError(t, err)
		assert.Contains(t, out, "0/2 in use (2 available)")
	})
}
