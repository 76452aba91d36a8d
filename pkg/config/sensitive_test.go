package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSensitiveString(t *testing.T) {
	t.Run("Should redact non-empty values when formatted", func(t *testing.T) {
		s := SensitiveString("sk-live-123")
		assert.Equal(t, "[REDACTED]", s.String())
		assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
		assert.Equal(t, "sk-live-123", s.Value())
	})

	t.Run("Should keep empty values empty", func(t *testing.T) {
		assert.Equal(t, "", SensitiveString("").String())
	})

	t.Run("Should marshal as redacted JSON and YAML", func(t *testing.T) {
		cfg := TranslationConfig{Model: "gpt-4o", APIKey: "sk-live-123"}

		data, err := json.Marshal(struct {
			APIKey SensitiveString `json:"api_key"`
		}{cfg.APIKey})
		require.NoError(t, err)
		assert.JSONEq(t, `{"api_key":"[REDACTED]"}`, string(data))

		out, err := yaml.Marshal(map[string]any{"api_key": cfg.APIKey})
		require.NoError(t, err)
		assert.Contains(t, string(out), "[REDACTED]")
		assert.NotContains(t, string(out), "sk-live-123")
	})

	t.Run("Should unmarshal JSON into the clear value", func(t *testing.T) {
		var s SensitiveString
		require.NoError(t, json.Unmarshal([]byte(`"secret-value"`), &s))
		assert.Equal(t, "secret-value", s.Value())
	})
}
