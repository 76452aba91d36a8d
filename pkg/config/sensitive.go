package config

import "encoding/json"

const redacted = "[REDACTED]"

// SensitiveString holds a secret that never leaves the process in clear text
// through fmt, JSON or YAML output.
type SensitiveString string

// String returns the redacted form; use Value for the secret itself.
func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// Value returns the secret.
func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SensitiveString) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SensitiveString(raw)
	return nil
}

// MarshalYAML keeps secrets out of "config show" output.
func (s SensitiveString) MarshalYAML() (any, error) {
	return s.String(), nil
}
