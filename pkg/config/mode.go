package config

import "strings"

// Deployment modes
const (
	ModeStandalone  = "standalone"
	ModeDistributed = "distributed"
)

// NormalizeMode trims spaces and lowercases the provided mode string
func NormalizeMode(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ResolveMode picks the component mode, then the global mode, then standalone.
func ResolveMode(cfg *Config, componentMode string) string {
	if m := NormalizeMode(componentMode); m != "" {
		return m
	}
	if cfg != nil {
		if m := NormalizeMode(cfg.Mode); m != "" {
			return m
		}
	}
	return ModeStandalone
}

// EffectiveRedisMode returns the resolved mode of the counter store.
func (cfg *Config) EffectiveRedisMode() string {
	return ResolveMode(cfg, cfg.Redis.Mode)
}
