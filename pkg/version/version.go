package version

import (
	"runtime"
	"runtime/debug"
)

// Build variables injected with ldflags:
// -X 'github.com/texlate/texlate/pkg/version.Version=v1.0.0'
// -X 'github.com/texlate/texlate/pkg/version.CommitHash=abc123'
// -X 'github.com/texlate/texlate/pkg/version.BuildDate=2024-01-01T00:00:00Z'
var (
	Version    = "unknown"
	CommitHash = "unknown"
	// BuildDate is RFC3339.
	BuildDate = "unknown"
)

// Info is the build information reported by `texlate version` and /health.
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
}

// Get returns the build information, falling back to the module build info
// for values that were not injected.
func Get() Info {
	info := Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildDate:  BuildDate,
		GoVersion:  runtime.Version(),
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "unknown" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.CommitHash == "unknown":
			info.CommitHash = s.Value
		case s.Key == "vcs.time" && info.BuildDate == "unknown":
			info.BuildDate = s.Value
		}
	}
	return info
}
