// Package version exposes the build metadata stamped into the leaderboard
// binaries through -ldflags, for example:
//
//	-X leaderboard/internal/version.Version=v1.4.0
//	-X leaderboard/internal/version.GitCommit=$(git rev-parse --short HEAD)
//	-X leaderboard/internal/version.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)
package version

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
)

const unknown = "unknown"

// Stamped at link time. Unstamped builds report "unknown".
var (
	Version   = unknown
	BuildDate = unknown
	GitCommit = unknown
)

// Info describes one running instance of a leaderboard binary.
type Info struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildDate  string `json:"build_date"`
	InstanceID string `json:"instance_id"`
	Hostname   string `json:"hostname"`
}

var current = sync.OnceValue(func() Info {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = unknown
	}
	return Info{
		Version:    Version,
		GitCommit:  GitCommit,
		BuildDate:  BuildDate,
		InstanceID: uuid.NewString(),
		Hostname:   host,
	}
})

// GetInfo returns the metadata of this process. The instance ID is generated
// on first use and stays fixed for the process lifetime.
func GetInfo() Info {
	return current()
}

// SemVer parses Version as a semantic version. A leading "v" is accepted.
func (i Info) SemVer() (*semver.Version, error) {
	return semver.NewVersion(i.Version)
}

// DisplayVersion returns the normalized semantic version ("1.2.3"), or the raw
// Version when it is a commit hash or "unknown".
func (i Info) DisplayVersion() string {
	v, err := i.SemVer()
	if err != nil {
		return i.Version
	}
	return v.String()
}

// IsRelease reports whether Version is a semantic version without a prerelease tag.
func (i Info) IsRelease() bool {
	v, err := i.SemVer()
	return err == nil && v.Prerelease() == ""
}

// UserAgent builds an HTTP User-Agent for the named leaderboard component.
func (i Info) UserAgent(component string) string {
	return fmt.Sprintf("leaderboard-%s/%s", component, i.DisplayVersion())
}

// LogAttrs returns the fields attached to every log record. Empty fields are skipped.
func (i Info) LogAttrs() []any {
	fields := []struct{ key, value string }{
		{"version", i.DisplayVersion()},
		{"git_commit", i.GitCommit},
		{"build_date", i.BuildDate},
		{"instance_id", i.InstanceID},
	}
	attrs := make([]any, 0, len(fields))
	for _, f := range fields {
		if f.value != "" {
			attrs = append(attrs, slog.String(f.key, f.value))
		}
	}
	return attrs
}

// String formats version info for CLI display.
func (i Info) String() string {
	return fmt.Sprintf("leaderboard %s (commit %s, built %s)", i.DisplayVersion(), i.GitCommit, i.BuildDate)
}
