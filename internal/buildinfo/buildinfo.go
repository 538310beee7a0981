// Package buildinfo carries version data stamped in with -ldflags.
package buildinfo

import "time"

var (
	Version    = "dev"
	CommitHash string
	CommitTime string
	BuildTime  string
)

var startedAt = time.Now().UTC()

// Info is the build and process summary served by /api/status.
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash,omitempty"`
	CommitTime string `json:"commit_time,omitempty"`
	BuildTime  string `json:"build_time,omitempty"`
	StartedAt  string `json:"started_at"`
	Uptime     string `json:"uptime"`
}

// Current returns the running binary's Info.
func Current() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		CommitTime: CommitTime,
		BuildTime:  BuildTime,
		StartedAt:  startedAt.Format(time.RFC3339),
		Uptime:     time.Since(startedAt).Round(time.Second).String(),
	}
}
