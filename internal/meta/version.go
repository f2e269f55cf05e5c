// Package meta carries build information stamped in by the linker.
package meta

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// ProtocolName is announced by the relay and the version command.
const ProtocolName = "TESP"

// Set with -ldflags "-X github.com/pacoapp/tesp/internal/meta.Version=..."
var (
	Version      string
	Build        string
	Branch       string
	BuildTimeUTC string
	GoTag        string
)

// Info describes the binary.
type Info struct {
	Version   string `json:"version"`
	Build     string `json:"build,omitempty"`
	Branch    string `json:"branch,omitempty"`
	BuildTime string `json:"buildTime,omitempty"`
	Platform  string `json:"platform"`
	GoVersion string `json:"goVersion"`
	GoTag     string `json:"goTag,omitempty"`
	Protocol  string `json:"protocol"`
}

// GetInfo returns the linker stamped build information. Binaries built with
// plain `go build` fall back to the VCS settings Go embeds.
func GetInfo() Info {
	info := Info{
		Version:   Version,
		Build:     Build,
		Branch:    Branch,
		BuildTime: BuildTimeUTC,
		Platform:  fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH),
		GoVersion: runtime.Version(),
		GoTag:     GoTag,
		Protocol:  ProtocolName,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && info.Build == "":
				info.Build = s.Value
			case s.Key == "vcs.time" && info.BuildTime == "":
				info.BuildTime = s.Value
			}
		}
	}

	if info.Version == "" {
		info.Version = "dev"
	}

	return info
}

// String is the one line form printed by `tesp version`.
func (i Info) String() string {
	return fmt.Sprintf("tesp %s (%s %s) %s %s, protocol %s",
		i.Version, i.Branch, i.Build, i.GoVersion, i.Platform, i.Protocol)
}
