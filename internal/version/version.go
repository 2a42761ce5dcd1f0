// Package version reports build information for the pathwatch binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Version values are set at build time using -ldflags.
var Version = "dev"
var Built = ""
var GitCommit = ""

type Info struct {
	Version   string `json:"version"`
	Built     string `json:"built,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

var readBuildInfo = debug.ReadBuildInfo

// Get returns the linked values, filling the commit from the module's VCS
// stamp when -ldflags did not set it.
func Get() Info {
	info := Info{
		Version:   strings.TrimSpace(Version),
		Built:     strings.TrimSpace(Built),
		GitCommit: strings.TrimSpace(GitCommit),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	if build, ok := readBuildInfo(); ok {
		for _, setting := range build.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = setting.Value
				}
			case "vcs.time":
				if info.Built == "" {
					info.Built = setting.Value
				}
			}
		}
	}
	return info
}

// String renders the one-line form printed by `pathwatch version`.
func (i Info) String() string {
	var b strings.Builder
	if i.Version == "dev" {
		b.WriteString("pathwatch dev")
	} else {
		fmt.Fprintf(&b, "pathwatch version %s", i.Version)
	}
	if i.GitCommit != "" {
		commit := i.GitCommit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		fmt.Fprintf(&b, " (%s)", commit)
	}
	fmt.Fprintf(&b, " %s %s", i.GoVersion, i.Platform)
	return b.String()
}
