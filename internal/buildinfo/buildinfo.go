package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set with -ldflags "-X merklefetch/internal/buildinfo.Version=..."
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
	Go      = runtime.Version()
	OS      = runtime.GOOS
	Arch    = runtime.GOARCH
)

func init() {
	if Commit != "" {
		return
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			Commit = s.Value
		case "vcs.time":
			if Date == "" {
				Date = s.Value
			}
		}
	}
}

func short(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

// String renders a single --version line.
func String(name string) string {
	s := fmt.Sprintf("%s %s", name, Version)
	if Commit != "" {
		s += " (" + short(Commit)
		if Date != "" {
			s += " " + Date
		}
		s += ")"
	}
	return fmt.Sprintf("%s %s %s/%s", s, Go, OS, Arch)
}
