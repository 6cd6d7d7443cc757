package version

import (
	"runtime"
	"runtime/debug"
)

// Set at build time with -ldflags "-X github.com/MrSnakeDoc/playwatch/internal/version.Version=v0.1.0 ...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

func init() {
	if Commit != "none" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if len(s.Value) > 7 {
				Commit = s.Value[:7]
			} else {
				Commit = s.Value
			}
		case "vcs.time":
			BuildDate = s.Value
		}
	}
}
