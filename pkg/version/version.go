// Package version reports which gdsync build is running. Release builds set
// Version, GitCommit and BuildTime with -ldflags "-X"; binaries built with
// plain go install fall back to the module and VCS stamps the toolchain
// embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info is the payload of `gdsync version`
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func Get() *Info {
	info := &Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(info, bi)
	}
	return info
}

// fillFromBuildInfo replaces only the fields ldflags left at their defaults
func fillFromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" && s.Value != "" {
				info.GitCommit = s.Value
				if len(info.GitCommit) > 12 {
					info.GitCommit = info.GitCommit[:12]
				}
			}
		case "vcs.time":
			if info.BuildTime == "unknown" && s.Value != "" {
				info.BuildTime = s.Value
			}
		}
	}
}

func (i *Info) String() string {
	return fmt.Sprintf("gdsync %s (%s) built %s %s", i.Version, i.GitCommit, i.BuildTime, i.Platform)
}

func (i *Info) Short() string {
	return i.Version
}

// UserAgent identifies gdsync in the User-Agent of Drive requests
func UserAgent() string {
	return "gdsync/" + Get().Short()
}
