// Package buildinfo reports which build of mb4convert is running.
//
// Release builds inject version, commit and date with -ldflags and pass
// them to Set from main. Development builds fall back to the VCS settings
// the Go toolchain embeds, read through runtime/debug.ReadBuildInfo.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
)

const (
	devVersion = "dev"
	unknown    = "unknown"
)

// Info holds the resolved build metadata.
type Info struct {
	Version  string // e.g. "v1.2.3", or "dev"
	Commit   string // full git commit hash, or "unknown"
	Date     string // RFC3339 build or commit date, or "unknown"
	Modified bool   // the working tree had uncommitted changes
	GoVer    string
}

// ShortCommit returns the first 12 characters of the commit hash.
func (i Info) ShortCommit() string {
	if len(i.Commit) > 12 {
		return i.Commit[:12]
	}
	return i.Commit
}

// String renders the info the way the version command prints it.
func (i Info) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "mb4convert %s\n", i.Version)
	fmt.Fprintf(&sb, "commit: %s", i.ShortCommit())
	if i.Modified {
		sb.WriteString(" (modified)")
	}
	fmt.Fprintf(&sb, "\nbuilt: %s\n", i.Date)
	if i.GoVer != "" {
		fmt.Fprintf(&sb, "go: %s\n", i.GoVer)
	}
	return sb.String()
}

var (
	ldflagsVersion string
	ldflagsCommit  string
	ldflagsDate    string

	once   sync.Once
	cached Info
)

// Set stores the values injected with -ldflags, for example:
//
//	go build -ldflags "-X main.version=v1.2.3 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/mb4convert
//
// It must be called before the first Get.
func Set(version, commit, date string) {
	ldflagsVersion = version
	ldflagsCommit = commit
	ldflagsDate = date
}

// Get resolves the build info once and caches it.
func Get() Info {
	once.Do(func() {
		bi, _ := debug.ReadBuildInfo()
		cached = resolve(bi)
	})
	return cached
}

func resolve(bi *debug.BuildInfo) Info {
	info := Info{
		Version: devVersion,
		Commit:  unknown,
		Date:    unknown,
	}
	if bi != nil {
		info.GoVer = bi.GoVersion
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.Commit = s.Value
			case "vcs.time":
				info.Date = s.Value
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
		if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
	}
	// Release pipeline values win.
	if ldflagsVersion != "" {
		info.Version = ldflagsVersion
	}
	if ldflagsCommit != "" {
		info.Commit = ldflagsCommit
	}
	if ldflagsDate != "" {
		info.Date = ldflagsDate
	}
	return info
}
