// SPDX-License-Identifier: MIT
//
// Package build holds the program's build information. Release builds set it
// with linker flags:
//
//	go build -ldflags "-X nowplaying/pkg/build.buildVersion=v0.3.0 \
//	    -X nowplaying/pkg/build.buildCommit=$(git rev-parse HEAD) \
//	    -X nowplaying/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds fall back to the module and VCS data embedded by the Go
// toolchain.
package build

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

const (
	defaultName        = "nowplaying"
	defaultDescription = "Routes a media player through a virtual cable and visualizes what it plays"
	unknown            = "unknown"
)

// Set by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var (
	info = Info{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        unknown,
		Commit:      unknown,
		Version:     unknown,
	}
	readBuildInfo = debug.ReadBuildInfo
)

// Initialize copies the linker-provided values into Info. Values that were
// not provided are filled from the embedded build info where possible, and
// the error lists the flags that were missing. The error is informational;
// Get always returns usable values.
func Initialize() error {
	var missing []error
	set := func(dst *string, val, flag string) {
		if val == "" {
			missing = append(missing, fmt.Errorf("%s is required", flag))
			return
		}
		*dst = val
	}
	set(&info.Name, buildName, "BuildName")
	set(&info.Time, buildTime, "BuildTime")
	set(&info.Commit, buildCommit, "BuildCommit")
	set(&info.Version, buildVersion, "BuildVersion")

	if len(missing) > 0 {
		fillFromBuildInfo(&info)
	}
	return errors.Join(missing...)
}

func fillFromBuildInfo(i *Info) {
	bi, ok := readBuildInfo()
	if !ok {
		return
	}
	if i.Version == unknown && bi.Main.Version != "" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && i.Commit == unknown:
			i.Commit = s.Value
		case s.Key == "vcs.time" && i.Time == unknown:
			i.Time = s.Value
		}
	}
}

// Get returns the build information.
func Get() Info {
	return info
}
