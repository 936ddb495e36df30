// SPDX-License-Identifier: MIT
//
// Package build exposes the binary's name, build time, commit and version.
// Release builds inject them with -ldflags; development builds fall back to
// the module information the Go toolchain embeds (runtime/debug).
//
//	go build -ldflags "-X rtspectrum/pkg/build.buildName=rtspectrum \
//	    -X rtspectrum/pkg/build.buildVersion=v0.3.0 ..."
package build

import (
	"fmt"
	"path"
	"runtime/debug"
)

const unknown = "unknown"

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

func (f ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    unknown,
		Time:    unknown,
		Commit:  unknown,
		Version: unknown,
	}
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Initialize copies the ldflags variables into the build info. When none of
// them is set the binary is a development build and the embedded module
// information is used instead. A partially injected set is an error, since it
// means the release script is broken.
func Initialize() error {
	if buildName == "" && buildTime == "" && buildCommit == "" && buildVersion == "" {
		fromBuildInfo(buildFlags)
		return nil
	}

	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

func fromBuildInfo(dst *ldFlags) {
	info, ok := readBuildInfo()
	if !ok {
		return
	}

	if info.Main.Path != "" {
		dst.Name = path.Base(info.Main.Path)
	}
	if info.Main.Version != "" {
		dst.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			dst.Commit = s.Value
		case "vcs.time":
			dst.Time = s.Value
		}
	}
}

// GetBuildFlags returns the build information. Call Initialize first.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
