package afsk

import (
	"cmp"
	"fmt"
	"runtime/debug"
	"strconv"
)

// SAMOYED_AFSK_VERSION is filled in by the linker:
//
//	go build -ldflags "-X github.com/doismellburning/samoyed-afsk/src.SAMOYED_AFSK_VERSION=0.1.0"
var SAMOYED_AFSK_VERSION string

func buildSetting(bi *debug.BuildInfo, key string, fallback string) string {
	if bi == nil {
		return fallback
	}

	for _, bs := range bi.Settings {
		if bs.Key == key {
			return bs.Value
		}
	}

	return fallback
}

// versionLine is the one line --version prints for a tool.
func versionLine(tool string, bi *debug.BuildInfo) string {
	var revision = buildSetting(bi, "vcs.revision", "UNKNOWN")

	var dirty, err = strconv.ParseBool(buildSetting(bi, "vcs.modified", ""))
	switch {
	case err != nil:
		revision += "-UNKNOWNDIRTY"
	case dirty:
		revision += "-DIRTY"
	}

	return fmt.Sprintf("%s - Version %s (revision %s, built at %s)",
		tool,
		cmp.Or(SAMOYED_AFSK_VERSION, "!UNKNOWN!"),
		revision,
		buildSetting(bi, "vcs.time", "UNKNOWN"))
}

func printVersion(tool string, verbose bool) {
	var bi, _ = debug.ReadBuildInfo()

	fmt.Println(versionLine(tool, bi))

	if verbose && bi != nil {
		fmt.Printf("\nBuildInfo: %+v\n", bi)
	}
}
