// Package buildinfo carries the simulator build identity, stamped by the
// linker:
//
//	go build -ldflags "-X libtock/internal/buildinfo.Version=v0.3.0 -X libtock/internal/buildinfo.Commit=$(git rev-parse --short HEAD)"
package buildinfo

import "strings"

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func stamped(s, unset string) bool { return s != "" && s != unset }

// Short returns the release name if stamped, else the commit, else "dev".
func Short() string {
	switch {
	case stamped(Version, "dev"):
		return Version
	case stamped(Commit, "unknown"):
		return Commit
	}
	return "dev"
}

// String returns every stamped field, for -version.
func String() string {
	parts := []string{Short()}
	if stamped(Commit, "unknown") && Commit != parts[0] {
		parts = append(parts, Commit)
	}
	if stamped(Date, "unknown") {
		parts = append(parts, Date)
	}
	return strings.Join(parts, " ")
}
