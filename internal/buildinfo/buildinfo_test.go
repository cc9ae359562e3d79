package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func stamp(t *testing.T, version, commit, date string) {
	t.Helper()
	v, c, d := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })
	Version, Commit, Date = version, commit, date
}

func TestShortPrefersVersion(t *testing.T) {
	stamp(t, "v1.2.0", "abc123", "unknown")
	require.Equal(t, "v1.2.0", Short())
	require.Equal(t, "v1.2.0 abc123", String())
}

func TestShortFallsBackToCommit(t *testing.T) {
	stamp(t, "dev", "abc123", "2026-10-18")
	require.Equal(t, "abc123", Short())
	require.Equal(t, "abc123 2026-10-18", String())
}

func TestUnstamped(t *testing.T) {
	stamp(t, "dev", "unknown", "unknown")
	require.Equal(t, "dev", Short())
	require.Equal(t, "dev", String())
}
