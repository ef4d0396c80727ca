package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeStyles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "styles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRefreshAndLookup(t *testing.T) {
	path := writeStyles(t, `
styles:
  - label: Scalper
    voice: "Short, punchy, intraday levels only."
  - label: swing
    voice: "Multi-day structure."
    disclaimer: "Not financial advice."
`)
	c := New(path)
	require.NoError(t, c.Refresh())

	s := c.Lookup("SCALPER")
	require.Equal(t, "scalper", s.Label)
	require.Contains(t, s.Voice, "intraday")

	require.Equal(t, DefaultOverlay, c.Lookup("unknown"))
	require.Equal(t, DefaultOverlay, c.Lookup(""))
}

func TestVersionTokenInvalidation(t *testing.T) {
	path := writeStyles(t, "styles:\n  - label: a\n    voice: v\n")
	c := New(path)
	require.NoError(t, c.Refresh())

	labels, token := c.Labels()
	require.Len(t, labels, 1)
	require.False(t, c.Stale(token))

	// A writer refresh bumps the version; the held token is now stale.
	require.NoError(t, c.Refresh())
	require.True(t, c.Stale(token))
}

func TestRefreshFailureKeepsPreviousVersion(t *testing.T) {
	path := writeStyles(t, "styles:\n  - label: keep\n    voice: v\n")
	c := New(path)
	require.NoError(t, c.Refresh())

	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))
	require.Error(t, c.Refresh())

	// Old content still served.
	require.Equal(t, "keep", c.Lookup("keep").Label)
}

func TestVersionedCell(t *testing.T) {
	var v Versioned[int]
	_, token := v.Get()
	require.False(t, v.Stale(token))

	v.Set(42)
	require.True(t, v.Stale(token))
	val, token2 := v.Get()
	require.Equal(t, 42, val)
	require.False(t, v.Stale(token2))
	require.False(t, v.FetchedAt().IsZero())
}
