package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name, in, want string
	}{
		{"curly double quotes", "“quoted”", "'quoted'"},
		{"curly single quotes", "it’s ‘fine’", "it's 'fine'"},
		{"ellipsis", "wait…", "wait..."},
		{"em dash", "a—b", "a-b"},
		{"non-breaking space", "a\u00a0b", "a b"},
		{"untouched", "plain ascii - text...", "plain ascii - text..."},
		{"empty", "", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func FuzzNormalize(f *testing.F) {
	for _, seed := range []string{"“a”", "b…", "c—d", "e\u00a0f", "plain"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		out := Normalize(in)
		if strings.ContainsAny(out, "“”‘’…—\u00a0") {
			t.Errorf("Normalize(%q) = %q still contains mapped characters", in, out)
		}
		if again := Normalize(out); again != out {
			t.Errorf("Normalize is not idempotent: %q -> %q", out, again)
		}
	})
}

func TestHasExcludedPrefix(t *testing.T) {
	t.Parallel()

	require.True(t, HasExcludedPrefix("Written By Jane"))
	require.True(t, HasExcludedPrefix("-Michael Greger M.D."))
	require.True(t, HasExcludedPrefix("For more on this topic"))
	require.False(t, HasExcludedPrefix("The study found"))
	require.False(t, HasExcludedPrefix(" Written By Jane"), "prefix match is exact")
}
