package uploads

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStoreCreatesDir(t *testing.T) {
	dir := t.TempDir() + "/nested/uploads"

	store, err := NewStore(dir, "http://localhost:8080/")
	require.NoError(t, err)
	require.Equal(t, dir, store.Dir())
	require.DirExists(t, dir)
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":             "report.pdf",
		"../../etc/passwd":       "passwd",
		"..\\..\\etc\\passwd":    "passwd",
		"my file (final).png":    "my_file__final_.png",
		"..":                     "",
		"UPPER-case_ok.123":      "UPPER-case_ok.123",
		"weird\x00chars\ttab":    "weird_chars_tab",
	}
	for input, want := range cases {
		require.Equal(t, want, sanitizeFilename(input), "input %q", input)
	}
}
