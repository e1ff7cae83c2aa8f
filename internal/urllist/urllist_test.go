package urllist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/law-makers/psibatch/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func urls(res Result) []string {
	out := make([]string, 0, len(res.URLs))
	for _, u := range res.URLs {
		out = append(out, u.URL)
	}
	return out
}

func TestLoad_Example(t *testing.T) {
	in := strings.Join([]string{"# comment", "", "https://a.com", "not-a-url", "http://b.com"}, "\n")

	res, err := Load(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.com", "http://b.com"}, urls(res))
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, models.DiagInvalidURL, res.Diagnostics[0].Kind)
	assert.Equal(t, 4, res.Diagnostics[0].Line)
	assert.Equal(t, "not-a-url", res.Diagnostics[0].Content)
}

func TestLoad_CommentsAndWhitespace(t *testing.T) {
	in := "\ufeffhttps://first.com\n   # indented comment\n\t\n  https://second.com/page  \r\nftp://files.example.com\n"

	res, err := Load(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://first.com", "https://second.com/page"}, urls(res))
	assert.Equal(t, 1, res.URLs[0].Line)
	assert.Equal(t, 4, res.URLs[1].Line)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, 5, res.Diagnostics[0].Line)
}

func TestLoad_DuplicatesFirstWins(t *testing.T) {
	in := "https://a.com/x\nhttps://b.com\nHTTPS://A.COM/x\nhttps://a.com/x#frag\nhttps://a.com/X\n"

	res, err := Load(strings.NewReader(in))
	require.NoError(t, err)

	// Paths are case-sensitive, hosts are not.
	assert.Equal(t, []string{"https://a.com/x", "https://b.com", "https://a.com/X"}, urls(res))
	assert.Equal(t, 1, res.URLs[0].Line)

	require.Len(t, res.Diagnostics, 2)
	for _, d := range res.Diagnostics {
		assert.Equal(t, models.DiagDuplicateURL, d.Kind)
		assert.Contains(t, d.Message, "line 1")
	}
	assert.Equal(t, 3, res.Diagnostics[0].Line)
	assert.Equal(t, 4, res.Diagnostics[1].Line)
}

func TestEntries(t *testing.T) {
	entries, err := Entries(strings.NewReader("# c\n\nhttps://a.com\n"))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].IsComment)
	assert.True(t, entries[1].IsBlank)
	assert.Equal(t, "https://a.com", entries[2].Value)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://a.com\n"), 0o644))

	res, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com"}, urls(res))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
