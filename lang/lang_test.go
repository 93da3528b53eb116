package lang

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lang.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAndTranslate(t *testing.T) {
	path := writeCatalog(t, `
active_language: en
en:
  greeting: "Hello {name}!"
  plain: "No placeholders"
`)
	Load(path)

	assert.Equal(t, "Hello world!", T("greeting", "name", "world"))
	assert.Equal(t, "No placeholders", T("plain"))
}

func TestMissingKeyEchoes(t *testing.T) {
	Load(writeCatalog(t, "en:\n  a: b\n"))
	assert.Equal(t, "{nope}", T("nope"))
}

func TestMissingFileYieldsEmptyCatalog(t *testing.T) {
	Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Equal(t, "{any}", T("any"))
}

func TestFallbackToEnglish(t *testing.T) {
	Load(writeCatalog(t, `
active_language: fr
en:
  hello: "Hello"
`))
	assert.Equal(t, "Hello", T("hello"))
}
