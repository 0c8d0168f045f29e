package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type badReader struct{}

func (badReader) Read(_ []byte) (int, error) { return 0, errors.New("boom") }

func TestWriteFileAtomic_ReplacesContent(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(final, []byte("old"), 0o644))

	require.NoError(t, WriteFileAtomic(final+".tmp", final, strings.NewReader("new"), 0o644))

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	ok, err := FileExists(final + ".tmp")
	require.NoError(t, err)
	assert.False(t, ok, "tmp file must be gone after rename")
}

func TestWriteFileAtomic_KeepsOldContentOnError(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(final, []byte("old"), 0o644))

	err := WriteFileAtomic(final+".tmp", final, badReader{}, 0o644)
	require.Error(t, err)

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
}

func TestCreateFileAndFileReader_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	in := map[string]string{"a": "b"}
	require.NoError(t, CreateFile(path, in, FileTypeJSON, 0o644))

	var out map[string]string
	require.NoError(t, FileReader(path, FileTypeJSON, &out))
	assert.Equal(t, in, out)
}

func TestFileReader_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	var out map[string]any
	assert.Error(t, FileReader(path, FileTypeYAML, &out))
}

func TestFileExists_Directory(t *testing.T) {
	_, err := FileExists(t.TempDir())
	assert.Error(t, err)
}

func TestParseHTTPURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"https", "https://example.org/report.pdf", false},
		{"http", "http://example.org", false},
		{"ftp", "ftp://example.org", true},
		{"no host", "https://", true},
		{"relative", "/only/path", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHTTPURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHashReader_MatchesSHA256Hex(t *testing.T) {
	h, n, err := HashReader(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, SHA256Hex([]byte("hello")), h)
	assert.Equal(t, "2cf24dba5fb0", ShortHash(h))
}

func TestGetMaxWidth(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		expected int
	}{
		{"Empty", []string{}, 0},
		{"Multiple Lines", []string{"Hello", "World", "Testing"}, 7},
		{"With ANSI", []string{"\033[31mRed\033[0m", "\033[32mGreen\033[0m"}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetMaxWidth(tt.lines))
		})
	}
}
