package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spotivault/spotivault/internal/errors"
)

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string]string, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(content)
	}
	return out
}

func TestStreamDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp3"), []byte("audio-a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.flac"), []byte("audio-b"), 0644))

	var buf bytes.Buffer
	require.NoError(t, StreamDir(&buf, dir))

	files := readArchive(t, buf.Bytes())
	assert.Equal(t, map[string]string{
		"a.mp3":  "audio-a",
		"b.flac": "audio-b",
	}, files)
}

func TestStreamDirSkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "song.mp3"), []byte("audio"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "hidden.mp3"), []byte("nope"), 0644))

	var buf bytes.Buffer
	require.NoError(t, StreamDir(&buf, dir))

	files := readArchive(t, buf.Bytes())
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"song.mp3"}, names)
}

func TestStreamDirEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, StreamDir(&buf, t.TempDir()))

	files := readArchive(t, buf.Bytes())
	assert.Empty(t, files)
}

func TestStreamDirMissing(t *testing.T) {
	var buf bytes.Buffer
	err := StreamDir(&buf, filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrTypeFileSystem, apperrors.GetErrorType(err))
}
