package extract_test

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdkget/sdkget/internal/extract"
)

func TestDetectArchiveType(t *testing.T) {
	assert.Equal(t, extract.ArchiveTypeTarGz, extract.DetectArchiveType("qtbase.tar.gz"))
	assert.Equal(t, extract.ArchiveTypeTarGz, extract.DetectArchiveType("qtbase.tgz"))
	assert.Equal(t, extract.ArchiveTypeTarXz, extract.DetectArchiveType("qtbase.tar.xz"))
	assert.Equal(t, extract.ArchiveTypeZip, extract.DetectArchiveType("qtbase.zip"))
	assert.Equal(t, extract.ArchiveTypeSevenZip, extract.DetectArchiveType("qtbase.7z"))
	assert.Equal(t, extract.ArchiveType(""), extract.DetectArchiveType("qtbase"))
}

func TestNewRejectsSevenZipWithoutExternalCommand(t *testing.T) {
	_, err := extract.New(extract.ArchiveTypeSevenZip, "")
	assert.Error(t, err)
}

func writeTarGz(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())

	path := filepath.Join(t.TempDir(), "archive.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestTarGzExtractRoundTrip(t *testing.T) {
	archivePath := writeTarGz(t, map[string]string{
		"bin/qmake":   "binary-content",
		"lib/libQt.so": "lib-content",
	})
	destDir := t.TempDir()

	e, err := extract.New(extract.ArchiveTypeTarGz, "")
	require.NoError(t, err)
	require.NoError(t, e.Extract(context.Background(), archivePath, destDir))

	content, err := os.ReadFile(filepath.Join(destDir, "bin/qmake"))
	require.NoError(t, err)
	assert.Equal(t, "binary-content", string(content))
}

func TestTarGzExtractRejectsPathTraversal(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../../etc/passwd", Mode: 0o644, Size: 4}))
	_, err := tw.Write([]byte("evil"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())

	path := filepath.Join(t.TempDir(), "evil.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	e, err := extract.New(extract.ArchiveTypeTarGz, "")
	require.NoError(t, err)
	err = e.Extract(context.Background(), path, t.TempDir())
	assert.Error(t, err)
}

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "archive.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestZipExtractSkipsMacOSMetadata(t *testing.T) {
	archivePath := writeZip(t, map[string]string{
		"bin/qmake":        "binary-content",
		"__MACOSX/bin/._x": "metadata",
	})
	destDir := t.TempDir()

	e, err := extract.New(extract.ArchiveTypeZip, "")
	require.NoError(t, err)
	require.NoError(t, e.Extract(context.Background(), archivePath, destDir))

	_, err = os.Stat(filepath.Join(destDir, "__MACOSX"))
	assert.True(t, os.IsNotExist(err))
}

func TestExternalCommandExtractorSubstitutesPlaceholders(t *testing.T) {
	destDir := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "archive.7z")
	require.NoError(t, os.WriteFile(archivePath, []byte("fake-7z"), 0o644))

	e, err := extract.New(extract.ArchiveTypeSevenZip, "cp {archive} "+filepath.Join(destDir, "copied.7z"))
	require.NoError(t, err)
	require.NoError(t, e.Extract(context.Background(), archivePath, destDir))

	_, err = os.Stat(filepath.Join(destDir, "copied.7z"))
	assert.NoError(t, err)
}
