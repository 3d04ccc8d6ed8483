package path_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdkget/sdkget/internal/path"
)

func TestNewDefaults(t *testing.T) {
	p, err := path.New()
	require.NoError(t, err)
	assert.Contains(t, p.StagingDir(), ".cache/sdkget/staging")
	assert.NotEmpty(t, p.OutputDir())
}

func TestWithOutputDirOverride(t *testing.T) {
	p, err := path.New(path.WithOutputDir("/tmp/qt-install"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/qt-install", p.OutputDir())
}

func TestStagingLockFile(t *testing.T) {
	p, err := path.New(path.WithStagingDir("/tmp/staging"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/staging", ".lock"), p.StagingLockFile())
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded, err := path.Expand("~/archives")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "archives"), expanded)

	expanded, err = path.Expand("/absolute/path")
	require.NoError(t, err)
	assert.Equal(t, "/absolute/path", expanded)
}
