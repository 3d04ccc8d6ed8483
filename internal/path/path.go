// Package path resolves the on-disk locations sdkget writes to: the
// default staging directory for in-flight archive downloads and the
// destination tree an InstallPlan extracts into.
package path

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultCacheSuffix = ".cache/sdkget"

// Paths holds the filesystem locations one sdkget invocation uses,
// resolved once at startup from Settings plus the process environment.
type Paths struct {
	stagingDir string
	outputDir  string
}

// Option configures Paths.
type Option func(*Paths)

// WithStagingDir overrides the staging directory (Settings'
// archive_download_location, expanded).
func WithStagingDir(dir string) Option {
	return func(p *Paths) {
		if dir != "" {
			p.stagingDir = dir
		}
	}
}

// WithOutputDir overrides the destination directory the InstallPlan
// extracts into (the CLI's --outputdir, defaulting to the working
// directory per upstream convention).
func WithOutputDir(dir string) Option {
	return func(p *Paths) {
		if dir != "" {
			p.outputDir = dir
		}
	}
}

// New builds Paths, defaulting the staging directory to
// ~/.cache/sdkget/staging and the output directory to the current working
// directory.
func New(opts ...Option) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	p := &Paths{
		stagingDir: filepath.Join(home, defaultCacheSuffix, "staging"),
		outputDir:  cwd,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// StagingDir returns the directory archives are downloaded to before
// verification and extraction.
func (p *Paths) StagingDir() string {
	return p.stagingDir
}

// OutputDir returns the destination directory an InstallPlan extracts into.
func (p *Paths) OutputDir() string {
	return p.outputDir
}

// StagingLockFile returns the advisory lock file path guarding the staging
// directory against two concurrent sdkget invocations racing on the same
// temp files.
func (p *Paths) StagingLockFile() string {
	return filepath.Join(p.stagingDir, ".lock")
}

// EnsureDir creates a directory (and its parents) if it doesn't exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// Expand expands a leading "~" or "~/" to the user's home directory.
func Expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" {
		return os.UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}
