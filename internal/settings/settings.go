// Package settings holds the process-wide, immutable configuration every
// other component reads from. A Settings value is built once at startup
// (see loader.go) and never mutated afterward; components that need a
// derived value compute it rather than writing back into the struct.
package settings

import "time"

// HashAlgorithm names the digest algorithm used to verify an archive.
type HashAlgorithm string

const (
	HashSHA256 HashAlgorithm = "sha256"
	HashMD5    HashAlgorithm = "md5"
	HashSHA1   HashAlgorithm = "sha1"
)

// Settings is the enumerated, process-wide configuration described by the
// spec's §4.1. Every field here has a recognized key in the INI loader.
type Settings struct {
	Concurrency                int
	ConnectionTimeout           time.Duration
	ResponseTimeout             time.Duration
	MaxRetriesOnConnectionError int
	MaxRetriesOnChecksumError   int
	MaxRetriesToRetrieveHash    int
	RetryBackoff                time.Duration
	HashAlgorithm               HashAlgorithm

	// IgnoreHash disables checksum verification. It is a guarded key: it
	// must only ever be set true by the INI loader reading a config file
	// on disk, never by a command-line flag (see DESIGN.md open question 2).
	IgnoreHash bool

	BaseURL                 string
	ExternalExtractorCommand string

	TrustedMirrors   []string
	BlacklistMirrors []string
	FallbackMirrors  []string

	AlwaysKeepArchives      bool
	ArchiveDownloadLocation string
	MinModuleSize           int64
}

// Default returns the built-in defaults, the same values the loader falls
// back to for any key absent from the INI file.
func Default() Settings {
	return Settings{
		Concurrency:                 4,
		ConnectionTimeout:           45 * time.Second,
		ResponseTimeout:             30 * time.Second,
		MaxRetriesOnConnectionError: 5,
		MaxRetriesOnChecksumError:   3,
		MaxRetriesToRetrieveHash:    3,
		RetryBackoff:                1 * time.Second,
		HashAlgorithm:               HashSHA256,
		IgnoreHash:                  false,
		BaseURL:                     "https://download.qt.io",
		TrustedMirrors:              []string{"https://download.qt.io"},
		AlwaysKeepArchives:          false,
		ArchiveDownloadLocation:     "",
		MinModuleSize:               0,
	}
}

// IsBlacklisted reports whether host appears in BlacklistMirrors.
func (s Settings) IsBlacklisted(host string) bool {
	for _, b := range s.BlacklistMirrors {
		if b == host {
			return true
		}
	}
	return false
}
