// Package checksum computes and verifies archive digests and parses the
// various text formats mirrors publish digest files in.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"

	"github.com/sdkget/sdkget/internal/sdkerr"
	"github.com/sdkget/sdkget/internal/settings"
)

// Digest is a lowercase hex-encoded hash value.
type Digest string

// Calculate computes filePath's digest under algorithm.
func Calculate(filePath string, algorithm settings.HashAlgorithm) (Digest, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", sdkerr.Wrap(sdkerr.ExtractError, "opening file for checksum", err)
	}
	defer f.Close()
	return CalculateFromReader(f, algorithm)
}

// CalculateFromReader computes r's digest under algorithm, streaming
// without buffering the whole input in memory.
func CalculateFromReader(r io.Reader, algorithm settings.HashAlgorithm) (Digest, error) {
	h, err := NewHash(algorithm)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", sdkerr.Wrap(sdkerr.NetworkError, "reading data to checksum", err)
	}
	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// Verify recomputes filePath's digest and compares it against expected.
// A mismatch is a ChecksumError, matching the pipeline's retry-next-mirror
// decision in sdkerr.Error.IsRetryable.
func Verify(filePath string, algorithm settings.HashAlgorithm, expected Digest) error {
	actual, err := Calculate(filePath, algorithm)
	if err != nil {
		return err
	}
	if !actual.Equal(expected) {
		return sdkerr.New(sdkerr.ChecksumError, "digest mismatch").WithArchive(filePath)
	}
	return nil
}

// Equal compares two digests case-insensitively, since some mirrors emit
// uppercase hex.
func (d Digest) Equal(other Digest) bool {
	return asciiLower(string(d)) == asciiLower(string(other))
}

// IsWellFormed reports whether d is a well-formed hex digest of the
// expected length for algorithm.
func (d Digest) IsWellFormed(algorithm settings.HashAlgorithm) bool {
	want := expectedHexLen(algorithm)
	if want == 0 || len(d) != want {
		return false
	}
	for _, c := range string(d) {
		if !isHexDigit(c) {
			return false
		}
	}
	return true
}

// NewHash returns a fresh hash.Hash for algorithm.
func NewHash(algorithm settings.HashAlgorithm) (hash.Hash, error) {
	switch algorithm {
	case settings.HashSHA256:
		return sha256.New(), nil
	case settings.HashSHA1:
		return sha1.New(), nil
	case settings.HashMD5:
		return md5.New(), nil
	default:
		return nil, sdkerr.New(sdkerr.InputError, "unsupported hash algorithm: "+string(algorithm))
	}
}

// DetectAlgorithm infers the algorithm from a digest's hex length. Qt
// mirrors publish sha256 almost universally, with md5 kept only for very
// old legacy releases.
func DetectAlgorithm(d Digest) settings.HashAlgorithm {
	switch len(d) {
	case 64:
		return settings.HashSHA256
	case 40:
		return settings.HashSHA1
	case 32:
		return settings.HashMD5
	default:
		return ""
	}
}

func expectedHexLen(algorithm settings.HashAlgorithm) int {
	switch algorithm {
	case settings.HashSHA256:
		return 64
	case settings.HashSHA1:
		return 40
	case settings.HashMD5:
		return 32
	default:
		return 0
	}
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
