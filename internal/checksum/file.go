package checksum

import (
	"bufio"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sdkget/sdkget/internal/sdkerr"
)

// FileFormat names the shape of a mirror-published digest file.
type FileFormat string

const (
	// FileFormatBareHash is the dominant Qt mirror convention: the file at
	// "<archive>.sha256" contains nothing but the hex digest.
	FileFormatBareHash FileFormat = "bare_hash"

	// FileFormatGNU is the coreutils sha256sum style: "<hash>  <filename>"
	// or "<hash> *<filename>", seen on mirrors that publish one aggregate
	// digest file per folder instead of per archive.
	FileFormatGNU FileFormat = "gnu"

	// FileFormatBSD is macOS shasum --tag / sha256sum --tag style:
	// "SHA256 (<filename>) = <hash>".
	FileFormatBSD FileFormat = "bsd"

	FileFormatUnknown FileFormat = "unknown"
)

var bsdPattern = regexp.MustCompile(`^(SHA256|SHA1|MD5)\s+\((.+)\)\s+=\s+([a-fA-F0-9]+)$`)

// DetectFileFormat inspects the first non-empty line of content and
// classifies it. Mirrors vary their layout subtly, so this stays a small,
// independently testable component rather than being inlined into the
// caller, per the same fragility concern the directory-index parser has.
func DetectFileFormat(content []byte) FileFormat {
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if bsdPattern.MatchString(line) {
			return FileFormatBSD
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 && isHexOfKnownLength(parts[0]) {
			return FileFormatGNU
		}
		if len(parts) == 1 && isHexOfKnownLength(parts[0]) {
			return FileFormatBareHash
		}
		return FileFormatUnknown
	}
	return FileFormatUnknown
}

// ParseFile extracts the digest for filename from a mirror-published digest
// file's content, auto-detecting its format.
func ParseFile(content []byte, filename string) (Digest, error) {
	switch DetectFileFormat(content) {
	case FileFormatBareHash:
		return parseBareHash(content)
	case FileFormatGNU:
		return parseGNU(content, filename)
	case FileFormatBSD:
		return parseBSD(content, filename)
	default:
		return "", sdkerr.New(sdkerr.HashUnavailable, "unrecognized checksum file format")
	}
}

func parseBareHash(content []byte) (Digest, error) {
	d := Digest(strings.TrimSpace(string(content)))
	if d == "" {
		return "", sdkerr.New(sdkerr.HashUnavailable, "empty checksum file")
	}
	return d, nil
}

func parseGNU(content []byte, filename string) (Digest, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		hash := parts[0]
		file := strings.TrimPrefix(parts[1], "*")
		if file == filename || filepath.Base(file) == filename {
			return Digest(hash), nil
		}
	}
	return "", sdkerr.New(sdkerr.HashUnavailable, "checksum for "+filename+" not found")
}

func parseBSD(content []byte, filename string) (Digest, error) {
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m := bsdPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		file, hash := m[2], m[3]
		if file == filename || filepath.Base(file) == filename {
			return Digest(hash), nil
		}
	}
	return "", sdkerr.New(sdkerr.HashUnavailable, "checksum for "+filename+" not found")
}

func isHexOfKnownLength(s string) bool {
	switch len(s) {
	case 32, 40, 64:
	default:
		return false
	}
	for _, c := range s {
		if !isHexDigit(c) {
			return false
		}
	}
	return true
}
