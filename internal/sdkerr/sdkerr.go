// Package sdkerr is the sum-type error taxonomy every component in sdkget
// returns instead of raising exceptions. The upstream tool this system
// replaces models failures as a rich exception hierarchy (NoPackageFound,
// ArchiveDownloadError, ChecksumVerificationError, ...); here they collapse
// into one *Error struct carrying a Kind, and callers branch on Kind with a
// type switch rather than catching by concrete type.
package sdkerr

import "fmt"

// Kind classifies an Error for retry/abort decisions. cmd/sdkget exits with
// status 1 whatever the Kind; it has no per-Kind exit codes.
type Kind string

const (
	// InputError covers malformed user intent: an unknown TargetKey, an
	// unsatisfiable version spec, a module name absent from UpdatesDoc.
	InputError Kind = "input"

	// NetworkError covers transport failures: connection refused, DNS
	// failure, timeout, non-2xx HTTP status, exhausted mirror list.
	NetworkError Kind = "network"

	// ChecksumError means a downloaded archive's digest did not match the
	// one obtained from a trusted mirror.
	ChecksumError Kind = "checksum"

	// HashUnavailable means no trusted mirror could produce a digest for
	// an archive within MaxRetriesToRetrieveHash attempts.
	HashUnavailable Kind = "hash_unavailable"

	// ExtractError covers corrupt archives, disk-full, and permission
	// failures raised by the Extractor.
	ExtractError Kind = "extract"

	// PatchError covers a post-install rewrite that could not be applied:
	// a missing mandatory file, a token that does not fit the fixed field
	// width, or an I/O failure while rewriting.
	PatchError Kind = "patch"

	// Cancelled means the operation stopped because its context was
	// cancelled, not because of any of the above.
	Cancelled Kind = "cancelled"
)

// Error is the single error type returned by every sdkget component.
type Error struct {
	Kind Kind

	// Archive identifies the unit of work this error happened on, when
	// applicable. Empty for errors not tied to one archive (e.g. a
	// resolver InputError).
	Archive string

	// Package is the fully-qualified package name, when known.
	Package string

	// LastMirror is the last mirror URL that was tried before this error
	// was produced, per the propagation contract: "errors carry the
	// archive identity and the last mirror tried."
	LastMirror string

	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var msg string
	switch {
	case e.Archive != "" && e.LastMirror != "":
		msg = fmt.Sprintf("%s: %s (archive=%s, mirror=%s)", e.Kind, e.Message, e.Archive, e.LastMirror)
	case e.Archive != "":
		msg = fmt.Sprintf("%s: %s (archive=%s)", e.Kind, e.Message, e.Archive)
	default:
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by Kind, so callers can write
// errors.Is(err, &sdkerr.Error{Kind: sdkerr.ChecksumError}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a bare Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithArchive sets the archive identity and returns the error for chaining.
func (e *Error) WithArchive(archiveFilename string) *Error {
	e.Archive = archiveFilename
	return e
}

// WithPackage sets the owning package name and returns the error for chaining.
func (e *Error) WithPackage(packageName string) *Error {
	e.Package = packageName
	return e
}

// WithMirror records the last mirror tried and returns the error for chaining.
func (e *Error) WithMirror(mirrorURL string) *Error {
	e.LastMirror = mirrorURL
	return e
}

// IsRetryable reports whether the Pipeline should try the next mirror for
// this error rather than surfacing it as the archive's final failure.
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case NetworkError, ChecksumError, HashUnavailable:
		return true
	default:
		return false
	}
}
