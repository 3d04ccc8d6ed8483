package patch

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/sdkget/sdkget/internal/sdkerr"
)

// qmakeTokens are the ASCII, NUL-terminated fixed-width fields embedded in
// the qmake binary by the build that produced the archive. Each occupies a
// fixed number of bytes in the binary; a rewrite must fit within that width
// including the terminating NUL, or it is rejected rather than corrupting
// whatever follows it in the file.
var qmakeTokens = []string{"qt_prfxpath=", "qt_epfxpath=", "qt_hpfxpath="}

// patchQmakeBinary locates bin/qmake (or bin/qmake.exe on Windows-built
// archives) and rewrites its prefix-path tokens in place.
func (p *Patcher) patchQmakeBinary() error {
	name := "qmake"
	if runtime.GOOS == "windows" {
		name = "qmake.exe"
	}
	path := filepath.Join(p.Prefix, "bin", name)

	// The other name is checked second: upstream archives carry one or the
	// other depending on the build's host OS, never both.
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		alt := filepath.Join(p.Prefix, "bin", altName(name))
		data, err = os.ReadFile(alt)
		if err != nil {
			return sdkerr.Wrap(sdkerr.PatchError, "qmake binary is missing from install", err)
		}
		path = alt
	} else if err != nil {
		return sdkerr.Wrap(sdkerr.PatchError, "reading qmake binary", err)
	}

	rewritten, changed, err := rewriteQmakeTokens(data, p.Prefix)
	if err != nil {
		return sdkerr.Wrap(sdkerr.PatchError, "rewriting qmake tokens", err)
	}
	if !changed {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return sdkerr.Wrap(sdkerr.PatchError, "stat qmake binary", err)
	}
	return os.WriteFile(path, rewritten, info.Mode())
}

func altName(name string) string {
	if name == "qmake.exe" {
		return "qmake"
	}
	return "qmake.exe"
}

// rewriteQmakeTokens finds each "qt_*pfxpath=" token in data and replaces
// the value that follows it, up to the field's original NUL terminator,
// with newPrefix. The new value is padded with NUL bytes out to the
// original field width; if newPrefix plus its terminator would not fit,
// the field is left untouched and an error is returned — silently
// truncating an absolute path is worse than failing the patch step.
//
// Applying this twice is a no-op on the second pass: once a field holds
// newPrefix, searching for its original contents never finds the old
// value, so nothing is rewritten again.
func rewriteQmakeTokens(data []byte, newPrefix string) ([]byte, bool, error) {
	out := data
	changed := false
	for _, token := range qmakeTokens {
		idx := bytes.Index(out, []byte(token))
		if idx < 0 {
			continue
		}
		valueStart := idx + len(token)
		nul := bytes.IndexByte(out[valueStart:], 0)
		if nul < 0 {
			continue // not a fixed-width field we recognize; leave it alone
		}
		// The field spans the current value plus the NUL padding after it.
		fieldWidth := nul
		for valueStart+fieldWidth < len(out) && out[valueStart+fieldWidth] == 0 {
			fieldWidth++
		}
		current := out[valueStart : valueStart+nul]
		if string(current) == newPrefix {
			continue // already patched
		}
		if len(newPrefix) >= fieldWidth {
			return nil, false, sdkerr.New(sdkerr.PatchError,
				"install prefix too long for qmake's fixed-width field: need "+strconv.Itoa(len(newPrefix)+1)+" bytes, field holds "+strconv.Itoa(fieldWidth))
		}
		replacement := make([]byte, fieldWidth)
		copy(replacement, newPrefix)
		// remaining bytes already zero-valued from make([]byte, ...)
		copy(out[valueStart:valueStart+fieldWidth], replacement)
		changed = true
	}
	return out, changed, nil
}
