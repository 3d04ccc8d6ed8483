package patch

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// fixtureQmake builds a minimal stand-in for a qmake binary: some filler
// bytes, then each token followed by a fixed-width NUL-terminated field.
func fixtureQmake(fieldWidth int, values map[string]string) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x7fELF-filler-bytes-not-a-real-binary")
	for _, token := range qmakeTokens {
		buf.WriteString(token)
		v := values[token]
		field := make([]byte, fieldWidth)
		copy(field, v)
		buf.Write(field)
	}
	buf.WriteString("trailing-section-unrelated-to-any-token")
	return buf.Bytes()
}

func TestRewriteQmakeTokensReplacesWithinFieldWidth(t *testing.T) {
	orig := fixtureQmake(32, map[string]string{
		"qt_prfxpath=": "/old/prefix",
		"qt_epfxpath=": "/old/prefix",
		"qt_hpfxpath=": "/old/prefix",
	})

	out, changed, err := rewriteQmakeTokens(orig, "/new/prefix")
	require.NoError(t, err)
	assert.True(t, changed)

	for _, token := range qmakeTokens {
		idx := bytes.Index(out, []byte(token))
		require.GreaterOrEqual(t, idx, 0)
		valueStart := idx + len(token)
		nul := bytes.IndexByte(out[valueStart:], 0)
		require.GreaterOrEqual(t, nul, 0)
		assert.Equal(t, "/new/prefix", string(out[valueStart:valueStart+nul]))
	}
	assert.Equal(t, len(orig), len(out))
}

func TestRewriteQmakeTokensIsIdempotent(t *testing.T) {
	orig := fixtureQmake(32, map[string]string{
		"qt_prfxpath=": "/old/prefix",
		"qt_epfxpath=": "/old/prefix",
		"qt_hpfxpath=": "/old/prefix",
	})

	once, changed, err := rewriteQmakeTokens(orig, "/new/prefix")
	require.NoError(t, err)
	require.True(t, changed)

	twice, changed, err := rewriteQmakeTokens(once, "/new/prefix")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, once, twice)
}

func TestRewriteQmakeTokensRejectsOverlongPrefix(t *testing.T) {
	orig := fixtureQmake(8, map[string]string{
		"qt_prfxpath=": "/old",
		"qt_epfxpath=": "/old",
		"qt_hpfxpath=": "/old",
	})

	_, _, err := rewriteQmakeTokens(orig, "/a/very/long/new/prefix/that/does/not/fit")
	assert.Error(t, err)
}

func TestRewriteQmakeTokensIgnoresUnrecognizedFields(t *testing.T) {
	// No NUL terminator after the token at all: must be left alone, not
	// treated as an error.
	var buf bytes.Buffer
	buf.WriteString("qt_prfxpath=/no/terminator/to/end/of/file")
	out, changed, err := rewriteQmakeTokens(buf.Bytes(), "/new/prefix")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, buf.Bytes(), out)
}

func TestPatchQmakeBinaryFatalWhenMissing(t *testing.T) {
	prefix := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(prefix, "bin"), 0o755))
	p := New(prefix)
	err := p.patchQmakeBinary()
	assert.Error(t, err)
}

func TestPatchQmakeBinaryRewritesAndPreservesMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file mode bits not meaningful on windows")
	}
	prefix := t.TempDir()
	binDir := filepath.Join(prefix, "bin")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	data := fixtureQmake(256, map[string]string{
		"qt_prfxpath=": "/old/prefix",
		"qt_epfxpath=": "/old/prefix",
		"qt_hpfxpath=": "/old/prefix",
	})
	qmakePath := filepath.Join(binDir, "qmake")
	require.NoError(t, os.WriteFile(qmakePath, data, 0o755))

	p := New(prefix)
	require.NoError(t, p.patchQmakeBinary())

	info, err := os.Stat(qmakePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	rewritten, err := os.ReadFile(qmakePath)
	require.NoError(t, err)
	assert.Contains(t, string(rewritten), prefix)
}

// TestRewriteQmakeTokensProperty checks, for arbitrary field widths and
// prefixes, that a rewrite either fits (and a second pass is then a no-op)
// or is rejected outright — it never silently truncates or corrupts the
// surrounding bytes.
func TestRewriteQmakeTokensProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		// At least 5 bytes, so the fixture's "/old" value keeps its NUL
		// terminator; a field without one is not recognized at all.
		fieldWidth := rapid.IntRange(5, 64).Draw(rt, "fieldWidth")
		newPrefix := rapid.StringOfN(rapid.RuneFrom([]rune("/abcXYZ09")), 0, fieldWidth+20, -1).Draw(rt, "newPrefix")

		orig := fixtureQmake(fieldWidth, map[string]string{
			"qt_prfxpath=": "/old",
			"qt_epfxpath=": "/old",
			"qt_hpfxpath=": "/old",
		})

		out, changed, err := rewriteQmakeTokens(orig, newPrefix)
		if len(newPrefix) >= fieldWidth {
			if err == nil {
				rt.Fatalf("expected error when prefix %d bytes plus its terminator exceeds field width %d", len(newPrefix), fieldWidth)
			}
			return
		}
		require.NoError(rt, err)
		if !changed && newPrefix == "/old" {
			return
		}

		again, changedAgain, err := rewriteQmakeTokens(out, newPrefix)
		require.NoError(rt, err)
		assert.False(rt, changedAgain, "second rewrite with the same prefix must be a no-op")
		assert.Equal(rt, out, again)
		assert.Equal(rt, len(orig), len(out), "rewrite must never change file length")
	})
}
