package sdkerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sdkget/sdkget/internal/sdkerr"
)

func TestErrorMessageIncludesArchiveAndMirror(t *testing.T) {
	err := sdkerr.New(sdkerr.ChecksumError, "digest mismatch").
		WithArchive("qtbase.7z").
		WithMirror("https://mirror.example.org")
	assert.Contains(t, err.Error(), "qtbase.7z")
	assert.Contains(t, err.Error(), "mirror.example.org")
}

func TestIsMatchesByKind(t *testing.T) {
	err := sdkerr.New(sdkerr.NetworkError, "connection refused")
	assert.True(t, errors.Is(err, &sdkerr.Error{Kind: sdkerr.NetworkError}))
	assert.False(t, errors.Is(err, &sdkerr.Error{Kind: sdkerr.ChecksumError}))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := sdkerr.Wrap(sdkerr.NetworkError, "download failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, sdkerr.New(sdkerr.NetworkError, "x").IsRetryable())
	assert.True(t, sdkerr.New(sdkerr.ChecksumError, "x").IsRetryable())
	assert.False(t, sdkerr.New(sdkerr.PatchError, "x").IsRetryable())
	assert.False(t, sdkerr.New(sdkerr.InputError, "x").IsRetryable())
}
