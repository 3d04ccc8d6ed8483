package mirror_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdkget/sdkget/internal/mirror"
	"github.com/sdkget/sdkget/internal/settings"
)

type stubFetcher struct {
	byHost map[string]func(relURL string) *http.Response
}

func (s stubFetcher) Get(_ context.Context, rawURL string) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	fn, ok := s.byHost[u.Host]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(bytes.NewReader(nil)), Request: &http.Request{URL: u}}, nil
	}
	resp := fn(rawURL)
	if resp.Request == nil {
		resp.Request = &http.Request{URL: u}
	}
	return resp, nil
}

func ok(body string) *http.Response {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader([]byte(body)))}
}

func TestFetchArchiveFallsBackToSecondMirror(t *testing.T) {
	s := settings.Default()
	s.TrustedMirrors = []string{"https://good.example.org"}
	s.FallbackMirrors = []string{"https://backup.example.org"}

	fetcher := stubFetcher{byHost: map[string]func(string) *http.Response{
		"good.example.org": func(string) *http.Response {
			return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: io.NopCloser(bytes.NewReader(nil))}
		},
		"backup.example.org": func(string) *http.Response { return ok("archive-bytes") },
	}}

	sel := mirror.New(s, fetcher, nil)
	resp, usedMirror, err := sel.FetchArchive(context.Background(), "qtbase.7z")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://backup.example.org", usedMirror)
}

func TestFetchArchiveSkipsBlacklistedMirror(t *testing.T) {
	s := settings.Default()
	s.TrustedMirrors = []string{"https://evil.example.org", "https://good.example.org"}
	s.BlacklistMirrors = []string{"evil.example.org"}

	fetcher := stubFetcher{byHost: map[string]func(string) *http.Response{
		"good.example.org": func(string) *http.Response { return ok("archive-bytes") },
	}}

	sel := mirror.New(s, fetcher, nil)
	_, usedMirror, err := sel.FetchArchive(context.Background(), "qtbase.7z")
	require.NoError(t, err)
	assert.Equal(t, "https://good.example.org", usedMirror)
}

func TestFetchArchiveRejectsRedirectToBlacklistedHost(t *testing.T) {
	s := settings.Default()
	s.TrustedMirrors = []string{"https://good.example.org"}
	s.BlacklistMirrors = []string{"evil.example.org"}

	fetcher := stubFetcher{byHost: map[string]func(string) *http.Response{
		"good.example.org": func(string) *http.Response {
			resp := ok("archive-bytes")
			u, _ := url.Parse("https://evil.example.org/qtbase.7z")
			resp.Request = &http.Request{URL: u}
			return resp
		},
	}}

	sel := mirror.New(s, fetcher, nil)
	_, _, err := sel.FetchArchive(context.Background(), "qtbase.7z")
	assert.Error(t, err)
}

func TestFetchChecksumNeverUsesFallbackMirrors(t *testing.T) {
	s := settings.Default()
	s.TrustedMirrors = []string{"https://trusted.example.org"}
	s.FallbackMirrors = []string{"https://untrusted.example.org"}

	calledUntrusted := false
	fetcher := stubFetcher{byHost: map[string]func(string) *http.Response{
		"trusted.example.org": func(string) *http.Response {
			return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(bytes.NewReader(nil))}
		},
		"untrusted.example.org": func(string) *http.Response {
			calledUntrusted = true
			return ok("sha256:deadbeef")
		},
	}}

	sel := mirror.New(s, fetcher, nil)
	_, _, err := sel.FetchChecksum(context.Background(), "qtbase.7z.sha256")
	assert.Error(t, err)
	assert.False(t, calledUntrusted)
}
