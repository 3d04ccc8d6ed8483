// Package mirror selects which host serves an archive's bytes and enforces
// the trust separation the spec requires: a checksum may only be accepted
// from a trusted mirror, and a blacklisted host is authoritative even when
// it is only reached via an HTTP redirect from a mirror that was not
// blacklisted.
package mirror

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sdkget/sdkget/internal/sdkerr"
	"github.com/sdkget/sdkget/internal/settings"
)

// Fetcher is the HTTP surface Selector drives; satisfied by httpclient.Client.
type Fetcher interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Selector walks trusted, then fallback, mirrors for archive bytes, and
// trusted-only for checksums.
type Selector struct {
	settings settings.Settings
	fetcher  Fetcher
	s3       S3Fetcher // optional; nil if no s3:// mirrors configured
}

// S3Fetcher fetches an object from an s3://bucket/key mirror entry.
// internal/mirror/s3.go provides the aws-sdk-go-v2-backed implementation.
type S3Fetcher interface {
	GetObject(ctx context.Context, bucket, key string) (*http.Response, error)
}

// New builds a Selector. s3 may be nil when no s3:// entries are configured.
func New(s settings.Settings, fetcher Fetcher, s3 S3Fetcher) *Selector {
	return &Selector{settings: s, fetcher: fetcher, s3: s3}
}

// candidateMirrors returns the ordered list of mirror base URLs to try for
// archive bytes: trusted first (they are also valid content sources), then
// fallback. Blacklisted entries never appear even if they were also listed
// as trusted or fallback by a misconfigured settings file.
func (sel *Selector) candidateMirrors() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(list []string) {
		for _, m := range list {
			if sel.settings.IsBlacklisted(hostOf(m)) {
				continue
			}
			if seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}
	add(sel.settings.TrustedMirrors)
	add(sel.settings.FallbackMirrors)
	return out
}

// FetchArchive tries each candidate mirror in order for relativePath
// (e.g. "qt6_670/qt.qt6.670.gcc_64/qtbase-Linux-RHEL_8_6-GCC-Linux-RHEL_8_6-X86_64.7z"),
// returning the first successful response and the mirror URL it came from.
// A redirect that lands on a blacklisted host is treated as that host
// serving the content and is rejected outright, even though the mirror that
// issued the redirect was itself trusted — a blacklisted host is
// authoritative over the Location header that named it.
func (sel *Selector) FetchArchive(ctx context.Context, relativePath string) (*http.Response, string, error) {
	var lastErr error
	for _, base := range sel.candidateMirrors() {
		if strings.HasPrefix(base, "s3://") {
			resp, err := sel.fetchS3(ctx, base, relativePath)
			if err != nil {
				lastErr = err
				continue
			}
			return resp, base, nil
		}

		fullURL := strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(relativePath, "/")
		resp, err := sel.fetcher.Get(ctx, fullURL)
		if err != nil {
			lastErr = sdkerr.Wrap(sdkerr.NetworkError, "fetching archive", err).WithMirror(base)
			continue
		}
		if finalHost := hostOfResponse(resp); sel.settings.IsBlacklisted(finalHost) {
			resp.Body.Close()
			lastErr = sdkerr.New(sdkerr.NetworkError, fmt.Sprintf("mirror redirected to blacklisted host %q", finalHost)).WithMirror(base)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = sdkerr.New(sdkerr.NetworkError, fmt.Sprintf("mirror returned HTTP %d", resp.StatusCode)).WithMirror(base)
			continue
		}
		return resp, base, nil
	}
	if lastErr == nil {
		lastErr = sdkerr.New(sdkerr.NetworkError, "no mirrors configured")
	}
	return nil, "", lastErr
}

// FetchChecksum behaves like FetchArchive but only ever walks
// trusted_mirrors — this is the trust-separation boundary: archive bytes
// may come from any non-blacklisted mirror, but the digest used to verify
// them must come from one of these.
func (sel *Selector) FetchChecksum(ctx context.Context, relativePath string) (*http.Response, string, error) {
	var lastErr error
	for _, base := range sel.settings.TrustedMirrors {
		if sel.settings.IsBlacklisted(hostOf(base)) {
			continue
		}
		fullURL := strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(relativePath, "/")
		resp, err := sel.fetcher.Get(ctx, fullURL)
		if err != nil {
			lastErr = sdkerr.Wrap(sdkerr.NetworkError, "fetching checksum", err).WithMirror(base)
			continue
		}
		if finalHost := hostOfResponse(resp); sel.settings.IsBlacklisted(finalHost) {
			resp.Body.Close()
			lastErr = sdkerr.New(sdkerr.NetworkError, fmt.Sprintf("trusted mirror redirected to blacklisted host %q", finalHost)).WithMirror(base)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = sdkerr.New(sdkerr.HashUnavailable, fmt.Sprintf("trusted mirror returned HTTP %d", resp.StatusCode)).WithMirror(base)
			continue
		}
		return resp, base, nil
	}
	if lastErr == nil {
		lastErr = sdkerr.New(sdkerr.HashUnavailable, "no trusted mirrors configured")
	}
	return nil, "", lastErr
}

func (sel *Selector) fetchS3(ctx context.Context, base, relativePath string) (*http.Response, error) {
	if sel.s3 == nil {
		return nil, sdkerr.New(sdkerr.NetworkError, "s3 mirror configured but no S3Fetcher wired").WithMirror(base)
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.InputError, "invalid s3 mirror URL", err).WithMirror(base)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key != "" {
		key = strings.TrimSuffix(key, "/") + "/"
	}
	key += strings.TrimPrefix(relativePath, "/")
	resp, err := sel.s3.GetObject(ctx, u.Host, key)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.NetworkError, "fetching s3 object", err).WithMirror(base)
	}
	return resp, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Host != "" {
		return u.Host
	}
	return rawURL
}

// hostOfResponse returns the host the response actually came from, after
// following redirects — Go's http.Client resolves redirects before
// returning, so resp.Request.URL carries the final host.
func hostOfResponse(resp *http.Response) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.Host
	}
	return ""
}
