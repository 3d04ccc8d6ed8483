// Package metaindex discovers what the upstream repository actually
// publishes: the set of version folders under a TargetKey's directory
// (parsed from the mirror's HTML directory-index page) and, within one
// folder, the Updates.xml package descriptor.
package metaindex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/sdkget/sdkget/internal/hashstore"
	"github.com/sdkget/sdkget/internal/sdkerr"
	"github.com/sdkget/sdkget/internal/settings"
	"github.com/sdkget/sdkget/internal/version"
)

// Fetcher is the minimal HTTP surface MetaIndex needs; internal/httpclient
// satisfies it in production, tests supply a stub.
type Fetcher interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// ChecksumFetcher fetches a checksum file from trusted mirrors only;
// internal/mirror.Selector satisfies this (along with pipeline.MirrorSelector)
// in production.
type ChecksumFetcher interface {
	FetchChecksum(ctx context.Context, relativePath string) (*http.Response, string, error)
}

// Index discovers folders and descriptors under one repository base URL.
type Index struct {
	fetcher Fetcher

	// Verification is optional: an Index with hashes == nil parses
	// Updates.xml unverified, matching the zero-value New result.
	hashes        *hashstore.Store
	checksums     ChecksumFetcher
	hashAlgorithm settings.HashAlgorithm
	baseURL       string
}

// New builds an Index backed by fetcher.
func New(fetcher Fetcher) *Index {
	return &Index{fetcher: fetcher}
}

// WithHashVerification attaches the trust-separated checksum path so
// FetchUpdates can validate Updates.xml against its authoritative digest
// before parsing it, the same way archives are verified in the Pipeline:
// content comes from idx.fetcher, but the digest used to check it comes
// only from checksums, which must itself be restricted to trusted_mirrors
// by its caller. baseURL is Settings.BaseURL, used to derive the checksum
// file's mirror-relative path from folderURL the same way
// pipeline.relativeToBase does for archives. Returns idx for chaining.
func (idx *Index) WithHashVerification(hashes *hashstore.Store, checksums ChecksumFetcher, alg settings.HashAlgorithm, baseURL string) *Index {
	idx.hashes = hashes
	idx.checksums = checksums
	idx.hashAlgorithm = alg
	idx.baseURL = baseURL
	return idx
}

// ListVersions fetches the HTML directory-index page at folderURL and
// returns every entry that parses as a well-formed Version, regardless of
// the mirror's exact HTML layout — tolerating the "HTML parsing fragility"
// the spec calls out by walking the DOM for anchor hrefs rather than
// matching the page's markup with a regex. The directory entries
// themselves are folder-token names like "qt6_670", not dotted versions, so
// each href is tried as a dotted version first (covering a caller-supplied
// fixture or a future plain-dotted layout) and falls back to the
// folder-token decoder that matches the real upstream convention.
func (idx *Index) ListVersions(ctx context.Context, folderURL string) ([]version.Version, error) {
	hrefs, err := idx.listHrefs(ctx, folderURL)
	if err != nil {
		return nil, err
	}
	var out []version.Version
	for _, href := range hrefs {
		name := strings.Trim(href, "/")
		if name == "" || name == ".." || name == "." {
			continue
		}
		v, err := version.Parse(name)
		if err != nil {
			v, err = version.ParseFolderName(name)
			if err != nil {
				continue // not every directory entry is a version folder
			}
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out, nil
}

// listHrefs parses an HTML directory-index page and returns every anchor's
// href attribute, in document order.
func (idx *Index) listHrefs(ctx context.Context, pageURL string) ([]string, error) {
	resp, err := idx.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.NetworkError, "fetching directory index", err).WithMirror(pageURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, sdkerr.New(sdkerr.NetworkError, fmt.Sprintf("directory index returned HTTP %d", resp.StatusCode)).WithMirror(pageURL)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.NetworkError, "parsing directory index HTML", err).WithMirror(pageURL)
	}

	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "href" {
					hrefs = append(hrefs, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hrefs, nil
}
