package metaindex

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sdkget/sdkget/internal/checksum"
	"github.com/sdkget/sdkget/internal/sdkerr"
)

// UpdateFile carries the two size fields Updates.xml publishes per package,
// in bytes.
type UpdateFile struct {
	CompressedSize   int64 `xml:"CompressedSize,attr"`
	UncompressedSize int64 `xml:"UncompressedSize,attr"`
}

// PackageUpdate is one <PackageUpdate> entry from Updates.xml.
type PackageUpdate struct {
	Name                 string     `xml:"Name"`
	Version              string     `xml:"Version"`
	ReleaseDate          string     `xml:"ReleaseDate"`
	DisplayName          string     `xml:"DisplayName"`
	Description          string     `xml:"Description"`
	DownloadableArchives string     `xml:"DownloadableArchives"`
	UpdateFile           UpdateFile `xml:"UpdateFile"`
	Dependencies         string     `xml:"Dependencies"`
}

// Archives splits the comma-separated DownloadableArchives field into
// individual filenames, trimming whitespace and dropping empty entries so
// an empty element (no archives published for this package) yields a nil
// slice rather than a slice containing "".
func (p PackageUpdate) Archives() []string {
	return splitTrim(p.DownloadableArchives)
}

// DependencyNames splits the comma-separated Dependencies field into the
// fully-qualified Name values of packages this one depends on.
func (p PackageUpdate) DependencyNames() []string {
	return splitTrim(p.Dependencies)
}

func splitTrim(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			tok := trimSpace(s[start:i])
			if tok != "" {
				out = append(out, tok)
			}
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	for len(s) > 0 && isSpace(s[0]) {
		s = s[1:]
	}
	for len(s) > 0 && isSpace(s[len(s)-1]) {
		s = s[:len(s)-1]
	}
	return s
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// UpdatesDoc is the parsed Updates.xml descriptor: an ordered sequence of
// PackageUpdate entries, preserved in document order.
type UpdatesDoc struct {
	Packages []PackageUpdate `xml:"PackageUpdate"`
}

// FetchUpdates downloads and parses the Updates.xml descriptor at
// folderURL + "/Updates.xml". encoding/xml never resolves DTDs or external
// entities — there is no hook to enable that behavior — so this already
// satisfies the "no external entities, no DTD resolution" requirement
// without an additional hardening layer. When the Index was built with
// WithHashVerification, the document bytes are also validated against
// their authoritative trusted-mirror checksum before being parsed.
func (idx *Index) FetchUpdates(ctx context.Context, folderURL string) (UpdatesDoc, error) {
	url := folderURL + "/Updates.xml"
	resp, err := idx.fetcher.Get(ctx, url)
	if err != nil {
		return UpdatesDoc{}, sdkerr.Wrap(sdkerr.NetworkError, "fetching Updates.xml", err).WithMirror(url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return UpdatesDoc{}, sdkerr.New(sdkerr.NetworkError, fmt.Sprintf("Updates.xml returned HTTP %d", resp.StatusCode)).WithMirror(url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return UpdatesDoc{}, sdkerr.Wrap(sdkerr.NetworkError, "reading Updates.xml", err).WithMirror(url)
	}

	if idx.hashes != nil && idx.checksums != nil {
		if err := idx.verifyUpdatesChecksum(ctx, url, body); err != nil {
			return UpdatesDoc{}, err
		}
	}

	var doc UpdatesDoc
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = true
	if err := dec.Decode(&doc); err != nil {
		return UpdatesDoc{}, sdkerr.Wrap(sdkerr.InputError, "parsing Updates.xml", err).WithMirror(url)
	}

	// Tolerate empty DownloadableArchives elements by skipping the package
	// entirely only when the caller asks for archives via Archives(); here
	// we keep every PackageUpdate so dependency names are still resolvable
	// even for archive-less (e.g. pure metadata) packages.
	return doc, nil
}

// verifyUpdatesChecksum validates body against the digest fetched from
// trusted mirrors for url + "." + hashAlgorithm, the same suffix
// convention archives use for their own checksum files.
func (idx *Index) verifyUpdatesChecksum(ctx context.Context, url string, body []byte) error {
	relativePath := strings.TrimPrefix(strings.TrimPrefix(url, strings.TrimSuffix(idx.baseURL, "/")), "/")
	checksumPath := relativePath + "." + string(idx.hashAlgorithm)

	rec, err := idx.hashes.Digest(ctx, idx.fetchChecksumAdapter(), url, checksumPath, "Updates.xml")
	if err != nil {
		return err
	}
	actual, err := checksum.CalculateFromReader(bytes.NewReader(body), idx.hashAlgorithm)
	if err != nil {
		return err
	}
	if !actual.Equal(rec.Digest) {
		return sdkerr.New(sdkerr.ChecksumError, "Updates.xml digest does not match trusted checksum").WithMirror(url)
	}
	return nil
}

// fetchChecksumAdapter wraps ChecksumFetcher.FetchChecksum into the
// io.ReadCloser-returning callback signature hashstore.Store.Digest
// expects, mirroring pipeline's own adapter for archive checksums.
func (idx *Index) fetchChecksumAdapter() func(context.Context, string) (io.ReadCloser, string, error) {
	return func(ctx context.Context, relativePath string) (io.ReadCloser, string, error) {
		resp, mirrorURL, err := idx.checksums.FetchChecksum(ctx, relativePath)
		if err != nil {
			return nil, mirrorURL, err
		}
		return resp.Body, mirrorURL, nil
	}
}
