// Package hashstore fetches and caches the authoritative checksum for an
// archive URL. Bytes may come from any non-blacklisted mirror; the digest
// used to verify them comes only from trusted_mirrors — hashstore is where
// that trust boundary lives.
package hashstore

import (
	"context"
	"io"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/sdkget/sdkget/internal/checksum"
	"github.com/sdkget/sdkget/internal/sdkerr"
	"github.com/sdkget/sdkget/internal/settings"
)

// Record is a ChecksumRecord: the archive's URL, the algorithm used, and
// the digest, scoped to the lifetime of one pipeline run.
type Record struct {
	ArchiveURL string
	Algorithm  settings.HashAlgorithm
	Digest     checksum.Digest
}

// inflight coalesces concurrent requests for the same URL into one fetch.
type inflight struct {
	done chan struct{}
	rec  Record
	err  error
}

// Store caches ChecksumRecords for one run, safe for concurrent readers and
// a single writer per key (double-fetch prevention: a second caller for a
// URL already being fetched waits on the first caller's result instead of
// issuing its own request).
type Store struct {
	mu       sync.Mutex
	cache    map[string]Record
	inflight map[string]*inflight

	settings settings.Settings
}

// New builds an empty Store.
func New(s settings.Settings) *Store {
	return &Store{
		cache:    make(map[string]Record),
		inflight: make(map[string]*inflight),
		settings: s,
	}
}

// Digest fetches (or returns the cached) ChecksumRecord for archiveURL,
// whose checksum file path is relativePath (e.g. "qtbase.7z.sha256").
// Retries up to MaxRetriesToRetrieveHash times across trusted mirrors,
// backing off between attempts with cenkalti/backoff/v4 — a distinct layer
// from httpclient's per-HTTP-attempt retry, this one governs switching
// between trusted mirrors when one is slow or unreachable.
func (st *Store) Digest(ctx context.Context, fetchChecksum func(context.Context, string) (io.ReadCloser, string, error), archiveURL, relativePath, filename string) (Record, error) {
	st.mu.Lock()
	if rec, ok := st.cache[archiveURL]; ok {
		st.mu.Unlock()
		return rec, nil
	}
	if inf, ok := st.inflight[archiveURL]; ok {
		st.mu.Unlock()
		<-inf.done
		return inf.rec, inf.err
	}
	inf := &inflight{done: make(chan struct{})}
	st.inflight[archiveURL] = inf
	st.mu.Unlock()

	rec, err := st.fetchWithRetry(ctx, fetchChecksum, archiveURL, relativePath, filename)

	st.mu.Lock()
	delete(st.inflight, archiveURL)
	if err == nil {
		st.cache[archiveURL] = rec
	}
	st.mu.Unlock()

	inf.rec, inf.err = rec, err
	close(inf.done)
	return rec, err
}

func (st *Store) fetchWithRetry(ctx context.Context, fetchChecksum func(context.Context, string) (io.ReadCloser, string, error), archiveURL, relativePath, filename string) (Record, error) {
	bo := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewConstantBackOff(st.settings.RetryBackoff),
		uint64(maxInt(0, st.settings.MaxRetriesToRetrieveHash)),
	), ctx)

	var rec Record
	operation := func() error {
		body, mirrorURL, err := fetchChecksum(ctx, relativePath)
		if err != nil {
			return err
		}
		defer body.Close()

		content, err := io.ReadAll(io.LimitReader(body, 4096))
		if err != nil {
			return sdkerr.Wrap(sdkerr.HashUnavailable, "reading checksum body", err).WithMirror(mirrorURL)
		}

		d, err := checksum.ParseFile(content, filename)
		if err != nil {
			return sdkerr.Wrap(sdkerr.HashUnavailable, "parsing checksum body", err).WithMirror(mirrorURL)
		}
		alg := checksum.DetectAlgorithm(d)
		if alg == "" || !d.IsWellFormed(alg) {
			return sdkerr.New(sdkerr.HashUnavailable, "checksum response is not a well-formed digest").WithMirror(mirrorURL).WithArchive(archiveURL)
		}
		rec = Record{ArchiveURL: archiveURL, Algorithm: alg, Digest: d}
		return nil
	}

	if err := backoff.Retry(operation, bo); err != nil {
		if ctx.Err() != nil {
			return Record{}, sdkerr.Wrap(sdkerr.Cancelled, "checksum fetch cancelled", ctx.Err()).WithArchive(archiveURL)
		}
		return Record{}, err
	}
	return rec, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
