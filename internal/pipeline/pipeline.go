// Package pipeline runs the concurrent download -> verify -> extract
// sequence for every Archive in a resolved InstallPlan. Concurrency is
// bounded by a weighted semaphore the same way the teacher's installer
// engine bounds parallel node execution; archives are otherwise
// independent of one another and carry no cross-archive ordering
// guarantee, so one archive's failure never blocks the others from
// completing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
	"golang.org/x/sync/semaphore"

	"github.com/sdkget/sdkget/internal/checksum"
	"github.com/sdkget/sdkget/internal/extract"
	"github.com/sdkget/sdkget/internal/hashstore"
	"github.com/sdkget/sdkget/internal/metrics"
	"github.com/sdkget/sdkget/internal/resolve"
	"github.com/sdkget/sdkget/internal/sdkerr"
	"github.com/sdkget/sdkget/internal/settings"
)

// MirrorSelector is the subset of mirror.Selector the Pipeline drives.
type MirrorSelector interface {
	FetchArchive(ctx context.Context, relativePath string) (*http.Response, string, error)
	FetchChecksum(ctx context.Context, relativePath string) (*http.Response, string, error)
}

// Result is one archive's outcome, collected after the plan finishes.
type Result struct {
	Archive    resolve.Archive
	Err        error
	BytesTotal int64
}

// Reporter receives per-archive lifecycle events as the Pipeline works
// through a plan, so a caller (cmd/sdkget's progress bars) can render
// live progress without the Pipeline knowing anything about terminals.
// All methods may be called from multiple goroutines concurrently; a nil
// Reporter is never invoked.
type Reporter interface {
	ArchiveStarted(a resolve.Archive)
	ArchiveProgress(a resolve.Archive, downloaded int64)
	ArchiveDone(a resolve.Archive, err error)
}

// Pipeline owns everything needed to execute one InstallPlan.
type Pipeline struct {
	settings settings.Settings
	mirrors  MirrorSelector
	hashes   *hashstore.Store
	metrics  *metrics.Metrics
	reporter Reporter

	stagingDir   string
	lockFilePath string
}

// New builds a Pipeline. stagingDir is where archives are downloaded
// before verification; lockFilePath guards it against two concurrent
// sdkget invocations racing on the same staging files.
func New(s settings.Settings, mirrors MirrorSelector, hashes *hashstore.Store, m *metrics.Metrics, stagingDir, lockFilePath string) *Pipeline {
	return &Pipeline{settings: s, mirrors: mirrors, hashes: hashes, metrics: m, stagingDir: stagingDir, lockFilePath: lockFilePath}
}

// WithReporter attaches a progress Reporter and returns the Pipeline for
// chaining. Optional: a Pipeline with no Reporter runs exactly as before.
func (p *Pipeline) WithReporter(r Reporter) *Pipeline {
	p.reporter = r
	return p
}

// Run executes every Archive in plan with up to Settings.Concurrency in
// flight, extracting successful downloads under plan.Destination. It
// returns one Result per archive (same length and same relative order as
// plan.Archives, modulo concurrent completion) and a joined error if any
// archive failed.
func (p *Pipeline) Run(ctx context.Context, plan resolve.InstallPlan) ([]Result, error) {
	if err := os.MkdirAll(p.stagingDir, 0o755); err != nil {
		return nil, sdkerr.Wrap(sdkerr.ExtractError, "creating staging directory", err)
	}
	lock := flock.New(p.lockFilePath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.ExtractError, "acquiring staging lock", err)
	}
	if !locked {
		return nil, sdkerr.New(sdkerr.ExtractError, "another sdkget invocation holds the staging lock")
	}
	defer lock.Unlock()

	if err := os.MkdirAll(plan.Destination, 0o755); err != nil {
		return nil, sdkerr.Wrap(sdkerr.ExtractError, "creating destination directory", err)
	}

	concurrency := p.settings.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	results := make([]Result, len(plan.Archives))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error

	for i, archive := range plan.Archives {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = Result{Archive: archive, Err: sdkerr.Wrap(sdkerr.Cancelled, "pipeline cancelled before starting archive", err)}
			mu.Lock()
			errs = append(errs, results[i].Err)
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(idx int, a resolve.Archive) {
			defer wg.Done()
			defer sem.Release(1)

			p.metrics.ArchivesAttempted.Inc()
			p.metrics.InFlightArchives.Inc()
			defer p.metrics.InFlightArchives.Dec()
			if p.reporter != nil {
				p.reporter.ArchiveStarted(a)
			}

			bytesTotal, err := p.runOne(ctx, a, plan.Destination)
			results[idx] = Result{Archive: a, Err: err, BytesTotal: bytesTotal}
			if p.reporter != nil {
				p.reporter.ArchiveDone(a, err)
			}
			if err != nil {
				p.metrics.ArchivesFailed.Inc()
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", a.ArchiveFilename, err))
				mu.Unlock()
				return
			}
			p.metrics.ArchivesSucceeded.Inc()
		}(i, archive)
	}
	wg.Wait()

	return results, errors.Join(errs...)
}

// runOne runs the per-archive sequence: obtain the checksum, download with
// mirror fallback while hashing online, verify, extract, and clean up the
// staging file unless retention is requested.
func (p *Pipeline) runOne(ctx context.Context, a resolve.Archive, destination string) (int64, error) {
	slog.Debug("starting archive", "archive", a.ArchiveFilename, "package", a.PackageName)
	relativePath := relativeToBase(a.URL, p.settings.BaseURL)

	var rec hashstore.Record
	if !p.settings.IgnoreHash {
		var err error
		rec, err = p.hashes.Digest(ctx, p.fetchChecksumAdapter(), a.URL, checksumPath(relativePath, p.settings.HashAlgorithm), a.ArchiveFilename)
		if err != nil {
			return 0, err
		}
	}

	stagingPath := filepath.Join(p.stagingDir, sanitizeFilename(a.ArchiveFilename))
	bytesTotal, err := p.downloadWithFallback(ctx, a, relativePath, stagingPath, rec)
	if err != nil {
		return 0, err
	}
	if !p.settings.AlwaysKeepArchives {
		defer os.Remove(stagingPath)
	}

	archiveType := extract.DetectArchiveType(a.ArchiveFilename)
	extractor, err := extract.New(archiveType, p.settings.ExternalExtractorCommand)
	if err != nil {
		return bytesTotal, err
	}
	destDir := filepath.Join(destination, a.TargetSubdir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return bytesTotal, sdkerr.Wrap(sdkerr.ExtractError, "creating extraction target", err).WithArchive(a.ArchiveFilename)
	}
	if err := extractor.Extract(ctx, stagingPath, destDir); err != nil {
		return bytesTotal, err
	}
	return bytesTotal, nil
}

// downloadWithFallback tries successive mirrors for relativePath, retrying
// on transport failure and on checksum mismatch up to the configured
// bounds, switching mirrors between attempts with a constant backoff —
// a distinct layer from httpclient's own per-HTTP-attempt retry.
func (p *Pipeline) downloadWithFallback(ctx context.Context, a resolve.Archive, relativePath, stagingPath string, rec hashstore.Record) (int64, error) {
	maxAttempts := p.settings.MaxRetriesOnConnectionError + p.settings.MaxRetriesOnChecksumError
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewConstantBackOff(p.settings.RetryBackoff), uint64(maxAttempts),
	), ctx)

	var bytesTotal int64
	var lastErr error
	attempt := func() error {
		resp, mirrorURL, err := p.mirrors.FetchArchive(ctx, relativePath)
		if err != nil {
			lastErr = err
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			p.metrics.MirrorFallback.Inc()
			return err
		}
		defer resp.Body.Close()

		var onChunk func(int64)
		if p.reporter != nil {
			onChunk = func(downloaded int64) { p.reporter.ArchiveProgress(a, downloaded) }
		}
		n, digest, werr := streamAndHash(resp.Body, stagingPath, p.settings.HashAlgorithm, onChunk)
		p.metrics.BytesDownloaded.Add(float64(n))
		bytesTotal = n
		if werr != nil {
			lastErr = sdkerr.Wrap(sdkerr.NetworkError, "writing staged archive", werr).WithMirror(mirrorURL)
			return lastErr
		}

		if !p.settings.IgnoreHash {
			if !digest.Equal(rec.Digest) {
				p.metrics.ChecksumMismatch.Inc()
				os.Remove(stagingPath)
				lastErr = sdkerr.New(sdkerr.ChecksumError, "downloaded archive digest does not match trusted checksum").
					WithArchive(relativePath).WithMirror(mirrorURL)
				return lastErr
			}
		}
		return nil
	}

	if err := backoff.Retry(attempt, bo); err != nil {
		if ctx.Err() != nil {
			return bytesTotal, sdkerr.Wrap(sdkerr.Cancelled, "download cancelled", ctx.Err())
		}
		if lastErr != nil {
			return bytesTotal, lastErr
		}
		return bytesTotal, err
	}
	return bytesTotal, nil
}

func isRetryable(err error) bool {
	var se *sdkerr.Error
	if errors.As(err, &se) {
		return se.IsRetryable()
	}
	return true
}

// streamAndHash copies src to a file at stagingPath while computing its
// digest online, avoiding a second full read of the file just to verify it.
// onChunk, if non-nil, is called after each underlying Read with the
// cumulative byte count copied so far.
func streamAndHash(src io.Reader, stagingPath string, alg settings.HashAlgorithm, onChunk func(int64)) (int64, checksum.Digest, error) {
	f, err := os.Create(stagingPath)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	h, err := checksum.NewHash(alg)
	if err != nil {
		return 0, "", err
	}

	dst := io.MultiWriter(f, h)
	var n int64
	if onChunk == nil {
		n, err = io.Copy(dst, src)
	} else {
		n, err = io.Copy(dst, &progressReader{r: src, onChunk: onChunk})
	}
	if err != nil {
		return n, "", err
	}
	return n, checksum.Digest(fmt.Sprintf("%x", h.Sum(nil))), nil
}

// progressReader wraps an io.Reader and reports cumulative bytes read after
// every Read call, so streamAndHash can feed live download progress without
// buffering or re-reading the archive.
type progressReader struct {
	r       io.Reader
	onChunk func(int64)
	read    int64
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		p.onChunk(p.read)
	}
	return n, err
}

// fetchChecksumAdapter wraps MirrorSelector.FetchChecksum into the
// io.ReadCloser-returning callback signature hashstore.Store.Digest
// expects.
func (p *Pipeline) fetchChecksumAdapter() func(context.Context, string) (io.ReadCloser, string, error) {
	return func(ctx context.Context, relativePath string) (io.ReadCloser, string, error) {
		resp, mirrorURL, err := p.mirrors.FetchChecksum(ctx, relativePath)
		if err != nil {
			return nil, mirrorURL, err
		}
		return resp.Body, mirrorURL, nil
	}
}

// relativeToBase strips settings.BaseURL from an absolute archive URL the
// Resolver built, producing the mirror-relative path MirrorSelector expects
// ("qt6_670/qt.qt6.670.gcc_64/qtbase.7z"). An archive URL that does not
// carry the base prefix (a foreign mirror already embedded by the
// Resolver) is passed through unchanged.
func relativeToBase(archiveURL, baseURL string) string {
	trimmed := strings.TrimPrefix(archiveURL, strings.TrimSuffix(baseURL, "/"))
	return strings.TrimPrefix(trimmed, "/")
}

// checksumPath appends the algorithm's conventional suffix to the
// relative archive path, e.g. "....qtbase.7z" -> "....qtbase.7z.sha256".
func checksumPath(relativePath string, alg settings.HashAlgorithm) string {
	return relativePath + "." + string(alg)
}

// sanitizeFilename strips any directory components an archive filename
// might carry (archives are named flat in UpdatesDoc, but this guards
// against a malicious or malformed entry escaping the staging directory).
func sanitizeFilename(name string) string {
	return filepath.Base(name)
}
