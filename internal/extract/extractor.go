// Package extract expands a verified, compressed archive into a directory.
// The spec names two expected implementations — an in-process library and
// an out-of-process command — and that split maps directly onto this
// domain: the upstream repository's archives are overwhelmingly 7-zip, a
// format none of the retrieved example repos' dependency graphs carry a
// library for, so 7z delegates to an external_extractor_command, while the
// tar.gz/tar.xz/zip families the teacher already handles run in-process.
package extract

import (
	"archive/tar"
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/sdkget/sdkget/internal/sdkerr"
)

// ArchiveType names a compression container.
type ArchiveType string

const (
	ArchiveTypeSevenZip ArchiveType = "7z"
	ArchiveTypeTarGz    ArchiveType = "tar.gz"
	ArchiveTypeTarXz    ArchiveType = "tar.xz"
	ArchiveTypeZip      ArchiveType = "zip"
)

// DetectArchiveType infers the container format from a filename, matching
// compound extensions before single ones.
func DetectArchiveType(filename string) ArchiveType {
	lower := strings.ToLower(filepath.Base(filename))
	switch {
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		return ArchiveTypeTarGz
	case strings.HasSuffix(lower, ".tar.xz") || strings.HasSuffix(lower, ".txz"):
		return ArchiveTypeTarXz
	case strings.HasSuffix(lower, ".zip"):
		return ArchiveTypeZip
	case strings.HasSuffix(lower, ".7z"):
		return ArchiveTypeSevenZip
	default:
		return ""
	}
}

// Extractor expands an archive file at archivePath into destDir.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string) error
}

// New builds an Extractor for archiveType. externalCommand is the
// Settings.ExternalExtractorCommand value, a whitespace-separated command
// line in which the tokens "{archive}" and "{dest}" are replaced by the
// archive path and destination directory; it is required for
// ArchiveTypeSevenZip and ignored otherwise.
func New(archiveType ArchiveType, externalCommand string) (Extractor, error) {
	switch archiveType {
	case ArchiveTypeTarGz:
		return tarGzExtractor{}, nil
	case ArchiveTypeTarXz:
		return tarXzExtractor{}, nil
	case ArchiveTypeZip:
		return zipExtractor{}, nil
	case ArchiveTypeSevenZip:
		if externalCommand == "" {
			return nil, sdkerr.New(sdkerr.InputError, "7z archives require external_extractor_command to be configured")
		}
		return externalCommandExtractor{template: externalCommand}, nil
	default:
		return nil, sdkerr.New(sdkerr.InputError, fmt.Sprintf("unsupported archive type %q", archiveType))
	}
}

type tarGzExtractor struct{}

func (tarGzExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return sdkerr.Wrap(sdkerr.ExtractError, "opening archive", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return sdkerr.Wrap(sdkerr.ExtractError, "corrupt gzip stream", err)
	}
	defer gr.Close()

	return extractTar(ctx, gr, destDir)
}

type tarXzExtractor struct{}

func (tarXzExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return sdkerr.Wrap(sdkerr.ExtractError, "opening archive", err)
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return sdkerr.Wrap(sdkerr.ExtractError, "corrupt xz stream", err)
	}
	return extractTar(ctx, xr, destDir)
}

func extractTar(ctx context.Context, r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return sdkerr.Wrap(sdkerr.Cancelled, "extraction cancelled", err)
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return sdkerr.Wrap(sdkerr.ExtractError, "reading tar header", err)
		}

		target := filepath.Join(destDir, hdr.Name)
		if !isInsideDir(destDir, target) {
			return sdkerr.New(sdkerr.ExtractError, "archive entry escapes destination: "+hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return sdkerr.Wrap(sdkerr.ExtractError, "creating directory", err)
			}
		case tar.TypeReg:
			if err := writeFile(tr, target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			linkTarget := filepath.Join(filepath.Dir(target), hdr.Linkname)
			if !isInsideDir(destDir, linkTarget) {
				return sdkerr.New(sdkerr.ExtractError, "symlink escapes destination: "+hdr.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return sdkerr.Wrap(sdkerr.ExtractError, "creating directory for symlink", err)
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return sdkerr.Wrap(sdkerr.ExtractError, "creating symlink", err)
			}
		}
	}
}

type zipExtractor struct{}

func (zipExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return sdkerr.Wrap(sdkerr.ExtractError, "corrupt zip archive", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return sdkerr.Wrap(sdkerr.Cancelled, "extraction cancelled", err)
		}
		if isOSMetadataPath(f.Name) {
			continue
		}

		target := filepath.Join(destDir, f.Name)
		if !isInsideDir(destDir, target) {
			return sdkerr.New(sdkerr.ExtractError, "archive entry escapes destination: "+f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, f.Mode()); err != nil {
				return sdkerr.Wrap(sdkerr.ExtractError, "creating directory", err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return sdkerr.Wrap(sdkerr.ExtractError, "opening archive entry", err)
		}
		err = writeFile(rc, target, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// externalCommandExtractor shells out to an external extractor binary (e.g.
// 7z, 7za) per the spec's out-of-process Extractor implementation.
type externalCommandExtractor struct {
	template string
}

func (e externalCommandExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return sdkerr.Wrap(sdkerr.ExtractError, "creating destination directory", err)
	}

	parts := strings.Fields(e.template)
	if len(parts) == 0 {
		return sdkerr.New(sdkerr.ExtractError, "external_extractor_command is empty")
	}
	args := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		p = strings.ReplaceAll(p, "{archive}", archivePath)
		p = strings.ReplaceAll(p, "{dest}", destDir)
		args = append(args, p)
	}

	cmd := exec.CommandContext(ctx, parts[0], args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	slog.Debug("running external extractor", "command", parts[0], "args", args)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return sdkerr.Wrap(sdkerr.Cancelled, "external extractor cancelled", ctx.Err())
		}
		return sdkerr.Wrap(sdkerr.ExtractError, "external extractor failed: "+stderr.String(), err)
	}
	return nil
}

func writeFile(r io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return sdkerr.Wrap(sdkerr.ExtractError, "creating parent directory", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		if os.IsPermission(err) {
			return sdkerr.Wrap(sdkerr.ExtractError, "permission denied creating file", err)
		}
		return sdkerr.Wrap(sdkerr.ExtractError, "creating file", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		if strings.Contains(err.Error(), "no space left on device") {
			return sdkerr.Wrap(sdkerr.ExtractError, "disk full", err)
		}
		return sdkerr.Wrap(sdkerr.ExtractError, "writing file", err)
	}
	return nil
}

func isOSMetadataPath(name string) bool {
	return name == "__MACOSX" || strings.HasPrefix(name, "__MACOSX/")
}

// isInsideDir reports whether target resolves to a path inside baseDir,
// rejecting ".." escapes but allowing legitimate dotfile entries (unlike a
// naive check against a leading "." in the relative path).
func isInsideDir(baseDir, target string) bool {
	rel, err := filepath.Rel(baseDir, target)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
