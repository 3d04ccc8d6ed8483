package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/sdkget/sdkget/internal/resolve"
)

// progressReporter implements pipeline.Reporter, rendering one mpb bar per
// archive on a TTY and falling back to plain start/done lines otherwise.
type progressReporter struct {
	mu       sync.Mutex
	w        io.Writer
	isTTY    bool
	style    *outputStyle
	progress *mpb.Progress
	bars     map[string]*mpb.Bar
}

func newProgressReporter(w io.Writer, style *outputStyle) *progressReporter {
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	pr := &progressReporter{w: w, isTTY: isTTY, style: style, bars: make(map[string]*mpb.Bar)}
	if isTTY {
		pr.progress = mpb.New(mpb.WithOutput(w), mpb.WithWidth(40))
	}
	return pr
}

func (pr *progressReporter) key(a resolve.Archive) string {
	return a.PackageName + "/" + a.ArchiveFilename
}

func (pr *progressReporter) ArchiveStarted(a resolve.Archive) {
	if !pr.isTTY {
		fmt.Fprintf(pr.w, "  %s %s\n", pr.style.path.Sprint(a.PackageName), a.ArchiveFilename)
		return
	}
	pr.mu.Lock()
	defer pr.mu.Unlock()
	bar := pr.progress.AddBar(0,
		mpb.BarFillerClearOnComplete(),
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("  %s ", pr.style.path.Sprint(a.ArchiveFilename)), decor.WC{W: 30, C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f"),
			decor.OnComplete(decor.Name(""), " done"),
		),
	)
	pr.bars[pr.key(a)] = bar
}

func (pr *progressReporter) ArchiveProgress(a resolve.Archive, downloaded int64) {
	if !pr.isTTY {
		return
	}
	pr.mu.Lock()
	bar, ok := pr.bars[pr.key(a)]
	pr.mu.Unlock()
	if !ok {
		return
	}
	bar.SetCurrent(downloaded)
}

func (pr *progressReporter) ArchiveDone(a resolve.Archive, err error) {
	if !pr.isTTY {
		if err != nil {
			fmt.Fprintf(pr.w, "  %s %s: %v\n", pr.style.failMark, a.ArchiveFilename, err)
		} else {
			fmt.Fprintf(pr.w, "  %s %s\n", pr.style.successMark, a.ArchiveFilename)
		}
		return
	}
	pr.mu.Lock()
	bar, ok := pr.bars[pr.key(a)]
	delete(pr.bars, pr.key(a))
	pr.mu.Unlock()
	if !ok {
		return
	}
	if err != nil {
		bar.Abort(true)
		return
	}
	bar.SetTotal(bar.Current(), true)
}

// Wait blocks until every bar has finished rendering; call after Pipeline.Run
// returns so the process doesn't exit mid-draw.
func (pr *progressReporter) Wait() {
	if pr.progress != nil {
		pr.progress.Wait()
	}
}
