// Package installer is the facade gluing the Resolver, the Pipeline, and
// the Patcher into one call per top-level operation (install-qt,
// install-src, install-doc, install-example, install-tool, and the
// list-* family). cmd/sdkget is the only caller; everything it needs to
// reach the core with is a Request and a destination directory.
package installer

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sdkget/sdkget/internal/hashstore"
	"github.com/sdkget/sdkget/internal/metaindex"
	"github.com/sdkget/sdkget/internal/metrics"
	"github.com/sdkget/sdkget/internal/patch"
	"github.com/sdkget/sdkget/internal/pipeline"
	"github.com/sdkget/sdkget/internal/qtmodule"
	"github.com/sdkget/sdkget/internal/resolve"
	"github.com/sdkget/sdkget/internal/settings"
	"github.com/sdkget/sdkget/internal/target"
	"github.com/sdkget/sdkget/internal/version"
)

// Facade owns one Resolver and one Pipeline, built once from Settings and
// shared across every operation the process runs.
type Facade struct {
	settings settings.Settings
	index    *metaindex.Index
	resolver *resolve.Resolver
	pipe     *pipeline.Pipeline
}

// New builds a Facade. fetcher serves directory-index pages and
// Updates.xml (internal/httpclient.Client in production); mirrors serves
// archive bytes and checksums (internal/mirror.Selector in production).
// stagingDir and lockFilePath are passed straight through to the Pipeline.
func New(s settings.Settings, fetcher metaindex.Fetcher, mirrors pipeline.MirrorSelector, stagingDir, lockFilePath string) *Facade {
	hashes := hashstore.New(s)
	idx := metaindex.New(fetcher)
	if !s.IgnoreHash {
		idx = idx.WithHashVerification(hashes, mirrors, s.HashAlgorithm, s.BaseURL)
	}
	resolver := resolve.New(idx, folderURLFunc(s), s.MinModuleSize)
	pipe := pipeline.New(s, mirrors, hashes, metrics.New(), stagingDir, lockFilePath)
	return &Facade{settings: s, index: idx, resolver: resolver, pipe: pipe}
}

// folderURLFunc derives the upstream directory-index URL for a TargetKey
// and Version from Settings.BaseURL, per the remote repository layout
// "{base}/online/qtsdkrepository/{host_target_folder}/{folder}". An empty
// Version asks for the target's version-listing page rather than one
// version's own folder.
func folderURLFunc(s settings.Settings) resolve.FolderURLFunc {
	return func(t target.Key, v version.Version) string {
		base := strings.TrimSuffix(s.BaseURL, "/") + "/online/qtsdkrepository/" + t.FolderName()
		if v.String() == "" {
			return base
		}
		return base + "/qt" + strconv.FormatUint(v.Major(), 10) + "_" + v.FolderToken()
	}
}

// WithReporter attaches a Pipeline progress Reporter and returns the Facade
// for chaining, so cmd/sdkget can wire its progress bars before the first
// Install call.
func (f *Facade) WithReporter(r pipeline.Reporter) *Facade {
	f.pipe.WithReporter(r)
	return f
}

// Outcome is the result of a completed (non-dry-run) install: the plan
// that was executed, one Result per archive, and the Patcher error, if
// patching ran and failed.
type Outcome struct {
	Plan        resolve.InstallPlan
	Results     []pipeline.Result
	PatchResult error
}

// Resolve computes the InstallPlan for req without downloading anything.
// Used directly by --dry-run, which only needs the plan's shape and never
// runs the Pipeline; the list-* operations use ListVersions and
// ListModules below instead.
func (f *Facade) Resolve(ctx context.Context, req resolve.Request, destination string) (resolve.InstallPlan, error) {
	return f.resolver.Resolve(ctx, req, destination)
}

// ListVersions returns every version published for a TargetKey, for the
// list-qt/list-tool/list-src/list-doc/list-example operations.
func (f *Facade) ListVersions(ctx context.Context, t target.Key) ([]version.Version, error) {
	listingURL := folderURLFunc(f.settings)(t, version.Version{})
	return f.index.ListVersions(ctx, listingURL)
}

// ListModules returns every module short name published for a TargetKey at
// version v, for a "list-qt --version" style query. The qt base package
// itself ("qt.qt{major}.{token}.{arch}") is not listed.
func (f *Facade) ListModules(ctx context.Context, t target.Key, v version.Version) ([]string, error) {
	folderURL := folderURLFunc(f.settings)(t, v)
	doc, err := f.index.FetchUpdates(ctx, folderURL)
	if err != nil {
		return nil, err
	}
	base := "qt.qt" + strconv.FormatUint(v.Major(), 10) + "." + v.FolderToken() + "." + t.Arch
	var names []string
	for _, p := range doc.Packages {
		if p.Name == base {
			continue
		}
		names = append(names, qtmodule.ShortName(p.Name, v.Major()))
	}
	return names, nil
}

// Install resolves req, runs the Pipeline over the resulting plan, and —
// for a "qt" operation whose plan actually carries the base package's own
// archives — applies the default Patcher actions against prefix
// afterward. A dry-run caller should call Resolve directly instead.
func (f *Facade) Install(ctx context.Context, req resolve.Request, destination, prefix string) (Outcome, error) {
	plan, err := f.resolver.Resolve(ctx, req, destination)
	if err != nil {
		return Outcome{}, err
	}

	results, runErr := f.pipe.Run(ctx, plan)
	out := Outcome{Plan: plan, Results: results}
	if runErr != nil {
		return out, runErr
	}

	if len(plan.PatchActions) == 0 {
		return out, nil
	}
	p := &patch.Patcher{
		Prefix:     prefix,
		HostPrefix: autoDesktopPrefix(prefix, plan.Target.Host),
		IsAndroid:  plan.Target.Kind == target.KindAndroid,
		Major:      plan.Version.Major(),
		Minor:      plan.Version.Minor(),
	}
	if err := p.Apply(plan.PatchActions); err != nil {
		out.PatchResult = err
		return out, err
	}
	return out, nil
}

// autoDesktopPrefix derives the auto-desktop install's prefix for
// ActionTargetQtConf's HostPrefix field, by swapping the mobile install's
// arch folder for the fixed per-host desktop arch, per the persisted
// layout "{outputdir}/{version}/{arch}". Empty when no default desktop
// arch is known for the host (ActionTargetQtConf itself is a no-op unless
// IsAndroid, so this only matters on that path).
func autoDesktopPrefix(mobilePrefix string, host target.Host) string {
	arch, ok := resolve.DefaultDesktopArch(host)
	if !ok {
		return ""
	}
	return filepath.Join(filepath.Dir(mobilePrefix), arch)
}
