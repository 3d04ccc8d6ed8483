// Package resolve computes a concrete, deduplicated InstallPlan from a
// user's intent (operation, target, version spec, module list) and a
// parsed Updates.xml document. It is the package selection engine: version
// matching, base-package identification, module short-name resolution, and
// transitive dependency closure all live here.
package resolve

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sdkget/sdkget/internal/metaindex"
	"github.com/sdkget/sdkget/internal/patch"
	"github.com/sdkget/sdkget/internal/qtmodule"
	"github.com/sdkget/sdkget/internal/sdkerr"
	"github.com/sdkget/sdkget/internal/target"
	"github.com/sdkget/sdkget/internal/version"
)

// Operation names a top-level install/list verb. The CLI's operation name
// reaches the Resolver verbatim; only these five are recognized.
type Operation string

const (
	OperationQt      Operation = "qt"
	OperationSrc     Operation = "src"
	OperationDoc     Operation = "doc"
	OperationExample Operation = "example"
	OperationTool    Operation = "tool"
)

// ModulesAll is the sentinel value meaning "every module the MetaIndex
// reports for this TargetKey/version", per spec.
const ModulesAll = "all"

// debugInfoShortName is the module whose archives overlap the base
// package's archive names, requiring the archives-subset filter even when
// the base itself isn't being filtered.
const debugInfoShortName = "debug_info"

// Request is the Resolver's sole input: user intent, fully assembled.
type Request struct {
	Operation Operation
	Target    target.Key

	// VersionConstraint is either an exact dotted version ("5.15.2"), a
	// range/prefix spec ("6.*", ">=6.2,<6.5"), or the literal "latest".
	VersionConstraint string

	// ToolName identifies which sibling package is the base for a tool
	// operation, where there is no single implicit base package the way
	// there is for qt/src/doc/example — tool repositories list several
	// independently-named tool packages side by side.
	ToolName string

	// Modules is the user-supplied module short-name list, in the order
	// given on the command line. May be []string{ModulesAll}.
	Modules []string

	// ArchivesSubset restricts which DownloadableArchives entries of the
	// base package (and of the debug_info module) are emitted. Empty means
	// "all archives of the base".
	ArchivesSubset []string

	// NoArchives suppresses emission of the base package's own archives
	// (used to install only modules without the base SDK).
	NoArchives bool

	// AutoDesktop additionally resolves the minimal desktop base package
	// needed for host tooling when Target.Kind is a mobile kind.
	AutoDesktop bool
}

// Archive is one file the Pipeline must download, verify, and extract.
// Uniquely identified by (PackageName, ArchiveFilename).
type Archive struct {
	PackageName     string
	ArchiveFilename string
	Version         string
	URL             string
	TargetSubdir    string
}

// key is the Archive deduplication identity.
func (a Archive) key() string {
	return a.PackageName + "\x00" + a.ArchiveFilename
}

// InstallPlan is the Resolver's output: an ordered, deduplicated Archive
// set, a resolved destination directory, and the Patcher actions to run
// after every archive has extracted successfully.
type InstallPlan struct {
	Destination  string
	Target       target.Key
	Version      version.Version
	Archives     []Archive
	PatchActions []patch.Action
}

// FolderURLFunc builds the absolute URL of the remote directory holding one
// TargetKey + version combination, e.g.
// "https://download.qt.io/online/qtsdkrepository/linux_x64/desktop/qt6_670".
// Supplied by the caller (the Installer facade) since it depends on
// Settings.BaseURL, which Resolver does not otherwise need to know about.
type FolderURLFunc func(t target.Key, v version.Version) string

// Resolver consults a MetaIndex to turn a Request into an InstallPlan.
type Resolver struct {
	index         *metaindex.Index
	folderURL     FolderURLFunc
	minModuleSize int64
}

// New builds a Resolver. minModuleSize excludes placeholder "empty"
// packages (see UncompressedSize) from "modules=all" and from dependency
// closure.
func New(index *metaindex.Index, folderURL FolderURLFunc, minModuleSize int64) *Resolver {
	return &Resolver{index: index, folderURL: folderURL, minModuleSize: minModuleSize}
}

// Resolve runs the full algorithm described in the package selection
// engine's design: version pick, folder derivation, UpdatesDoc fetch, base
// package identification, user-module resolution, "all" enumeration,
// transitive dependency closure, debug_info archive filtering, and
// auto-desktop sub-plan.
func (r *Resolver) Resolve(ctx context.Context, req Request, destination string) (InstallPlan, error) {
	v, err := r.resolveVersion(ctx, req)
	if err != nil {
		return InstallPlan{}, err
	}

	if err := checkArchRequired(req.Target, v); err != nil {
		return InstallPlan{}, err
	}

	folderURL := r.folderURL(req.Target, v)
	doc, err := r.index.FetchUpdates(ctx, folderURL)
	if err != nil {
		return InstallPlan{}, err
	}

	byName := make(map[string]metaindex.PackageUpdate, len(doc.Packages))
	for _, p := range doc.Packages {
		byName[p.Name] = p
	}

	base, baseFound := r.identifyBase(doc, req, v)
	if !baseFound {
		return InstallPlan{}, sdkerr.New(sdkerr.InputError,
			fmt.Sprintf("no base package found for %s %s", req.Target.String(), v.String()))
	}

	var plan []Archive
	seen := make(map[string]struct{})

	addArchives := func(pkg metaindex.PackageUpdate, subset []string, emitAllIfNoSubset bool) {
		filenames := pkg.Archives()
		switch {
		case len(subset) > 0:
			filenames = filterList(filenames, subset)
		case !emitAllIfNoSubset:
			filenames = nil
		}
		for _, fn := range filenames {
			a := Archive{
				PackageName:     pkg.Name,
				ArchiveFilename: fn,
				Version:         pkg.Version,
				URL:             folderURL + "/" + fn,
				TargetSubdir:    filepath.Join(v.String(), req.Target.Arch),
			}
			if _, dup := seen[a.key()]; dup {
				continue
			}
			seen[a.key()] = struct{}{}
			plan = append(plan, a)
		}
	}

	// Step 4: base package archives, unless suppressed.
	baseEmitted := false
	if !req.NoArchives {
		addArchives(base, req.ArchivesSubset, true)
		baseEmitted = true
	}

	// Steps 5-6: resolve user-requested modules, or enumerate "all".
	var moduleNames []string
	wantsAll := len(req.Modules) == 1 && req.Modules[0] == ModulesAll
	if wantsAll {
		for _, p := range doc.Packages {
			if p.Name == base.Name {
				continue
			}
			if !sizeOK(p, r.minModuleSize) {
				continue
			}
			moduleNames = append(moduleNames, qtmodule.ShortName(p.Name, v.Major()))
		}
	} else {
		moduleNames = req.Modules
	}

	var moduleQueue []string // fully-qualified names, in resolution order
	for _, short := range moduleNames {
		pkg, ok := findModule(doc, base.Name, short, v.Major())
		if !ok {
			return InstallPlan{}, sdkerr.New(sdkerr.InputError,
				fmt.Sprintf("module %q not found; available: %s", short, availableModules(doc, base.Name, v.Major())))
		}
		moduleQueue = append(moduleQueue, pkg.Name)
	}

	// Step 7: transitive dependency closure, visited-set guarded so cycles
	// and redundant edges (both explicitly expected in UpdatesDoc) cannot
	// cause infinite recursion or duplicate emission.
	visited := make(map[string]struct{})
	var walk func(name string)
	walk = func(name string) {
		if _, ok := visited[name]; ok {
			return
		}
		visited[name] = struct{}{}
		if name == base.Name {
			return // the base package's archives are emitted (or suppressed) by step 4 only
		}
		pkg, ok := byName[name]
		if !ok {
			return
		}
		if !sizeOK(pkg, r.minModuleSize) {
			return
		}
		short := qtmodule.ShortName(pkg.Name, v.Major())
		// debug_info archives share filenames with the base package's own
		// archives; without an explicit archives-subset there is no way to
		// tell which debug_info files the user actually wants, so none are
		// emitted rather than pulling the entire (large) debug set.
		emitAllIfNoSubset := short != debugInfoShortName
		var subset []string
		if !emitAllIfNoSubset {
			subset = req.ArchivesSubset
		}
		addArchives(pkg, subset, emitAllIfNoSubset)
		for _, dep := range pkg.DependencyNames() {
			walk(dep)
		}
	}
	for _, name := range moduleQueue {
		walk(name)
	}

	// Step 9: auto-desktop sub-plan for mobile targets.
	if req.AutoDesktop && isMobile(req.Target.Kind) {
		desktopArchives, err := r.autoDesktopArchives(ctx, req.Target.Host, v)
		if err != nil {
			return InstallPlan{}, err
		}
		for _, a := range desktopArchives {
			if _, dup := seen[a.key()]; dup {
				continue
			}
			seen[a.key()] = struct{}{}
			plan = append(plan, a)
		}
	}

	out := InstallPlan{Destination: destination, Target: req.Target, Version: v, Archives: plan}
	if req.Operation == OperationQt && baseEmitted {
		out.PatchActions = patch.DefaultActions()
	}
	return out, nil
}

func sizeOK(p metaindex.PackageUpdate, minSize int64) bool {
	if minSize <= 0 {
		return true
	}
	return p.UpdateFile.UncompressedSize >= minSize
}

func filterList(have, subset []string) []string {
	want := make(map[string]struct{}, len(subset))
	for _, s := range subset {
		want[s] = struct{}{}
	}
	var out []string
	for _, h := range have {
		if _, ok := want[h]; ok {
			out = append(out, h)
		}
	}
	return out
}

func isMobile(k target.Kind) bool {
	return k == target.KindAndroid || k == target.KindIOS
}

// checkArchRequired enforces the spec's ArchRequired failure: SDK major 6
// and mobile targets must name an arch to locate the remote subtree. In
// practice target.Key.Validate already requires Arch to be non-empty, so
// this only fires for a Key built by bypassing that constructor (tests, or
// a future caller that relaxes it).
func checkArchRequired(t target.Key, v version.Version) error {
	if t.Arch != "" {
		return nil
	}
	if v.Major() >= 6 || isMobile(t.Kind) {
		return sdkerr.New(sdkerr.InputError, "an arch must be specified for SDK major 6 and mobile targets")
	}
	return nil
}

// resolveVersion picks the concrete Version named or matched by the
// request, fetching the directory listing only when a spec/"latest" needs
// resolving against what is actually published.
func (r *Resolver) resolveVersion(ctx context.Context, req Request) (version.Version, error) {
	if req.VersionConstraint == "" {
		return version.Version{}, sdkerr.New(sdkerr.InputError, "a version or version spec is required")
	}
	if exact, err := version.Parse(req.VersionConstraint); err == nil && !isRangeLike(req.VersionConstraint) {
		return exact, nil
	}

	constraint := req.VersionConstraint
	if constraint == "latest" {
		constraint = "*"
	}
	spec, err := version.ParseSpec(constraint)
	if err != nil {
		return version.Version{}, sdkerr.Wrap(sdkerr.InputError, "invalid version spec", err)
	}

	listingURL := r.folderURL(req.Target, version.Version{})
	candidates, err := r.index.ListVersions(ctx, listingURL)
	if err != nil {
		return version.Version{}, err
	}
	latest, ok := spec.Latest(candidates)
	if !ok {
		return version.Version{}, sdkerr.New(sdkerr.InputError, fmt.Sprintf("no published version matches %q", req.VersionConstraint))
	}
	return latest, nil
}

// isRangeLike reports whether a version constraint string uses spec syntax
// (range operators or a glob) rather than naming one exact release.
func isRangeLike(s string) bool {
	return strings.ContainsAny(s, "*<>^~") || strings.Contains(s, ",")
}

// identifyBase finds the package whose Name has no module short-name
// segment: for "qt", the pattern is "qt.qt{major}.{folderToken}[.{arch}]";
// for src/doc/example, upstream appends a fixed suffix instead of an arch;
// for "tool", there is no derivable pattern, so ToolName names it exactly.
func (r *Resolver) identifyBase(doc metaindex.UpdatesDoc, req Request, v version.Version) (metaindex.PackageUpdate, bool) {
	if req.Operation == OperationTool {
		for _, p := range doc.Packages {
			if p.Name == req.ToolName {
				return p, true
			}
		}
		return metaindex.PackageUpdate{}, false
	}

	want := basePackageName(req.Operation, v, req.Target.Arch)
	for _, p := range doc.Packages {
		if p.Name == want {
			return p, true
		}
	}
	return metaindex.PackageUpdate{}, false
}

func basePackageName(op Operation, v version.Version, arch string) string {
	prefix := fmt.Sprintf("qt.qt%d.%s", v.Major(), v.FolderToken())
	switch op {
	case OperationSrc:
		return prefix + ".src"
	case OperationDoc:
		return prefix + ".doc"
	case OperationExample:
		return prefix + ".examples"
	default: // OperationQt
		if arch == "" {
			return prefix
		}
		return prefix + "." + arch
	}
}

// findModule resolves a user-supplied module short name against every
// non-base package in doc, via qtmodule.ShortName.
func findModule(doc metaindex.UpdatesDoc, baseName, short string, major uint64) (metaindex.PackageUpdate, bool) {
	for _, p := range doc.Packages {
		if p.Name == baseName {
			continue
		}
		if qtmodule.ShortName(p.Name, major) == short {
			return p, true
		}
	}
	return metaindex.PackageUpdate{}, false
}

func availableModules(doc metaindex.UpdatesDoc, baseName string, major uint64) string {
	var names []string
	for _, p := range doc.Packages {
		if p.Name == baseName {
			continue
		}
		names = append(names, qtmodule.ShortName(p.Name, major))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// desktopArch is a fixed, per-host default arch used only to locate the
// minimal desktop base package for mobile "auto-desktop" host tooling.
// Real installs often have several desktop arches published per host; a
// user who needs a specific one should install the desktop SDK explicitly
// instead of relying on auto-desktop.
var desktopArch = map[target.Host]string{
	target.HostLinux:   "gcc_64",
	target.HostMac:     "clang_64",
	target.HostWindows: "win64_mingw81",
}

// DefaultDesktopArch exposes the fixed per-host auto-desktop arch so the
// Installer facade can locate where that sub-plan's archives land on disk
// (for ActionTargetQtConf's HostPrefix) without duplicating the table.
func DefaultDesktopArch(host target.Host) (string, bool) {
	arch, ok := desktopArch[host]
	return arch, ok
}

// autoDesktopArchives resolves the "qtbase" (and, for SDK 6, "qtdeclarative"
// for host tooling) archives of the minimal desktop install matching the
// running host, for mobile operations that requested auto-desktop.
func (r *Resolver) autoDesktopArchives(ctx context.Context, host target.Host, v version.Version) ([]Archive, error) {
	arch, ok := desktopArch[host]
	if !ok {
		return nil, sdkerr.New(sdkerr.InputError, fmt.Sprintf("no default desktop arch known for host %q", host))
	}
	desktopKey, err := target.New(host, target.KindDesktop, arch)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.InputError, "deriving auto-desktop target", err)
	}

	folderURL := r.folderURL(desktopKey, v)
	doc, err := r.index.FetchUpdates(ctx, folderURL)
	if err != nil {
		return nil, err
	}
	baseName := basePackageName(OperationQt, v, arch)

	var wantShorts []string
	if v.Major() >= 6 {
		wantShorts = []string{"qtdeclarative"}
	}

	var out []Archive
	for _, p := range doc.Packages {
		if p.Name == baseName {
			for _, fn := range p.Archives() {
				if !isQtBaseArchive(fn) {
					continue // base package also lists icu, debug symbols, etc.; host tooling only needs qtbase itself
				}
				out = append(out, Archive{PackageName: p.Name, ArchiveFilename: fn, Version: p.Version, URL: folderURL + "/" + fn, TargetSubdir: filepath.Join(v.String(), arch)})
			}
			continue
		}
		short := qtmodule.ShortName(p.Name, v.Major())
		for _, want := range wantShorts {
			if short == want {
				for _, fn := range p.Archives() {
					out = append(out, Archive{PackageName: p.Name, ArchiveFilename: fn, Version: p.Version, URL: folderURL + "/" + fn, TargetSubdir: filepath.Join(v.String(), arch)})
				}
			}
		}
	}
	return out, nil
}

// isQtBaseArchive reports whether fn is one of the base package's own
// "qtbase" archive files rather than a sibling shipped in the same package
// (icu, debug symbols, ...). Archive filenames carry a platform-specific
// suffix (e.g. "qtbase-Linux-RHEL_8_6-GCC-Linux-RHEL_8_6-X86_64.7z"), so the
// match is a "qtbase" prefix followed by the start of that suffix or an
// extension, not exact equality.
func isQtBaseArchive(fn string) bool {
	const prefix = "qtbase"
	if !strings.HasPrefix(fn, prefix) {
		return false
	}
	return len(fn) == len(prefix) || fn[len(prefix)] == '.' || fn[len(prefix)] == '-' || fn[len(prefix)] == '_'
}
