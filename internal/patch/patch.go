// Package patch rewrites absolute-path tokens in select installed files so
// a freshly extracted SDK tree works from wherever it landed, without
// requiring the files to be regenerated from source.
package patch

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdkget/sdkget/internal/sdkerr"
)

// Action names one rewrite step the Patcher can perform against an
// installed tree. The Resolver attaches the ordered list it wants applied
// to an InstallPlan; Patcher.Apply executes them.
type Action string

const (
	ActionQmakeBinary    Action = "qmake_binary"
	ActionQtConf         Action = "qt_conf"
	ActionQConfigPri     Action = "qconfig_pri"
	ActionCoreLibrary    Action = "core_library"
	ActionPkgConfig      Action = "pkgconfig"
	ActionLibtoolArchive Action = "libtool_archive"
	ActionTargetQtConf   Action = "target_qt_conf"
)

// DefaultActions is the fixed list of rewrites an "install-qt" operation
// attaches to its InstallPlan, in apply order.
func DefaultActions() []Action {
	return []Action{
		ActionQmakeBinary,
		ActionQtConf,
		ActionQConfigPri,
		ActionCoreLibrary,
		ActionPkgConfig,
		ActionLibtoolArchive,
		ActionTargetQtConf,
	}
}

// Patcher applies Actions against one installed prefix directory.
type Patcher struct {
	// Prefix is the absolute path the installed tree now lives at — the
	// value every rewritten token/placeholder is set to.
	Prefix string

	// HostPrefix is the absolute path of the corresponding desktop
	// install, used only by ActionTargetQtConf for Android targets.
	HostPrefix string

	// IsAndroid gates ActionTargetQtConf (SDK 6 Android only).
	IsAndroid bool

	// Major is the Qt major version, gating ActionCoreLibrary (pre-5.14
	// only) and ActionTargetQtConf (SDK 6 only).
	Major uint64
	Minor uint64
}

// New builds a Patcher for an install rooted at prefix.
func New(prefix string) *Patcher {
	return &Patcher{Prefix: prefix}
}

// Apply runs each action against the installed tree in order. A missing
// optional target file is logged and skipped; a missing qmake binary is
// fatal, since an "install-qt" operation without qmake isn't usable.
func (p *Patcher) Apply(actions []Action) error {
	for _, a := range actions {
		var err error
		switch a {
		case ActionQmakeBinary:
			err = p.patchQmakeBinary()
		case ActionQtConf:
			err = p.patchQtConf()
		case ActionQConfigPri:
			err = p.patchQConfigPri()
		case ActionCoreLibrary:
			err = p.patchCoreLibrary()
		case ActionPkgConfig:
			err = p.patchPkgConfig()
		case ActionLibtoolArchive:
			err = p.patchLibtoolArchives()
		case ActionTargetQtConf:
			err = p.patchTargetQtConf()
		default:
			err = sdkerr.New(sdkerr.PatchError, "unknown patch action: "+string(a))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// skipMissing logs and returns nil for a missing optional file, or the
// original error for anything else.
func skipMissing(path string, err error) error {
	if os.IsNotExist(err) {
		slog.Debug("patch target missing, skipping", "path", path)
		return nil
	}
	return sdkerr.Wrap(sdkerr.PatchError, "patching "+path, err)
}

func (p *Patcher) patchQtConf() error {
	path := filepath.Join(p.Prefix, "bin", "qt.conf")
	content := fmt.Sprintf("[Paths]\nPrefix=..\n")
	existing, err := os.ReadFile(path)
	if err == nil && strings.Contains(string(existing), "[Paths]") {
		return nil // idempotent: already patched
	}
	if err != nil && !os.IsNotExist(err) {
		return sdkerr.Wrap(sdkerr.PatchError, "reading qt.conf", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return sdkerr.Wrap(sdkerr.PatchError, "creating bin directory", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return sdkerr.Wrap(sdkerr.PatchError, "writing qt.conf", err)
	}
	return nil
}

func (p *Patcher) patchQConfigPri() error {
	path := filepath.Join(p.Prefix, "mkspecs", "qconfig.pri")
	data, err := os.ReadFile(path)
	if err != nil {
		return skipMissing(path, err)
	}
	lines := strings.Split(string(data), "\n")
	changed := false
	for i, line := range lines {
		switch {
		case strings.HasPrefix(strings.TrimSpace(line), "QT_EDITION"):
			if lines[i] != "QT_EDITION = OpenSource" {
				lines[i] = "QT_EDITION = OpenSource"
				changed = true
			}
		case strings.HasPrefix(strings.TrimSpace(line), "QT_LICHECK"):
			if lines[i] != "QT_LICHECK =" {
				lines[i] = "QT_LICHECK ="
				changed = true
			}
		}
	}
	if !changed {
		return nil
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644)
}

func (p *Patcher) patchPkgConfig() error {
	dir := filepath.Join(p.Prefix, "lib", "pkgconfig")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return skipMissing(dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pc") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := rewritePlaceholderPrefix(path, p.Prefix); err != nil {
			return sdkerr.Wrap(sdkerr.PatchError, "patching "+path, err)
		}
	}
	return nil
}

func (p *Patcher) patchLibtoolArchives() error {
	dir := filepath.Join(p.Prefix, "lib")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return skipMissing(dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".la") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := rewritePlaceholderPrefix(path, p.Prefix); err != nil {
			return sdkerr.Wrap(sdkerr.PatchError, "patching "+path, err)
		}
	}
	return nil
}

func (p *Patcher) patchCoreLibrary() error {
	if p.Major > 5 || (p.Major == 5 && p.Minor >= 14) {
		return nil // only pre-5.14 embeds an absolute prefix string
	}
	candidates := []string{
		filepath.Join(p.Prefix, "lib", "libQt5Core.so.5.0.0"),
		filepath.Join(p.Prefix, "lib", "QtCore.framework", "QtCore"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := rewritePlaceholderPrefix(path, p.Prefix); err != nil {
			return sdkerr.Wrap(sdkerr.PatchError, "patching "+path, err)
		}
	}
	return nil
}

func (p *Patcher) patchTargetQtConf() error {
	if !p.IsAndroid || p.Major < 6 {
		return nil
	}
	path := filepath.Join(p.Prefix, "bin", "target_qt.conf")
	data, err := os.ReadFile(path)
	if err != nil {
		return skipMissing(path, err)
	}
	lines := strings.Split(string(data), "\n")
	changed := false
	found := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "HostPrefix") {
			found = true
			want := "HostPrefix=" + p.HostPrefix
			if lines[i] != want {
				lines[i] = want
				changed = true
			}
		}
	}
	if !found {
		lines = append(lines, "HostPrefix="+p.HostPrefix)
		changed = true
	}
	if !changed {
		return nil
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644)
}

// rewritePlaceholderPrefix replaces every occurrence of the literal token
// "$$INSTALL_PREFIX$$" (the build-time placeholder these text files ship
// with) with the real install prefix. Idempotent: once the placeholder is
// gone, re-running finds nothing to replace.
func rewritePlaceholderPrefix(path, prefix string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	const placeholder = "$$INSTALL_PREFIX$$"
	if !bytes.Contains(data, []byte(placeholder)) {
		return nil
	}
	rewritten := bytes.ReplaceAll(data, []byte(placeholder), []byte(prefix))
	return os.WriteFile(path, rewritten, 0o644)
}
