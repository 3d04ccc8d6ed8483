// Package target models the (host, target, arch) selector a user names on
// the command line and its derived folder name in the upstream repository
// layout, e.g. linux/desktop/gcc_64 -> "gcc_64".
package target

import "fmt"

// Host is the operating system sdkget itself runs on.
type Host string

const (
	HostLinux   Host = "linux"
	HostMac     Host = "mac"
	HostWindows Host = "windows"
)

// Kind is the device class being targeted.
type Kind string

const (
	KindDesktop Kind = "desktop"
	KindAndroid Kind = "android"
	KindIOS     Kind = "ios"
	KindWinRT   Kind = "winrt"
)

// Key uniquely selects one arch tree in the upstream repository for a given
// host and version. Arch is the compiler/ABI folder name, e.g. "gcc_64",
// "win64_mingw81", "android_arm64_v8a".
type Key struct {
	Host Host
	Kind Kind
	Arch string
}

// New validates and constructs a Key. The two cross-field invariants are
// enforced here rather than left to the resolver: ios targets only exist on
// a mac host, and winrt targets only exist on a windows host.
func New(host Host, kind Kind, arch string) (Key, error) {
	k := Key{Host: host, Kind: kind, Arch: arch}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// Validate reports the invariant violations in Key, if any.
func (k Key) Validate() error {
	if k.Arch == "" {
		return fmt.Errorf("target: arch must not be empty")
	}
	switch k.Kind {
	case KindIOS:
		if k.Host != HostMac {
			return fmt.Errorf("target: ios target is only valid on a mac host, got %q", k.Host)
		}
	case KindWinRT:
		if k.Host != HostWindows {
			return fmt.Errorf("target: winrt target is only valid on a windows host, got %q", k.Host)
		}
	case KindDesktop, KindAndroid:
		// valid on any host
	default:
		return fmt.Errorf("target: unknown target kind %q", k.Kind)
	}
	return nil
}

// FolderName returns the upstream repository's directory-index segment for
// this key, e.g. "linux_x64", the <host>_<targetfolder> convention used to
// locate {base_url}/online/qtsdkrepository/<folder>/.
func (k Key) FolderName() string {
	return fmt.Sprintf("%s_%s", k.Host, k.Kind)
}

// String renders the key the way a user types it: "linux desktop gcc_64".
func (k Key) String() string {
	return fmt.Sprintf("%s %s %s", k.Host, k.Kind, k.Arch)
}

// HostHasDesktop reports whether the running host can provide the minimal
// desktop base package needed for mobile "auto-desktop" host tooling.
func HostHasDesktop(h Host) bool {
	switch h {
	case HostLinux, HostMac, HostWindows:
		return true
	default:
		return false
	}
}
