package resolve_test

import (
	"bytes"
	"context"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sdkget/sdkget/internal/metaindex"
	"github.com/sdkget/sdkget/internal/resolve"
	"github.com/sdkget/sdkget/internal/target"
	"github.com/sdkget/sdkget/internal/version"
)

type fakeFetcher struct {
	pages map[string]string
}

func (f fakeFetcher) Get(_ context.Context, url string) (*http.Response, error) {
	body, ok := f.pages[url]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader([]byte(body)))}, nil
}

const listingURL = "https://mirror.example/linux_desktop"
const folder670 = "https://mirror.example/linux_desktop/qt6_670"

func folderURLFunc(t target.Key, v version.Version) string {
	if v.String() == "" {
		return listingURL
	}
	return listingURL + "/qt" + itoa(v.Major()) + "_" + v.FolderToken()
}

func itoa(u uint64) string {
	if u == 0 {
		return "0"
	}
	var digits []byte
	for u > 0 {
		digits = append([]byte{byte('0' + u%10)}, digits...)
		u /= 10
	}
	return string(digits)
}

const updatesXML = `<Updates>
	<PackageUpdate>
		<Name>qt.qt6.670.gcc_64</Name>
		<Version>6.7.0-0</Version>
		<DownloadableArchives>qtbase.7z, icu.7z</DownloadableArchives>
		<UpdateFile CompressedSize="1000" UncompressedSize="5000"/>
		<Dependencies></Dependencies>
	</PackageUpdate>
	<PackageUpdate>
		<Name>qt.qt6.670.addons.qtcharts.gcc_64</Name>
		<Version>6.7.0-0</Version>
		<DownloadableArchives>qtcharts.7z</DownloadableArchives>
		<UpdateFile CompressedSize="100" UncompressedSize="500"/>
		<Dependencies>qt.qt6.670.gcc_64</Dependencies>
	</PackageUpdate>
	<PackageUpdate>
		<Name>qt.qt6.670.qtnetworkauth.gcc_64</Name>
		<Version>6.7.0-0</Version>
		<DownloadableArchives>qtnetworkauth.7z</DownloadableArchives>
		<UpdateFile CompressedSize="100" UncompressedSize="500"/>
		<Dependencies>qt.qt6.670.addons.qtcharts.gcc_64</Dependencies>
	</PackageUpdate>
	<PackageUpdate>
		<Name>qt.qt6.670.debug_info.gcc_64</Name>
		<Version>6.7.0-0</Version>
		<DownloadableArchives>qtbase.7z, qtsvg.7z</DownloadableArchives>
		<UpdateFile CompressedSize="900" UncompressedSize="9000"/>
		<Dependencies></Dependencies>
	</PackageUpdate>
	<PackageUpdate>
		<Name>qt.qt6.670.placeholder.gcc_64</Name>
		<Version>6.7.0-0</Version>
		<DownloadableArchives>placeholder.7z</DownloadableArchives>
		<UpdateFile CompressedSize="40" UncompressedSize="40"/>
		<Dependencies></Dependencies>
	</PackageUpdate>
</Updates>`

func newTestResolver(minModuleSize int64) *resolve.Resolver {
	fetcher := fakeFetcher{pages: map[string]string{
		folder670 + "/Updates.xml": updatesXML,
		listingURL:                 `<a href="6.2.0/">6.2.0/</a><a href="6.7.0/">6.7.0/</a>`,
	}}
	idx := metaindex.New(fetcher)
	return resolve.New(idx, folderURLFunc, minModuleSize)
}

func desktopKey() target.Key {
	k, err := target.New(target.HostLinux, target.KindDesktop, "gcc_64")
	Expect(err).NotTo(HaveOccurred())
	return k
}

var _ = Describe("Resolver.Resolve", func() {
	It("emits the base package archives and attaches default patch actions for a qt install", func() {
		r := newTestResolver(0)
		req := resolve.Request{
			Operation:         resolve.OperationQt,
			Target:            desktopKey(),
			VersionConstraint: "6.7.0",
		}
		plan, err := r.Resolve(context.Background(), req, "/dest")
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Destination).To(Equal("/dest"))
		names := archiveFilenames(plan)
		Expect(names).To(ContainElements("qtbase.7z", "icu.7z"))
		Expect(plan.PatchActions).NotTo(BeEmpty())
	})

	It("resolves requested modules plus their transitive dependencies, deduped", func() {
		r := newTestResolver(0)
		req := resolve.Request{
			Operation:         resolve.OperationQt,
			Target:            desktopKey(),
			VersionConstraint: "6.7.0",
			Modules:           []string{"qtnetworkauth"},
		}
		plan, err := r.Resolve(context.Background(), req, "/dest")
		Expect(err).NotTo(HaveOccurred())
		names := archiveFilenames(plan)
		Expect(names).To(ContainElement("qtnetworkauth.7z"))
		Expect(names).To(ContainElement("qtcharts.7z")) // transitive dependency
		Expect(countOccurrences(names, "qtbase.7z")).To(Equal(1))
	})

	It("fails with an InputError listing available modules when one is unknown", func() {
		r := newTestResolver(0)
		req := resolve.Request{
			Operation:         resolve.OperationQt,
			Target:            desktopKey(),
			VersionConstraint: "6.7.0",
			Modules:           []string{"doesnotexist"},
		}
		_, err := r.Resolve(context.Background(), req, "/dest")
		Expect(err).To(HaveOccurred())
	})

	It("excludes placeholder packages below min_module_size from modules=all", func() {
		r := newTestResolver(41)
		req := resolve.Request{
			Operation:         resolve.OperationQt,
			Target:            desktopKey(),
			VersionConstraint: "6.7.0",
			Modules:           []string{resolve.ModulesAll},
		}
		plan, err := r.Resolve(context.Background(), req, "/dest")
		Expect(err).NotTo(HaveOccurred())
		names := archiveFilenames(plan)
		Expect(names).NotTo(ContainElement("placeholder.7z"))
	})

	It("filters the base archives when an archives-subset is given", func() {
		r := newTestResolver(0)
		req := resolve.Request{
			Operation:         resolve.OperationQt,
			Target:            desktopKey(),
			VersionConstraint: "6.7.0",
			ArchivesSubset:    []string{"qtbase.7z"},
		}
		plan, err := r.Resolve(context.Background(), req, "/dest")
		Expect(err).NotTo(HaveOccurred())
		names := archiveFilenames(plan)
		Expect(names).To(Equal([]string{"qtbase.7z"}))
	})

	It("emits nothing from debug_info when no archives-subset narrows it", func() {
		r := newTestResolver(0)
		req := resolve.Request{
			Operation:         resolve.OperationQt,
			Target:            desktopKey(),
			VersionConstraint: "6.7.0",
			Modules:           []string{"debug_info"},
		}
		plan, err := r.Resolve(context.Background(), req, "/dest")
		Expect(err).NotTo(HaveOccurred())
		names := archiveFilenames(plan)
		// debug_info shares "qtbase.7z" with the base, which is already
		// present; debug_info's own "qtsvg.7z" must not appear unfiltered.
		Expect(names).NotTo(ContainElement("qtsvg.7z"))
	})

	It("resolves \"latest\" against the version listing when given a spec", func() {
		r := newTestResolver(0)
		req := resolve.Request{
			Operation:         resolve.OperationQt,
			Target:            desktopKey(),
			VersionConstraint: "latest",
		}
		plan, err := r.Resolve(context.Background(), req, "/dest")
		Expect(err).NotTo(HaveOccurred())
		Expect(archiveFilenames(plan)).To(ContainElement("qtbase.7z"))
	})

	It("suppresses base archives entirely when no-archives is set", func() {
		r := newTestResolver(0)
		req := resolve.Request{
			Operation:         resolve.OperationQt,
			Target:            desktopKey(),
			VersionConstraint: "6.7.0",
			Modules:           []string{"qtnetworkauth"},
			NoArchives:        true,
		}
		plan, err := r.Resolve(context.Background(), req, "/dest")
		Expect(err).NotTo(HaveOccurred())
		names := archiveFilenames(plan)
		Expect(names).NotTo(ContainElement("qtbase.7z"))
		Expect(names).NotTo(ContainElement("icu.7z"))
		Expect(names).To(ContainElement("qtnetworkauth.7z"))
		Expect(plan.PatchActions).To(BeEmpty())
	})
})

const updatesXMLWithAndroid = `<Updates>
	<PackageUpdate>
		<Name>qt.qt6.670.android_arm64_v8a</Name>
		<Version>6.7.0-0</Version>
		<DownloadableArchives>qtbase-android_arm64_v8a.7z</DownloadableArchives>
		<UpdateFile CompressedSize="1000" UncompressedSize="5000"/>
		<Dependencies></Dependencies>
	</PackageUpdate>
	<PackageUpdate>
		<Name>qt.qt6.670.gcc_64</Name>
		<Version>6.7.0-0</Version>
		<DownloadableArchives>qtbase.7z, icu.7z</DownloadableArchives>
		<UpdateFile CompressedSize="1000" UncompressedSize="5000"/>
		<Dependencies></Dependencies>
	</PackageUpdate>
	<PackageUpdate>
		<Name>qt.qt6.670.qtdeclarative.gcc_64</Name>
		<Version>6.7.0-0</Version>
		<DownloadableArchives>qtdeclarative.7z</DownloadableArchives>
		<UpdateFile CompressedSize="100" UncompressedSize="500"/>
		<Dependencies></Dependencies>
	</PackageUpdate>
</Updates>`

var _ = Describe("Resolver auto-desktop sub-plan", func() {
	It("emits only the qtbase archive from the desktop base package, plus qtdeclarative for SDK 6", func() {
		fetcher := fakeFetcher{pages: map[string]string{
			folder670 + "/Updates.xml": updatesXMLWithAndroid,
			listingURL:                 `<a href="6.2.0/">6.2.0/</a><a href="6.7.0/">6.7.0/</a>`,
		}}
		idx := metaindex.New(fetcher)
		r := resolve.New(idx, folderURLFunc, 0)

		androidKey, err := target.New(target.HostLinux, target.KindAndroid, "android_arm64_v8a")
		Expect(err).NotTo(HaveOccurred())
		plan, err := r.Resolve(context.Background(), resolve.Request{
			Operation:         resolve.OperationQt,
			Target:            androidKey,
			VersionConstraint: "6.7.0",
			AutoDesktop:       true,
		}, "/dest")
		Expect(err).NotTo(HaveOccurred())

		names := archiveFilenames(plan)
		Expect(names).To(ContainElement("qtbase.7z"))
		Expect(names).To(ContainElement("qtdeclarative.7z"))
		Expect(names).NotTo(ContainElement("icu.7z"), "auto-desktop must stay minimal, not the base package's full archive set")
	})
})

func archiveFilenames(plan resolve.InstallPlan) []string {
	var out []string
	for _, a := range plan.Archives {
		out = append(out, a.ArchiveFilename)
	}
	return out
}

func countOccurrences(haystack []string, needle string) int {
	n := 0
	for _, s := range haystack {
		if s == needle {
			n++
		}
	}
	return n
}
