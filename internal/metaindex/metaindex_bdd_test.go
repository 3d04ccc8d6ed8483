package metaindex_test

import (
	"bytes"
	"context"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sdkget/sdkget/internal/metaindex"
)

// fakeFetcher serves canned bodies keyed by exact URL, standing in for the
// several differently-styled directory-index pages real mirrors publish.
type fakeFetcher struct {
	pages map[string]string
	err   error
}

func (f fakeFetcher) Get(_ context.Context, url string) (*http.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.pages[url]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader([]byte(body)))}, nil
}

var _ = Describe("Index.ListVersions", func() {
	var folderURL string

	BeforeEach(func() {
		folderURL = "https://download.qt.io/online/qtsdkrepository/linux_x64/desktop/qt6_670"
	})

	It("parses an Apache-style autoindex page with trailing-slash hrefs", func() {
		page := `<html><body><table>
			<tr><td><a href="../">Parent Directory</a></td></tr>
			<tr><td><a href="5.15.2/">5.15.2/</a></td></tr>
			<tr><td><a href="6.2.0/">6.2.0/</a></td></tr>
			<tr><td><a href="6.7.0/">6.7.0/</a></td></tr>
		</table></body></html>`
		idx := metaindex.New(fakeFetcher{pages: map[string]string{folderURL: page}})

		versions, err := idx.ListVersions(context.Background(), folderURL)
		Expect(err).NotTo(HaveOccurred())
		Expect(versions).To(HaveLen(3))
		Expect(versions[0].String()).To(Equal("5.15.2"))
		Expect(versions[2].String()).To(Equal("6.7.0"))
	})

	It("parses a bare nginx-style listing with no table markup", func() {
		page := `<html><body>
			<a href="6.4.3/">6.4.3/</a>
			<a href="6.5.0/">6.5.0/</a>
			<a href="icons/">icons/</a>
		</body></html>`
		idx := metaindex.New(fakeFetcher{pages: map[string]string{folderURL: page}})

		versions, err := idx.ListVersions(context.Background(), folderURL)
		Expect(err).NotTo(HaveOccurred())
		Expect(versions).To(HaveLen(2))
	})

	It("sorts discovered versions ascending regardless of page order", func() {
		page := `<a href="6.7.0/">6.7.0/</a><a href="5.15.2/">5.15.2/</a><a href="6.2.0/">6.2.0/</a>`
		idx := metaindex.New(fakeFetcher{pages: map[string]string{folderURL: page}})

		versions, err := idx.ListVersions(context.Background(), folderURL)
		Expect(err).NotTo(HaveOccurred())
		Expect(versions[0].String()).To(Equal("5.15.2"))
		Expect(versions[1].String()).To(Equal("6.2.0"))
		Expect(versions[2].String()).To(Equal("6.7.0"))
	})

	It("surfaces a NetworkError on a non-200 response", func() {
		idx := metaindex.New(fakeFetcher{pages: map[string]string{}})
		_, err := idx.ListVersions(context.Background(), folderURL)
		Expect(err).To(HaveOccurred())
	})

	It("decodes the real upstream qt{MAJOR}_{TOKEN} folder-name listing", func() {
		listingURL := "https://download.qt.io/online/qtsdkrepository/linux_x64/desktop"
		page := `<a href="../">Parent Directory</a>
			<a href="qt5_5152/">qt5_5152/</a>
			<a href="qt6_650/">qt6_650/</a>
			<a href="qt6_670/">qt6_670/</a>
			<a href="icons/">icons/</a>`
		idx := metaindex.New(fakeFetcher{pages: map[string]string{listingURL: page}})

		versions, err := idx.ListVersions(context.Background(), listingURL)
		Expect(err).NotTo(HaveOccurred())
		Expect(versions).To(HaveLen(3))
		Expect(versions[0].String()).To(Equal("5.15.2"))
		Expect(versions[1].String()).To(Equal("6.5.0"))
		Expect(versions[2].String()).To(Equal("6.7.0"))
	})

	It("decodes the prefixless bare-digit folder-name variant", func() {
		listingURL := "https://download.qt.io/online/qtsdkrepository/linux_x64/desktop"
		page := `<a href="670/">670/</a><a href="650/">650/</a>`
		idx := metaindex.New(fakeFetcher{pages: map[string]string{listingURL: page}})

		versions, err := idx.ListVersions(context.Background(), listingURL)
		Expect(err).NotTo(HaveOccurred())
		Expect(versions).To(HaveLen(2))
		Expect(versions[0].String()).To(Equal("6.5.0"))
		Expect(versions[1].String()).To(Equal("6.7.0"))
	})
})

var _ = Describe("Index.FetchUpdates", func() {
	It("preserves PackageUpdate document order and tolerates empty archive lists", func() {
		folderURL := "https://download.qt.io/online/qtsdkrepository/linux_x64/desktop/qt6_670"
		xmlBody := `<Updates>
			<PackageUpdate>
				<Name>qt.qt6.670.gcc_64</Name>
				<Version>6.7.0-0</Version>
				<DownloadableArchives>qtbase.7z, qtsvg.7z</DownloadableArchives>
				<UpdateFile CompressedSize="123" UncompressedSize="456"/>
				<Dependencies></Dependencies>
			</PackageUpdate>
			<PackageUpdate>
				<Name>qt.qt6.670.addons.qtcharts.gcc_64</Name>
				<Version>6.7.0-0</Version>
				<DownloadableArchives></DownloadableArchives>
				<UpdateFile CompressedSize="0" UncompressedSize="0"/>
				<Dependencies>qt.qt6.670.gcc_64</Dependencies>
			</PackageUpdate>
		</Updates>`
		idx := metaindex.New(fakeFetcher{pages: map[string]string{folderURL + "/Updates.xml": xmlBody}})

		doc, err := idx.FetchUpdates(context.Background(), folderURL)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Packages).To(HaveLen(2))
		Expect(doc.Packages[0].Name).To(Equal("qt.qt6.670.gcc_64"))
		Expect(doc.Packages[0].Archives()).To(Equal([]string{"qtbase.7z", "qtsvg.7z"}))
		Expect(doc.Packages[1].Archives()).To(BeNil())
		Expect(doc.Packages[1].DependencyNames()).To(Equal([]string{"qt.qt6.670.gcc_64"}))
	})
})
