package integration

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"path/filepath"
	"testing"
	"time"

	"typeporter/pkg/config"
	"typeporter/pkg/ledger"
	"typeporter/pkg/logger"
)

// TestHelper bundles the temp workspace, the mock blog and the
// pipeline configuration shared by the integration tests
type TestHelper struct {
	t       *testing.T
	tempDir string
	server  *MockBlogServer
}

// NewTestHelper creates a helper rooted in a fresh temp directory
func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t, tempDir: t.TempDir()}
}

// GetTempDir returns the helper's workspace directory
func (h *TestHelper) GetTempDir() string {
	return h.tempDir
}

// SetupBlogServer starts an empty mock blog and registers its shutdown
func (h *TestHelper) SetupBlogServer() *MockBlogServer {
	h.server = NewMockBlogServer()
	h.t.Cleanup(h.server.Close)
	return h.server
}

// CreateTestLogger creates a logger that buffers entries in memory
func (h *TestHelper) CreateTestLogger() logger.Logger {
	return logger.NewTestLogger()
}

// CreateTestConfig wires a configuration whose stages all work inside
// the helper's temp directory, with pacing turned down so runs finish
// in milliseconds
func (h *TestHelper) CreateTestConfig(siteURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Site.URL = siteURL
	cfg.Site.Title = "Field Notes"
	cfg.Site.Author = "ann"

	cfg.Fetch.Workers = 3
	cfg.Fetch.RequestDelay = config.Duration(time.Millisecond)
	cfg.Fetch.Timeout = config.Duration(5 * time.Second)
	cfg.Fetch.MaxRetries = 3
	cfg.Fetch.RetryBaseDelay = config.Duration(10 * time.Millisecond)

	cfg.Archive.OutputDir = filepath.Join(h.tempDir, "archive")
	cfg.Dedup.OutputDir = filepath.Join(h.tempDir, "export")
	cfg.Dedup.MapFile = filepath.Join(h.tempDir, "export", "rename_map.json")
	cfg.Export.OutputDir = filepath.Join(h.tempDir, "export")
	cfg.Export.BundleSize = 2
	cfg.Export.ContentSelector = "div.entry-content"

	cfg.Discover.PageDelay = config.Duration(time.Millisecond)
	cfg.Discover.PermalinksFile = filepath.Join(h.tempDir, "archive", "permalinks.txt")

	return cfg
}

// OpenLedger opens the run ledger under the configured state
// directory. The caller closes it, so tests can simulate a process
// exit and reopen.
func (h *TestHelper) OpenLedger(cfg *config.Config) *ledger.Ledger {
	led, err := ledger.Open(cfg.Archive.StateDirectory())
	if err != nil {
		h.t.Fatalf("Failed to open ledger: %v", err)
	}
	return led
}

// fixtureBlog records the layout of the canned three-post blog the
// integration tests crawl
type fixtureBlog struct {
	SiteURL string
	// Posts holds the three permalinks in discovery order
	Posts []string

	StylePath  string
	FontsPath  string
	FontPath   string
	BgPath     string
	ScriptPath string
	IconPath   string

	SharedPhotoPath string
	FerryPhotoPath  string
	SchedulePath    string
}

// InstallFixtureBlog registers a small blog on the mock server: two
// listing pages, a stylesheet chain shared by every post, one photo
// reused byte for byte by the first two posts, and a third post
// carrying its own photo, a PDF attachment and a link back to the
// first post. The second listing page points at a third page that
// does not exist, ending discovery with the platform's 404 signal.
func (h *TestHelper) InstallFixtureBlog(server *MockBlogServer) fixtureBlog {
	base := server.GetURL()
	blog := fixtureBlog{
		SiteURL:         base + "/fieldnotes/",
		StylePath:       "/fieldnotes/styles.css",
		FontsPath:       "/fieldnotes/fonts.css",
		FontPath:        "/fieldnotes/lora.woff2",
		BgPath:          "/fieldnotes/bg.png",
		ScriptPath:      "/fieldnotes/site.js",
		IconPath:        "/fieldnotes/favicon.ico",
		SharedPhotoPath: "/.a/6a00d8-shared",
		FerryPhotoPath:  "/.a/6a00d8-ferry",
		SchedulePath:    "/.a/schedule.pdf",
	}
	blog.Posts = []string{
		base + "/fieldnotes/2023/05/morning-light.html",
		base + "/fieldnotes/2023/05/harbor-walk.html",
		base + "/fieldnotes/2023/06/last-ferry.html",
	}

	server.AddAsset(blog.StylePath, "text/css",
		[]byte("@import \"fonts.css\";\nbody { background: url(bg.png); color: #222; }\n"))
	server.AddAsset(blog.FontsPath, "text/css",
		[]byte("@font-face { font-family: \"Lora\"; src: url(lora.woff2); }\n"))
	server.AddAsset(blog.FontPath, "font/woff2", []byte("wOF2 not a real font"))
	// Sniffs as a PNG but does not decode, so consolidation falls back
	// to exact hashing for it
	server.AddAsset(blog.BgPath, "image/png",
		append([]byte("\x89PNG\r\n\x1a\n"), []byte("tiled background")...))
	server.AddAsset(blog.ScriptPath, "application/javascript",
		[]byte("console.log(\"fieldnotes\");\n"))
	server.AddAsset(blog.IconPath, "image/x-icon",
		append([]byte{0x00, 0x00, 0x01, 0x00}, []byte("favicon")...))

	// The shared photo is served without an extension, the way the
	// platform's file endpoint does; the archiver sniffs one on
	server.AddAsset(blog.SharedPhotoPath, "image/png", pngBytes(h.t, cosinePattern(false)))
	server.AddAsset(blog.FerryPhotoPath, "image/png", pngBytes(h.t, cosinePattern(true)))
	server.AddAsset(blog.SchedulePath, "application/pdf", []byte("%PDF-1.4 winter ferry schedule"))

	server.AddPage("/fieldnotes/2023/05/morning-light.html", postPage(
		"Morning Light", blog.Posts[0],
		"Posted by Ann on May 12, 2023 at 9:15 AM in Mornings | Permalink | Comments (0)",
		`<p>Fog lifted off the water before seven.</p>
<img src="/.a/6a00d8-shared" alt="harbor at dawn" />`))

	server.AddPage("/fieldnotes/2023/05/harbor-walk.html", postPage(
		"Harbor Walk", blog.Posts[1],
		"Posted by Ann on May 19, 2023 at 2:40 PM in Walks | Permalink | Comments (1)",
		`<p>Walked the long pier at low tide.</p>
<img src="/.a/6a00d8-shared" alt="harbor at dawn" />`))

	server.AddPage("/fieldnotes/2023/06/last-ferry.html", postPage(
		"Last Ferry", blog.Posts[2],
		"Posted by Ann on June 3, 2023 at 7:25 PM in Travel | Permalink | Comments (2)",
		fmt.Sprintf(`<p>Caught the <a href="%s">morning light</a> ferry out.</p>
<img src="/.a/6a00d8-ferry" alt="last ferry" />
<p><a href="/.a/schedule.pdf">Winter schedule</a></p>`, blog.Posts[0])))

	server.AddPage("/fieldnotes/page/1/", listingPage(
		[]listingEntry{
			{Title: "Morning Light", URL: "/fieldnotes/2023/05/morning-light.html"},
			{Title: "Harbor Walk", URL: "/fieldnotes/2023/05/harbor-walk.html"},
		},
		"/fieldnotes/page/2/"))
	server.AddPage("/fieldnotes/page/2/", listingPage(
		[]listingEntry{
			{Title: "Last Ferry", URL: "/fieldnotes/2023/06/last-ferry.html"},
		},
		"/fieldnotes/page/3/"))

	return blog
}

// postPage renders one post in the platform's template shape: shared
// chrome in the head, the article body inside div.entry-content, the
// byline underneath it
func postPage(title, canonical, dateLine, bodyHTML string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<title>%s - Field Notes</title>
<link rel="canonical" href="%s" />
<link rel="stylesheet" href="/fieldnotes/styles.css" />
<link rel="icon" href="/fieldnotes/favicon.ico" />
<script src="/fieldnotes/site.js"></script>
</head>
<body>
<div class="entry entry-type-post entry-author-ann">
<h3 class="entry-header">%s</h3>
<div class="entry-content">
%s
</div>
<p class="entry-footer-info">%s</p>
</div>
</body>
</html>
`, title, canonical, title, bodyHTML, dateLine)
}

type listingEntry struct {
	Title string
	URL   string
}

// listingPage renders one archive listing page: an excerpt block per
// post with its Permalink anchor, and the pager's next slot when
// nextPage is non-empty
func listingPage(entries []listingEntry, nextPage string) string {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<body>\n")
	for _, e := range entries {
		fmt.Fprintf(&buf, `<div class="entry">
<h3 class="entry-header"><a href="%s">%s</a></h3>
<p class="entry-footer"><a href="%s">Permalink</a> | <a href="%s#comments">Comments</a></p>
</div>
`, e.URL, e.Title, e.URL, e.URL)
	}
	if nextPage != "" {
		fmt.Fprintf(&buf, `<div class="pager"><div class="pager-inner"><span class="pager-right"><a href="%s">Next &raquo;</a></span></div></div>
`, nextPage)
	}
	buf.WriteString("</body>\n</html>\n")
	return buf.String()
}

// cosinePattern synthesizes a 64x64 gray image from an 8x8 grid of
// low frequency cosines with distinct amplitudes. The inverted
// variant flips every coefficient sign, which puts the two patterns
// on opposite sides of the perceptual hash median in every bit.
func cosinePattern(invert bool) image.Image {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			var sum float64
			for v := 0; v < 8; v++ {
				for u := 0; u < 8; u++ {
					if u == 0 && v == 0 {
						continue
					}
					amp := 1.5 + 0.25*float64((v*8+u)*11%64)
					if (u+v)%2 == 1 {
						amp = -amp
					}
					if invert {
						amp = -amp
					}
					sum += amp *
						math.Cos(math.Pi*(2*float64(x)+1)*float64(u)/128) *
						math.Cos(math.Pi*(2*float64(y)+1)*float64(v)/128)
				}
			}
			val := math.Round(128 + sum)
			if val < 0 {
				val = 0
			}
			if val > 255 {
				val = 255
			}
			img.SetGray(x, y, color.Gray{Y: uint8(val)})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode fixture image: %v", err)
	}
	return buf.Bytes()
}
