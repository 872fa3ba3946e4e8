package discover

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typeporter/pkg/config"
	errs "typeporter/pkg/errors"
	"typeporter/pkg/fetch"
	"typeporter/pkg/ledger"
	"typeporter/pkg/logger"
)

type fakePage struct {
	status int
	body   string
}

// fakeBlog serves listing pages under /blog/page/N/ and counts hits
type fakeBlog struct {
	mu    sync.Mutex
	pages map[int]fakePage
	hits  map[int]int
}

func newFakeBlog() *fakeBlog {
	return &fakeBlog{pages: make(map[int]fakePage), hits: make(map[int]int)}
}

func (b *fakeBlog) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/blog/page/", func(w http.ResponseWriter, r *http.Request) {
		numText := strings.Trim(strings.TrimPrefix(r.URL.Path, "/blog/page/"), "/")
		num, err := strconv.Atoi(numText)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		b.mu.Lock()
		b.hits[num]++
		page, ok := b.pages[num]
		b.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		if page.status != 0 && page.status != http.StatusOK {
			w.WriteHeader(page.status)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page.body)
	})
	return mux
}

func (b *fakeBlog) hitCount(page int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[page]
}

// listingPage renders a minimal Typepad listing with relative links
func listingPage(slugs []string, next int) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for _, slug := range slugs {
		sb.WriteString(`<p class="entry-footer"><a href="/blog/2010/03/` + slug + `.html">Permalink</a></p>`)
	}
	if next > 0 {
		sb.WriteString(`<div class="pager-inner"><span class="pager-right"><a href="/blog/page/` +
			strconv.Itoa(next) + `/">Next »</a></span></div>`)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func newCrawlerFixture(t *testing.T, blog *fakeBlog) (*Crawler, *config.Config, *ledger.Ledger) {
	t.Helper()
	srv := httptest.NewServer(blog.handler())
	t.Cleanup(srv.Close)

	tmp := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Site.URL = srv.URL + "/blog/"
	cfg.Fetch.MaxRetries = 1
	cfg.Fetch.RetryBaseDelay = config.Duration(time.Millisecond)
	cfg.Archive.OutputDir = filepath.Join(tmp, "archive")
	cfg.Discover.PermalinksFile = filepath.Join(tmp, "archive", "permalinks.txt")
	cfg.Discover.PageDelay = 0

	led, err := ledger.Open(cfg.Archive.StateDirectory())
	require.NoError(t, err)
	t.Cleanup(func() { led.Close() })

	client := fetch.NewClient(&cfg.Fetch, logger.NewTestLogger())
	c, err := New(cfg, client, led, logger.NewTestLogger())
	require.NoError(t, err)
	return c, cfg, led
}

// permalinkFor builds the absolute URL the crawler should record
func permalinkFor(cfg *config.Config, slug string) string {
	site := strings.TrimSuffix(cfg.Site.URL, "/blog/")
	return site + "/blog/2010/03/" + slug + ".html"
}

func TestRunCrawlsUntilPagerEnds(t *testing.T) {
	blog := newFakeBlog()
	blog.pages[1] = fakePage{body: listingPage([]string{"alpha", "beta"}, 2)}
	blog.pages[2] = fakePage{body: listingPage([]string{"gamma"}, 3)}
	blog.pages[3] = fakePage{body: listingPage([]string{"delta"}, 0)}
	c, cfg, led := newCrawlerFixture(t, blog)

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.PagesScanned)
	assert.Equal(t, 0, res.PagesSkipped)
	assert.Equal(t, 4, res.Permalinks)

	links, err := ReadPermalinks(cfg.Discover.PermalinksFile)
	require.NoError(t, err)
	assert.Equal(t, []string{
		permalinkFor(cfg, "alpha"),
		permalinkFor(cfg, "beta"),
		permalinkFor(cfg, "gamma"),
		permalinkFor(cfg, "delta"),
	}, links)

	for _, key := range []string{"1", "2", "3"} {
		assert.True(t, led.IsDone(ledger.StageDiscover, key), "page %s should be done", key)
	}

	saved, err := os.ReadFile(filepath.Join(cfg.Archive.StateDirectory(), "pages", "page_2.html"))
	require.NoError(t, err)
	assert.Contains(t, string(saved), "gamma")
}

func TestRunStopsCleanlyOnNotFound(t *testing.T) {
	blog := newFakeBlog()
	blog.pages[1] = fakePage{body: listingPage([]string{"alpha"}, 2)}
	c, cfg, _ := newCrawlerFixture(t, blog)

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.PagesScanned)
	assert.Equal(t, 1, res.Permalinks)

	links, err := ReadPermalinks(cfg.Discover.PermalinksFile)
	require.NoError(t, err)
	assert.Equal(t, []string{permalinkFor(cfg, "alpha")}, links)
}

func TestRunResumesFromLedger(t *testing.T) {
	blog := newFakeBlog()
	blog.pages[1] = fakePage{body: listingPage([]string{"alpha"}, 2)}
	blog.pages[2] = fakePage{body: listingPage([]string{"beta"}, 0)}
	c, cfg, led := newCrawlerFixture(t, blog)

	require.NoError(t, led.MarkDone(ledger.StageDiscover, "1"))
	require.NoError(t, appendPermalinks(cfg.Discover.PermalinksFile, []string{permalinkFor(cfg, "alpha")}))

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Resumed)
	assert.Equal(t, 1, res.PagesScanned)
	assert.Equal(t, 1, res.Permalinks)
	assert.Equal(t, 0, blog.hitCount(1), "completed page must not be refetched")

	links, err := ReadPermalinks(cfg.Discover.PermalinksFile)
	require.NoError(t, err)
	assert.Equal(t, []string{permalinkFor(cfg, "alpha"), permalinkFor(cfg, "beta")}, links)
}

func TestRunSkipsFailingPage(t *testing.T) {
	blog := newFakeBlog()
	blog.pages[1] = fakePage{body: listingPage([]string{"alpha"}, 2)}
	blog.pages[2] = fakePage{status: http.StatusInternalServerError}
	blog.pages[3] = fakePage{body: listingPage([]string{"gamma"}, 0)}
	c, cfg, led := newCrawlerFixture(t, blog)

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.PagesScanned)
	assert.Equal(t, 1, res.PagesSkipped)

	links, err := ReadPermalinks(cfg.Discover.PermalinksFile)
	require.NoError(t, err)
	assert.Equal(t, []string{permalinkFor(cfg, "alpha"), permalinkFor(cfg, "gamma")}, links)

	assert.False(t, led.IsDone(ledger.StageDiscover, "2"), "failed page must stay pending")
}

func TestRunStopsWhenPagerSkipsAhead(t *testing.T) {
	blog := newFakeBlog()
	blog.pages[1] = fakePage{body: listingPage([]string{"alpha"}, 3)}
	blog.pages[3] = fakePage{body: listingPage([]string{"gamma"}, 0)}
	c, _, _ := newCrawlerFixture(t, blog)

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.PagesScanned)
	assert.Equal(t, 0, blog.hitCount(3), "crawl must stop at the pager gap")
}

func TestRunAbortsAfterConsecutiveFailures(t *testing.T) {
	blog := newFakeBlog()
	for i := 1; i <= maxConsecutiveSkips; i++ {
		blog.pages[i] = fakePage{status: http.StatusInternalServerError}
	}
	c, _, _ := newCrawlerFixture(t, blog)

	res, err := c.Run(context.Background())
	require.Error(t, err)
	typed, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, errs.ErrorTypeNetwork, typed.Type)
	assert.Equal(t, maxConsecutiveSkips, res.PagesSkipped)
}

func TestRunDeduplicatesAcrossPages(t *testing.T) {
	blog := newFakeBlog()
	blog.pages[1] = fakePage{body: listingPage([]string{"alpha", "beta"}, 2)}
	blog.pages[2] = fakePage{body: listingPage([]string{"beta", "gamma"}, 0)}
	c, cfg, _ := newCrawlerFixture(t, blog)

	res, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Permalinks)

	links, err := ReadPermalinks(cfg.Discover.PermalinksFile)
	require.NoError(t, err)
	assert.Equal(t, []string{
		permalinkFor(cfg, "alpha"),
		permalinkFor(cfg, "beta"),
		permalinkFor(cfg, "gamma"),
	}, links)
}
