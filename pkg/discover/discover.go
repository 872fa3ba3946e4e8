package discover

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"typeporter/pkg/config"
	errs "typeporter/pkg/errors"
	"typeporter/pkg/ledger"
	"typeporter/pkg/logger"
	"typeporter/pkg/ratelimit"
	"typeporter/pkg/storage"
)

// maxConsecutiveSkips bounds a run against a site that fails on every
// page; the original end-of-blog signal is a 404
const maxConsecutiveSkips = 5

// Fetcher is the page fetching dependency
type Fetcher interface {
	FetchHTML(ctx context.Context, pageURL string) ([]byte, error)
}

// Crawler walks a blog's listing pages in order and collects post
// permalinks. Completed pages are recorded in the ledger, so an
// interrupted run resumes at the first unscanned page.
type Crawler struct {
	cfg    *config.Config
	client Fetcher
	ledger *ledger.Ledger
	pacer  *ratelimit.HostPacer
	logger logger.Logger

	scheme   string
	host     string
	blogName string
	// prefix filters anchor-labeled permalinks to the blog's own posts
	prefix   string
	pagesDir string
}

// New creates a crawler for the configured site. Raw listing pages are
// kept under the state directory for later inspection.
func New(cfg *config.Config, client Fetcher, led *ledger.Ledger, log logger.Logger) (*Crawler, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	parsed, err := url.Parse(cfg.Site.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errs.Newf(errs.ErrorTypeFatal, "invalid site URL %q", cfg.Site.URL)
	}

	blogName := blogNameFromURL(parsed)
	return &Crawler{
		cfg:      cfg,
		client:   client,
		ledger:   led,
		pacer:    ratelimit.NewHostPacer(parsed.Hostname(), time.Duration(cfg.Discover.PageDelay)),
		logger:   log,
		scheme:   parsed.Scheme,
		host:     parsed.Host,
		blogName: blogName,
		prefix:   fmt.Sprintf("%s://%s/%s/", parsed.Scheme, parsed.Host, blogName),
		pagesDir: filepath.Join(cfg.Archive.StateDirectory(), "pages"),
	}, nil
}

// blogNameFromURL picks the blog's path segment. Sites served at the
// domain root fall back to the first host label.
func blogNameFromURL(parsed *url.URL) string {
	for _, part := range strings.Split(parsed.Path, "/") {
		if part != "" {
			return part
		}
	}
	return strings.Split(parsed.Hostname(), ".")[0]
}

// Result summarizes a discovery run
type Result struct {
	// PagesScanned counts pages fetched and processed this run
	PagesScanned int
	// PagesSkipped counts pages passed over after fetch failures
	PagesSkipped int
	// Resumed counts pages honored from the ledger
	Resumed int
	// Permalinks counts new permalinks appended this run
	Permalinks int
}

// Run crawls listing pages starting at the configured page until the
// site 404s, the pager ends, or too many pages fail in a row. Each
// page's raw HTML is stored and its permalinks appended before the
// page is marked done, so a crash never loses recorded work.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	if err := os.MkdirAll(c.pagesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create page store: %w", err)
	}

	seen, err := knownPermalinks(c.cfg.Discover.PermalinksFile)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	page := c.cfg.Discover.StartPage
	if page < 1 {
		page = 1
	}
	consecutiveSkips := 0

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		key := strconv.Itoa(page)
		if c.ledger.IsDone(ledger.StageDiscover, key) {
			res.Resumed++
			page++
			continue
		}

		pageURL := c.pageURL(page)
		body, err := c.client.FetchHTML(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if typed, ok := err.(*errs.Error); ok && typed.Type == errs.ErrorTypeNotFound {
				c.logger.InfoWithFields("Page not found, reached the end of the blog", map[string]interface{}{
					"page": page,
				})
				return res, nil
			}
			c.logger.WarnWithFields("Failed to fetch page, skipping", map[string]interface{}{
				"page":  page,
				"url":   pageURL,
				"error": err.Error(),
			})
			res.PagesSkipped++
			consecutiveSkips++
			if consecutiveSkips >= maxConsecutiveSkips {
				return res, errs.Newf(errs.ErrorTypeNetwork,
					"aborting discovery after %d consecutive page failures", consecutiveSkips)
			}
			page++
			continue
		}
		consecutiveSkips = 0

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			c.logger.WarnWithFields("Failed to parse page, skipping", map[string]interface{}{
				"page":  page,
				"error": err.Error(),
			})
			res.PagesSkipped++
			page++
			continue
		}

		if err := storage.WriteFileAtomic(c.pagePath(page), body); err != nil {
			return res, err
		}

		links := c.permalinksFrom(doc, pageURL)
		fresh := make([]string, 0, len(links))
		for _, link := range links {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			fresh = append(fresh, link)
		}
		if len(fresh) > 0 {
			if err := appendPermalinks(c.cfg.Discover.PermalinksFile, fresh); err != nil {
				return res, err
			}
			res.Permalinks += len(fresh)
		}

		if err := c.ledger.MarkDone(ledger.StageDiscover, key); err != nil {
			return res, err
		}
		res.PagesScanned++
		c.logger.DebugWithFields("Page scanned", map[string]interface{}{
			"page":       page,
			"permalinks": len(fresh),
		})

		next, ok := nextPageRef(doc)
		if !ok {
			c.logger.InfoWithFields("No further pages", map[string]interface{}{
				"page": page,
			})
			return res, nil
		}
		if next != page+1 {
			c.logger.WarnWithFields("Pager points at an unexpected page, stopping", map[string]interface{}{
				"page": page,
				"next": next,
			})
			return res, nil
		}
		page++

		if err := c.pacer.Pause(ctx, pageURL); err != nil {
			return res, err
		}
	}
}

// pageURL builds the listing URL for one page number
func (c *Crawler) pageURL(page int) string {
	return fmt.Sprintf("%s://%s/%s/page/%d/", c.scheme, c.host, c.blogName, page)
}

// pagePath is where the raw listing page is stored
func (c *Crawler) pagePath(page int) string {
	return filepath.Join(c.pagesDir, fmt.Sprintf("page_%d.html", page))
}
