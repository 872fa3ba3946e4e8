package discover

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"typeporter/pkg/resolve"
)

// postLinkPattern matches the dated post path shape anywhere in a link
var postLinkPattern = regexp.MustCompile(`/\d{4}/\d{2}/[^/]+\.html`)

// nextPagePattern reads the page number off a pager link
var nextPagePattern = regexp.MustCompile(`/page/(\d+)/?$`)

// permalinksFrom pulls post permalinks out of one listing page.
// Anchors labeled "Permalink" under the blog's own prefix are the
// primary source; pages without any fall back to every link shaped
// like a dated post path. Order follows the document and duplicates
// collapse to the first occurrence.
func (c *Crawler) permalinksFrom(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	links := anchorTextPermalinks(doc, base, c.prefix)
	if len(links) == 0 {
		links = pathPatternPermalinks(doc, base)
	}
	return links
}

// anchorTextPermalinks collects anchors whose whole text reads
// "Permalink", resolved absolute and filtered to the blog's prefix
func anchorTextPermalinks(doc *goquery.Document, base *url.URL, prefix string) []string {
	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if strings.TrimSpace(a.Text()) != "Permalink" {
			return
		}
		href, _ := a.Attr("href")
		absolute, ok := resolve.ResolveRef(base, href)
		if !ok || !strings.HasPrefix(absolute, prefix) {
			return
		}
		if _, dup := seen[absolute]; dup {
			return
		}
		seen[absolute] = struct{}{}
		links = append(links, absolute)
	})
	return links
}

// pathPatternPermalinks collects every link shaped like a dated post
// path, whatever its host
func pathPatternPermalinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !postLinkPattern.MatchString(href) {
			return
		}
		absolute, ok := resolve.ResolveRef(base, href)
		if !ok {
			return
		}
		if _, dup := seen[absolute]; dup {
			return
		}
		seen[absolute] = struct{}{}
		links = append(links, absolute)
	})
	return links
}

// nextPageRef reads the pager's next slot and returns the page it
// points at. ok is false when the slot is missing, the label is not
// next-flavored, or the target carries no page number.
func nextPageRef(doc *goquery.Document) (int, bool) {
	link := doc.Find("div.pager-inner span.pager-right a").First()
	if link.Length() == 0 {
		return 0, false
	}

	label := strings.ToLower(strings.TrimSpace(link.Text()))
	if !strings.Contains(label, "next") && !strings.Contains(label, "»") {
		return 0, false
	}

	href, _ := link.Attr("href")
	m := nextPagePattern.FindStringSubmatch(href)
	if m == nil {
		return 0, false
	}
	page, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return page, true
}
