package extract

import (
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"typeporter/pkg/storage"
)

// DateSource values for Meta
const (
	// DateFromContent means the date line on the page parsed
	DateFromContent = "content"
	// DateFromFilename means the archive filename's year and month
	// were used, pinned to the first of the month
	DateFromFilename = "filename"
	// DateFromClock means nothing parsed and the current time was used
	DateFromClock = "clock"
)

// Meta carries the export-facing details of one archived document.
// Every field has a fallback, so extraction always yields a usable
// record; DateSource exposes which date fallback fired.
type Meta struct {
	Title  string
	Author string
	// URL is the document's original permalink
	URL  string
	Slug string
	// Published is the publish timestamp, UTC
	Published  time.Time
	DateSource string
}

// Meta extracts title, author, permalink and publish date from the
// page, falling back to the archive filename and the configured
// default author where the page gives nothing.
func (p *Page) Meta(siteURL, defaultAuthor string) Meta {
	parts, parsed := storage.ParseDocumentFileName(p.fileBase + ".html")

	meta := Meta{
		Title:  p.title(),
		Author: p.author(defaultAuthor),
	}

	meta.URL = p.permalink(siteURL, parts, parsed)
	meta.Slug = slugFromURL(meta.URL)
	if meta.Slug == "" {
		meta.Slug = parts.Slug
	}
	if meta.Slug == "" {
		meta.Slug = p.fileBase
	}

	meta.Published, meta.DateSource = p.publishDate(parts, parsed)
	return meta
}

func (p *Page) title() string {
	title := strings.TrimSpace(p.doc.Find("h3.entry-header").First().Text())
	if title == "" {
		title = strings.TrimSpace(p.doc.Find("h3").First().Text())
	}
	if title == "" {
		title = "Untitled Post"
	}
	return title
}

func (p *Page) author(defaultAuthor string) string {
	author := defaultAuthor
	p.doc.Find(`div[class*="entry-author-"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, class := range strings.Fields(s.AttrOr("class", "")) {
			if name := strings.TrimPrefix(class, "entry-author-"); name != class && name != "" {
				author = name
				return false
			}
		}
		return true
	})
	return author
}

// permalink finds the document's original URL: the canonical link
// element, then the permalink anchor, then a permalink rebuilt from
// the archive filename.
func (p *Page) permalink(siteURL string, parts storage.DocumentNameParts, parsed bool) string {
	if href, ok := p.doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && href != "" {
		return href
	}
	if href, ok := p.doc.Find("a.permalink").First().Attr("href"); ok && href != "" {
		return href
	}

	rel := p.fileBase + ".html"
	if parsed {
		if parts.Year != "" {
			rel = parts.Year + "/" + parts.Month + "/" + parts.Slug + ".html"
		} else {
			rel = parts.Slug + ".html"
		}
	}
	return joinSite(siteURL, rel)
}

func (p *Page) publishDate(parts storage.DocumentNameParts, parsed bool) (time.Time, string) {
	dateText := ""
	for _, selector := range []string{"p.entry-footer-info", "p.posted", "h2.date-header"} {
		if tag := p.doc.Find(selector).First(); tag.Length() > 0 {
			dateText = strings.TrimSpace(tag.Text())
			break
		}
	}

	if published, ok := ParseDate(dateText); ok {
		return published, DateFromContent
	}
	if published, ok := dateFromFileName(parts, parsed); ok {
		return published, DateFromFilename
	}
	return time.Now().UTC(), DateFromClock
}

var dateLayouts = []string{
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"Jan 2, 2006 3:04:05 PM",
}

// ParseDate recovers a publish timestamp from a date line. The line
// usually reads like "Posted by Ann on July 09, 2022 at 10:55 PM in
// Books | Permalink | Comments (2)", so author, category and footer
// decoration are stripped before the known layouts are tried.
func ParseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}

	clean := strings.SplitN(raw, "|", 2)[0]
	clean = strings.SplitN(clean, " in ", 2)[0]
	if idx := strings.LastIndex(clean, " on "); idx >= 0 {
		clean = clean[idx+len(" on "):]
	}
	clean = strings.ReplaceAll(clean, "at ", "")
	clean = strings.TrimSpace(clean)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dateFromFileName(parts storage.DocumentNameParts, parsed bool) (time.Time, bool) {
	if !parsed || parts.Year == "" {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts.Year)
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(parts.Month)
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

func joinSite(siteURL, rel string) string {
	base, err := url.Parse(siteURL)
	if err != nil || base.Host == "" {
		return rel
	}
	base.Path = path.Join(base.Path, rel)
	base.RawQuery = ""
	base.Fragment = ""
	return base.String()
}

func slugFromURL(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	trimmed := strings.Trim(parsed.Path, "/")
	if trimmed == "" {
		return ""
	}
	segments := strings.Split(trimmed, "/")
	return strings.TrimSuffix(segments[len(segments)-1], ".html")
}
