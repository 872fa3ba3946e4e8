package resolve

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "typeporter/pkg/errors"
	"typeporter/pkg/models"
)

// Resolver discovers asset references in fetched markup and decides
// their placement in the archive.
type Resolver struct {
	siteHost    string
	sharedHosts map[string]struct{}
}

// New creates a resolver for a site. sharedHosts lists additional
// hosts (CDNs, static asset domains) whose resources belong in the
// shared assets folder.
func New(siteURL string, sharedHosts []string) (*Resolver, error) {
	parsed, err := url.Parse(siteURL)
	if err != nil || parsed.Hostname() == "" {
		return nil, errs.Newf(errs.ErrorTypeBadURL, "invalid site URL %q", siteURL)
	}

	hosts := make(map[string]struct{}, len(sharedHosts))
	for _, h := range sharedHosts {
		hosts[strings.ToLower(h)] = struct{}{}
	}

	return &Resolver{
		siteHost:    strings.ToLower(parsed.Hostname()),
		sharedHosts: hosts,
	}, nil
}

// DocumentRefs parses a post body and returns its asset references in
// document order, de-duplicated on (URL, kind). Stylesheets, scripts
// and icons are taken from the whole document; images and media links
// only from the post's content scope, so sidebar and template media
// never get archived per post.
func (r *Resolver) DocumentRefs(body []byte, docURL string) ([]models.AssetRef, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeDecode, "failed to parse document: %v", err)
	}
	base, err := url.Parse(docURL)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeBadURL, "invalid document URL %q", docURL)
	}

	var refs []models.AssetRef
	seen := make(map[string]struct{})

	add := func(raw string, kind models.RefKind) {
		resolved, ok := ResolveRef(base, raw)
		if !ok {
			return
		}
		key := string(kind) + " " + resolved
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		refs = append(refs, models.AssetRef{
			URL:       resolved,
			Kind:      kind,
			Placement: r.Classify(resolved),
		})
	}

	doc.Find("link[rel='stylesheet'], link[type='text/css']").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			add(href, models.RefStylesheet)
		}
	})

	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src, models.RefScript)
		}
	})

	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		if !isIconRel(rel) {
			return
		}
		if href, ok := s.Attr("href"); ok {
			add(href, models.RefIcon)
		}
	})

	scope := contentScope(doc)

	scope.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src, models.RefImage)
		}
	})

	scope.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		resolved, ok := ResolveRef(base, href)
		if !ok || !IsMediaLink(resolved) {
			return
		}
		add(href, models.RefFile)
	})

	return refs, nil
}

// Classify applies the placement rule. A reference on the site host
// (or a configured shared host) is shared chrome unless it points at
// the post's own media; everything else is stored next to the owning
// document.
func (r *Resolver) Classify(rawURL string) models.Placement {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return models.PlacementPostLocal
	}

	host := strings.ToLower(parsed.Hostname())
	_, onSharedHost := r.sharedHosts[host]
	if host != r.siteHost && !onSharedHost {
		return models.PlacementPostLocal
	}
	if isPostMediaPath(parsed.Path) {
		return models.PlacementPostLocal
	}
	return models.PlacementShared
}

// Typepad serves per-post uploads from the /.a/ file endpoint;
// attachment extensions mark the rest of a post's own files
func isPostMediaPath(p string) bool {
	if strings.HasPrefix(p, "/.a/") {
		return true
	}
	_, ok := mediaLinkExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

var mediaLinkExtensions = map[string]struct{}{
	".pdf":  {},
	".zip":  {},
	".doc":  {},
	".docx": {},
	".mp3":  {},
}

// IsMediaLink reports whether an anchor target is a downloadable file
// rather than a navigation link
func IsMediaLink(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return isPostMediaPath(parsed.Path)
}

// contentScope returns the nodes holding the post's own content.
// Falls back to the whole body for templates without a content
// wrapper.
func contentScope(doc *goquery.Document) *goquery.Selection {
	if s := doc.Find("div.entry-content").First(); s.Length() > 0 {
		return s
	}
	if s := doc.Find("article").First(); s.Length() > 0 {
		return s
	}
	return doc.Find("body")
}

func isIconRel(rel string) bool {
	switch strings.ToLower(strings.TrimSpace(rel)) {
	case "icon", "shortcut icon", "apple-touch-icon":
		return true
	}
	return false
}

// ResolveRef turns a raw attribute value into an absolute http(s)
// URL, dropping fragments, empty values, and non-fetchable schemes
// like data: and javascript:
func ResolveRef(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") {
		return "", false
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	resolved.Fragment = ""
	return resolved.String(), true
}

