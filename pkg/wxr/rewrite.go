package wxr

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"typeporter/pkg/dedup"
	errs "typeporter/pkg/errors"
	"typeporter/pkg/resolve"
)

// UnresolvedRef is a media reference left untouched because no
// canonical file exists for it, usually after a degraded fetch
type UnresolvedRef struct {
	Document string `json:"document"`
	Ref      string `json:"ref"`
}

// Rewriter points extracted bodies at their import-time locations:
// archived media moves under the upload base, links between posts of
// the source site become permalinks
type Rewriter struct {
	renames       dedup.RenameMap
	mediaBase     string
	permalinkBase string
	siteHost      string
	sitePath      string
}

// NewRewriter builds a rewriter for one source site. mediaBase and
// permalinkBase gain a trailing slash if missing, so targets always
// join cleanly.
func NewRewriter(renames dedup.RenameMap, siteURL, mediaBase, permalinkBase string) (*Rewriter, error) {
	parsed, err := url.Parse(siteURL)
	if err != nil || parsed.Host == "" {
		return nil, errs.Newf(errs.ErrorTypeFatal, "invalid site URL %q", siteURL)
	}
	sitePath := parsed.Path
	if sitePath == "" {
		sitePath = "/"
	}
	if !strings.HasSuffix(sitePath, "/") {
		sitePath += "/"
	}
	if !strings.HasSuffix(mediaBase, "/") {
		mediaBase += "/"
	}
	if !strings.HasSuffix(permalinkBase, "/") {
		permalinkBase += "/"
	}
	return &Rewriter{
		renames:       renames,
		mediaBase:     mediaBase,
		permalinkBase: permalinkBase,
		siteHost:      strings.ToLower(parsed.Hostname()),
		sitePath:      sitePath,
	}, nil
}

// Rewrite retargets media and post links inside one extracted body.
// Media references with no canonical file keep their original value
// and are reported instead; fileBase names the owning document in the
// report.
func (r *Rewriter) Rewrite(fileBase string, body *goquery.Selection) []UnresolvedRef {
	var unresolved []UnresolvedRef
	flag := func(ref string) {
		unresolved = append(unresolved, UnresolvedRef{Document: fileBase, Ref: ref})
	}

	body.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if skipRef(src) {
			return
		}
		if target, ok := r.mediaTarget(src); ok {
			img.SetAttr("src", target)
			return
		}
		flag(src)
	})

	body.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if skipRef(href) {
			return
		}
		// The rename map decides what counts as archived media: full
		// size image links carry no telling extension, so extension
		// sniffing alone would miss them.
		if target, ok := r.mediaTarget(href); ok {
			a.SetAttr("href", target)
			return
		}
		if resolve.IsMediaLink(href) {
			flag(href)
			return
		}
		if target, ok := r.permalinkTarget(href); ok {
			a.SetAttr("href", target)
		}
	})
	return unresolved
}

// mediaTarget maps an archived reference to its canonical location
// under the upload base. Only archive-relative paths appear in the
// rename map; an absolute reference means the fetch was degraded and
// nothing was stored.
func (r *Rewriter) mediaTarget(ref string) (string, bool) {
	key := strings.TrimPrefix(strings.TrimSpace(ref), "./")
	canonical, ok := r.renames[key]
	if !ok {
		return "", false
	}
	return r.mediaBase + canonical, true
}

// permalinkTarget rewrites links aimed at other posts of the source
// site into their future permalink form
func (r *Rewriter) permalinkTarget(href string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(href))
	if err != nil || parsed.Host == "" {
		return "", false
	}
	if !strings.EqualFold(parsed.Hostname(), r.siteHost) {
		return "", false
	}
	if !strings.HasPrefix(parsed.Path, r.sitePath) {
		return "", false
	}
	slug, ok := resolve.PostSlugFromPath(parsed.Path)
	if !ok {
		return "", false
	}
	return r.permalinkBase + slug + "/", true
}

// skipRef reports references that are self-contained or unfetchable.
// The archiver never stored these, and the import cannot improve them.
func skipRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return true
	}
	lower := strings.ToLower(ref)
	for _, scheme := range []string{"data:", "javascript:", "mailto:", "cid:"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}
