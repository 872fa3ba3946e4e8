package archiver

import (
	"bytes"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	errs "typeporter/pkg/errors"
	"typeporter/pkg/resolve"
)

// rewriteDocument repoints src and href attributes at archived
// copies. References that could not be archived are pinned to their
// absolute source URL so the page still renders away from the source
// site. Navigation links and anything never scheduled stay untouched.
func rewriteDocument(body []byte, docURL string, local map[string]string, failed map[string]struct{}) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeDecode, "failed to parse document for rewrite: %v", err)
	}
	base, err := url.Parse(docURL)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeBadURL, "invalid document URL %q", docURL)
	}

	rewriteAttr := func(attr string) func(int, *goquery.Selection) {
		return func(_ int, s *goquery.Selection) {
			raw, ok := s.Attr(attr)
			if !ok {
				return
			}
			resolved, ok := resolve.ResolveRef(base, raw)
			if !ok {
				return
			}
			if localRef, found := local[resolved]; found {
				s.SetAttr(attr, localRef)
				return
			}
			if _, degraded := failed[resolved]; degraded {
				s.SetAttr(attr, resolved)
			}
		}
	}

	doc.Find("[href]").Each(rewriteAttr("href"))
	doc.Find("[src]").Each(rewriteAttr("src"))

	html, err := doc.Html()
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeDecode, "failed to serialize document: %v", err)
	}
	return []byte(html), nil
}
