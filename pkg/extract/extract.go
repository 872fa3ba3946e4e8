package extract

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	errs "typeporter/pkg/errors"
)

// Tier names the strategy that located the content container
type Tier string

const (
	// TierSelector means the caller's explicit selector matched
	TierSelector Tier = "selector"
	// TierHeuristic means the boilerplate heuristic chose the container
	TierHeuristic Tier = "heuristic"
	// TierDefault means a known platform container selector matched
	TierDefault Tier = "default"
)

// defaultContainers lists the platform's article body containers,
// tried in order when the automatic heuristic is not confident.
var defaultContainers = []string{"div.entry-body", "div.entry-content"}

// Options control content extraction. The zero value runs every
// cleaning pass and both automatic container tiers.
type Options struct {
	// Selector is an explicit content container selector. When it
	// matches, the automatic tiers are skipped.
	Selector string

	KeepPopupLinks     bool
	KeepEmptyWrappers  bool
	KeepWhitespaceRuns bool
}

// Page is one parsed archived document
type Page struct {
	doc      *goquery.Document
	fileBase string
}

// Load parses an archived document. fileBase is the archive filename
// without extension; it backs the metadata fallbacks.
func Load(data []byte, fileBase string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeDecode, "failed to parse document %s: %v", fileBase, err)
	}
	return &Page{doc: doc, fileBase: fileBase}, nil
}

// Content holds the extracted article body
type Content struct {
	// Selection is the content container inside the parsed page
	Selection *goquery.Selection
	Tier      Tier
}

// HTML serializes the container's inner markup
func (c *Content) HTML() (string, error) {
	html, err := c.Selection.Html()
	if err != nil {
		return "", errs.Newf(errs.ErrorTypeDecode, "failed to serialize content: %v", err)
	}
	return html, nil
}

// Content isolates the article body. Tiers are tried in order
// (explicit selector, boilerplate heuristic, default containers) and
// the first hit wins; the cleaning passes then rewrite the chosen
// subtree in place.
func (p *Page) Content(opts Options) (*Content, error) {
	sel, tier, err := p.container(opts.Selector)
	if err != nil {
		return nil, err
	}
	if sel == nil {
		return nil, errs.Newf(errs.ErrorTypeDecode, "no content container found in %s", p.fileBase)
	}

	if !opts.KeepPopupLinks {
		scrubPopupAnchors(sel)
	}
	if !opts.KeepEmptyWrappers {
		stripEmptyWrappers(sel)
	}
	if !opts.KeepWhitespaceRuns {
		collapseWhitespace(sel)
	}
	return &Content{Selection: sel, Tier: tier}, nil
}

func (p *Page) container(selector string) (*goquery.Selection, Tier, error) {
	if selector != "" {
		matcher, err := cascadia.Compile(selector)
		if err != nil {
			return nil, "", errs.Newf(errs.ErrorTypeFatal, "invalid content selector %q: %v", selector, err)
		}
		if sel := p.doc.FindMatcher(matcher).First(); sel.Length() > 0 {
			return sel, TierSelector, nil
		}
		// The configured container is absent from this page; the
		// automatic tiers take over
	}

	if sel := findByHeuristic(p.doc); sel != nil {
		return sel, TierHeuristic, nil
	}

	for _, container := range defaultContainers {
		if sel := p.doc.Find(container).First(); sel.Length() > 0 {
			return sel, TierDefault, nil
		}
	}
	return nil, "", nil
}
