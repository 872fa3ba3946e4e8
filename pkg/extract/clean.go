package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// popupViewerFragment marks anchors that open the platform's image
// popup viewer instead of linking anywhere useful.
const popupViewerFragment = ".shared/image.html"

// scrubPopupAnchors unwraps popup viewer links around images, keeping
// the image itself in place.
func scrubPopupAnchors(root *goquery.Selection) {
	root.Find(`a[href*="` + popupViewerFragment + `"]`).Each(func(_ int, a *goquery.Selection) {
		if a.Find("img").Length() == 0 {
			return
		}
		a.ReplaceWithSelection(a.Contents())
	})
}

// stripEmptyWrappers removes wrapper elements whose subtree carries no
// text and none of the elements that render without text. Children are
// visited before parents, so a wrapper holding only empty wrappers
// goes too.
func stripEmptyWrappers(root *goquery.Selection) {
	wrappers := root.Find("div, span, p, font")
	for i := wrappers.Length() - 1; i >= 0; i-- {
		s := wrappers.Eq(i)
		if strings.TrimSpace(s.Text()) != "" {
			continue
		}
		if s.Find("img, iframe, embed, object, video, audio, hr, br, table, form").Length() > 0 {
			continue
		}
		s.Remove()
	}
}

var whitespaceRun = regexp.MustCompile(`[ \t\r\n\f]{2,}`)

// collapseWhitespace squeezes whitespace runs in text nodes and trims
// runs of consecutive <br> tags down to two. Preformatted blocks are
// left alone.
func collapseWhitespace(root *goquery.Selection) {
	collapseBreakRuns(root)
	for _, node := range root.Nodes {
		squeezeTextNodes(node)
	}
}

func collapseBreakRuns(root *goquery.Selection) {
	seen := make(map[*html.Node]bool)
	for _, br := range root.Find("br").Nodes {
		if seen[br] {
			continue
		}
		run := []*html.Node{br}
		for next := br.NextSibling; next != nil; next = next.NextSibling {
			if next.Type == html.TextNode && strings.TrimSpace(next.Data) == "" {
				continue
			}
			if next.Type == html.ElementNode && next.Data == "br" {
				seen[next] = true
				run = append(run, next)
				continue
			}
			break
		}
		if len(run) <= 2 {
			continue
		}
		for _, extra := range run[2:] {
			extra.Parent.RemoveChild(extra)
		}
	}
}

func squeezeTextNodes(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "pre", "code", "textarea", "script", "style":
			return
		}
	}
	if n.Type == html.TextNode {
		n.Data = whitespaceRun.ReplaceAllString(n.Data, " ")
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		squeezeTextNodes(child)
	}
}
