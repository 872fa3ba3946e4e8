package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	negativeHintPattern = regexp.MustCompile(`(?i)comment|sidebar|footer|header|nav|menu|banner|widget|share|related|promo`)
	positiveHintPattern = regexp.MustCompile(`(?i)article|body|content|entry|main|post|story|text`)
)

// minHeuristicScore is the confidence bar for the automatic tier.
// Containers below it (short posts, photo-only posts) fall through to
// the default container selectors.
const minHeuristicScore = 160

// findByHeuristic scores candidate containers by the text they hold
// in direct child paragraphs and text nodes, adjusted by class and id
// hints, and returns the best one. Returns nil when no candidate
// reaches minHeuristicScore. Ties keep the earliest candidate in
// document order.
func findByHeuristic(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestScore := 0

	doc.Find("div, article, section, td").Each(func(_ int, s *goquery.Selection) {
		hint := s.AttrOr("class", "") + " " + s.AttrOr("id", "")
		negative := negativeHintPattern.MatchString(hint)
		positive := positiveHintPattern.MatchString(hint)
		if negative && !positive {
			return
		}

		score := directTextScore(s)
		if score <= 0 {
			return
		}
		if positive {
			score += 25
		}
		if negative {
			score -= 25
		}
		if score > bestScore {
			bestScore = score
			best = s
		}
	})

	if bestScore < minHeuristicScore {
		return nil
	}
	return best
}

// directTextScore totals the text a container holds in its own child
// paragraphs and text nodes, with link text counted against it.
func directTextScore(s *goquery.Selection) int {
	score := 0
	s.ChildrenFiltered("p").Each(func(_ int, p *goquery.Selection) {
		text := len(strings.TrimSpace(p.Text()))
		link := len(strings.TrimSpace(p.Find("a").Text()))
		score += text - 2*link
	})
	for _, node := range s.Nodes {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				score += len(strings.TrimSpace(child.Data))
			}
		}
	}
	return score
}
