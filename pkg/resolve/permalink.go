package resolve

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var (
	// datePathPattern finds the year and month segments of a dated
	// permalink anywhere in its path
	datePathPattern = regexp.MustCompile(`/(\d{4})/(\d{2})/`)

	// postPathPattern matches the canonical post path shape,
	// /2010/03/some-post.html, with or without a leading blog segment
	postPathPattern = regexp.MustCompile(`/(\d{4})/(\d{2})/([^/]+)\.html$`)
)

// ParsePermalink derives the slug and, when the path carries one, the
// publication year and month from a post permalink. Undated permalinks
// return empty year and month and get index-only document names.
func ParsePermalink(rawURL string) (year, month, slug string) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", ""
	}

	base := path.Base(parsed.Path)
	if base == "/" || base == "." {
		base = ""
	}
	slug = strings.TrimSuffix(base, path.Ext(base))

	if m := datePathPattern.FindStringSubmatch(parsed.Path); m != nil {
		year, month = m[1], m[2]
	}
	return year, month, slug
}

// PostSlugFromPath extracts the slug from a canonical post path such
// as /blog/2010/03/some-post.html. ok is false for every other shape.
func PostSlugFromPath(p string) (slug string, ok bool) {
	m := postPathPattern.FindStringSubmatch(p)
	if m == nil {
		return "", false
	}
	return m[3], true
}
