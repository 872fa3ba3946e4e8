package fetch

import (
	"net/url"
	"regexp"
)

// Typepad serves scaled-down image variants under URLs ending in a
// "-NNNwi" width suffix. Stripping the suffix yields the original
// upload.
var scaledImagePattern = regexp.MustCompile(`-\d+wi$`)

// FullSizeVariant returns the full-size URL for a scaled image
// reference, and whether the URL carried a scale suffix at all.
// Callers try the variant once and fall back to the original URL.
func FullSizeVariant(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if !scaledImagePattern.MatchString(parsed.Path) {
		return "", false
	}
	parsed.Path = scaledImagePattern.ReplaceAllString(parsed.Path, "")
	return parsed.String(), true
}
