package resolve

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/gorilla/css/scanner"

	"typeporter/pkg/models"
)

// MaxCSSDepth caps how many stylesheet levels ("page -> css ->
// @import -> @import") are followed before recursion stops
const MaxCSSDepth = 3

// CSSRef is an asset reference found inside a stylesheet. Raw keeps
// the target exactly as written in the source so the stylesheet text
// can later be rewritten to point at the archived copy.
type CSSRef struct {
	Raw string
	Ref models.AssetRef
}

// StylesheetRefs scans stylesheet text for url(...) and @import
// targets, resolved against the stylesheet's own URL. @import targets
// are tagged as stylesheets so callers can recurse into them.
func (r *Resolver) StylesheetRefs(css []byte, cssURL string) []CSSRef {
	base, err := url.Parse(cssURL)
	if err != nil {
		return nil
	}

	var refs []CSSRef
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
		refs = append(refs, CSSRef{
			Raw: raw,
			Ref: models.AssetRef{
				URL:       resolved,
				Kind:      kind,
				Placement: r.Classify(resolved),
			},
		})
	}

	sc := scanner.New(string(css))
	inImport := false
	for {
		tok := sc.Next()
		if tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError {
			break
		}

		switch tok.Type {
		case scanner.TokenAtKeyword:
			inImport = strings.EqualFold(tok.Value, "@import")
		case scanner.TokenURI:
			target := uriTarget(tok.Value)
			add(target, cssRefKind(target, inImport))
			inImport = false
		case scanner.TokenString:
			if inImport {
				add(trimCSSString(tok.Value), models.RefStylesheet)
				inImport = false
			}
		case scanner.TokenChar:
			if tok.Value == ";" {
				inImport = false
			}
		}
	}

	return refs
}

// RewriteCSS replaces url(...) and @import targets in stylesheet text
// with their archived locations. Keys are raw targets exactly as they
// appear in the source; targets without a replacement are left alone.
func RewriteCSS(css []byte, replacements map[string]string) []byte {
	out := string(css)
	for raw, local := range replacements {
		if raw == "" || local == "" {
			continue
		}
		quoted := regexp.QuoteMeta(raw)
		urlForm := regexp.MustCompile(`url\(\s*['"]?` + quoted + `['"]?\s*\)`)
		importForm := regexp.MustCompile(`@import\s+['"]` + quoted + `['"]`)
		out = urlForm.ReplaceAllString(out, `url("`+local+`")`)
		out = importForm.ReplaceAllString(out, `@import url("`+local+`")`)
	}
	return []byte(out)
}

// uriTarget extracts the target from a CSS url(...) token
func uriTarget(token string) string {
	open := strings.Index(token, "(")
	end := strings.LastIndex(token, ")")
	if open < 0 || end <= open {
		return ""
	}
	return strings.Trim(strings.TrimSpace(token[open+1:end]), `"'`)
}

func trimCSSString(token string) string {
	return strings.Trim(token, `"'`)
}

// cssRefKind tags @import targets and .css url() targets as
// stylesheets so recursion can follow them
func cssRefKind(target string, inImport bool) models.RefKind {
	if inImport {
		return models.RefStylesheet
	}
	if strings.EqualFold(path.Ext(stripQuery(target)), ".css") {
		return models.RefStylesheet
	}
	return models.RefFile
}

func stripQuery(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		return target[:i]
	}
	return target
}
