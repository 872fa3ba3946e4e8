package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typeporter/pkg/models"
)

func TestStylesheetRefs(t *testing.T) {
	r := newTestResolver(t)

	css := []byte(`
		@import "reset.css";
		@import url(theme/extra.css);
		body { background: url('../img/bg.png'); }
		.logo { background-image: url(logo.gif); }
		.dup { background: url('../img/bg.png'); }
		.inline { background: url(data:image/png;base64,iVBOR); }
	`)

	refs := r.StylesheetRefs(css, "https://static.typepad.com/css/site.css")

	expected := []CSSRef{
		{Raw: "reset.css", Ref: models.AssetRef{URL: "https://static.typepad.com/css/reset.css", Kind: models.RefStylesheet, Placement: models.PlacementShared}},
		{Raw: "theme/extra.css", Ref: models.AssetRef{URL: "https://static.typepad.com/css/theme/extra.css", Kind: models.RefStylesheet, Placement: models.PlacementShared}},
		{Raw: "../img/bg.png", Ref: models.AssetRef{URL: "https://static.typepad.com/img/bg.png", Kind: models.RefFile, Placement: models.PlacementShared}},
		{Raw: "logo.gif", Ref: models.AssetRef{URL: "https://static.typepad.com/css/logo.gif", Kind: models.RefFile, Placement: models.PlacementShared}},
	}
	assert.Equal(t, expected, refs)
}

func TestStylesheetRefsTagsCSSTargets(t *testing.T) {
	r := newTestResolver(t)

	// A url() pointing at a .css file must be tagged for recursion
	// even outside an @import
	css := []byte(`.widget { behavior: url(extra.css); }`)

	refs := r.StylesheetRefs(css, "https://example.typepad.com/css/site.css")
	require.Len(t, refs, 1)
	assert.Equal(t, models.RefStylesheet, refs[0].Ref.Kind)
}

func TestStylesheetRefsBadBase(t *testing.T) {
	r := newTestResolver(t)
	refs := r.StylesheetRefs([]byte(`body { background: url(x.png); }`), "://bad")
	assert.Nil(t, refs)
}

func TestRewriteCSS(t *testing.T) {
	css := []byte(`
		@import "reset.css";
		@import url(theme/extra.css);
		body { background: url('../img/bg.png'); }
		.logo { background-image: url( logo.gif ); }
	`)

	out := string(RewriteCSS(css, map[string]string{
		"reset.css":       "./reset.css",
		"theme/extra.css": "./extra.css",
		"../img/bg.png":   "./bg.png",
		"logo.gif":        "./logo.gif",
	}))

	assert.Contains(t, out, `@import url("./reset.css")`)
	assert.Contains(t, out, `@import url("./extra.css")`)
	assert.Contains(t, out, `url("./bg.png")`)
	assert.Contains(t, out, `url("./logo.gif")`)
	assert.NotContains(t, out, "../img/bg.png")
	assert.NotContains(t, out, "theme/extra.css")
}

func TestRewriteCSSLeavesUnmappedTargets(t *testing.T) {
	css := []byte(`body { background: url(https://cdn.example.org/far.png); }`)

	out := string(RewriteCSS(css, map[string]string{"near.png": "./near.png"}))
	assert.Equal(t, string(css), out)
}

func TestRewriteCSSDoesNotTouchSimilarNames(t *testing.T) {
	// "a.css" must not match inside "extra.css"
	css := []byte(`@import url(extra.css); @import url(a.css);`)

	out := string(RewriteCSS(css, map[string]string{"a.css": "./renamed.css"}))
	assert.Contains(t, out, "extra.css")
	assert.Contains(t, out, `@import url("./renamed.css")`)
}
