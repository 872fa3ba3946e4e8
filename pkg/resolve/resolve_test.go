package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typeporter/pkg/models"
)

const siteURL = "https://example.typepad.com/blog/"

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := New(siteURL, []string{"static.typepad.com"})
	require.NoError(t, err)
	return r
}

func TestNewRejectsBadSiteURL(t *testing.T) {
	_, err := New("not a url at all", nil)
	assert.Error(t, err)

	_, err = New("/relative/only", nil)
	assert.Error(t, err)
}

func TestDocumentRefs(t *testing.T) {
	r := newTestResolver(t)

	body := []byte(`<html><head>
		<link rel="stylesheet" href="/styles/site.css">
		<link type="text/css" href="https://static.typepad.com/theme.css">
		<link rel="icon" href="/favicon.ico">
		<link rel="apple-touch-icon" href="/touch.png">
		<link rel="alternate" href="/feed.xml">
		<script src="/js/site.js"></script>
	</head><body>
		<div class="sidebar"><img src="/sidebar/widget.gif"></div>
		<div class="entry-content">
			<img src="/.a/6a00d83451photo-320wi">
			<img src="/.a/6a00d83451photo-320wi">
			<img src="https://photos.example.org/external.jpg">
			<img src="data:image/gif;base64,R0lGOD=">
			<a href="/.a/6a00d83451file">download</a>
			<a href="/files/report.pdf">report</a>
			<a href="/2009/05/other-post.html">other post</a>
			<a href="javascript:void(0)">noop</a>
			<a href="#top">top</a>
		</div>
	</body></html>`)

	refs, err := r.DocumentRefs(body, "https://example.typepad.com/blog/2009/05/my-post.html")
	require.NoError(t, err)

	expected := []models.AssetRef{
		{URL: "https://example.typepad.com/styles/site.css", Kind: models.RefStylesheet, Placement: models.PlacementShared},
		{URL: "https://static.typepad.com/theme.css", Kind: models.RefStylesheet, Placement: models.PlacementShared},
		{URL: "https://example.typepad.com/js/site.js", Kind: models.RefScript, Placement: models.PlacementShared},
		{URL: "https://example.typepad.com/favicon.ico", Kind: models.RefIcon, Placement: models.PlacementShared},
		{URL: "https://example.typepad.com/touch.png", Kind: models.RefIcon, Placement: models.PlacementShared},
		{URL: "https://example.typepad.com/.a/6a00d83451photo-320wi", Kind: models.RefImage, Placement: models.PlacementPostLocal},
		{URL: "https://photos.example.org/external.jpg", Kind: models.RefImage, Placement: models.PlacementPostLocal},
		{URL: "https://example.typepad.com/.a/6a00d83451file", Kind: models.RefFile, Placement: models.PlacementPostLocal},
		{URL: "https://example.typepad.com/files/report.pdf", Kind: models.RefFile, Placement: models.PlacementPostLocal},
	}
	assert.Equal(t, expected, refs)
}

func TestDocumentRefsContentScopeFallback(t *testing.T) {
	r := newTestResolver(t)

	t.Run("article when no entry-content", func(t *testing.T) {
		body := []byte(`<html><body>
			<img src="/outside.jpg">
			<article><img src="/.a/inside"></article>
		</body></html>`)

		refs, err := r.DocumentRefs(body, siteURL)
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, "https://example.typepad.com/.a/inside", refs[0].URL)
	})

	t.Run("whole body when no wrapper at all", func(t *testing.T) {
		body := []byte(`<html><body><p><img src="/.a/bare"></p></body></html>`)

		refs, err := r.DocumentRefs(body, siteURL)
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, "https://example.typepad.com/.a/bare", refs[0].URL)
	})
}

func TestDocumentRefsRelativeResolution(t *testing.T) {
	r := newTestResolver(t)

	body := []byte(`<html><body><div class="entry-content">
		<img src="../../images/photo.jpg">
	</div></body></html>`)

	refs, err := r.DocumentRefs(body, "https://example.typepad.com/blog/2009/05/my-post.html")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "https://example.typepad.com/blog/images/photo.jpg", refs[0].URL)
}

func TestClassify(t *testing.T) {
	r := newTestResolver(t)

	tests := []struct {
		name     string
		url      string
		expected models.Placement
	}{
		{
			name:     "site chrome is shared",
			url:      "https://example.typepad.com/styles/site.css",
			expected: models.PlacementShared,
		},
		{
			name:     "configured shared host",
			url:      "https://static.typepad.com/js/lib.js",
			expected: models.PlacementShared,
		},
		{
			name:     "host match is case-insensitive",
			url:      "https://EXAMPLE.Typepad.com/print.css",
			expected: models.PlacementShared,
		},
		{
			name:     "site file endpoint belongs to the post",
			url:      "https://example.typepad.com/.a/6a00photo-800wi",
			expected: models.PlacementPostLocal,
		},
		{
			name:     "site attachment belongs to the post",
			url:      "https://example.typepad.com/files/notes.pdf",
			expected: models.PlacementPostLocal,
		},
		{
			name:     "third-party host is post-local",
			url:      "https://photos.example.org/pic.jpg",
			expected: models.PlacementPostLocal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.Classify(tt.url))
		})
	}
}

func TestIsMediaLink(t *testing.T) {
	tests := []struct {
		url      string
		expected bool
	}{
		{"https://example.typepad.com/.a/6a00d8345", true},
		{"https://example.typepad.com/files/report.pdf", true},
		{"https://example.typepad.com/files/archive.ZIP", true},
		{"https://example.typepad.com/audio/episode.mp3", true},
		{"https://example.typepad.com/2009/05/a-post.html", false},
		{"https://example.typepad.com/about/", false},
		{"https://example.typepad.com/files/slides.pptx", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsMediaLink(tt.url), "url %s", tt.url)
	}
}

