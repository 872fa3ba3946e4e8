package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSite = "https://example.typepad.com/blog/"

func TestMetaFullPage(t *testing.T) {
	page := loadPage(t, richPost, "2010_03_0001_first-post")

	meta := page.Meta(testSite, "admin")

	assert.Equal(t, "First Post", meta.Title)
	assert.Equal(t, "jdoe", meta.Author)
	assert.Equal(t, "https://example.typepad.com/blog/2010/03/first-post.html", meta.URL)
	assert.Equal(t, "first-post", meta.Slug)
	assert.Equal(t, time.Date(2010, 3, 5, 8, 15, 0, 0, time.UTC), meta.Published)
	assert.Equal(t, DateFromContent, meta.DateSource)
}

func TestMetaPermalinkAnchorFallback(t *testing.T) {
	const anchored = `<html><body>
<h3>Linked Elsewhere</h3>
<a class="permalink" href="https://example.typepad.com/blog/2012/11/linked-elsewhere.html">Permalink</a>
</body></html>`
	page := loadPage(t, anchored, "2012_11_0009_linked-elsewhere")

	meta := page.Meta(testSite, "admin")

	assert.Equal(t, "https://example.typepad.com/blog/2012/11/linked-elsewhere.html", meta.URL)
	assert.Equal(t, "linked-elsewhere", meta.Slug)
	assert.Equal(t, "Linked Elsewhere", meta.Title)
}

func TestMetaReconstructsPermalinkFromFileName(t *testing.T) {
	page := loadPage(t, `<html><body><h3>Bare</h3></body></html>`, "2010_03_0001_first-post")

	meta := page.Meta(testSite, "admin")

	assert.Equal(t, "https://example.typepad.com/blog/2010/03/first-post.html", meta.URL)
	assert.Equal(t, "first-post", meta.Slug)
	// No date line on the page, so the filename's month carries it
	assert.Equal(t, time.Date(2010, 3, 1, 0, 0, 0, 0, time.UTC), meta.Published)
	assert.Equal(t, DateFromFilename, meta.DateSource)
}

func TestMetaUndatedFileName(t *testing.T) {
	page := loadPage(t, `<html><body><h3>About</h3></body></html>`, "0007_about")

	meta := page.Meta(testSite, "admin")

	assert.Equal(t, "https://example.typepad.com/blog/about.html", meta.URL)
	assert.Equal(t, "about", meta.Slug)
	assert.Equal(t, DateFromClock, meta.DateSource)
	assert.WithinDuration(t, time.Now().UTC(), meta.Published, 5*time.Second)
}

func TestMetaDefaults(t *testing.T) {
	page := loadPage(t, `<html><body><p>nothing here</p></body></html>`, "notes")

	meta := page.Meta(testSite, "editor")

	assert.Equal(t, "Untitled Post", meta.Title)
	assert.Equal(t, "editor", meta.Author)
	assert.Equal(t, "https://example.typepad.com/blog/notes.html", meta.URL)
	assert.Equal(t, "notes", meta.Slug)
	assert.Equal(t, DateFromClock, meta.DateSource)
}

func TestMetaDateHeaderFallback(t *testing.T) {
	const dated = `<html><body>
<h2 class="date-header">October 14, 2015</h2>
<h3>Autumn Notes</h3>
</body></html>`
	page := loadPage(t, dated, "2015_10_0031_autumn-notes")

	meta := page.Meta(testSite, "admin")

	assert.Equal(t, time.Date(2015, 10, 14, 0, 0, 0, 0, time.UTC), meta.Published)
	assert.Equal(t, DateFromContent, meta.DateSource)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
		ok   bool
	}{
		{
			name: "decorated footer line",
			in:   "Posted by Ron on July 09, 2022 at 10:55 PM in Books | Permalink | Comments (2)",
			want: time.Date(2022, 7, 9, 22, 55, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "date only",
			in:   "October 14, 2015",
			want: time.Date(2015, 10, 14, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "abbreviated month with seconds",
			in:   "Oct 21, 2015 12:17:25 AM",
			want: time.Date(2015, 10, 21, 0, 17, 25, 0, time.UTC),
			ok:   true,
		},
		{
			name: "undecorated date and time",
			in:   "July 09, 2022 at 10:55 PM",
			want: time.Date(2022, 7, 9, 22, 55, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "category without time",
			in:   "Posted by Jane Doe on March 05, 2010 in Travel | Permalink",
			want: time.Date(2010, 3, 5, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{name: "unparseable", in: "yesterday sometime", ok: false},
		{name: "empty", in: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
