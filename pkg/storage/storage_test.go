package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewArchiveCreatesLayout(t *testing.T) {
	tempDir := t.TempDir()
	root := filepath.Join(tempDir, "archive")

	archive, err := NewArchive(root, "assets")
	if err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}

	info, err := os.Stat(archive.AssetsDir())
	if err != nil {
		t.Fatalf("Expected assets directory to exist: %v", err)
	}
	if !info.IsDir() {
		t.Error("Expected assets path to be a directory")
	}

	if archive.Root() != root {
		t.Errorf("Expected root %q, got %q", root, archive.Root())
	}
}

func TestNewArchiveDefaultsAssetsSubdir(t *testing.T) {
	archive, err := NewArchive(t.TempDir(), "")
	if err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}
	if archive.AssetsSubdir() != "assets" {
		t.Errorf("Expected default assets subdir, got %q", archive.AssetsSubdir())
	}
}

func TestDocumentFileBase(t *testing.T) {
	tests := []struct {
		name     string
		year     string
		month    string
		index    int
		slug     string
		expected string
	}{
		{
			name:     "dated document",
			year:     "2009",
			month:    "05",
			index:    1,
			slug:     "my-first-post",
			expected: "2009_05_0001_my-first-post",
		},
		{
			name:     "index padded to four digits",
			year:     "2011",
			month:    "12",
			index:    42,
			slug:     "retrospective",
			expected: "2011_12_0042_retrospective",
		},
		{
			name:     "no date falls back to index and slug",
			year:     "",
			month:    "",
			index:    7,
			slug:     "about",
			expected: "0007_about",
		},
		{
			name:     "slug is sanitized",
			year:     "2010",
			month:    "03",
			index:    3,
			slug:     "café & more",
			expected: "2010_03_0003_caf____more",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DocumentFileBase(tt.year, tt.month, tt.index, tt.slug)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestParseDocumentFileName(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		ok       bool
		expected DocumentNameParts
	}{
		{
			name:     "dated name round-trips",
			filename: "2009_05_0001_my-first-post.html",
			ok:       true,
			expected: DocumentNameParts{Year: "2009", Month: "05", Index: 1, Slug: "my-first-post"},
		},
		{
			name:     "undated name",
			filename: "0007_about.html",
			ok:       true,
			expected: DocumentNameParts{Index: 7, Slug: "about"},
		},
		{
			name:     "slug containing underscores",
			filename: "2012_01_0100_a_b_c.html",
			ok:       true,
			expected: DocumentNameParts{Year: "2012", Month: "01", Index: 100, Slug: "a_b_c"},
		},
		{
			name:     "not a document name",
			filename: "styles.css",
			ok:       false,
		},
		{
			name:     "missing index",
			filename: "about.html",
			ok:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDocumentFileName(tt.filename)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestArchivePaths(t *testing.T) {
	root := filepath.Join(t.TempDir(), "archive")
	archive, err := NewArchive(root, "assets")
	if err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}

	base := "2009_05_0001_my-first-post"

	if got := archive.DocumentPath(base); got != filepath.Join(root, base+".html") {
		t.Errorf("Unexpected document path %q", got)
	}
	if got := archive.SharedAssetPath("styles.css"); got != filepath.Join(root, "assets", "styles.css") {
		t.Errorf("Unexpected shared asset path %q", got)
	}
	if got := archive.PostAssetPath(base, "photo.jpg"); got != filepath.Join(root, base, "photo.jpg") {
		t.Errorf("Unexpected post asset path %q", got)
	}
	if got := archive.SharedAssetRef("styles.css"); got != "assets/styles.css" {
		t.Errorf("Unexpected shared asset ref %q", got)
	}
	if got := archive.PostAssetRef(base, "photo.jpg"); got != base+"/photo.jpg" {
		t.Errorf("Unexpected post asset ref %q", got)
	}
}

func TestAssetName(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "plain basename",
			url:      "https://example.typepad.com/site/styles.css",
			expected: "styles.css",
		},
		{
			name:     "query string gets a digest suffix before the extension",
			url:      "https://example.typepad.com/site/styles.css?v=3",
			expected: "styles_30f4134c.css",
		},
		{
			name:     "unsafe characters sanitized",
			url:      "https://cdn.example.com/fonts/my font (1).woff",
			expected: "my_font__1_.woff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssetName(tt.url)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestAssetNameQueryVariantsStayDistinct(t *testing.T) {
	a := AssetName("https://example.com/img.php?id=1")
	b := AssetName("https://example.com/img.php?id=2")
	if a == b {
		t.Errorf("Expected distinct names for distinct queries, both got %q", a)
	}
	if !strings.HasSuffix(a, ".php") || !strings.HasSuffix(b, ".php") {
		t.Errorf("Expected extension preserved, got %q and %q", a, b)
	}
}

func TestAssetNamePathlessURL(t *testing.T) {
	got := AssetName("https://example.com/")
	if !strings.HasPrefix(got, "asset_") {
		t.Errorf("Expected hash fallback name, got %q", got)
	}
	if got != AssetName("https://example.com/") {
		t.Error("Expected fallback name to be deterministic")
	}
}

func TestDocumentsSorted(t *testing.T) {
	root := t.TempDir()
	archive, err := NewArchive(root, "assets")
	if err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}

	names := []string{
		"2010_01_0003_third.html",
		"2009_05_0001_first.html",
		"2009_11_0002_second.html",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(root, name), []byte("<html></html>"), 0644); err != nil {
			t.Fatalf("Failed to seed document: %v", err)
		}
	}
	// Folders and non-HTML files must not be listed
	if err := os.MkdirAll(filepath.Join(root, "2009_05_0001_first"), 0755); err != nil {
		t.Fatalf("Failed to seed asset folder: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "assets", "styles.css"), []byte("body{}"), 0644); err != nil {
		t.Fatalf("Failed to seed asset: %v", err)
	}

	docs, err := archive.Documents()
	if err != nil {
		t.Fatalf("Failed to list documents: %v", err)
	}

	expected := []string{
		"2009_05_0001_first.html",
		"2009_11_0002_second.html",
		"2010_01_0003_third.html",
	}
	if len(docs) != len(expected) {
		t.Fatalf("Expected %d documents, got %d: %v", len(expected), len(docs), docs)
	}
	for i := range expected {
		if docs[i] != expected[i] {
			t.Errorf("Expected docs[%d]=%q, got %q", i, expected[i], docs[i])
		}
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.html")
	data := []byte("<html>content</html>")

	if err := WriteFileAtomic(path, data); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file back: %v", err)
	}
	if !bytes.Equal(content, data) {
		t.Error("File content does not match written data")
	}

	// No temp file left behind
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected temp file to be gone after write")
	}
}

func TestWriteFileAtomicOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.html")

	if err := WriteFileAtomic(path, []byte("old")); err != nil {
		t.Fatalf("Failed first write: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("new")); err != nil {
		t.Fatalf("Failed second write: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file back: %v", err)
	}
	if string(content) != "new" {
		t.Errorf("Expected overwritten content, got %q", content)
	}
}

func TestWriteReaderAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asset.bin")
	data := []byte("binary asset payload")

	n, err := WriteReaderAtomic(path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to write from reader: %v", err)
	}
	if n != int64(len(data)) {
		t.Errorf("Expected %d bytes written, got %d", len(data), n)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file back: %v", err)
	}
	if !bytes.Equal(content, data) {
		t.Error("File content does not match reader data")
	}
}

func TestCopyFileAtomic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dst := filepath.Join(dir, "out", "dst.jpg")

	if err := os.WriteFile(src, []byte("pixels"), 0644); err != nil {
		t.Fatalf("Failed to seed source: %v", err)
	}
	if err := CopyFileAtomic(dst, src); err != nil {
		t.Fatalf("Failed to copy: %v", err)
	}

	content, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("Failed to read copy: %v", err)
	}
	if string(content) != "pixels" {
		t.Errorf("Expected copied content, got %q", content)
	}

	if err := CopyFileAtomic(dst, filepath.Join(dir, "missing.jpg")); err == nil {
		t.Error("Expected error copying missing source")
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"photo.jpg", "photo.jpg"},
		{"my photo.jpg", "my_photo.jpg"},
		{"a/b\\c.png", "a_b_c.png"},
		{"file?.gif", "file_.gif"},
		{"ok-name_1.webp", "ok-name_1.webp"},
	}

	for _, tt := range tests {
		if got := SanitizeName(tt.input); got != tt.expected {
			t.Errorf("SanitizeName(%q): expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestFindSharedAsset(t *testing.T) {
	archive, err := NewArchive(t.TempDir(), "assets")
	if err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}

	seed := []string{"styles.css", "photo.jpg", "banner"}
	for _, name := range seed {
		if err := os.WriteFile(archive.SharedAssetPath(name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to seed asset %s: %v", name, err)
		}
	}

	if name, ok := archive.FindSharedAsset("styles.css"); !ok || name != "styles.css" {
		t.Errorf("Expected exact match styles.css, got %q (ok=%v)", name, ok)
	}

	// An asset stored with a sniffed extension is matched on its base
	if name, ok := archive.FindSharedAsset("photo"); !ok || name != "photo.jpg" {
		t.Errorf("Expected base match photo.jpg, got %q (ok=%v)", name, ok)
	}

	if name, ok := archive.FindSharedAsset("banner"); !ok || name != "banner" {
		t.Errorf("Expected extensionless match banner, got %q (ok=%v)", name, ok)
	}

	if _, ok := archive.FindSharedAsset("missing.png"); ok {
		t.Error("Expected no match for missing asset")
	}
	if _, ok := archive.FindSharedAsset(""); ok {
		t.Error("Expected no match for empty base")
	}
}

func TestFindPostAsset(t *testing.T) {
	archive, err := NewArchive(t.TempDir(), "assets")
	if err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}

	fileBase := "2010_03_0001_my-post"
	dir := archive.PostAssetDir(fileBase)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create post folder: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "6a00photo-800wi.jpg"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to seed asset: %v", err)
	}

	if name, ok := archive.FindPostAsset(fileBase, "6a00photo-800wi"); !ok || name != "6a00photo-800wi.jpg" {
		t.Errorf("Expected base match with sniffed extension, got %q (ok=%v)", name, ok)
	}

	if _, ok := archive.FindPostAsset("2010_03_0002_other", "6a00photo-800wi"); ok {
		t.Error("Expected no match in a different post folder")
	}
}
