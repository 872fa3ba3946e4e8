package storage

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Archive owns the on-disk layout of the fetched site: one HTML file
// per document at the root, one folder per document for its private
// assets, and a single shared-assets folder.
type Archive struct {
	root         string
	assetsSubdir string
}

// NewArchive creates the archive root and shared-assets folder
func NewArchive(root, assetsSubdir string) (*Archive, error) {
	if assetsSubdir == "" {
		assetsSubdir = "assets"
	}
	a := &Archive{root: root, assetsSubdir: assetsSubdir}

	if err := os.MkdirAll(a.AssetsDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive layout: %w", err)
	}
	return a, nil
}

// Root returns the archive root directory
func (a *Archive) Root() string {
	return a.root
}

// AssetsDir returns the shared-assets directory
func (a *Archive) AssetsDir() string {
	return filepath.Join(a.root, a.assetsSubdir)
}

// AssetsSubdir returns the shared-assets folder name relative to the root
func (a *Archive) AssetsSubdir() string {
	return a.assetsSubdir
}

// DocumentFileBase derives the archive filename (without extension)
// for a document: {year}_{month}_{index}_{slug}, or {index}_{slug}
// when the permalink carries no date. The index is the document's
// position in the de-duplicated permalink list, so names are stable
// across re-runs.
func DocumentFileBase(year, month string, index int, slug string) string {
	if year != "" && month != "" {
		return fmt.Sprintf("%s_%s_%04d_%s", year, month, index, SanitizeName(slug))
	}
	return fmt.Sprintf("%04d_%s", index, SanitizeName(slug))
}

var (
	datedDocPattern   = regexp.MustCompile(`^(\d{4})_(\d{2})_(\d{4})_(.+)\.html$`)
	undatedDocPattern = regexp.MustCompile(`^(\d{4})_(.+)\.html$`)
)

// DocumentNameParts holds metadata recovered from an archive filename
type DocumentNameParts struct {
	Year  string
	Month string
	Index int
	Slug  string
}

// ParseDocumentFileName recovers the naming parts from an archived
// document filename
func ParseDocumentFileName(name string) (DocumentNameParts, bool) {
	if m := datedDocPattern.FindStringSubmatch(name); m != nil {
		var index int
		fmt.Sscanf(m[3], "%d", &index)
		return DocumentNameParts{Year: m[1], Month: m[2], Index: index, Slug: m[4]}, true
	}
	if m := undatedDocPattern.FindStringSubmatch(name); m != nil {
		var index int
		fmt.Sscanf(m[1], "%d", &index)
		return DocumentNameParts{Index: index, Slug: m[2]}, true
	}
	return DocumentNameParts{}, false
}

// DocumentPath returns the absolute path of an archived document
func (a *Archive) DocumentPath(fileBase string) string {
	return filepath.Join(a.root, fileBase+".html")
}

// SharedAssetPath returns the absolute path of a shared asset
func (a *Archive) SharedAssetPath(name string) string {
	return filepath.Join(a.AssetsDir(), name)
}

// PostAssetDir returns the private asset folder of a document
func (a *Archive) PostAssetDir(fileBase string) string {
	return filepath.Join(a.root, fileBase)
}

// PostAssetPath returns the absolute path of a post-local asset
func (a *Archive) PostAssetPath(fileBase, name string) string {
	return filepath.Join(a.root, fileBase, name)
}

// SharedAssetRef returns the in-document reference for a shared asset.
// Documents sit at the archive root, so the reference is relative.
func (a *Archive) SharedAssetRef(name string) string {
	return path.Join(a.assetsSubdir, name)
}

// PostAssetRef returns the in-document reference for a post-local asset
func (a *Archive) PostAssetRef(fileBase, name string) string {
	return path.Join(fileBase, name)
}

// Documents lists archived document filenames at the root in sorted
// order
func (a *Archive) Documents() ([]string, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive root: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".html") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// FindSharedAsset looks for a stored shared asset by its URL-derived
// base name. Assets fetched without an extension get one sniffed from
// the response, so a resumed run has to match on the base alone.
func (a *Archive) FindSharedAsset(base string) (string, bool) {
	return findStoredAsset(a.AssetsDir(), base)
}

// FindPostAsset looks for a stored post-local asset by base name
func (a *Archive) FindPostAsset(fileBase, base string) (string, bool) {
	return findStoredAsset(a.PostAssetDir(fileBase), base)
}

func findStoredAsset(dir, base string) (string, bool) {
	if base == "" {
		return "", false
	}
	if _, err := os.Stat(filepath.Join(dir, base)); err == nil {
		return base, true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	var matches []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.TrimSuffix(name, path.Ext(name)) == base {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeName replaces filesystem-hostile characters with underscores
func SanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// AssetName derives the stored filename for an asset URL: the path
// basename, sanitized, with an 8-hex digest of the query string
// appended before the extension so distinct query variants of one
// path stay distinct files.
func AssetName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Path == "" || parsed.Path == "/" {
		return hashName(rawURL)
	}

	base := path.Base(parsed.Path)
	if base == "." || base == "/" || base == "" {
		return hashName(rawURL)
	}
	base = SanitizeName(base)

	if parsed.RawQuery != "" {
		sum := md5.Sum([]byte(parsed.RawQuery))
		digest := hex.EncodeToString(sum[:])[:8]
		ext := path.Ext(base)
		base = strings.TrimSuffix(base, ext) + "_" + digest + ext
	}

	return base
}

// hashName is the fallback for URLs with no usable path component
func hashName(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return "asset_" + hex.EncodeToString(sum[:])[:8]
}
