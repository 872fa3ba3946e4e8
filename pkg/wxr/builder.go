package wxr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"typeporter/pkg/config"
	"typeporter/pkg/dedup"
	errs "typeporter/pkg/errors"
	"typeporter/pkg/extract"
	"typeporter/pkg/logger"
	"typeporter/pkg/storage"
)

// channelDescription is the fixed blurb in every bundle header
const channelDescription = "An archive of a Typepad blog."

// Builder turns an archive tree into WordPress import bundles
type Builder struct {
	cfg      *config.Config
	archive  *storage.Archive
	rewriter *Rewriter
	log      logger.Logger
}

// NewBuilder creates a builder over an archive. renames is the media
// consolidation map; an empty map leaves every media reference
// unresolved.
func NewBuilder(cfg *config.Config, archive *storage.Archive, renames dedup.RenameMap, log logger.Logger) (*Builder, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	rewriter, err := NewRewriter(renames, cfg.Site.URL, cfg.Export.MediaBase, cfg.Export.PermalinkBase)
	if err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, archive: archive, rewriter: rewriter, log: log}, nil
}

// Result summarizes an export run
type Result struct {
	// Posts is the number of items written across all bundles
	Posts int
	// Skipped counts documents with no extractable content
	Skipped int
	// Bundles lists the written files in order
	Bundles []string
	// Unresolved lists media references left pointing at their
	// original targets
	Unresolved []UnresolvedRef
}

// post pairs an assembled item with the fields the bundle header needs
type post struct {
	item       Item
	published  time.Time
	unresolved []UnresolvedRef
}

// Run extracts every archived document, rewrites its references and
// writes the import bundles. Documents keep their archive order and
// post ids number them consecutively across bundle boundaries, so the
// same archive always produces the same bundles.
func (b *Builder) Run(ctx context.Context) (*Result, error) {
	names, err := b.archive.Documents()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errs.Newf(errs.ErrorTypeNotFound, "no archived documents under %s", b.archive.Root())
	}

	opts := extract.Options{
		Selector:           b.cfg.Export.ContentSelector,
		KeepPopupLinks:     b.cfg.Export.KeepPopupLinks,
		KeepEmptyWrappers:  b.cfg.Export.KeepEmptyWrappers,
		KeepWhitespaceRuns: b.cfg.Export.KeepWhitespaceRuns,
	}

	// Extraction parses whole documents, so it runs CPU-bound and
	// wider than the fetch pool. Results land in their input slot to
	// keep the order.
	posts := make([]*post, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := b.convert(name, opts)
			if err != nil {
				if errs.IsFatal(err) {
					return err
				}
				b.log.WarnWithFields("Skipping document", map[string]interface{}{
					"document": name,
					"error":    err.Error(),
				})
				return nil
			}
			posts[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	kept := make([]*post, 0, len(posts))
	for _, p := range posts {
		if p == nil {
			res.Skipped++
			continue
		}
		kept = append(kept, p)
		res.Unresolved = append(res.Unresolved, p.unresolved...)
	}
	if len(kept) == 0 {
		return nil, errs.New(errs.ErrorTypeNotFound, "no exportable posts in archive")
	}
	for i, p := range kept {
		p.item.PostID = i + 1
	}
	res.Posts = len(kept)

	title := b.cfg.Site.Title
	if title == "" {
		title = b.rewriter.siteHost
	}
	pubDate := newestPublished(kept)

	for n, chunk := range chunkPosts(kept, b.cfg.Export.BundleSize) {
		items := make([]Item, len(chunk))
		for i, p := range chunk {
			items[i] = p.item
		}
		doc := NewDocument(title, b.cfg.Site.URL, channelDescription, pubDate, items)
		out, err := Marshal(doc)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(b.cfg.Export.OutputDir, b.bundleName(n+1))
		if err := storage.WriteFileAtomic(path, out); err != nil {
			return nil, err
		}
		res.Bundles = append(res.Bundles, path)
		b.log.InfoWithFields("Wrote import bundle", map[string]interface{}{
			"bundle": filepath.Base(path),
			"posts":  len(items),
		})
	}
	return res, nil
}

// convert reads one archived document and assembles its item
func (b *Builder) convert(name string, opts extract.Options) (*post, error) {
	fileBase := strings.TrimSuffix(name, ".html")
	data, err := os.ReadFile(b.archive.DocumentPath(fileBase))
	if err != nil {
		return nil, err
	}
	page, err := extract.Load(data, fileBase)
	if err != nil {
		return nil, err
	}
	content, err := page.Content(opts)
	if err != nil {
		return nil, err
	}
	meta := page.Meta(b.cfg.Site.URL, b.cfg.Site.Author)
	if meta.DateSource != extract.DateFromContent {
		b.log.WarnWithFields("Publish date missing from document", map[string]interface{}{
			"document": name,
			"fallback": meta.DateSource,
		})
	}
	unresolved := b.rewriter.Rewrite(fileBase, content.Selection)
	html, err := content.HTML()
	if err != nil {
		return nil, err
	}
	item := NewItem(meta.Title, meta.URL, meta.Author, meta.Slug, html, meta.Published)
	return &post{item: item, published: meta.Published, unresolved: unresolved}, nil
}

// bundleName follows the chunking mode: one fixed name when chunking
// is off, numbered parts when it is on
func (b *Builder) bundleName(part int) string {
	prefix := b.cfg.Export.OutputPrefix
	if b.cfg.Export.BundleSize <= 0 {
		return prefix + ".xml"
	}
	return fmt.Sprintf("%s-part-%d.xml", prefix, part)
}

// chunkPosts splits posts into contiguous runs of at most size,
// preserving order. size <= 0 keeps everything in one bundle.
func chunkPosts(posts []*post, size int) [][]*post {
	if size <= 0 {
		return [][]*post{posts}
	}
	var chunks [][]*post
	for start := 0; start < len(posts); start += size {
		end := start + size
		if end > len(posts) {
			end = len(posts)
		}
		chunks = append(chunks, posts[start:end])
	}
	return chunks
}

// newestPublished returns the latest publish time across the kept
// posts. Bundle headers reuse it as their pubDate, keeping re-runs
// over an unchanged archive byte-identical.
func newestPublished(posts []*post) time.Time {
	newest := posts[0].published
	for _, p := range posts[1:] {
		if p.published.After(newest) {
			newest = p.published
		}
	}
	return newest
}
