package archiver

import (
	"context"
	"path"
	"strings"
	"time"

	"typeporter/pkg/config"
	errs "typeporter/pkg/errors"
	"typeporter/pkg/fetch"
	"typeporter/pkg/ledger"
	"typeporter/pkg/logger"
	"typeporter/pkg/models"
	"typeporter/pkg/ratelimit"
	"typeporter/pkg/resolve"
	"typeporter/pkg/storage"
)

// Fetcher is the part of the fetch client the archiver needs
type Fetcher interface {
	FetchHTML(ctx context.Context, pageURL string) ([]byte, error)
	Download(ctx context.Context, rawURL string) ([]byte, string, error)
	TryDownload(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Progress receives live per-document updates during a run. Calls
// arrive from the single result-draining goroutine, one at a time.
type Progress interface {
	DocumentDone(url string, assets, reused int)
	DocumentSkipped(url string)
	DocumentFailed(url string, err error)
}

// Archiver drives the archive stage. For every pending document it
// fetches the page, materializes each reference into the archive
// tree, rewrites the markup to point at the local copies and records
// the document done. Interrupted runs resume from the ledger without
// refetching finished work.
type Archiver struct {
	client   Fetcher
	resolver *resolve.Resolver
	archive  *storage.Archive
	ledger   *ledger.Ledger
	pacer    *ratelimit.HostPacer
	shared   *sharedState
	workers  int
	progress Progress
	logger   logger.Logger
}

// New wires an Archiver from its collaborators
func New(cfg *config.Config, client Fetcher, resolver *resolve.Resolver, archive *storage.Archive, led *ledger.Ledger, log logger.Logger) *Archiver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Archiver{
		client:   client,
		resolver: resolver,
		archive:  archive,
		ledger:   led,
		pacer:    ratelimit.NewHostPacerForURL(cfg.Site.URL, cfg.Fetch.RequestDelay.Std()),
		shared:   newSharedState(),
		workers:  cfg.Fetch.Workers,
		logger:   log,
	}
}

// SetProgress attaches a live progress receiver. Pass nil to detach.
func (a *Archiver) SetProgress(p Progress) {
	a.progress = p
}

// Summary aggregates one archive run
type Summary struct {
	Documents        int
	DocumentsFetched int
	DocumentsSkipped int
	DocumentsFailed  int
	AssetsFetched    int
	AssetsReused     int
	Failures         []FailedRef
}

// Plan turns a raw permalink list into documents with stable 1-based
// indexes. Duplicates keep their first position; later occurrences
// are dropped so indexes never shift between runs.
func Plan(permalinks []string) []models.Document {
	seen := make(map[string]struct{}, len(permalinks))
	var docs []models.Document

	for _, link := range permalinks {
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		year, month, slug := resolve.ParsePermalink(link)
		if slug == "" {
			slug = "post"
		}
		docs = append(docs, models.Document{
			Slug:  slug,
			URL:   link,
			Index: len(docs) + 1,
			Year:  year,
			Month: month,
		})
	}
	return docs
}

// Run archives every document in the permalink list that the ledger
// does not already record. It returns a summary of the run; document
// failures are reported there, not as an error.
func (a *Archiver) Run(ctx context.Context, permalinks []string) (*Summary, error) {
	docs := Plan(permalinks)
	summary := &Summary{Documents: len(docs)}

	a.logger.InfoWithFields("Starting archive run", map[string]interface{}{
		"documents": len(docs),
		"done":      a.ledger.CountDone(ledger.StageArchive),
		"workers":   a.workers,
	})

	pool := NewWorkerPool(ctx, a.workers, a, a.logger)
	pool.Start()

	go func() {
		for _, doc := range docs {
			if err := pool.Submit(FetchJob{Doc: doc}); err != nil {
				break
			}
		}
		pool.Stop()
	}()

	for result := range pool.Results() {
		a.observe(summary, result)
	}

	a.logger.InfoWithFields("Archive run finished", map[string]interface{}{
		"documents":      summary.Documents,
		"fetched":        summary.DocumentsFetched,
		"skipped":        summary.DocumentsSkipped,
		"failed":         summary.DocumentsFailed,
		"assets_fetched": summary.AssetsFetched,
		"assets_reused":  summary.AssetsReused,
		"degraded_refs":  len(summary.Failures),
	})
	return summary, ctx.Err()
}

func (a *Archiver) observe(summary *Summary, result FetchResult) {
	summary.AssetsFetched += result.AssetsFetched
	summary.AssetsReused += result.AssetsReused
	summary.Failures = append(summary.Failures, result.Failures...)

	switch {
	case result.Error != nil:
		summary.DocumentsFailed++
		a.logger.WarnWithFields("Document not archived, will retry next run", map[string]interface{}{
			"url":   result.Job.Doc.URL,
			"error": result.Error.Error(),
		})
		if a.progress != nil {
			a.progress.DocumentFailed(result.Job.Doc.URL, result.Error)
		}
	case result.Skipped:
		summary.DocumentsSkipped++
		if a.progress != nil {
			a.progress.DocumentSkipped(result.Job.Doc.URL)
		}
	default:
		summary.DocumentsFetched++
		a.logger.InfoWithFields("Document archived", map[string]interface{}{
			"url":      result.Job.Doc.URL,
			"assets":   result.AssetsFetched,
			"reused":   result.AssetsReused,
			"degraded": len(result.Failures),
			"duration": result.Duration.String(),
		})
		if a.progress != nil {
			a.progress.DocumentDone(result.Job.Doc.URL, result.AssetsFetched, result.AssetsReused)
		}
	}
}

// processDocument archives one document end to end. The document file
// is written and marked done only after every reference has either
// been materialized or degraded to its absolute URL.
func (a *Archiver) processDocument(ctx context.Context, workerID int, job FetchJob) FetchResult {
	start := time.Now()
	result := FetchResult{Job: job}
	doc := job.Doc

	fileBase := storage.DocumentFileBase(doc.Year, doc.Month, doc.Index, doc.Slug)
	docPath := a.archive.DocumentPath(fileBase)

	if a.ledger.VerifyArtifact(ledger.StageArchive, doc.URL, docPath) {
		a.logger.DebugWithFields("Document already archived, skipping", map[string]interface{}{
			"worker_id": workerID,
			"url":       doc.URL,
		})
		result.Skipped = true
		return result
	}

	a.logger.DebugWithFields("Archiving document", map[string]interface{}{
		"worker_id": workerID,
		"url":       doc.URL,
		"file":      fileBase + ".html",
	})

	if err := a.pacer.Pause(ctx, doc.URL); err != nil {
		result.Error = err
		return result
	}
	body, err := a.client.FetchHTML(ctx, doc.URL)
	if err != nil {
		result.Error = err
		return result
	}

	refs, err := a.resolver.DocumentRefs(body, doc.URL)
	if err != nil {
		a.logger.WarnWithFields("Failed to parse document, archiving as fetched", map[string]interface{}{
			"url":   doc.URL,
			"error": err.Error(),
		})
	}

	local := make(map[string]string, len(refs))
	failed := make(map[string]struct{})
	for _, ref := range refs {
		localRef, ok := a.materialize(ctx, fileBase, ref, &result)
		if !ok {
			failed[ref.URL] = struct{}{}
			continue
		}
		local[ref.URL] = localRef
	}

	// A cancelled run must not record a half-archived document
	if err := ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	out, err := rewriteDocument(body, doc.URL, local, failed)
	if err != nil {
		a.logger.WarnWithFields("Failed to rewrite document, keeping fetched markup", map[string]interface{}{
			"url":   doc.URL,
			"error": err.Error(),
		})
		out = body
	}

	if err := storage.WriteFileAtomic(docPath, out); err != nil {
		result.Error = err
		return result
	}
	if err := a.ledger.MarkDone(ledger.StageArchive, doc.URL); err != nil {
		result.Error = err
		return result
	}

	result.Duration = time.Since(start)
	return result
}

// materialize fetches one reference into the archive, recording
// counts and failures on result. It returns the in-document reference
// to the stored copy; ok is false when the reference could not be
// archived and must stay absolute.
func (a *Archiver) materialize(ctx context.Context, fileBase string, ref models.AssetRef, result *FetchResult) (string, bool) {
	var (
		localRef string
		err      error
	)

	if ref.Placement == models.PlacementShared {
		level := 0
		if ref.Kind == models.RefStylesheet {
			level = 1
		}
		var name string
		name, err = a.fetchShared(ctx, ref, level, nil, result)
		if err == nil {
			localRef = a.archive.SharedAssetRef(name)
		}
	} else {
		var name string
		name, err = a.fetchPostLocal(ctx, fileBase, ref, result)
		if err == nil {
			localRef = a.archive.PostAssetRef(fileBase, name)
		}
	}

	if err != nil {
		result.Failures = append(result.Failures, FailedRef{
			Document: result.Job.Doc.URL,
			URL:      ref.URL,
			Reason:   err.Error(),
		})
		a.logger.WarnWithFields("Reference kept as absolute URL", map[string]interface{}{
			"document": result.Job.Doc.URL,
			"url":      ref.URL,
			"error":    err.Error(),
		})
		return "", false
	}
	return localRef, true
}

// fetchShared materializes one shared asset, downloading it at most
// once across all workers. level is the stylesheet nesting depth of
// the reference (0 for non-stylesheet document references); chain
// carries the URLs this goroutine is currently materializing so
// @import cycles cannot recurse forever.
func (a *Archiver) fetchShared(ctx context.Context, ref models.AssetRef, level int, chain map[string]struct{}, result *FetchResult) (string, error) {
	if _, cyclic := chain[ref.URL]; cyclic {
		return "", errs.Newf(errs.ErrorTypeDecode, "stylesheet import cycle at %s", ref.URL)
	}

	entry, winner := a.shared.begin(ref.URL)
	if !winner {
		// Inside a stylesheet chain this goroutine holds entries of
		// its own, so waiting on another holder could deadlock on
		// mutual imports. Leave the reference absolute instead.
		if len(chain) > 0 && ref.Kind == models.RefStylesheet {
			select {
			case <-entry.done:
			default:
				return "", errs.Newf(errs.ErrorTypeUnknown, "stylesheet busy in another worker: %s", ref.URL)
			}
		} else {
			select {
			case <-entry.done:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		if entry.err != nil {
			return "", entry.err
		}
		result.AssetsReused++
		return entry.name, nil
	}

	name, err := a.materializeShared(ctx, ref, level, chain, result)
	a.shared.finish(ref.URL, name, err)
	return name, err
}

// materializeShared does the actual work for the winning claim of a
// shared URL: reuse the copy from a previous run when the ledger and
// the filesystem agree, otherwise download, recurse into stylesheets
// and write atomically before marking done.
func (a *Archiver) materializeShared(ctx context.Context, ref models.AssetRef, level int, chain map[string]struct{}, result *FetchResult) (string, error) {
	base := storage.AssetName(ref.URL)

	if a.ledger.IsDone(ledger.StageArchive, ref.URL) {
		if name, ok := a.archive.FindSharedAsset(base); ok {
			result.AssetsReused++
			return name, nil
		}
		a.ledger.Invalidate(ledger.StageArchive, ref.URL)
	}

	data, contentType, err := a.download(ctx, ref)
	if err != nil {
		return "", err
	}
	name := repairedName(base, contentType, data)

	if ref.Kind == models.RefStylesheet {
		data = a.archiveStylesheet(ctx, data, ref.URL, level, chain, "./", result)
	}

	if err := storage.WriteFileAtomic(a.archive.SharedAssetPath(name), data); err != nil {
		return "", err
	}
	if err := a.ledger.MarkDone(ledger.StageArchive, ref.URL); err != nil {
		return "", err
	}

	result.AssetsFetched++
	return name, nil
}

// fetchPostLocal materializes an asset private to one document. The
// ledger key carries the owning document's file base, so identical
// bytes referenced by two documents become two independent copies.
func (a *Archiver) fetchPostLocal(ctx context.Context, fileBase string, ref models.AssetRef, result *FetchResult) (string, error) {
	key := models.WorkItem{URL: ref.URL, Kind: models.WorkPostAsset, OwnerSlug: fileBase, Ref: ref.Kind}.Key()
	base := storage.AssetName(ref.URL)

	if a.ledger.IsDone(ledger.StageArchive, key) {
		if name, ok := a.archive.FindPostAsset(fileBase, base); ok {
			result.AssetsReused++
			return name, nil
		}
		a.ledger.Invalidate(ledger.StageArchive, key)
	}

	data, contentType, err := a.download(ctx, ref)
	if err != nil {
		return "", err
	}
	name := repairedName(base, contentType, data)

	if ref.Kind == models.RefStylesheet {
		prefix := "../" + a.archive.AssetsSubdir() + "/"
		data = a.archiveStylesheet(ctx, data, ref.URL, 1, nil, prefix, result)
	}

	if err := storage.WriteFileAtomic(a.archive.PostAssetPath(fileBase, name), data); err != nil {
		return "", err
	}
	if err := a.ledger.MarkDone(ledger.StageArchive, key); err != nil {
		return "", err
	}

	result.AssetsFetched++
	return name, nil
}

// archiveStylesheet pulls in everything a fetched stylesheet
// references and rewrites its text to point at the local copies.
// Children always land in the shared assets folder, so references
// from a shared parent are "./name" siblings; prefix adjusts the path
// for stylesheets stored elsewhere. Recursion stops at MaxCSSDepth.
func (a *Archiver) archiveStylesheet(ctx context.Context, css []byte, cssURL string, level int, chain map[string]struct{}, prefix string, result *FetchResult) []byte {
	if level >= resolve.MaxCSSDepth {
		return css
	}

	childChain := make(map[string]struct{}, len(chain)+1)
	for u := range chain {
		childChain[u] = struct{}{}
	}
	childChain[cssURL] = struct{}{}

	replacements := make(map[string]string)
	for _, child := range a.resolver.StylesheetRefs(css, cssURL) {
		name, err := a.fetchShared(ctx, child.Ref, level+1, childChain, result)
		if err != nil {
			result.Failures = append(result.Failures, FailedRef{
				Document: result.Job.Doc.URL,
				URL:      child.Ref.URL,
				Reason:   err.Error(),
			})
			a.logger.WarnWithFields("Stylesheet reference kept as absolute URL", map[string]interface{}{
				"stylesheet": cssURL,
				"url":        child.Ref.URL,
				"error":      err.Error(),
			})
			continue
		}
		replacements[child.Raw] = prefix + name
	}

	if len(replacements) == 0 {
		return css
	}
	return resolve.RewriteCSS(css, replacements)
}

// download fetches one asset, trying the full-size variant first for
// platform-scaled images
func (a *Archiver) download(ctx context.Context, ref models.AssetRef) ([]byte, string, error) {
	if ref.Kind == models.RefImage {
		if variant, ok := fetch.FullSizeVariant(ref.URL); ok {
			if err := a.pacer.Pause(ctx, variant); err != nil {
				return nil, "", err
			}
			data, contentType, err := a.client.TryDownload(ctx, variant)
			if err == nil {
				a.logger.DebugWithFields("Fetched full-size variant", map[string]interface{}{
					"url":     ref.URL,
					"variant": variant,
				})
				return data, contentType, nil
			}
			a.logger.DebugWithFields("Full-size variant unavailable, falling back", map[string]interface{}{
				"variant": variant,
				"error":   err.Error(),
			})
		}
	}

	if err := a.pacer.Pause(ctx, ref.URL); err != nil {
		return nil, "", err
	}
	return a.client.Download(ctx, ref.URL)
}

// repairedName appends a sniffed extension when the URL-derived base
// has none, so archived files open correctly from disk
func repairedName(base, contentType string, data []byte) string {
	if path.Ext(base) != "" {
		return base
	}
	if ext := fetch.SniffExtension(contentType, data); ext != "" {
		return base + ext
	}
	return base
}
