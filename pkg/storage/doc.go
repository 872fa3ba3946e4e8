// Package storage owns the on-disk layout of a site archive and the
// atomic write primitives the pipeline uses everywhere it persists.
//
// The layout places every archived document as an HTML file at the
// archive root, gives each document a same-named folder for its
// private assets, and keeps site-wide assets in one shared folder:
//
//	archive/
//	  2009_05_0001_my-first-post.html
//	  2009_05_0001_my-first-post/
//	    photo.jpg
//	  assets/
//	    styles.css
//
// Document filenames encode publication year, month, a stable index,
// and the permalink slug, so the archive sorts chronologically and
// later stages can recover metadata from the name alone.
//
// All writes go through WriteFileAtomic or WriteReaderAtomic, which
// stage into a temp file, sync, and rename. A crash mid-write leaves
// at worst an orphaned .tmp file, never a truncated artifact, which
// is what lets the resume ledger trust files that exist on disk.
//
// Usage:
//
//	archive, err := storage.NewArchive("./archive", "assets")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	base := storage.DocumentFileBase("2009", "05", 1, "my-first-post")
//	err = storage.WriteFileAtomic(archive.DocumentPath(base), html)
package storage
