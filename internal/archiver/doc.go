// Package archiver turns a list of post permalinks into a
// self-contained local archive: one HTML file per post at the archive
// root, a private folder of media next to each, and a shared folder
// for the site chrome every page pulls in.
//
// Documents are fanned out to a worker pool. Each worker archives one
// document completely, fetching its stylesheets, scripts, icons,
// images and linked files, then rewrites the markup against the
// stored copies before the document file is written. Shared assets
// are downloaded at most once per run regardless of how many
// documents reference them; stylesheets are followed through @import
// and url() up to a fixed depth and rewritten the same way.
//
// Every completed item is recorded in the resume ledger only after
// its file is durably on disk, so an interrupted run picks up where
// it stopped. A reference that keeps failing after retries degrades
// to its absolute source URL and is reported in the run summary
// instead of blocking the document.
package archiver
