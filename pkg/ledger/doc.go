// Package ledger records completed work items so interrupted runs can
// resume without repeating or corrupting work.
//
// Each pipeline stage owns one append-only, line-oriented log under the
// state directory (archive.log, discover.log). Opening the ledger
// replays every log into an in-memory key set; duplicate lines collapse
// and a torn final line from a crash mid-append is discarded, so the
// interrupted item simply runs again.
//
// The completion contract is write-then-mark: callers persist the
// artifact first (temporary file, fsync, rename into place) and only
// then call MarkDone. A crash between the two steps leaves the item
// unmarked and safely re-executed on the next run. VerifyArtifact
// guards the opposite failure: when a log entry exists but the artifact
// has disappeared, the entry is invalidated and the item re-runs, since
// the filesystem outranks the ledger whenever they disagree.
//
// Usage:
//
//	l, err := ledger.Open(stateDir)
//	if err != nil {
//	    return err
//	}
//	defer l.Close()
//
//	if l.VerifyArtifact(ledger.StageArchive, url, destPath) {
//	    return nil // already archived
//	}
//	if err := writeAtomically(destPath, body); err != nil {
//	    return err
//	}
//	return l.MarkDone(ledger.StageArchive, url)
package ledger
