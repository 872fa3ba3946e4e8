// Package dedup consolidates the media scattered across an archive
// into a single flat folder suitable for a CMS upload directory.
//
// The same picture typically exists in several copies: per-post
// folders get independent downloads, and the platform serves resized
// variants of one original. Images are therefore matched by a 64-bit
// perceptual hash, merging copies within a configurable Hamming
// distance; all other files merge only when their bytes are
// identical. The first copy encountered in lexical walk order becomes
// the canonical file, named after its owning folder, and every merged
// path is recorded in a rename map consumed by the export stage.
package dedup
