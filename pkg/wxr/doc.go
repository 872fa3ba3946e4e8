// Package wxr assembles WordPress WXR 1.2 import bundles from an
// archived blog.
//
// Every archived document contributes one item: its content is
// extracted, media references move under the configured upload base
// through the consolidation rename map, and links between posts of the
// source site become permalinks. Items are numbered and chunked in
// archive order, so a re-run over the same archive writes byte
// identical bundles. Media references without a canonical file keep
// their original target and are reported as unresolved.
package wxr
