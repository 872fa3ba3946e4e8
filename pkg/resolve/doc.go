// Package resolve discovers asset references in fetched markup and
// classifies where each one belongs in the archive.
//
// DocumentRefs walks a post's HTML and returns an ordered,
// de-duplicated list of (URL, kind) references: stylesheets, scripts
// and icons from the whole document, images and downloadable media
// links from the post's content scope only. StylesheetRefs does the
// same for url(...) and @import targets inside CSS; @import targets
// come back tagged as stylesheets so the archiver can follow them,
// bounded by MaxCSSDepth.
//
// Classification decides shared versus post-local placement: site
// chrome (resources on the site host or a configured shared host) is
// fetched once into the shared assets folder, while a post's own
// media (the platform's /.a/ file endpoint, attachments, anything on
// a third-party host) is stored in that post's private folder.
package resolve
