// Package discover finds every post permalink on a paged blog.
//
// The crawler requests /page/1/, /page/2/ and so on until the site
// returns 404 or the pager stops pointing at the next sequential page.
// Each listing page's raw HTML is stored under the state directory,
// its permalinks are appended to the permalinks file, and only then is
// the page recorded in the ledger, so interrupted runs resume without
// losing or repeating work.
package discover
