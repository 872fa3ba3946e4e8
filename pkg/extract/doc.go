// Package extract isolates the article body and publishing metadata
// of an archived page. Container selection runs three tiers (explicit
// selector, text-density heuristic, known platform containers) and
// records which one fired; the extracted subtree then passes through
// independently toggleable cleaning passes that unwrap image popup
// links, drop empty wrapper elements and collapse whitespace runs.
package extract
