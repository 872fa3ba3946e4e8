// Package fetch is the pipeline's HTTP layer.
//
// Every network request in the tool goes through one Client, which
// applies browser-shaped headers, an optional requests-per-minute
// ceiling, and a bounded retry policy with configurable backoff.
// Transient failures (connection errors, 429, 5xx) are retried;
// permanent ones (4xx) are returned immediately so callers can
// degrade the affected reference and move on.
//
// Basic-auth credentials, when configured, are pinned to a single
// host: asset fetches from CDNs or other third-party hosts never
// carry them, and nothing in this package writes them to the log.
//
// FetchHTML decodes page bodies to UTF-8 using the charset declared
// by the server or the document. Download returns raw asset bytes
// plus the declared Content-Type, which SniffExtension combines with
// magic-byte detection to repair extensionless asset names.
package fetch
