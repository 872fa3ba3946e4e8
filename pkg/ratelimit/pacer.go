package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// HostPacer inserts a fixed pause between consecutive requests a worker
// makes to the source host. Requests to other hosts pass through without
// delay, so third-party asset fetches are not throttled.
type HostPacer struct {
	host  string
	delay time.Duration
}

// NewHostPacer creates a pacer for the given host. An empty host or a
// non-positive delay disables pacing.
func NewHostPacer(host string, delay time.Duration) *HostPacer {
	return &HostPacer{host: strings.ToLower(host), delay: delay}
}

// NewHostPacerForURL creates a pacer keyed on the host of rawURL
func NewHostPacerForURL(rawURL string, delay time.Duration) *HostPacer {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return NewHostPacer("", delay)
	}
	return NewHostPacer(parsed.Hostname(), delay)
}

// Applies reports whether requests to the given URL are paced
func (p *HostPacer) Applies(rawURL string) bool {
	if p.host == "" || p.delay <= 0 {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(parsed.Hostname(), p.host)
}

// Pause sleeps the configured delay when the URL targets the paced
// host. It returns early if the context is cancelled.
func (p *HostPacer) Pause(ctx context.Context, rawURL string) error {
	if !p.Applies(rawURL) {
		return nil
	}

	timer := time.NewTimer(p.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
