package archiver

import "sync"

// sharedState coordinates shared-asset fetches across workers so a
// URL referenced by many documents is downloaded at most once per
// run. One mutex guards the whole map; completion is published by
// closing the entry's done channel.
type sharedState struct {
	mu      sync.Mutex
	entries map[string]*sharedEntry
}

type sharedEntry struct {
	done chan struct{}
	// name and err are written once, before done is closed
	name string
	err  error
}

func newSharedState() *sharedState {
	return &sharedState{entries: make(map[string]*sharedEntry)}
}

// begin claims a URL. winner is true for the caller that must
// materialize the asset and then call finish exactly once; every
// other caller gets the same entry and waits on entry.done.
func (s *sharedState) begin(url string) (*sharedEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[url]; ok {
		return entry, false
	}
	entry := &sharedEntry{done: make(chan struct{})}
	s.entries[url] = entry
	return entry, true
}

// finish publishes the outcome and wakes waiters. Failed entries are
// removed so a later document retries the URL instead of inheriting
// the failure for the rest of the run.
func (s *sharedState) finish(url, name string, err error) {
	s.mu.Lock()
	entry, ok := s.entries[url]
	if err != nil {
		delete(s.entries, url)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	entry.name = name
	entry.err = err
	close(entry.done)
}
