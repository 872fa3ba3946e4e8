package integration

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// MockBlogServer simulates a Typepad-style blog host. Listing pages,
// posts and assets are registered up front; every request is counted
// per path, so tests can assert exactly how often the pipeline touched
// each resource. Unregistered paths return 404, which doubles as the
// blog's natural end-of-paging signal.
type MockBlogServer struct {
	server *httptest.Server

	mu        sync.Mutex
	routes    map[string]mockRoute
	counts    map[string]int
	errors    map[string]int
	transient map[string]*transientError
	delays    map[string]time.Duration
	sawAuth   map[string]bool

	authUser string
	authPass string

	totalRequests int32
}

type mockRoute struct {
	contentType string
	body        []byte
}

// transientError fails the next remaining requests to a path with
// status, then lets requests through again
type transientError struct {
	remaining int
	status    int
}

// NewMockBlogServer starts an empty blog server. Register pages and
// assets before pointing the pipeline at GetURL().
func NewMockBlogServer() *MockBlogServer {
	s := &MockBlogServer{
		routes:    make(map[string]mockRoute),
		counts:    make(map[string]int),
		errors:    make(map[string]int),
		transient: make(map[string]*transientError),
		delays:    make(map[string]time.Duration),
		sawAuth:   make(map[string]bool),
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *MockBlogServer) handle(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&s.totalRequests, 1)
	path := r.URL.Path

	s.mu.Lock()
	s.counts[path]++
	if r.Header.Get("Authorization") != "" {
		s.sawAuth[path] = true
	}
	delay := s.delays[path]
	status, failing := s.errors[path]
	if !failing {
		if te, ok := s.transient[path]; ok && te.remaining > 0 {
			te.remaining--
			status, failing = te.status, true
		}
	}
	route, found := s.routes[path]
	user, pass := s.authUser, s.authPass
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failing {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if user != "" {
		gotUser, gotPass, ok := r.BasicAuth()
		if !ok || gotUser != user || gotPass != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="blog"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}
	if !found {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", route.contentType)
	w.Write(route.body)
}

// AddPage registers an HTML page at path
func (s *MockBlogServer) AddPage(path, html string) {
	s.AddAsset(path, "text/html; charset=utf-8", []byte(html))
}

// AddAsset registers a raw asset at path with the given content type
func (s *MockBlogServer) AddAsset(path, contentType string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = mockRoute{contentType: contentType, body: body}
}

// RequireAuth makes every registered route demand HTTP Basic
// credentials. Pass empty strings to turn the requirement off.
func (s *MockBlogServer) RequireAuth(user, pass string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authUser = user
	s.authPass = pass
}

// SetErrorResponse makes path fail with status until cleared
func (s *MockBlogServer) SetErrorResponse(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors[path] = status
}

// ClearErrorResponse removes an injected failure
func (s *MockBlogServer) ClearErrorResponse(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.errors, path)
}

// SetTransientErrors makes the next count requests to path fail with
// status before the route recovers on its own
func (s *MockBlogServer) SetTransientErrors(path string, count, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transient[path] = &transientError{remaining: count, status: status}
}

// SetDelay adds artificial latency to one path
func (s *MockBlogServer) SetDelay(path string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = delay
}

// GetURL returns the server's base URL
func (s *MockBlogServer) GetURL() string {
	return s.server.URL
}

// Close shuts down the server
func (s *MockBlogServer) Close() {
	s.server.Close()
}

// GetRequestCount returns the total number of requests served
func (s *MockBlogServer) GetRequestCount() int {
	return int(atomic.LoadInt32(&s.totalRequests))
}

// RequestsFor returns how many requests hit one path, 404s included
func (s *MockBlogServer) RequestsFor(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[path]
}

// AuthHeaderSeen reports whether any request to path carried an
// Authorization header
func (s *MockBlogServer) AuthHeaderSeen(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sawAuth[path]
}

// ResetCounters zeroes all request counters
func (s *MockBlogServer) ResetCounters() {
	atomic.StoreInt32(&s.totalRequests, 0)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = make(map[string]int)
	s.sawAuth = make(map[string]bool)
}
