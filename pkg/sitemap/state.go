package sitemap

import (
	"sync"

	"github.com/Sriram-PR/sitemap-urls/pkg/models"
)

// State accumulates the entries and error messages of one invocation.
// It may be shared by several Traverse calls (one per location of a domain)
// and is safe for concurrent use.
type State struct {
	mu      sync.Mutex
	entries []models.SitemapEntry
	errors  []string
	visited map[string]bool // Sitemap URLs fetched so far, only used with DedupeSitemaps
}

// NewState creates an empty State
func NewState() *State {
	return &State{visited: make(map[string]bool)}
}

func (s *State) addEntries(entries []models.SitemapEntry) {
	if len(entries) == 0 {
		return
	}
	s.mu.Lock()
	s.entries = append(s.entries, entries...)
	s.mu.Unlock()
}

func (s *State) addError(msg string) {
	s.mu.Lock()
	s.errors = append(s.errors, msg)
	s.mu.Unlock()
}

// markSitemap records sitemapURL as visited.
// Returns true if it was newly marked, false if already marked.
func (s *State) markSitemap(sitemapURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visited == nil {
		s.visited = make(map[string]bool)
	}
	if s.visited[sitemapURL] {
		return false
	}
	s.visited[sitemapURL] = true
	return true
}

// Counts returns the number of entries and errors accumulated so far
func (s *State) Counts() (entries, errors int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), len(s.errors)
}

// Snapshot returns copies of the accumulated entries and errors
func (s *State) Snapshot() ([]models.SitemapEntry, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.SitemapEntry(nil), s.entries...), append([]string(nil), s.errors...)
}

// ErrorsFrom returns a copy of the error messages recorded at or after offset
func (s *State) ErrorsFrom(offset int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.errors) {
		return nil
	}
	return append([]string(nil), s.errors[offset:]...)
}

// LastError returns the most recently recorded error message, or "" if none
func (s *State) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errors) == 0 {
		return ""
	}
	return s.errors[len(s.errors)-1]
}
