package models

import "time"

// SitemapEntry is one <url> record from a urlset document.
// Optional fields are empty strings when the document omits them.
type SitemapEntry struct {
	URL        string `json:"url" yaml:"url"`
	LastMod    string `json:"lastmod,omitempty" yaml:"lastmod,omitempty"`
	ChangeFreq string `json:"changefreq,omitempty" yaml:"changefreq,omitempty"`
	Priority   string `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// DocumentKind tells which root element a parsed sitemap document had
type DocumentKind int

const (
	KindURLSet       DocumentKind = iota // <urlset>: Entries is populated
	KindSitemapIndex                     // <sitemapindex>: ChildLocations is populated
)

// String implements fmt.Stringer for logging
func (k DocumentKind) String() string {
	switch k {
	case KindURLSet:
		return "urlset"
	case KindSitemapIndex:
		return "sitemapindex"
	}
	return "unknown"
}

// SitemapDocument is the parsed form of one sitemap file
type SitemapDocument struct {
	Kind           DocumentKind
	Entries        []SitemapEntry // Only for KindURLSet
	ChildLocations []string       // Only for KindSitemapIndex
}

// FetchResult describes the final attempt of one logical fetch
type FetchResult struct {
	URL          string
	StatusCode   int    // 0 when no response was received
	Body         []byte // Raw bytes, possibly compressed
	ContentType  string
	RetryAfter   string // Raw Retry-After header of the final response
	Succeeded    bool   // True iff StatusCode is 2xx
	ErrorMessage string // Human-readable cause when !Succeeded
	Attempts     int
	Err          error // Categorizable cause when !Succeeded (wraps utils sentinels)
}

// WorkItem represents a sitemap URL and the depth it was discovered at
type WorkItem struct {
	URL   string
	Depth int
}

// DomainResult summarizes the run for one base domain
type DomainResult struct {
	BaseDomain string        `json:"base_domain"`
	Locations  []string      `json:"locations"`
	EntryCount int           `json:"entry_count"`
	Errors     []string      `json:"errors,omitempty"`
	Status     DomainStatus  `json:"status"`
	Err        error         `json:"-"`
	Duration   time.Duration `json:"duration"`
}
