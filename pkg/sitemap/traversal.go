// Package sitemap walks a sitemap tree from one root location, accumulating
// page entries and per-document errors into a caller-owned State.
package sitemap

import (
	"context"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/sitemap-urls/pkg/config"
	"github.com/Sriram-PR/sitemap-urls/pkg/metrics"
	"github.com/Sriram-PR/sitemap-urls/pkg/models"
	"github.com/Sriram-PR/sitemap-urls/pkg/parse"
	"github.com/Sriram-PR/sitemap-urls/pkg/utils"
)

// Fetcher is the retrying fetch capability traversal needs. *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, retry config.RetryConfig, userAgent string) (*models.FetchResult, error)
}

// Config holds the per-domain knobs of a Traverser
type Config struct {
	UserAgent            string
	Retry                config.RetryConfig
	Include              []*regexp.Regexp // Entry kept only if one matches (empty = keep all)
	Exclude              []*regexp.Regexp // Entry dropped if one matches
	DedupeSitemaps       bool             // Fetch each sitemap URL at most once per State
	MaxDecompressedBytes int64            // 0 = parse.DefaultMaxDecompressedBytes
}

// Traverser fetches, decodes and parses sitemap documents
type Traverser struct {
	fetcher Fetcher
	cfg     Config
	log     *logrus.Entry
}

// NewTraverser creates a Traverser
func NewTraverser(fetcher Fetcher, cfg Config, log *logrus.Entry) *Traverser {
	if cfg.MaxDecompressedBytes == 0 {
		cfg.MaxDecompressedBytes = parse.DefaultMaxDecompressedBytes
	}
	return &Traverser{
		fetcher: fetcher,
		cfg:     cfg,
		log:     log.WithField("component", "sitemap_traversal"),
	}
}

// Traverse walks the tree rooted at sitemapURL (depth 0). Index children are
// visited at depth+1 in document order; an item deeper than maxDepth is never fetched.
//
// Failures of individual documents are appended to state and never stop sibling
// branches. The returned error is non-nil only when ctx is cancelled.
func (t *Traverser) Traverse(ctx context.Context, sitemapURL string, maxDepth int, state *State) error {
	stack := []models.WorkItem{{URL: sitemapURL, Depth: 0}}
	entriesBefore, errorsBefore := state.Counts()

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if item.Depth > maxDepth {
			t.log.WithFields(logrus.Fields{"url": item.URL, "depth": item.Depth, "max_depth": maxDepth}).Debug("Depth limit reached, skipping")
			continue
		}
		if t.cfg.DedupeSitemaps && !state.markSitemap(item.URL) {
			t.log.WithField("url", item.URL).Debug("Sitemap already visited, skipping")
			continue
		}

		doc, err := t.load(ctx, item.URL, state)
		if err != nil {
			return err
		}
		if doc == nil {
			continue
		}

		switch doc.Kind {
		case models.KindURLSet:
			kept := t.filter(doc.Entries)
			state.addEntries(kept)
			metrics.ObserveEntries(item.URL, len(kept))
			t.log.WithFields(logrus.Fields{
				"url": item.URL, "depth": item.Depth, "entries": len(kept), "filtered": len(doc.Entries) - len(kept),
			}).Debug("Processed urlset")
		case models.KindSitemapIndex:
			// LIFO: push in reverse so children pop in document order
			for i := len(doc.ChildLocations) - 1; i >= 0; i-- {
				stack = append(stack, models.WorkItem{URL: doc.ChildLocations[i], Depth: item.Depth + 1})
			}
			t.log.WithFields(logrus.Fields{
				"url": item.URL, "depth": item.Depth, "children": len(doc.ChildLocations),
			}).Debug("Processed sitemap index")
		}
	}

	entriesAfter, errorsAfter := state.Counts()
	t.log.WithFields(logrus.Fields{
		"url": sitemapURL, "entries": entriesAfter - entriesBefore, "errors": errorsAfter - errorsBefore,
	}).Info("Sitemap tree traversed")
	return nil
}

// load fetches, decompresses and parses one document. A nil document with a nil
// error means the failure has already been recorded in state.
func (t *Traverser) load(ctx context.Context, sitemapURL string, state *State) (*models.SitemapDocument, error) {
	res, err := t.fetcher.Fetch(ctx, sitemapURL, t.cfg.Retry, t.cfg.UserAgent)
	if err != nil {
		return nil, err
	}
	if !res.Succeeded {
		t.record(state, res.Err, fmt.Sprintf("failed to fetch %s: %s", sitemapURL, res.ErrorMessage))
		return nil, nil
	}

	body := res.Body
	if parse.IsGzipped(sitemapURL, res.ContentType) {
		body = parse.DecompressGzipLimit(body, t.cfg.MaxDecompressedBytes)
		if len(body) == 0 {
			t.record(state, utils.ErrDecode, fmt.Sprintf("failed to decompress gzipped sitemap: %s", sitemapURL))
			return nil, nil
		}
	}

	doc, err := parse.ParseSitemap(body)
	if err != nil {
		t.record(state, err, fmt.Sprintf("failed to parse sitemap %s: %v", sitemapURL, err))
		return nil, nil
	}
	return doc, nil
}

func (t *Traverser) record(state *State, cause error, msg string) {
	state.addError(msg)
	category := utils.CategorizeError(cause)
	metrics.ObserveTraversalError(category)
	t.log.WithField("category", category).Warn(msg)
}

func (t *Traverser) filter(entries []models.SitemapEntry) []models.SitemapEntry {
	if len(t.cfg.Include) == 0 && len(t.cfg.Exclude) == 0 {
		return entries
	}
	kept := make([]models.SitemapEntry, 0, len(entries))
	for _, e := range entries {
		if len(t.cfg.Include) > 0 && !utils.MatchesAny(t.cfg.Include, e.URL) {
			continue
		}
		if utils.MatchesAny(t.cfg.Exclude, e.URL) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}
