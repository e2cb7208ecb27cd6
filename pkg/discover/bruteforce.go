package discover

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Sriram-PR/sitemap-urls/pkg/config"
	"github.com/Sriram-PR/sitemap-urls/pkg/metrics"
)

// Finder searches the bruteforce catalog for a sitemap the site does not advertise
type Finder struct {
	fetcher Fetcher
	limiter *rate.Limiter // nil = unlimited
	log     *logrus.Entry
}

// NewFinder creates a Finder. ratePerSecond <= 0 disables pacing.
func NewFinder(fetcher Fetcher, ratePerSecond float64, log *logrus.Entry) *Finder {
	f := &Finder{
		fetcher: fetcher,
		log:     log.WithField("component", "bruteforce"),
	}
	if ratePerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return f
}

// Find requests every catalog candidate under baseURL in order, one attempt each,
// and returns the first URL answering 2xx with an xml, gzip or plain content type.
// Exhausting the catalog yields ("", false, nil); only cancellation returns an error.
func (f *Finder) Find(ctx context.Context, baseURL, userAgent string) (string, bool, error) {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		return "", false, nil
	}
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	base = strings.TrimRight(base, "/")

	candidates := Candidates(base)
	log := f.log.WithFields(logrus.Fields{"base_url": base, "candidates": len(candidates)})
	log.Info("Starting bruteforce sitemap search")

	retry := config.NoRetry()
	for i, candidate := range candidates {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return "", false, ctxErr
				}
				return "", false, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
			}
		}

		res, err := f.fetcher.Fetch(ctx, candidate, retry, userAgent)
		if err != nil {
			return "", false, err
		}

		hit := res.Succeeded && IsSitemapContentType(res.ContentType)
		metrics.ObserveBruteforceAttempt(hit)
		if hit {
			log.WithFields(logrus.Fields{"url": candidate, "attempts": i + 1}).Info("Bruteforce found sitemap")
			return candidate, true, nil
		}
		log.WithFields(logrus.Fields{
			"url": candidate, "status_code": res.StatusCode, "content_type": res.ContentType,
		}).Debug("Candidate missed")
	}

	log.Info("Bruteforce exhausted catalog without a match")
	return "", false, nil
}

// IsSitemapContentType reports whether a candidate response looks like a sitemap payload
func IsSitemapContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "xml") || strings.Contains(ct, "gzip") || strings.Contains(ct, "plain")
}
