// Package robots extracts sitemap directives from robots.txt and, optionally,
// answers whether a well-known URL is disallowed for a user agent.
package robots

import "strings"

const sitemapPrefix = "sitemap:"

// ParseSitemapURLs returns the value of every "Sitemap:" line in file order.
// Lines are trimmed; blank lines and lines starting with '#' are skipped. The prefix
// match is case-insensitive and duplicates are kept. Malformed content yields no matches.
func ParseSitemapURLs(content string) []string {
	var urls []string
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if len(line) < len(sitemapPrefix) || !strings.EqualFold(line[:len(sitemapPrefix)], sitemapPrefix) {
			continue
		}
		if u := strings.TrimSpace(line[len(sitemapPrefix):]); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
