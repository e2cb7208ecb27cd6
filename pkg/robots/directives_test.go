package robots

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSitemapURLs(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []string
	}{
		{
			name:     "Single",
			content:  "User-agent: *\nDisallow: /admin\nSitemap: https://a.com/sitemap.xml\n",
			expected: []string{"https://a.com/sitemap.xml"},
		},
		{
			name:     "CaseInsensitivePrefix",
			content:  "SITEMAP: https://a.com/1.xml\nsitemap:https://a.com/2.xml\nSiTeMaP:   https://a.com/3.xml   ",
			expected: []string{"https://a.com/1.xml", "https://a.com/2.xml", "https://a.com/3.xml"},
		},
		{
			name:     "DuplicatesPreserved",
			content:  "Sitemap: https://a.com/s.xml\nSitemap: https://a.com/s.xml",
			expected: []string{"https://a.com/s.xml", "https://a.com/s.xml"},
		},
		{
			name:     "CommentsAndBlanksSkipped",
			content:  "# Sitemap: https://a.com/commented.xml\n\n   \n  Sitemap: https://a.com/real.xml",
			expected: []string{"https://a.com/real.xml"},
		},
		{
			name:     "CRLF",
			content:  "User-agent: *\r\nSitemap: https://a.com/crlf.xml\r\n",
			expected: []string{"https://a.com/crlf.xml"},
		},
		{
			name:     "EmptyValueSkipped",
			content:  "Sitemap:\nSitemap:    \nSitemap: https://a.com/ok.xml",
			expected: []string{"https://a.com/ok.xml"},
		},
		{
			name:     "PrefixMustStartLine",
			content:  "Disallow: /sitemap: nope\nX-Sitemap: https://a.com/x.xml",
			expected: nil,
		},
		{
			name:     "SpaceBeforeColonIsNotADirective",
			content:  "Sitemap : https://a.com/spaced.xml",
			expected: nil,
		},
		{
			name:     "Empty",
			content:  "",
			expected: nil,
		},
		{
			name:     "Binary",
			content:  "\x00\xff\xfe<html>",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseSitemapURLs(tt.content))
		})
	}
}

func TestParseSitemapURLs_OrderWithInterleavedNoise(t *testing.T) {
	var b strings.Builder
	var want []string
	casings := []string{"Sitemap", "sitemap", "SITEMAP", "siteMap"}
	for i := 0; i < 20; i++ {
		u := fmt.Sprintf("https://a.com/s%d.xml", i)
		want = append(want, u)
		fmt.Fprintf(&b, "# comment %d\n\nDisallow: /p%d\n%s: %s\n", i, i, casings[i%len(casings)], u)
	}

	assert.Equal(t, want, ParseSitemapURLs(b.String()))
}
