package parse

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FindSitemapInHTML returns the href of every <link rel="sitemap"> in document order.
// The rel match is case-insensitive. Hrefs are returned verbatim and unresolved;
// a link without an href attribute contributes nothing. Malformed HTML never fails.
func FindSitemapInHTML(data []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	var hrefs []string
	doc.Find("link[rel]").Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		if !strings.EqualFold(rel, "sitemap") {
			return
		}
		if href, ok := s.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}
