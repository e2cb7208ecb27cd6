package parse

import (
	"bytes"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/Sriram-PR/sitemap-urls/pkg/models"
	"github.com/Sriram-PR/sitemap-urls/pkg/utils"
)

const (
	StandardNamespaceURI = "http://www.sitemaps.org/schemas/sitemap/0.9"
	LegacyNamespaceURI   = "http://www.google.com/schemas/sitemap/0.84"
)

// Namespace identifies which schema a document's sitemap elements live in
type Namespace int

const (
	NamespaceStandard Namespace = iota // sitemaps.org 0.9
	NamespaceLegacy                    // Google 0.84
	NamespaceNone                      // Unqualified element names
)

// namespaceOrder is the fixed order in which variants are tried; the first yielding entries wins
var namespaceOrder = []Namespace{NamespaceStandard, NamespaceLegacy, NamespaceNone}

// String implements fmt.Stringer for logging
func (n Namespace) String() string {
	switch n {
	case NamespaceStandard:
		return "standard"
	case NamespaceLegacy:
		return "legacy"
	case NamespaceNone:
		return "none"
	}
	return "unknown"
}

// URI returns the namespace URI, empty for NamespaceNone
func (n Namespace) URI() string {
	switch n {
	case NamespaceStandard:
		return StandardNamespaceURI
	case NamespaceLegacy:
		return LegacyNamespaceURI
	}
	return ""
}

// ParseError reports why a document could not be read as a sitemap.
// Error() carries only the summary; the underlying decoder error stays reachable through Unwrap.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string { return e.Msg }

// Unwrap exposes both the ErrParsing sentinel and the decoder error
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{utils.ErrParsing}
	}
	return []error{utils.ErrParsing, e.Err}
}

// sitemapQueries holds the compiled XPath expressions for one namespace variant
type sitemapQueries struct {
	urls       *xpath.Expr // All <url> elements
	indexLocs  *xpath.Expr // <loc> children of <sitemap> elements
	loc        *xpath.Expr // Relative to a <url>
	lastMod    *xpath.Expr
	changeFreq *xpath.Expr
	priority   *xpath.Expr
}

var queriesByNamespace = buildQueries()

func buildQueries() map[Namespace]*sitemapQueries {
	out := make(map[Namespace]*sitemapQueries, len(namespaceOrder))
	for _, ns := range namespaceOrder {
		prefix := ""
		var namespaces map[string]string
		if uri := ns.URI(); uri != "" {
			prefix = "sm:"
			namespaces = map[string]string{"sm": uri}
		}
		compile := func(expr string) *xpath.Expr {
			e, err := xpath.CompileWithNS(strings.ReplaceAll(expr, "%", prefix), namespaces)
			if err != nil {
				panic("parse: invalid sitemap xpath " + expr + ": " + err.Error())
			}
			return e
		}
		out[ns] = &sitemapQueries{
			urls:       compile("//%url"),
			indexLocs:  compile("//%sitemap/%loc"),
			loc:        compile("%loc"),
			lastMod:    compile("%lastmod"),
			changeFreq: compile("%changefreq"),
			priority:   compile("%priority"),
		}
	}
	return out
}

// ParseSitemap parses a urlset or sitemapindex document.
// Entries whose <loc> is empty after trimming are dropped; optional fields are kept verbatim.
func ParseSitemap(data []byte) (*models.SitemapDocument, error) {
	result, _, err := parseDocument(data)
	return result, err
}

// DetectNamespace reports which variant a document's entries were read from.
// Documents that fail to parse or yield nothing report NamespaceNone.
func DetectNamespace(data []byte) Namespace {
	_, ns, err := parseDocument(data)
	if err != nil {
		return NamespaceNone
	}
	return ns
}

// parseDocument tries each namespace variant in order and keeps the first one
// that yields at least one non-empty location
func parseDocument(data []byte) (*models.SitemapDocument, Namespace, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, NamespaceNone, &ParseError{Msg: "failed to parse XML", Err: err}
	}

	root := rootElement(doc)
	if root == nil {
		return nil, NamespaceNone, &ParseError{Msg: "no root element found"}
	}

	switch root.Data {
	case "sitemapindex":
		result := &models.SitemapDocument{Kind: models.KindSitemapIndex, ChildLocations: []string{}}
		for _, ns := range namespaceOrder {
			q := queriesByNamespace[ns]
			for _, n := range xmlquery.QuerySelectorAll(doc, q.indexLocs) {
				if loc := strings.TrimSpace(n.InnerText()); loc != "" {
					result.ChildLocations = append(result.ChildLocations, loc)
				}
			}
			if len(result.ChildLocations) > 0 {
				return result, ns, nil
			}
		}
		return result, NamespaceNone, nil

	case "urlset":
		result := &models.SitemapDocument{Kind: models.KindURLSet, Entries: []models.SitemapEntry{}}
		for _, ns := range namespaceOrder {
			q := queriesByNamespace[ns]
			for _, n := range xmlquery.QuerySelectorAll(doc, q.urls) {
				loc := strings.TrimSpace(childText(n, q.loc))
				if loc == "" {
					continue
				}
				result.Entries = append(result.Entries, models.SitemapEntry{
					URL:        loc,
					LastMod:    childText(n, q.lastMod),
					ChangeFreq: childText(n, q.changeFreq),
					Priority:   childText(n, q.priority),
				})
			}
			if len(result.Entries) > 0 {
				return result, ns, nil
			}
		}
		return result, NamespaceNone, nil
	}

	return nil, NamespaceNone, &ParseError{Msg: "unknown root element: " + root.Data}
}

func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

func childText(n *xmlquery.Node, expr *xpath.Expr) string {
	child := xmlquery.QuerySelector(n, expr)
	if child == nil {
		return ""
	}
	return child.InnerText()
}
