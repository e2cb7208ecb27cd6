package discover

import (
	"fmt"

	"github.com/Sriram-PR/sitemap-urls/pkg/parse"
)

// coreNames are the generic locations most sites use
var coreNames = []string{
	"sitemap",
	"sitemap_index",
	"sitemap-index",
	"sitemapindex",
	"sitemaps",
	"site-map",
	"site_map",
	"sitemap_main",
	"sitemap-main",
	"main-sitemap",
	"main_sitemap",
	"sitemap-root",
	"sitemap_root",
	"root-sitemap",
	"sitemap-full",
	"sitemap_full",
	"full-sitemap",
	"sitemap-all",
	"sitemap_all",
	"all-sitemap",
	"sitemap-web",
	"web-sitemap",
	"sitemap-website",
	"website-sitemap",
	"sitemap-pages",
	"sitemap_pages",
	"pages-sitemap",
	"sitemap-posts",
	"sitemap_posts",
	"posts-sitemap",
	"sitemap-articles",
	"articles-sitemap",
	"sitemap-blog",
	"sitemap_blog",
	"blog-sitemap",
	"sitemap-news",
	"sitemap_news",
	"news-sitemap",
	"news_sitemap",
	"sitemap-video",
	"video-sitemap",
	"sitemap-videos",
	"sitemap-image",
	"image-sitemap",
	"sitemap-images",
	"sitemap-products",
	"sitemap_products",
	"products-sitemap",
	"sitemap-categories",
	"categories-sitemap",
	"sitemap-tags",
	"tags-sitemap",
	"sitemap-static",
	"static-sitemap",
	"sitemap-mobile",
	"mobile-sitemap",
	"sitemap.index",
	"sitemap/sitemap",
	"sitemap/index",
	"sitemap/sitemap_index",
	"sitemap/sitemap-index",
	"sitemaps/sitemap",
	"sitemaps/index",
	"sitemaps/sitemap_index",
	"sitemaps/sitemap-index",
	"sitemap-xml",
	"xmlsitemap",
	"xml-sitemap",
	"google-sitemap",
	"google_sitemap",
	"googlesitemap",
	"gsitemap",
}

// numberedForms are the paginated shapes generators emit, tried for pages 1..numberedPages
var numberedForms = []string{
	"sitemap%d",
	"sitemap-%d",
	"sitemap_%d",
	"sitemap-index-%d",
	"sitemap_index_%d",
	"sitemaps/sitemap%d",
}

const numberedPages = 25

// platformNames are locations used by specific CMS, shop and SEO plugins
var platformNames = []string{
	// WordPress core
	"wp-sitemap",
	"wp-sitemap-index",
	"wp-sitemap-posts-post-1",
	"wp-sitemap-posts-page-1",
	"wp-sitemap-posts-product-1",
	"wp-sitemap-taxonomies-category-1",
	"wp-sitemap-taxonomies-post_tag-1",
	"wp-sitemap-taxonomies-product_cat-1",
	"wp-sitemap-users-1",
	// Yoast, Rank Math, All in One SEO
	"post-sitemap",
	"page-sitemap",
	"category-sitemap",
	"post_tag-sitemap",
	"author-sitemap",
	"product-sitemap",
	"product_cat-sitemap",
	"product_tag-sitemap",
	"attachment-sitemap",
	"local-sitemap",
	"video-sitemap1",
	"news-sitemap1",
	"post-sitemap1",
	"page-sitemap1",
	"product-sitemap1",
	"post-sitemap2",
	"product-sitemap2",
	"sitemap-misc",
	"sitemap-pt-post-1",
	"sitemap-pt-page-1",
	"sitemap-tax-category",
	"sitemap-tax-post_tag",
	"sitemap-home",
	"wp-content/uploads/sitemap",
	"wp-content/sitemap",
	"wp-content/plugins/google-sitemap-generator/sitemap",
	// Shopify
	"sitemap_products_1",
	"sitemap_pages_1",
	"sitemap_collections_1",
	"sitemap_blogs_1",
	// Magento
	"pub/sitemap",
	"pub/media/sitemap",
	"media/sitemap",
	"media/sitemap/sitemap",
	"sitemap/google",
	"sitemap-1-1",
	"sitemap-1-2",
	"sitemap-1-3",
	// PrestaShop
	"1_index_sitemap",
	"1_en_0_sitemap",
	"1_fr_0_sitemap",
	"prestashop_sitemap",
	// Drupal
	"sitemap/default",
	"sitemap/page-1",
	"default/sitemap",
	"sites/default/files/sitemap",
	// Joomla
	"component/osmap/sitemap",
	"component/jmap/sitemap",
	"component/xmap/sitemap",
	"index.php/sitemap",
	// TYPO3
	"sitemap-typo3",
	"typo3-sitemap",
	"fileadmin/sitemap",
	// Wix
	"pages-sitemap1",
	"blog-posts-sitemap",
	"blog-categories-sitemap",
	"store-products-sitemap",
	"store-categories-sitemap",
	"event-pages-sitemap",
	"dynamic-pages-sitemap",
	// Squarespace
	"sitemap-squarespace",
	// Ghost
	"sitemap-authors",
	"sitemap-posts-1",
	"sitemap-pages-1",
	"sitemap-tags-1",
	// Blogger
	"sitemap-pages-blogger",
	"feeds/posts/default/sitemap",
	"atom/sitemap",
	// HubSpot
	"hs-sitemap",
	"hubfs/sitemap",
	"_hcms/sitemap",
	// Webflow, Weebly, Jimdo
	"webflow-sitemap",
	"weebly-sitemap",
	"jimdo-sitemap",
	// BigCommerce
	"xmlsitemap/products/1",
	"xmlsitemap/pages/1",
	"xmlsitemap/categories/1",
	"xmlsitemap/brands/1",
	// Static site generators
	"public/sitemap",
	"static/sitemap",
	"assets/sitemap",
	"dist/sitemap",
	"build/sitemap",
	"out/sitemap",
	"_site/sitemap",
	"docs/sitemap",
	"sitemap-0",
	"sitemap-docs",
	"docs-sitemap",
	"sitemap-hugo",
	"sitemap-gatsby",
	"sitemap-next",
	"server-sitemap",
	"server-sitemap-index",
	// Next.js, Nuxt, Angular, Laravel, Rails, Django
	"api/sitemap",
	"_next/static/sitemap",
	"__sitemap__/sitemap",
	"sitemap_index-default",
	"sitemap/web",
	"sitemap/main",
	"storage/sitemap",
	"storage/app/sitemap",
	"system/sitemap",
	"sitemaps/pages",
	"sitemaps/posts",
	"sitemaps/products",
	"sitemaps/categories",
	"sitemaps/static",
	"sitemaps/news",
	"sitemaps/video",
	"sitemaps/images",
	// Common data directories
	"xml/sitemap",
	"xml/sitemap_index",
	"files/sitemap",
	"content/sitemap",
	"data/sitemap",
	"seo/sitemap",
	"export/sitemap",
	"feeds/sitemap",
	"feed/sitemap",
	"rss/sitemap",
	"cms/sitemap",
	"blog/sitemap",
	"blog/sitemap_index",
	"news/sitemap",
	"shop/sitemap",
	"store/sitemap",
	"products/sitemap",
	"catalog/sitemap",
	"help/sitemap",
	"support/sitemap",
	"en/sitemaps",
	"www/sitemap",
	"web/sitemap",
	"site/sitemap",
	"main/sitemap",
	"home/sitemap",
	"portal/sitemap",
	"app/sitemap",
	"mobile/sitemap",
	"m/sitemap",
	"amp/sitemap",
	// Generators and SEO services
	"sitemap-generator",
	"generated-sitemap",
	"sitemap-gen",
	"sitemap_gen",
	"yoast-sitemap",
	"rankmath-sitemap",
	"aioseo-sitemap",
	"seopress-sitemap",
	"jetpack-sitemap",
	"jetpack-sitemap-index",
	"news-sitemap-jetpack",
	"image-sitemap-1",
	"video-sitemap-1",
	"sitemap-image-1",
	"sitemap-video-1",
	"sitemap-news-1",
}

// locales are language/region prefixes used by multilingual sites
var locales = []string{
	"en", "en-us", "en-gb", "en-ca", "en-au",
	"de", "de-de", "de-at", "de-ch",
	"fr", "fr-fr", "fr-ca", "fr-be",
	"es", "es-es", "es-mx",
	"it", "nl", "pt", "pt-br",
	"ja", "zh", "zh-cn", "zh-tw",
	"ru", "pl", "sv", "da",
	"no", "fi", "ko", "ar",
	"tr", "cs", "hu", "ro",
	"el", "he", "id", "th",
}

var localeForms = []string{
	"%s/sitemap",
	"%s/sitemap_index",
	"%s/sitemap-index",
	"%s/sitemaps/sitemap",
	"%s-sitemap",
	"sitemap-%s",
	"sitemap_%s",
	"sitemaps/sitemap-%s",
}

var filetypes = []string{"xml", "xml.gz", "txt"}

var catalog = buildCatalog()

// buildCatalog concatenates core, numbered, platform and locale fragments,
// keeping first occurrence order
func buildCatalog() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	for _, name := range coreNames {
		add(name)
	}
	for n := 1; n <= numberedPages; n++ {
		for _, form := range numberedForms {
			add(fmt.Sprintf(form, n))
		}
	}
	for _, name := range platformNames {
		add(name)
	}
	for _, loc := range locales {
		for _, form := range localeForms {
			add(fmt.Sprintf(form, loc))
		}
	}
	return out
}

// Filenames returns the bruteforce fragment catalog in request order
func Filenames() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	return out
}

// Filetypes returns the extensions tried for every fragment
func Filetypes() []string {
	out := make([]string, len(filetypes))
	copy(out, filetypes)
	return out
}

// Candidates returns every candidate URL for base, fragment-major:
// all extensions of the first fragment come before the second fragment.
func Candidates(base string) []string {
	out := make([]string, 0, len(catalog)*len(filetypes))
	for _, name := range catalog {
		for _, ft := range filetypes {
			out = append(out, parse.JoinURL(base, name+"."+ft))
		}
	}
	return out
}
