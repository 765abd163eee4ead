package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/solutiontech/catalog-sync/internal/normalize"
)

// ProductLinks collects every product anchor on a listing page and returns
// one canonical URL per handle, query and fragment stripped, in first-seen
// order. Variant links pointing at the same product collapse to one entry.
func ProductLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	origin := base.Scheme + "://" + base.Host

	seen := make(map[string]struct{})
	var links []string

	doc.Find(`a[href*="/products/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)

		handle := normalize.CanonicalHandle(resolved.Path)
		if handle == "" {
			return
		}
		if _, dup := seen[handle]; dup {
			return
		}
		seen[handle] = struct{}{}
		links = append(links, origin+"/products/"+handle)
	})

	return links
}

var nextTextRe = regexp.MustCompile(`(?i)next`)

// NextPageURL resolves the next listing page: an explicit rel=next link,
// else the active paginator item's successor, else anything whose visible
// text says "next". Empty string terminates pagination.
func NextPageURL(doc *goquery.Document, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	if href := absHref(doc.Find(`a[rel="next"]`).First(), base); href != "" {
		return href
	}

	if href := absHref(doc.Find(`.pagination .active + li a, .pagination__item--current + a`).First(), base); href != "" {
		return href
	}

	var found string
	doc.Find("a, button").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !nextTextRe.MatchString(sel.Text()) {
			return true
		}
		if href := absHref(sel, base); href != "" {
			found = href
			return false
		}
		return true
	})
	return found
}

func absHref(sel *goquery.Selection, base *url.URL) string {
	href, ok := sel.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
