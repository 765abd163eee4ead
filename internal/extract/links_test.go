package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestProductLinks_DeduplicatesByHandle(t *testing.T) {
	d := doc(t, `<html><body>
<a href="/products/foo?variant=1">Foo variant 1</a>
<a href="/products/foo?variant=2">Foo variant 2</a>
<a href="https://shop.example.com/products/bar#gallery">Bar</a>
<a href="/collections/specials/products/foo">Foo again</a>
<a href="/collections/all">Not a product</a>
</body></html>`)

	links := ProductLinks(d, "https://shop.example.com/collections/all?page=1")
	assert.Equal(t, []string{
		"https://shop.example.com/products/foo",
		"https://shop.example.com/products/bar",
	}, links)
}

func TestProductLinks_EmptyListing(t *testing.T) {
	d := doc(t, `<html><body><p>No products here.</p></body></html>`)
	assert.Empty(t, ProductLinks(d, "https://shop.example.com/collections/all"))
}

func TestNextPageURL_RelNext(t *testing.T) {
	d := doc(t, `<html><body>
<a rel="next" href="/collections/all?page=3">→</a>
<a href="/collections/all?page=1">1</a>
</body></html>`)

	got := NextPageURL(d, "https://shop.example.com/collections/all?page=2")
	assert.Equal(t, "https://shop.example.com/collections/all?page=3", got)
}

func TestNextPageURL_ActivePaginatorSuccessor(t *testing.T) {
	d := doc(t, `<html><body><ul class="pagination">
<li><a href="?page=1">1</a></li>
<li class="active"><a href="?page=2">2</a></li>
<li><a href="?page=3">3</a></li>
</ul></body></html>`)

	got := NextPageURL(d, "https://shop.example.com/collections/all?page=2")
	assert.Equal(t, "https://shop.example.com/collections/all?page=3", got)
}

func TestNextPageURL_TextFallback(t *testing.T) {
	d := doc(t, `<html><body>
<a href="/collections/all?page=5">Next page</a>
</body></html>`)

	got := NextPageURL(d, "https://shop.example.com/collections/all?page=4")
	assert.Equal(t, "https://shop.example.com/collections/all?page=5", got)
}

func TestNextPageURL_NoCandidateTerminates(t *testing.T) {
	d := doc(t, `<html><body>
<a href="/collections/all?page=1">1</a>
<button>Add to cart</button>
</body></html>`)

	assert.Equal(t, "", NextPageURL(d, "https://shop.example.com/collections/all?page=1"))
}
