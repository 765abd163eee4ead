package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solutiontech/catalog-sync/internal/browser"
	"github.com/solutiontech/catalog-sync/internal/model"
)

// productServer serves one product page (and optionally its side-channel
// JSON) the way a storefront would.
func productServer(t *testing.T, handle, html, sideChannelJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/products/"+handle, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, html)
	})
	if sideChannelJSON != "" {
		mux.HandleFunc("/products/"+handle+".js", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, sideChannelJSON)
		})
	}
	return srv
}

func loadPage(t *testing.T, url string) browser.Page {
	t.Helper()
	s, err := browser.NewHTTPSession(browser.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	p, err := s.NewPage(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.Navigate(context.Background(), url))
	return p
}

func TestExtract_StructuredDataFirst(t *testing.T) {
	html := `<html><head>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Product","name":"Epson EH-LS12000B",
"sku":"V11HA47040","image":["https://cdn.example.com/ls12000.jpg"],
"offers":{"@type":"Offer","price":"84999.00","priceCurrency":"ZAR",
"availability":"https://schema.org/InStock"}}
</script></head>
<body><h1>Some Theme Title</h1><span class="sku">THEME-SKU</span>
<div class="price">R 1.00</div></body></html>`

	srv := productServer(t, "eh-ls12000b", html, "")
	p := loadPage(t, srv.URL+"/products/eh-ls12000b?variant=123")

	e := &Extractor{DefaultCurrency: "ZAR"}
	got, err := e.Extract(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "Epson EH-LS12000B", got.Title)
	assert.Equal(t, "V11HA47040", got.SKU)
	assert.Equal(t, "84999.00", got.Price)
	assert.Equal(t, "ZAR", got.Currency)
	assert.Equal(t, model.AvailabilityInStock, got.Availability)
	assert.Equal(t, []string{"https://cdn.example.com/ls12000.jpg"}, got.Images)
	assert.Equal(t, srv.URL+"/products/eh-ls12000b", got.SourceURL)
	assert.True(t, got.Eligible())
}

func TestExtract_DOMOnlyWithNBSPPrice(t *testing.T) {
	html := `<html><body>
<h1 class="product-title">Epson EH-TW7000 Projector</h1>
<span class="product-vendor">Epson</span>
<span class="sku">V11H961040</span>
<div class="price">R43` + "\u00a0" + `172</div>
<div class="product-gallery"><img src="/cdn/tw7000.jpg"></div>
</body></html>`

	srv := productServer(t, "eh-tw7000", html, "")
	p := loadPage(t, srv.URL+"/products/eh-tw7000")

	e := &Extractor{DefaultCurrency: "ZAR"}
	got, err := e.Extract(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "Epson EH-TW7000 Projector", got.Title)
	assert.Equal(t, "Epson", got.Vendor)
	assert.Equal(t, "V11H961040", got.SKU)
	assert.Equal(t, "43172.00", got.Price)
	assert.Equal(t, "ZAR", got.Currency)
	// No availability signal at all defaults to in stock.
	assert.Equal(t, model.AvailabilityInStock, got.Availability)
	assert.Equal(t, 100, got.Quantity)
	require.Len(t, got.Images, 1)
	assert.Equal(t, srv.URL+"/cdn/tw7000.jpg", got.Images[0])
}

func TestExtract_SideChannelFillsSKUAndPrice(t *testing.T) {
	html := `<html><body><h1>Epson Projector Bundle</h1></body></html>`
	sideChannel := `{"title":"Epson Projector Bundle","vendor":"Epson",
"variants":[
  {"sku":"OLD-1","price":1099900,"available":false},
  {"sku":"TW7000-BUNDLE","price":4317200,"available":true}
],
"images":["https://cdn.example.com/bundle.jpg"]}`

	srv := productServer(t, "projector-bundle", html, sideChannel)
	p := loadPage(t, srv.URL+"/products/projector-bundle")

	e := &Extractor{DefaultCurrency: "ZAR"}
	got, err := e.Extract(context.Background(), p)
	require.NoError(t, err)

	// First available variant wins; minor units become major units.
	assert.Equal(t, "TW7000-BUNDLE", got.SKU)
	assert.Equal(t, "43172.00", got.Price)
	assert.Equal(t, model.AvailabilityInStock, got.Availability)
	assert.Equal(t, []string{"https://cdn.example.com/bundle.jpg"}, got.Images)
	assert.True(t, got.Eligible())
}

func TestExtract_SideChannelAllUnavailable(t *testing.T) {
	html := `<html><body><h1>Epson Projector</h1><div class="availability">In stock</div></body></html>`
	sideChannel := `{"variants":[{"sku":"TW9400","price":9999900,"available":false}]}`

	srv := productServer(t, "tw9400", html, sideChannel)
	p := loadPage(t, srv.URL+"/products/tw9400")

	e := &Extractor{DefaultCurrency: "ZAR"}
	got, err := e.Extract(context.Background(), p)
	require.NoError(t, err)

	// The trivial DOM "In stock" is overridden by the variant flags.
	assert.Equal(t, model.AvailabilityOutOfStock, got.Availability)
	assert.Equal(t, 0, got.Quantity)
}

func TestExtract_TitleModelFallback(t *testing.T) {
	html := `<html><body>
<h1>Epson EH-TW7000 Projector</h1>
<div class="price">R 43 172.00</div>
</body></html>`

	srv := productServer(t, "eh-tw7000", html, "")
	p := loadPage(t, srv.URL+"/products/eh-tw7000")

	e := &Extractor{DefaultCurrency: "ZAR"}
	got, err := e.Extract(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "TW7000", got.SKU)
	assert.True(t, got.Eligible())
}

func TestExtract_DegradedRecordIsIneligible(t *testing.T) {
	html := `<html><body><h1>A nameless thing</h1></body></html>`

	srv := productServer(t, "mystery", html, "")
	p := loadPage(t, srv.URL+"/products/mystery")

	e := &Extractor{DefaultCurrency: "ZAR"}
	got, err := e.Extract(context.Background(), p)
	require.NoError(t, err)

	assert.Empty(t, got.SKU)
	assert.Equal(t, "0.00", got.Price)
	assert.False(t, got.Eligible())
	// Degraded is still a valid record: dedup key falls back to the handle.
	assert.Equal(t, "mystery", got.DedupKey())
}

func TestExtract_DescriptionMarkup(t *testing.T) {
	html := `<html><body>
<h1>EH-TW7000</h1><div class="price">R 100</div>
<div class="product__description"><p>4K PRO-UHD<sup>1</sup> projector.</p></div>
</body></html>`

	srv := productServer(t, "eh-tw7000", html, "")
	p := loadPage(t, srv.URL+"/products/eh-tw7000")

	e := &Extractor{DefaultCurrency: "ZAR"}
	got, err := e.Extract(context.Background(), p)
	require.NoError(t, err)
	assert.Contains(t, got.DescriptionHTML, "<p>4K PRO-UHD")
}
