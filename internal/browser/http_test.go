package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSession_NavigateAndDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h1>Projector Shop</h1></body></html>`))
	}))
	defer srv.Close()

	s, err := NewHTTPSession(Options{})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	p, err := s.NewPage(context.Background())
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	require.NoError(t, p.Navigate(context.Background(), srv.URL))
	assert.Equal(t, srv.URL, p.URL())

	doc, err := p.Document()
	require.NoError(t, err)
	assert.Equal(t, "Projector Shop", doc.Find("h1").Text())
}

func TestHTTPSession_NavigateFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>landed</body></html>`))
	})

	s, err := NewHTTPSession(Options{})
	require.NoError(t, err)
	p, _ := s.NewPage(context.Background())

	require.NoError(t, p.Navigate(context.Background(), srv.URL+"/old"))
	assert.Equal(t, srv.URL+"/new", p.URL())
}

func TestHTTPSession_NavigateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, err := NewHTTPSession(Options{})
	require.NoError(t, err)
	p, _ := s.NewPage(context.Background())

	err = p.Navigate(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestHTTPSession_PagesShareCookies(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123", Path: "/"})
		_, _ = w.Write([]byte(`<html><body>ok</body></html>`))
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("session")
		if err != nil || c.Value != "abc123" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`<html><body>secret</body></html>`))
	})

	s, err := NewHTTPSession(Options{})
	require.NoError(t, err)

	p1, _ := s.NewPage(context.Background())
	require.NoError(t, p1.Navigate(context.Background(), srv.URL+"/login"))

	// A second page in the same session inherits the cookie.
	p2, _ := s.NewPage(context.Background())
	require.NoError(t, p2.Navigate(context.Background(), srv.URL+"/private"))
}

func TestHTTPSession_FetchJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"variants":[{"sku":"TW7000","price":4317200,"available":true}]}`))
	}))
	defer srv.Close()

	s, err := NewHTTPSession(Options{})
	require.NoError(t, err)
	p, _ := s.NewPage(context.Background())

	var out struct {
		Variants []struct {
			SKU       string  `json:"sku"`
			Price     float64 `json:"price"`
			Available bool    `json:"available"`
		} `json:"variants"`
	}
	require.NoError(t, p.FetchJSON(context.Background(), srv.URL, &out))
	require.Len(t, out.Variants, 1)
	assert.Equal(t, "TW7000", out.Variants[0].SKU)
}

func TestHTTPSession_SubmitForm(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var gotEmail, gotToken string
	mux.HandleFunc("/account/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = r.ParseForm()
			gotEmail = r.PostFormValue("customer[email]")
			gotToken = r.PostFormValue("authenticity_token")
			http.Redirect(w, r, "/account", http.StatusFound)
			return
		}
		fmt.Fprint(w, `<html><body>
<form action="/account/login" method="post">
<input type="hidden" name="authenticity_token" value="tok42">
<input type="email" name="customer[email]">
<input type="password" name="customer[password]">
<button type="submit">Log in</button>
</form></body></html>`)
	})
	mux.HandleFunc("/account", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/account/logout">Log out</a></body></html>`))
	})

	s, err := NewHTTPSession(Options{})
	require.NoError(t, err)
	p, _ := s.NewPage(context.Background())

	require.NoError(t, p.Navigate(context.Background(), srv.URL+"/account/login"))
	require.NoError(t, p.SubmitForm(context.Background(), `form[action*="/account/login"]`, map[string]string{
		"customer[email]":    "dealer@example.com",
		"customer[password]": "hunter2",
	}))

	assert.Equal(t, "dealer@example.com", gotEmail)
	// Hidden inputs ride along.
	assert.Equal(t, "tok42", gotToken)
	assert.Equal(t, srv.URL+"/account", p.URL())

	doc, err := p.Document()
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find(`a[href*="/account/logout"]`).Length())
}

func TestHTTPSession_ScreenshotUnsupported(t *testing.T) {
	s, err := NewHTTPSession(Options{})
	require.NoError(t, err)
	p, _ := s.NewPage(context.Background())

	_, err = p.Screenshot(context.Background())
	assert.ErrorIs(t, err, ErrScreenshotUnsupported)
}
