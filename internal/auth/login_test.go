package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solutiontech/catalog-sync/internal/browser"
)

const loginFormHTML = `<html><body>
<form action="/account/login" method="post">
<input type="email" name="customer[email]">
<input type="password" name="customer[password]">
<button type="submit">Log in</button>
</form></body></html>`

// storefront simulates a Shopify-style account login flow.
func storefront(t *testing.T, password string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	authed := func(r *http.Request) bool {
		c, err := r.Cookie("customer_session")
		return err == nil && c.Value == "valid"
	}

	mux.HandleFunc("/account/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = r.ParseForm()
			if r.PostFormValue("customer[password]") == password {
				http.SetCookie(w, &http.Cookie{Name: "customer_session", Value: "valid", Path: "/"})
				http.Redirect(w, r, "/account", http.StatusFound)
				return
			}
			// Failed login re-renders the form.
			fmt.Fprint(w, loginFormHTML)
			return
		}
		if authed(r) {
			http.Redirect(w, r, "/account", http.StatusFound)
			return
		}
		fmt.Fprint(w, loginFormHTML)
	})
	mux.HandleFunc("/account", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			http.Redirect(w, r, "/account/login", http.StatusFound)
			return
		}
		fmt.Fprint(w, `<html><body><a href="/account/logout">Log out</a></body></html>`)
	})

	return srv
}

func newPage(t *testing.T) browser.Page {
	t.Helper()
	s, err := browser.NewHTTPSession(browser.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	p, err := s.NewPage(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestLoginIfNeeded_NoCredentialsIsNoop(t *testing.T) {
	require.NoError(t, LoginIfNeeded(context.Background(), nil, Credentials{}))
}

func TestLoginIfNeeded_Success(t *testing.T) {
	srv := storefront(t, "hunter2")
	p := newPage(t)

	err := LoginIfNeeded(context.Background(), p, Credentials{
		Base:     srv.URL,
		Email:    "dealer@example.com",
		Password: "hunter2",
	})
	require.NoError(t, err)
	assert.Contains(t, p.URL(), "/account")
}

func TestLoginIfNeeded_BadPassword(t *testing.T) {
	srv := storefront(t, "hunter2")
	p := newPage(t)

	err := LoginIfNeeded(context.Background(), p, Credentials{
		Base:     srv.URL,
		Email:    "dealer@example.com",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrLoginFailed)
}

func TestLoginIfNeeded_AlreadyAuthenticated(t *testing.T) {
	srv := storefront(t, "hunter2")
	p := newPage(t)

	creds := Credentials{Base: srv.URL, Email: "dealer@example.com", Password: "hunter2"}
	require.NoError(t, LoginIfNeeded(context.Background(), p, creds))

	// Second call sees the existing session and short-circuits.
	require.NoError(t, LoginIfNeeded(context.Background(), p, creds))
}
