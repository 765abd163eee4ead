package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
)

// HTTPSession drives server-rendered storefronts over plain HTTP with a
// shared cookie jar. It cannot execute page scripts; FetchJSON issues the
// request directly with the session's cookies, which is equivalent for the
// same-origin JSON side channel.
type HTTPSession struct {
	client *resty.Client
	opts   Options
}

// NewHTTPSession creates an HTTP-backed Session.
func NewHTTPSession(opts Options) (*HTTPSession, error) {
	opts = opts.withDefaults()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "browser: create cookie jar")
	}

	client := resty.New().
		SetCookieJar(jar).
		SetTimeout(opts.NavTimeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	return &HTTPSession{client: client, opts: opts}, nil
}

// NewPage opens a page sharing this session's cookies.
func (s *HTTPSession) NewPage(_ context.Context) (Page, error) {
	return &httpPage{session: s}, nil
}

// Close releases the session. The underlying client holds no resources
// beyond idle connections.
func (s *HTTPSession) Close() error {
	return nil
}

type httpPage struct {
	session *HTTPSession

	mu   sync.Mutex
	url  string
	body []byte
	doc  *goquery.Document
}

func (p *httpPage) Navigate(ctx context.Context, target string) error {
	res, err := p.session.client.R().
		SetContext(ctx).
		Get(target)
	if err != nil {
		return eris.Wrapf(err, "browser: navigate %s", target)
	}
	if res.StatusCode() >= 400 {
		return eris.Errorf("browser: navigate %s: status %d", target, res.StatusCode())
	}

	final := target
	if raw := res.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL.String()
	}

	p.mu.Lock()
	p.url = final
	p.body = res.Body()
	p.doc = nil
	p.mu.Unlock()
	return nil
}

func (p *httpPage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *httpPage) Document() (*goquery.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc != nil {
		return p.doc, nil
	}
	if p.body == nil {
		return nil, eris.New("browser: no page loaded")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.body))
	if err != nil {
		return nil, eris.Wrap(err, "browser: parse document")
	}
	p.doc = doc
	return doc, nil
}

func (p *httpPage) FetchJSON(ctx context.Context, target string, out any) error {
	res, err := p.session.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(target)
	if err != nil {
		return eris.Wrapf(err, "browser: fetch json %s", target)
	}
	if !res.IsSuccess() {
		return eris.Errorf("browser: fetch json %s: status %d", target, res.StatusCode())
	}
	if err := json.Unmarshal(res.Body(), out); err != nil {
		return eris.Wrapf(err, "browser: decode json %s", target)
	}
	return nil
}

func (p *httpPage) SubmitForm(ctx context.Context, formSelector string, fields map[string]string) error {
	doc, err := p.Document()
	if err != nil {
		return err
	}

	form := doc.Find(formSelector).First()
	if form.Length() == 0 {
		return eris.Errorf("browser: form not found: %s", formSelector)
	}

	// Seed with the form's own inputs (hidden tokens and defaults), then
	// overlay the caller's fields.
	values := url.Values{}
	form.Find("input[name]").Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		value, _ := sel.Attr("value")
		values.Set(name, value)
	})
	for name, value := range fields {
		values.Set(name, value)
	}

	action, _ := form.Attr("action")
	target, err := p.resolve(action)
	if err != nil {
		return eris.Wrapf(err, "browser: resolve form action %q", action)
	}

	method, _ := form.Attr("method")
	req := p.session.client.R().SetContext(ctx)

	var res *resty.Response
	if strings.EqualFold(method, "get") {
		res, err = req.SetQueryParamsFromValues(values).Get(target)
	} else {
		res, err = req.SetFormDataFromValues(values).Post(target)
	}
	if err != nil {
		return eris.Wrapf(err, "browser: submit form %s", target)
	}
	if res.StatusCode() >= 400 {
		return eris.Errorf("browser: submit form %s: status %d", target, res.StatusCode())
	}

	final := target
	if raw := res.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL.String()
	}

	p.mu.Lock()
	p.url = final
	p.body = res.Body()
	p.doc = nil
	p.mu.Unlock()
	return nil
}

func (p *httpPage) Screenshot(_ context.Context) ([]byte, error) {
	return nil, ErrScreenshotUnsupported
}

func (p *httpPage) Close() error {
	p.mu.Lock()
	p.body = nil
	p.doc = nil
	p.mu.Unlock()
	return nil
}

// resolve turns a possibly-relative href into an absolute URL against the
// page's current location.
func (p *httpPage) resolve(href string) (string, error) {
	base, err := url.Parse(p.URL())
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
