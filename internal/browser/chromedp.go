package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// ChromeSession drives a headless Chrome via chromedp. Tabs opened from the
// same session share the browser profile and therefore its cookies.
type ChromeSession struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	opts        Options
}

// NewChromeSession launches a browser and returns a Session over it.
func NewChromeSession(ctx context.Context, opts Options) (*ChromeSession, error) {
	opts = opts.withDefaults()

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.UserAgent(opts.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start so launch failures surface here
	// instead of on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, eris.Wrap(err, "browser: launch chrome")
	}

	return &ChromeSession{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      browserCancel,
		opts:        opts,
	}, nil
}

// NewPage opens a new tab in the shared browser.
func (s *ChromeSession) NewPage(_ context.Context) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.ctx)
	return &chromePage{
		ctx:    tabCtx,
		cancel: tabCancel,
		opts:   s.opts,
	}, nil
}

// Close shuts the browser down.
func (s *ChromeSession) Close() error {
	s.cancel()
	s.allocCancel()
	return nil
}

type chromePage struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options

	mu  sync.Mutex
	url string
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, opCancel := context.WithTimeout(p.ctx, p.opts.NavTimeout)
	defer opCancel()

	// Chromedp actions only observe the tab's context chain; propagate the
	// caller's cancellation into it.
	stop := context.AfterFunc(ctx, opCancel)
	defer stop()

	return chromedp.Run(opCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, target string) error {
	err := p.run(ctx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return eris.Wrapf(err, "browser: navigate %s", target)
	}

	var loc string
	_ = p.run(ctx, chromedp.Location(&loc))
	p.mu.Lock()
	if loc != "" {
		p.url = loc
	} else {
		p.url = target
	}
	p.mu.Unlock()
	return nil
}

func (p *chromePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *chromePage) Document() (*goquery.Document, error) {
	var html string
	if err := p.run(context.Background(), chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, eris.Wrap(err, "browser: read dom")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "browser: parse document")
	}
	return doc, nil
}

func (p *chromePage) FetchJSON(ctx context.Context, target string, out any) error {
	script := fmt.Sprintf(
		`fetch(%q, {credentials: "same-origin", cache: "no-store"}).then(r => r.ok ? r.json() : null)`,
		target,
	)

	var raw json.RawMessage
	err := p.run(ctx, chromedp.Evaluate(script, &raw,
		func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithAwaitPromise(true)
		},
	))
	if err != nil {
		return eris.Wrapf(err, "browser: fetch json %s", target)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return eris.Errorf("browser: fetch json %s: empty response", target)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return eris.Wrapf(err, "browser: decode json %s", target)
	}
	return nil
}

func (p *chromePage) SubmitForm(ctx context.Context, formSelector string, fields map[string]string) error {
	actions := make([]chromedp.Action, 0, len(fields)+2)
	for name, value := range fields {
		sel := fmt.Sprintf(`%s [name=%q]`, formSelector, name)
		actions = append(actions, chromedp.SetValue(sel, value, chromedp.ByQuery))
	}
	submit := fmt.Sprintf(
		`%s button[type="submit"], %s input[type="submit"]`,
		formSelector, formSelector,
	)
	actions = append(actions,
		chromedp.Click(submit, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)

	if err := p.run(ctx, actions...); err != nil {
		return eris.Wrapf(err, "browser: submit form %s", formSelector)
	}

	var loc string
	_ = p.run(ctx, chromedp.Location(&loc))
	if loc != "" {
		p.mu.Lock()
		p.url = loc
		p.mu.Unlock()
	}
	return nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, eris.Wrap(err, "browser: screenshot")
	}
	return buf, nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
