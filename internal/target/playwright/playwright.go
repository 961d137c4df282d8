// Package playwright drives targets through playwright-go.
//
// One Factory owns one Playwright driver process and one launched browser.
// Every target is a page in its own browser context, so cookies and
// storage never leak between cases.
package playwright

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"github.com/roach88/shopcheck/internal/target"
)

// Options configures the launched browser.
type Options struct {
	// Browser is chromium, firefox or webkit. Empty means chromium.
	Browser  string
	Headless bool

	// Install downloads the driver and browser before launching.
	Install bool

	// SlowMo delays every browser operation, for watching headed runs.
	SlowMo time.Duration

	Logger *slog.Logger
}

// Factory launches the browser once and creates one page per target.
type Factory struct {
	driver  *pw.Playwright
	browser pw.Browser
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewFactory starts Playwright and launches the configured browser.
func NewFactory(opts Options) (*Factory, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	name := opts.Browser
	if name == "" {
		name = "chromium"
	}

	if opts.Install {
		logger.Info("installing playwright browser", "browser", name)
		if err := pw.Install(&pw.RunOptions{Browsers: []string{name}}); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	p, err := pw.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	var bt pw.BrowserType
	switch name {
	case "chromium":
		bt = p.Chromium
	case "firefox":
		bt = p.Firefox
	case "webkit":
		bt = p.WebKit
	default:
		_ = p.Stop()
		return nil, fmt.Errorf("unknown browser %q (want chromium, firefox or webkit)", name)
	}

	launch := pw.BrowserTypeLaunchOptions{Headless: pw.Bool(opts.Headless)}
	if opts.SlowMo > 0 {
		launch.SlowMo = pw.Float(float64(opts.SlowMo.Milliseconds()))
	}
	browser, err := bt.Launch(launch)
	if err != nil {
		_ = p.Stop()
		return nil, fmt.Errorf("launch %s: %w", name, err)
	}

	logger.Debug("browser launched", "driver", "playwright", "browser", name, "version", browser.Version(), "headless", opts.Headless)
	return &Factory{driver: p, browser: browser, logger: logger}, nil
}

// NewTarget implements target.Factory.
func (f *Factory) NewTarget(ctx context.Context) (target.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, target.Unavailable("new target", errors.New("browser closed"))
	}
	if !f.browser.IsConnected() {
		return nil, target.Unavailable("new target", errors.New("browser disconnected"))
	}

	p := &Page{browser: f.browser}
	if err := p.open(); err != nil {
		return nil, err
	}
	return p, nil
}

// Close closes the browser and stops the driver.
func (f *Factory) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	return errors.Join(f.browser.Close(), f.driver.Stop())
}

// Page is a target backed by a Playwright page in a private browser context.
type Page struct {
	browser pw.Browser

	mu    sync.Mutex
	bctx  pw.BrowserContext
	page  pw.Page
	alive bool
}

func (p *Page) open() error {
	bctx, err := p.browser.NewContext()
	if err != nil {
		return target.Unavailable("new context", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return target.Unavailable("new page", err)
	}

	p.mu.Lock()
	p.bctx, p.page, p.alive = bctx, page, true
	p.mu.Unlock()
	return nil
}

func (p *Page) current() (pw.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive || p.page.IsClosed() {
		return nil, errors.New("page closed")
	}
	return p.page, nil
}

// timeout converts the ctx deadline into a Playwright timeout in
// milliseconds. Without a deadline Playwright's default applies.
func timeout(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	ms := math.Max(1, float64(time.Until(deadline).Milliseconds()))
	return pw.Float(ms)
}

// do runs fn, mapping Playwright errors onto target errors. Playwright calls
// are not context aware: on cancellation do returns at once and fn finishes
// (or fails) in the background against its own timeout.
func (p *Page) do(ctx context.Context, op string, fn func(page pw.Page) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	page, err := p.current()
	if err != nil {
		return target.Unavailable(op, err)
	}

	done := make(chan error, 1)
	go func() { done <- fn(page) }()

	select {
	case err := <-done:
		return p.classify(op, err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Page) classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pw.ErrTimeout):
		return fmt.Errorf("%s: %w: %v", op, target.ErrTimeout, err)
	case errors.Is(err, pw.ErrTargetClosed):
		return target.Unavailable(op, err)
	default:
		if _, cerr := p.current(); cerr != nil {
			return target.Unavailable(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.do(ctx, "navigate", func(page pw.Page) error {
		_, err := page.Goto(url, pw.PageGotoOptions{
			Timeout:   timeout(ctx),
			WaitUntil: pw.WaitUntilStateLoad,
		})
		return err
	})
}

func (p *Page) Fill(ctx context.Context, loc target.Locator, value string) error {
	return p.do(ctx, "fill", func(page pw.Page) error {
		return page.Locator(string(loc)).Fill(value, pw.LocatorFillOptions{Timeout: timeout(ctx)})
	})
}

func (p *Page) Click(ctx context.Context, loc target.Locator) error {
	return p.do(ctx, "click", func(page pw.Page) error {
		return page.Locator(string(loc)).Click(pw.LocatorClickOptions{Timeout: timeout(ctx)})
	})
}

func (p *Page) SelectOption(ctx context.Context, loc target.Locator, value string) error {
	return p.do(ctx, "select", func(page pw.Page) error {
		_, err := page.Locator(string(loc)).SelectOption(
			pw.SelectOptionValues{Values: pw.StringSlice(value)},
			pw.LocatorSelectOptionOptions{Timeout: timeout(ctx)},
		)
		return err
	})
}

func (p *Page) ReadText(ctx context.Context, loc target.Locator) (string, error) {
	var text string
	err := p.do(ctx, "read text", func(page pw.Page) error {
		var err error
		text, err = page.Locator(string(loc)).First().TextContent(pw.LocatorTextContentOptions{Timeout: timeout(ctx)})
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

func (p *Page) ReadTexts(ctx context.Context, loc target.Locator) ([]string, error) {
	var texts []string
	err := p.do(ctx, "read texts", func(page pw.Page) error {
		var err error
		texts, err = page.Locator(string(loc)).AllTextContents()
		return err
	})
	if err != nil {
		return nil, err
	}
	return texts, nil
}

func (p *Page) ReadVisibility(ctx context.Context, loc target.Locator) (bool, error) {
	var visible bool
	err := p.do(ctx, "read visibility", func(page pw.Page) error {
		var err error
		visible, err = page.Locator(string(loc)).First().IsVisible()
		return err
	})
	if err != nil {
		return false, err
	}
	return visible, nil
}

func (p *Page) ReadCount(ctx context.Context, loc target.Locator) (int, error) {
	var n int
	err := p.do(ctx, "read count", func(page pw.Page) error {
		var err error
		n, err = page.Locator(string(loc)).Count()
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (p *Page) ReadURL(ctx context.Context) (string, error) {
	var url string
	err := p.do(ctx, "read url", func(page pw.Page) error {
		url = page.URL()
		return nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

// WaitStable waits for the network to go idle after the last action.
func (p *Page) WaitStable(ctx context.Context) error {
	return p.do(ctx, "wait stable", func(page pw.Page) error {
		return page.WaitForLoadState(pw.PageWaitForLoadStateOptions{
			State:   pw.LoadStateNetworkidle,
			Timeout: timeout(ctx),
		})
	})
}

// Reset replaces the browser context with a fresh one, dropping cookies,
// storage and history.
func (p *Page) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Close(); err != nil {
		return err
	}
	return p.open()
}

// Close closes the page's browser context.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return nil
	}
	p.alive = false
	return p.bctx.Close()
}
