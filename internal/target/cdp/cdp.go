// Package cdp drives targets through chromedp over the Chrome DevTools
// Protocol, either by launching a local Chrome or by attaching to a running
// one.
//
// Locators are CSS selectors. A trailing ">> nth=N" picks the N-th match,
// mirroring the Playwright locator syntax suites use for the first item of
// a list.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/roach88/shopcheck/internal/target"
)

// Options configures the browser connection.
type Options struct {
	// RemoteURL attaches to a running browser's DevTools websocket instead
	// of launching one.
	RemoteURL string

	// ExecPath overrides the Chrome binary for local launches.
	ExecPath string
	Headless bool

	Logger *slog.Logger
}

// Factory owns one browser and opens an isolated tab per target.
type Factory struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewFactory starts (or attaches to) the browser. ctx bounds the startup only.
func NewFactory(ctx context.Context, opts Options) (*Factory, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), opts.RemoteURL)
	} else {
		flags := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(1280, 900),
		)
		if opts.ExecPath != "" {
			flags = append(flags, chromedp.ExecPath(opts.ExecPath))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), flags...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...), "driver", "cdp")
		}),
	)

	// The first Run starts the browser and binds it to the context it is
	// given, so it must be browserCtx itself. ctx can only abandon the wait.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()
	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("start browser: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, ctx.Err()
	}

	logger.Debug("browser started", "driver", "cdp", "remote", opts.RemoteURL != "", "headless", opts.Headless)
	return &Factory{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        logger,
	}, nil
}

// NewTarget implements target.Factory. Each tab gets its own browser
// context, so cookies and storage are not shared.
func (f *Factory) NewTarget(ctx context.Context) (target.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed || f.browserCtx.Err() != nil {
		return nil, target.Unavailable("new target", errors.New("browser closed"))
	}

	tabCtx, tabCancel := chromedp.NewContext(f.browserCtx, chromedp.WithNewBrowserContext())
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, target.Unavailable("new tab", err)
	}
	return &Tab{ctx: tabCtx, cancel: tabCancel}, nil
}

// Close closes the browser.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.browserCancel()
	f.allocCancel()
	return nil
}

// Tab is a target backed by one browser tab.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions in the tab, bounded by the deadline and lifetime of
// ctx. Cancelling ctx stops the actions but keeps the tab open.
func (t *Tab) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ctx.Err() != nil {
		return target.Unavailable(op, errors.New("tab closed"))
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(t.ctx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(t.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	switch {
	case err == nil:
		return nil
	case t.ctx.Err() != nil:
		return target.Unavailable(op, err)
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, target.ErrTimeout)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

var nthPattern = regexp.MustCompile(`^(.*?)\s*>>\s*nth=(\d+)$`)

// query splits a locator into a CSS selector and a match index, or -1 for
// "every match".
func query(loc target.Locator) (string, int) {
	if m := nthPattern.FindStringSubmatch(string(loc)); m != nil {
		n, _ := strconv.Atoi(m[2])
		return m[1], n
	}
	return string(loc), -1
}

// nodesJS returns a JS expression evaluating to the elements loc matches.
func nodesJS(loc target.Locator) string {
	sel, n := query(loc)
	quoted, _ := json.Marshal(sel)
	all := fmt.Sprintf("Array.from(document.querySelectorAll(%s))", quoted)
	if n < 0 {
		return all
	}
	return fmt.Sprintf("%s.slice(%d, %d)", all, n, n+1)
}

func (t *Tab) eval(ctx context.Context, op, js string, res any) error {
	return t.run(ctx, op, chromedp.Evaluate(js, res))
}

func (t *Tab) Navigate(ctx context.Context, url string) error {
	return t.run(ctx, "navigate", chromedp.Navigate(url))
}

func (t *Tab) Fill(ctx context.Context, loc target.Locator, value string) error {
	sel, n := query(loc)
	if n < 0 {
		return t.run(ctx, "fill",
			chromedp.WaitVisible(sel, chromedp.ByQuery),
			chromedp.Clear(sel, chromedp.ByQuery),
			chromedp.SendKeys(sel, value, chromedp.ByQuery),
		)
	}
	return t.setValue(ctx, "fill", loc, "HTMLInputElement", "input", value)
}

func (t *Tab) Click(ctx context.Context, loc target.Locator) error {
	sel, n := query(loc)
	if n < 0 {
		return t.run(ctx, "click", chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
	}
	var ok bool
	js := fmt.Sprintf(`(() => { const el = %s[0]; if (!el) return false; el.scrollIntoView(); el.click(); return true; })()`, nodesJS(loc))
	if err := t.eval(ctx, "click", js, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("click: no element matches %q", loc)
	}
	return nil
}

// SelectOption sets the value through the native setter and fires change,
// so framework-managed selects see it.
func (t *Tab) SelectOption(ctx context.Context, loc target.Locator, value string) error {
	return t.setValue(ctx, "select", loc, "HTMLSelectElement", "change", value)
}

func (t *Tab) setValue(ctx context.Context, op string, loc target.Locator, proto, event, value string) error {
	quoted, _ := json.Marshal(value)
	js := fmt.Sprintf(`(() => {
  const el = %s[0];
  if (!el) return false;
  Object.getOwnPropertyDescriptor(%s.prototype, "value").set.call(el, %s);
  el.dispatchEvent(new Event(%q, {bubbles: true}));
  return true;
})()`, nodesJS(loc), proto, quoted, event)

	var ok bool
	if err := t.eval(ctx, op, js, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: no element matches %q", op, loc)
	}
	return nil
}

func (t *Tab) ReadText(ctx context.Context, loc target.Locator) (string, error) {
	var text *string
	js := fmt.Sprintf(`(() => { const el = %s[0]; return el ? el.textContent : null; })()`, nodesJS(loc))
	if err := t.eval(ctx, "read text", js, &text); err != nil {
		return "", err
	}
	if text == nil {
		return "", fmt.Errorf("read text: no element matches %q", loc)
	}
	return *text, nil
}

func (t *Tab) ReadTexts(ctx context.Context, loc target.Locator) ([]string, error) {
	texts := []string{}
	js := fmt.Sprintf(`%s.map(el => el.textContent)`, nodesJS(loc))
	if err := t.eval(ctx, "read texts", js, &texts); err != nil {
		return nil, err
	}
	return texts, nil
}

func (t *Tab) ReadVisibility(ctx context.Context, loc target.Locator) (bool, error) {
	var visible bool
	js := fmt.Sprintf(`(() => {
  const el = %s[0];
  if (!el) return false;
  const style = getComputedStyle(el);
  return style.visibility !== "hidden" && style.display !== "none" && el.getClientRects().length > 0;
})()`, nodesJS(loc))
	if err := t.eval(ctx, "read visibility", js, &visible); err != nil {
		return false, err
	}
	return visible, nil
}

func (t *Tab) ReadCount(ctx context.Context, loc target.Locator) (int, error) {
	var n int
	if err := t.eval(ctx, "read count", nodesJS(loc)+".length", &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (t *Tab) ReadURL(ctx context.Context) (string, error) {
	var url string
	if err := t.run(ctx, "read url", chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// WaitStable waits for the document to finish loading.
func (t *Tab) WaitStable(ctx context.Context) error {
	var complete bool
	return t.run(ctx, "wait stable",
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Poll(`document.readyState === "complete"`, &complete,
			chromedp.WithPollingInterval(50*time.Millisecond)),
	)
}

// Close closes the tab and its browser context.
func (t *Tab) Close() error {
	t.cancel()
	return nil
}

var _ target.Target = (*Tab)(nil)
