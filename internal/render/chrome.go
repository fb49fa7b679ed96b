package render

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/designpress/go-services/internal/apperr"
)

// Chrome renders pages with a headless Chrome acquired per call. Sessions are
// never pooled or reused across requests.
type Chrome struct {
	opts Options
}

// NewChrome creates a renderer with the given options, applying the fixed
// defaults (30s timeout, 20px margins) where unset.
func NewChrome(opts Options) *Chrome {
	return &Chrome{opts: opts.withDefaults()}
}

// RenderPage navigates to url, waits for the network to go idle or the
// timeout to elapse, and prints the page as an A4 PDF with backgrounds.
// The deferred cancels release the browser session on every exit path.
func (c *Chrome) RenderPage(ctx context.Context, pageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if c.opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, c.opts.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	}
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	// The listener must be registered before navigation starts. Events are
	// matched against the navigation's loader so the networkIdle the initial
	// about:blank document emits cannot satisfy the wait for the real page.
	watcher := newIdleWatcher()
	chromedp.ListenTarget(browserCtx, watcher.observe)

	margin := pxToInches(c.opts.MarginPx)
	var pdf []byte
	err := chromedp.Run(browserCtx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, loader, errText, _, err := page.Navigate(pageURL).Do(ctx)
			if err != nil {
				return err
			}
			if errText != "" {
				return fmt.Errorf("page load error: %s", errText)
			}
			watcher.expect(loader)
			return nil
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			select {
			case <-watcher.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4WidthInches).
				WithPaperHeight(a4HeightInches).
				WithMarginTop(margin).
				WithMarginRight(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = data
			return nil
		}),
	)
	if err != nil {
		return nil, c.classify(err)
	}
	if len(pdf) == 0 {
		return nil, apperr.Render("generated PDF is empty", nil)
	}
	return pdf, nil
}

func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
	)
	if c.opts.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// classify maps a chromedp failure onto the render error taxonomy,
// distinguishing the navigation timeout from other failures.
func (c *Chrome) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Render(fmt.Sprintf("PDF rendering timed out after %v", c.opts.Timeout), err)
	}
	if errors.Is(err, context.Canceled) {
		return apperr.Render("PDF rendering was cancelled", err)
	}
	return apperr.Render("Error generating PDF", err)
}

var _ Renderer = (*Chrome)(nil)

// idleWatcher waits for the networkIdle lifecycle event belonging to one
// specific navigation. Events seen before the navigation's loader is known
// are recorded, not acted on: a fast page whose networkIdle arrives before
// Navigate returns is still caught via expect, while events from other
// documents never satisfy the wait.
type idleWatcher struct {
	mu     sync.Mutex
	known  bool
	loader cdp.LoaderID
	seen   map[cdp.LoaderID]bool
	done   chan struct{}
}

func newIdleWatcher() *idleWatcher {
	return &idleWatcher{
		seen: make(map[cdp.LoaderID]bool),
		done: make(chan struct{}, 1),
	}
}

// observe is the ListenTarget callback.
func (w *idleWatcher) observe(ev interface{}) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok || e.Name != "networkIdle" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.known {
		w.seen[e.LoaderID] = true
		return
	}
	if e.LoaderID == w.loader {
		w.signal()
	}
}

// expect sets the loader whose networkIdle completes the wait, signalling
// immediately if that event already arrived.
func (w *idleWatcher) expect(loader cdp.LoaderID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.known = true
	w.loader = loader
	if w.seen[loader] {
		w.signal()
	}
}

func (w *idleWatcher) signal() {
	select {
	case w.done <- struct{}{}:
	default:
	}
}
