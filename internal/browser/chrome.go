package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// defaultCallTimeout bounds a single automation call.
const defaultCallTimeout = 30 * time.Second

// Options configures the headless Chrome session.
type Options struct {
	Headless     bool
	WindowWidth  int
	WindowHeight int
	ExecPath     string        // custom browser binary, empty for auto-discovery
	CallTimeout  time.Duration // per-call deadline, defaults to 30s
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Headless:     true,
		WindowWidth:  1920,
		WindowHeight: 1080,
		CallTimeout:  defaultCallTimeout,
	}
}

// Chrome drives a headless Chrome instance over the DevTools protocol.
type Chrome struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
	callTimeout time.Duration
}

// NewChrome launches a browser and verifies it is responsive. The
// session inherits its lifetime from ctx; Close releases it.
func NewChrome(ctx context.Context, opts Options) (*Chrome, error) {
	if opts.CallTimeout == 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.WindowWidth == 0 || opts.WindowHeight == 0 {
		opts.WindowWidth, opts.WindowHeight = 1920, 1080
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)

	c := &Chrome{
		ctx:         browserCtx,
		cancelCtx:   cancelCtx,
		cancelAlloc: cancelAlloc,
		callTimeout: opts.CallTimeout,
	}

	// Start the browser now so acquisition failures surface before the
	// run begins, not in the middle of a navigation step.
	startCtx, cancel := context.WithTimeout(browserCtx, opts.CallTimeout)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		c.release()
		return nil, &ToolError{Op: "acquire", Err: err}
	}
	return c, nil
}

// ChromeFactory returns a Factory that launches a fresh Chrome per run.
func ChromeFactory(opts Options) Factory {
	return FactoryFunc(func(ctx context.Context) (Session, error) {
		return NewChrome(ctx, opts)
	})
}

// Navigate loads the URL and waits for the document body.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(c.ctx, c.callTimeout)
	defer cancel()
	err := chromedp.Run(tctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return &ToolError{Op: "navigate", Target: url, Err: err}
	}
	return nil
}

// Click resolves the target and clicks its first match.
func (c *Chrome) Click(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.probe(target); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(c.ctx, c.callTimeout)
	defer cancel()
	if err := chromedp.Run(tctx, chromedp.Click(target, chromedp.ByQuery)); err != nil {
		return &ToolError{Op: "click", Target: target, Err: err}
	}
	return nil
}

// Type clears the target and sends the value as key events.
func (c *Chrome) Type(ctx context.Context, target, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.probe(target); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(c.ctx, c.callTimeout)
	defer cancel()
	err := chromedp.Run(tctx,
		chromedp.SetValue(target, "", chromedp.ByQuery),
		chromedp.SendKeys(target, value, chromedp.ByQuery),
	)
	if err != nil {
		return &ToolError{Op: "type", Target: target, Err: err}
	}
	return nil
}

// Snapshot captures the current document as outer HTML.
func (c *Chrome) Snapshot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tctx, cancel := context.WithTimeout(c.ctx, c.callTimeout)
	defer cancel()
	var html string
	if err := chromedp.Run(tctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", &ToolError{Op: "snapshot", Err: err}
	}
	return html, nil
}

// Close shuts the browser down and releases the allocator.
func (c *Chrome) Close(ctx context.Context) error {
	err := chromedp.Cancel(c.ctx)
	c.release()
	return err
}

// probe checks that at least one node matches the target without
// waiting for one to appear.
func (c *Chrome) probe(target string) error {
	tctx, cancel := context.WithTimeout(c.ctx, c.callTimeout)
	defer cancel()
	var nodes []*cdp.Node
	err := chromedp.Run(tctx, chromedp.Nodes(target, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return &ToolError{Op: "probe", Target: target, Err: err}
	}
	if len(nodes) == 0 {
		return &NoTargetError{Target: target}
	}
	return nil
}

func (c *Chrome) release() {
	c.cancelCtx()
	c.cancelAlloc()
}
