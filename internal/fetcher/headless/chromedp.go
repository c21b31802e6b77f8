// Package headless fetches investor relations pages with headless Chrome so
// that lazily loaded document lists are present in the returned HTML.
package headless

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/policy/ratelimit"
)

// ErrFetcher indicates the browser session could not be started.
var ErrFetcher = errors.New("headless browser unavailable")

const (
	defaultNavigationTimeout = 90 * time.Second
	defaultSettleDelay       = 2 * time.Second
	defaultMaxScrollAttempts = 10
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// SettleDelay is the pause between scrolling and re-measuring the page.
	SettleDelay time.Duration
	// MaxScrollAttempts caps scroll cycles on pages that keep growing.
	MaxScrollAttempts int
	// RequestsPerSecond paces navigations; zero disables pacing.
	RequestsPerSecond float64
}

func (c Config) withDefaults() Config {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = defaultNavigationTimeout
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = defaultSettleDelay
	}
	if c.MaxScrollAttempts <= 0 {
		c.MaxScrollAttempts = defaultMaxScrollAttempts
	}
	return c
}

// Fetcher renders pages in a single shared browser.
type Fetcher struct {
	cfg           Config
	logger        *zap.Logger
	limiter       *ratelimit.Limiter
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// New starts headless Chrome. Failure to launch the browser is reported as ErrFetcher.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %v", ErrFetcher, err)
	}

	limiter := ratelimit.New(ratelimit.Config{RequestsPerSecond: cfg.RequestsPerSecond})

	return &Fetcher{
		cfg:           cfg,
		logger:        logger,
		limiter:       limiter,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close shuts the browser down.
func (f *Fetcher) Close() error {
	if f == nil {
		return nil
	}
	f.browserCancel()
	f.allocCancel()
	return nil
}

// Fetch navigates to pageURL, scrolls until the document stops growing and
// returns the rendered HTML.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx, pageURL); err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, f.cfg.NavigationTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var (
		html     string
		attempts int
	)
	tasks := chromedp.Tasks{
		network.Enable(),
		f.userAgentAction(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			n, err := scrollUntilStable(ctx, chromedpPage{}, f.cfg.SettleDelay, f.cfg.MaxScrollAttempts, sleepContext)
			attempts = n
			return err
		}),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	f.logger.Debug("page rendered",
		zap.String("url", pageURL),
		zap.Int("scroll_attempts", attempts),
		zap.Int("bytes", len(html)),
	)
	return []byte(html), nil
}

func (f *Fetcher) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if f.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("settle wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
