package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// page is the slice of browser behaviour the scroll loop needs.
type page interface {
	ScrollHeight(ctx context.Context) (int64, error)
	ScrollToBottom(ctx context.Context) error
}

// scrollUntilStable scrolls to the bottom, waits settle, and re-measures the
// document height. It stops once two consecutive measurements agree or after
// maxAttempts scrolls, and returns the number of scrolls performed.
func scrollUntilStable(
	ctx context.Context,
	p page,
	settle time.Duration,
	maxAttempts int,
	sleep func(context.Context, time.Duration) error,
) (int, error) {
	last, err := p.ScrollHeight(ctx)
	if err != nil {
		return 0, err
	}
	attempts := 0
	for attempts < maxAttempts {
		if err := p.ScrollToBottom(ctx); err != nil {
			return attempts, err
		}
		attempts++
		if err := sleep(ctx, settle); err != nil {
			return attempts, err
		}
		height, err := p.ScrollHeight(ctx)
		if err != nil {
			return attempts, err
		}
		if height == last {
			break
		}
		last = height
	}
	return attempts, nil
}

type chromedpPage struct{}

func (chromedpPage) ScrollHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := chromedp.Evaluate(`document.body.scrollHeight`, &height).Do(ctx); err != nil {
		return 0, fmt.Errorf("measure height: %w", err)
	}
	return height, nil
}

func (chromedpPage) ScrollToBottom(ctx context.Context) error {
	if err := chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil).Do(ctx); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}
