// Package auto fetches listing pages statically and falls back to a headless
// browser only when the static HTML looks script-rendered.
package auto

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// PageFetcher returns the HTML of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// Detector decides whether a static body needs rendering.
type Detector interface {
	ShouldPromote(body []byte) bool
}

// Fetcher tries the static path first. The headless fetcher is started on
// first promotion so Chrome is never launched for pages that do not need it.
type Fetcher struct {
	static      PageFetcher
	newHeadless func() (PageFetcher, error)
	detector    Detector
	logger      *zap.Logger

	mu       sync.Mutex
	headless PageFetcher
}

// New builds an auto Fetcher.
func New(static PageFetcher, newHeadless func() (PageFetcher, error), detector Detector, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		static:      static,
		newHeadless: newHeadless,
		detector:    detector,
		logger:      logger,
	}
}

// Fetch returns the static body unless the detector asks for promotion.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	body, err := f.static.Fetch(ctx, pageURL)
	if err == nil && !f.detector.ShouldPromote(body) {
		return body, nil
	}
	if err != nil {
		f.logger.Info("static fetch failed, promoting to headless", zap.String("url", pageURL), zap.Error(err))
	} else {
		f.logger.Info("page looks script-rendered, promoting to headless", zap.String("url", pageURL))
	}

	headless, err := f.headlessFetcher()
	if err != nil {
		return nil, err
	}
	return headless.Fetch(ctx, pageURL)
}

func (f *Fetcher) headlessFetcher() (PageFetcher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headless != nil {
		return f.headless, nil
	}
	h, err := f.newHeadless()
	if err != nil {
		return nil, fmt.Errorf("start headless fetcher: %w", err)
	}
	f.headless = h
	return h, nil
}

// Close closes the headless fetcher if one was started.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.headless.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
