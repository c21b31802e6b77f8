// Package collyfetcher fetches pages that need no script execution using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/policy/ratelimit"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent         string
	RespectRobots     bool
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Fetcher retrieves raw page HTML with a Colly collector.
type Fetcher struct {
	cfg           Config
	logger        *zap.Logger
	limiter       *ratelimit.Limiter
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())

	limiter := ratelimit.New(ratelimit.Config{RequestsPerSecond: cfg.RequestsPerSecond})
	return &Fetcher{
		cfg:           cfg,
		logger:        logger,
		limiter:       limiter,
		baseCollector: c,
	}
}

// Fetch performs a single GET and returns the response body.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := f.limiter.Wait(ctx, pageURL); err != nil {
		return nil, err
	}

	var (
		body     []byte
		fetchErr error
	)
	collector := f.buildCollector()
	configureCollectorHooks(collector, &body, &fetchErr)

	if err := runCollector(ctx, collector, pageURL, &fetchErr); err != nil {
		return nil, err
	}
	f.logger.Debug("page fetched", zap.String("url", pageURL), zap.Int("bytes", len(body)))
	return body, nil
}

func (f *Fetcher) buildCollector() *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.SetRequestTimeout(f.cfg.Timeout)
	return collector
}

func configureCollectorHooks(hooks collectorHooks, body *[]byte, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*body = append([]byte(nil), r.Body...)
	})
	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, pageURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
