// Package ingest runs one crawl of an investor relations listing page: fetch,
// extract PDF links, derive metadata and submit each record to the storage API.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/apiclient"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/document"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/metrics"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/retry"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/telemetry"
)

// ErrFetch wraps any failure to retrieve the listing page.
var ErrFetch = errors.New("fetch listing page")

// PageFetcher returns the fully loaded HTML of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// Extractor turns page HTML into candidate links.
type Extractor interface {
	Extract(html []byte) ([]document.Candidate, error)
}

// Submitter stores one record and reports how the API answered.
type Submitter interface {
	Submit(ctx context.Context, doc document.NewDocument) (apiclient.Result, error)
}

// Archiver keeps a copy of the fetched page.
type Archiver interface {
	Archive(ctx context.Context, pageURL string, html []byte) (string, error)
}

// Config names the crawl target and the filtering rule.
type Config struct {
	CrawlTarget string
	BaseDomain  string
	MinYear     int
	// StorageEndpoint is informational; the Submitter already points at it.
	StorageEndpoint string
	FetchRetry      retry.Config
}

// Summary counts what happened to the candidates of one run.
type Summary struct {
	Candidates int
	Skipped    int
	Created    int
	Duplicates int
	Rejected   int
}

// Driver executes crawl runs. It is not safe for concurrent Run calls.
type Driver struct {
	cfg       Config
	fetcher   PageFetcher
	extractor Extractor
	submitter Submitter
	archiver  Archiver
	policy    *retry.Policy
	logger    *zap.Logger
}

// New constructs a Driver. archiver may be nil.
func New(
	cfg Config,
	fetcher PageFetcher,
	extractor Extractor,
	submitter Submitter,
	archiver Archiver,
	logger *zap.Logger,
) (*Driver, error) {
	if cfg.CrawlTarget == "" {
		return nil, errors.New("crawl target is required")
	}
	if fetcher == nil || extractor == nil || submitter == nil {
		return nil, errors.New("fetcher, extractor and submitter are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		submitter: submitter,
		archiver:  archiver,
		policy:    retry.New(cfg.FetchRetry),
		logger:    logger,
	}, nil
}

// Run performs one crawl. A fetch failure returns an error wrapping ErrFetch
// before anything is submitted. Losing the storage API mid-batch stops the
// batch and returns the partial Summary with an error wrapping apiclient.ErrUnreachable.
func (d *Driver) Run(ctx context.Context) (summary Summary, err error) {
	ctx, span := telemetry.Tracer("irdocs/ingest").Start(ctx, "ingest.Run",
		trace.WithAttributes(attribute.String("crawl.target", d.cfg.CrawlTarget)),
	)
	defer func() {
		span.SetAttributes(
			attribute.Int("crawl.candidates", summary.Candidates),
			attribute.Int("crawl.created", summary.Created),
			attribute.Int("crawl.duplicates", summary.Duplicates),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := d.logger.With(zap.String("target", d.cfg.CrawlTarget), zap.String("trace_id", telemetry.TraceID(ctx)))
	log.Info("crawl started", zap.Int("min_year", d.cfg.MinYear), zap.String("storage", d.cfg.StorageEndpoint))

	html, err := d.fetch(ctx)
	if err != nil {
		metrics.ObserveCrawlRun("fetch_failed")
		log.Error("listing page fetch failed", zap.Error(err))
		return Summary{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	d.archive(ctx, html)

	candidates, err := d.extractor.Extract(html)
	if err != nil {
		metrics.ObserveCrawlRun("extract_failed")
		return Summary{}, fmt.Errorf("extract links: %w", err)
	}
	if len(candidates) == 0 {
		metrics.ObserveCrawlRun("empty")
		log.Warn("no PDF links found on listing page")
		return Summary{}, nil
	}

	summary = Summary{Candidates: len(candidates)}
	for _, c := range candidates {
		doc, ok := d.build(c)
		if !ok {
			summary.Skipped++
			metrics.ObserveDocument(metrics.OutcomeSkipped)
			continue
		}

		res, err := d.submitter.Submit(ctx, doc)
		if err != nil {
			metrics.ObserveCrawlRun("unreachable")
			log.Error("storage api unreachable, aborting batch",
				zap.String("pdf_url", doc.URL),
				zap.Error(err),
			)
			return summary, fmt.Errorf("submit %s: %w", doc.URL, err)
		}
		switch res.Outcome {
		case apiclient.OutcomeCreated:
			summary.Created++
			metrics.ObserveDocument(metrics.OutcomeCreated)
		case apiclient.OutcomeConflict:
			summary.Duplicates++
			metrics.ObserveDocument(metrics.OutcomeDuplicate)
		default:
			summary.Rejected++
			metrics.ObserveDocument(metrics.OutcomeRejected)
			log.Warn("document rejected",
				zap.String("title", doc.Title),
				zap.Int("status", res.Status),
				zap.String("detail", res.Detail),
			)
		}
	}

	metrics.ObserveCrawlRun("success")
	log.Info("crawl finished",
		zap.Int("candidates", summary.Candidates),
		zap.Int("skipped", summary.Skipped),
		zap.Int("created", summary.Created),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("rejected", summary.Rejected),
	)
	return summary, nil
}

func (d *Driver) fetch(ctx context.Context) ([]byte, error) {
	var html []byte
	start := time.Now()
	err := d.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		body, err := d.fetcher.Fetch(ctx, d.cfg.CrawlTarget)
		if err != nil {
			d.logger.Warn("fetch attempt failed", zap.Int("attempt", attempt), zap.Error(err))
			// A browser that cannot start will not start on the next attempt either.
			if errors.Is(err, headless.ErrFetcher) {
				return retry.Permanent(err)
			}
			return err
		}
		html = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ObservePageFetch(d.cfg.CrawlTarget, len(html), time.Since(start))
	return html, nil
}

func (d *Driver) archive(ctx context.Context, html []byte) {
	if d.archiver == nil {
		return
	}
	location, err := d.archiver.Archive(ctx, d.cfg.CrawlTarget, html)
	if err != nil {
		d.logger.Warn("snapshot archive failed", zap.Error(err))
		return
	}
	d.logger.Info("snapshot archived", zap.String("location", location))
}

// build derives the record for a candidate, or reports false when its year
// is unknown or older than MinYear.
func (d *Driver) build(c document.Candidate) (document.NewDocument, bool) {
	year, quarter := document.ExtractYearQuarter(c.Title)
	if year == nil {
		year = document.YearFromURL(c.URL)
	}
	if year == nil || *year < d.cfg.MinYear {
		d.logger.Debug("skipping candidate",
			zap.String("title", c.Title),
			zap.String("pdf_url", c.URL),
			zap.Any("year", year),
		)
		return document.NewDocument{}, false
	}
	return document.NewDocument{
		Title:   c.Title,
		Type:    document.Classify(c.Title),
		Year:    year,
		Quarter: quarter,
		URL:     c.URL,
	}, true
}
