// Package apiclient submits documents to the storage API and classifies the
// responses the ingestion driver cares about.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/document"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/retry"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage"
)

// ErrUnreachable means the storage API could not be contacted at all.
var ErrUnreachable = errors.New("storage api unreachable")

// Outcome classifies a single submission.
type Outcome int

const (
	// OutcomeCreated means the API stored a new record.
	OutcomeCreated Outcome = iota + 1
	// OutcomeConflict means the pdf_url was already stored.
	OutcomeConflict
	// OutcomeRejected covers every other response status.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeConflict:
		return "duplicate"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Result describes the API response to a submission.
type Result struct {
	Outcome  Outcome
	Status   int
	Detail   string
	Document document.Document
}

// Config configures a Client.
type Config struct {
	Endpoint   string
	Timeout    time.Duration
	Retry      retry.Config
	HTTPClient *http.Client
}

// Client talks to the storage API over HTTP.
type Client struct {
	base   *url.URL
	http   *http.Client
	policy *retry.Policy
	logger *zap.Logger
}

// New validates the endpoint and builds a Client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("parse storage endpoint: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("storage endpoint %q must be absolute", cfg.Endpoint)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{
		base:   base,
		http:   httpClient,
		policy: retry.New(cfg.Retry),
		logger: logger,
	}, nil
}

// statusError is a server-side failure that is worth retrying.
type statusError struct {
	status int
	detail string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.detail)
}

// Submit posts doc to /create. Transport failures that survive the retry
// budget are returned wrapping ErrUnreachable; every HTTP response becomes a Result.
func (c *Client) Submit(ctx context.Context, doc document.NewDocument) (Result, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return Result{}, fmt.Errorf("encode document: %w", err)
	}
	endpoint := c.resolve("/create", nil)

	var result Result
	err = c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return retry.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn("storage api request failed",
				zap.Int("attempt", attempt),
				zap.String("pdf_url", doc.URL),
				zap.Error(err),
			)
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusCreated:
			result = Result{Outcome: OutcomeCreated, Status: resp.StatusCode}
			// The row is stored either way; a body we cannot read only loses the echo.
			if err := json.Unmarshal(body, &result.Document); err != nil {
				c.logger.Warn("undecodable create response",
					zap.String("pdf_url", doc.URL),
					zap.Error(err),
				)
				result.Document = document.Document{}
			}
		case resp.StatusCode == http.StatusConflict:
			result = Result{Outcome: OutcomeConflict, Status: resp.StatusCode, Detail: parseDetail(body)}
		case resp.StatusCode >= http.StatusInternalServerError:
			return &statusError{status: resp.StatusCode, detail: parseDetail(body)}
		default:
			result = Result{Outcome: OutcomeRejected, Status: resp.StatusCode, Detail: parseDetail(body)}
		}
		return nil
	})
	if err == nil {
		return result, nil
	}

	var se *statusError
	if errors.As(err, &se) {
		return Result{Outcome: OutcomeRejected, Status: se.status, Detail: se.detail}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, fmt.Errorf("submit document: %w", ctxErr)
	}
	return Result{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// Read queries /read. A 404 is reported as an empty result.
func (c *Client) Read(ctx context.Context, f storage.Filter) ([]document.Document, error) {
	query := url.Values{}
	if f.Type != nil {
		query.Set("document_type", string(*f.Type))
	}
	if f.Year != nil {
		query.Set("year", strconv.Itoa(*f.Year))
	}
	if f.Quarter != nil {
		query.Set("quarter", strconv.Itoa(*f.Quarter))
	}
	query.Set("limit", strconv.Itoa(f.EffectiveLimit()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve("/read", query), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var docs []document.Document
		if err := json.Unmarshal(body, &docs); err != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}
		return docs, nil
	case http.StatusNotFound:
		return []document.Document{}, nil
	default:
		return nil, fmt.Errorf("read documents: status %d: %s", resp.StatusCode, parseDetail(body))
	}
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// parseDetail pulls the detail field from an error body, falling back to the raw text.
func parseDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		return string(payload.Detail)
	}
	return strings.TrimSpace(string(body))
}
