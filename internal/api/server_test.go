package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/document"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/publisher"
	pubmemory "github.com/JakeFAU/ir-disclosure-crawler/internal/publisher/memory"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.DocumentStore, *pubmemory.Publisher) {
	t.Helper()
	repo := memory.NewDocumentStore()
	pub := pubmemory.New()
	return NewServer(repo, pub, Config{}, zap.NewNop()), repo, pub
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createBody(title, docType string, year, quarter int, url string) string {
	payload := map[string]any{
		"document_title": title,
		"document_type":  docType,
		"pdf_url":        url,
	}
	if year > 0 {
		payload["year"] = year
	}
	if quarter > 0 {
		payload["quarter"] = quarter
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func detailOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["detail"]
}

func TestServer_Root(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	rec := do(t, server.Handler(), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_CreateDocument(t *testing.T) {
	t.Parallel()

	server, repo, pub := newTestServer(t)
	body := createBody("3Q FY2024 Earnings Release", "earnings_release", 2024, 3, "https://ir.example.com/a.pdf")

	rec := do(t, server.Handler(), http.MethodPost, "/create", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var got document.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, document.TypeEarningsRelease, got.Type)
	require.NotNil(t, got.Quarter)
	assert.Equal(t, 3, *got.Quarter)
	assert.Equal(t, 1, repo.Len())

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].Document.ID)
}

func TestServer_CreateDuplicateReturnsConflict(t *testing.T) {
	t.Parallel()

	server, repo, pub := newTestServer(t)
	body := createBody("Q&A 2023", "qna", 2023, 0, "https://ir.example.com/qa.pdf")

	require.Equal(t, http.StatusCreated, do(t, server.Handler(), http.MethodPost, "/create", body).Code)
	rec := do(t, server.Handler(), http.MethodPost, "/create", body)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, detailOf(t, rec), "already exists")
	assert.Equal(t, 1, repo.Len())
	assert.Len(t, pub.Events(), 1)
}

func TestServer_CreateRejectsInvalidBodies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"document_title":`, "invalid JSON"},
		{"blank title", createBody("   ", "qna", 2023, 0, "https://a/b.pdf"), "document_title"},
		{"missing url", createBody("Q&A", "qna", 2023, 0, ""), "pdf_url"},
		{"unknown type", createBody("Q&A", "press", 2023, 0, "https://a/b.pdf"), "document_type"},
		{"bad quarter", createBody("Q&A", "qna", 2023, 7, "https://a/b.pdf"), "quarter"},
		{"string year", `{"document_title":"x","document_type":"qna","year":"2023","pdf_url":"https://a/b.pdf"}`, "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, repo, _ := newTestServer(t)
			rec := do(t, server.Handler(), http.MethodPost, "/create", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, detailOf(t, rec), tt.want)
			assert.Equal(t, 0, repo.Len())
		})
	}
}

func TestServer_ReadDocuments(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	seed := []string{
		createBody("1Q 2023 Earnings Release", "earnings_release", 2023, 1, "https://a/1.pdf"),
		createBody("2Q 2023 Earnings Release", "earnings_release", 2023, 2, "https://a/2.pdf"),
		createBody("2Q 2024 Earnings Release", "earnings_release", 2024, 2, "https://a/3.pdf"),
		createBody("2Q 2023 Q&A", "qna", 2023, 2, "https://a/4.pdf"),
	}
	for _, body := range seed {
		require.Equal(t, http.StatusCreated, do(t, server.Handler(), http.MethodPost, "/create", body).Code)
	}

	tests := []struct {
		name  string
		query string
		urls  []string
	}{
		{"all", "/read", []string{"https://a/1.pdf", "https://a/2.pdf", "https://a/3.pdf", "https://a/4.pdf"}},
		{"and filters", "/read?document_type=earnings_release&year=2023&quarter=2", []string{"https://a/2.pdf"}},
		{"year only", "/read?year=2024", []string{"https://a/3.pdf"}},
		{"zero year and quarter are unset", "/read?year=0&quarter=0&document_type=qna", []string{"https://a/4.pdf"}},
		{"limit", "/read?limit=2", []string{"https://a/1.pdf", "https://a/2.pdf"}},
		{"non-positive limit", "/read?limit=0", []string{"https://a/1.pdf", "https://a/2.pdf", "https://a/3.pdf", "https://a/4.pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, server.Handler(), http.MethodGet, tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)
			var docs []document.Document
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
			urls := make([]string, 0, len(docs))
			for _, d := range docs {
				urls = append(urls, d.URL)
			}
			assert.Equal(t, tt.urls, urls)
		})
	}
}

func TestServer_ReadNotFound(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	rec := do(t, server.Handler(), http.MethodGet, "/read?document_type=qna&year=1999", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No documents found matching the criteria.", detailOf(t, rec))
}

func TestServer_ReadRejectsNonIntegerParams(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	for _, q := range []string{"year=twenty", "quarter=Q1", "limit=ten"} {
		rec := do(t, server.Handler(), http.MethodGet, "/read?"+q, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Contains(t, detailOf(t, rec), "must be an integer")
	}
}

func TestServer_StorageFailures(t *testing.T) {
	t.Parallel()

	server := NewServer(failingRepo{err: errors.New("disk I/O error")}, nil, Config{}, zap.NewNop())

	rec := do(t, server.Handler(), http.MethodPost, "/create",
		createBody("Q&A 2023", "qna", 2023, 0, "https://a/b.pdf"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk I/O")

	rec = do(t, server.Handler(), http.MethodGet, "/read", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, server.Handler(), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, do(t, server.Handler(), http.MethodGet, "/healthz", "").Code)
	require.Equal(t, http.StatusOK, do(t, server.Handler(), http.MethodGet, "/readyz", "").Code)

	rec := do(t, server.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "http_requests_total"))
}

func TestServer_PublisherFailureDoesNotFailCreate(t *testing.T) {
	t.Parallel()

	repo := memory.NewDocumentStore()
	server := NewServer(repo, failingPublisher{}, Config{}, zap.NewNop())
	rec := do(t, server.Handler(), http.MethodPost, "/create",
		createBody("Financial Statements 2024", "financial_statement", 2024, 0, "https://a/fs.pdf"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, repo.Len())
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", detailOf(t, rec))
}

func TestRequestIDMiddlewareKeepsIncomingID(t *testing.T) {
	t.Parallel()

	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

type failingRepo struct {
	err error
}

func (f failingRepo) Create(context.Context, document.NewDocument) (document.Document, error) {
	return document.Document{}, fmt.Errorf("insert: %w", f.err)
}

func (f failingRepo) Read(context.Context, storage.Filter) ([]document.Document, error) {
	return nil, f.err
}

func (f failingRepo) Ping(context.Context) error { return f.err }
func (f failingRepo) Close() error               { return nil }

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, publisher.Event) (string, error) {
	return "", errors.New("topic not found")
}
