package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/api"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/config"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/document"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage/memory"
)

const listing = `<html><body>
<a href="/ir/2024/release.pdf"><span>2Q FY2024 Earnings Release</span></a>
<a href="/ir/2020/old.pdf"><span>FY2020 Financial Statements</span></a>
</body></html>`

func withConfig(t *testing.T, cfg config.Config) {
	t.Helper()
	prev := loadConfig
	loadConfig = func(string) (config.Config, error) { return cfg, nil }
	t.Cleanup(func() { loadConfig = prev })
}

func baseConfig(target, storageEndpoint string) config.Config {
	return config.Config{
		Server:     config.ServerConfig{Port: 8000, RequestTimeout: time.Second},
		Crawler:    config.CrawlerConfig{TargetURL: target + "/ir/library", BaseDomain: target, MinYear: 2022},
		Fetcher:    config.FetcherConfig{Mode: config.FetcherStatic, NavigationTimeout: 5 * time.Second, MaxScrollAttempts: 1},
		StorageAPI: config.StorageAPIConfig{Endpoint: storageEndpoint, Timeout: time.Second},
		Retry:      config.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		DB:         config.DBConfig{Driver: config.DriverMemory},
		Snapshot:   config.SnapshotConfig{Backend: config.SnapshotNone},
		Logging:    config.LoggingConfig{Level: "error"},
	}
}

func TestCrawlCommandSubmitsDocuments(t *testing.T) {
	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listing)
	}))
	defer pages.Close()

	repo := memory.NewDocumentStore()
	storageAPI := httptest.NewServer(api.NewServer(repo, nil, api.Config{}, zap.NewNop()).Handler())
	defer storageAPI.Close()

	withConfig(t, baseConfig(pages.URL, storageAPI.URL))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"crawl"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "candidates=2 skipped=1 created=1 duplicates=0 rejected=0")
	assert.Equal(t, 1, repo.Len())

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"crawl", "--min-year", "2019"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "created=1 duplicates=1")
	assert.Equal(t, 2, repo.Len())
}

func TestCrawlCommandFailsWhenStorageDown(t *testing.T) {
	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listing)
	}))
	defer pages.Close()

	dead := httptest.NewServer(http.NotFoundHandler())
	endpoint := dead.URL
	dead.Close()

	withConfig(t, baseConfig(pages.URL, endpoint))

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"crawl"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage api unreachable")
}

func TestListCommandPrintsDocuments(t *testing.T) {
	storageAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/read", r.URL.Path)
		assert.Equal(t, "2024", r.URL.Query().Get("year"))
		_, _ = w.Write([]byte(`[{"id":1,"document_title":"2Q FY2024 Earnings Release","document_type":"earnings_release","year":2024,"quarter":2,"pdf_url":"https://a/r.pdf"}]`))
	}))
	defer storageAPI.Close()

	cfg := baseConfig("https://ir.example.com", storageAPI.URL)
	cfg.Tracing = config.TracingConfig{Enabled: true, ServiceName: "irdocs-test", SampleRatio: 1}
	withConfig(t, cfg)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"list", "--year", "2024"})
	require.NoError(t, root.Execute())

	var docs []document.Document
	require.NoError(t, json.Unmarshal(out.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, int64(1), docs[0].ID)
}

func TestRootRejectsBadConfig(t *testing.T) {
	prev := loadConfig
	loadConfig = func(string) (config.Config, error) { return config.Config{}, fmt.Errorf("server.port must be > 0") }
	t.Cleanup(func() { loadConfig = prev })

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"crawl"})
	require.ErrorContains(t, root.Execute(), "load config")
}
