package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/document"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage"
)

func openStore(t *testing.T) *DocumentStore {
	t.Helper()
	store, err := New(context.Background(), Config{Path: filepath.Join(t.TempDir(), "scraped_data.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Path: filepath.Join(t.TempDir(), "x.db"), Table: "bad-name"})
	assert.Error(t, err)
}

func TestDSNKeepsExistingQuery(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "x.db?_journal_mode=WAL&_busy_timeout=5000", dsn("x.db"))
	assert.Equal(t, "file:x.db?cache=shared&_journal_mode=WAL&_busy_timeout=5000", dsn("file:x.db?cache=shared"))

	path := "file:" + filepath.Join(t.TempDir(), "shared.db") + "?cache=shared"
	store, err := New(context.Background(), Config{Path: path})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(context.Background()))

	var mode string
	require.NoError(t, store.db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestCreateDuplicateURL(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()
	doc := document.NewDocument{
		Title:   "Financial Statement 4Q FY2023",
		Type:    document.TypeFinancialStatement,
		Year:    document.IntPtr(2023),
		Quarter: document.IntPtr(4),
		URL:     "https://www.example.com/docs/fs.pdf",
	}

	created, err := store.Create(ctx, doc)
	require.NoError(t, err)
	assert.Positive(t, created.ID)

	_, err = store.Create(ctx, doc)
	require.ErrorIs(t, err, storage.ErrConflict)

	rows, err := store.Read(ctx, storage.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, created, rows[0])
}

func TestReadFiltersAndNulls(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()
	inputs := []document.NewDocument{
		{Title: "Q&A 1Q 2023", Type: document.TypeQnA, Year: document.IntPtr(2023), Quarter: document.IntPtr(1), URL: "https://e.com/1.pdf"},
		{Title: "Release 2Q 2023", Type: document.TypeEarningsRelease, Year: document.IntPtr(2023), Quarter: document.IntPtr(2), URL: "https://e.com/2.pdf"},
		{Title: "Integrated Report 2023", Type: document.TypeOthers, Year: document.IntPtr(2023), URL: "https://e.com/3.pdf"},
	}
	for _, in := range inputs {
		_, err := store.Create(ctx, in)
		require.NoError(t, err)
	}

	got, err := store.Read(ctx, storage.Filter{Year: document.IntPtr(2023), Quarter: document.IntPtr(1)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://e.com/1.pdf", got[0].URL)

	others := document.TypeOthers
	got, err = store.Read(ctx, storage.Filter{Type: &others})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Quarter)

	got, err = store.Read(ctx, storage.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = store.Read(ctx, storage.Filter{Year: document.IntPtr(2023), Quarter: document.IntPtr(4)})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()
	_, err := store.Create(ctx, document.NewDocument{
		Title: "seed", Type: document.TypeOthers, Year: document.IntPtr(2023), URL: "https://e.com/seed.pdf",
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, readErr := store.Read(ctx, storage.Filter{})
			assert.NoError(t, readErr)
		}()
		go func() {
			defer wg.Done()
			_, _ = store.Create(ctx, document.NewDocument{
				Title: "dup", Type: document.TypeOthers, URL: "https://e.com/dup.pdf",
			})
		}()
	}
	wg.Wait()

	rows, err := store.Read(ctx, storage.Filter{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
