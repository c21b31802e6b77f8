package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/document"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage"
)

func newMockStore(t *testing.T) (*DocumentStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock, "documents")
	require.NoError(t, err)
	return store, mock
}

func sampleDoc() document.NewDocument {
	return document.NewDocument{
		Title:   "Financial Statement 4Q FY2023",
		Type:    document.TypeFinancialStatement,
		Year:    document.IntPtr(2023),
		Quarter: document.IntPtr(4),
		URL:     "https://www.example.com/fs.pdf",
	}
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "documents")
	assert.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithPool(mock, "bad table")
	assert.Error(t, err)
}

func TestMigrateCreatesTable(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInsertsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	doc := sampleDoc()
	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(doc.Title, "financial_statement", doc.Year, doc.Quarter, doc.URL).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	got, err := store.Create(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, doc.URL, got.URL)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMapsUniqueViolation(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	doc := sampleDoc()
	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(doc.Title, "financial_statement", doc.Year, doc.Quarter, doc.URL).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := store.Create(context.Background(), doc)
	require.ErrorIs(t, err, storage.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWrapsOtherErrors(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	doc := sampleDoc()
	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(doc.Title, "financial_statement", doc.Year, doc.Quarter, doc.URL).
		WillReturnError(errors.New("connection reset"))

	_, err := store.Create(context.Background(), doc)
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrConflict)
}

func TestReadAppliesFilters(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	rows := pgxmock.NewRows([]string{"id", "document_title", "document_type", "year", "quarter", "pdf_url"}).
		AddRow(int64(1), "Q&A 1Q 2023", "qna", document.IntPtr(2023), document.IntPtr(1), "https://e.com/1.pdf").
		AddRow(int64(3), "Release 1Q 2023", "earnings_release", document.IntPtr(2023), document.IntPtr(1), "https://e.com/3.pdf")
	mock.ExpectQuery(`SELECT .* FROM documents WHERE year = \$1 AND quarter = \$2 LIMIT \$3`).
		WithArgs(2023, 1, 100).
		WillReturnRows(rows)

	got, err := store.Read(context.Background(), storage.Filter{Year: document.IntPtr(2023), Quarter: document.IntPtr(1)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, document.TypeQnA, got[0].Type)
	assert.Equal(t, 1, *got[1].Quarter)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadEmptyIsNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT .* FROM documents LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "document_title", "document_type", "year", "quarter", "pdf_url"}))

	_, err := store.Read(context.Background(), storage.Filter{})
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectPing()
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
