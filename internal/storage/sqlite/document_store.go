// Package sqlite persists documents in a local SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/document"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage"
)

// Config controls the SQLite document store.
type Config struct {
	Path  string
	Table string
}

// DocumentStore implements storage.Repository on SQLite.
type DocumentStore struct {
	db    *sql.DB
	table string
}

// New opens (or creates) the database file and ensures the schema exists.
// WAL mode lets API readers run alongside the single writer.
func New(ctx context.Context, cfg Config) (*DocumentStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	table, err := storage.ValidateTable(cfg.Table)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &DocumentStore{db: db, table: table}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DocumentStore) migrate(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_title TEXT NOT NULL,
			document_type TEXT NOT NULL,
			year INTEGER,
			quarter INTEGER,
			pdf_url TEXT NOT NULL UNIQUE
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_period ON %s(year, quarter)`, s.table, s.table),
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Create inserts a row; a duplicate pdf_url maps to storage.ErrConflict.
func (s *DocumentStore) Create(ctx context.Context, doc document.NewDocument) (document.Document, error) {
	if err := doc.Validate(); err != nil {
		return document.Document{}, fmt.Errorf("validate document: %w", err)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (document_title, document_type, year, quarter, pdf_url) VALUES (?, ?, ?, ?, ?)`,
		s.table)
	res, err := s.db.ExecContext(ctx, query, doc.Title, string(doc.Type), doc.Year, doc.Quarter, doc.URL)
	if err != nil {
		if isUniqueViolation(err) {
			return document.Document{}, storage.ErrConflict
		}
		return document.Document{}, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return document.Document{}, fmt.Errorf("read inserted id: %w", err)
	}
	return doc.WithID(id), nil
}

// Read runs the filtered select.
func (s *DocumentStore) Read(ctx context.Context, filter storage.Filter) ([]document.Document, error) {
	query, args := storage.BuildReadQuery(s.table, filter, storage.QuestionPlaceholder)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []document.Document
	for rows.Next() {
		var (
			doc     document.Document
			docType string
			year    sql.NullInt64
			quarter sql.NullInt64
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &docType, &year, &quarter, &doc.URL); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Type = document.Type(docType)
		doc.Year = nullableInt(year)
		doc.Quarter = nullableInt(quarter)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, storage.ErrNotFound
	}
	return docs, nil
}

// Ping checks the database handle.
func (s *DocumentStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *DocumentStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// dsn appends the WAL and busy-timeout options, keeping any query the path already has.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_journal_mode=WAL&_busy_timeout=5000"
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
