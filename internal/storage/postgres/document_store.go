// Package postgres provides the Postgres-backed document repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/document"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage"
)

const uniqueViolation = "23505"

// Config controls the Postgres connection pool used for document rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// DocumentStore writes and reads document rows in Postgres.
type DocumentStore struct {
	pool  pool
	table string
}

// New creates a pooled DocumentStore and ensures the table exists.
func New(ctx context.Context, cfg Config) (*DocumentStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := storage.ValidateTable(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &DocumentStore{pool: p, table: table}
	if err := s.Migrate(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*DocumentStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := storage.ValidateTable(table)
	if err != nil {
		return nil, err
	}
	return &DocumentStore{pool: p, table: table}, nil
}

// Migrate creates the documents table when missing.
func (s *DocumentStore) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	document_title TEXT NOT NULL,
	document_type TEXT NOT NULL,
	year INTEGER,
	quarter INTEGER,
	pdf_url TEXT NOT NULL UNIQUE
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

// Create inserts a row and returns it with the generated id.
func (s *DocumentStore) Create(ctx context.Context, doc document.NewDocument) (document.Document, error) {
	if err := doc.Validate(); err != nil {
		return document.Document{}, fmt.Errorf("validate document: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (document_title, document_type, year, quarter, pdf_url)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`, s.table)

	var id int64
	err := s.pool.QueryRow(ctx, query, doc.Title, string(doc.Type), doc.Year, doc.Quarter, doc.URL).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return document.Document{}, storage.ErrConflict
		}
		return document.Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc.WithID(id), nil
}

// Read returns rows matching every set filter field.
func (s *DocumentStore) Read(ctx context.Context, filter storage.Filter) ([]document.Document, error) {
	query, args := storage.BuildReadQuery(s.table, filter, storage.DollarPlaceholder)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []document.Document
	for rows.Next() {
		var (
			doc     document.Document
			docType string
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &docType, &doc.Year, &doc.Quarter, &doc.URL); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Type = document.Type(docType)
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

// Ping verifies connectivity.
func (s *DocumentStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *DocumentStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
