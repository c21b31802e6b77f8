// Package storage defines the persistence boundary for disclosure documents.
// Backends live in subpackages (postgres, sqlite, memory) so the API server
// can be pointed at whichever relational store is available.
package storage

import (
	"context"
	"errors"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/document"
)

// DefaultReadLimit caps Read results when the caller gives no positive limit.
const DefaultReadLimit = 100

var (
	// ErrConflict is returned by Create when the pdf_url already exists.
	ErrConflict = errors.New("document already exists")
	// ErrNotFound is returned by Read when no row matches the filter.
	ErrNotFound = errors.New("no documents found")
)

// Filter narrows Read results. Nil fields are ignored; set fields are ANDed.
type Filter struct {
	Type    *document.Type
	Year    *int
	Quarter *int
	Limit   int
}

// EffectiveLimit returns the limit to apply for this filter.
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultReadLimit
	}
	return f.Limit
}

// Matches reports whether doc satisfies every set field of the filter.
func (f Filter) Matches(doc document.Document) bool {
	if f.Type != nil && doc.Type != *f.Type {
		return false
	}
	if f.Year != nil && (doc.Year == nil || *doc.Year != *f.Year) {
		return false
	}
	if f.Quarter != nil && (doc.Quarter == nil || *doc.Quarter != *f.Quarter) {
		return false
	}
	return true
}

// Repository is the single-table document store.
type Repository interface {
	// Create persists doc and returns it with its assigned ID, or ErrConflict.
	Create(ctx context.Context, doc document.NewDocument) (document.Document, error)
	// Read returns matching documents in storage order, or ErrNotFound.
	Read(ctx context.Context, filter Filter) ([]document.Document, error)
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}
