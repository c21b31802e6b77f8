// Package memory provides an in-memory document repository for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/document"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage"
)

// DocumentStore keeps documents in insertion order, unique on URL.
type DocumentStore struct {
	mu     sync.RWMutex
	nextID int64
	docs   []document.Document
	byURL  map[string]int
}

// NewDocumentStore constructs an empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		nextID: 1,
		byURL:  make(map[string]int),
	}
}

// Create stores doc unless its URL is already present.
func (s *DocumentStore) Create(_ context.Context, doc document.NewDocument) (document.Document, error) {
	if err := doc.Validate(); err != nil {
		return document.Document{}, fmt.Errorf("validate document: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byURL[doc.URL]; exists {
		return document.Document{}, storage.ErrConflict
	}
	stored := doc.WithID(s.nextID)
	s.nextID++
	s.byURL[doc.URL] = len(s.docs)
	s.docs = append(s.docs, stored)
	return stored, nil
}

// Read returns up to filter.Limit matching documents.
func (s *DocumentStore) Read(_ context.Context, filter storage.Filter) ([]document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := filter.EffectiveLimit()
	out := make([]document.Document, 0)
	for _, doc := range s.docs {
		if len(out) >= limit {
			break
		}
		if filter.Matches(doc) {
			out = append(out, doc)
		}
	}
	if len(out) == 0 {
		return nil, storage.ErrNotFound
	}
	return out, nil
}

// Len reports the number of stored documents.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Ping always succeeds.
func (s *DocumentStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *DocumentStore) Close() error { return nil }
