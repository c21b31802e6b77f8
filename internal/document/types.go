// Package document defines the disclosure document record and the heuristics
// that turn a free-text link title into structured fields.
package document

import (
	"fmt"
	"strings"
)

// Type is the coarse category inferred from a document title.
type Type string

// Document types recognised by the classifier.
const (
	TypeQnA                Type = "qna"
	TypeEarningsRelease    Type = "earnings_release"
	TypeFinancialStatement Type = "financial_statement"
	TypeOthers             Type = "others"
)

// Valid reports whether t belongs to the closed set of document types.
func (t Type) Valid() bool {
	switch t {
	case TypeQnA, TypeEarningsRelease, TypeFinancialStatement, TypeOthers:
		return true
	default:
		return false
	}
}

// Candidate is a (title, url) pair lifted from the page before classification.
type Candidate struct {
	Title string
	URL   string
}

// Document is a persisted disclosure record. ID is assigned by storage.
type Document struct {
	ID      int64  `json:"id"`
	Title   string `json:"document_title"`
	Type    Type   `json:"document_type"`
	Year    *int   `json:"year"`
	Quarter *int   `json:"quarter"`
	URL     string `json:"pdf_url"`
}

// NewDocument is the create payload; it carries everything but the ID.
type NewDocument struct {
	Title   string `json:"document_title"`
	Type    Type   `json:"document_type"`
	Year    *int   `json:"year,omitempty"`
	Quarter *int   `json:"quarter,omitempty"`
	URL     string `json:"pdf_url"`
}

// Validate enforces the field constraints shared by the API and the stores.
func (d NewDocument) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("document_title is required")
	}
	if strings.TrimSpace(d.URL) == "" {
		return fmt.Errorf("pdf_url is required")
	}
	if !d.Type.Valid() {
		return fmt.Errorf("document_type %q is not supported", d.Type)
	}
	if d.Quarter != nil && (*d.Quarter < 1 || *d.Quarter > 4) {
		return fmt.Errorf("quarter must be between 1 and 4, got %d", *d.Quarter)
	}
	return nil
}

// WithID returns the stored form of d.
func (d NewDocument) WithID(id int64) Document {
	return Document{
		ID:      id,
		Title:   d.Title,
		Type:    d.Type,
		Year:    d.Year,
		Quarter: d.Quarter,
		URL:     d.URL,
	}
}

// IntPtr is a small helper for the optional integer fields.
func IntPtr(v int) *int {
	return &v
}
