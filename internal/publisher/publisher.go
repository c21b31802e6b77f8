// Package publisher fans out notifications when new documents are stored.
package publisher

import (
	"context"
	"time"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/document"
)

// KindDocumentCreated is emitted after a row is inserted.
const KindDocumentCreated = "document.created"

// Event is the payload published for each stored document.
type Event struct {
	Kind     string            `json:"kind"`
	Document document.Document `json:"document"`
	At       time.Time         `json:"at"`
}

// Publisher pushes events to Pub/Sub (or similar) and returns a message id.
type Publisher interface {
	Publish(ctx context.Context, evt Event) (string, error)
}

// NewDocumentCreated builds the event for a freshly stored document.
func NewDocumentCreated(doc document.Document, at time.Time) Event {
	return Event{Kind: KindDocumentCreated, Document: doc, At: at.UTC()}
}
