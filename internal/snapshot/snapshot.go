// Package snapshot archives the rendered HTML of each crawl so that an empty
// extraction can be diagnosed after the fact.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentType is stored alongside each snapshot.
const ContentType = "text/html; charset=utf-8"

// Store writes an object and returns its URI.
type Store interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Archiver names and writes page snapshots.
type Archiver struct {
	store  Store
	prefix string
	now    func() time.Time
}

// NewArchiver wraps store. An empty prefix defaults to "snapshots".
func NewArchiver(store Store, prefix string) *Archiver {
	if strings.TrimSpace(prefix) == "" {
		prefix = "snapshots"
	}
	return &Archiver{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Archive stores html for the crawled page and returns the object URI.
func (a *Archiver) Archive(ctx context.Context, pageURL string, html []byte) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate snapshot id: %w", err)
	}
	name := ObjectName(a.prefix, pageURL, a.now(), id.String())
	uri, err := a.store.PutObject(ctx, name, ContentType, bytes.Clone(html))
	if err != nil {
		return "", fmt.Errorf("put snapshot: %w", err)
	}
	return uri, nil
}

// ObjectName lays snapshots out as <prefix>/<host>/<date>/<id>.html.
func ObjectName(prefix, pageURL string, at time.Time, id string) string {
	host := "unknown"
	if u, err := url.Parse(pageURL); err == nil && u.Hostname() != "" {
		host = strings.ToLower(u.Hostname())
	}
	return path.Join(prefix, host, at.Format("2006-01-02"), id+".html")
}
