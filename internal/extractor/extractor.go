// Package extractor lifts document candidates out of a rendered investor
// relations page.
package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/document"
)

// PDFLinkSelector matches every anchor whose href ends in ".pdf".
const PDFLinkSelector = `a[href$=".pdf"]`

// Extractor resolves PDF links against a base domain.
type Extractor struct {
	base *url.URL
}

// New builds an Extractor. baseDomain must be an absolute URL such as
// "https://www.example.com".
func New(baseDomain string) (*Extractor, error) {
	base, err := url.Parse(strings.TrimSpace(baseDomain))
	if err != nil {
		return nil, fmt.Errorf("parse base domain: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base domain %q must be absolute", baseDomain)
	}
	return &Extractor{base: base}, nil
}

// Extract returns one candidate per PDF link that carries a non-empty title.
// A page without PDF links yields an empty slice and no error.
func (e *Extractor) Extract(html []byte) ([]document.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	candidates := make([]document.Candidate, 0)
	doc.Find(PDFLinkSelector).Each(func(_ int, link *goquery.Selection) {
		title := linkTitle(link)
		if title == "" {
			return
		}
		href, _ := link.Attr("href")
		abs, ok := e.resolve(href)
		if !ok {
			return
		}
		candidates = append(candidates, document.Candidate{Title: title, URL: abs})
	})
	return candidates, nil
}

// linkTitle prefers the text of a nested span over the anchor's own text.
func linkTitle(link *goquery.Selection) string {
	if span := link.Find("span").First(); span.Length() > 0 {
		return strings.TrimSpace(span.Text())
	}
	return strings.TrimSpace(link.Text())
}

func (e *Extractor) resolve(href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	return e.base.ResolveReference(ref).String(), true
}
