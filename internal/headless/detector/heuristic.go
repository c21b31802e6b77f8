// Package detector decides when a statically fetched listing page must be
// re-fetched with a headless browser.
package detector

import (
	"bytes"
	"strings"
)

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

// pdfLinkMarkers are cheap signs that the document list is already in the HTML.
var pdfLinkMarkers = [][]byte{
	[]byte(".pdf\""),
	[]byte(".pdf'"),
}

// ShouldPromote reports whether body looks like it needs script execution
// before its PDF links are visible.
func (h *Heuristic) ShouldPromote(body []byte) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		return true
	}
	if hasPDFLinks(body) {
		return false
	}
	if len(body) < h.BodyLengthThreshold {
		return true
	}
	if scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

func hasPDFLinks(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, marker := range pdfLinkMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	coverage := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		tagEnd := strings.IndexByte(lower[start:], '>')
		if tagEnd == -1 {
			coverage += total - start
			break
		}
		contentStart := start + tagEnd + 1
		end := strings.Index(lower[contentStart:], closeTag)
		next := total
		if end != -1 {
			next = contentStart + end + len(closeTag)
		}
		coverage += next - start
		pos = next
	}
	return coverage*100/total >= 25
}
