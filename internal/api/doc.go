// Package api hosts the storage HTTP server for disclosure documents.
// Routes:
//   - GET / for a basic status message.
//   - POST /create to store a document; 409 when the pdf_url already exists.
//   - GET /read to list documents filtered by document_type, year and quarter.
//   - GET /healthz and /readyz for probes, GET /metrics for Prometheus scraping.
package api
