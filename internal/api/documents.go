package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/document"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/publisher"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage"
)

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	var req document.NewDocument
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.URL = strings.TrimSpace(req.URL)
	if err := req.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := s.repo.Create(r.Context(), req)
	switch {
	case errors.Is(err, storage.ErrConflict):
		s.writeError(w, http.StatusConflict, fmt.Sprintf("Document with URL '%s' already exists.", req.URL))
		return
	case err != nil:
		s.logger.Error("create document failed", zap.String("pdf_url", req.URL), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store document")
		return
	}

	s.publishCreated(r, doc)
	s.writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) publishCreated(r *http.Request, doc document.Document) {
	if s.publisher == nil {
		return
	}
	msgID, err := s.publisher.Publish(r.Context(), publisher.NewDocumentCreated(doc, s.now()))
	if err != nil {
		s.logger.Warn("publish document.created failed", zap.Int64("id", doc.ID), zap.Error(err))
		return
	}
	s.logger.Debug("published document.created", zap.Int64("id", doc.ID), zap.String("message_id", msgID))
}

func (s *Server) readDocuments(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	docs, err := s.repo.Read(r.Context(), filter)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "No documents found matching the criteria.")
		return
	case err != nil:
		s.logger.Error("read documents failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to read documents")
		return
	}
	s.writeJSON(w, http.StatusOK, docs)
}

func parseFilter(r *http.Request) (storage.Filter, error) {
	q := r.URL.Query()
	var f storage.Filter
	if raw := strings.TrimSpace(q.Get("document_type")); raw != "" {
		t := document.Type(raw)
		f.Type = &t
	}
	var err error
	if f.Year, err = optionalFilter(q.Get("year"), "year"); err != nil {
		return storage.Filter{}, err
	}
	if f.Quarter, err = optionalFilter(q.Get("quarter"), "quarter"); err != nil {
		return storage.Filter{}, err
	}
	limit, err := optionalInt(q.Get("limit"), "limit")
	if err != nil {
		return storage.Filter{}, err
	}
	if limit != nil {
		f.Limit = *limit
	}
	return f, nil
}

// optionalFilter is optionalInt where 0 means "no filter".
func optionalFilter(raw, name string) (*int, error) {
	v, err := optionalInt(raw, name)
	if err != nil || v == nil || *v == 0 {
		return nil, err
	}
	return v, nil
}

func optionalInt(raw, name string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &v, nil
}
