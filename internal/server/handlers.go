package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/fukabori/internal/chunker"
	"github.com/hyperjump/fukabori/internal/keyword"
	"github.com/hyperjump/fukabori/internal/models"
	"github.com/hyperjump/fukabori/internal/storage"
)

type searchRequest struct {
	Query     string   `json:"query"`
	Limit     int      `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type searchResponse struct {
	Query   string                 `json:"query"`
	Results []*models.SearchResult `json:"results"`
	TookMS  int64                  `json:"took_ms"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	limit := s.clampLimit(req.Limit)
	threshold := s.config.Search.ThresholdOrDefault()
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	start := time.Now()
	results, err := s.pipeline.Search(r.Context(), req.Query, limit, threshold)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	took := time.Since(start)
	s.recordHistory(r, req.Query, "semantic", len(results), took)
	s.respondJSON(w, http.StatusOK, searchResponse{
		Query:   req.Query,
		Results: results,
		TookMS:  took.Milliseconds(),
	})
}

type matchRequest struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Regexp bool   `json:"regexp,omitempty"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if s.matcher == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword matching not enabled")
		return
	}
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	limit := s.clampLimit(req.Limit)

	start := time.Now()
	var results []*keyword.MatchResult
	var err error
	if req.Regexp {
		results, err = s.matcher.MatchRegexp(r.Context(), req.Query, limit)
	} else {
		results, err = s.matcher.Match(r.Context(), req.Query, limit)
	}
	if err != nil {
		s.logger.Error("match failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	took := time.Since(start)
	s.recordHistory(r, req.Query, "match", len(results), took)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   req.Query,
		"results": results,
		"took_ms": took.Milliseconds(),
	})
}

type ingestRequest struct {
	Documents []models.Document `json:"documents"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		s.respondError(w, http.StatusBadRequest, "documents are required")
		return
	}

	policy := chunker.Policy(s.config.Chunking.Policy)
	params := chunker.Params{
		ChunkSize:     s.config.Chunking.ChunkSize,
		Overlap:       s.config.Chunking.Overlap,
		MaxTokens:     s.config.Chunking.MaxTokens,
		OverlapTokens: s.config.Chunking.OverlapTokens,
		MinLength:     s.config.Chunking.MinLength,
	}
	chunks, err := s.pipeline.AddDocuments(r.Context(), req.Documents, policy, params)
	if err != nil {
		s.logger.Error("ingest failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.matcher != nil {
		texts := make(map[string]string, len(req.Documents))
		for _, doc := range req.Documents {
			texts[uuid.NewString()] = doc.Text
		}
		if err := s.matcher.IndexBatch(r.Context(), texts); err != nil {
			s.logger.Warn("keyword indexing failed", zap.Error(err))
		}
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"documents": len(req.Documents),
		"chunks":    chunks,
		"status":    "indexed",
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondError(w, http.StatusNotImplemented, "history not enabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	logs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("history query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if logs == nil {
		logs = []*storage.SearchLog{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"history": logs})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"chunks":  s.pipeline.Size(),
		"variant": s.pipeline.Variant(),
		"config": map[string]interface{}{
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"chunk_policy":         s.config.Chunking.Policy,
			"snapshot_path":        s.config.Storage.SnapshotPath,
		},
	}
	if s.matcher != nil {
		if n, err := s.matcher.DocCount(); err == nil {
			resp["keyword_documents"] = n
		}
	}
	if s.history != nil {
		if n, err := s.history.Count(r.Context()); err == nil {
			resp["history_entries"] = n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type snapshotRequest struct {
	Dir string `json:"dir,omitempty"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	dir := req.Dir
	if dir == "" {
		dir = s.config.Storage.SnapshotPath
	}
	if err := s.pipeline.Save(dir); err != nil {
		s.logger.Error("snapshot failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"dir":     dir,
		"entries": s.pipeline.Size(),
		"status":  "saved",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// clampLimit applies the configured default and maximum result limits.
func (s *Server) clampLimit(limit int) int {
	if limit <= 0 {
		limit = s.config.Search.DefaultLimit
	}
	if max := s.config.Search.MaxLimit; max > 0 && limit > max {
		limit = max
	}
	return limit
}

// recordHistory logs the query, never failing the request over it.
func (s *Server) recordHistory(r *http.Request, query, mode string, results int, took time.Duration) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(r.Context(), query, mode, results, took); err != nil {
		s.logger.Warn("failed to record search history", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
