package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/campusbot/internal/errs"
	"github.com/hyperjump/campusbot/internal/matcher"
	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/storage"
)

const defaultPatternLimit = 50

func (s *Server) handleListKnowledge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter models.KnowledgeFilter
	if v := q.Get("category"); v != "" {
		cat, err := models.ParseCategory(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Category = &cat
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "active must be true or false")
			return
		}
		filter.Active = &active
	}
	if v := q.Get("provenance"); v != "" {
		p := models.Provenance(v)
		if p != models.ProvenanceManual && p != models.ProvenanceLearned {
			s.respondError(w, http.StatusBadRequest, "provenance must be manual or learned")
			return
		}
		filter.Provenance = &p
	}
	filter.SourceRef = q.Get("source")

	entries, err := s.deps.Knowledge.List(r.Context(), filter)
	if err != nil {
		s.respondFailure(w, "list knowledge failed", err)
		return
	}
	if entries == nil {
		entries = []*models.KnowledgeEntry{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "total": len(entries)})
}

func (s *Server) handleAddKnowledge(w http.ResponseWriter, r *http.Request) {
	var input models.KnowledgeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("add knowledge request", zap.String("id", input.ID), zap.String("category", input.Category))
	id, err := s.deps.Knowledge.Add(r.Context(), input)
	if err != nil {
		s.respondFailure(w, "add knowledge failed", err)
		return
	}
	if id == "" {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": id, "status": "created"})
}

func (s *Server) handleGetKnowledge(w http.ResponseWriter, r *http.Request) {
	entry, err := s.deps.Knowledge.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, "get knowledge failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleUpdateKnowledge(w http.ResponseWriter, r *http.Request) {
	var update models.KnowledgeUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entry, err := s.deps.Knowledge.Update(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		s.respondFailure(w, "update knowledge failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteKnowledge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete knowledge request", zap.String("id", id))
	if err := s.deps.Knowledge.Delete(r.Context(), id); err != nil {
		s.respondFailure(w, "delete knowledge failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSearchKnowledge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.KnowledgeSearchQuery{Query: q.Get("q"), Category: q.Get("category")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		query.Limit = n
	}
	query.Fuzzy, _ = strconv.ParseBool(q.Get("fuzzy"))
	resp, err := s.deps.Knowledge.Search(r.Context(), query)
	if err != nil {
		s.respondFailure(w, "search knowledge failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMatchKnowledge(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	matches, err := s.deps.Knowledge.Match(r.Context(), req)
	if err != nil {
		s.respondFailure(w, "match knowledge failed", err)
		return
	}
	if matches == nil {
		matches = []matcher.Match{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": req.Query, "matches": matches})
}

func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultPatternLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		limit = n
	}
	patterns, err := s.deps.Storage.ListPatterns(r.Context(), q.Get("type"), limit)
	if err != nil {
		s.respondFailure(w, "list patterns failed", errs.Store("server.ListPatterns", err))
		return
	}
	if patterns == nil {
		patterns = []*models.LearningPattern{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"patterns": patterns})
}

func (s *Server) handleDetectPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := s.deps.Tracker.DetectPatterns(r.Context())
	if err != nil {
		s.respondFailure(w, "detect patterns failed", err)
		return
	}
	if patterns == nil {
		patterns = []*models.LearningPattern{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"patterns": patterns})
}

func (s *Server) handleSeedDirectories(w http.ResponseWriter, r *http.Request) {
	if s.deps.Seed == nil {
		s.respondError(w, http.StatusNotImplemented, "seed watching not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.deps.Seed.Directories()})
}

func (s *Server) handleSeedSync(w http.ResponseWriter, r *http.Request) {
	if s.deps.Seed == nil {
		s.respondError(w, http.StatusNotImplemented, "seed watching not enabled")
		return
	}
	go s.deps.Seed.SyncExisting()
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "syncing"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Storage.Stats(r.Context())
	if err != nil {
		s.respondFailure(w, "stats failed", errs.Store("server.Stats", err))
		return
	}
	resp := map[string]interface{}{"stats": stats}
	if len(s.diskPaths) > 0 {
		if n, err := storage.DiskUsageBytes(s.diskPaths...); err == nil {
			resp["disk_usage_bytes"] = n
		}
	}
	if s.deps.Seed != nil {
		resp["seed_directories"] = s.deps.Seed.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
