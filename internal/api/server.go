// Package api serves pipeline outputs over HTTP: learned segments, cohort
// benchmarks, cluster assignments, and on-demand directive generation.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/brightloop/campaign-insights/internal/dataset"
	"github.com/brightloop/campaign-insights/internal/directive"
	"github.com/brightloop/campaign-insights/internal/pkg/logger"
	"github.com/brightloop/campaign-insights/internal/predictive"
	"github.com/brightloop/campaign-insights/internal/repository/postgres"
)

// SegmentStore is the persistence surface the API reads and writes.
type SegmentStore interface {
	GetSegment(ctx context.Context, segmentID int) (*dataset.Segment, error)
	ListSegments(ctx context.Context) ([]dataset.Segment, error)
	InsertDirective(ctx context.Context, segmentID int, d directive.Directive) error
	ListBenchmarks(ctx context.Context) ([]dataset.Benchmark, error)
}

// DirectiveCache is an optional read-through cache for generated directives.
type DirectiveCache interface {
	Get(ctx context.Context, segmentID int) (*directive.Directive, error)
	Set(ctx context.Context, segmentID int, d directive.Directive) error
}

// ClusterSource supplies the latest behavioral cluster assignments.
type ClusterSource interface {
	Assignments() ([]predictive.Assignment, error)
}

// Server wires the HTTP routes to the stores.
type Server struct {
	store     SegmentStore
	cache     DirectiveCache
	clusters  ClusterSource
	generator *directive.Generator
	log       *logger.Logger
}

// NewServer creates the API server. cache and clusters may be nil; the
// corresponding routes degrade rather than fail.
func NewServer(store SegmentStore, cache DirectiveCache, clusters ClusterSource, generator *directive.Generator) *Server {
	return &Server{
		store:     store,
		cache:     cache,
		clusters:  clusters,
		generator: generator,
		log:       logger.WithStage("api"),
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Route("/segments", func(r chi.Router) {
			r.Get("/", s.handleListSegments)
			r.Get("/{segmentID}", s.handleGetSegment)
			r.Post("/{segmentID}/directive", s.handleGenerateDirective)
		})
		r.Get("/metrics/benchmarks", s.handleListBenchmarks)
		r.Get("/clusters", s.handleListClusters)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := s.store.ListSegments(r.Context())
	if err != nil {
		s.serverError(w, "list segments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"segments": segments, "count": len(segments)})
}

func (s *Server) handleGetSegment(w http.ResponseWriter, r *http.Request) {
	segmentID, ok := s.segmentID(w, r)
	if !ok {
		return
	}

	segment, err := s.store.GetSegment(r.Context(), segmentID)
	if errors.Is(err, postgres.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("segment %d not found", segmentID))
		return
	}
	if err != nil {
		s.serverError(w, "get segment", err)
		return
	}
	writeJSON(w, http.StatusOK, segment)
}

func (s *Server) handleGenerateDirective(w http.ResponseWriter, r *http.Request) {
	segmentID, ok := s.segmentID(w, r)
	if !ok {
		return
	}

	var req struct {
		IsEmailCampaign bool `json:"is_email_campaign"`
		SkipCache       bool `json:"skip_cache"`

		// An inline record generates against the supplied attributes
		// instead of the stored segment. It is validated per record and
		// neither cached nor persisted.
		Segment *directive.SegmentInput `json:"segment"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	if req.Segment != nil {
		req.Segment.SegmentID = segmentID
		segment, verr := req.Segment.Validate()
		if verr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": verr.Reason, "fields": verr.Fields,
			})
			return
		}
		d, err := s.generator.Generate(segment, req.IsEmailCampaign)
		if err != nil {
			s.serverError(w, "generate directive", err)
			return
		}
		writeJSON(w, http.StatusOK, d)
		return
	}

	// Cached directives only cover the default, non-email case.
	cacheable := s.cache != nil && !req.IsEmailCampaign && !req.SkipCache
	if cacheable {
		cached, err := s.cache.Get(r.Context(), segmentID)
		if err != nil {
			s.log.Warn("directive cache read failed", "segment_id", segmentID, "error", err.Error())
		} else if cached != nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	segment, err := s.store.GetSegment(r.Context(), segmentID)
	if errors.Is(err, postgres.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("segment %d not found", segmentID))
		return
	}
	if err != nil {
		s.serverError(w, "get segment", err)
		return
	}

	d, err := s.generator.Generate(*segment, req.IsEmailCampaign)
	if err != nil {
		s.serverError(w, "generate directive", err)
		return
	}

	if err := s.store.InsertDirective(r.Context(), segmentID, d); err != nil {
		s.serverError(w, "store directive", err)
		return
	}
	if cacheable {
		if err := s.cache.Set(r.Context(), segmentID, d); err != nil {
			s.log.Warn("directive cache write failed", "segment_id", segmentID, "error", err.Error())
		}
	}

	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListBenchmarks(w http.ResponseWriter, r *http.Request) {
	benchmarks, err := s.store.ListBenchmarks(r.Context())
	if err != nil {
		s.serverError(w, "list benchmarks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"benchmarks": benchmarks, "count": len(benchmarks)})
}

func (s *Server) handleListClusters(w http.ResponseWriter, r *http.Request) {
	if s.clusters == nil {
		writeError(w, http.StatusNotFound, "no cluster assignments available")
		return
	}
	assignments, err := s.clusters.Assignments()
	if err != nil {
		s.serverError(w, "load clusters", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clusters": assignments, "count": len(assignments)})
}

func (s *Server) segmentID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "segmentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "segment id must be an integer")
		return 0, false
	}
	return id, true
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.log.Error(op+" failed", "error", err.Error())
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
