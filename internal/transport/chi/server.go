// Package chi is the HTTP surface: product search, admin reindex, and
// health endpoints on a chi router.
package chi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/opalgrove/catdex/internal/domain"
	"github.com/opalgrove/catdex/internal/domain/search/request"
	healthuc "github.com/opalgrove/catdex/internal/usecase/health"
	indexinguc "github.com/opalgrove/catdex/internal/usecase/indexing"
	searchuc "github.com/opalgrove/catdex/internal/usecase/search"
)

// maxImageBytes caps the decoded query image payload.
const maxImageBytes = 8 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server hosts the HTTP API.
type Server struct {
	search        *searchuc.Service
	indexing      *indexinguc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	reindexing    atomic.Bool
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	indexing *indexinguc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:   search,
		indexing: indexing,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrUpstreamUnavailable, http.StatusServiceUnavailable, codeUpstreamUnavailable),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codeUpstreamUnavailable),
		sentinelHandler(domain.ErrIndexingFailure, http.StatusInternalServerError, codeIndexingFailed),
	}
	return s
}

// Routes registers all endpoints on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/store/search", s.handleSearch)
	r.Post("/admin/reindex", s.handleReindex)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
}

// handleSearch handles POST /store/search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	var image []byte
	if req.Image != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "image must be base64-encoded")
			return
		}
		if len(decoded) > maxImageBytes {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "image too large")
			return
		}
		image = decoded
	}

	searchReq, err := request.New(
		req.Query, image, req.Size,
		req.KeywordWeight, req.SemanticWeight, req.VisualWeight,
		req.RegionID,
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp, err := s.search.Search(r.Context(), &searchReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseFromUC(resp))
}

// handleReindex handles POST /admin/reindex. Runs synchronously and
// rejects overlapping runs, a rebuild drops the live index first.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	if !s.reindexing.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, codeReindexInProgress, "a reindex is already running")
		return
	}
	defer s.reindexing.Store(false)

	summary, err := s.indexing.Reindex(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reindexResponseFromUC(summary))
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponseFromUC(report))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// safeDomainMessage returns the full error text only for known domain
// errors; everything else is reported as a generic internal error.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrNotFound,
		domain.ErrUpstreamUnavailable,
		domain.ErrStoreUnavailable,
		domain.ErrIndexingFailure,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
