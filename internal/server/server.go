package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazz-dev/dataprobe/internal/storage"
)

// ResultStore defines the storage queries the server needs.
type ResultStore interface {
	AllLatest(ctx context.Context) ([]storage.StoredResult, error)
	LatestResult(ctx context.Context, checkID string) (*storage.StoredResult, error)
	History(ctx context.Context, checkID string, limit, offset int) ([]storage.StoredResult, int, error)
	PassRate(ctx context.Context, checkID string, last int) (float64, error)
}

// Server serves stored check results over a read-only JSON API.
type Server struct {
	store  ResultStore
	router chi.Router
	logger *slog.Logger
}

// New creates a new Server and registers all routes.
func New(store ResultStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:  store,
		router: chi.NewRouter(),
		logger: logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/checks", s.handleListChecks)
	r.Get("/api/checks/{id}", s.handleGetCheck)
	r.Get("/api/checks/{id}/history", s.handleGetCheckHistory)
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type checkSummary struct {
	storage.StoredResult
	PassRatePct float64 `json:"pass_rate_percent"`
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	latest, err := s.store.AllLatest(r.Context())
	if err != nil {
		s.logger.Error("AllLatest", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	summaries := make([]checkSummary, 0, len(latest))
	for _, res := range latest {
		pct, _ := s.store.PassRate(r.Context(), res.CheckID, 100)
		summaries = append(summaries, checkSummary{
			StoredResult: res,
			PassRatePct:  pct,
		})
	}

	writeJSON(w, http.StatusOK, summaries)
}

type checkDetailResponse struct {
	checkSummary
	RecentResults []storage.StoredResult `json:"recent_results"`
}

func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	latest, err := s.store.LatestResult(r.Context(), id)
	if err != nil {
		s.logger.Error("LatestResult", "check", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if latest == nil {
		writeError(w, http.StatusNotFound, "check not found")
		return
	}

	history, _, err := s.store.History(r.Context(), id, 10, 0)
	if err != nil {
		s.logger.Error("History", "check", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	pct, _ := s.store.PassRate(r.Context(), id, 100)

	writeJSON(w, http.StatusOK, checkDetailResponse{
		checkSummary: checkSummary{
			StoredResult: *latest,
			PassRatePct:  pct,
		},
		RecentResults: history,
	})
}

type historyResponse struct {
	Results []storage.StoredResult `json:"results"`
	Total   int                    `json:"total"`
}

func (s *Server) handleGetCheckHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	latest, err := s.store.LatestResult(r.Context(), id)
	if err != nil {
		s.logger.Error("LatestResult", "check", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if latest == nil {
		writeError(w, http.StatusNotFound, "check not found")
		return
	}

	const maxLimit = 1000

	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		offset = n
	}

	results, total, err := s.store.History(r.Context(), id, limit, offset)
	if err != nil {
		s.logger.Error("History", "check", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Results: results,
		Total:   total,
	})
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
