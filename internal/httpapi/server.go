package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/serverwatch/internal/domain"
	apimw "github.com/hamed0406/serverwatch/internal/httpapi/middleware"
	"github.com/hamed0406/serverwatch/internal/probe"
	"github.com/hamed0406/serverwatch/internal/repo"
)

// Querier is the part of the query client the API exposes.
type Querier interface {
	QueryOnce(ctx context.Context, host string, port int) (domain.StatusRecord, error)
	Invalidate(ctx context.Context, id domain.TargetID) error
}

type Server struct {
	Logger  *zap.Logger
	Targets repo.TargetRegistry
	Status  repo.StatusReader
	Query   Querier
	Scope   string
}

func NewServer(l *zap.Logger, targets repo.TargetRegistry, status repo.StatusReader, q Querier, scope string) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Targets: targets, Status: status, Query: q, Scope: scope}
}

// Router wires public read routes and admin diagnostic routes, each group with
// its own key set and per-IP rate limit. Empty corsOrigins allows any origin.
func (s *Server) Router(keys apimw.Keys, corsOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	if len(corsOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(pubRPM, pubBurst))
		r.Use(apimw.RequireAny(keys))
		r.Get("/api/targets", s.handleListTargets)
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/targets/{id}/history", s.handleHistory)
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(admRPM, admBurst))
		r.Use(apimw.RequireAdmin(keys))
		r.Get("/api/query", s.handleQuery)
		r.Post("/api/targets/{id}/invalidate", s.handleInvalidate)
	})

	return r
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.ListActive(r.Context(), s.Scope)
	if err != nil {
		s.Logger.Warn("api_list_targets_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if ts == nil {
		ts = []domain.Target{}
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Status.Latest(r.Context())
	if err != nil {
		s.Logger.Warn("api_status_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "status error")
		return
	}
	if rows == nil {
		rows = []domain.CurrentStatus{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	rows, err := s.Status.History(r.Context(), id, limit)
	if err != nil {
		s.Logger.Warn("api_history_failed", zap.String("target_id", string(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "history error")
		return
	}
	if rows == nil {
		rows = []domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type queryResponse struct {
	Addr   string               `json:"addr"`
	Record *domain.StatusRecord `json:"record,omitempty"`
	Error  string               `json:"error,omitempty"`
	DNS    string               `json:"dns,omitempty"`
}

// handleQuery runs a one-off probe. It never touches the cache, the chat
// channel or the database.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	host := strings.TrimSpace(r.URL.Query().Get("host"))
	port, err := strconv.Atoi(r.URL.Query().Get("port"))
	if host == "" || err != nil {
		writeError(w, http.StatusBadRequest, "host and numeric port are required")
		return
	}

	rec, err := s.Query.QueryOnce(r.Context(), host, port)
	resp := queryResponse{Addr: domain.Target{Host: host, Port: port}.Addr()}
	var (
		ce *domain.ConfigError
		qe *probe.QueryError
	)
	switch {
	case err == nil:
		resp.Record = &rec
		writeJSON(w, http.StatusOK, resp)
	case errors.As(err, &ce):
		writeError(w, http.StatusBadRequest, ce.Error())
	case errors.As(err, &qe):
		resp.Error, resp.DNS = qe.Summary, qe.DNSClass
		writeJSON(w, http.StatusBadGateway, resp)
	default:
		resp.Error = probe.Summarize(err)
		writeJSON(w, http.StatusBadGateway, resp)
	}

	s.Logger.Info("api_query",
		zap.String("addr", resp.Addr),
		zap.Bool("online", err == nil && rec.Online()),
		zap.String("error", resp.Error),
	)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	id := domain.TargetID(chi.URLParam(r, "id"))
	if err := s.Query.Invalidate(r.Context(), id); err != nil {
		s.Logger.Warn("api_invalidate_failed", zap.String("target_id", string(id)), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "cache unavailable")
		return
	}
	s.Logger.Info("api_invalidated", zap.String("target_id", string(id)))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
