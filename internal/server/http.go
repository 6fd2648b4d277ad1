package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/database"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/engine"
)

// apiTimeout bounds JSON API requests; the SSE stream is long-lived and
// exempt.
const apiTimeout = 60 * time.Second

// ThemesRequest is the body of POST /v1/themes.
type ThemesRequest struct {
	apptype.ClusterRequest
	Project string `json:"project,omitempty"`
	Persist bool   `json:"persist,omitempty"`
}

// MatchesRequest is the body of POST /v1/matches.
type MatchesRequest struct {
	apptype.MatchRequest
	PartitionAProject string `json:"partitionAProject"`
	PartitionBProject string `json:"partitionBProject"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// Router returns the HTTP handler serving the MCP SSE endpoint, the JSON API
// and /healthz.
func (s *MCPServer) Router(sseEndpoint string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(apiTimeout))
		r.Post("/themes", s.handleThemes)
		r.Post("/matches", s.handleMatches)
	})

	if sseEndpoint != "" {
		r.Handle(sseEndpoint, mcp.NewSSEHandler(func(*http.Request) *mcp.Server { return s.server }))
	}
	return r
}

func (s *MCPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func (s *MCPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.health())
}

func (s *MCPServer) handleThemes(w http.ResponseWriter, r *http.Request) {
	var req ThemesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}

	resp, err := s.runner.ClusterProject(r.Context(), s.getProjectName(req.Project), req.ClusterRequest, req.Persist)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *MCPServer) handleMatches(w http.ResponseWriter, r *http.Request) {
	var req MatchesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if req.PartitionAProject == "" || req.PartitionBProject == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "partitionAProject and partitionBProject are required"})
		return
	}

	resp, err := s.runner.MatchProjects(r.Context(), req.PartitionAProject, req.PartitionBProject, req.MatchRequest)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *MCPServer) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}
	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("Request failed")
	}
	s.writeJSON(w, status, body)
}

func (s *MCPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
