// Package server exposes the query engine over HTTP: a SPARQL endpoint
// plus stats and health probes. The server never mutates the store;
// data is loaded before serving.
package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kitelev/exocortex-graph/internal/sparql/parser"
	graperr "github.com/kitelev/exocortex-graph/pkg/errors"
	"github.com/kitelev/exocortex-graph/pkg/rdf"
	"github.com/kitelev/exocortex-graph/pkg/sparql"
	"github.com/kitelev/exocortex-graph/pkg/store"
)

// StatsProvider supplies the dataset statistics snapshot; the native
// store implements it.
type StatsProvider interface {
	Statistics() store.Statistics
}

type Server struct {
	engine *sparql.Engine
	stats  StatsProvider
	logger *slog.Logger
	router chi.Router
}

// New builds a server. stats may be nil when the backend keeps no
// statistics; /stats then reports 404.
func New(engine *sparql.Engine, stats StatsProvider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: engine, stats: stats, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Post("/sparql", s.handleQuery)
	r.Get("/stats", s.handleStats)
	r.Get("/health", s.handleHealth)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(started))
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	query, err := readQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.engine.Execute(r.Context(), query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, formatResult(result))
}

func readQuery(r *http.Request) (string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return "", graperr.Wrap(graperr.CodeServerRequestInvalid, err, "parsing form")
		}
		query := r.PostForm.Get("query")
		if query == "" {
			return "", graperr.E(graperr.CodeServerRequestInvalid, "missing query form parameter")
		}
		return query, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", graperr.Wrap(graperr.CodeServerRequestInvalid, err, "reading request body")
	}
	query := strings.TrimSpace(string(body))
	if query == "" {
		return "", graperr.E(graperr.CodeServerRequestInvalid, "empty query body")
	}
	return query, nil
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "statistics not available for this backend"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.stats.Statistics())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writing response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := graperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(graperr.GetCode(err)),
	})
}

// SPARQL 1.1 JSON results shapes.

type jsonResults struct {
	Head    jsonHead      `json:"head"`
	Results *jsonBindings `json:"results,omitempty"`
	Boolean *bool         `json:"boolean,omitempty"`
	Triples []string      `json:"triples,omitempty"`
}

type jsonHead struct {
	Vars []string `json:"vars,omitempty"`
}

type jsonBindings struct {
	Bindings []map[string]jsonTerm `json:"bindings"`
}

type jsonTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

func formatResult(result *sparql.Result) jsonResults {
	switch result.Form {
	case parser.FormAsk:
		b := result.Boolean
		return jsonResults{Boolean: &b}

	case parser.FormConstruct:
		lines := make([]string, 0, len(result.Triples))
		for _, t := range result.Triples {
			lines = append(lines, t.String())
		}
		return jsonResults{Triples: lines}

	default:
		out := jsonResults{
			Head:    jsonHead{Vars: result.Variables},
			Results: &jsonBindings{Bindings: make([]map[string]jsonTerm, 0, len(result.Rows))},
		}
		for _, row := range result.Rows {
			encoded := make(map[string]jsonTerm, len(result.Variables))
			for _, name := range result.Variables {
				if term, ok := row.Get(name); ok {
					encoded[name] = formatTerm(term)
				}
			}
			out.Results.Bindings = append(out.Results.Bindings, encoded)
		}
		return out
	}
}

func formatTerm(term rdf.Term) jsonTerm {
	switch t := term.(type) {
	case *rdf.IRI:
		return jsonTerm{Type: "uri", Value: t.Value}
	case *rdf.BlankNode:
		return jsonTerm{Type: "bnode", Value: t.ID}
	case *rdf.Literal:
		out := jsonTerm{Type: "literal", Value: t.Value, Lang: t.Language}
		if t.Datatype != nil {
			out.Datatype = t.Datatype.Value
		}
		return out
	default:
		return jsonTerm{Type: "literal", Value: term.String()}
	}
}
