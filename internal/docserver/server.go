// Package docserver exposes a storage.Store over the REST shape the chat client
// speaks: every subtree is addressable as /{path}.json with GET, PUT and DELETE.
package docserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mmynk/pollchat/internal/auth"
	"github.com/mmynk/pollchat/internal/metrics"
	"github.com/mmynk/pollchat/internal/middleware"
	"github.com/mmynk/pollchat/internal/storage"
)

// maxBodyBytes bounds a single PUT body.
const maxBodyBytes = 8 << 20

// Server handles document requests against a backing store.
type Server struct {
	store storage.Store
}

// New creates a new Server backed by store.
func New(store storage.Store) *Server {
	return &Server{store: store}
}

// Handler returns the full HTTP handler: routes wrapped in logging, CORS and,
// when jwtManager is non-nil, bearer-token auth.
func (s *Server) Handler(jwtManager *auth.JWTManager) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	docs := r.PathPrefix("/").Subrouter()
	docs.Use(middleware.RequireToken(jwtManager))
	docs.HandleFunc("/{path:.+}.json", s.get).Methods(http.MethodGet)
	docs.HandleFunc("/{path:.+}.json", s.put).Methods(http.MethodPut)
	docs.HandleFunc("/{path:.+}.json", s.delete).Methods(http.MethodDelete)

	return middleware.Logging(middleware.CORS(r))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]
	slog.Debug("Get request received", "path", path)

	body, err := s.store.Get(r.Context(), path)
	if err != nil {
		writeError(w, "Get", path, err)
		return
	}
	writeJSON(w, body)
}

func (s *Server) put(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]
	slog.Debug("Put request received", "path", path)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) > maxBodyBytes {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}
	if !json.Valid(body) {
		http.Error(w, "body is not valid JSON", http.StatusBadRequest)
		return
	}

	if err := s.store.Put(r.Context(), path, json.RawMessage(body)); err != nil {
		writeError(w, "Put", path, err)
		return
	}
	writeJSON(w, body)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]
	slog.Debug("Delete request received", "path", path)

	if err := s.store.Delete(r.Context(), path); err != nil {
		writeError(w, "Delete", path, err)
		return
	}
	writeJSON(w, []byte("null"))
}

func writeJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, op, path string, err error) {
	if errors.Is(err, storage.ErrStatus) {
		slog.Warn(op+" request rejected", "path", path, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	slog.Error(op+" failed", "path", path, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
