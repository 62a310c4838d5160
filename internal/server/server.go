// Package server exposes the filter collection and the popup templates over
// JSON/HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rebeliceyang/lazysheet/internal/api"
	"github.com/rebeliceyang/lazysheet/internal/filter"
	"github.com/rebeliceyang/lazysheet/internal/logger"
	"github.com/rebeliceyang/lazysheet/internal/models"
	"github.com/rebeliceyang/lazysheet/internal/store"
	"github.com/rebeliceyang/lazysheet/internal/templates"
)

const (
	msgMissingKeys   = "Missing one or more required keys"
	msgInvalidMethod = "Invalid filter method"
	msgNotFound      = "Filter not found"

	shutdownTimeout = 5 * time.Second
)

// Server serves the filter backend
type Server struct {
	store     store.Store
	templates fs.FS
}

// New creates a server on top of st
func New(st store.Store) *Server {
	return &Server{
		store:     st,
		templates: templates.FS(),
	}
}

// Handler returns the routed handler with request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+api.PathAdd, s.handleAdd)
	mux.HandleFunc("POST "+api.PathUpdate, s.handleUpdate)
	mux.HandleFunc("POST "+api.PathDelete, s.handleDelete)
	mux.HandleFunc("POST "+api.PathGet, s.handleGet)
	mux.HandleFunc("POST "+api.PathGetAt, s.handleGetAt)
	mux.HandleFunc("POST "+api.PathGetForSheet, s.handleGetForSheet)
	mux.Handle("GET "+api.PathTemplates, http.StripPrefix(api.PathTemplates, http.FileServerFS(s.templates)))
	mux.HandleFunc("GET "+api.PathHealth, s.handleHealth)
	return withLogging(mux)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("filter backend listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("filter backend shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ListenAndServe binds addr and calls Serve
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req api.AddRequest
	if !decode(w, r, &req, "fileId", "sheet", "column", "method", "input", "enabled") {
		return
	}
	if !filter.IsValidMethod(models.Method(req.Method)) {
		writeError(w, http.StatusBadRequest, msgInvalidMethod)
		return
	}

	id, err := s.store.Add(r.Context(), models.FilterRule{
		Scope:   models.Scope{FileID: models.FileID(req.FileID), Sheet: req.Sheet, Column: req.Column},
		Method:  models.Method(req.Method),
		Input:   req.Input,
		Enabled: req.Enabled,
	})
	if err != nil {
		s.storeFailure(w, r, err)
		return
	}

	raw := int64(id)
	writeJSON(w, http.StatusOK, api.AddResponse{Message: "Filter added", FilterID: &raw})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateRequest
	if !decode(w, r, &req, "filterId", "method", "input", "enabled") {
		return
	}
	if !filter.IsValidMethod(models.Method(req.Method)) {
		writeError(w, http.StatusBadRequest, msgInvalidMethod)
		return
	}

	err := s.store.Update(r.Context(), models.FilterID(req.FilterID), models.Method(req.Method), req.Input, req.Enabled)
	if err != nil {
		s.storeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.MessageResponse{Message: "Filter updated"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req api.IDRequest
	if !decode(w, r, &req, "filterId") {
		return
	}

	if err := s.store.Delete(r.Context(), models.FilterID(req.FilterID)); err != nil {
		s.storeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.MessageResponse{Message: "Filter deleted"})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	var req api.IDRequest
	if !decode(w, r, &req, "filterId") {
		return
	}

	rule, err := s.store.Get(r.Context(), models.FilterID(req.FilterID))
	if err != nil {
		s.storeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromStored(rule))
}

func (s *Server) handleGetAt(w http.ResponseWriter, r *http.Request) {
	var req api.AtRequest
	if !decode(w, r, &req, "fileId", "sheet", "column") {
		return
	}

	rules, err := s.store.ListAt(r.Context(), models.FileID(req.FileID), req.Sheet, req.Column)
	if err != nil {
		s.storeFailure(w, r, err)
		return
	}
	writeRules(w, rules)
}

func (s *Server) handleGetForSheet(w http.ResponseWriter, r *http.Request) {
	var req api.SheetRequest
	if !decode(w, r, &req, "fileId", "sheet") {
		return
	}

	rules, err := s.store.ListForSheet(r.Context(), models.FileID(req.FileID), req.Sheet)
	if err != nil {
		s.storeFailure(w, r, err)
		return
	}
	writeRules(w, rules)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) storeFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	logger.ErrorContext(r.Context(), "store operation failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

// decode reads a JSON object, checks that every key is present and decodes
// it into dst. It writes the 400 itself and reports false on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any, keys ...string) bool {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, msgMissingKeys)
		return false
	}
	for _, k := range keys {
		if _, ok := raw[k]; !ok {
			writeError(w, http.StatusBadRequest, msgMissingKeys)
			return false
		}
	}

	// Re-encode the verified object so type errors surface per field
	data, err := json.Marshal(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func writeRules(w http.ResponseWriter, rules []models.StoredRule) {
	out := make([]api.Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, api.FromStored(r))
	}
	writeJSON(w, http.StatusOK, out)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}
