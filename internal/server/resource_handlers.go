package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aretelabs/custodian/internal/domain"
	"github.com/aretelabs/custodian/internal/occ"
)

// ResourceHandlers exposes the shared versioned resource store. Agents
// coordinate through these records; every write carries the version it
// read and stale writes come back as conflicts.
type ResourceHandlers struct {
	store *occ.Store
	log   zerolog.Logger
}

// NewResourceHandlers creates resource handlers
func NewResourceHandlers(store *occ.Store, log zerolog.Logger) *ResourceHandlers {
	return &ResourceHandlers{
		store: store,
		log:   log.With().Str("handler", "resources").Logger(),
	}
}

// RegisterRoutes registers resource routes
func (h *ResourceHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/resources", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/{resourceID}", h.HandleGet)
		r.Put("/{resourceID}", h.HandleWrite)
		r.Delete("/{resourceID}", h.HandleDelete)
	})
}

type createResourceRequest struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// HandleCreate registers a new resource at version 1
func (h *ResourceHandlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	res, err := h.store.Create(req.ID, req.Payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	h.writeResource(w, res)
}

// HandleGet returns the current payload and version of a resource
func (h *ResourceHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	res, err := h.store.Read(chi.URLParam(r, "resourceID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.writeResource(w, res)
}

type writeResourceRequest struct {
	Version uint64          `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// HandleWrite replaces a resource's payload iff the supplied version is
// still current. A stale version yields 409 with the winning version.
func (h *ResourceHandlers) HandleWrite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "resourceID")

	var req writeResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	version, err := h.store.Write(id, req.Version, req.Payload)
	if err != nil {
		var conflict *domain.VersionConflictError
		if errors.As(err, &conflict) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error":    "version_conflict",
				"expected": conflict.Expected,
				"actual":   conflict.Actual,
			})
			return
		}
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      id,
		"version": version,
	})
}

// HandleDelete removes a resource
func (h *ResourceHandlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.store.Delete(chi.URLParam(r, "resourceID"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ResourceHandlers) writeResource(w http.ResponseWriter, res occ.Resource) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      res.ID,
		"version": res.Version,
		"payload": res.Payload,
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode resource response")
	}
}
