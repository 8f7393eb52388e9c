package httphandler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ericfisherdev/signproxy/internal/domain/model"
)

// ListArtifacts returns the research history, newest first.
func (h *Handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.history.List(r.Context())
	if err != nil {
		h.writeStoreError(w, "failed to list artifacts", err)
		return
	}

	resp := make([]ArtifactResponse, 0, len(artifacts))
	for _, a := range artifacts {
		resp = append(resp, toArtifactResponse(a))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetArtifact returns a single artifact by ID.
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	a, err := h.history.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, "failed to get artifact", err)
		return
	}
	writeJSON(w, http.StatusOK, toArtifactResponse(a))
}

// SaveArtifact stores a completed research result.
func (h *Handler) SaveArtifact(w http.ResponseWriter, r *http.Request) {
	var req SaveArtifactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "title or question is required")
		return
	}

	saved, err := h.history.Save(r.Context(), model.Artifact{
		ID:       strings.TrimSpace(req.ID),
		Title:    req.Title,
		Question: req.Question,
		Report:   req.Report,
		Sources:  req.Sources,
	})
	if err != nil {
		h.writeStoreError(w, "failed to save artifact", err)
		return
	}

	writeJSON(w, http.StatusCreated, toArtifactResponse(saved))
}

// DeleteArtifact removes a single artifact.
func (h *Handler) DeleteArtifact(w http.ResponseWriter, r *http.Request) {
	if err := h.history.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeStoreError(w, "failed to delete artifact", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearArtifacts removes the whole research history.
func (h *Handler) ClearArtifacts(w http.ResponseWriter, r *http.Request) {
	if err := h.history.ClearAll(r.Context()); err != nil {
		h.writeStoreError(w, "failed to clear artifacts", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
