package api

import (
	"net/http"

	"github.com/erazemk/najdeno/internal/claims"
)

// ClaimsHandler exposes the claim workflow.
type ClaimsHandler struct {
	Service *claims.Service
}

// Create handles POST /api/claims.
func (h *ClaimsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req claims.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Service.Create(r.Context(), actor(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, c)
}

// Get handles GET /api/claims/{id}.
func (h *ClaimsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	c, err := h.Service.Get(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// ListByItem handles GET /api/items/{id}/claims.
func (h *ClaimsHandler) ListByItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	list, err := h.Service.ListByItem(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

// Mine handles GET /api/claims/mine.
func (h *ClaimsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListByClaimant(r.Context(), actor(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

// Received handles GET /api/claims/received.
func (h *ClaimsHandler) Received(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListByOwner(r.Context(), actor(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

// UpdateStatus handles PUT /api/claims/{id}/status.
func (h *ClaimsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	var req claims.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Service.UpdateStatus(r.Context(), actor(r), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// Complete handles POST /api/claims/{id}/complete.
func (h *ClaimsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	c, err := h.Service.Complete(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// Delete handles DELETE /api/claims/{id}.
func (h *ClaimsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid claim id")
		return
	}

	if err := h.Service.Delete(r.Context(), actor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "claim deleted"})
}
