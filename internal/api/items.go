package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/najdeno/internal/apperr"
	"github.com/erazemk/najdeno/internal/imaging"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// ItemsHandler handles item report endpoints.
type ItemsHandler struct {
	DB      *sqlx.DB
	Timeout time.Duration
}

type createItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	Location    string `json:"location"`
}

type itemStatusRequest struct {
	Status string `json:"status"`
}

func (h *ItemsHandler) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.Timeout)
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ItemFilter{
		Status:   q.Get("status"),
		Category: q.Get("category"),
	}
	if f.Status != "" && !model.ValidItemStatus(f.Status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if f.Category != "" && !model.ValidCategory(f.Category) {
		jsonError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if q.Get("mine") == "true" {
		f.ReporterID = actor(r).UserID
	}

	ctx, cancel := h.storeContext(r.Context())
	defer cancel()

	items, err := store.ListItems(ctx, h.DB, f)
	if err != nil {
		writeError(w, r, apperr.Unavailable("listing items", err))
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items. New reports are either lost or found.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}
	if !model.ValidCategory(req.Category) {
		jsonError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if req.Status != model.ItemStatusLost && req.Status != model.ItemStatusFound {
		jsonError(w, http.StatusBadRequest, "status must be lost or found")
		return
	}

	ctx, cancel := h.storeContext(r.Context())
	defer cancel()

	reporter := actor(r).UserID
	item, err := store.CreateItem(ctx, h.DB, reporter,
		req.Name, strings.TrimSpace(req.Description), req.Category, req.Status, strings.TrimSpace(req.Location))
	if err != nil {
		writeError(w, r, apperr.Unavailable("creating item", err))
		return
	}

	slog.Info("item reported", "item", item.ID, "status", item.Status, "category", item.Category, "reporter", reporter)
	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	ctx, cancel := h.storeContext(r.Context())
	defer cancel()

	item, err := store.GetItem(ctx, h.DB, id)
	if err != nil {
		writeError(w, r, apperr.Unavailable("getting item", err))
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	jsonResponse(w, http.StatusOK, item)
}

// UpdateStatus handles PUT /api/items/{id}/status. Reporters may switch
// an open report between lost and found; claimed and returned are set by
// the claim workflow only.
func (h *ItemsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	var req itemStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != model.ItemStatusLost && req.Status != model.ItemStatusFound {
		jsonError(w, http.StatusBadRequest, "status must be lost or found")
		return
	}

	ctx, cancel := h.storeContext(r.Context())
	defer cancel()

	item, err := h.editable(ctx, r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if item.Status != model.ItemStatusLost && item.Status != model.ItemStatusFound {
		writeError(w, r, apperr.Invalid("item is "+item.Status+" and its status is managed by its claim"))
		return
	}

	err = store.SwitchOpenItemStatus(ctx, h.DB, id, req.Status)
	switch {
	case errors.Is(err, store.ErrStale):
		writeError(w, r, fmt.Errorf("%w: item was claimed while its status was being changed", apperr.ErrConflict))
		return
	case errors.Is(err, sql.ErrNoRows):
		jsonError(w, http.StatusNotFound, "item not found")
		return
	case err != nil:
		writeError(w, r, apperr.Unavailable("updating item status", err))
		return
	}

	item, err = store.GetItem(ctx, h.DB, id)
	if err != nil {
		writeError(w, r, apperr.Unavailable("getting item", err))
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	slog.Info("item status changed", "item", id, "status", item.Status, "user", actor(r).UserID)
	jsonResponse(w, http.StatusOK, item)
}

// UploadPhoto handles PUT /api/items/{id}/photo with a multipart "photo"
// field.
func (h *ItemsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "photo file required")
		return
	}
	defer file.Close()

	ctx, cancel := h.storeContext(r.Context())
	defer cancel()

	if _, err := h.editable(ctx, r, id); err != nil {
		writeError(w, r, err)
		return
	}

	photo, err := imaging.ProcessPhoto(file)
	if errors.Is(err, imaging.ErrTooLarge) {
		jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetItemPhoto(ctx, h.DB, id, photo.Full, photo.Thumb, photo.MIME); err != nil {
		writeError(w, r, apperr.Unavailable("saving photo", err))
		return
	}

	slog.Info("item photo uploaded", "item", id, "bytes", len(photo.Full))
	jsonResponse(w, http.StatusOK, map[string]string{"message": "photo uploaded"})
}

// GetPhoto handles GET /api/items/{id}/photo. ?size=thumb returns the
// thumbnail.
func (h *ItemsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	ctx, cancel := h.storeContext(r.Context())
	defer cancel()

	data, mime, err := store.GetItemPhoto(ctx, h.DB, id, r.URL.Query().Get("size") == "thumb")
	if err != nil {
		writeError(w, r, apperr.Unavailable("getting photo", err))
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// editable loads an item the caller reported, or any item for admins.
func (h *ItemsHandler) editable(ctx context.Context, r *http.Request, id int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, h.DB, id)
	if err != nil {
		return nil, apperr.Unavailable("getting item", err)
	}
	if item == nil {
		return nil, apperr.NotFound("item")
	}
	a := actor(r)
	if !a.Admin && !a.Is(item.ReporterID) {
		return nil, apperr.Forbidden("only the reporter can change this item")
	}
	return item, nil
}
