package api

import (
	"net/http"

	"github.com/erazemk/najdeno/internal/mailbox"
)

// NotificationsHandler exposes the caller's mailbox.
type NotificationsHandler struct {
	Mailbox *mailbox.Mailbox
}

// List handles GET /api/notifications.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Mailbox.List(r.Context(), actor(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, list)
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Mailbox.UnreadCount(r.Context(), actor(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"count": n})
}

// MarkRead handles PUT /api/notifications/{id}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := h.Mailbox.MarkRead(r.Context(), actor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "marked as read"})
}

// MarkAllRead handles PUT /api/notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Mailbox.MarkAllRead(r.Context(), actor(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"updated": n})
}

// Delete handles DELETE /api/notifications/{id}.
func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := h.Mailbox.Delete(r.Context(), actor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "notification deleted"})
}
