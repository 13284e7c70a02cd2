package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/contacts/internal/apperr"
	"github.com/starford/contacts/internal/contactstore"
)

// Handler holds API route handlers.
type Handler struct {
	store *contactstore.Store
}

// NewHandler creates a new Handler.
func NewHandler(store *contactstore.Store) *Handler {
	return &Handler{store: store}
}

func contactID(r *http.Request) string {
	return chi.URLParam(r, "contactID")
}

// ListContacts handles GET /api/contacts?q=.
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	items, err := h.store.List(r.Context(), q)
	if err != nil {
		slog.Error("list contacts failed", slog.String("q", q), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, ContactListResponse{
		Contacts: items,
		Total:    len(items),
		Query:    q,
	})
}

// GetContact handles GET /api/contacts/{contactID}.
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	c, ok := h.store.Get(r.Context(), contactID(r))
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateContact handles POST /api/contacts. An empty body creates an empty
// contact, which is what the sidebar "New" button sends.
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	patch, err := decodePatch(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.store.Create(r.Context(), patch)
	if err != nil {
		slog.Error("create contact failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Location", "/api/contacts/"+c.ID)
	writeJSON(w, http.StatusCreated, c)
}

// UpdateContact handles PATCH /api/contacts/{contactID} and the
// POST /api/contacts/{contactID}/edit form action.
func (h *Handler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	id := contactID(r)
	patch, err := decodePatch(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.store.Update(r.Context(), id, patch)
	if err != nil {
		h.writeStoreError(w, "update contact", id, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// SetFavorite handles PUT /api/contacts/{contactID}/favorite and the
// favorite button's POST /api/contacts/{contactID}.
func (h *Handler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	id := contactID(r)
	fav, err := decodeFavorite(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := h.store.SetFavorite(r.Context(), id, fav)
	if err != nil {
		h.writeStoreError(w, "set favorite", id, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteContact handles DELETE /api/contacts/{contactID} and the
// POST /api/contacts/{contactID}/destroy form action.
func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id := contactID(r)
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, "delete contact", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, op, id string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	slog.Error(op+" failed", slog.String("id", id), slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal error")
}
