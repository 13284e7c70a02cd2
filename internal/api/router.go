package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/contacts/internal/contactstore"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// avatars, if non-nil, receives uploads at POST /avatars.
func NewRouter(store *contactstore.Store, authEnabled bool, token string, sseHandler http.Handler, avatars *AvatarHandler) chi.Router {
	h := NewHandler(store)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/contacts", func(r chi.Router) {
		r.Get("/", h.ListContacts)
		r.Post("/", h.CreateContact)

		r.Route("/{contactID}", func(r chi.Router) {
			r.Get("/", h.GetContact)
			r.Patch("/", h.UpdateContact)
			r.Delete("/", h.DeleteContact)
			r.Post("/", h.SetFavorite)
			r.Put("/favorite", h.SetFavorite)

			// Form actions used by browsers that can only GET/POST.
			r.Post("/edit", h.UpdateContact)
			r.Post("/destroy", h.DeleteContact)
		})
	})

	if avatars != nil {
		r.Post("/avatars", avatars.Upload)
	}

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
