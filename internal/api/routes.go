package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up public API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)

	// Auth routes (public)
	r.Post("/token", s.HandleToken)
	r.Post("/token/refresh", s.HandleTokenRefresh)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Caller profile
		r.Get("/user", s.HandleGetUser)
		r.Post("/user", s.HandleUpdateUser)

		// Clients
		r.Route("/client", func(r chi.Router) {
			r.Get("/", s.HandleListClients)
			r.Get("/{id}", s.HandleGetClient)
		})

		// Items
		r.Route("/item", func(r chi.Router) {
			r.Get("/", s.HandleListItems)
			r.Post("/", s.HandleCreateItem)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetItem)
				r.Put("/", s.HandleUpdateItem)
				r.Delete("/", s.HandleDeleteItem)
				r.Put("/image", s.HandleAddItemImages)
				r.Delete("/image", s.HandleRemoveItemImage)
			})
		})
	})
}

// setupPrivateRoutes sets up the device-facing API
func (s *RESTServer) setupPrivateRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/log", s.HandleCreateLogs)
		r.Get("/log", s.HandleListLogs)
	})
}
