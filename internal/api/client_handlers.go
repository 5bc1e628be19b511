package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// HandleListClients lists the clients the caller holds a grant on
func (s *RESTServer) HandleListClients(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	limit, offset := parsePagination(r, 0)

	clients, total, err := s.store.ListClientsForUser(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Cannot list clients")
		return
	}

	data := make([]map[string]interface{}, 0, len(clients))
	for _, c := range clients {
		data = append(data, map[string]interface{}{
			"id":   c.ID,
			"name": c.Name,
		})
	}

	s.respondList(w, total, data)
}

// HandleGetClient returns one client. A client that exists but is not
// granted to the caller is reported as absent.
func (s *RESTServer) HandleGetClient(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "Not found")
		return
	}

	client, err := s.store.GetClientForUser(r.Context(), id, claims.UserID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "Not found")
		return
	}

	s.respondData(w, http.StatusOK, map[string]interface{}{
		"id":   client.ID,
		"name": client.Name,
	})
}
