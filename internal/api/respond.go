package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xside/xside-server/internal/validation"
)

// Pagination limits
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// respondJSON responds with JSON
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondData wraps a payload in the {"data": ...} envelope
func (s *RESTServer) respondData(w http.ResponseWriter, status int, payload interface{}) {
	s.respondJSON(w, status, map[string]interface{}{
		"data": payload,
	})
}

// respondList wraps a page in the {"count": N, "data": [...]} envelope.
// count is the total match count, not the page length.
func (s *RESTServer) respondList(w http.ResponseWriter, count int64, payload interface{}) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": count,
		"data":  payload,
	})
}

// respondError responds with the {"detail": ...} envelope
func (s *RESTServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"detail": message,
	})
}

// respondFieldErrors responds with the aggregated {"errors": [...]} envelope
func (s *RESTServer) respondFieldErrors(w http.ResponseWriter, status int, errs validation.FieldErrors) {
	s.respondJSON(w, status, map[string]interface{}{
		"errors": errs,
	})
}

// parsePagination reads page_size/page query parameters. maxSize <= 0
// means uncapped.
func parsePagination(r *http.Request, maxSize int) (limit, offset int) {
	pageSize, err := strconv.Atoi(r.URL.Query().Get("page_size"))
	if err != nil || pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxSize > 0 && pageSize > maxSize {
		pageSize = maxSize
	}

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 0 {
		page = 0
	}

	return pageSize, page * pageSize
}

// HandleHealth health check
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now(),
	})
}
