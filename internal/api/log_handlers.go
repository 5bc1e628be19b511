package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xside/xside-server/internal/models"
	"github.com/xside/xside-server/internal/storage"
)

// Devices in the field send timestamps with and without a colon in the
// zone offset.
const timestampFallbackLayout = "2006-01-02T15:04:05-0700"

// logFeature is one element of the posted feature collection. Properties
// stay raw so an absent key can be told apart from a null value.
type logFeature struct {
	Properties map[string]json.RawMessage `json:"properties"`
	Geometry   json.RawMessage            `json:"geometry"`
}

// parseLogTimestamp parses a reported event timestamp
func parseLogTimestamp(raw string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return ts, nil
	}
	return time.Parse(timestampFallbackLayout, raw)
}

// featureLog builds a Log from one feature. A missing property or
// undecodable geometry is a structural error (errBadRequest); anything
// else is a data error.
func (s *RESTServer) featureLog(r *http.Request, module *models.VideoModule, f logFeature) (*models.Log, bool, error) {
	rawEvent, okEvent := f.Properties["event"]
	rawFile, okFile := f.Properties["item_file"]
	rawData, okData := f.Properties["data"]
	rawTS, okTS := f.Properties["timestamp"]
	if !okEvent || !okFile || !okData || !okTS || len(f.Geometry) == 0 {
		return nil, true, nil
	}

	var event string
	var filePath string
	var dataStr *string
	var tsStr string
	if json.Unmarshal(rawEvent, &event) != nil ||
		json.Unmarshal(rawFile, &filePath) != nil ||
		json.Unmarshal(rawData, &dataStr) != nil ||
		json.Unmarshal(rawTS, &tsStr) != nil {
		return nil, true, nil
	}

	point, err := models.PointFromGeoJSON(f.Geometry)
	if err != nil {
		return nil, true, nil
	}

	entry := &models.Log{
		ModuleID: module.ID,
		Point:    point,
		Event:    models.EventType(event),
	}
	if !entry.Event.Valid() {
		return nil, false, storage.ErrInvalidData
	}

	entry.Timestamp, err = parseLogTimestamp(tsStr)
	if err != nil {
		return nil, false, err
	}

	// data arrives as a JSON-encoded string, or null
	if dataStr != nil {
		if err := json.Unmarshal([]byte(*dataStr), &entry.Data); err != nil {
			return nil, false, err
		}
	}

	// Empty item_file means no file was on screen.
	if filePath != "" {
		file, err := s.store.GetItemFileByPath(r.Context(), filePath)
		if err != nil {
			return nil, false, err
		}
		entry.ItemFileID = &file.ID
	}

	return entry, false, nil
}

// HandleCreateLogs ingests a telemetry batch from a video module. Each
// feature is persisted independently; the first bad feature aborts the
// rest of the batch but earlier rows are kept.
func (s *RESTServer) HandleCreateLogs(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	module, err := s.store.GetModuleByUser(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, http.StatusForbidden, "Not authorized")
		return
	}

	var body struct {
		Features *[]logFeature `json:"features"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Features == nil {
		s.respondError(w, http.StatusBadRequest, "Feature collection not found")
		return
	}

	for _, f := range *body.Features {
		entry, structural, err := s.featureLog(r, module, f)
		if structural {
			s.respondError(w, http.StatusBadRequest, "Bad request")
			return
		}
		if err == nil {
			err = s.store.CreateLog(r.Context(), entry)
		}
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "Incorrect data")
			return
		}

		if s.events != nil {
			if err := s.events.PublishLog(entry); err != nil {
				log.Warn().Err(err).Str("module", module.ID.String()).Msg("Failed to publish log event")
			}
		}
	}

	s.respondData(w, http.StatusCreated, "OK")
}

// serializeLog builds the log representation
func serializeLog(entry *models.Log) map[string]interface{} {
	point, err := models.GeometryJSON(entry.Point)
	if err != nil {
		point = []byte("null")
	}

	return map[string]interface{}{
		"id":        entry.ID,
		"timestamp": entry.Timestamp,
		"point":     json.RawMessage(point),
		"event":     entry.Event,
		"item_file": entry.ItemFilePath,
		"data":      entry.Data,
	}
}

// HandleListLogs lists the calling module's own logs, newest first
func (s *RESTServer) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	module, err := s.store.GetModuleByUser(r.Context(), claims.UserID)
	if err != nil {
		s.respondError(w, http.StatusForbidden, "Not authorized")
		return
	}

	filters := storage.LogFilters{ModuleID: &module.ID}

	if raw := r.URL.Query().Get("event"); raw != "" {
		event := models.EventType(raw)
		if !event.Valid() {
			s.respondError(w, http.StatusBadRequest, "Incorrect data")
			return
		}
		filters.Event = &event
	}

	if raw := r.URL.Query().Get("start"); raw != "" {
		ts, err := parseLogTimestamp(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "Incorrect data")
			return
		}
		filters.StartTime = &ts
	}

	if raw := r.URL.Query().Get("end"); raw != "" {
		ts, err := parseLogTimestamp(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "Incorrect data")
			return
		}
		filters.EndTime = &ts
	}

	limit, offset := parsePagination(r, MaxPageSize)

	logs, total, err := s.store.ListLogs(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Cannot list logs")
		return
	}

	data := make([]map[string]interface{}, 0, len(logs))
	for _, entry := range logs {
		data = append(data, serializeLog(entry))
	}

	s.respondList(w, total, data)
}
