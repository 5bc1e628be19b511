package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/xside/xside-server/internal/models"
	"github.com/xside/xside-server/internal/storage"
	"github.com/xside/xside-server/internal/validation"
	"github.com/xside/xside-server/pkg/crypto"
)

const (
	maxUploadMemory = 32 << 20

	fieldRequired = "This field is required"
)

// serializeItem builds the item representation. fields, when non-empty,
// projects the result down to the named attributes.
func serializeItem(item *models.Item, files []*models.ItemFile, fields []string) map[string]interface{} {
	images := make([]string, 0, len(files))
	for _, f := range files {
		images = append(images, f.Path)
	}

	areas, err := models.GeometryJSON(item.Areas)
	if err != nil {
		log.Error().Err(err).Str("item", item.ID.String()).Msg("Failed to encode item areas")
		areas = []byte("null")
	}

	maxRate, _ := item.MaxRate.Float64()
	maxDailySpend, _ := item.MaxDailySpend.Float64()

	full := map[string]interface{}{
		"id":              item.ID,
		"client":          item.ClientName,
		"name":            item.Name,
		"areas":           json.RawMessage(areas),
		"is_active":       item.IsActive,
		"max_rate":        maxRate,
		"max_daily_spend": maxDailySpend,
		"images":          images,
	}

	if len(fields) == 0 {
		return full
	}

	projected := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if v, ok := full[f]; ok {
			projected[f] = v
		}
	}
	return projected
}

// parseFields reads the fields query parameter projection list
func parseFields(r *http.Request) []string {
	raw := r.URL.Query().Get("fields")
	if raw == "" {
		return nil
	}

	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// uploadedFile is one image part read into memory, hashed for dedup
type uploadedFile struct {
	name string
	data []byte
	hash string
}

// readUploadedFiles reads the image parts of a parsed multipart form
func readUploadedFiles(r *http.Request) ([]uploadedFile, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	var files []uploadedFile
	for _, header := range r.MultipartForm.File["image"] {
		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("open uploaded file %q: %w", header.Filename, err)
		}

		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read uploaded file %q: %w", header.Filename, err)
		}

		files = append(files, uploadedFile{
			name: header.Filename,
			data: data,
			hash: crypto.ContentHash(data),
		})
	}

	return files, nil
}

// formValue reads one multipart form value, reporting presence so an
// absent field can fall back to its default
func formValue(r *http.Request, key string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	vals, ok := r.MultipartForm.Value[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// parseItemForm validates the multipart item form into item. Every
// failing field is collected; nothing short-circuits.
func (s *RESTServer) parseItemForm(r *http.Request, item *models.Item) validation.FieldErrors {
	var errs validation.FieldErrors

	clientName, _ := formValue(r, "client")
	if clientName == "" {
		errs.Add("client", fieldRequired)
	} else {
		claims := claimsFromContext(r.Context())
		client, err := s.store.GetClientByNameForUser(r.Context(), clientName, claims.UserID)
		if err != nil {
			errs.Add("client", "Client not found or user doesn't have access to manage this client")
		} else {
			item.ClientID = client.ID
			item.ClientName = client.Name
		}
	}

	name, _ := formValue(r, "name")
	if name == "" {
		errs.Add("name", fieldRequired)
	} else {
		item.Name = name
	}

	areas, _ := formValue(r, "areas")
	if areas == "" {
		errs.Add("areas", fieldRequired)
	} else {
		mp, err := models.MultiPolygonFromGeoJSON([]byte(areas))
		if err != nil {
			errs.Add("areas", "Incorrect format of the field. Expected MultiPolygon in GeoJSON format.")
		} else {
			item.Areas = mp
		}
	}

	item.IsActive = models.DefaultIsActive
	if raw, ok := formValue(r, "is_active"); ok {
		switch strings.ToLower(raw) {
		case "true":
			item.IsActive = true
		case "false":
			item.IsActive = false
		default:
			errs.Add("is_active", "Cannot parse is_active. Expected value: true or false")
		}
	}

	item.MaxRate = models.DefaultMaxRate
	if raw, ok := formValue(r, "max_rate"); ok {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			errs.Add("max_rate", "Cannot parse max_rate. Expected decimal number")
		} else if d = d.Round(models.MoneyScale); !d.IsPositive() {
			errs.Add("max_rate", "max_rate must be greater than 0")
		} else {
			item.MaxRate = d
		}
	}

	item.MaxDailySpend = models.DefaultMaxDailySpend
	if raw, ok := formValue(r, "max_daily_spend"); ok {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			errs.Add("max_daily_spend", "Cannot parse max_daily_spend. Expected decimal number")
		} else if d = d.Round(models.MoneyScale); !d.IsPositive() {
			errs.Add("max_daily_spend", "max_daily_spend must be greater than 0")
		} else {
			item.MaxDailySpend = d
		}
	}

	return errs
}

// filePath builds the stored blob path of an uploaded file. The content
// hash keys the name, so a path is stable for identical bytes.
func filePath(itemID uuid.UUID, f uploadedFile) string {
	ext := strings.ToLower(filepath.Ext(f.name))
	return fmt.Sprintf("items/%s/%s%s", itemID, f.hash[:16], ext)
}

// storeItemFiles writes new file blobs and records inside tx. Content
// already present on the item is skipped. Returns the blob paths
// written, which the caller must remove if the transaction fails.
func (s *RESTServer) storeItemFiles(ctx context.Context, tx storage.Store, itemID uuid.UUID, files []uploadedFile) ([]string, error) {
	var saved []string

	for _, f := range files {
		if _, err := tx.GetItemFileByHash(ctx, itemID, f.hash); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return saved, err
		}

		path := filePath(itemID, f)
		if err := s.media.Save(ctx, path, bytes.NewReader(f.data)); err != nil {
			return saved, err
		}
		saved = append(saved, path)

		file := &models.ItemFile{
			ItemID: itemID,
			Path:   path,
			Hash:   f.hash,
		}
		if err := tx.CreateItemFile(ctx, file); err != nil {
			return saved, err
		}
	}

	return saved, nil
}

// removeBlobs deletes written blobs after a failed transaction
func (s *RESTServer) removeBlobs(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := s.media.Remove(ctx, p); err != nil {
			log.Error().Err(err).Str("path", p).Msg("Failed to remove orphaned blob")
		}
	}
}

// loadItemForUser loads an item and checks the caller's grant. An absent
// item answers 404; a present but ungranted one answers 401.
func (s *RESTServer) loadItemForUser(w http.ResponseWriter, r *http.Request) (*models.Item, bool) {
	claims := claimsFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "Not found")
		return nil, false
	}

	item, err := s.store.GetItem(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "Not found")
		return nil, false
	}

	granted, err := s.store.UserHasClient(r.Context(), claims.UserID, item.ClientID)
	if err != nil || !granted {
		s.respondError(w, http.StatusUnauthorized, "Not authorized")
		return nil, false
	}

	return item, true
}

// respondItem answers with the serialized item and its current files
func (s *RESTServer) respondItem(w http.ResponseWriter, r *http.Request, status int, item *models.Item) {
	files, err := s.store.ListItemFiles(r.Context(), item.ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Cannot load item files")
		return
	}
	s.respondData(w, status, serializeItem(item, files, nil))
}

// HandleListItems lists the items of the caller's granted clients
func (s *RESTServer) HandleListItems(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	limit, offset := parsePagination(r, MaxPageSize)
	fields := parseFields(r)

	items, total, err := s.store.ListItemsForUser(r.Context(), claims.UserID, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Cannot list items")
		return
	}

	data := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		files, err := s.store.ListItemFiles(r.Context(), item.ID)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, "Cannot load item files")
			return
		}
		data = append(data, serializeItem(item, files, fields))
	}

	s.respondList(w, total, data)
}

// HandleGetItem returns one item
func (s *RESTServer) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	item, ok := s.loadItemForUser(w, r)
	if !ok {
		return
	}
	s.respondItem(w, r, http.StatusOK, item)
}

// HandleCreateItem creates an item from the multipart form. The item row
// and its file records commit in one transaction; blobs written before a
// failed commit are removed again.
func (s *RESTServer) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	item := &models.Item{}
	errs := s.parseItemForm(r, item)

	files, err := readUploadedFiles(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if len(files) == 0 {
		errs.Add("image", fieldRequired)
	}

	if errs.Any() {
		s.respondFieldErrors(w, http.StatusBadRequest, errs)
		return
	}

	item.ID = uuid.New()

	tx, err := s.store.BeginTx(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Cannot save item")
		return
	}

	saved, err := s.saveItemTx(r.Context(), tx, item, files, true)
	if err != nil {
		tx.Rollback()
		s.removeBlobs(r.Context(), saved)
		s.respondSaveError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		s.removeBlobs(r.Context(), saved)
		s.respondError(w, http.StatusInternalServerError, "Cannot save item")
		return
	}

	s.respondItem(w, r, http.StatusCreated, item)
}

// HandleUpdateItem updates an item from the multipart form. Attached
// files are added to the item's file set.
func (s *RESTServer) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	item, ok := s.loadItemForUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	errs := s.parseItemForm(r, item)

	files, err := readUploadedFiles(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	if errs.Any() {
		s.respondFieldErrors(w, http.StatusBadRequest, errs)
		return
	}

	tx, err := s.store.BeginTx(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Cannot save item")
		return
	}

	saved, err := s.saveItemTx(r.Context(), tx, item, files, false)
	if err != nil {
		tx.Rollback()
		s.removeBlobs(r.Context(), saved)
		s.respondSaveError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		s.removeBlobs(r.Context(), saved)
		s.respondError(w, http.StatusInternalServerError, "Cannot save item")
		return
	}

	s.respondItem(w, r, http.StatusOK, item)
}

// saveItemTx persists the item row and new files inside tx
func (s *RESTServer) saveItemTx(ctx context.Context, tx storage.Store, item *models.Item, files []uploadedFile, create bool) ([]string, error) {
	var err error
	if create {
		err = tx.CreateItem(ctx, item)
	} else {
		err = tx.UpdateItem(ctx, item)
	}
	if err != nil {
		return nil, err
	}

	return s.storeItemFiles(ctx, tx, item.ID, files)
}

// respondSaveError maps an item save failure to a response. A duplicate
// (client, name) pair is a conflict, everything else a generic field
// error.
func (s *RESTServer) respondSaveError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrDuplicateKey) {
		s.respondFieldErrors(w, http.StatusConflict, validation.FieldErrors{
			{Field: "name", Message: "Item with this name already exists for this client"},
		})
		return
	}

	log.Error().Err(err).Msg("Failed to save item")
	s.respondFieldErrors(w, http.StatusBadRequest, validation.FieldErrors{
		{Field: "Item", Message: "Cannot save item"},
	})
}

// HandleDeleteItem deletes an item, its file records by cascade, and
// their blobs as a post-commit step
func (s *RESTServer) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	item, ok := s.loadItemForUser(w, r)
	if !ok {
		return
	}

	files, err := s.store.ListItemFiles(r.Context(), item.ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Cannot delete item")
		return
	}

	if err := s.store.DeleteItem(r.Context(), item.ID); err != nil {
		s.respondError(w, http.StatusInternalServerError, "Cannot delete item")
		return
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	s.removeBlobs(r.Context(), paths)

	s.respondError(w, http.StatusOK, "deleted")
}

// HandleAddItemImages attaches uploaded files to an item. Content the
// item already holds is skipped.
func (s *RESTServer) HandleAddItemImages(w http.ResponseWriter, r *http.Request) {
	item, ok := s.loadItemForUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files, err := readUploadedFiles(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if len(files) == 0 {
		s.respondFieldErrors(w, http.StatusBadRequest, validation.FieldErrors{
			{Field: "image", Message: fieldRequired},
		})
		return
	}

	tx, err := s.store.BeginTx(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Cannot save files")
		return
	}

	saved, err := s.storeItemFiles(r.Context(), tx, item.ID, files)
	if err != nil {
		tx.Rollback()
		s.removeBlobs(r.Context(), saved)
		s.respondError(w, http.StatusInternalServerError, "Cannot save files")
		return
	}

	if err := tx.Commit(); err != nil {
		s.removeBlobs(r.Context(), saved)
		s.respondError(w, http.StatusInternalServerError, "Cannot save files")
		return
	}

	s.respondItem(w, r, http.StatusOK, item)
}

// HandleRemoveItemImage removes one file, identified by its stored path.
// The last remaining file of an item cannot be removed.
func (s *RESTServer) HandleRemoveItemImage(w http.ResponseWriter, r *http.Request) {
	item, ok := s.loadItemForUser(w, r)
	if !ok {
		return
	}

	path := r.URL.Query().Get("image")
	file, err := s.store.GetItemFileByPath(r.Context(), path)
	if err != nil || file.ItemID != item.ID {
		s.respondError(w, http.StatusNotFound, "Not found")
		return
	}

	count, err := s.store.CountItemFiles(r.Context(), item.ID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "Cannot remove file")
		return
	}
	if count <= 1 {
		s.respondFieldErrors(w, http.StatusBadRequest, validation.FieldErrors{
			{Field: "image", Message: "Cannot delete the last file of the item"},
		})
		return
	}

	if err := s.store.DeleteItemFile(r.Context(), file.ID); err != nil {
		s.respondError(w, http.StatusInternalServerError, "Cannot remove file")
		return
	}

	if err := s.media.Remove(r.Context(), file.Path); err != nil {
		log.Error().Err(err).Str("path", file.Path).Msg("Failed to remove blob")
	}

	s.respondItem(w, r, http.StatusOK, item)
}
