package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/xside/xside-server/internal/config"
	"github.com/xside/xside-server/internal/media"
	"github.com/xside/xside-server/internal/models"
	"github.com/xside/xside-server/internal/storage"
	"github.com/xside/xside-server/pkg/crypto"
)

const testMultiPolygon = `{"type": "MultiPolygon", "coordinates": [[[[37.602, 55.7533], [37.6015, 55.7508], [37.6093, 55.749], [37.6134, 55.7521], [37.602, 55.7533]]]]}`

func newTestServer(t *testing.T) (*RESTServer, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	mediaStore, err := media.NewDiskStore(t.TempDir(), "/media")
	require.NoError(t, err)

	cfg := &config.Config{
		Media: config.MediaConfig{BaseURL: "/media"},
		JWT: config.JWTConfig{
			Secret:          "test-secret",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
		},
	}

	return NewRESTServer(cfg, store, mediaStore, nil), store
}

func seedUser(t *testing.T, store storage.Store, email, password string, active bool) *models.User {
	t.Helper()

	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Email:        email,
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: hash,
		IsActive:     active,
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func seedClient(t *testing.T, store storage.Store, name string, grantees ...uuid.UUID) *models.Client {
	t.Helper()

	client := &models.Client{Name: name}
	require.NoError(t, store.CreateClient(context.Background(), client))
	for _, userID := range grantees {
		require.NoError(t, store.GrantClient(context.Background(), userID, client.ID))
	}
	return client
}

func login(t *testing.T, srv *RESTServer, email, password string) string {
	t.Helper()

	rr := doJSON(srv, http.MethodPost, "/api/v1/token", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(t, body["access"])
	return body["access"]
}

func doJSON(srv *RESTServer, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func doMultipart(t *testing.T, srv *RESTServer, method, path, token string, fields map[string]string, images map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, data := range images {
		part, err := w.CreateFormFile("image", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

// decodeData unwraps the {"data": ...} envelope into an object
func decodeData(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body.Data
}

// decodeList unwraps the {"count": N, "data": [...]} envelope
func decodeList(t *testing.T, rr *httptest.ResponseRecorder) (int64, []map[string]interface{}) {
	t.Helper()

	var body struct {
		Count int64                    `json:"count"`
		Data  []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body.Count, body.Data
}

func detail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body["detail"]
}

// fieldErrors flattens the {"errors": [{field: msg}...]} envelope
func fieldErrors(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var body struct {
		Errors []map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())

	out := make(map[string]string)
	for _, e := range body.Errors {
		for k, v := range e {
			out[k] = v
		}
	}
	return out
}

func TestUnknownMethodOnKnownRoute(t *testing.T) {
	srv, store := newTestServer(t)
	seedUser(t, store, "user@example.com", "password123", true)
	token := login(t, srv, "user@example.com", "password123")

	rr := doJSON(srv, http.MethodPatch, "/api/v1/item", token, nil)
	require.Equal(t, http.StatusNotImplemented, rr.Code)
	require.Equal(t, "Wrong method", detail(t, rr))
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t)

	cases := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"malformed token", "not-a-jwt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", tc.token))
			}

			rr := httptest.NewRecorder()
			srv.Router().ServeHTTP(rr, req)

			require.Equal(t, http.StatusUnauthorized, rr.Code)
			require.Equal(t, "Not authorized", detail(t, rr))
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(srv, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}
