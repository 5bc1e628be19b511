package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	srv, store := newTestServer(t)
	seedUser(t, store, "user@example.com", "password123", true)
	seedUser(t, store, "disabled@example.com", "password123", false)

	t.Run("valid credentials", func(t *testing.T) {
		rr := doJSON(srv, http.MethodPost, "/api/v1/token", "", map[string]string{
			"email":    "user@example.com",
			"password": "password123",
		})
		require.Equal(t, http.StatusOK, rr.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.NotEmpty(t, body["access"])
		require.NotEmpty(t, body["refresh"])
	})

	// Unknown email, wrong password and disabled account all answer
	// the same way.
	for _, tc := range []struct {
		name, email, password string
	}{
		{"unknown email", "nobody@example.com", "password123"},
		{"wrong password", "user@example.com", "wrong"},
		{"disabled account", "disabled@example.com", "password123"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(srv, http.MethodPost, "/api/v1/token", "", map[string]string{
				"email":    tc.email,
				"password": tc.password,
			})
			require.Equal(t, http.StatusUnauthorized, rr.Code)
			require.Equal(t, "No active account found with the given credentials", detail(t, rr))
		})
	}
}

func TestTokenRefresh(t *testing.T) {
	srv, store := newTestServer(t)
	user := seedUser(t, store, "user@example.com", "password123", true)

	rr := doJSON(srv, http.MethodPost, "/api/v1/token", "", map[string]string{
		"email":    "user@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var pair map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pair))

	t.Run("valid refresh token", func(t *testing.T) {
		rr := doJSON(srv, http.MethodPost, "/api/v1/token/refresh", "", map[string]string{
			"refresh": pair["refresh"],
		})
		require.Equal(t, http.StatusOK, rr.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.NotEmpty(t, body["access"])
		require.NotEmpty(t, body["refresh"])
	})

	t.Run("garbage refresh token", func(t *testing.T) {
		rr := doJSON(srv, http.MethodPost, "/api/v1/token/refresh", "", map[string]string{
			"refresh": "not-a-token",
		})
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("disabled account", func(t *testing.T) {
		user.IsActive = false
		require.NoError(t, store.UpdateUser(context.Background(), user))

		rr := doJSON(srv, http.MethodPost, "/api/v1/token/refresh", "", map[string]string{
			"refresh": pair["refresh"],
		})
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestGetUser(t *testing.T) {
	srv, store := newTestServer(t)
	seedUser(t, store, "user@example.com", "password123", true)
	token := login(t, srv, "user@example.com", "password123")

	rr := doJSON(srv, http.MethodGet, "/api/v1/user", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	data := decodeData(t, rr)
	require.Equal(t, "user@example.com", data["email"])
	require.Equal(t, "Test", data["first_name"])
	require.Equal(t, "User", data["last_name"])
}

func TestUpdateUser(t *testing.T) {
	srv, store := newTestServer(t)
	seedUser(t, store, "user@example.com", "password123", true)
	token := login(t, srv, "user@example.com", "password123")

	t.Run("all fields present", func(t *testing.T) {
		rr := doJSON(srv, http.MethodPost, "/api/v1/user", token, map[string]string{
			"first_name": "New",
			"last_name":  "Name",
			"email":      "new@example.com",
		})
		require.Equal(t, http.StatusOK, rr.Code)

		data := decodeData(t, rr)
		require.Equal(t, "new@example.com", data["email"])
		require.Equal(t, "New", data["first_name"])

		stored, err := store.GetUserByEmail(context.Background(), "new@example.com")
		require.NoError(t, err)
		require.Equal(t, "New", stored.FirstName)
	})

	t.Run("missing field", func(t *testing.T) {
		rr := doJSON(srv, http.MethodPost, "/api/v1/user", token, map[string]string{
			"first_name": "OnlyFirst",
		})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Equal(t, "All fields are required", detail(t, rr))
	})
}
