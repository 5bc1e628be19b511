package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestListClients(t *testing.T) {
	srv, store := newTestServer(t)
	user := seedUser(t, store, "user@example.com", "password123", true)
	seedUser(t, store, "outsider@example.com", "password123", true)

	seedClient(t, store, "Client1", user.ID)
	seedClient(t, store, "Client2", user.ID)
	seedClient(t, store, "Hidden")

	t.Run("only granted clients", func(t *testing.T) {
		token := login(t, srv, "user@example.com", "password123")

		rr := doJSON(srv, http.MethodGet, "/api/v1/client", token, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		count, data := decodeList(t, rr)
		require.EqualValues(t, 2, count)
		require.Len(t, data, 2)
		require.Equal(t, "Client1", data[0]["name"])
		require.Equal(t, "Client2", data[1]["name"])
	})

	t.Run("user without grants sees nothing", func(t *testing.T) {
		token := login(t, srv, "outsider@example.com", "password123")

		rr := doJSON(srv, http.MethodGet, "/api/v1/client", token, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		count, data := decodeList(t, rr)
		require.EqualValues(t, 0, count)
		require.Empty(t, data)
	})

	t.Run("pagination", func(t *testing.T) {
		token := login(t, srv, "user@example.com", "password123")

		rr := doJSON(srv, http.MethodGet, "/api/v1/client?page_size=1&page=1", token, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		count, data := decodeList(t, rr)
		require.EqualValues(t, 2, count)
		require.Len(t, data, 1)
		require.Equal(t, "Client2", data[0]["name"])
	})
}

func TestGetClient(t *testing.T) {
	srv, store := newTestServer(t)
	user := seedUser(t, store, "user@example.com", "password123", true)
	seedUser(t, store, "outsider@example.com", "password123", true)

	client := seedClient(t, store, "Client1", user.ID)

	t.Run("granted client", func(t *testing.T) {
		token := login(t, srv, "user@example.com", "password123")

		rr := doJSON(srv, http.MethodGet, fmt.Sprintf("/api/v1/client/%s", client.ID), token, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		data := decodeData(t, rr)
		require.Equal(t, "Client1", data["name"])
	})

	// An existing client outside the caller's grants is reported
	// exactly like a missing one.
	t.Run("ungranted client", func(t *testing.T) {
		token := login(t, srv, "outsider@example.com", "password123")

		rr := doJSON(srv, http.MethodGet, fmt.Sprintf("/api/v1/client/%s", client.ID), token, nil)
		require.Equal(t, http.StatusNotFound, rr.Code)
		require.Equal(t, "Not found", detail(t, rr))
	})

	t.Run("unknown id", func(t *testing.T) {
		token := login(t, srv, "user@example.com", "password123")

		rr := doJSON(srv, http.MethodGet, fmt.Sprintf("/api/v1/client/%s", uuid.New()), token, nil)
		require.Equal(t, http.StatusNotFound, rr.Code)
		require.Equal(t, "Not found", detail(t, rr))
	})
}
