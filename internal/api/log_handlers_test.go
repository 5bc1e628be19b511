package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xside/xside-server/internal/models"
	"github.com/xside/xside-server/internal/storage"
)

func seedModule(t *testing.T, store storage.Store, email string) *models.VideoModule {
	t.Helper()

	user := seedUser(t, store, email, "password123", true)
	module := &models.VideoModule{
		UserID: user.ID,
		Name:   "car-01",
		Phone:  "+70000000001",
	}
	require.NoError(t, store.CreateModule(context.Background(), module))
	return module
}

func logFeaturePayload(event, itemFile, timestamp string) map[string]interface{} {
	return map[string]interface{}{
		"type": "Feature",
		"properties": map[string]interface{}{
			"event":     event,
			"item_file": itemFile,
			"data":      nil,
			"timestamp": timestamp,
		},
		"geometry": map[string]interface{}{
			"type":        "Point",
			"coordinates": []float64{37.6176, 55.7558},
		},
	}
}

func featureCollection(features ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":     "FeatureCollection",
		"features": features,
	}
}

func TestCreateLogs(t *testing.T) {
	srv, store := newTestServer(t)
	module := seedModule(t, store, "module@example.com")
	token := login(t, srv, "module@example.com", "password123")

	t.Run("accepts a batch", func(t *testing.T) {
		rr := doJSON(srv, http.MethodPost, "/private/api/v1/log", token, featureCollection(
			logFeaturePayload("S", "", "2026-08-30T10:00:00+03:00"),
			logFeaturePayload("P", "", "2026-08-30T10:05:00+03:00"),
		))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var body map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, "OK", body["data"])

		logs, total, err := store.ListLogs(context.Background(), storage.LogFilters{ModuleID: &module.ID}, 10, 0)
		require.NoError(t, err)
		require.EqualValues(t, 2, total)
		require.Equal(t, models.EventStop, logs[0].Event)
	})

	t.Run("timestamp offset without colon", func(t *testing.T) {
		rr := doJSON(srv, http.MethodPost, "/private/api/v1/log", token, featureCollection(
			logFeaturePayload("WA", "", "2026-08-30T11:00:00+0300"),
		))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	})

	t.Run("json payload in data", func(t *testing.T) {
		feature := logFeaturePayload("ER", "", "2026-08-30T12:00:00+03:00")
		feature["properties"].(map[string]interface{})["data"] = `{"code": 17, "reason": "screen"}`

		rr := doJSON(srv, http.MethodPost, "/private/api/v1/log", token, featureCollection(feature))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		event := models.EventError
		logs, _, err := store.ListLogs(context.Background(), storage.LogFilters{Event: &event}, 10, 0)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		require.EqualValues(t, 17, logs[0].Data["code"])
	})
}

func TestCreateLogsResolvesItemFile(t *testing.T) {
	srv, store := newTestServer(t)
	module := seedModule(t, store, "module@example.com")

	owner := seedUser(t, store, "owner@example.com", "password123", true)
	seedClient(t, store, "Client1", owner.ID)
	ownerToken := login(t, srv, "owner@example.com", "password123")
	itemID, rr := createItem(t, srv, ownerToken, "Client1", "Item1")
	path := decodeData(t, rr)["images"].([]interface{})[0].(string)

	token := login(t, srv, "module@example.com", "password123")
	rr = doJSON(srv, http.MethodPost, "/private/api/v1/log", token, featureCollection(
		logFeaturePayload("SH", path, "2026-08-30T10:00:00+03:00"),
	))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	logs, _, err := store.ListLogs(context.Background(), storage.LogFilters{ModuleID: &module.ID}, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, models.EventShow, logs[0].Event)
	require.NotNil(t, logs[0].ItemFileID)
	require.Equal(t, 37.6176, logs[0].Point[0])
	require.Equal(t, 55.7558, logs[0].Point[1])

	files, err := store.ListItemFiles(context.Background(), itemID)
	require.NoError(t, err)
	require.Equal(t, files[0].ID, *logs[0].ItemFileID)
}

func TestCreateLogsErrors(t *testing.T) {
	srv, store := newTestServer(t)
	module := seedModule(t, store, "module@example.com")
	token := login(t, srv, "module@example.com", "password123")

	seedUser(t, store, "plain@example.com", "password123", true)

	t.Run("non-module principal", func(t *testing.T) {
		plainToken := login(t, srv, "plain@example.com", "password123")

		rr := doJSON(srv, http.MethodPost, "/private/api/v1/log", plainToken, featureCollection())
		require.Equal(t, http.StatusForbidden, rr.Code)
		require.Equal(t, "Not authorized", detail(t, rr))
	})

	t.Run("missing features key", func(t *testing.T) {
		rr := doJSON(srv, http.MethodPost, "/private/api/v1/log", token, map[string]interface{}{
			"type": "FeatureCollection",
		})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Equal(t, "Feature collection not found", detail(t, rr))
	})

	t.Run("missing property aborts rest, keeps earlier rows", func(t *testing.T) {
		broken := logFeaturePayload("S", "", "2026-08-30T10:00:00+03:00")
		delete(broken["properties"].(map[string]interface{}), "timestamp")

		rr := doJSON(srv, http.MethodPost, "/private/api/v1/log", token, featureCollection(
			logFeaturePayload("S", "", "2026-08-30T09:00:00+03:00"),
			broken,
			logFeaturePayload("P", "", "2026-08-30T09:10:00+03:00"),
		))
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Equal(t, "Bad request", detail(t, rr))

		// The first feature landed, the one after the broken one did not.
		logs, _, err := store.ListLogs(context.Background(), storage.LogFilters{ModuleID: &module.ID}, 10, 0)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		require.Equal(t, models.EventStart, logs[0].Event)
	})

	t.Run("unknown event code", func(t *testing.T) {
		rr := doJSON(srv, http.MethodPost, "/private/api/v1/log", token, featureCollection(
			logFeaturePayload("XX", "", "2026-08-30T10:00:00+03:00"),
		))
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Equal(t, "Incorrect data", detail(t, rr))
	})

	t.Run("unresolvable item file path", func(t *testing.T) {
		rr := doJSON(srv, http.MethodPost, "/private/api/v1/log", token, featureCollection(
			logFeaturePayload("SH", "items/nothing-here.png", "2026-08-30T10:00:00+03:00"),
		))
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Equal(t, "Incorrect data", detail(t, rr))
	})

	t.Run("geometry must be a point", func(t *testing.T) {
		feature := logFeaturePayload("S", "", "2026-08-30T10:00:00+03:00")
		feature["geometry"] = map[string]interface{}{
			"type":        "LineString",
			"coordinates": [][]float64{{37.6, 55.7}, {37.7, 55.8}},
		}

		rr := doJSON(srv, http.MethodPost, "/private/api/v1/log", token, featureCollection(feature))
		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Equal(t, "Bad request", detail(t, rr))
	})
}

func TestListLogs(t *testing.T) {
	srv, store := newTestServer(t)
	seedModule(t, store, "module@example.com")
	seedModule(t, store, "other@example.com")
	token := login(t, srv, "module@example.com", "password123")
	otherToken := login(t, srv, "other@example.com", "password123")

	rr := doJSON(srv, http.MethodPost, "/private/api/v1/log", token, featureCollection(
		logFeaturePayload("S", "", "2026-08-30T09:00:00+03:00"),
		logFeaturePayload("SH", "", "2026-08-30T09:05:00+03:00"),
		logFeaturePayload("P", "", "2026-08-30T09:10:00+03:00"),
	))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doJSON(srv, http.MethodPost, "/private/api/v1/log", otherToken, featureCollection(
		logFeaturePayload("S", "", "2026-08-30T09:00:00+03:00"),
	))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	t.Run("scoped to the calling module, newest first", func(t *testing.T) {
		rr := doJSON(srv, http.MethodGet, "/private/api/v1/log", token, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		count, data := decodeList(t, rr)
		require.EqualValues(t, 3, count)
		require.Equal(t, "P", data[0]["event"])
		require.Equal(t, "S", data[2]["event"])
	})

	t.Run("event filter", func(t *testing.T) {
		rr := doJSON(srv, http.MethodGet, "/private/api/v1/log?event=SH", token, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		count, data := decodeList(t, rr)
		require.EqualValues(t, 1, count)
		require.Equal(t, "SH", data[0]["event"])
	})

	t.Run("time window", func(t *testing.T) {
		rr := doJSON(srv, http.MethodGet,
			fmt.Sprintf("/private/api/v1/log?start=%s&end=%s",
				"2026-08-30T09:04:00%2B03:00", "2026-08-30T09:06:00%2B03:00"), token, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		count, data := decodeList(t, rr)
		require.EqualValues(t, 1, count)
		require.Equal(t, "SH", data[0]["event"])
	})

	t.Run("bad event filter", func(t *testing.T) {
		rr := doJSON(srv, http.MethodGet, "/private/api/v1/log?event=NOPE", token, nil)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
