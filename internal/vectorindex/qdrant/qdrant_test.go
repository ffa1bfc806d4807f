package qdrant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfsearch/internal/domain"
)

func newIndex(t *testing.T, handler http.HandlerFunc) *Index {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewIndex(Config{URL: srv.URL, Collection: "test"})
}

func TestCreateCollectionTreatsConflictAsSuccess(t *testing.T) {
	calls := 0
	idx := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/test", r.URL.Path)
		if calls == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusConflict)
	})

	require.NoError(t, idx.CreateCollection(64))
	require.NoError(t, idx.CreateCollection(64)) // already exists
	assert.Error(t, idx.CreateCollection(0))
}

func TestInsertMapsIDsToDeterministicUUIDs(t *testing.T) {
	var body struct {
		Points []struct {
			ID      string         `json:"id"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	idx := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/test/points", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	})

	point := domain.VectorPoint{
		ID:      "doc.txt_0",
		Vector:  []float64{0.1, 0.2},
		Payload: map[string]any{"file_name": "doc.txt"},
	}
	require.NoError(t, idx.Insert([]domain.VectorPoint{point}))
	require.Len(t, body.Points, 1)
	assert.Equal(t, pointUUID("doc.txt_0"), body.Points[0].ID)
	assert.Equal(t, "doc.txt_0", body.Points[0].Payload["point_key"])
	assert.Equal(t, "doc.txt", body.Points[0].Payload["file_name"])

	// same caller ID always maps to the same point UUID
	assert.Equal(t, pointUUID("doc.txt_0"), pointUUID("doc.txt_0"))
	assert.NotEqual(t, pointUUID("doc.txt_0"), pointUUID("doc.txt_1"))
}

func TestSearchReturnsCallerIDs(t *testing.T) {
	idx := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/test/points/search", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 2, req["limit"])
		assert.Contains(t, req, "filter")

		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": pointUUID("doc.txt_1"), "score": 0.9, "payload": map[string]any{"point_key": "doc.txt_1"}},
				{"id": pointUUID("doc.txt_0"), "score": 0.7, "payload": map[string]any{"point_key": "doc.txt_0"}},
			},
		})
	})

	hits, err := idx.Search([]float64{0.1, 0.2}, 2, map[string]string{"file_name": "doc.txt"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc.txt_1", hits[0].ID)
	assert.Equal(t, 0.9, hits[0].Score)
	assert.Equal(t, "doc.txt_0", hits[1].ID)
}

func TestInfoAbsentCollection(t *testing.T) {
	idx := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	info, err := idx.Info()
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestDeleteCollectionToleratesAbsent(t *testing.T) {
	idx := newIndex(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	})
	require.NoError(t, idx.DeleteCollection())
}
