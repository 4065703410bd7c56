package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitBatch(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/batches", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var envelope BatchEnvelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		assert.Equal(t, "batch-1", envelope.BatchID)

		json.NewEncoder(w).Encode(BatchResult{
			BatchID: envelope.BatchID, Input: 2, Clean: 1, Quarantined: 1,
		})
	}))
	defer ts.Close()

	c := New(ts.URL, "secret-token")
	result, err := c.SubmitBatch(context.Background(), &BatchEnvelope{
		BatchID:  "batch-1",
		SourceID: "erp-west",
		Schema:   SchemaRef{Kind: "financial_report"},
		Records:  []RecordEnvelope{{Fields: map[string]any{"report_id": "RPT-000001"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, 2, result.Input)
	assert.Equal(t, 1, result.Clean)
}

func TestGetBatchResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/batches/batch-1", r.URL.Path)
		json.NewEncoder(w).Encode(BatchResult{BatchID: "batch-1", Input: 10})
	}))
	defer ts.Close()

	result, err := New(ts.URL, "").GetBatchResult(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 10, result.Input)
}

func TestListBatchResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "5", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(map[string]any{
			"results": []BatchResult{{BatchID: "batch-1"}, {BatchID: "batch-2"}},
		})
	}))
	defer ts.Close()

	results, err := New(ts.URL, "").ListBatchResults(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "batch-2", results[1].BatchID)
}

func TestListSchemas(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/schemas", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"schemas": []SchemaInfo{{Kind: "financial_report", Versions: []int{1, 2}}},
		})
	}))
	defer ts.Close()

	schemas, err := New(ts.URL, "").ListSchemas(context.Background())
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, []int{1, 2}, schemas[0].Versions)
}

func TestErrorResponses(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown schema kind"})
	}))
	defer ts.Close()

	_, err := New(ts.URL, "").GetBatchResult(context.Background(), "batch-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "unknown schema kind")
}

func TestErrorWithoutBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(ts.URL, "").GetBatchResult(context.Background(), "batch-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine returned 502")
}
