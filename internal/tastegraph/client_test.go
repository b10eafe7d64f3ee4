package tastegraph

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonathan/group-harmony/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Search(t *testing.T) {
	var gotQuery, gotTypes, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("query")
		gotTypes = r.URL.Query().Get("types")
		gotKey = r.Header.Get("x-api-key")
		_, _ = io.WriteString(w, `{"results":[{"entity_id":"E1","name":"Daft Punk"}]}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL + "/", APIKey: "secret"})
	body, err := c.Search(context.Background(), "Daft Punk", types.CategoryMusic)

	require.NoError(t, err)
	assert.Equal(t, "Daft Punk", gotQuery)
	assert.Equal(t, "urn:entity:artist", gotTypes)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "E1", ExtractEntityID(body))
}

func TestClient_SearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"bad key"}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.Search(context.Background(), "x", types.CategoryMovie)

	require.Error(t, err)
	var tgErr *Error
	require.ErrorAs(t, err, &tgErr)
	assert.Equal(t, http.StatusUnauthorized, tgErr.StatusCode)
	assert.Equal(t, "search", tgErr.Endpoint)
}

func TestClient_SearchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, SearchTimeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := c.Search(context.Background(), "slow", types.CategoryMusic)

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_InsightsGET(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/insights", r.URL.Path)
		got = map[string]string{}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
		_, _ = io.WriteString(w, `{"results":[{"name":"Justice"},{"name":"Air"}]}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	q, _ := BuildQuery(types.CategoryMusic, []string{"E1", "E2"}, nil, 5)
	candidates, err := c.Insights(context.Background(), q)

	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "Justice", candidates[0].Name())
	assert.Equal(t, "urn:entity:artist", got["filter.type"])
	assert.Equal(t, "E1,E2", got["signal.interests.entities"])
	assert.Equal(t, "5", got["take"])
}

func TestClient_InsightsPOST(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"results":{"entities":[{"name":"Kyoto"}]}}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, InsightsMethod: http.MethodPost})
	country := "jp"
	q, _ := BuildQuery(types.CategoryTravel, []string{"D1"}, &types.Filters{Country: country}, 3)
	candidates, err := c.Insights(context.Background(), q)

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Kyoto", candidates[0].Name())

	filter := body["filter"].(map[string]any)
	assert.Equal(t, "urn:entity:destination", filter["type"])
	assert.Equal(t, "JP", filter["geocode.country_code"])
	assert.Equal(t, float64(3), body["take"])
}

func TestClient_InsightsEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	candidates, err := c.Insights(context.Background(), InsightsQuery{EntityType: "urn:entity:movie", Take: 5})

	require.NoError(t, err)
	assert.NotNil(t, candidates)
	assert.Empty(t, candidates)
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.Insights(context.Background(), InsightsQuery{EntityType: "urn:entity:movie", Take: 5})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}
