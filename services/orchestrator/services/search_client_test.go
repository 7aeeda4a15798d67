// Copyright (C) 2025 fireplex contributors
// Tests for the search service client

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchClient_Search(t *testing.T) {
	var gotBody map[string]any
	var gotRequestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = r.Header.Get("X-Request-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"url":"https://a.example","title":"Doc A","markdown":"alpha"},
			{"url":"https://b.example","content":"beta"}
		]`)
	}))
	defer server.Close()

	t.Setenv("SEARCH_SERVICE_URL", server.URL)
	client := NewSearchClient()

	sources, err := client.Search(context.Background(), "req-1", "test query")
	require.NoError(t, err)

	assert.Equal(t, "req-1", gotRequestID)
	assert.Equal(t, "test query", gotBody["query"])
	assert.Equal(t, float64(searchResultLimit), gotBody["limit"])

	require.Len(t, sources, 2)
	assert.Equal(t, "Doc A", sources[0].Title)
	assert.Equal(t, "alpha", sources[0].Markdown)
	// Title falls back to URL.
	assert.Equal(t, "https://b.example", sources[1].Title)
}

func TestSearchClient_Search_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "scrape backend down")
	}))
	defer server.Close()

	t.Setenv("SEARCH_SERVICE_URL", server.URL)
	client := NewSearchClient()

	_, err := client.Search(context.Background(), "req-2", "query")
	require.Error(t, err)
	assert.True(t, IsRetrievalError(err))

	var re *RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusBadGateway, re.StatusCode)
	assert.Contains(t, re.Message, "scrape backend down")
}

func TestSearchClient_Search_Unreachable(t *testing.T) {
	t.Setenv("SEARCH_SERVICE_URL", "http://127.0.0.1:1")
	client := NewSearchClient()

	_, err := client.Search(context.Background(), "req-3", "query")
	require.Error(t, err)
	assert.True(t, IsRetrievalError(err))

	var re *RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Zero(t, re.StatusCode)
}

func TestSearchClient_Search_EmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	t.Setenv("SEARCH_SERVICE_URL", server.URL)
	client := NewSearchClient()

	sources, err := client.Search(context.Background(), "req-4", "query")
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestIsRetrievalError(t *testing.T) {
	assert.True(t, IsRetrievalError(&RetrievalError{StatusCode: 500, Message: "x"}))
	assert.True(t, IsRetrievalError(fmt.Errorf("wrapped: %w", &RetrievalError{Message: "x"})))
	assert.False(t, IsRetrievalError(fmt.Errorf("plain error")))
	assert.False(t, IsRetrievalError(nil))
}
