// Copyright (C) 2025 fireplex contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package services contains clients for the orchestrator's upstream
// dependencies and the pure context-assembly helpers.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ArmDaniel/fireplex/services/orchestrator/datatypes"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// defaultSearchServiceURL is used when SEARCH_SERVICE_URL is unset.
	defaultSearchServiceURL = "http://localhost:8008/search"

	// searchResultLimit caps how many documents one search returns.
	searchResultLimit = 5

	// searchTimeout bounds a single search-service call.
	searchTimeout = 30 * time.Second
)

// =============================================================================
// Error Types
// =============================================================================

// RetrievalError indicates the search service returned a non-success status
// or could not be reached.
//
// # Fields
//
//   - StatusCode: HTTP status from the search service, 0 for transport errors.
//   - Message: Description safe to log; may contain the upstream body.
type RetrievalError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("search service error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("search service unreachable: %s", e.Message)
}

// IsRetrievalError reports whether err is a RetrievalError.
func IsRetrievalError(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re)
}

// =============================================================================
// Struct Definition
// =============================================================================

// SearchClient calls the external search/scrape service.
//
// # Description
//
// SearchClient issues a single POST per query and maps the ranked documents
// into Source records. Failures surface as RetrievalError; the caller
// decides how to report them. No retry, caching, or rate limiting happens
// at this layer.
//
// # Fields
//
//   - httpClient: HTTP client with request timeout.
//   - baseURL: Full URL of the search endpoint.
type SearchClient struct {
	httpClient *http.Client
	baseURL    string
}

// searchRequest is the search-service request body.
type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// =============================================================================
// Constructor
// =============================================================================

// NewSearchClient creates a SearchClient from environment configuration.
//
// # Description
//
// Reads SEARCH_SERVICE_URL for the endpoint, logging a warning and using
// the localhost default when unset. The client itself is stateless and safe
// for concurrent use.
//
// # Outputs
//
//   - *SearchClient: Ready to serve Search calls.
func NewSearchClient() *SearchClient {
	baseURL := os.Getenv("SEARCH_SERVICE_URL")
	if baseURL == "" {
		baseURL = defaultSearchServiceURL
		slog.Warn("SEARCH_SERVICE_URL not set, using default", "url", baseURL)
	}

	return &SearchClient{
		httpClient: &http.Client{Timeout: searchTimeout},
		baseURL:    baseURL,
	}
}

// =============================================================================
// Methods
// =============================================================================

// Search retrieves ranked documents for the query.
//
// # Description
//
// POSTs {query, limit} to the search service with the request id in the
// X-Request-ID header, decodes the ranked documents, and maps them into
// Source records (title falls back to url). Document order is preserved;
// it defines citation numbering downstream.
//
// # Inputs
//
//   - ctx: Context for cancellation. Client disconnects cancel the call.
//   - requestID: Correlation token forwarded upstream.
//   - query: Non-empty search query.
//
// # Outputs
//
//   - []datatypes.Source: Mapped sources in ranked order. May be empty.
//   - error: *RetrievalError on transport failure or non-2xx status.
//
// # Limitations
//
//   - No retry on failure. A transient upstream error fails the request.
func (s *SearchClient) Search(ctx context.Context, requestID, query string) ([]datatypes.Source, error) {
	tracer := otel.Tracer("fireplex/orchestrator")
	ctx, span := tracer.Start(ctx, "search_client.search")
	defer span.End()
	span.SetAttributes(
		attribute.String("search.request_id", requestID),
		attribute.Int("search.limit", searchResultLimit),
	)

	body, err := json.Marshal(searchRequest{Query: query, Limit: searchResultLimit})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search request failed")
		return nil, &RetrievalError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		span.SetStatus(codes.Error, "search service returned error status")
		return nil, &RetrievalError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	// The service returns the ranked document list directly, not wrapped
	// in an envelope.
	var docs []datatypes.SearchDocument
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		span.RecordError(err)
		return nil, &RetrievalError{Message: fmt.Sprintf("decode search response: %v", err)}
	}

	sources := datatypes.MapDocuments(docs)
	span.SetAttributes(attribute.Int("search.results", len(sources)))

	slog.Debug("Search completed",
		"request_id", requestID,
		"results", len(sources),
	)
	return sources, nil
}
