// Copyright (C) 2025 fireplex contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the orchestrator service.
//
// This file contains the request, source, and stream-event types for the
// answer-stream endpoint.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxMessagesPerRequest is the maximum number of messages in a request.
	MaxMessagesPerRequest = 100

	// followUpMessageThreshold is the message count above which a request
	// is treated as a conversation continuation rather than a fresh search.
	followUpMessageThreshold = 2
)

// searchValidate is the validator instance for search datatypes.
var searchValidate = validator.New()

// =============================================================================
// Conversation Types
// =============================================================================

// Message is a single conversation turn supplied by the caller.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=user system assistant"`
	Content string `json:"content"`
}

// AnswerStreamRequest represents the body of an answer-stream request.
//
// # Description
//
// The caller provides either a chronological messages list, a raw query, or
// both. The effective query is the content of the last message, falling back
// to the Query field. A request with neither is rejected with HTTP 400.
//
// # Fields
//
//   - RequestID: Optional. Short correlation token; generated server-side
//     when absent. Threaded through logs and the search-service call.
//   - Messages: Optional. Ordered conversation history (oldest first).
//   - Query: Optional. Raw query used when Messages is empty.
//
// # Examples
//
//	// Fresh search
//	req := AnswerStreamRequest{Query: "latest apple earnings"}
//
//	// Conversational continuation
//	req := AnswerStreamRequest{Messages: []Message{
//	    {Role: "user", Content: "who founded SpaceX?"},
//	    {Role: "assistant", Content: "Elon Musk founded SpaceX in 2002 [1]."},
//	    {Role: "user", Content: "what about Tesla?"},
//	}}
type AnswerStreamRequest struct {
	RequestID string    `json:"request_id,omitempty"`
	Messages  []Message `json:"messages" validate:"omitempty,max=100,dive"`
	Query     string    `json:"query"`
}

// Validate validates the AnswerStreamRequest fields.
func (r *AnswerStreamRequest) Validate() error {
	return searchValidate.Struct(r)
}

// EnsureDefaults populates the request id when the client did not supply one.
//
// The id is a short random token (first uuid group) used for log correlation
// and the X-Request-ID header on the search-service call.
func (r *AnswerStreamRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.New().String()[:8]
	}
}

// EffectiveQuery returns the query this request asks about: the content of
// the last message, falling back to the raw Query field. Empty string means
// the request carries no query and must be rejected.
func (r *AnswerStreamRequest) EffectiveQuery() string {
	if len(r.Messages) > 0 {
		if last := r.Messages[len(r.Messages)-1].Content; last != "" {
			return last
		}
	}
	return r.Query
}

// IsFollowUp reports whether the request continues an existing conversation.
// More than two messages means at least one full prior exchange exists.
func (r *AnswerStreamRequest) IsFollowUp() bool {
	return len(r.Messages) > followUpMessageThreshold
}

// =============================================================================
// Source Types
// =============================================================================

// Source is a retrieved document reference used as generation context and
// citation target.
//
// Invariants: URL is always present; Title is never empty (falls back to URL
// during mapping). Sources are created fresh per request and never persisted.
type Source struct {
	URL           string `json:"url" validate:"required"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Content       string `json:"content,omitempty"`
	Markdown      string `json:"markdown,omitempty"`
	PublishedDate string `json:"publishedDate,omitempty"`
	Author        string `json:"author,omitempty"`
	Image         string `json:"image,omitempty"`
	Favicon       string `json:"favicon,omitempty"`
	SiteName      string `json:"siteName,omitempty"`
}

// SearchDocument is the raw document shape returned by the search/scrape
// service. Field names follow that service's JSON contract verbatim.
type SearchDocument struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Content       string `json:"content"`
	Markdown      string `json:"markdown"`
	PublishedDate string `json:"publishedDate"`
	Author        string `json:"author"`
	Image         string `json:"image"`
	Favicon       string `json:"favicon"`
	SiteName      string `json:"siteName"`
}

// MapDocuments converts raw search-service documents into Source records.
//
// # Description
//
// Pure mapping with per-field defaulting: Title falls back to URL when the
// service returned none; Content and Markdown pass through verbatim. Document
// order is preserved exactly; it defines citation numbering ([1] is the
// first source).
//
// # Inputs
//
//   - docs: Documents as returned by the search service, in ranked order.
//
// # Outputs
//
//   - []Source: One Source per document, same order. Never nil.
func MapDocuments(docs []SearchDocument) []Source {
	sources := make([]Source, 0, len(docs))
	for _, d := range docs {
		title := d.Title
		if title == "" {
			title = d.URL
		}
		sources = append(sources, Source{
			URL:           d.URL,
			Title:         title,
			Description:   d.Description,
			Content:       d.Content,
			Markdown:      d.Markdown,
			PublishedDate: d.PublishedDate,
			Author:        d.Author,
			Image:         d.Image,
			Favicon:       d.Favicon,
			SiteName:      d.SiteName,
		})
	}
	return sources
}

// =============================================================================
// Stream Event Types
// =============================================================================

// Event type discriminators for the answer stream.
const (
	EventStatus            = "status"
	EventSources           = "sources"
	EventTicker            = "ticker"
	EventAnswer            = "answer"
	EventFollowUpQuestions = "follow_up_questions"
	EventComplete          = "complete"
	EventError             = "error"
)

// StreamEvent is a discriminated record emitted to the client.
//
// # Description
//
// Exactly one field group is populated per event, selected by Type:
//
//   - status: Message
//   - sources: Sources (possibly empty, never omitted)
//   - ticker: Symbol
//   - answer: Content (an incremental answer chunk)
//   - follow_up_questions: Questions (possibly empty, never omitted)
//   - complete: no payload
//   - error: Error
//
// Id and CreatedAt are populated by the stream writer on emission.
//
// # Invariants
//
// Per request: exactly one sources event (when retrieval succeeds), at most
// one ticker event, exactly one follow_up_questions event on the success
// path, and exactly one terminal event (complete or error), always last.
type StreamEvent struct {
	Id        string    `json:"id,omitempty"`
	Type      string    `json:"type"`
	CreatedAt int64     `json:"created_at,omitempty"`
	Message   string    `json:"message,omitempty"`
	Sources   *[]Source `json:"sources,omitempty"`
	Symbol    string    `json:"symbol,omitempty"`
	Content   string    `json:"content,omitempty"`
	Questions *[]string `json:"questions,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Stamp populates the event metadata fields.
func (e *StreamEvent) Stamp() {
	e.Id = uuid.New().String()
	e.CreatedAt = time.Now().UnixMilli()
}
