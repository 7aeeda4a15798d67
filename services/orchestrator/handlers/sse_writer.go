// Copyright (C) 2025 fireplex contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/ArmDaniel/fireplex/services/orchestrator/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// StreamWriter defines the contract for writing answer-stream events to
// HTTP responses.
//
// # Description
//
// StreamWriter abstracts SSE event serialization and writing, enabling
// testability and separation from HTTP response mechanics. Implementations
// handle the SSE wire format (event: type\ndata: json\n\n) internally.
//
// Each event is automatically assigned:
//   - Id: UUID v4 for ordering and deduplication
//   - CreatedAt: Unix timestamp in milliseconds
//
// # Thread Safety
//
// Implementations must be safe for concurrent use by multiple goroutines.
// The answer-stream handler emits answer chunks and keepalives from
// different goroutines.
//
// # Limitations
//
//   - Must be used with http.Flusher-compatible ResponseWriter
//   - Response headers must be set before first write
//
// # Assumptions
//
//   - Caller has set SSE headers via SetStreamHeaders
type StreamWriter interface {
	// WriteEvent writes a single SSE event to the response.
	WriteEvent(event datatypes.StreamEvent) error

	// WriteStatus writes a status event with the given progress message.
	WriteStatus(message string) error

	// WriteSources writes the sources event with retrieved documents.
	// Source order defines citation numbering for the answer.
	WriteSources(sources []datatypes.Source) error

	// WriteTicker writes a ticker event with a detected stock symbol.
	WriteTicker(symbol string) error

	// WriteAnswerChunk writes an answer event carrying one incremental
	// chunk of generated text. Chunks concatenate to the full answer.
	WriteAnswerChunk(content string) error

	// WriteFollowUpQuestions writes the follow_up_questions event. An
	// empty list is valid and still emitted.
	WriteFollowUpQuestions(questions []string) error

	// WriteComplete writes the terminal complete event. Must be the last
	// event on a successful stream.
	WriteComplete() error

	// WriteError writes a terminal error event. The message must be
	// sanitized; no internal details reach the client. No further events
	// follow an error.
	WriteError(errMsg string) error

	// WriteKeepAlive sends an SSE comment line (": ping") to prevent
	// idle-connection timeouts during long retrieval or generation.
	// Comments are ignored by clients and carry no event metadata.
	WriteKeepAlive() error
}

// =============================================================================
// Struct Definition
// =============================================================================

// streamWriter implements StreamWriter for HTTP SSE responses.
//
// # Description
//
// streamWriter wraps an http.ResponseWriter to emit SSE-formatted events.
// Each event is written in the format:
//
//	event: {type}
//	data: {json}
//
// # Fields
//
//   - writer: Underlying http.ResponseWriter
//   - flusher: http.Flusher interface for immediate send
//   - mu: Mutex for thread-safe writes
//
// # Thread Safety
//
// Thread-safe via mutex. The answer goroutine and the keepalive goroutine
// write concurrently; each event reaches the wire intact.
//
// # Limitations
//
//   - Cannot be reused across requests
type streamWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// =============================================================================
// Constructor
// =============================================================================

// NewStreamWriter creates a StreamWriter for the given ResponseWriter.
//
// # Inputs
//
//   - w: HTTP ResponseWriter. Must implement http.Flusher.
//
// # Outputs
//
//   - StreamWriter: Ready to write SSE events.
//   - error: Non-nil if the ResponseWriter doesn't support flushing.
//
// # Examples
//
//	SetStreamHeaders(w)
//	writer, err := NewStreamWriter(w)
//	if err != nil {
//	    http.Error(w, "Streaming not supported", http.StatusInternalServerError)
//	    return
//	}
//	writer.WriteStatus("Starting search...")
func NewStreamWriter(w http.ResponseWriter) (StreamWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}

	return &streamWriter{
		writer:  w,
		flusher: flusher,
	}, nil
}

// =============================================================================
// Methods
// =============================================================================

// WriteEvent writes a single SSE event to the response.
//
// # Description
//
// Populates event metadata (Id, CreatedAt), serializes to JSON, and writes
// in SSE format. Flushes immediately after writing.
//
// # Inputs
//
//   - event: StreamEvent to write. Id and CreatedAt are auto-set.
//
// # Outputs
//
//   - error: Non-nil if JSON marshaling or writing failed.
func (w *streamWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	event.Stamp()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	w.flusher.Flush()
	return nil
}

// WriteStatus writes a status event with the given message.
func (w *streamWriter) WriteStatus(message string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:    datatypes.EventStatus,
		Message: message,
	})
}

// WriteSources writes the sources event with retrieved documents.
//
// A nil slice is normalized to an empty list so the sources field is always
// present on the wire; zero retrieved documents is a valid outcome.
func (w *streamWriter) WriteSources(sources []datatypes.Source) error {
	if sources == nil {
		sources = []datatypes.Source{}
	}
	return w.WriteEvent(datatypes.StreamEvent{
		Type:    datatypes.EventSources,
		Sources: &sources,
	})
}

// WriteTicker writes a ticker event with a detected stock symbol.
func (w *streamWriter) WriteTicker(symbol string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:   datatypes.EventTicker,
		Symbol: symbol,
	})
}

// WriteAnswerChunk writes an answer event with one chunk of generated text.
func (w *streamWriter) WriteAnswerChunk(content string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:    datatypes.EventAnswer,
		Content: content,
	})
}

// WriteFollowUpQuestions writes the follow_up_questions event.
//
// A nil slice is normalized to an empty list so the questions field is
// always present on the wire.
func (w *streamWriter) WriteFollowUpQuestions(questions []string) error {
	if questions == nil {
		questions = []string{}
	}
	return w.WriteEvent(datatypes.StreamEvent{
		Type:      datatypes.EventFollowUpQuestions,
		Questions: &questions,
	})
}

// WriteComplete writes the terminal complete event.
func (w *streamWriter) WriteComplete() error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type: datatypes.EventComplete,
	})
}

// WriteError writes a terminal error event.
//
// The message must already be sanitized for client display; internal error
// detail stays in the server logs.
func (w *streamWriter) WriteError(errMsg string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:  datatypes.EventError,
		Error: errMsg,
	})
}

// WriteKeepAlive sends a comment line to keep the connection alive.
//
// # Description
//
// Writes an SSE comment (": ping\n\n") to keep the TCP connection active
// during long operations. Comments are ignored by SSE clients but reset
// load balancer timeout counters (AWS ALB, Nginx default 60s).
func (w *streamWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}

	w.flusher.Flush()
	return nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// StreamProtocolVersion identifies the event vocabulary on the wire so
// clients can detect incompatible server upgrades.
const StreamProtocolVersion = "v1"

// SetStreamHeaders configures HTTP response headers for the answer stream.
//
// # Description
//
// Sets the required Server-Sent Events headers:
//   - Content-Type: text/event-stream
//   - Cache-Control: no-cache
//   - Connection: keep-alive
//   - X-Accel-Buffering: no (disables nginx buffering)
//   - X-Stream-Protocol: event vocabulary version
//
// Must be called before writing any response body.
func SetStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Stream-Protocol", StreamProtocolVersion)
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ StreamWriter = (*streamWriter)(nil)
