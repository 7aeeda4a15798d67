// Copyright (C) 2025 fireplex contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the HTTP handlers for the orchestrator service.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ArmDaniel/fireplex/services/llm"
	"github.com/ArmDaniel/fireplex/services/orchestrator/datatypes"
	"github.com/ArmDaniel/fireplex/services/orchestrator/observability"
	"github.com/ArmDaniel/fireplex/services/orchestrator/services"
	"github.com/ArmDaniel/fireplex/services/orchestrator/ticker"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// heartbeatInterval is the interval for sending keepalive pings.
	// 15s is well under typical load balancer timeouts (ALB 60s, Nginx 60s).
	heartbeatInterval = 15 * time.Second

	// sourcesRenderDelay is the pause between the sources event and the
	// first generation status. Clients rely on this gap to render the
	// source list before answer text starts arriving.
	sourcesRenderDelay = 300 * time.Millisecond

	// answerMaxTokens caps the streamed answer length.
	answerMaxTokens = 2000

	// followUpMaxTokens caps the follow-up question generation.
	followUpMaxTokens = 150

	// generationTemperature applies to both generation tasks.
	generationTemperature = 0.7
)

// Progress messages emitted as status events, in order.
const (
	statusStarting   = "Starting search..."
	statusSearching  = "Searching for relevant sources..."
	statusGenerating = "Analyzing sources and generating answer..."
)

// Client-facing error messages. Internal detail stays in the logs.
const (
	clientErrSearch     = "Search service error"
	clientErrGeneration = "Answer generation failed"
	clientErrUnknown    = "Unknown error"
)

// =============================================================================
// Interface Definition
// =============================================================================

// AnswerStreamHandler handles answer-stream HTTP requests.
//
// # Description
//
// Orchestrates one answer-stream request end to end: retrieval via the
// search service, context assembly, and concurrent answer plus follow-up
// question generation, all surfaced to the client as an ordered SSE event
// stream.
//
// # Event Ordering
//
// Success path:
//
//	status -> status -> sources -> status -> [ticker] -> answer* ->
//	follow_up_questions -> complete
//
// Failure after streaming starts ends with a single error event instead;
// no complete event follows an error.
type AnswerStreamHandler interface {
	// HandleAnswerStream handles POST /v1/answer/stream.
	HandleAnswerStream(c *gin.Context)
}

// =============================================================================
// Struct Definition
// =============================================================================

// answerStreamHandler implements AnswerStreamHandler.
//
// # Fields
//
//   - llmClient: Backend for both generation tasks. Nil when the API key is
//     missing; requests then fail with a configuration error.
//   - searchClient: Search-service client. Required.
//   - tracer: OpenTelemetry tracer for request spans.
type answerStreamHandler struct {
	llmClient    llm.LLMClient
	searchClient *services.SearchClient
	tracer       trace.Tracer
}

// =============================================================================
// Constructor
// =============================================================================

// NewAnswerStreamHandler creates an AnswerStreamHandler.
//
// # Inputs
//
//   - llmClient: LLM backend. May be nil; requests fail with HTTP 500 until
//     the service is configured with an API key.
//   - searchClient: Search-service client. Must not be nil.
//   - tracer: Tracer for request spans.
//
// # Outputs
//
//   - AnswerStreamHandler: Ready to serve requests.
//
// # Limitations
//
//   - Panics if searchClient is nil. That is a wiring bug, not a runtime
//     condition.
func NewAnswerStreamHandler(
	llmClient llm.LLMClient,
	searchClient *services.SearchClient,
	tracer trace.Tracer,
) AnswerStreamHandler {
	if searchClient == nil {
		panic("NewAnswerStreamHandler: searchClient is required")
	}
	return &answerStreamHandler{
		llmClient:    llmClient,
		searchClient: searchClient,
		tracer:       tracer,
	}
}

// =============================================================================
// Handler
// =============================================================================

// HandleAnswerStream handles POST /v1/answer/stream.
//
// # Description
//
// Pre-stream failures (validation, missing configuration) return plain JSON
// error responses. Once the SSE stream is open, every failure is reported
// as a terminal error event on the stream; the HTTP status is already 200
// at that point.
//
// # Inputs
//
//   - c: Gin context carrying the AnswerStreamRequest body.
func (h *answerStreamHandler) HandleAnswerStream(c *gin.Context) {
	startTime := time.Now()
	endpoint := observability.EndpointAnswerStream

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleAnswerStream")
	defer span.End()

	if m := observability.DefaultMetrics; m != nil {
		m.StreamStarted(endpoint)
		defer m.StreamEnded(endpoint)
	}

	success := false
	defer func() {
		if m := observability.DefaultMetrics; m != nil {
			duration := time.Since(startTime).Seconds()
			m.RecordRequest(endpoint, success)
			m.RecordStreamDuration(endpoint, duration, success)
		}
	}()

	// Step 1: Parse request body
	var req datatypes.AnswerStreamRequest
	if err := c.BindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request body")
		slog.Error("Failed to parse answer stream request", "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req.EnsureDefaults()
	span.SetAttributes(
		attribute.String("request.id", req.RequestID),
		attribute.Int("request.message_count", len(req.Messages)),
	)

	// Step 2: Validate request
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		slog.Error("Answer stream request validation failed",
			"error", err,
			"requestId", req.RequestID,
		)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	query := req.EffectiveQuery()
	if query == "" {
		span.SetStatus(codes.Error, "missing query")
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeValidation)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query is required"})
		return
	}
	slog.Info("Answer stream query received",
		"requestId", req.RequestID,
		"queryLength", len(query),
		"isFollowUp", req.IsFollowUp(),
	)

	// Step 3: Configuration check before committing to a stream
	if h.llmClient == nil {
		span.SetStatus(codes.Error, "llm client not configured")
		slog.Error("Answer stream rejected, LLM client not configured",
			"requestId", req.RequestID,
		)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeConfiguration)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "OpenAI API key not configured"})
		return
	}

	// Step 4: Set SSE headers and create writer
	SetStreamHeaders(c.Writer)
	writer, err := NewStreamWriter(c.Writer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "SSE setup failed")
		slog.Error("Failed to create stream writer",
			"error", err,
			"requestId", req.RequestID,
		)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeInternal)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	// Step 5: Opening status events
	if err := writer.WriteStatus(statusStarting); err != nil {
		slog.Error("Failed to write status event", "error", err, "requestId", req.RequestID)
		return
	}
	if err := writer.WriteStatus(statusSearching); err != nil {
		slog.Error("Failed to write status event", "error", err, "requestId", req.RequestID)
		return
	}

	// Step 6: Start heartbeat goroutine to prevent connection timeouts
	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go h.runHeartbeat(ctx, writer, endpoint, heartbeatDone)

	// Step 7: Retrieval
	searchStart := time.Now()
	sources, err := h.searchClient.Search(ctx, req.RequestID, query)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordSearchDuration(endpoint, time.Since(searchStart).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		slog.Error("Search service call failed",
			"error", err,
			"requestId", req.RequestID,
		)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeSearchError)
		}
		_ = writer.WriteError(clientErrSearch)
		return
	}
	span.SetAttributes(attribute.Int("search.source_count", len(sources)))
	if m := observability.DefaultMetrics; m != nil {
		m.RecordSources(endpoint, len(sources))
	}

	// Step 8: Emit sources, then give the client time to render them
	// before generation status and answer text arrive.
	if err := writer.WriteSources(sources); err != nil {
		slog.Error("Failed to write sources event", "error", err, "requestId", req.RequestID)
		return
	}
	select {
	case <-ctx.Done():
		if m := observability.DefaultMetrics; m != nil {
			m.RecordClientDisconnect(endpoint)
		}
		return
	case <-time.After(sourcesRenderDelay):
	}

	if err := writer.WriteStatus(statusGenerating); err != nil {
		slog.Error("Failed to write status event", "error", err, "requestId", req.RequestID)
		return
	}

	// Step 9: Ticker detection. A miss is not an error; no event is emitted.
	if symbol := ticker.Detect(query); symbol != "" {
		slog.Info("Detected company ticker",
			"requestId", req.RequestID,
			"symbol", symbol,
		)
		if err := writer.WriteTicker(symbol); err != nil {
			slog.Error("Failed to write ticker event", "error", err, "requestId", req.RequestID)
			return
		}
	}

	// Step 10: Assemble generation inputs
	contextText := services.BuildContext(sources)
	span.SetAttributes(attribute.Int("context.length", len(contextText)))
	answerMessages := services.BuildAnswerMessages(query, contextText, req.Messages, req.IsFollowUp())
	preview := services.ConversationPreview(query, req.Messages, req.IsFollowUp())
	followUpMessages := services.BuildFollowUpMessages(query, preview, sources, req.IsFollowUp())

	// Step 11: Generate answer and follow-up questions concurrently.
	// The answer streams through the writer as chunks arrive; follow-up
	// questions buffer until the answer finishes.
	var (
		chunkCount     int32
		firstChunkTime time.Time
		answerText     strings.Builder
		followUpRaw    string
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		params := llm.GenerationParams{
			Temperature: floatPtr(generationTemperature),
			MaxTokens:   intPtr(answerMaxTokens),
		}
		callback := func(event llm.StreamEvent) error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			switch event.Type {
			case llm.StreamEventToken:
				if firstChunkTime.IsZero() {
					firstChunkTime = time.Now()
				}
				atomic.AddInt32(&chunkCount, 1)
				answerText.WriteString(event.Content)
				return writer.WriteAnswerChunk(event.Content)
			case llm.StreamEventError:
				return fmt.Errorf("generation stream error: %s", event.Error)
			}
			return nil
		}
		return h.llmClient.ChatStream(gctx, answerMessages, params, callback)
	})

	g.Go(func() error {
		params := llm.GenerationParams{
			Temperature: floatPtr(generationTemperature),
			MaxTokens:   intPtr(followUpMaxTokens),
		}
		text, err := h.llmClient.Chat(gctx, followUpMessages, params)
		if err != nil {
			return fmt.Errorf("follow-up generation: %w", err)
		}
		followUpRaw = text
		return nil
	})

	if genErr := g.Wait(); genErr != nil {
		span.RecordError(genErr)
		span.SetStatus(codes.Error, "generation failed")
		span.SetAttributes(attribute.Int("stream.chunk_count", int(atomic.LoadInt32(&chunkCount))))
		slog.Error("Answer generation failed",
			"error", genErr,
			"requestId", req.RequestID,
			"chunkCount", atomic.LoadInt32(&chunkCount),
		)

		if errors.Is(genErr, context.Canceled) {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordError(endpoint, observability.ErrorCodeClientDisconnect)
				m.RecordClientDisconnect(endpoint)
			}
			// Client is gone; writing an error event is pointless.
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.RecordError(endpoint, observability.ErrorCodeLLMError)
		}
		_ = writer.WriteError(clientErrGeneration)
		return
	}

	if !firstChunkTime.IsZero() {
		ttfc := firstChunkTime.Sub(startTime).Seconds()
		span.SetAttributes(attribute.Float64("stream.time_to_first_chunk_seconds", ttfc))
		if m := observability.DefaultMetrics; m != nil {
			m.RecordTimeToFirstChunk(endpoint, ttfc)
		}
	}
	span.SetAttributes(
		attribute.Int("stream.chunk_count", int(atomic.LoadInt32(&chunkCount))),
		attribute.Int("stream.answer_length", answerText.Len()),
	)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordChunks(endpoint, int(atomic.LoadInt32(&chunkCount)))
	}

	// Step 12: Follow-up questions, then terminal complete event
	questions := services.ParseFollowUpQuestions(followUpRaw)
	if err := writer.WriteFollowUpQuestions(questions); err != nil {
		slog.Error("Failed to write follow-up questions event", "error", err, "requestId", req.RequestID)
		return
	}
	if err := writer.WriteComplete(); err != nil {
		slog.Error("Failed to write complete event", "error", err, "requestId", req.RequestID)
		return
	}

	success = true
	slog.Info("Answer stream completed",
		"requestId", req.RequestID,
		"chunkCount", atomic.LoadInt32(&chunkCount),
		"questionCount", len(questions),
		"durationMs", time.Since(startTime).Milliseconds(),
	)
}

// =============================================================================
// Helper Methods
// =============================================================================

// runHeartbeat sends periodic keepalive pings to prevent connection timeouts.
//
// # Description
//
// Runs in a separate goroutine, sending SSE comments every heartbeatInterval
// to keep the connection alive during long operations (search, generation).
// Stops when the done channel is closed or the context is cancelled.
//
// # Limitations
//
//   - A keepalive write failure stops the heartbeat but not the stream.
func (h *answerStreamHandler) runHeartbeat(
	ctx context.Context,
	writer StreamWriter,
	endpoint observability.Endpoint,
	done <-chan struct{},
) {
	t := time.NewTicker(heartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			if err := writer.WriteKeepAlive(); err != nil {
				slog.Debug("Failed to write keepalive", "error", err)
				return
			}
			if m := observability.DefaultMetrics; m != nil {
				m.RecordKeepAlive(endpoint)
			}
		}
	}
}

func floatPtr(v float32) *float32 { return &v }

func intPtr(v int) *int { return &v }
