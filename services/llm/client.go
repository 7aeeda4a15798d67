// Copyright (C) 2025 fireplex contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm abstracts the hosted language-model backend used for answer
// generation. The orchestrator depends only on the LLMClient interface; the
// concrete backend is selected at startup from environment configuration.
package llm

import (
	"context"

	"github.com/ArmDaniel/fireplex/services/orchestrator/datatypes"
)

// GenerationParams carries per-call sampling parameters. Nil pointer fields
// mean "use the backend default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// StreamEventType discriminates events delivered to a StreamCallback.
type StreamEventType string

const (
	// StreamEventToken is an incremental fragment of generated text.
	StreamEventToken StreamEventType = "token"

	// StreamEventError reports a mid-stream backend failure.
	StreamEventError StreamEventType = "error"
)

// StreamEvent is a single unit of streamed generation output.
type StreamEvent struct {
	Type    StreamEventType
	Content string
	Error   string
}

// StreamCallback is invoked for each event during streaming generation.
//
// The callback is called in token order from a single goroutine. Returning a
// non-nil error aborts the stream (used on client disconnect).
type StreamCallback func(event StreamEvent) error

// LLMClient defines the contract for any generation backend.
//
// # Description
//
// Two call shapes are needed by the orchestrator: a buffered chat completion
// (the follow-up question batch) and a token-streaming chat completion (the
// answer). Implementations must be safe for concurrent use; the orchestrator
// runs both calls at once within a single request.
type LLMClient interface {
	// Chat runs a chat completion and returns the full response text.
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)

	// ChatStream runs a chat completion, delivering incremental output to
	// callback as it is produced. Returns after the stream is exhausted or
	// on the first error (including a non-nil callback return).
	ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, callback StreamCallback) error
}
