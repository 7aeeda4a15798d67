// Copyright (C) 2025 fireplex contributors
// Tests for the OpenAI client

package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArmDaniel/fireplex/services/orchestrator/datatypes"
)

func newFakeOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  "gpt-4o",
	}
}

func TestNewOpenAIClient_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIClient()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestNewOpenAIClient_FromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")

	client, err := NewOpenAIClient()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", client.model)
}

func TestOpenAIClient_Chat(t *testing.T) {
	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "hello back"},
				"finish_reason": "stop"
			}]
		}`)
	})

	messages := []datatypes.Message{{Role: "user", Content: "hello"}}
	got, err := client.Chat(context.Background(), messages, GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "hello back", got)
}

func TestOpenAIClient_Chat_NoChoices(t *testing.T) {
	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "chatcmpl-2", "object": "chat.completion", "choices": []}`)
	})

	_, err := client.Chat(context.Background(), []datatypes.Message{{Role: "user", Content: "hi"}}, GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestOpenAIClient_ChatStream(t *testing.T) {
	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{"Hello", " world"}
		for i, c := range chunks {
			fmt.Fprintf(w, "data: {\"id\":\"chatcmpl-3\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":%d,\"delta\":{\"content\":%q}}]}\n\n", i, c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var tokens []string
	callback := func(event StreamEvent) error {
		if event.Type == StreamEventToken {
			tokens = append(tokens, event.Content)
		}
		return nil
	}

	err := client.ChatStream(context.Background(), []datatypes.Message{{Role: "user", Content: "hi"}}, GenerationParams{}, callback)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", " world"}, tokens)
}

func TestOpenAIClient_ChatStream_CallbackAborts(t *testing.T) {
	client := newFakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 10; i++ {
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"t\"}}]}\n\n")
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	abort := fmt.Errorf("stop now")
	count := 0
	callback := func(event StreamEvent) error {
		count++
		if count == 3 {
			return abort
		}
		return nil
	}

	err := client.ChatStream(context.Background(), []datatypes.Message{{Role: "user", Content: "hi"}}, GenerationParams{}, callback)
	assert.ErrorIs(t, err, abort)
	assert.Equal(t, 3, count)
}
