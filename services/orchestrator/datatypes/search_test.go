// Copyright (C) 2025 fireplex contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerStreamRequest_EffectiveQuery(t *testing.T) {
	tests := []struct {
		name string
		req  AnswerStreamRequest
		want string
	}{
		{
			name: "last message wins over query field",
			req: AnswerStreamRequest{
				Messages: []Message{
					{Role: "user", Content: "first"},
					{Role: "user", Content: "second"},
				},
				Query: "ignored",
			},
			want: "second",
		},
		{
			name: "query field used when no messages",
			req:  AnswerStreamRequest{Query: "raw query"},
			want: "raw query",
		},
		{
			name: "query field used when last message empty",
			req: AnswerStreamRequest{
				Messages: []Message{{Role: "user", Content: ""}},
				Query:    "fallback",
			},
			want: "fallback",
		},
		{
			name: "empty when nothing provided",
			req:  AnswerStreamRequest{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.EffectiveQuery())
		})
	}
}

func TestAnswerStreamRequest_IsFollowUp(t *testing.T) {
	fresh := AnswerStreamRequest{Messages: []Message{{Role: "user", Content: "q"}}}
	assert.False(t, fresh.IsFollowUp())

	pair := AnswerStreamRequest{Messages: []Message{
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
	}}
	assert.False(t, pair.IsFollowUp())

	followUp := AnswerStreamRequest{Messages: []Message{
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
		{Role: "user", Content: "next"},
	}}
	assert.True(t, followUp.IsFollowUp())
}

func TestAnswerStreamRequest_EnsureDefaults(t *testing.T) {
	req := AnswerStreamRequest{}
	req.EnsureDefaults()
	assert.Len(t, req.RequestID, 8)

	req2 := AnswerStreamRequest{RequestID: "caller-id"}
	req2.EnsureDefaults()
	assert.Equal(t, "caller-id", req2.RequestID)
}

func TestAnswerStreamRequest_Validate(t *testing.T) {
	valid := AnswerStreamRequest{Messages: []Message{{Role: "user", Content: "q"}}}
	assert.NoError(t, valid.Validate())

	badRole := AnswerStreamRequest{Messages: []Message{{Role: "wizard", Content: "q"}}}
	assert.Error(t, badRole.Validate())
}

func TestMapDocuments(t *testing.T) {
	docs := []SearchDocument{
		{URL: "https://a.example/one", Title: "First", Markdown: "# md"},
		{URL: "https://b.example/two", Content: "plain text"},
	}

	sources := MapDocuments(docs)
	require.Len(t, sources, 2)

	assert.Equal(t, "First", sources[0].Title)
	assert.Equal(t, "# md", sources[0].Markdown)

	// Missing title falls back to the URL.
	assert.Equal(t, "https://b.example/two", sources[1].Title)
	assert.Equal(t, "plain text", sources[1].Content)
}

func TestMapDocuments_Empty(t *testing.T) {
	sources := MapDocuments(nil)
	require.NotNil(t, sources)
	assert.Empty(t, sources)
}

func TestStreamEvent_QuestionsSerialization(t *testing.T) {
	// Empty question lists must still appear on the wire.
	empty := []string{}
	ev := StreamEvent{Type: EventFollowUpQuestions, Questions: &empty}
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"questions":[]`)

	// Other event types omit the field entirely.
	status := StreamEvent{Type: EventStatus, Message: "Starting search..."}
	data, err = json.Marshal(status)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "questions")
}

func TestStreamEvent_SourcesSerialization(t *testing.T) {
	// Zero retrieved sources must still appear on the wire.
	empty := []Source{}
	ev := StreamEvent{Type: EventSources, Sources: &empty}
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sources":[]`)

	status := StreamEvent{Type: EventStatus, Message: "Starting search..."}
	data, err = json.Marshal(status)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sources")
}
