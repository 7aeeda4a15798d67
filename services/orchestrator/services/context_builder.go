// Copyright (C) 2025 fireplex contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ArmDaniel/fireplex/services/orchestrator/datatypes"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// maxSourceChars caps how much of one source enters the prompt.
	maxSourceChars = 2000

	// truncationMarker is appended when a source is cut at maxSourceChars.
	truncationMarker = "..."

	// sourceSeparator joins formatted source blocks in the prompt.
	sourceSeparator = "\n\n---\n\n"

	// MaxFollowUpQuestions caps the follow_up_questions event payload.
	MaxFollowUpQuestions = 5
)

// answerSystemPrompt steers fresh-query answer generation. Citation markers
// must match source order so the client can link [n] to the sources event.
const answerSystemPrompt = `You are a friendly assistant that helps users find information.

RESPONSE STYLE:
- For greetings (hi, hello), respond warmly and ask how you can help
- For simple questions, give direct, concise answers
- For complex topics, provide detailed explanations only when needed
- Match the user's energy level - be brief if they're brief

FORMAT:
- Use markdown for readability when appropriate
- Keep responses natural and conversational
- Include citations inline as [1], [2], etc. when referencing specific sources
- Citations should correspond to the source order (first source = [1], second = [2], etc.)
- Use the format [1] not CITATION_1 or any other format`

// followUpAnswerSystemPrompt steers answer generation when the request
// continues an existing conversation.
const followUpAnswerSystemPrompt = `You are a friendly assistant continuing our conversation.

REMEMBER:
- Keep the same conversational tone from before
- Build on previous context naturally
- Match the user's communication style
- Use markdown when it helps clarity
- Include citations inline as [1], [2], etc. when referencing specific sources
- Citations should correspond to the source order (first source = [1], second = [2], etc.)
- Use the format [1] not CITATION_1 or any other format`

// questionsSystemPrompt steers follow-up question generation. The model may
// return an empty response; zero questions is a valid outcome.
const questionsSystemPrompt = `Generate 5 natural follow-up questions based on the query and context.

ONLY generate questions if the query warrants them:
- Skip for simple greetings or basic acknowledgments
- Create questions that feel natural, not forced
- Make them genuinely helpful, not just filler
- Focus on the topic and sources available

If the query doesn't need follow-ups, return an empty response.
%sReturn only the questions, one per line, no numbering or bullets.`

// questionsHistoryHint is spliced into questionsSystemPrompt for
// conversation continuations.
const questionsHistoryHint = "Consider the full conversation history and avoid repeating previous questions.\n"

// =============================================================================
// Context Assembly
// =============================================================================

// BuildContext assembles the generation context from retrieved sources.
//
// # Description
//
// Formats each source as a numbered citation block:
//
//	[n] title
//	URL: url
//	text
//
// where n is the 1-based position, text prefers Markdown over Content
// (empty when both are missing), and text longer than 2000 characters is
// cut at 2000 and suffixed with "...". Blocks are joined by a "---"
// separator line. Pure function, no I/O.
//
// # Inputs
//
//   - sources: Retrieved sources in citation order.
//
// # Outputs
//
//   - string: Assembled context. Empty string for zero sources.
func BuildContext(sources []datatypes.Source) string {
	blocks := make([]string, 0, len(sources))
	for i, src := range sources {
		text := src.Markdown
		if text == "" {
			text = src.Content
		}
		text = truncateRunes(text, maxSourceChars)
		blocks = append(blocks, fmt.Sprintf("[%d] %s\nURL: %s\n%s", i+1, src.Title, src.URL, text))
	}
	return strings.Join(blocks, sourceSeparator)
}

// truncateRunes cuts text to limit characters, appending the truncation
// marker. The cut lands on a rune boundary so multibyte text stays valid
// UTF-8.
func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + truncationMarker
}

// BuildAnswerMessages constructs the chat messages for answer generation.
//
// # Description
//
// Fresh queries get a two-message prompt (system + grounded user turn).
// Conversation continuations get the continuation system prompt, the full
// prior history minus the final user turn, then a grounded user turn
// carrying the current query and the freshly retrieved context. History
// roles pass through unchanged.
//
// # Inputs
//
//   - query: The effective user query.
//   - contextText: Output of BuildContext. May be empty.
//   - history: Full conversation history from the request.
//   - isFollowUp: Whether this continues an existing conversation.
//
// # Outputs
//
//   - []datatypes.Message: Messages ready for the LLM client.
func BuildAnswerMessages(query, contextText string, history []datatypes.Message, isFollowUp bool) []datatypes.Message {
	grounded := datatypes.Message{
		Role:    "user",
		Content: fmt.Sprintf("Answer this query: \"%s\"\n\nBased on these sources:\n%s", query, contextText),
	}

	if !isFollowUp {
		return []datatypes.Message{
			{Role: "system", Content: answerSystemPrompt},
			grounded,
		}
	}

	messages := make([]datatypes.Message, 0, len(history)+1)
	messages = append(messages, datatypes.Message{Role: "system", Content: followUpAnswerSystemPrompt})
	if len(history) > 0 {
		messages = append(messages, history[:len(history)-1]...)
	}
	return append(messages, grounded)
}

// =============================================================================
// Follow-Up Questions
// =============================================================================

// ConversationPreview renders the conversation as "role: content" lines for
// the follow-up question prompt. Fresh queries render as a single user line.
func ConversationPreview(query string, history []datatypes.Message, isFollowUp bool) string {
	if !isFollowUp {
		return "user: " + query
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return strings.Join(lines, "\n\n")
}

// BuildFollowUpMessages constructs the chat messages for follow-up question
// generation.
//
// # Inputs
//
//   - query: The effective user query.
//   - preview: Output of ConversationPreview.
//   - sources: Retrieved sources; titles are listed in the prompt.
//   - isFollowUp: Adds the history hint to the system prompt when true.
//
// # Outputs
//
//   - []datatypes.Message: Messages ready for the LLM client.
func BuildFollowUpMessages(query, preview string, sources []datatypes.Source, isFollowUp bool) []datatypes.Message {
	hint := ""
	if isFollowUp {
		hint = questionsHistoryHint
	}

	var sourcesLine string
	if len(sources) > 0 {
		titles := make([]string, 0, len(sources))
		for _, s := range sources {
			titles = append(titles, s.Title)
		}
		sourcesLine = fmt.Sprintf("Available sources about: %s\n\n", strings.Join(titles, ", "))
	}

	userPrompt := fmt.Sprintf(
		"Query: %s\n\nConversation context:\n%s\n\n%sGenerate 5 diverse follow-up questions that would help the user learn more about this topic from different angles.",
		query, preview, sourcesLine,
	)

	return []datatypes.Message{
		{Role: "system", Content: fmt.Sprintf(questionsSystemPrompt, hint)},
		{Role: "user", Content: userPrompt},
	}
}

// ParseFollowUpQuestions extracts questions from raw model output.
//
// # Description
//
// Splits on newlines, trims whitespace, drops empty lines, and keeps at
// most MaxFollowUpQuestions. An empty or whitespace-only response yields an
// empty, non-nil slice.
func ParseFollowUpQuestions(raw string) []string {
	questions := make([]string, 0, MaxFollowUpQuestions)
	for _, line := range strings.Split(raw, "\n") {
		q := strings.TrimSpace(line)
		if q == "" {
			continue
		}
		questions = append(questions, q)
		if len(questions) == MaxFollowUpQuestions {
			break
		}
	}
	return questions
}
