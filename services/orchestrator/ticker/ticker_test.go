// Copyright (C) 2025 fireplex contributors
// Tests for company ticker detection

package ticker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect_CompanyNames(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"latest apple earnings report", "AAPL"},
		{"Tesla delivery numbers Q3", "TSLA"},
		{"what is Alphabet working on", "GOOGL"},
		{"google cloud revenue", "GOOGL"},
		{"meta ai announcements", "META"},
		{"FACEBOOK privacy settlement", "META"},
		{"nvidia gpu shortage", "NVDA"},
		{"bank of america mortgage rates", "BAC"},
		{"coca-cola dividend history", "KO"},
		{"taiwan semiconductor fab expansion", "TSM"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.query))
		})
	}
}

func TestDetect_ExplicitSymbol(t *testing.T) {
	assert.Equal(t, "AAPL", Detect("thoughts on $AAPL this quarter"))
	assert.Equal(t, "F", Detect("is $F undervalued"))

	// Explicit symbols win over name matches.
	assert.Equal(t, "MSFT", Detect("$MSFT versus apple"))
}

func TestDetect_NoMatch(t *testing.T) {
	assert.Empty(t, Detect("how do I bake sourdough bread"))
	assert.Empty(t, Detect(""))
	// Lowercase after $ is not a symbol.
	assert.Empty(t, Detect("it costs $5 apiece"))
}

func TestDetect_WordBoundaries(t *testing.T) {
	// Substring inside a longer word does not match.
	assert.Empty(t, Detect("pineapple recipes"))
	assert.Empty(t, Detect("metamorphosis of insects"))

	// Punctuation still counts as a boundary.
	assert.Equal(t, "AAPL", Detect("apple, and others"))
}

func TestDetect_LongestNameWins(t *testing.T) {
	// "general motors" must match as a whole, not stop at a shorter name.
	assert.Equal(t, "GM", Detect("general motors ev strategy"))
	assert.Equal(t, "GS", Detect("goldman sachs bonus pool"))
}
