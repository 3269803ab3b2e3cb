package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "GLOBAL TRADE", "global trade"},
		{"strips punctuation", "A.B.C. Trading, S.A.", "a b c trading s a"},
		{"drops corporate suffixes", "Global Trade Finance Bank Ltd", "global trade finance"},
		{"drops incorporated", "Acme Incorporated", "acme"},
		{"collapses whitespace", "  Acme   Trading  ", "acme trading"},
		{"empty input", "", ""},
		{"only stop words", "Bank Ltd Corp", ""},
		{"keeps underscores", "acme_trading", "acme_trading"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Global Trade Finance Bank Ltd", "A.B.C. Trading, S.A.", "  Acme  "}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalizing twice must not change the result")
	}
}

func TestSimilarity(t *testing.T) {
	t.Run("identical strings score 100", func(t *testing.T) {
		assert.Equal(t, 100, Similarity("global trade", "global trade"))
	})

	t.Run("both empty score 100", func(t *testing.T) {
		assert.Equal(t, 100, Similarity("", ""))
	})

	t.Run("one empty scores 0", func(t *testing.T) {
		assert.Equal(t, 0, Similarity("acme", ""))
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.Equal(t, Similarity("meridian", "meridixx"), Similarity("meridixx", "meridian"))
	})

	t.Run("single edit on eight runes", func(t *testing.T) {
		// (8+8-2*1)*100/16 = 87
		assert.Equal(t, 87, Similarity("meridian", "meridial"))
	})

	t.Run("never negative", func(t *testing.T) {
		assert.GreaterOrEqual(t, Similarity("ab", "wxyzwxyzwxyz"), 0)
	})
}
