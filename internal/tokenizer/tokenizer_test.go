package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimpleTokenizer_RequiresLimits(t *testing.T) {
	_, err := NewSimpleTokenizer(4, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = NewSimpleTokenizer(4, 10, 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = NewSimpleTokenizer(0, 10, 10)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestSimpleTokenizer_CountTokens(t *testing.T) {
	tok, err := NewSimpleTokenizer(4, 2000, 100)
	require.NoError(t, err)

	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"héllo wörld", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tok.CountTokens(tt.text), "text %q", tt.text)
	}
	assert.Equal(t, 2000, tok.MaxInputTokens())
	assert.Equal(t, 100, tok.MaxOutputTokens())
}

func TestRemainingOutputTokens(t *testing.T) {
	tok, err := NewSimpleTokenizer(1, 10, 4)
	require.NoError(t, err)

	assert.Equal(t, 4, RemainingOutputTokens(tok, "ab"))
	assert.Equal(t, 2, RemainingOutputTokens(tok, "abcdefgh"))
	assert.Equal(t, 0, RemainingOutputTokens(tok, "abcdefghijkl"))
}
