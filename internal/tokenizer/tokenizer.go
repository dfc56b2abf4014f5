// Package tokenizer counts tokens and reports model token budgets.
package tokenizer

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrInvalidLimit is returned when a tokenizer is built without usable limits.
var ErrInvalidLimit = errors.New("tokenizer: invalid limit")

// Tokenizer counts tokens for a model.
type Tokenizer interface {
	CountTokens(text string) int
	MaxInputTokens() int
	MaxOutputTokens() int
}

// SimpleTokenizer approximates tokens as a fixed number of characters. It has
// no model to derive limits from, so both limits must be given.
type SimpleTokenizer struct {
	charactersPerToken int
	maxInputTokens     int
	maxOutputTokens    int
}

// NewSimpleTokenizer creates a SimpleTokenizer.
func NewSimpleTokenizer(charactersPerToken, maxInputTokens, maxOutputTokens int) (*SimpleTokenizer, error) {
	if charactersPerToken <= 0 {
		return nil, fmt.Errorf("%w: characters per token must be positive, got %d", ErrInvalidLimit, charactersPerToken)
	}
	if maxInputTokens <= 0 {
		return nil, fmt.Errorf("%w: max input tokens must be set explicitly", ErrInvalidLimit)
	}
	if maxOutputTokens <= 0 {
		return nil, fmt.Errorf("%w: max output tokens must be set explicitly", ErrInvalidLimit)
	}

	return &SimpleTokenizer{
		charactersPerToken: charactersPerToken,
		maxInputTokens:     maxInputTokens,
		maxOutputTokens:    maxOutputTokens,
	}, nil
}

// CountTokens returns ceil(characters / charactersPerToken).
func (t *SimpleTokenizer) CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + t.charactersPerToken - 1) / t.charactersPerToken
}

func (t *SimpleTokenizer) MaxInputTokens() int  { return t.maxInputTokens }
func (t *SimpleTokenizer) MaxOutputTokens() int { return t.maxOutputTokens }

// RemainingOutputTokens returns how many tokens a model may still generate for
// the given prompt, never more than MaxOutputTokens and never negative.
func RemainingOutputTokens(t Tokenizer, prompt string) int {
	left := t.MaxInputTokens() - t.CountTokens(prompt)
	if left > t.MaxOutputTokens() {
		left = t.MaxOutputTokens()
	}
	if left < 0 {
		return 0
	}
	return left
}
