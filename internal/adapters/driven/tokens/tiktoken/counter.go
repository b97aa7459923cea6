// Package tiktoken provides a TokenCounter backed by a BPE tokenizer.
//
// Claude's tokenizer is not published; cl100k_base counts land within a few
// percent of it for Italian and English text, close enough for a history budget.
// The encoding is fetched (or read from the tiktoken cache) on first use. When
// it cannot be loaded the counter falls back to four characters per token.
package tiktoken

import (
	"sync"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
	"github.com/custodia-labs/vetrina/internal/logger"
)

// Ensure Counter implements the interface.
var _ driven.TokenCounter = (*Counter)(nil)

// DefaultEncoding is the BPE encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

const fallbackCharsPerToken = 4

// Counter counts tokens with a lazily loaded tiktoken encoding.
type Counter struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	loadEnc  func(string) (*tiktoken.Tiktoken, error)
}

// NewCounter creates a counter for encoding (DefaultEncoding when empty).
func NewCounter(encoding string) *Counter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	return &Counter{encoding: encoding, loadEnc: tiktoken.GetEncoding}
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(c.load)
	if c.enc == nil {
		return Estimate(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Exact reports whether the tokenizer loaded, so counts are not estimates.
func (c *Counter) Exact() bool {
	c.once.Do(c.load)
	return c.enc != nil
}

func (c *Counter) load() {
	enc, err := c.loadEnc(c.encoding)
	if err != nil {
		logger.Warn("Tokenizer %s unavailable, estimating tokens: %v", c.encoding, err)
		return
	}
	c.enc = enc
}

// Estimate approximates the token count of text from its length in runes.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + fallbackCharsPerToken - 1) / fallbackCharsPerToken
}
