package knowledgebase

import (
	"github.com/pkoukk/tiktoken-go"
)

// tokenEncoding is the encoding used by the embedding models the companion
// server talks to.
const tokenEncoding = "cl100k_base"

// Tokenizer estimates how many tokens a document occupies.
type Tokenizer interface {
	CountTokens(text string) int
}

// TiktokenTokenizer counts tokens with a BPE encoding.
type TiktokenTokenizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenizer loads the cl100k_base encoding. Loading may need network
// access the first time, so callers should be ready to fall back to
// ApproxTokenizer.
func NewTokenizer() (*TiktokenTokenizer, error) {
	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenTokenizer{encoding: enc}, nil
}

// CountTokens returns the exact number of tokens in text.
func (t *TiktokenTokenizer) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// ApproxTokenizer estimates one token per four bytes.
type ApproxTokenizer struct{}

// CountTokens returns a rough token estimate for text.
func (ApproxTokenizer) CountTokens(text string) int {
	return (len(text) + 3) / 4
}
