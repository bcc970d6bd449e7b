package segmenter

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures text against the configured chunk budgets.
// Counters must be monotone: counting a prefix never exceeds counting the
// whole string. The packing walk relies on this for its binary searches.
type TokenCounter func(text string) int

const (
	// tokensPerChar is the heuristic sub-word density: ~4 chars per token
	tokensPerChar = 4

	// tiktokenEncoding is the BPE encoding used for exact counts
	tiktokenEncoding = "cl100k_base"
)

// HeuristicCounter approximates sub-word token density as len/4.
func HeuristicCounter(text string) int {
	return len(text) / tokensPerChar
}

// NewTiktokenCounter returns a counter backed by the cl100k_base BPE
// encoding. When the encoding cannot be loaded (offline environments),
// it falls back to the heuristic rather than failing.
func NewTiktokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding(tiktokenEncoding)
	if err != nil {
		return HeuristicCounter
	}

	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}
