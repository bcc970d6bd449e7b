package segmenter

import (
	"fmt"

	"github.com/mfield/textcorpus-mcp/pkg/types"
)

// Default token budgets
const (
	DefaultTargetTokens  = 512
	DefaultMaxTokens     = 800
	DefaultMinTokens     = 128
	DefaultOverlapTokens = 50
)

// Config controls chunk sizing and which boundary detectors run.
// Budgets must satisfy min < target < max and overlap < min; New rejects
// anything else before a single document is processed.
type Config struct {
	TargetTokens  int
	MaxTokens     int
	MinTokens     int
	OverlapTokens int

	// Detector toggles. Each boundary type can be disabled independently.
	Highlights bool
	Paragraphs bool
	Sentences  bool

	// Counter measures text against the budgets. Nil selects the
	// chars/4 heuristic.
	Counter TokenCounter
}

// DefaultConfig returns a config with every detector enabled and the
// default token budgets.
func DefaultConfig() Config {
	return Config{
		TargetTokens:  DefaultTargetTokens,
		MaxTokens:     DefaultMaxTokens,
		MinTokens:     DefaultMinTokens,
		OverlapTokens: DefaultOverlapTokens,
		Highlights:    true,
		Paragraphs:    true,
		Sentences:     true,
	}
}

// Validate checks the token-budget relationships.
func (c Config) Validate() error {
	if c.TargetTokens <= 0 || c.MaxTokens <= 0 || c.MinTokens <= 0 || c.OverlapTokens < 0 {
		return fmt.Errorf("%w: token budgets must be positive", types.ErrInvalidConfig)
	}

	if c.MinTokens >= c.TargetTokens {
		return fmt.Errorf("%w: min_tokens %d must be below target_tokens %d",
			types.ErrInvalidConfig, c.MinTokens, c.TargetTokens)
	}

	if c.TargetTokens >= c.MaxTokens {
		return fmt.Errorf("%w: target_tokens %d must be below max_tokens %d",
			types.ErrInvalidConfig, c.TargetTokens, c.MaxTokens)
	}

	if c.OverlapTokens >= c.MinTokens {
		return fmt.Errorf("%w: overlap_tokens %d must be below min_tokens %d",
			types.ErrInvalidConfig, c.OverlapTokens, c.MinTokens)
	}

	return nil
}
