package segmenter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mfield/textcorpus-mcp/pkg/types"
)

const frontmatterDelimiter = "---"

// ParseFrontmatter splits a raw document into its metadata map and body
// text. The metadata block is a leading "---" line, YAML key/value pairs,
// and a closing "---" line.
//
// Degraded input is never fatal: a missing or malformed block yields an
// empty map and the entire input as body.
func ParseFrontmatter(raw string) (map[string]any, string) {
	if !strings.HasPrefix(raw, frontmatterDelimiter+"\n") {
		return map[string]any{}, raw
	}

	rest := raw[len(frontmatterDelimiter)+1:]

	// Locate the closing delimiter line
	end := -1
	if strings.HasPrefix(rest, frontmatterDelimiter+"\n") || rest == frontmatterDelimiter {
		end = 0
	} else if i := strings.Index(rest, "\n"+frontmatterDelimiter+"\n"); i >= 0 {
		end = i + 1
	} else if strings.HasSuffix(rest, "\n"+frontmatterDelimiter) {
		end = len(rest) - len(frontmatterDelimiter)
	}

	if end < 0 {
		return map[string]any{}, raw
	}

	block := rest[:end]
	body := strings.TrimPrefix(rest[end+len(frontmatterDelimiter):], "\n")

	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return map[string]any{}, raw
	}
	if meta == nil {
		meta = map[string]any{}
	}

	return meta, body
}

// Reserialize renders a chunk back into a frontmatter-plus-body document
// for storage or debugging.
func Reserialize(c *types.Chunk) (string, error) {
	out, err := yaml.Marshal(c.Frontmatter)
	if err != nil {
		return "", fmt.Errorf("failed to marshal frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString(frontmatterDelimiter + "\n")
	b.Write(out)
	b.WriteString(frontmatterDelimiter + "\n\n")
	b.WriteString(c.Content)
	return b.String(), nil
}
