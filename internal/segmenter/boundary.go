package segmenter

import (
	"regexp"
	"sort"
	"strings"

	"github.com/mfield/textcorpus-mcp/pkg/types"
)

// Paragraph breaks: a blank line (possibly with trailing spaces) between
// two text runs. Sentence ends: terminal punctuation, optional closing
// quotes/brackets, then whitespace.
var (
	paragraphBreakPattern = regexp.MustCompile(`\n[ \t]*\n+`)
	sentenceEndPattern    = regexp.MustCompile(`[.!?]+["')\]]*[ \t\n]+`)
)

// DetectBoundaries scans body text once and returns every enabled boundary
// sorted by position, ties broken by ascending priority. It is a pure
// function of the body text and the detector toggles.
func DetectBoundaries(body string, cfg Config) []types.Boundary {
	var bounds []types.Boundary

	if cfg.Highlights {
		bounds = append(bounds, detectHighlights(body)...)
	}
	if cfg.Paragraphs {
		bounds = append(bounds, detectParagraphs(body)...)
	}
	if cfg.Sentences {
		bounds = append(bounds, detectSentences(body)...)
	}

	sort.Slice(bounds, func(i, j int) bool {
		if bounds[i].Position != bounds[j].Position {
			return bounds[i].Position < bounds[j].Position
		}
		return bounds[i].Priority < bounds[j].Priority
	})

	return bounds
}

// detectHighlights emits a boundary after each block-quoted line.
func detectHighlights(body string) []types.Boundary {
	var bounds []types.Boundary

	offset := 0
	for offset < len(body) {
		end := strings.IndexByte(body[offset:], '\n')
		var lineEnd int
		if end < 0 {
			lineEnd = len(body)
		} else {
			lineEnd = offset + end + 1 // include the newline
		}

		line := body[offset:lineEnd]
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), ">") {
			bounds = append(bounds, types.Boundary{
				Position: lineEnd,
				Type:     types.BoundaryHighlight,
				Priority: types.BoundaryHighlight.Priority(),
			})
		}

		offset = lineEnd
	}

	return bounds
}

// detectParagraphs emits a boundary after each blank-line gap, so the next
// chunk starts at the following paragraph's first character.
func detectParagraphs(body string) []types.Boundary {
	matches := paragraphBreakPattern.FindAllStringIndex(body, -1)
	bounds := make([]types.Boundary, 0, len(matches))

	for _, m := range matches {
		bounds = append(bounds, types.Boundary{
			Position: m[1],
			Type:     types.BoundaryParagraph,
			Priority: types.BoundaryParagraph.Priority(),
		})
	}

	return bounds
}

// detectSentences emits a boundary after each sentence-terminal punctuation
// run and its trailing whitespace.
func detectSentences(body string) []types.Boundary {
	matches := sentenceEndPattern.FindAllStringIndex(body, -1)
	bounds := make([]types.Boundary, 0, len(matches))

	for _, m := range matches {
		bounds = append(bounds, types.Boundary{
			Position: m[1],
			Type:     types.BoundarySentence,
			Priority: types.BoundarySentence.Priority(),
		})
	}

	return bounds
}
