package segmenter

import (
	"github.com/mfield/textcorpus-mcp/pkg/types"
)

// Segmenter splits documents into token-bounded chunks. It is stateless
// per call; one instance may be shared across concurrent documents.
type Segmenter struct {
	cfg   Config
	count TokenCounter
}

// New validates the configuration and returns a segmenter. Invalid
// token-budget relationships fail here, before any document is processed.
func New(cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Segmenter{cfg: cfg, count: cfg.Counter}
	if s.count == nil {
		s.count = HeuristicCounter
	}
	return s, nil
}

// Config returns the segmenter's immutable configuration.
func (s *Segmenter) Config() Config {
	return s.cfg
}

// SplitDocument splits a raw document (optionally carrying frontmatter)
// into an ordered list of chunks. An empty body yields exactly one chunk
// with empty content. Malformed metadata degrades to an empty map; the
// method never fails on document content.
func (s *Segmenter) SplitDocument(raw, docID string) []*types.Chunk {
	meta, body := ParseFrontmatter(raw)

	if body == "" {
		c := &types.Chunk{
			ParentDocID: docID,
			ChunkIndex:  0,
			TotalChunks: 1,
		}
		c.Frontmatter = s.chunkFrontmatter(meta, docID, c)
		c.ComputeContentHash()
		return []*types.Chunk{c}
	}

	cuts := s.computeCuts(body)
	ends := append(cuts, len(body))

	total := len(ends)
	chunks := make([]*types.Chunk, 0, total)
	start := 0
	for i, end := range ends {
		content := body[start:end]
		c := &types.Chunk{
			Content:     content,
			ChunkIndex:  i,
			TotalChunks: total,
			TokenCount:  s.count(content),
			ParentDocID: docID,
		}
		c.Frontmatter = s.chunkFrontmatter(meta, docID, c)
		c.ComputeContentHash()
		chunks = append(chunks, c)
		start = end
	}

	s.applyOverlap(chunks)
	return chunks
}

// computeCuts walks boundaries left to right and returns the interior cut
// offsets. Preference order at each step: the last boundary whose
// accumulated token count lies in [min, target]; else the first boundary
// in (target, max]; else a hard cut at the max-token budget.
func (s *Segmenter) computeCuts(body string) []int {
	bounds := DetectBoundaries(body, s.cfg)

	var cuts []int
	start := 0
	next := 0 // index of the first boundary beyond start

	for s.count(body[start:]) > s.cfg.MaxTokens {
		preferred := -1
		growth := -1

		for j := next; j < len(bounds); j++ {
			p := bounds[j].Position
			if p <= start {
				continue
			}
			if p >= len(body) {
				break
			}

			tokens := s.count(body[start:p])
			if tokens > s.cfg.MaxTokens {
				break
			}
			if tokens < s.cfg.MinTokens {
				continue
			}

			if tokens <= s.cfg.TargetTokens {
				preferred = p // keep the last boundary in the window
			} else if preferred < 0 && growth < 0 {
				growth = p
			}
		}

		cut := preferred
		if cut < 0 {
			cut = growth
		}
		if cut < 0 {
			cut = s.hardCut(body, start)
		}

		cuts = append(cuts, cut)
		start = cut
		for next < len(bounds) && bounds[next].Position <= start {
			next++
		}
	}

	return cuts
}

// hardCut returns the end offset of the longest prefix of body[start:]
// whose token count stays within max_tokens, searching on rune boundaries
// so multi-byte text is never split mid-character. Used when a single
// boundary-delimited span alone exceeds the budget.
func (s *Segmenter) hardCut(body string, start int) int {
	runes := []rune(body[start:])

	lo, hi := 1, len(runes)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if s.count(string(runes[:mid])) <= s.cfg.MaxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	return start + len(string(runes[:lo]))
}

// applyOverlap records the overlap token counts once cut points are fixed.
// The trailing overlap_tokens of chunk i become context for chunk i+1:
// noted as OverlapEnd on i and OverlapStart on i+1, never duplicated into
// Content.
func (s *Segmenter) applyOverlap(chunks []*types.Chunk) {
	for i := 0; i < len(chunks)-1; i++ {
		overlap := s.cfg.OverlapTokens
		if overlap > chunks[i].TokenCount {
			overlap = chunks[i].TokenCount
		}
		chunks[i].OverlapEnd = overlap
		chunks[i+1].OverlapStart = overlap
	}
}

// OverlapText returns the trailing portion of prev worth its recorded
// OverlapEnd tokens: the shortest suffix whose token count reaches the
// overlap. Callers prepend it when re-rendering a chunk with context.
func (s *Segmenter) OverlapText(prev *types.Chunk) string {
	if prev == nil || prev.OverlapEnd == 0 {
		return ""
	}

	runes := []rune(prev.Content)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.count(string(runes[mid:])) >= prev.OverlapEnd {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return prev.Content
	}

	return string(runes[lo-1:])
}

// chunkFrontmatter builds a chunk's provenance map: the parent metadata
// plus the injected identification fields.
func (s *Segmenter) chunkFrontmatter(parent map[string]any, docID string, c *types.Chunk) map[string]any {
	fm := make(map[string]any, len(parent)+4)
	for k, v := range parent {
		fm[k] = v
	}

	fm["doc_id"] = docID
	fm["chunk_id"] = c.ChunkID()
	fm["chunk_index"] = c.ChunkIndex
	fm["total_chunks"] = c.TotalChunks
	return fm
}
