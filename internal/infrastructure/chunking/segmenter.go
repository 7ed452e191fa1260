// Package chunking splits extracted document text into bounded chunks for
// per-chunk diagram generation.
package chunking

import "github.com/voronkovm/diagramflow/internal/core/domain"

const defaultMaxChunkSize = 1200

// Segmenter is a pure splitter: the same text and bound always produce the
// same chunk sequence, which lets the pipeline re-derive chunk boundaries
// when a task is re-delivered. Concatenating the chunk texts in order
// reproduces the input exactly; no chunk exceeds the bound (in runes).
type Segmenter struct {
	maxChunkSize int
}

func NewSegmenter(maxChunkSize int) *Segmenter {
	if maxChunkSize <= 0 {
		maxChunkSize = defaultMaxChunkSize
	}
	return &Segmenter{maxChunkSize: maxChunkSize}
}

// Segment returns the ordered, 1-indexed chunks of text. Empty text yields
// no chunks. Split points prefer paragraph breaks, then sentence ends, then
// line breaks, and fall back to a hard cut at the bound.
func (s *Segmenter) Segment(text string) []domain.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	chunks := make([]domain.Chunk, 0, len(runes)/s.maxChunkSize+1)
	start := 0
	for start < len(runes) {
		end := start + s.maxChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.splitPoint(runes, start, end)
		}
		chunks = append(chunks, domain.Chunk{
			Index: len(chunks) + 1,
			Text:  string(runes[start:end]),
		})
		start = end
	}
	return chunks
}

// splitPoint picks the boundary for a chunk starting at start that would
// otherwise be cut at limit. Boundaries in the first half of the chunk are
// ignored so a break-heavy text cannot degenerate into tiny chunks.
func (s *Segmenter) splitPoint(runes []rune, start, limit int) int {
	floor := start + s.maxChunkSize/2
	if floor <= start {
		floor = start + 1
	}

	for i := limit; i > floor; i-- {
		if runes[i-1] == '\n' && runes[i-2] == '\n' {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if isSpace(runes[i-1]) && isSentenceEnd(runes[i-2]) {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	return limit
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
