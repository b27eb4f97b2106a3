// Package chunker splits raw document text into overlapping bounded-size
// segments for embedding.
//
// Splitting prefers coarse boundaries (paragraph breaks) over fine ones
// (sentence terminators, spaces) so that chunks stay semantically coherent.
// Chunks are contiguous substrings of the input: adjacent chunks share up
// to ChunkOverlap bytes (backed up to a rune boundary) so context survives
// chunk boundaries.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Default splitting parameters, tuned for the embedding model's input window.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// DefaultSeparators lists boundary candidates from coarsest to finest.
// The empty string is the final fallback: a hard cut at ChunkSize.
var DefaultSeparators = []string{"\n\n", "\n", ".", " ", ""}

// Splitter splits text into overlapping chunks. The zero value is not
// usable; construct with New.
//
// Splitter is stateless and safe for concurrent use.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// New creates a Splitter. Non-positive or inconsistent parameters fall back
// to the defaults (overlap must be smaller than chunk size to guarantee
// forward progress).
func New(chunkSize, overlap int) Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
		if overlap >= chunkSize {
			overlap = chunkSize / 8
		}
	}
	return Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
}

// Split breaks text into chunks of at most the configured chunk size.
// Adjacent chunks overlap by the configured overlap, backed up to the
// nearest rune boundary so multi-byte characters are never split; no
// trailing chunk is emitted just to carry overlap. Empty or whitespace-only
// input yields nil.
//
// Split is a pure function: identical input and configuration always produce
// identical output.
func (s Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= s.chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + s.chunkSize
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		end = s.breakAt(text, start, runeAlign(text, end))
		chunks = append(chunks, text[start:end])

		next := runeAlign(text, end-s.overlap)
		if next <= start {
			// Alignment ate the whole advance; drop the overlap rather
			// than stall.
			next = end
		}
		start = next
	}
	return chunks
}

// runeAlign backs i up to the start of the rune containing text[i], so
// slicing at the result never splits a multi-byte character.
func runeAlign(text string, i int) int {
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// breakAt finds the cut position for a chunk starting at start whose hard
// limit is limit; limit must be rune-aligned. It scans separators coarse to
// fine and cuts after the last occurrence inside the window; the cut must
// leave more than overlap characters in the chunk so the next start always
// advances. Separator cuts are rune-safe because all separators are ASCII.
func (s Splitter) breakAt(text string, start, limit int) int {
	window := text[start:limit]
	for _, sep := range s.separators {
		if sep == "" {
			break
		}
		idx := strings.LastIndex(window, sep)
		if idx >= 0 && idx+len(sep) > s.overlap {
			return start + idx + len(sep)
		}
	}
	// No usable separator: hard cut at the size limit.
	return limit
}

// ChunkSize returns the configured maximum chunk length in characters.
func (s Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap length in characters.
func (s Splitter) Overlap() int { return s.overlap }
