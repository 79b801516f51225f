// Package chunker splits document text into fixed-size, overlapping windows.
// Sizes and offsets are measured in runes so a window never cuts a UTF-8
// sequence in half.
package chunker

import (
	"errors"
	"fmt"
)

const (
	// DefaultSize is the window length used when no size is configured.
	DefaultSize = 500

	// DefaultOverlap is the number of runes shared by consecutive windows.
	DefaultOverlap = 100
)

// ErrInvalidParams is returned when size and overlap do not satisfy
// 0 < overlap < size.
var ErrInvalidParams = errors.New("chunker: invalid size/overlap")

// Chunk is one window of a source document.
type Chunk struct {
	// Source identifies the document the chunk came from (usually a path).
	Source string

	// Index is the 0-based position of the chunk within its document.
	Index int

	// Offset is the rune offset of the first character of the chunk.
	Offset int

	// Text is the chunk content.
	Text string
}

// Split cuts text into windows of size runes, each starting size-overlap
// runes after the previous one. The last window may be shorter. Empty text
// produces no chunks.
func Split(text, source string, size, overlap int) ([]Chunk, error) {
	if overlap <= 0 || size <= overlap {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidParams, size, overlap)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	chunks := make([]Chunk, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := min(start+size, len(runes))
		chunks = append(chunks, Chunk{
			Source: source,
			Index:  len(chunks),
			Offset: start,
			Text:   string(runes[start:end]),
		})
		if end >= len(runes) {
			break
		}
	}

	return chunks, nil
}
