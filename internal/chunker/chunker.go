// Package chunker splits document text into overlapping fixed-size windows.
package chunker

import (
	"fmt"

	"github.com/calder-labs/ragserve/internal/domain"
)

// Default window parameters, in characters of the extracted text.
const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

// Chunker produces deterministic overlapping chunks. Output depends only on
// the input text and the configured size and overlap, so chunk IDs are stable
// across repeated uploads of the same document.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a chunker. Requires 0 < overlap < chunkSize.
func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", chunkSize, domain.ErrInvalidChunking)
	}
	if overlap <= 0 || overlap >= chunkSize {
		return nil, fmt.Errorf(
			"overlap must be in (0, %d), got %d: %w", chunkSize, overlap, domain.ErrInvalidChunking,
		)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split cuts text into chunks of at most chunkSize characters, each starting
// chunkSize−overlap characters after the previous one. The final chunk may be
// shorter. Empty text yields an empty slice.
//
// Windows are measured in runes so a multibyte character is never split;
// chunk offsets are the byte positions of those rune boundaries in text.
func (c *Chunker) Split(documentID, text string) []domain.Chunk {
	if len(text) == 0 {
		return nil
	}

	// Byte offset of every rune boundary, including the end of text.
	bounds := make([]int, 0, len(text)+1)
	for i := range text {
		bounds = append(bounds, i)
	}
	bounds = append(bounds, len(text))
	runes := len(bounds) - 1

	step := c.chunkSize - c.overlap
	chunks := make([]domain.Chunk, 0, runes/step+1)

	for start, seq := 0, 0; start < runes; start, seq = start+step, seq+1 {
		end := start + c.chunkSize
		if end > runes {
			end = runes
		}

		lo, hi := bounds[start], bounds[end]
		chunks = append(chunks, domain.Chunk{
			ID:            domain.ChunkID(documentID, seq),
			DocumentID:    documentID,
			Text:          text[lo:hi],
			StartOffset:   lo,
			EndOffset:     hi,
			SequenceIndex: seq,
		})

		if end == runes {
			break
		}
	}

	return chunks
}

// ChunkSize returns the configured window size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }
