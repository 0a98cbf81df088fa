package service

import (
	"iter"

	"github.com/candorhq/tacit/internal/domain"
)

// Chunker splits source text into overlapping fixed-size fragments for
// embedding. Windows are size runes long and advance by size-overlap, so
// each chunk repeats the last overlap runes of its predecessor.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates the chunking parameters. Overlap must be smaller
// than size; anything else is a programming error and fails immediately.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, domain.ErrInvalidChunkConfig
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunks returns a lazy, restartable sequence of chunk texts. Empty input
// yields nothing. A trailing window whose new (non-overlapping) tail would
// be shorter than half the chunk size is merged backward into the previous
// chunk instead of being emitted as a tiny fragment.
func (c *Chunker) Chunks(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		runes := []rune(text)
		n := len(runes)
		if n == 0 {
			return
		}
		if n <= c.size {
			yield(string(runes))
			return
		}

		step := c.size - c.overlap
		start := 0
		for {
			end := start + c.size
			if end >= n || n-end < c.size/2 {
				yield(string(runes[start:n]))
				return
			}
			if !yield(string(runes[start:end])) {
				return
			}
			start += step
		}
	}
}

// Split collects the chunk sequence into a slice.
func (c *Chunker) Split(text string) []string {
	var chunks []string
	for chunk := range c.Chunks(text) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Overlap returns the configured overlap in runes.
func (c *Chunker) Overlap() int {
	return c.overlap
}
