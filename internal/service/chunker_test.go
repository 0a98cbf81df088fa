package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/candorhq/tacit/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunker_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "overlap equals size", size: 10, overlap: 10},
		{name: "overlap exceeds size", size: 10, overlap: 20},
		{name: "zero size", size: 0, overlap: 0},
		{name: "negative size", size: -5, overlap: 0},
		{name: "negative overlap", size: 10, overlap: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.size, tt.overlap)
			assert.True(t, errors.Is(err, domain.ErrInvalidChunkConfig))
		})
	}
}

func TestChunker_EmptyTextYieldsNothing(t *testing.T) {
	c, err := NewChunker(10, 2)
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
}

func TestChunker_ShortTextYieldsSingleChunk(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	chunks := c.Split("short text")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestChunker_TinyTailMergedBackward(t *testing.T) {
	c, err := NewChunker(6, 3)
	require.NoError(t, err)

	// size+1 runes: the second window would add a single new rune,
	// well under half the chunk size, so it folds into the first.
	chunks := c.Split("abcdefg")
	require.Len(t, chunks, 1)
	assert.Equal(t, "abcdefg", chunks[0])
}

// reconstruct concatenates chunk 0 with every later chunk's non-overlapping
// suffix, which must reproduce the source text exactly.
func reconstruct(chunks []string, overlap int) string {
	var sb strings.Builder
	for i, chunk := range chunks {
		runes := []rune(chunk)
		if i == 0 {
			sb.WriteString(chunk)
			continue
		}
		sb.WriteString(string(runes[overlap:]))
	}
	return sb.String()
}

func TestChunker_Reconstruction(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
	}{
		{name: "even split", text: strings.Repeat("x", 40) + strings.Repeat("y", 40), size: 20, overlap: 5},
		{name: "uneven tail", text: "The quick brown fox jumps over the lazy dog, twice over.", size: 16, overlap: 4},
		{name: "zero overlap", text: strings.Repeat("abcde", 13), size: 10, overlap: 0},
		{name: "large overlap", text: strings.Repeat("z", 101), size: 10, overlap: 8},
		{name: "multibyte runes", text: strings.Repeat("知識は力なり。", 11), size: 12, overlap: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(tt.size, tt.overlap)
			require.NoError(t, err)

			chunks := c.Split(tt.text)
			require.NotEmpty(t, chunks)
			assert.Equal(t, tt.text, reconstruct(chunks, tt.overlap))

			// No emitted chunk exceeds the window plus the absorbed tail.
			for i, chunk := range chunks[:len(chunks)-1] {
				assert.Len(t, []rune(chunk), tt.size, "chunk %d", i)
			}
		})
	}
}

func TestChunker_SequenceIsRestartable(t *testing.T) {
	c, err := NewChunker(8, 2)
	require.NoError(t, err)

	seq := c.Chunks("a reasonably long piece of text to split up")
	first := make([]string, 0)
	for chunk := range seq {
		first = append(first, chunk)
	}
	second := make([]string, 0)
	for chunk := range seq {
		second = append(second, chunk)
	}

	assert.Equal(t, first, second)
}

func TestChunker_SequenceIsLazy(t *testing.T) {
	c, err := NewChunker(5, 1)
	require.NoError(t, err)

	var seen int
	for range c.Chunks(strings.Repeat("q", 500)) {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}
