package domain

import (
	"fmt"
	"time"
)

// ContentType identifies the kind of source content a chunk came from
type ContentType string

const (
	ContentTypeTranscript ContentType = "transcript"
	ContentTypeInsight    ContentType = "insight"
	ContentTypeGraphNode  ContentType = "graph_node"
	ContentTypeDocument   ContentType = "document"
)

// ContentRef identifies a logical piece of source content to index.
// The ID is stable across re-indexing; Metadata is opaque display data
// carried through to search results unchanged.
type ContentRef struct {
	Type       ContentType
	ID         string
	CampaignID string
	Metadata   map[string]string
}

// KnowledgeChunk represents one indexed fragment of source content.
// Chunk indices for a (tenant, type, content id) triple are contiguous
// from 0 and partition the source text at time of indexing.
type KnowledgeChunk struct {
	ID         int64
	TenantID   string
	Type       ContentType
	ContentID  string
	CampaignID string
	ChunkIndex int
	Content    string
	Metadata   map[string]string
	Embedding  []float32
	CreatedAt  time.Time
}

// SearchResult is an ephemeral projection of a KnowledgeChunk plus its
// similarity score for one retrieval call. Score is in [0, 1], higher
// is more similar.
type SearchResult struct {
	ChunkID    int64
	Type       ContentType
	ContentID  string
	CampaignID string
	ChunkIndex int
	Content    string
	Metadata   map[string]string
	Score      float32
}

// Title returns the display title carried in the chunk metadata, falling
// back to the content id.
func (r *SearchResult) Title() string {
	if t := r.Metadata["title"]; t != "" {
		return t
	}
	return r.ContentID
}

// ValidateContentRef validates a ContentRef for indexing
func ValidateContentRef(ref ContentRef) error {
	if ref.ID == "" {
		return fmt.Errorf("content id is required: %w", ErrMissingRequiredField)
	}
	if !IsValidContentType(ref.Type) {
		return fmt.Errorf("content type %q: %w", ref.Type, ErrInvalidContentType)
	}
	return nil
}

// IsValidContentType reports whether t is one of the known content types
func IsValidContentType(t ContentType) bool {
	switch t {
	case ContentTypeTranscript, ContentTypeInsight, ContentTypeGraphNode, ContentTypeDocument:
		return true
	}
	return false
}

// ParseContentType converts a wire string into a ContentType
func ParseContentType(s string) (ContentType, error) {
	t := ContentType(s)
	if !IsValidContentType(t) {
		return "", fmt.Errorf("content type %q: %w", s, ErrInvalidContentType)
	}
	return t, nil
}
