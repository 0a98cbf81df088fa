package service

import (
	"context"
	"strings"

	"github.com/candorhq/tacit/internal/domain"
	"github.com/candorhq/tacit/internal/telemetry"
)

const (
	// DefaultSearchThreshold is the minimum similarity for a match
	DefaultSearchThreshold float32 = 0.7
	// DefaultSearchLimit caps how many results one retrieval returns
	DefaultSearchLimit = 10
)

// QueryEmbedder generates the embedding for a search query
type QueryEmbedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearch is a fully resolved similarity search request
type ChunkSearch struct {
	TenantID     string
	Embedding    []float32
	Threshold    float32
	Limit        int
	CampaignID   string
	ContentTypes []domain.ContentType
}

// ChunkSearcher performs filtered similarity search against stored chunks
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, q ChunkSearch) ([]*domain.SearchResult, error)
}

// SearchOptions are the caller-facing retrieval knobs. A nil Threshold or
// non-positive Limit falls back to the retriever defaults; Threshold is a
// pointer because zero is a meaningful value (no cutoff).
type SearchOptions struct {
	Threshold    *float32
	Limit        int
	CampaignID   string
	ContentTypes []domain.ContentType
}

// Retriever embeds a query and runs a tenant-scoped similarity search.
type Retriever struct {
	embedder  QueryEmbedder
	chunks    ChunkSearcher
	threshold float32
	limit     int
}

func NewRetriever(embedder QueryEmbedder, chunks ChunkSearcher) *Retriever {
	return NewRetrieverWithDefaults(embedder, chunks, DefaultSearchThreshold, DefaultSearchLimit)
}

func NewRetrieverWithDefaults(embedder QueryEmbedder, chunks ChunkSearcher, threshold float32, limit int) *Retriever {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return &Retriever{
		embedder:  embedder,
		chunks:    chunks,
		threshold: threshold,
		limit:     limit,
	}
}

// Search returns matches at or above the similarity threshold, ordered by
// descending similarity with insertion order breaking ties. An empty result
// set is a valid outcome, including when a campaign filter matches nothing
// inside the tenant.
func (r *Retriever) Search(ctx context.Context, query, tenantID string, opts SearchOptions) ([]*domain.SearchResult, error) {
	if tenantID == "" {
		return nil, domain.ErrMissingTenant
	}
	if strings.TrimSpace(query) == "" {
		return []*domain.SearchResult{}, nil
	}
	for _, ct := range opts.ContentTypes {
		if !domain.IsValidContentType(ct) {
			return nil, domain.ErrInvalidContentType
		}
	}

	ctx, span := telemetry.StartSpan(ctx, "Retriever.Search", telemetry.SpanAttributes{
		TenantID:   tenantID,
		CampaignID: opts.CampaignID,
		Operation:  "search",
	})
	defer span.End()

	embedding, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, domain.EmbeddingError(err)
	}

	threshold := r.threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = r.limit
	}

	results, err := r.chunks.SearchChunks(ctx, ChunkSearch{
		TenantID:     tenantID,
		Embedding:    embedding,
		Threshold:    threshold,
		Limit:        limit,
		CampaignID:   opts.CampaignID,
		ContentTypes: opts.ContentTypes,
	})
	if err != nil {
		return nil, domain.RetrievalError(err)
	}
	if results == nil {
		results = []*domain.SearchResult{}
	}
	return results, nil
}
