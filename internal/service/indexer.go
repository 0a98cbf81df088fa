package service

import (
	"context"
	"time"

	"github.com/candorhq/tacit/internal/domain"
	"github.com/candorhq/tacit/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	// embedBatchSize caps how many chunk texts go into one embedding request
	embedBatchSize = 32
	// embedConcurrency caps concurrent embedding requests during indexing
	embedConcurrency = 4
)

// IndexEmbedder generates order-preserving embeddings for batches of text
type IndexEmbedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkWriter persists chunk replacements for a piece of content
type ChunkWriter interface {
	// ReplaceChunks atomically deletes existing chunks for the content and
	// inserts the new ones.
	ReplaceChunks(ctx context.Context, tenantID string, ref domain.ContentRef, chunks []domain.KnowledgeChunk) error
	DeleteChunks(ctx context.Context, tenantID string, contentType domain.ContentType, contentID string) error
}

// Indexer turns source content into embedded knowledge chunks. Indexing is
// idempotent for a content id: every call fully replaces the previous
// chunk set.
type Indexer struct {
	chunker  *Chunker
	embedder IndexEmbedder
	chunks   ChunkWriter
}

func NewIndexer(chunker *Chunker, embedder IndexEmbedder, chunks ChunkWriter) *Indexer {
	return &Indexer{
		chunker:  chunker,
		embedder: embedder,
		chunks:   chunks,
	}
}

// Index chunks and embeds text for the given content, then replaces the
// content's chunk set in the store. Embedding failures abort before any
// store write, leaving the previous index intact.
func (s *Indexer) Index(ctx context.Context, tenantID string, ref domain.ContentRef, text string) error {
	if tenantID == "" {
		return domain.ErrMissingTenant
	}
	if err := domain.ValidateContentRef(ref); err != nil {
		return err
	}

	ctx, span := telemetry.StartSpan(ctx, "Indexer.Index", telemetry.SpanAttributes{
		TenantID:   tenantID,
		CampaignID: ref.CampaignID,
		Operation:  "index",
	})
	defer span.End()

	texts := s.chunker.Split(text)

	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return domain.EmbeddingError(err)
	}

	now := time.Now().UTC()
	entries := make([]domain.KnowledgeChunk, len(texts))
	for i, chunk := range texts {
		entries[i] = domain.KnowledgeChunk{
			TenantID:   tenantID,
			Type:       ref.Type,
			ContentID:  ref.ID,
			CampaignID: ref.CampaignID,
			ChunkIndex: i,
			Content:    chunk,
			Metadata:   ref.Metadata,
			Embedding:  vectors[i],
			CreatedAt:  now,
		}
	}

	if err := s.chunks.ReplaceChunks(ctx, tenantID, ref, entries); err != nil {
		return domain.IndexWriteError(err)
	}
	return nil
}

// Remove deletes every chunk indexed for the given content id.
func (s *Indexer) Remove(ctx context.Context, tenantID string, contentType domain.ContentType, contentID string) error {
	if tenantID == "" {
		return domain.ErrMissingTenant
	}
	if err := s.chunks.DeleteChunks(ctx, tenantID, contentType, contentID); err != nil {
		return domain.IndexWriteError(err)
	}
	return nil
}

// embedAll embeds every chunk text, batching requests and running batches
// concurrently. Results keep the input order regardless of completion order.
func (s *Indexer) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for offset := 0; offset < len(texts); offset += embedBatchSize {
		start := offset
		end := min(start+embedBatchSize, len(texts))
		g.Go(func() error {
			batch, err := s.embedder.GenerateEmbeddings(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
