package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/candorhq/tacit/internal/domain"
	"github.com/candorhq/tacit/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository handles persistence and similarity search of embedded
// knowledge chunks.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// ReplaceChunks deletes existing chunks for a content item and inserts the
// new ones in one transaction, so readers never observe a partially
// re-indexed item.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, tenantID string, ref domain.ContentRef, chunks []domain.KnowledgeChunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE tenant_id = $1 AND type = $2 AND content_id = $3`,
		tenantID, string(ref.Type), ref.ID,
	)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		metadata := c.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO knowledge_chunks
				(tenant_id, type, content_id, campaign_id, chunk_index, content, metadata, embedding, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			c.TenantID,
			string(c.Type),
			c.ContentID,
			nullableString(c.CampaignID),
			c.ChunkIndex,
			c.Content,
			metadata,
			pgvector.NewVector(c.Embedding),
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// DeleteChunks removes all chunks for a content item.
func (r *ChunkRepository) DeleteChunks(ctx context.Context, tenantID string, contentType domain.ContentType, contentID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE tenant_id = $1 AND type = $2 AND content_id = $3`,
		tenantID, string(contentType), contentID,
	)
	return err
}

// SearchChunks runs a filtered cosine similarity search. Results are ordered
// by descending similarity; insertion order breaks exact ties so repeated
// searches return a stable ranking.
func (r *ChunkRepository) SearchChunks(ctx context.Context, q service.ChunkSearch) ([]*domain.SearchResult, error) {
	vec := pgvector.NewVector(q.Embedding)

	query := `
		SELECT id, type, content_id, campaign_id, chunk_index, content, metadata,
		       1 - (embedding <=> $1) AS score
		FROM knowledge_chunks
		WHERE tenant_id = $2
		  AND 1 - (embedding <=> $1) >= $3`
	args := []interface{}{vec, q.TenantID, q.Threshold}

	if q.CampaignID != "" {
		args = append(args, q.CampaignID)
		query += fmt.Sprintf(" AND campaign_id = $%d", len(args))
	}
	if len(q.ContentTypes) > 0 {
		types := make([]string, len(q.ContentTypes))
		for i, ct := range q.ContentTypes {
			types[i] = string(ct)
		}
		args = append(args, types)
		query += fmt.Sprintf(" AND type = ANY($%d)", len(args))
	}

	args = append(args, q.Limit)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1, id ASC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*domain.SearchResult, 0)
	for rows.Next() {
		var res domain.SearchResult
		var contentType string
		var campaignID *string
		if err := rows.Scan(&res.ChunkID, &contentType, &res.ContentID, &campaignID, &res.ChunkIndex, &res.Content, &res.Metadata, &res.Score); err != nil {
			return nil, err
		}
		res.Type = domain.ContentType(contentType)
		if campaignID != nil {
			res.CampaignID = *campaignID
		}
		results = append(results, &res)
	}

	return results, rows.Err()
}
